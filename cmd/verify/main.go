// Command verify compares hierarchy queries against plain Dijkstra on random
// node pairs of a prepared graph.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/azybler/ch_router/pkg/config"
	"github.com/azybler/ch_router/pkg/graph"
	"github.com/azybler/ch_router/pkg/logger"
	"github.com/azybler/ch_router/pkg/routing"
	"github.com/azybler/ch_router/pkg/weighting"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		configPath string
		samples    int
		workers    int
		seed       uint64
	)
	cmd := &cobra.Command{
		Use:          "verify [--graph graph.bin] [--samples 1000]",
		Short:        "Check hierarchy distances against an uncontracted search",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(configPath,
				config.BindFlag("graph.path", cmd.Flags().Lookup("graph")),
				config.BindFlag("weighting.name", cmd.Flags().Lookup("weighting")))
			if err != nil {
				return err
			}
			log, err := logger.New(cfg.Log.Level, cfg.Log.Development)
			if err != nil {
				return err
			}
			defer log.Sync()

			w, err := weighting.ByName(cfg.Weighting.Name)
			if err != nil {
				return err
			}
			g, err := graph.ReadBinary(cfg.Graph.Path)
			if err != nil {
				return err
			}

			start := time.Now()
			pairs := routing.RandomPairs(g.NumNodes(), samples, seed)
			mismatches, err := routing.Verify(cmd.Context(), g, w, pairs, workers)
			if err != nil {
				return err
			}
			for _, m := range mismatches {
				log.Warn("mismatch",
					zap.Uint32("source", m.Source),
					zap.Uint32("target", m.Target),
					zap.Bool("ch_found", m.CHFound),
					zap.Float64("ch_weight", m.CHWeight),
					zap.Bool("baseline_found", m.BaselineFound),
					zap.Float64("baseline_weight", m.BaselineWeight))
			}
			log.Info("verification finished",
				zap.Int("pairs", len(pairs)),
				zap.Int("mismatches", len(mismatches)),
				zap.Duration("elapsed", time.Since(start).Round(time.Millisecond)))
			if len(mismatches) > 0 {
				return fmt.Errorf("%d of %d pairs disagree", len(mismatches), len(pairs))
			}
			return nil
		},
	}
	f := cmd.Flags()
	f.String("graph", "graph.bin", "path to preprocessed graph binary")
	f.String("weighting", "fastest", "weighting the graph was prepared with")
	f.IntVar(&samples, "samples", 1000, "number of random node pairs")
	f.IntVar(&workers, "workers", runtime.NumCPU(), "parallel workers")
	f.Uint64Var(&seed, "seed", 1, "random seed for pair selection")
	f.StringVar(&configPath, "config", "", "optional YAML config file")
	return cmd
}
