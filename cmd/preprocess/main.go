// Command preprocess turns an OSM extract into a contraction hierarchy file.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/azybler/ch_router/pkg/ch"
	"github.com/azybler/ch_router/pkg/config"
	"github.com/azybler/ch_router/pkg/graph"
	"github.com/azybler/ch_router/pkg/logger"
	osmparser "github.com/azybler/ch_router/pkg/osm"
	"github.com/azybler/ch_router/pkg/weighting"
)

// Named bounding boxes kept from the original command.
var presets = map[string]string{
	"singapore": "1.15,103.6,1.48,104.1",
	"kl":        "2.75,101.2,3.5,102.0",
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		if errors.Is(err, context.Canceled) {
			os.Exit(130)
		}
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		input      string
		bbox       string
		preset     string
		configPath string
	)
	cmd := &cobra.Command{
		Use:          "preprocess --input <file.osm.pbf> [--output graph.bin]",
		Short:        "Build a contraction hierarchy from an OpenStreetMap extract",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if input == "" {
				return errors.New("--input is required")
			}
			if preset != "" {
				box, ok := presets[preset]
				if !ok {
					return fmt.Errorf("unknown --preset %q", preset)
				}
				bbox = box
			}
			box, err := osmparser.ParseBBox(bbox)
			if err != nil {
				return err
			}

			cfg, err := config.Load(configPath,
				config.BindFlag("graph.path", cmd.Flags().Lookup("output")),
				config.BindFlag("weighting.name", cmd.Flags().Lookup("weighting")),
				config.BindFlag("prepare.witness_visited_limit", cmd.Flags().Lookup("witness-limit")),
				config.BindFlag("log.level", cmd.Flags().Lookup("log-level")))
			if err != nil {
				return err
			}
			log, err := logger.New(cfg.Log.Level, cfg.Log.Development)
			if err != nil {
				return err
			}
			defer log.Sync()

			return run(cmd.Context(), log, cfg, input, box)
		},
	}
	f := cmd.Flags()
	f.StringVar(&input, "input", "", "path to .osm.pbf (or .osm) file")
	f.String("output", "graph.bin", "output binary graph file path")
	f.StringVar(&bbox, "bbox", "", "bounding box filter: minLat,minLng,maxLat,maxLng")
	f.StringVar(&preset, "preset", "", "named bounding box: singapore or kl")
	f.String("weighting", "fastest", "edge weighting: fastest or shortest")
	f.Int("witness-limit", 100, "nodes a witness search may settle")
	f.String("log-level", "info", "log level")
	f.StringVar(&configPath, "config", "", "optional YAML config file")
	return cmd
}

func run(ctx context.Context, log *zap.Logger, cfg config.Config, input string, box osmparser.BBox) error {
	start := time.Now()
	w, err := weighting.ByName(cfg.Weighting.Name)
	if err != nil {
		return err
	}
	if !box.IsZero() {
		log.Info("using bounding box filter",
			zap.Float64("min_lat", box.MinLat), zap.Float64("max_lat", box.MaxLat),
			zap.Float64("min_lng", box.MinLng), zap.Float64("max_lng", box.MaxLng))
	}

	log.Info("parsing OSM data", zap.String("input", input))
	parsed, err := osmparser.ParseFile(ctx, input, osmparser.ParseOptions{BBox: box, Logger: log})
	if err != nil {
		return fmt.Errorf("parse %s: %w", input, err)
	}

	g, err := osmparser.BuildGraph(parsed, w)
	if err != nil {
		return fmt.Errorf("build graph: %w", err)
	}
	log.Info("graph built", zap.Int("nodes", g.NumNodes()), zap.Int("edges", g.NumEdges()), zap.String("weighting", w.Name()))

	component := graph.LargestComponent(g)
	if g.NumNodes() > 0 {
		log.Info("largest component",
			zap.Int("nodes", len(component)),
			zap.Float64("percent", float64(len(component))/float64(g.NumNodes())*100))
	}
	g = graph.FilterToComponent(g, component)

	prep := ch.NewPreparation(g, cfg.Prepare.CH(), log)
	if err := prep.Prepare(ctx); err != nil {
		return fmt.Errorf("contract: %w", err)
	}

	log.Info("writing binary", zap.String("output", cfg.Graph.Path))
	if err := graph.WriteBinary(cfg.Graph.Path, g); err != nil {
		return fmt.Errorf("write %s: %w", cfg.Graph.Path, err)
	}

	info, err := os.Stat(cfg.Graph.Path)
	if err != nil {
		return err
	}
	log.Info("done",
		zap.Duration("elapsed", time.Since(start).Round(time.Second)),
		zap.Int("shortcuts", prep.ShortcutCount()),
		zap.Float64("size_mb", float64(info.Size())/(1024*1024)))
	return nil
}
