// Command server loads a prepared graph and serves routes over HTTP.
package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/azybler/ch_router/pkg/api"
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
	var configPath string
	cmd := &cobra.Command{
		Use:          "server [--graph graph.bin] [--addr :8080]",
		Short:        "Serve shortest path queries over a contraction hierarchy",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			f := cmd.Flags()
			cfg, err := config.Load(configPath,
				config.BindFlag("graph.path", f.Lookup("graph")),
				config.BindFlag("server.addr", f.Lookup("addr")),
				config.BindFlag("server.cors_origins", f.Lookup("cors-origin")),
				config.BindFlag("weighting.name", f.Lookup("weighting")),
				config.BindFlag("log.level", f.Lookup("log-level")))
			if err != nil {
				return err
			}
			log, err := logger.New(cfg.Log.Level, cfg.Log.Development)
			if err != nil {
				return err
			}
			defer log.Sync()

			if err := serve(cmd.Context(), log, cfg); err != nil {
				log.Error("server stopped", zap.Error(err))
				return err
			}
			return nil
		},
	}
	f := cmd.Flags()
	f.String("graph", "graph.bin", "path to preprocessed graph binary")
	f.String("addr", ":8080", "listen address")
	f.StringSlice("cors-origin", nil, "allowed CORS origins (empty = same-origin)")
	f.String("weighting", "fastest", "weighting the graph was prepared with")
	f.String("log-level", "info", "log level")
	f.StringVar(&configPath, "config", "", "optional YAML config file")
	return cmd
}

func serve(ctx context.Context, log *zap.Logger, cfg config.Config) error {
	start := time.Now()
	w, err := weighting.ByName(cfg.Weighting.Name)
	if err != nil {
		return err
	}

	log.Info("loading graph", zap.String("path", cfg.Graph.Path))
	g, err := graph.ReadBinary(cfg.Graph.Path)
	if err != nil {
		return err
	}
	if g.NumNodes() > 0 && g.Level(0) == 0 {
		return errors.New("graph has no contraction levels; run preprocess first")
	}
	log.Info("graph loaded",
		zap.Int("nodes", g.NumNodes()),
		zap.Int("edges", g.NumOriginalEdges()),
		zap.Int("shortcuts", g.NumShortcuts()))

	engine := routing.NewEngine(g, w, cfg.RoutingOptions(), log)
	log.Info("ready", zap.Duration("elapsed", time.Since(start).Round(time.Millisecond)))

	stats := api.StatsResponse{
		NumNodes:     g.NumNodes(),
		NumEdges:     g.NumOriginalEdges(),
		NumShortcuts: g.NumShortcuts(),
		Weighting:    w.Name(),
	}
	srvCfg := api.ServerConfig{
		Addr:            cfg.Server.Addr,
		ReadTimeout:     cfg.Server.ReadTimeout,
		WriteTimeout:    cfg.Server.WriteTimeout,
		IdleTimeout:     cfg.Server.IdleTimeout,
		RequestTimeout:  cfg.Server.RequestTimeout,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
		MaxConcurrent:   cfg.Server.MaxConcurrent,
		CORSOrigins:     cfg.Server.CORSOrigins,
		RateLimit:       cfg.Server.RateLimit,
		RateBurst:       cfg.Server.RateBurst,
	}
	srv := api.NewServer(srvCfg, api.NewHandlers(engine, stats, log), log)
	return api.Run(ctx, srv, srvCfg.ShutdownTimeout, log)
}
