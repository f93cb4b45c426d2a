package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	"github.com/sashu2310/streamgate/internal/backend"
	"github.com/sashu2310/streamgate/internal/config"
	"github.com/sashu2310/streamgate/internal/manifest"
	"github.com/sashu2310/streamgate/internal/subscriber"
)

// agent follows the published manifest and logs every change. It stands in
// for a data-plane process during development.
func main() {
	cfgPath := pflag.String("config", "configs/streamgate.yaml", "Path to YAML config")
	envFile := pflag.String("env-file", ".env", "Optional KEY=VALUE file loaded into the environment")
	pflag.Parse()

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo})))

	if err := config.LoadEnvFiles(*envFile); err != nil {
		slog.Error("failed to load env file", "err", err)
		os.Exit(1)
	}
	cfg, err := config.Load(*cfgPath)
	if err != nil {
		slog.Error("failed to load config", "err", err)
		os.Exit(1)
	}
	if err := config.Validate(cfg); err != nil {
		slog.Error("config validation failed", "err", err)
		os.Exit(1)
	}
	if cfg.Backend.Driver != "redis" {
		slog.Error("agent requires the redis backend", "driver", cfg.Backend.Driver)
		os.Exit(1)
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel()})))

	b := backend.NewRedis(backend.RedisOptions{
		Addr:     cfg.Backend.Redis.Address,
		Password: cfg.Backend.Redis.Password,
		DB:       cfg.Backend.Redis.DB,
	})
	defer b.Close()

	w := subscriber.NewWatcher(b, subscriber.Options{
		Key:          cfg.Publish.Key,
		Channel:      cfg.Publish.Channel,
		FetchTimeout: cfg.Agent.FetchTimeout,
	})
	w.OnChange(logManifest)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := w.Run(gctx); err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("watcher: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		slog.Error("agent stopped with error", "err", err)
		os.Exit(1)
	}
	slog.Info("goodbye")
}

func logManifest(m *manifest.Manifest) {
	for _, p := range m.Pipelines {
		slog.Info("pipeline configured",
			"version", m.Version,
			"timestamp", m.Timestamp,
			"pipeline", p.Name,
			"processors", len(p.Processors),
			"outputs", len(p.Outputs),
			"batch_size", p.BatchSize,
		)
	}
}
