package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	"github.com/sashu2310/streamgate/internal/api"
	"github.com/sashu2310/streamgate/internal/backend"
	"github.com/sashu2310/streamgate/internal/config"
	"github.com/sashu2310/streamgate/internal/metrics"
	"github.com/sashu2310/streamgate/internal/publish"
	"github.com/sashu2310/streamgate/internal/store"
)

func main() {
	cfgPath := pflag.String("config", "configs/streamgate.yaml", "Path to control-plane YAML config")
	envFile := pflag.String("env-file", ".env", "Optional KEY=VALUE file loaded into the environment")
	addr := pflag.String("addr", "", "HTTP listen address (overrides config)")
	pflag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	// ── Load config ──────────────────────────────────────────────────────────
	if err := config.LoadEnvFiles(*envFile); err != nil {
		slog.Error("failed to load env file", "err", err)
		os.Exit(1)
	}
	cfg, err := config.Load(*cfgPath)
	if err != nil {
		slog.Error("failed to load config", "err", err)
		os.Exit(1)
	}
	if *addr != "" {
		cfg.Server.Addr = *addr
	}
	if err := config.Validate(cfg); err != nil {
		slog.Error("config validation failed", "err", err)
		os.Exit(1)
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel()})))

	// ── Backend ──────────────────────────────────────────────────────────────
	b, err := openBackend(cfg.Backend)
	if err != nil {
		slog.Error("failed to open backend", "err", err)
		os.Exit(1)
	}
	defer b.Close()

	// ── State + seed ─────────────────────────────────────────────────────────
	state := store.NewState(cfg.Defaults.BatchSize)
	stopSeed, err := seedState(cfg, state)
	if err != nil {
		slog.Error("failed to apply seed", "err", err)
		os.Exit(1)
	}
	defer stopSeed()

	publisher := publish.New(state, b, publish.Options{
		Key:           cfg.Publish.Key,
		Channel:       cfg.Publish.Channel,
		ReloadToken:   cfg.Publish.ReloadToken,
		StoreTimeout:  cfg.Publish.StoreTimeout,
		NotifyTimeout: cfg.Publish.NotifyTimeout,
	})

	// ── HTTP server ───────────────────────────────────────────────────────────
	srv := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      api.New(state, publisher, b),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("server starting", "addr", cfg.Server.Addr, "backend", cfg.Backend.Driver)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	// ── Graceful shutdown ─────────────────────────────────────────────────────
	g.Go(func() error {
		<-gctx.Done()
		slog.Info("shutting down…")
		shutCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutCtx)
	})

	if err := g.Wait(); err != nil {
		slog.Error("server stopped with error", "err", err)
		os.Exit(1)
	}
	slog.Info("goodbye")
}

func openBackend(conf config.BackendConf) (backend.Backend, error) {
	switch conf.Driver {
	case "redis":
		return backend.NewRedis(backend.RedisOptions{
			Addr:     conf.Redis.Address,
			Password: conf.Redis.Password,
			DB:       conf.Redis.DB,
		}), nil
	case "memory":
		slog.Warn("using in-memory backend; manifests are not shared with other processes")
		return backend.NewMemory(), nil
	default:
		return nil, fmt.Errorf("unknown backend driver %q", conf.Driver)
	}
}

// seedState applies the configured seed file, if any, and keeps it applied
// on change when watching is enabled. Seeding never publishes.
func seedState(cfg *config.Config, state *store.State) (stop func(), err error) {
	noop := func() {}
	if cfg.Seed.File == "" {
		return noop, nil
	}
	loader, err := config.NewSeedLoader(cfg.Seed.File)
	if err != nil {
		return nil, err
	}
	apply := func(seed *config.Seed) error {
		if err := state.Replace(seed.Snapshot(cfg.Defaults.BatchSize)); err != nil {
			metrics.SeedReloads.WithLabelValues("rejected").Inc()
			return err
		}
		metrics.SeedReloads.WithLabelValues("applied").Inc()
		slog.Info("seed applied", "file", cfg.Seed.File, "rules", len(seed.Rules), "outputs", len(seed.Outputs))
		return nil
	}
	if err := apply(loader.Seed()); err != nil {
		return nil, err
	}
	if !cfg.Seed.Watch {
		return noop, nil
	}

	loader.OnChange(func(seed *config.Seed) {
		if err := apply(seed); err != nil {
			slog.Warn("seed reload skipped: invalid seed", "file", cfg.Seed.File, "err", err)
		}
	})
	stopWatch, err := loader.Watch()
	if err != nil {
		slog.Warn("seed watcher unavailable (seed hot-reload disabled)", "err", err)
		return noop, nil
	}
	return stopWatch, nil
}
