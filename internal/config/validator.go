package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/sashu2310/streamgate/internal/manifest"
)

var logLevels = map[string]slog.Level{
	"debug": slog.LevelDebug,
	"info":  slog.LevelInfo,
	"warn":  slog.LevelWarn,
	"error": slog.LevelError,
}

// Validate checks the config for:
//   - A known backend driver with its connection settings
//   - Non-empty key, channel and reload token shared with agents
//   - Non-negative timeouts
//   - A default batch size inside the accepted range
//   - A known log level
func Validate(cfg *Config) error {
	var errs []string

	if cfg.Server.Addr == "" {
		errs = append(errs, "server.addr is required")
	}
	switch cfg.Backend.Driver {
	case "redis":
		if cfg.Backend.Redis.Address == "" {
			errs = append(errs, "backend.redis.address is required for the redis driver")
		}
	case "memory":
	default:
		errs = append(errs, fmt.Sprintf("backend.driver %q must be redis or memory", cfg.Backend.Driver))
	}
	if cfg.Publish.Key == "" {
		errs = append(errs, "publish.key is required")
	}
	if cfg.Publish.Channel == "" {
		errs = append(errs, "publish.channel is required")
	}
	if cfg.Publish.ReloadToken == "" {
		errs = append(errs, "publish.reload_token is required")
	}
	timeouts := []struct {
		name string
		d    time.Duration
	}{
		{"server.read_timeout", cfg.Server.ReadTimeout},
		{"server.write_timeout", cfg.Server.WriteTimeout},
		{"server.shutdown_timeout", cfg.Server.ShutdownTimeout},
		{"publish.store_timeout", cfg.Publish.StoreTimeout},
		{"publish.notify_timeout", cfg.Publish.NotifyTimeout},
		{"agent.fetch_timeout", cfg.Agent.FetchTimeout},
	}
	for _, t := range timeouts {
		if t.d < 0 {
			errs = append(errs, fmt.Sprintf("%s must not be negative", t.name))
		}
	}
	if bs := cfg.Defaults.BatchSize; bs < manifest.MinBatchSize || bs > manifest.MaxBatchSize {
		errs = append(errs, fmt.Sprintf("defaults.batch_size %d must be between %d and %d",
			bs, manifest.MinBatchSize, manifest.MaxBatchSize))
	}
	if cfg.Seed.Watch && cfg.Seed.File == "" {
		errs = append(errs, "seed.watch requires seed.file")
	}
	if _, ok := logLevels[cfg.Log.Level]; !ok {
		errs = append(errs, fmt.Sprintf("log.level %q must be one of debug, info, warn, error", cfg.Log.Level))
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation errors:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

// LogLevel returns the slog level named by cfg.Log.Level, defaulting to info.
func (cfg *Config) LogLevel() slog.Level {
	if l, ok := logLevels[cfg.Log.Level]; ok {
		return l
	}
	return slog.LevelInfo
}
