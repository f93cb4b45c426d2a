package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/sashu2310/streamgate/internal/manifest"
)

// Load reads the YAML config at path, applies environment overrides and
// fills defaults. An empty path or a missing file yields the defaults.
func Load(path string) (*Config, error) {
	var cfg Config
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
			slog.Info("config file not found, using defaults", "path", path)
		case err != nil:
			return nil, fmt.Errorf("read config %s: %w", path, err)
		default:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return nil, fmt.Errorf("parse config %s: %w", path, err)
			}
		}
	}
	if err := applyEnv(&cfg); err != nil {
		return nil, err
	}
	applyDefaults(&cfg)
	return &cfg, nil
}

// LoadEnvFiles loads KEY=VALUE files into the process environment without
// overriding variables that are already set. Missing files are skipped.
func LoadEnvFiles(paths ...string) error {
	for _, p := range paths {
		if p == "" {
			continue
		}
		if err := godotenv.Load(p); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("load env file %s: %w", p, err)
		}
	}
	return nil
}

func applyEnv(cfg *Config) error {
	if v := os.Getenv("STREAMGATE_HTTP_ADDR"); v != "" {
		cfg.Server.Addr = v
	}
	if v := os.Getenv("STREAMGATE_BACKEND"); v != "" {
		cfg.Backend.Driver = v
	}
	if v := os.Getenv("STREAMGATE_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	host, port := os.Getenv("REDIS_HOST"), os.Getenv("REDIS_PORT")
	if host != "" || port != "" {
		if host == "" {
			host = "localhost"
		}
		if port == "" {
			port = "6379"
		}
		cfg.Backend.Redis.Address = host + ":" + port
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		cfg.Backend.Redis.Password = v
	}
	if v := os.Getenv("REDIS_DB"); v != "" {
		db, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("REDIS_DB: %w", err)
		}
		cfg.Backend.Redis.DB = db
	}
	return nil
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = ":8000"
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = 10 * time.Second
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = 30 * time.Second
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = 15 * time.Second
	}
	if cfg.Backend.Driver == "" {
		cfg.Backend.Driver = "redis"
	}
	if cfg.Backend.Redis.Address == "" {
		cfg.Backend.Redis.Address = "localhost:6379"
	}
	if cfg.Publish.Key == "" {
		cfg.Publish.Key = "streamgate_config"
	}
	if cfg.Publish.Channel == "" {
		cfg.Publish.Channel = "streamgate_updates"
	}
	if cfg.Publish.ReloadToken == "" {
		cfg.Publish.ReloadToken = "RELOAD"
	}
	if cfg.Publish.StoreTimeout == 0 {
		cfg.Publish.StoreTimeout = 5 * time.Second
	}
	if cfg.Publish.NotifyTimeout == 0 {
		cfg.Publish.NotifyTimeout = 5 * time.Second
	}
	if cfg.Agent.FetchTimeout == 0 {
		cfg.Agent.FetchTimeout = 5 * time.Second
	}
	if cfg.Defaults.BatchSize == 0 {
		cfg.Defaults.BatchSize = manifest.DefaultBatchSize
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	cfg.Log.Level = strings.ToLower(cfg.Log.Level)
}

// SeedLoader reads a seed file and watches it for changes.
type SeedLoader struct {
	path     string
	mu       sync.RWMutex
	current  *Seed
	onChange []func(*Seed)
}

// NewSeedLoader creates a SeedLoader and performs the initial load.
func NewSeedLoader(path string) (*SeedLoader, error) {
	l := &SeedLoader{path: filepath.Clean(path)}
	seed, err := l.load()
	if err != nil {
		return nil, err
	}
	l.current = seed
	return l, nil
}

// Seed returns the latest successfully parsed seed.
func (l *SeedLoader) Seed() *Seed {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.current
}

// OnChange registers a callback invoked whenever the seed reloads.
func (l *SeedLoader) OnChange(fn func(*Seed)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.onChange = append(l.onChange, fn)
}

// Watch starts a background goroutine that reloads the seed on file changes.
// The parent directory is watched so editors that replace the file by
// rename are picked up. Call the returned stop function to clean up.
func (l *SeedLoader) Watch() (stop func(), err error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("seed watcher: %w", err)
	}
	dir := filepath.Dir(l.path)
	if err := w.Add(dir); err != nil {
		w.Close()
		return nil, fmt.Errorf("seed watcher add %s: %w", dir, err)
	}

	done := make(chan struct{})
	go func() {
		defer w.Close()
		for {
			select {
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if filepath.Clean(ev.Name) != l.path {
					continue
				}
				if ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create) {
					if _, err := l.Reload(); err != nil {
						slog.Warn("seed reload skipped", "path", l.path, "err", err)
					}
				}
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				slog.Warn("seed watcher error", "err", err)
			case <-done:
				return
			}
		}
	}()

	var once sync.Once
	return func() { once.Do(func() { close(done) }) }, nil
}

// Reload forces an immediate re-read of the seed file.
func (l *SeedLoader) Reload() (*Seed, error) {
	seed, err := l.load()
	if err != nil {
		return nil, err
	}
	l.mu.Lock()
	l.current = seed
	callbacks := make([]func(*Seed), len(l.onChange))
	copy(callbacks, l.onChange)
	l.mu.Unlock()
	for _, fn := range callbacks {
		fn(seed)
	}
	return seed, nil
}

func (l *SeedLoader) load() (*Seed, error) {
	data, err := os.ReadFile(l.path)
	if err != nil {
		return nil, fmt.Errorf("read seed %s: %w", l.path, err)
	}
	var seed Seed
	if err := yaml.Unmarshal(data, &seed); err != nil {
		return nil, fmt.Errorf("parse seed %s: %w", l.path, err)
	}
	return &seed, nil
}
