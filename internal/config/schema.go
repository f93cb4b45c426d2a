package config

import (
	"time"

	"github.com/sashu2310/streamgate/internal/manifest"
	"github.com/sashu2310/streamgate/internal/store"
)

// Config is the top-level YAML structure for both binaries.
type Config struct {
	Server   ServerConf   `yaml:"server"`
	Backend  BackendConf  `yaml:"backend"`
	Publish  PublishConf  `yaml:"publish"`
	Agent    AgentConf    `yaml:"agent"`
	Defaults DefaultsConf `yaml:"defaults"`
	Seed     SeedConf     `yaml:"seed"`
	Log      LogConf      `yaml:"log"`
}

// ServerConf holds HTTP listener settings.
type ServerConf struct {
	Addr            string        `yaml:"addr"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// BackendConf selects the persistence and notification backend.
type BackendConf struct {
	Driver string    `yaml:"driver"` // "redis" or "memory"
	Redis  RedisConf `yaml:"redis"`
}

type RedisConf struct {
	Address  string `yaml:"address"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// PublishConf names the storage key and reload channel shared with agents.
type PublishConf struct {
	Key           string        `yaml:"key"`
	Channel       string        `yaml:"channel"`
	ReloadToken   string        `yaml:"reload_token"`
	StoreTimeout  time.Duration `yaml:"store_timeout"`
	NotifyTimeout time.Duration `yaml:"notify_timeout"`
}

type AgentConf struct {
	FetchTimeout time.Duration `yaml:"fetch_timeout"`
}

type DefaultsConf struct {
	BatchSize int `yaml:"batch_size"`
}

// SeedConf points at an optional file of rules and outputs loaded at startup.
type SeedConf struct {
	File  string `yaml:"file"`
	Watch bool   `yaml:"watch"`
}

type LogConf struct {
	Level string `yaml:"level"`
}

// Seed is the on-disk shape of a seed file.
type Seed struct {
	Rules     []manifest.ProcessorRule `yaml:"rules"`
	Outputs   []manifest.OutputTarget  `yaml:"outputs"`
	BatchSize int                      `yaml:"batch_size"`
}

// Snapshot converts s into store contents, using fallbackBatch when the
// seed leaves batch_size unset.
func (s *Seed) Snapshot(fallbackBatch int) store.Snapshot {
	bs := s.BatchSize
	if bs == 0 {
		bs = fallbackBatch
	}
	rules := make([]manifest.ProcessorRule, 0, len(s.Rules))
	for _, r := range s.Rules {
		if r.Params == nil {
			r.Params = map[string]string{}
		}
		rules = append(rules, r)
	}
	return store.Snapshot{Rules: rules, Outputs: s.Outputs, BatchSize: bs}
}
