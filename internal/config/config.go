package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/hostpulse/hostpulse/internal/notify"
)

// Default values applied when fields are absent from the config file.
const (
	DefaultCollectInterval  = 30 * time.Second
	DefaultCollectTimeout   = 10 * time.Second
	DefaultCollectWorkers   = 4
	DefaultMaxBackoff       = 5 * time.Minute
	DefaultEvaluateInterval = 15 * time.Second
	DefaultRetention        = 30 * time.Minute
	DefaultHTTPPort         = 8080
	DefaultDBPath           = "hostpulse.db"
	DefaultVaultKeyEnv      = "HOSTPULSE_VAULT_KEY"
)

// Config is the top-level daemon configuration. Fields map 1:1 to
// config.example.yaml.
type Config struct {
	Collect  CollectConfig  `yaml:"collect"`
	Evaluate EvaluateConfig `yaml:"evaluate"`
	Store    StoreConfig    `yaml:"store"`
	DB       DBConfig       `yaml:"db"`
	Vault    VaultConfig    `yaml:"vault"`
	Notify   NotifyConfig   `yaml:"notify"`
}

// CollectConfig controls the SSH metric collection loop.
type CollectConfig struct {
	// Interval is how often every host is probed.
	Interval time.Duration `yaml:"interval"`

	// Timeout bounds one full probe of one host (dial + run).
	Timeout time.Duration `yaml:"timeout"`

	// Workers caps how many hosts are probed concurrently.
	Workers int `yaml:"workers"`

	// MaxBackoff caps the retry delay for hosts that keep failing.
	MaxBackoff time.Duration `yaml:"max_backoff"`
}

// EvaluateConfig controls the alert evaluation loop.
type EvaluateConfig struct {
	// Interval is the cadence at which all enabled rules are evaluated.
	Interval time.Duration `yaml:"interval"`
}

// StoreConfig controls the in-memory metric window store.
type StoreConfig struct {
	// Retention is how long metric points are kept before eviction.
	// It must cover the longest rule duration in use.
	Retention time.Duration `yaml:"retention"`
}

// DBConfig configures the SQLite persistence backend.
type DBConfig struct {
	// Path is the filesystem path for the SQLite database file.
	Path string `yaml:"path"`
}

// VaultConfig configures the credential encryption key.
type VaultConfig struct {
	// KeyEnv is the name of the environment variable that holds the
	// 32-byte encryption key. The key itself never appears in the file.
	KeyEnv string `yaml:"key_env"`
}

// Key returns the vault key resolved from the environment.
func (v VaultConfig) Key() string {
	if v.KeyEnv == "" {
		return ""
	}
	return os.Getenv(v.KeyEnv)
}

// NotifyConfig holds notification delivery settings.
type NotifyConfig struct {
	// Webhooks lists the outbound delivery targets rules can name.
	Webhooks []notify.WebhookTarget `yaml:"webhooks"`

	// WSEnabled exposes the /ws/alerts broadcast endpoint.
	WSEnabled bool `yaml:"ws_enabled"`

	// HTTPPort is the port the health and WebSocket endpoints listen on.
	HTTPPort int `yaml:"http_port"`
}

// Load reads and parses the YAML config file at path.
// Missing optional fields are filled with sensible defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read file: %w", err)
	}

	cfg := defaults()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse yaml: %w", err)
	}

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	return cfg, nil
}

// defaults returns a Config pre-populated with default values.
func defaults() *Config {
	return &Config{
		Collect: CollectConfig{
			Interval:   DefaultCollectInterval,
			Timeout:    DefaultCollectTimeout,
			Workers:    DefaultCollectWorkers,
			MaxBackoff: DefaultMaxBackoff,
		},
		Evaluate: EvaluateConfig{Interval: DefaultEvaluateInterval},
		Store:    StoreConfig{Retention: DefaultRetention},
		DB:       DBConfig{Path: DefaultDBPath},
		Vault:    VaultConfig{KeyEnv: DefaultVaultKeyEnv},
		Notify:   NotifyConfig{WSEnabled: true, HTTPPort: DefaultHTTPPort},
	}
}

// validate checks required fields and structural constraints.
func validate(cfg *Config) error {
	if cfg.Collect.Interval <= 0 {
		return fmt.Errorf("collect.interval must be positive")
	}
	if cfg.Collect.Timeout <= 0 {
		return fmt.Errorf("collect.timeout must be positive")
	}
	if cfg.Collect.Timeout >= cfg.Collect.Interval {
		return fmt.Errorf("collect.timeout must be shorter than collect.interval")
	}
	if cfg.Collect.Workers <= 0 {
		return fmt.Errorf("collect.workers must be positive")
	}
	if cfg.Collect.MaxBackoff < cfg.Collect.Interval {
		return fmt.Errorf("collect.max_backoff must be at least collect.interval")
	}
	if cfg.Evaluate.Interval <= 0 {
		return fmt.Errorf("evaluate.interval must be positive")
	}
	if cfg.Store.Retention < cfg.Collect.Interval {
		return fmt.Errorf("store.retention must be at least collect.interval")
	}
	if cfg.DB.Path == "" {
		return fmt.Errorf("db.path is required")
	}
	if cfg.Vault.KeyEnv == "" {
		return fmt.Errorf("vault.key_env is required")
	}
	for i, wh := range cfg.Notify.Webhooks {
		if wh.Name == "" {
			return fmt.Errorf("notify.webhooks[%d]: name is required", i)
		}
		switch wh.Type {
		case "slack", "teams", "http":
		default:
			return fmt.Errorf("notify.webhooks[%d] %q: unknown type %q", i, wh.Name, wh.Type)
		}
		if wh.URLEnv == "" {
			return fmt.Errorf("notify.webhooks[%d] %q: url_env is required", i, wh.Name)
		}
	}
	if cfg.Notify.HTTPPort <= 0 || cfg.Notify.HTTPPort > 65535 {
		return fmt.Errorf("notify.http_port must be in 1..65535")
	}
	return nil
}
