// Package config loads SQL Valley settings from ~/.sqlvalley/config.yaml,
// secrets.yaml and SQLVALLEY_* environment variables.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Storage backends
const (
	BackendLocal    = "local"
	BackendSQLite   = "sqlite"
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
	BackendMemory   = "memory"
)

// ErrInvalidConfig wraps every validation failure
var ErrInvalidConfig = errors.New("invalid configuration")

// Config holds all settings
type Config struct {
	Storage  StorageConfig `yaml:"storage"`
	Engine   EngineConfig  `yaml:"engine"`
	Events   EventsConfig  `yaml:"events"`
	Metrics  MetricsConfig `yaml:"metrics"`
	LogLevel string        `yaml:"log_level"`
	LogFile  string        `yaml:"log_file,omitempty"`
}

// StorageConfig selects and configures the durable store
type StorageConfig struct {
	Backend    string           `yaml:"backend"`
	Path       string           `yaml:"path,omitempty"` // local dir or sqlite file
	Redis      RedisConfig      `yaml:"redis"`
	Postgres   PostgresConfig   `yaml:"postgres"`
	Resilience ResilienceConfig `yaml:"resilience"`
}

// RedisConfig holds Redis settings
type RedisConfig struct {
	Addr      string `yaml:"addr"`
	DB        int    `yaml:"db"`
	Namespace string `yaml:"namespace"`
	Password  string `yaml:"-"` // Loaded from secrets.yaml
}

// PostgresConfig holds PostgreSQL settings
type PostgresConfig struct {
	Namespace string `yaml:"namespace"`
	DSN       string `yaml:"-"` // Loaded from secrets.yaml
}

// ResilienceConfig tunes retries and the circuit breaker around the store
type ResilienceConfig struct {
	MaxAttempts      int           `yaml:"max_attempts"`
	FailureThreshold int           `yaml:"failure_threshold"`
	OpenTimeout      time.Duration `yaml:"open_timeout"`
}

// EngineConfig holds query engine and editor settings
type EngineConfig struct {
	QueryTimeout  time.Duration `yaml:"query_timeout"`
	AutosaveDelay time.Duration `yaml:"autosave_delay"`
	CatalogDir    string        `yaml:"catalog_dir,omitempty"`
}

// EventsConfig holds the optional AMQP event publisher settings
type EventsConfig struct {
	Exchange string `yaml:"exchange"`
	AMQPURL  string `yaml:"-"` // Loaded from secrets.yaml
}

// MetricsConfig holds the Prometheus endpoint settings
type MetricsConfig struct {
	Addr string `yaml:"addr,omitempty"`
}

// SecretsConfig holds credentials loaded from secrets.yaml
type SecretsConfig struct {
	RedisPassword string `yaml:"redis_password,omitempty"`
	PostgresDSN   string `yaml:"postgres_dsn,omitempty"`
	AMQPURL       string `yaml:"amqp_url,omitempty"`
}

// Dir returns the data directory, $SQLVALLEY_HOME or ~/.sqlvalley
func Dir() (string, error) {
	if dir := os.Getenv("SQLVALLEY_HOME"); dir != "" {
		return dir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("get home dir: %w", err)
	}
	return filepath.Join(home, ".sqlvalley"), nil
}

// EnsureDir creates the data directory and its subdirectories
func EnsureDir() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	for _, subdir := range []string{"", "logs", "data"} {
		path := filepath.Join(dir, subdir)
		if err := os.MkdirAll(path, 0755); err != nil {
			return "", fmt.Errorf("create dir %s: %w", path, err)
		}
	}
	return dir, nil
}

// Default returns the built-in settings
func Default() *Config {
	return &Config{
		Storage: StorageConfig{
			Backend: BackendLocal,
			Redis: RedisConfig{
				Addr:      "localhost:6379",
				Namespace: "sqlvalley",
			},
			Postgres: PostgresConfig{
				Namespace: "default",
			},
			Resilience: ResilienceConfig{
				MaxAttempts:      3,
				FailureThreshold: 5,
				OpenTimeout:      30 * time.Second,
			},
		},
		Engine: EngineConfig{
			QueryTimeout:  5 * time.Second,
			AutosaveDelay: time.Second,
		},
		Events: EventsConfig{
			Exchange: "sqlvalley.events",
		},
		LogLevel: "info",
	}
}

// Load reads config.yaml and secrets.yaml from the data directory, then
// applies environment overrides. A missing file means defaults.
func Load() (*Config, error) {
	dir, err := Dir()
	if err != nil {
		return nil, err
	}
	cfg, err := LoadFile(dir)
	if err != nil {
		return nil, err
	}
	if err := ApplyEnv(cfg); err != nil {
		return nil, err
	}
	cfg.resolvePaths(dir)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFile reads config.yaml and secrets.yaml from dir
func LoadFile(dir string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(filepath.Join(dir, "config.yaml"))
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("read config: %w", err)
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := loadSecrets(dir, cfg); err != nil {
		return nil, fmt.Errorf("load secrets: %w", err)
	}
	return cfg, nil
}

// loadSecrets loads credentials from secrets.yaml
func loadSecrets(dir string, cfg *Config) error {
	data, err := os.ReadFile(filepath.Join(dir, "secrets.yaml"))
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read secrets: %w", err)
	}

	var secrets SecretsConfig
	if err := yaml.Unmarshal(data, &secrets); err != nil {
		return fmt.Errorf("parse secrets: %w", err)
	}
	cfg.Storage.Redis.Password = secrets.RedisPassword
	cfg.Storage.Postgres.DSN = secrets.PostgresDSN
	cfg.Events.AMQPURL = secrets.AMQPURL
	return nil
}

func (c *Config) resolvePaths(dir string) {
	if c.Storage.Path == "" {
		switch c.Storage.Backend {
		case BackendSQLite:
			c.Storage.Path = filepath.Join(dir, "data", "progress.db")
		case BackendLocal:
			// the local store keeps its files under <path>/data
			c.Storage.Path = dir
		}
	}
	if c.LogFile != "" && !filepath.IsAbs(c.LogFile) {
		c.LogFile = filepath.Join(dir, "logs", c.LogFile)
	}
}

// Validate checks that the selected backend is fully configured
func (c *Config) Validate() error {
	var errs []error
	switch c.Storage.Backend {
	case BackendLocal, BackendSQLite, BackendMemory:
	case BackendRedis:
		if c.Storage.Redis.Addr == "" {
			errs = append(errs, errors.New("storage.redis.addr is required"))
		}
	case BackendPostgres:
		if c.Storage.Postgres.DSN == "" {
			errs = append(errs, errors.New("postgres_dsn is required in secrets.yaml or SQLVALLEY_POSTGRES_DSN"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown storage backend %q", c.Storage.Backend))
	}
	if c.Engine.QueryTimeout < 0 {
		errs = append(errs, errors.New("engine.query_timeout must not be negative"))
	}
	if _, err := ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, err)
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
	}
	return nil
}

// ParseLevel maps debug|info|warn|error to a slog level
func ParseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return slog.LevelInfo, fmt.Errorf("log_level %q: %w", s, err)
	}
	return level, nil
}

// Save writes cfg to config.yaml in the data directory. Secrets are never
// written.
func Save(cfg *Config) error {
	dir, err := EnsureDir()
	if err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "config.yaml"), data, 0644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// SaveSecrets writes secrets.yaml readable by the owner only
func SaveSecrets(secrets SecretsConfig) error {
	dir, err := EnsureDir()
	if err != nil {
		return err
	}
	data, err := yaml.Marshal(secrets)
	if err != nil {
		return fmt.Errorf("marshal secrets: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "secrets.yaml"), data, 0600); err != nil {
		return fmt.Errorf("write secrets: %w", err)
	}
	return nil
}
