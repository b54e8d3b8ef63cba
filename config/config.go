// Package config loads the CLI settings from a YAML file and the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/qoeplatform/qoe/pkg/validation"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

const (
	DefaultBaseURL = "http://localhost:8000/api/v1"
	DefaultTimeout = 30 * time.Second
	DefaultWorkers = 4

	BackendDB     = "db"
	BackendRedis  = "redis"
	BackendMemory = "memory"
)

// Config is the complete configuration of the CLI.
type Config struct {
	API      APIConfig      `yaml:"api"`
	Store    StoreConfig    `yaml:"store"`
	Sync     SyncConfig     `yaml:"sync"`
	Transfer TransferConfig `yaml:"transfer,omitempty"`
}

// APIConfig points the client at a backend.
type APIConfig struct {
	BaseURL string        `yaml:"base_url"`
	Timeout time.Duration `yaml:"timeout"`
}

// StoreConfig selects where the session is kept.
type StoreConfig struct {
	Backend       string        `yaml:"backend"`
	DBPath        string        `yaml:"db_path,omitempty"`
	RedisAddr     string        `yaml:"redis_addr,omitempty"`
	RedisDB       int           `yaml:"redis_db,omitempty"`
	RedisPassword string        `yaml:"redis_password,omitempty"`
	SessionTTL    time.Duration `yaml:"session_ttl,omitempty"`
}

// SyncConfig tunes the local project cache refresh.
type SyncConfig struct {
	Workers int `yaml:"workers"`
}

// TransferConfig tunes uploads and downloads.
type TransferConfig struct {
	RateLimit int64 `yaml:"rate_limit,omitempty"` // bytes per second, 0 = unlimited
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		API:   APIConfig{BaseURL: DefaultBaseURL, Timeout: DefaultTimeout},
		Store: StoreConfig{Backend: BackendDB, RedisAddr: "localhost:6379"},
		Sync:  SyncConfig{Workers: DefaultWorkers},
	}
}

// DefaultPath is $QOE_CONFIG, or ~/.qoe/config.yaml.
func DefaultPath() (string, error) {
	if p := os.Getenv("QOE_CONFIG"); p != "" {
		return p, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}
	return filepath.Join(home, ".qoe", "config.yaml"), nil
}

// Load reads path (DefaultPath when empty) over the defaults, then applies
// environment overrides. A missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		p, err := DefaultPath()
		if err != nil {
			return nil, err
		}
		path = p
	}

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		log.Debug().Str("path", path).Msg("No config file, using defaults")
	case err != nil:
		return nil, fmt.Errorf("read config file: %w", err)
	default:
		if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), cfg); err != nil {
			return nil, fmt.Errorf("unmarshal config %s: %w", path, err)
		}
		log.Debug().Str("path", path).Msg("Loaded config file")
	}

	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// ApplyEnv overrides settings from QOE_* variables.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	if v, ok := lookup("QOE_API_URL"); ok && v != "" {
		c.API.BaseURL = v
	}
	if v, ok := lookup("QOE_TIMEOUT"); ok && v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("QOE_TIMEOUT: %w", err)
		}
		c.API.Timeout = d
	}
	if v, ok := lookup("QOE_STORE"); ok && v != "" {
		c.Store.Backend = v
	}
	if v, ok := lookup("QOE_DB_PATH"); ok && v != "" {
		c.Store.DBPath = v
	}
	if v, ok := lookup("QOE_REDIS_ADDR"); ok && v != "" {
		c.Store.RedisAddr = v
	}
	if v, ok := lookup("QOE_SYNC_WORKERS"); ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("QOE_SYNC_WORKERS: %w", err)
		}
		c.Sync.Workers = n
	}
	if v, ok := lookup("QOE_RATE_LIMIT"); ok && v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("QOE_RATE_LIMIT: %w", err)
		}
		c.Transfer.RateLimit = n
	}
	return nil
}

// Validate checks every setting.
func (c *Config) Validate() error {
	if err := validation.ValidateBaseURL(c.API.BaseURL); err != nil {
		return err
	}
	if err := validation.ValidateTimeout(c.API.Timeout); err != nil {
		return err
	}
	if err := validation.ValidateOneOf("store backend", c.Store.Backend, BackendDB, BackendRedis, BackendMemory); err != nil {
		return err
	}
	if c.Store.Backend == BackendRedis {
		if err := validation.ValidateNonEmptyString("store.redis_addr", c.Store.RedisAddr); err != nil {
			return err
		}
	}
	if c.Store.RedisDB < 0 {
		return fmt.Errorf("store.redis_db cannot be negative, got %d", c.Store.RedisDB)
	}
	if err := validation.ValidateWorkerCount(c.Sync.Workers); err != nil {
		return err
	}
	if c.Transfer.RateLimit < 0 {
		return fmt.Errorf("transfer.rate_limit cannot be negative, got %d", c.Transfer.RateLimit)
	}
	return nil
}

// Save writes c to path, creating its directory.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}
	return nil
}
