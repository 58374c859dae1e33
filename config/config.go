// Package config provides configuration loading and validation.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/artpar/menagerie/domain/fault"
	"gopkg.in/yaml.v3"
)

// Database drivers.
const (
	DriverMemory   = "memory"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Config is the root configuration structure.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Logging  LoggingConfig  `yaml:"logging"`
	Metrics  MetricsConfig  `yaml:"metrics"`
	Tables   TablesConfig   `yaml:"tables"`
	Kernel   KernelConfig   `yaml:"kernel"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// DatabaseConfig configures the state store.
type DatabaseConfig struct {
	Driver string `yaml:"driver"` // "memory", "sqlite" or "postgres"
	DSN    string `yaml:"dsn"`
}

// LoggingConfig configures logging.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // "debug", "info", "warn", "error"
	Format string `yaml:"format"` // "json" or "console"
}

// MetricsConfig configures Prometheus metrics.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"` // Enable /metrics endpoint
	Path    string `yaml:"path"`    // Custom path (default: /metrics)
}

// TablesConfig locates the game tables.
type TablesConfig struct {
	Path  string `yaml:"path"`  // empty = embedded defaults
	Watch bool   `yaml:"watch"` // reload when the file changes
}

// KernelConfig tunes the game kernel.
type KernelConfig struct {
	LockShards int           `yaml:"lock_shards"`
	OpTimeout  time.Duration `yaml:"op_timeout"` // bound on waiting for a player lock
}

// Load reads configuration from a YAML file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	// Expand environment variables
	data = []byte(os.ExpandEnv(string(data)))

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fault.Config("config", "parse %s: %v", path, err)
	}

	// Apply environment variable overrides
	applyEnvOverrides(&cfg)

	setDefaults(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &cfg, nil
}

// LoadFromEnv creates configuration entirely from environment variables.
//
// Environment variables:
//
//	MENAGERIE_SERVER_HOST       - Server host (default: 0.0.0.0)
//	MENAGERIE_SERVER_PORT       - Server port (default: 8080)
//	MENAGERIE_DATABASE_DRIVER   - memory, sqlite or postgres (default: sqlite)
//	MENAGERIE_DATABASE_DSN      - Database path or URL (default: menagerie.db)
//	MENAGERIE_LOG_LEVEL         - Log level: debug, info, warn, error (default: info)
//	MENAGERIE_LOG_FORMAT        - Log format: json or console (default: json)
//	MENAGERIE_METRICS_ENABLED   - Enable /metrics endpoint (default: false)
//	MENAGERIE_TABLES_PATH       - Game tables YAML (default: embedded)
//	MENAGERIE_TABLES_WATCH      - Reload tables on file change
//	MENAGERIE_KERNEL_OP_TIMEOUT - Player lock wait bound, e.g. 5s
func LoadFromEnv() (*Config, error) {
	var cfg Config

	applyEnvOverrides(&cfg)
	setDefaults(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &cfg, nil
}

// LoadWithFallback loads path when it exists and falls back to the
// environment otherwise.
func LoadWithFallback(path string) (*Config, error) {
	if path != "" {
		if _, err := os.Stat(path); err == nil {
			return Load(path)
		}
	}
	return LoadFromEnv()
}

// applyEnvOverrides applies MENAGERIE_* environment variables to the config.
// Environment variables always override file-based configuration.
func applyEnvOverrides(cfg *Config) {
	// Server configuration
	if v := os.Getenv("MENAGERIE_SERVER_HOST"); v != "" {
		cfg.Server.Host = v
	}
	if v := os.Getenv("MENAGERIE_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("MENAGERIE_SERVER_READ_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Server.ReadTimeout = d
		}
	}
	if v := os.Getenv("MENAGERIE_SERVER_WRITE_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Server.WriteTimeout = d
		}
	}

	// Database configuration
	if v := os.Getenv("MENAGERIE_DATABASE_DRIVER"); v != "" {
		cfg.Database.Driver = v
	}
	if v := os.Getenv("MENAGERIE_DATABASE_DSN"); v != "" {
		cfg.Database.DSN = v
	}

	// Logging configuration
	if v := os.Getenv("MENAGERIE_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("MENAGERIE_LOG_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}

	// Metrics configuration
	if v := os.Getenv("MENAGERIE_METRICS_ENABLED"); v != "" {
		cfg.Metrics.Enabled = parseBool(v)
	}
	if v := os.Getenv("MENAGERIE_METRICS_PATH"); v != "" {
		cfg.Metrics.Path = v
	}

	// Tables configuration
	if v := os.Getenv("MENAGERIE_TABLES_PATH"); v != "" {
		cfg.Tables.Path = v
	}
	if v := os.Getenv("MENAGERIE_TABLES_WATCH"); v != "" {
		cfg.Tables.Watch = parseBool(v)
	}

	// Kernel configuration
	if v := os.Getenv("MENAGERIE_KERNEL_LOCK_SHARDS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Kernel.LockShards = n
		}
	}
	if v := os.Getenv("MENAGERIE_KERNEL_OP_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Kernel.OpTimeout = d
		}
	}
}

// parseBool parses a boolean from common string values.
func parseBool(v string) bool {
	v = strings.ToLower(strings.TrimSpace(v))
	return v == "true" || v == "1" || v == "yes" || v == "on"
}

func setDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "0.0.0.0"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = 30 * time.Second
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = 60 * time.Second
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = 15 * time.Second
	}

	if cfg.Database.Driver == "" {
		cfg.Database.Driver = DriverSQLite
	}
	if cfg.Database.DSN == "" && cfg.Database.Driver == DriverSQLite {
		cfg.Database.DSN = "menagerie.db"
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}

	if cfg.Metrics.Path == "" {
		cfg.Metrics.Path = "/metrics"
	}

	if cfg.Kernel.LockShards == 0 {
		cfg.Kernel.LockShards = 32
	}
	if cfg.Kernel.OpTimeout == 0 {
		cfg.Kernel.OpTimeout = 10 * time.Second
	}
}

func validate(cfg *Config) error {
	var errs []error

	if cfg.Server.Port < 1 || cfg.Server.Port > 65535 {
		errs = append(errs, fault.Config("server.port", "must be in 1..65535, got %d", cfg.Server.Port))
	}

	drivers := []string{DriverMemory, DriverSQLite, DriverPostgres}
	if !contains(drivers, cfg.Database.Driver) {
		errs = append(errs, fault.Unknown("database.driver", cfg.Database.Driver, drivers))
	}

	levels := []string{"debug", "info", "warn", "error"}
	if !contains(levels, cfg.Logging.Level) {
		errs = append(errs, fault.Unknown("logging.level", cfg.Logging.Level, levels))
	}
	formats := []string{"json", "console"}
	if !contains(formats, cfg.Logging.Format) {
		errs = append(errs, fault.Unknown("logging.format", cfg.Logging.Format, formats))
	}

	if !strings.HasPrefix(cfg.Metrics.Path, "/") {
		errs = append(errs, fault.Config("metrics.path", "must start with /, got %q", cfg.Metrics.Path))
	}

	if cfg.Kernel.LockShards < 0 {
		errs = append(errs, fault.Config("kernel.lock_shards", "must not be negative"))
	}
	if cfg.Kernel.OpTimeout < 0 {
		errs = append(errs, fault.Config("kernel.op_timeout", "must not be negative"))
	}
	if cfg.Tables.Watch && cfg.Tables.Path == "" {
		errs = append(errs, fault.Config("tables.watch", "needs tables.path"))
	}

	return errors.Join(errs...)
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
