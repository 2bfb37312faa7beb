// Package config provides configuration loading and validation.
package config

import (
	"fmt"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/artpar/subroutine/core/entity"
	"github.com/artpar/subroutine/core/schema"
)

// Config is the root configuration structure.
type Config struct {
	Engine      Engine            `yaml:"engine"`
	Definitions DefinitionsConfig `yaml:"definitions"`
	Entities    []entity.Type     `yaml:"entities"`
	Database    DatabaseConfig    `yaml:"database"`
	Server      ServerConfig      `yaml:"server"`
	Auth        AuthConfig        `yaml:"auth"`
	Logging     LoggingConfig     `yaml:"logging"`
	Metrics     MetricsConfig     `yaml:"metrics"`
}

// Engine holds the process-wide switches read by every operation.
// It is set once at startup and never changed while operations run.
type Engine struct {
	// IncludeDefaultsInParams makes params views merge defaults under
	// provided values. Schemas may override it.
	IncludeDefaultsInParams bool `yaml:"include_defaults_in_params"`

	// PreserveTimePrecision keeps sub-second precision on every time cast.
	PreserveTimePrecision bool `yaml:"preserve_time_precision"`

	// InheritableFieldOptions are the options association key fields and
	// copied fields inherit. Nil means schema.DefaultInheritableOptions.
	InheritableFieldOptions []string `yaml:"inheritable_field_options"`
}

// InheritableOptions returns the configured inheritable options, or the
// defaults when none are configured.
func (e Engine) InheritableOptions() []string {
	if e.InheritableFieldOptions == nil {
		return slices.Clone(schema.DefaultInheritableOptions)
	}
	return slices.Clone(e.InheritableFieldOptions)
}

// DefinitionsConfig locates YAML operation definitions.
type DefinitionsConfig struct {
	Dir string `yaml:"dir"`
}

// DatabaseConfig selects the entity lookup backend.
type DatabaseConfig struct {
	Driver string `yaml:"driver"` // "memory", "sqlite" or "postgres"
	DSN    string `yaml:"dsn"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Host         string        `yaml:"host"`
	Port         int           `yaml:"port"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

// Addr returns host:port.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// AuthConfig configures bearer tokens naming the current user.
type AuthConfig struct {
	TokenSecret string        `yaml:"token_secret"` // empty generates a per-process secret
	TokenTTL    time.Duration `yaml:"token_ttl"`
	UserType    string        `yaml:"user_type"`
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
		return nil, fmt.Errorf("parse config: %w", err)
	}

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
//	SUBROUTINE_INCLUDE_DEFAULTS_IN_PARAMS - Merge defaults into params (default: false)
//	SUBROUTINE_PRESERVE_TIME_PRECISION    - Keep sub-second time precision (default: false)
//	SUBROUTINE_DEFINITIONS_DIR            - YAML operation definitions directory
//	SUBROUTINE_DATABASE_DRIVER            - memory, sqlite or postgres (default: memory)
//	SUBROUTINE_DATABASE_DSN               - Database DSN
//	SUBROUTINE_SERVER_HOST                - Server host (default: 0.0.0.0)
//	SUBROUTINE_SERVER_PORT                - Server port (default: 8080)
//	SUBROUTINE_TOKEN_SECRET               - Bearer token signing secret
//	SUBROUTINE_TOKEN_TTL                  - Bearer token lifetime (default: 24h)
//	SUBROUTINE_LOG_LEVEL                  - debug, info, warn, error (default: info)
//	SUBROUTINE_LOG_FORMAT                 - json or console (default: json)
//	SUBROUTINE_METRICS_ENABLED            - Enable /metrics endpoint (default: false)
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

// applyEnvOverrides applies SUBROUTINE_* environment variables to the config.
// Environment variables always override file-based configuration.
func applyEnvOverrides(cfg *Config) {
	// Engine
	if v := os.Getenv("SUBROUTINE_INCLUDE_DEFAULTS_IN_PARAMS"); v != "" {
		cfg.Engine.IncludeDefaultsInParams = parseBool(v)
	}
	if v := os.Getenv("SUBROUTINE_PRESERVE_TIME_PRECISION"); v != "" {
		cfg.Engine.PreserveTimePrecision = parseBool(v)
	}
	if v := os.Getenv("SUBROUTINE_INHERITABLE_FIELD_OPTIONS"); v != "" {
		cfg.Engine.InheritableFieldOptions = splitList(v)
	}

	if v := os.Getenv("SUBROUTINE_DEFINITIONS_DIR"); v != "" {
		cfg.Definitions.Dir = v
	}

	// Database
	if v := os.Getenv("SUBROUTINE_DATABASE_DRIVER"); v != "" {
		cfg.Database.Driver = v
	}
	if v := os.Getenv("SUBROUTINE_DATABASE_DSN"); v != "" {
		cfg.Database.DSN = v
	}

	// Server
	if v := os.Getenv("SUBROUTINE_SERVER_HOST"); v != "" {
		cfg.Server.Host = v
	}
	if v := os.Getenv("SUBROUTINE_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("SUBROUTINE_SERVER_READ_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Server.ReadTimeout = d
		}
	}
	if v := os.Getenv("SUBROUTINE_SERVER_WRITE_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Server.WriteTimeout = d
		}
	}

	// Auth
	if v := os.Getenv("SUBROUTINE_TOKEN_SECRET"); v != "" {
		cfg.Auth.TokenSecret = v
	}
	if v := os.Getenv("SUBROUTINE_TOKEN_TTL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Auth.TokenTTL = d
		}
	}

	// Logging
	if v := os.Getenv("SUBROUTINE_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("SUBROUTINE_LOG_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}

	// Metrics
	if v := os.Getenv("SUBROUTINE_METRICS_ENABLED"); v != "" {
		cfg.Metrics.Enabled = parseBool(v)
	}
	if v := os.Getenv("SUBROUTINE_METRICS_PATH"); v != "" {
		cfg.Metrics.Path = v
	}
}

// parseBool parses a boolean from common string values.
func parseBool(v string) bool {
	v = strings.ToLower(strings.TrimSpace(v))
	return v == "true" || v == "1" || v == "yes" || v == "on"
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func setDefaults(cfg *Config) {
	if cfg.Database.Driver == "" {
		cfg.Database.Driver = "memory"
	}
	if cfg.Database.Driver == "sqlite" && cfg.Database.DSN == "" {
		cfg.Database.DSN = "subroutine.db"
	}

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

	if cfg.Auth.TokenTTL == 0 {
		cfg.Auth.TokenTTL = 24 * time.Hour
	}
	if cfg.Auth.UserType == "" {
		cfg.Auth.UserType = "User"
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
}

func validate(cfg *Config) error {
	validDrivers := map[string]bool{"memory": true, "sqlite": true, "postgres": true}
	if !validDrivers[cfg.Database.Driver] {
		return fmt.Errorf("database.driver must be one of: memory, sqlite, postgres, got %q", cfg.Database.Driver)
	}
	if cfg.Database.Driver == "postgres" && cfg.Database.DSN == "" {
		return fmt.Errorf("database.dsn is required when database.driver is 'postgres'")
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[cfg.Logging.Level] {
		return fmt.Errorf("logging.level must be one of: debug, info, warn, error, got %q", cfg.Logging.Level)
	}
	if cfg.Logging.Format != "json" && cfg.Logging.Format != "console" {
		return fmt.Errorf("logging.format must be 'json' or 'console', got %q", cfg.Logging.Format)
	}

	for _, opt := range cfg.Engine.InheritableFieldOptions {
		if !slices.Contains(schema.DefaultInheritableOptions, opt) {
			return fmt.Errorf("engine.inheritable_field_options: unknown option %q", opt)
		}
	}

	seen := make(map[string]bool)
	for i, t := range cfg.Entities {
		if t.Name == "" {
			return fmt.Errorf("entities[%d]: name is required", i)
		}
		if seen[t.Name] {
			return fmt.Errorf("entities[%d]: duplicate entity type %q", i, t.Name)
		}
		seen[t.Name] = true
	}

	return nil
}

// EntityTypes builds the entity type registry, registering parents first.
func (c *Config) EntityTypes() (*entity.Types, error) {
	ts := entity.NewTypes()
	pending := slices.Clone(c.Entities)
	for len(pending) > 0 {
		var next []entity.Type
		for _, t := range pending {
			if t.Parent != "" {
				if _, ok := ts.Lookup(t.Parent); !ok {
					next = append(next, t)
					continue
				}
			}
			if err := ts.Register(t); err != nil {
				return nil, err
			}
		}
		if len(next) == len(pending) {
			return nil, fmt.Errorf("entity type %s: unknown parent %s", next[0].Name, next[0].Parent)
		}
		pending = next
	}
	return ts, nil
}
