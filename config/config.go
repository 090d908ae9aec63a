// Package config loads the server configuration from an optional YAML file.
//
// Missing keys keep their defaults, so an empty or absent file is a valid
// configuration. Runtime tunables (targets, revenue floor, location) live in
// the settings store instead and are not part of this file.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
	Engine    EngineConfig    `yaml:"engine"`
	Redis     RedisConfig     `yaml:"redis"`
	Log       LogConfig       `yaml:"log"`
}

type ServerConfig struct {
	Port int `yaml:"port"`
}

type DatabaseConfig struct {
	Path string `yaml:"path"`
}

type SchedulerConfig struct {
	Enabled      bool          `yaml:"enabled"`
	Interval     time.Duration `yaml:"interval"`
	InitialDelay time.Duration `yaml:"initial_delay"`
}

// EngineConfig seeds the location and country used when the settings store
// has none.
type EngineConfig struct {
	ProviderTimeout time.Duration `yaml:"provider_timeout"`
	CountryCode     string        `yaml:"country_code"`
	Latitude        *float64      `yaml:"latitude"`
	Longitude       *float64      `yaml:"longitude"`
}

// RedisConfig enables the provider response cache when Addr is set.
type RedisConfig struct {
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	TTL      time.Duration `yaml:"ttl"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Server:   ServerConfig{Port: 8080},
		Database: DatabaseConfig{Path: "shift-forecast.db"},
		Scheduler: SchedulerConfig{
			Enabled:      true,
			Interval:     24 * time.Hour,
			InitialDelay: 10 * time.Second,
		},
		Engine: EngineConfig{
			ProviderTimeout: 8 * time.Second,
			CountryCode:     "ES",
		},
		Redis: RedisConfig{TTL: 6 * time.Hour},
		Log:   LogConfig{Level: "info", Format: "json"},
	}
}

// Load reads path over the defaults. An empty path returns the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := Parse(raw, &cfg); err != nil {
		return cfg, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes raw YAML into cfg and validates the result. Unknown keys
// are rejected.
func Parse(raw []byte, cfg *Config) error {
	if strings.TrimSpace(string(raw)) != "" {
		dec := yaml.NewDecoder(strings.NewReader(string(raw)))
		dec.KnownFields(true)
		if err := dec.Decode(cfg); err != nil {
			return fmt.Errorf("decode: %w", err)
		}
	}
	return cfg.Validate()
}

// Validate checks the values that would otherwise fail later at startup.
func (c Config) Validate() error {
	var errs []error
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port %d out of range", c.Server.Port))
	}
	if strings.TrimSpace(c.Database.Path) == "" {
		errs = append(errs, errors.New("database.path is required"))
	}
	if c.Scheduler.Enabled && c.Scheduler.Interval <= 0 {
		errs = append(errs, errors.New("scheduler.interval must be positive"))
	}
	if (c.Engine.Latitude == nil) != (c.Engine.Longitude == nil) {
		errs = append(errs, errors.New("engine.latitude and engine.longitude must be set together"))
	}
	if c.Engine.ProviderTimeout < 0 {
		errs = append(errs, errors.New("engine.provider_timeout must not be negative"))
	}
	switch strings.ToLower(c.Log.Format) {
	case "json", "text":
	default:
		errs = append(errs, fmt.Errorf("log.format %q must be json or text", c.Log.Format))
	}
	return errors.Join(errs...)
}

// Addr is the HTTP listen address.
func (c Config) Addr() string { return fmt.Sprintf(":%d", c.Server.Port) }
