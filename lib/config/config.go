package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// Config holds all application configuration. Loading is layered:
// built-in defaults, then an optional YAML config file, then environment
// variables (highest priority). Immutable after Load.
type Config struct {
	Server   ServerConfig   `koanf:"server"`
	Database DatabaseConfig `koanf:"database"`
	Auth     AuthConfig     `koanf:"auth"`
	Images   ImagesConfig   `koanf:"images"`
	Metadata MetadataConfig `koanf:"metadata"`
	Logging  LoggingConfig  `koanf:"logging"`
}

type ServerConfig struct {
	Host         string        `koanf:"host"`
	Port         int           `koanf:"port"`
	ReadTimeout  time.Duration `koanf:"read_timeout"`
	WriteTimeout time.Duration `koanf:"write_timeout"`
	// Per-client budget for the user search endpoint.
	SearchRatePerSec float64 `koanf:"search_rate_per_sec"`
	SearchBurst      int     `koanf:"search_burst"`
}

type DatabaseConfig struct {
	Path string `koanf:"path"`
}

type AuthConfig struct {
	// JWTSecret signs and verifies bearer tokens (HS256). Required.
	JWTSecret string `koanf:"jwt_secret"`
}

type ImagesConfig struct {
	// OpenAIKey enables the AI cover generation path. When empty the
	// deterministic placeholder generator is used instead.
	OpenAIKey string `koanf:"openai_api_key"`
}

type MetadataConfig struct {
	// TMDBAPIKey enables the metadata suggestion endpoint.
	TMDBAPIKey string `koanf:"tmdb_api_key"`
}

type LoggingConfig struct {
	Level string `koanf:"level"`
}

func defaults() Config {
	return Config{
		Server: ServerConfig{
			Host:             "0.0.0.0",
			Port:             8080,
			ReadTimeout:      30 * time.Second,
			WriteTimeout:     30 * time.Second,
			SearchRatePerSec: 5,
			SearchBurst:      10,
		},
		Database: DatabaseConfig{Path: "shelfmark.db"},
		Logging:  LoggingConfig{Level: "info"},
	}
}

// Load builds the configuration from defaults, an optional YAML file
// (SHELFMARK_CONFIG or ./config.yaml) and SHELFMARK_* environment
// variables. SHELFMARK_SERVER_PORT maps to server.port and so on.
func Load() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaults(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if path := findConfigFile(); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	envProvider := env.Provider("SHELFMARK_", ".", func(s string) string {
		s = strings.TrimPrefix(s, "SHELFMARK_")
		s = strings.ToLower(s)
		return strings.Replace(s, "_", ".", 1)
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("failed to load environment: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the loaded configuration for values the server cannot
// run without.
func (c *Config) Validate() error {
	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("auth.jwt_secret is required (set SHELFMARK_AUTH_JWT_SECRET)")
	}
	if len(c.Auth.JWTSecret) < 32 {
		return fmt.Errorf("auth.jwt_secret must be at least 32 characters")
	}
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d out of range", c.Server.Port)
	}
	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}
	return nil
}

func findConfigFile() string {
	if path := os.Getenv("SHELFMARK_CONFIG"); path != "" {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	if _, err := os.Stat("config.yaml"); err == nil {
		return "config.yaml"
	}
	return ""
}

// Addr is the host:port the HTTP server binds to.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}
