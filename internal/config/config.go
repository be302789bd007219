// Package config loads protoreg settings from file, environment and flags.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. PROTOREG_HTTP_ADDR
const EnvPrefix = "PROTOREG"

// Config represents the protoreg configuration
type Config struct {
	Schemas    SchemasConfig    `mapstructure:"schemas"`
	Validation ValidationConfig `mapstructure:"validation"`
	HTTP       HTTPConfig       `mapstructure:"http"`
	AMQP       AMQPConfig       `mapstructure:"amqp"`
	Log        LogConfig        `mapstructure:"log"`
}

// SchemasConfig locates the schema documents
type SchemasConfig struct {
	Dir string `mapstructure:"dir"`
}

// ValidationConfig represents validator configuration
type ValidationConfig struct {
	Strict bool `mapstructure:"strict"`
}

// HTTPConfig represents HTTP API configuration
type HTTPConfig struct {
	Addr        string        `mapstructure:"addr"`
	ReadTimeout time.Duration `mapstructure:"read_timeout"`
}

// AMQPConfig represents the broker validation service configuration.
// An empty URL disables the service.
type AMQPConfig struct {
	URL      string `mapstructure:"url"`
	Queue    string `mapstructure:"queue"`
	Prefetch int    `mapstructure:"prefetch"`
}

// Enabled reports whether a broker URL is configured
func (c AMQPConfig) Enabled() bool {
	return c.URL != ""
}

// LogConfig represents logging configuration
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// New returns a viper instance with protoreg defaults and environment
// bindings. Callers may bind flags to it before calling Load.
func New() *viper.Viper {
	v := viper.New()

	v.SetDefault("schemas.dir", "schemas")
	v.SetDefault("validation.strict", true)
	v.SetDefault("http.addr", ":8080")
	v.SetDefault("http.read_timeout", 5*time.Second)
	v.SetDefault("amqp.url", "")
	v.SetDefault("amqp.queue", "protoreg.validate")
	v.SetDefault("amqp.prefetch", 10)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// Load reads the config file, if any, and decodes the settings. An empty
// file searches for protoreg.yaml in the working directory; a missing
// search result is not an error, a missing explicit file is.
func Load(v *viper.Viper, file string) (*Config, error) {
	if file != "" {
		v.SetConfigFile(file)
	} else {
		v.SetConfigName("protoreg")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if file != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Schemas.Dir == "" {
		return fmt.Errorf("schemas.dir cannot be empty")
	}
	if c.HTTP.ReadTimeout < 0 {
		return fmt.Errorf("http.read_timeout cannot be negative, got %s", c.HTTP.ReadTimeout)
	}
	if c.AMQP.Enabled() {
		if c.AMQP.Queue == "" {
			return fmt.Errorf("amqp.queue is required when amqp.url is set")
		}
		if c.AMQP.Prefetch < 0 {
			return fmt.Errorf("amqp.prefetch cannot be negative, got %d", c.AMQP.Prefetch)
		}
	}
	if _, err := ParseLevel(c.Log.Level); err != nil {
		return err
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("log.format must be text or json, got %q", c.Log.Format)
	}
	return nil
}

// ParseLevel converts a level name to a slog level
func ParseLevel(level string) (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(level)); err != nil {
		return 0, fmt.Errorf("log.level %q is not a valid level: %w", level, err)
	}
	return l, nil
}
