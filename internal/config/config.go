// Package config loads svcdeps settings from a config file, SVCDEPS_*
// environment variables and command-line flags, in increasing precedence.
//
// Recognised files are .svcdeps.yaml / .svcdeps.toml / .svcdeps.json in the
// working directory, or any file passed with --config.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment variable, e.g. SVCDEPS_DB.
const EnvPrefix = "SVCDEPS"

// Config is the resolved configuration of a run.
type Config struct {
	// DB is the fact database path.
	DB string `mapstructure:"db"`

	// Dir is the project directory scanned by extract.
	Dir string `mapstructure:"dir"`

	// Namespace is the artifact group treated as in-house services.
	Namespace string `mapstructure:"namespace"`

	Gradle GradleConfig `mapstructure:"gradle"`
	Log    LogConfig    `mapstructure:"log"`
	Watch  WatchConfig  `mapstructure:"watch"`
	Serve  ServeConfig  `mapstructure:"serve"`
}

// GradleConfig controls the build tool invocation.
type GradleConfig struct {
	Command       string        `mapstructure:"command"`
	Configuration string        `mapstructure:"configuration"`
	Timeout       time.Duration `mapstructure:"timeout"`
}

// LogConfig controls diagnostics. An empty File logs to stderr.
type LogConfig struct {
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
	Verbose    bool   `mapstructure:"verbose"`
}

// WatchConfig controls re-extraction on build file changes.
type WatchConfig struct {
	Debounce time.Duration `mapstructure:"debounce"`
}

// ServeConfig controls the dashboard server.
type ServeConfig struct {
	Port int `mapstructure:"port"`
}

// SetDefaults registers every key with its default value.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("db", "dependencies.db")
	v.SetDefault("dir", ".")
	v.SetDefault("namespace", "com.example")
	v.SetDefault("gradle.command", "gradle")
	v.SetDefault("gradle.configuration", "compileClasspath")
	v.SetDefault("gradle.timeout", "5m")
	v.SetDefault("log.file", "")
	v.SetDefault("log.max_size_mb", 10)
	v.SetDefault("log.max_backups", 3)
	v.SetDefault("log.max_age_days", 28)
	v.SetDefault("log.verbose", false)
	v.SetDefault("watch.debounce", "500ms")
	v.SetDefault("serve.port", 8080)
}

// NewViper returns a viper instance with defaults and environment binding.
func NewViper() *viper.Viper {
	v := viper.New()
	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// Load reads the optional config file and decodes the merged settings.
// If path is empty, .svcdeps.* is looked up in searchDir; a missing file
// is not an error. An explicit path that cannot be read is.
func Load(v *viper.Viper, path, searchDir string) (*Config, error) {
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName(".svcdeps")
		if searchDir == "" {
			searchDir = "."
		}
		v.AddConfigPath(searchDir)
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks values that would otherwise fail deep inside a run.
func (c *Config) Validate() error {
	if c.DB == "" {
		return fmt.Errorf("invalid config: db path is required")
	}
	if c.Namespace == "" {
		return fmt.Errorf("invalid config: namespace is required")
	}
	if c.Gradle.Command == "" {
		return fmt.Errorf("invalid config: gradle.command is required")
	}
	if c.Serve.Port < 0 || c.Serve.Port > 65535 {
		return fmt.Errorf("invalid config: serve.port %d out of range", c.Serve.Port)
	}
	return nil
}

// ConfigFileUsed reports which file, if any, was loaded.
func ConfigFileUsed(v *viper.Viper) string {
	return v.ConfigFileUsed()
}
