// Package config provides process configuration using Viper.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds the settings of the formwizard binary.
type Config struct {
	Addr            string        `mapstructure:"addr" yaml:"addr"`
	Database        string        `mapstructure:"database" yaml:"database"`
	DefinitionsDir  string        `mapstructure:"definitions_dir" yaml:"definitions_dir"`
	Wizard          string        `mapstructure:"wizard" yaml:"wizard"`
	LogLevel        string        `mapstructure:"log_level" yaml:"log_level"`
	LogDevelopment  bool          `mapstructure:"log_development" yaml:"log_development"`
	PreviewPrefix   string        `mapstructure:"preview_prefix" yaml:"preview_prefix"`
	SessionTTL      time.Duration `mapstructure:"session_ttl" yaml:"session_ttl"`
	SweepInterval   time.Duration `mapstructure:"sweep_interval" yaml:"sweep_interval"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
}

// keys lists every setting bound to a FORMWIZARD_ environment variable.
var keys = []string{
	"addr",
	"database",
	"definitions_dir",
	"wizard",
	"log_level",
	"log_development",
	"preview_prefix",
	"session_ttl",
	"sweep_interval",
	"shutdown_timeout",
}

// New returns a viper instance with defaults and environment bindings. The
// CLI binds its flags on top before calling Decode.
func New() (*viper.Viper, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	v.SetDefault("addr", ":8080")
	v.SetDefault("database", "file:formwizard.db?_pragma=foreign_keys(1)")
	v.SetDefault("definitions_dir", "")
	v.SetDefault("wizard", "create-company")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_development", false)
	v.SetDefault("preview_prefix", "/previews/")
	v.SetDefault("session_ttl", 30*time.Minute)
	v.SetDefault("sweep_interval", time.Minute)
	v.SetDefault("shutdown_timeout", 10*time.Second)

	v.SetEnvPrefix("FORMWIZARD")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	for _, key := range keys {
		if err := v.BindEnv(key, "FORMWIZARD_"+strings.ToUpper(key)); err != nil {
			return nil, fmt.Errorf("binding %s env: %w", key, err)
		}
	}
	return v, nil
}

// ReadFile merges the YAML file at path into v. An empty path falls back to
// ProjectPath when that file exists.
func ReadFile(v *viper.Viper, path string) error {
	if path == "" {
		if !fileExists(ProjectPath()) {
			return nil
		}
		path = ProjectPath()
	}
	v.SetConfigFile(path)
	if err := v.MergeInConfig(); err != nil {
		return fmt.Errorf("reading config %s: %w", path, err)
	}
	return nil
}

// Decode unmarshals v into a Config and checks it.
func Decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Load reads defaults, the optional config file and the environment.
func Load(path string) (*Config, error) {
	v, err := New()
	if err != nil {
		return nil, err
	}
	if err := ReadFile(v, path); err != nil {
		return nil, err
	}
	return Decode(v)
}

// Validate rejects settings the binary cannot run with.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Database) == "" {
		return fmt.Errorf("config: database must not be empty")
	}
	if strings.TrimSpace(c.Wizard) == "" {
		return fmt.Errorf("config: wizard must not be empty")
	}
	if c.SessionTTL < 0 || c.SweepInterval < 0 || c.ShutdownTimeout < 0 {
		return fmt.Errorf("config: durations must not be negative")
	}
	return nil
}

// ProjectPath returns the project-local config path.
func ProjectPath() string {
	return "formwizard.yml"
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
