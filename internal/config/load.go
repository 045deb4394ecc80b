package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment variable the loader reads.
const EnvPrefix = "VOICETASK"

// DefaultMaxUploadBytes caps a single uploaded attachment at 50 MiB.
const DefaultMaxUploadBytes int64 = 50 << 20

// keys lists every setting so that AutomaticEnv can resolve it during Unmarshal.
var keys = []string{
	"server.port",
	"server.log_level",
	"server.cors_allowed_origins",
	"server.shutdown_timeout_seconds",
	"storage.driver",
	"storage.data_dir",
	"storage.attachment_dir",
	"storage.max_upload_bytes",
	"storage.lock_timeout_seconds",
	"storage.orphan_sweep_minutes",
	"storage.upload_concurrency",
	"database.url",
	"auth.jwt_secret",
	"auth.token_lifetime_minutes",
	"tasks.hide_forbidden",
	"tasks.default_page_limit",
	"tasks.max_page_limit",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.log_level", "info")
	v.SetDefault("server.cors_allowed_origins", []string{"*"})
	v.SetDefault("server.shutdown_timeout_seconds", 15)

	v.SetDefault("storage.driver", DriverFile)
	v.SetDefault("storage.data_dir", "data")
	v.SetDefault("storage.attachment_dir", "data/audio")
	v.SetDefault("storage.max_upload_bytes", DefaultMaxUploadBytes)
	v.SetDefault("storage.lock_timeout_seconds", 5)
	v.SetDefault("storage.orphan_sweep_minutes", 60)
	v.SetDefault("storage.upload_concurrency", 4)

	v.SetDefault("auth.token_lifetime_minutes", 10800)

	v.SetDefault("tasks.hide_forbidden", false)
	v.SetDefault("tasks.default_page_limit", 100)
	v.SetDefault("tasks.max_page_limit", 1000)
}

// Load reads configuration from the environment and, when configPath is not
// empty, from that YAML file. Environment variables take precedence over
// values from the file. The returned Config has been validated.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for _, key := range keys {
		if err := v.BindEnv(key); err != nil {
			return nil, fmt.Errorf("error binding environment variable for %s: %w", key, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks struct constraints and the rules that span groups.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}
	if c.Storage.Driver == DriverPostgres && c.Database.URL == "" {
		return fmt.Errorf("configuration validation failed: %w",
			errors.New("database.url is required when storage.driver is postgres"))
	}
	return nil
}
