package config

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// Load configuration from environment variables and optionally config files.
// Environment variables take precedence over values from config files.
// Returns a populated Config struct or an error if loading/validation fails.
func Load() (*Config, error) {
	v := viper.New()

	// Set default values
	v.SetDefault("server.port", 8484)
	v.SetDefault("server.log_level", "info")
	v.SetDefault("storage.path", "markvault.db")
	v.SetDefault("executor.timeout_seconds", 60)
	v.SetDefault("executor.max_retries", 3)
	v.SetDefault("executor.retry_delay_seconds", 2)

	// Optional config file in the working directory
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	// Configure environment variables
	v.SetEnvPrefix("MARKVAULT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Explicitly bind environment variables so they resolve even without a
	// config file entry for the same key
	bindEnvs := []struct {
		key    string
		envVar string
	}{
		{"server.port", "MARKVAULT_SERVER_PORT"},
		{"server.log_level", "MARKVAULT_SERVER_LOG_LEVEL"},
		{"storage.path", "MARKVAULT_STORAGE_PATH"},
		{"executor.timeout_seconds", "MARKVAULT_EXECUTOR_TIMEOUT_SECONDS"},
		{"executor.max_retries", "MARKVAULT_EXECUTOR_MAX_RETRIES"},
		{"executor.retry_delay_seconds", "MARKVAULT_EXECUTOR_RETRY_DELAY_SECONDS"},
		{"github.token", "MARKVAULT_GITHUB_TOKEN"},
		{"github.default_repo", "MARKVAULT_GITHUB_DEFAULT_REPO"},
	}
	for _, env := range bindEnvs {
		if err := v.BindEnv(env.key, env.envVar); err != nil {
			return nil, fmt.Errorf("error binding environment variable %s: %w", env.envVar, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	validate := validator.New()
	if err := validate.Struct(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}
