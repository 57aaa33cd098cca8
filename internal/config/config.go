package config

import "time"

// Config holds all application configuration.
// It organizes settings into logical groups for better maintainability.
type Config struct {
	Server   ServerConfig   `mapstructure:"server" validate:"required"`
	Storage  StorageConfig  `mapstructure:"storage" validate:"required"`
	Executor ExecutorConfig `mapstructure:"executor" validate:"required"`
	GitHub   GitHubConfig   `mapstructure:"github"`
}

// ServerConfig contains all management-API server settings.
type ServerConfig struct {
	Port     int    `mapstructure:"port" validate:"required,gt=0,lt=65536"`
	LogLevel string `mapstructure:"log_level" validate:"required,oneof=debug info warn error"`
}

// StorageConfig contains the durable key-value store settings.
type StorageConfig struct {
	// Path is the bbolt database file holding tasks and credentials.
	Path string `mapstructure:"path" validate:"required"`
}

// ExecutorConfig contains the task executor's timeout and retry policy.
type ExecutorConfig struct {
	TimeoutSeconds    int `mapstructure:"timeout_seconds" validate:"required,gt=0"`
	MaxRetries        int `mapstructure:"max_retries" validate:"gte=0"`
	RetryDelaySeconds int `mapstructure:"retry_delay_seconds" validate:"required,gt=0"`
}

// Timeout returns the per-run timeout as a duration.
func (c ExecutorConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// RetryDelay returns the delay between retry attempts as a duration.
func (c ExecutorConfig) RetryDelay() time.Duration {
	return time.Duration(c.RetryDelaySeconds) * time.Second
}

// GitHubConfig contains optional GitHub defaults. A token set here seeds the
// credential store at startup; tokens supplied through the API later take
// precedence.
type GitHubConfig struct {
	Token       string `mapstructure:"token"`
	DefaultRepo string `mapstructure:"default_repo"`
}
