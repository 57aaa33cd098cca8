package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupEnv sets up environment variables for testing
func setupEnv(t *testing.T, envVars map[string]string) func() {
	// Save current environment values
	originalValues := make(map[string]string)
	for name := range envVars {
		originalValues[name] = os.Getenv(name)
	}

	// Set new environment variables
	for name, value := range envVars {
		err := os.Setenv(name, value)
		require.NoError(t, err, "Failed to set environment variable %s", name)
	}

	// Return cleanup function
	return func() {
		for name, value := range originalValues {
			if value == "" {
				os.Unsetenv(name)
			} else {
				os.Setenv(name, value)
			}
		}
	}
}

// TestLoadDefaults verifies that Load works with no environment set at all:
// every setting has a usable default.
func TestLoadDefaults(t *testing.T) {
	cleanup := setupEnv(t, map[string]string{
		"MARKVAULT_SERVER_PORT":      "",
		"MARKVAULT_SERVER_LOG_LEVEL": "",
		"MARKVAULT_STORAGE_PATH":     "",
	})
	defer cleanup()

	cfg, err := Load()

	require.NoError(t, err, "Load() should not return an error with default values")
	require.NotNil(t, cfg, "Load() should return a non-nil config")
	assert.Equal(t, 8484, cfg.Server.Port, "Default server port should be 8484")
	assert.Equal(t, "info", cfg.Server.LogLevel, "Default log level should be 'info'")
	assert.Equal(t, "markvault.db", cfg.Storage.Path, "Default storage path should be markvault.db")
	assert.Equal(t, 60*time.Second, cfg.Executor.Timeout())
	assert.Equal(t, 3, cfg.Executor.MaxRetries)
	assert.Equal(t, 2*time.Second, cfg.Executor.RetryDelay())
}

// TestLoadFromEnv verifies that Load correctly reads values from environment variables.
func TestLoadFromEnv(t *testing.T) {
	cleanup := setupEnv(t, map[string]string{
		"MARKVAULT_SERVER_PORT":                  "9090",
		"MARKVAULT_SERVER_LOG_LEVEL":             "debug",
		"MARKVAULT_STORAGE_PATH":                 "/var/lib/markvault/data.db",
		"MARKVAULT_EXECUTOR_TIMEOUT_SECONDS":     "120",
		"MARKVAULT_EXECUTOR_MAX_RETRIES":         "5",
		"MARKVAULT_EXECUTOR_RETRY_DELAY_SECONDS": "10",
		"MARKVAULT_GITHUB_TOKEN":                 "ghp_testtoken",
		"MARKVAULT_GITHUB_DEFAULT_REPO":          "octocat/bookmarks",
	})
	defer cleanup()

	cfg, err := Load()

	require.NoError(t, err, "Load() should not return an error with valid environment variables")
	require.NotNil(t, cfg, "Load() should return a non-nil config")
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "debug", cfg.Server.LogLevel)
	assert.Equal(t, "/var/lib/markvault/data.db", cfg.Storage.Path)
	assert.Equal(t, 120*time.Second, cfg.Executor.Timeout())
	assert.Equal(t, 5, cfg.Executor.MaxRetries)
	assert.Equal(t, 10*time.Second, cfg.Executor.RetryDelay())
	assert.Equal(t, "ghp_testtoken", cfg.GitHub.Token)
	assert.Equal(t, "octocat/bookmarks", cfg.GitHub.DefaultRepo)
}

// TestLoadValidationErrors verifies that Load rejects invalid configuration.
func TestLoadValidationErrors(t *testing.T) {
	testCases := []struct {
		name           string
		envVars        map[string]string
		errorSubstring string
	}{
		{
			name: "Invalid port number",
			envVars: map[string]string{
				"MARKVAULT_SERVER_PORT": "999999", // Port out of range
			},
			errorSubstring: "validation failed",
		},
		{
			name: "Invalid log level",
			envVars: map[string]string{
				"MARKVAULT_SERVER_LOG_LEVEL": "verbose",
			},
			errorSubstring: "validation failed",
		},
		{
			name: "Non-positive executor timeout",
			envVars: map[string]string{
				"MARKVAULT_EXECUTOR_TIMEOUT_SECONDS": "-1",
			},
			errorSubstring: "validation failed",
		},
		{
			name: "Negative retry count",
			envVars: map[string]string{
				"MARKVAULT_EXECUTOR_MAX_RETRIES": "-2",
			},
			errorSubstring: "validation failed",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			cleanup := setupEnv(t, tc.envVars)
			defer cleanup()

			cfg, err := Load()

			require.Error(t, err, "Load() should return an error with invalid configuration")
			assert.Contains(t, err.Error(), tc.errorSubstring)
			assert.Nil(t, cfg, "Config should be nil when an error occurs")
		})
	}
}
