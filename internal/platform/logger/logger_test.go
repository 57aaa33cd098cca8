// Package logger_test contains tests for the logger package
package logger_test

import (
	"context"
	"log/slog"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/markvault/markvault/internal/config"
	"github.com/markvault/markvault/internal/platform/logger"
)

func restoreDefaultLogger() {
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, nil)))
}

func TestSetupLogLevels(t *testing.T) {
	defer restoreDefaultLogger()
	ctx := context.Background()

	cases := []struct {
		configured string
		minLevel   slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"error", slog.LevelError},
		{"WARN", slog.LevelWarn}, // case-insensitive
	}

	for _, tc := range cases {
		t.Run(tc.configured, func(t *testing.T) {
			log := logger.Setup(config.ServerConfig{Port: 8484, LogLevel: tc.configured})
			require.NotNil(t, log)

			assert.True(t, log.Handler().Enabled(ctx, tc.minLevel),
				"configured level itself must be enabled")
			if tc.minLevel > slog.LevelDebug {
				assert.False(t, log.Handler().Enabled(ctx, tc.minLevel-1),
					"levels below the configured one must be disabled")
			}
		})
	}
}

func TestSetupInvalidLevelFallsBackToInfo(t *testing.T) {
	defer restoreDefaultLogger()
	ctx := context.Background()

	log := logger.Setup(config.ServerConfig{Port: 8484, LogLevel: "verbose"})
	require.NotNil(t, log)
	assert.True(t, log.Handler().Enabled(ctx, slog.LevelInfo))
	assert.False(t, log.Handler().Enabled(ctx, slog.LevelDebug))
}

func TestSetupInstallsDefaultLogger(t *testing.T) {
	defer restoreDefaultLogger()

	log := logger.Setup(config.ServerConfig{Port: 8484, LogLevel: "info"})
	assert.Same(t, log.Handler(), slog.Default().Handler())
}
