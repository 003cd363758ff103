// © Copyright 2025-2026, Query.Farm LLC - https://query.farm
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()

	assert.Equal(t, "metaschema", config.ServiceName)
	assert.Equal(t, 64<<20, config.MaxMessageSize)
	assert.Equal(t, 3, config.HTTP.CompressionLevel)
	assert.Empty(t, config.HTTP.Addr)
	assert.Equal(t, "info", config.Logging.Level)
	assert.False(t, config.Telemetry.Stdout)
	assert.NoError(t, config.Validate())
}

func TestLoadConfig(t *testing.T) {
	t.Run("round trip", func(t *testing.T) {
		configPath := filepath.Join(t.TempDir(), "nested", "worker.yaml")
		expected := DefaultConfig()
		expected.ServerID = "worker-1"
		expected.DebugErrors = true
		expected.HTTP.Addr = "127.0.0.1:0"
		expected.Logging.Format = "json"
		expected.Telemetry.Stdout = true

		require.NoError(t, SaveConfig(expected, configPath))

		loaded, err := LoadConfig(configPath)
		require.NoError(t, err)
		assert.Equal(t, expected, loaded)

		info, err := os.Stat(configPath)
		require.NoError(t, err)
		assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
	})

	t.Run("partial file keeps defaults", func(t *testing.T) {
		configPath := filepath.Join(t.TempDir(), "worker.yaml")
		require.NoError(t, os.WriteFile(configPath, []byte("server_id: w\nhttp:\n  addr: \":8080\"\n"), 0600))

		loaded, err := LoadConfig(configPath)
		require.NoError(t, err)
		assert.Equal(t, "w", loaded.ServerID)
		assert.Equal(t, ":8080", loaded.HTTP.Addr)
		assert.Equal(t, 3, loaded.HTTP.CompressionLevel)
		assert.Equal(t, "metaschema", loaded.ServiceName)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "does not exist")
	})

	t.Run("invalid yaml", func(t *testing.T) {
		configPath := filepath.Join(t.TempDir(), "worker.yaml")
		require.NoError(t, os.WriteFile(configPath, []byte("server_id: [unterminated"), 0600))

		_, err := LoadConfig(configPath)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to parse config file")
	})

	t.Run("invalid values", func(t *testing.T) {
		configPath := filepath.Join(t.TempDir(), "worker.yaml")
		require.NoError(t, os.WriteFile(configPath, []byte("http:\n  compression_level: 40\n"), 0600))

		_, err := LoadConfig(configPath)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "compression_level")
	})
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		errSub string
	}{
		{"negative max message size", func(c *Config) { c.MaxMessageSize = -1 }, "max_message_size"},
		{"bad level", func(c *Config) { c.Logging.Level = "loud" }, "logging.level"},
		{"bad format", func(c *Config) { c.Logging.Format = "xml" }, "logging.format"},
		{"negative backups", func(c *Config) { c.Logging.MaxBackups = -2 }, "rotation"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := DefaultConfig()
			tt.mutate(c)
			err := c.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errSub)
		})
	}
}

func TestParseLevel(t *testing.T) {
	for name, want := range map[string]slog.Level{
		"":        slog.LevelInfo,
		"DEBUG":   slog.LevelDebug,
		"trace":   slog.LevelDebug,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
	} {
		got, err := ParseLevel(name)
		require.NoError(t, err, name)
		assert.Equal(t, want, got, name)
	}
}

func TestNewLoggerWritesFile(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "worker.log")
	logger, closer, err := NewLogger(Logging{Level: "warn", Format: "json", File: logPath, MaxSizeMB: 1})
	require.NoError(t, err)

	logger.Info("hidden")
	logger.Warn("shown", "k", "v")
	require.NoError(t, closer.Close())

	data, err := os.ReadFile(logPath)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "hidden")
	assert.Contains(t, string(data), `"msg":"shown"`)
	assert.Contains(t, string(data), `"k":"v"`)
}

func TestNewLoggerStderr(t *testing.T) {
	logger, closer, err := NewLogger(Logging{})
	require.NoError(t, err)
	assert.NotNil(t, logger)
	assert.NoError(t, closer.Close())

	_, _, err = NewLogger(Logging{Level: "nope"})
	assert.Error(t, err)
}
