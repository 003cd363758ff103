// © Copyright 2025-2026, Query.Farm LLC - https://query.farm
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Query-farm/metaschema-rpc/config"
	"github.com/Query-farm/metaschema-rpc/yggrpc"
)

func TestLoadConfigAppliesFlags(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "worker.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte("server_id: from-file\nhttp:\n  addr: \"127.0.0.1:9000\"\n"), 0600))

	require.NoError(t, rootCmd.ParseFlags([]string{"--config", configPath, "--http", "127.0.0.1:0", "--debug-errors"}))
	cfg, err := loadConfig(rootCmd)
	require.NoError(t, err)

	assert.Equal(t, "from-file", cfg.ServerID)
	assert.Equal(t, "127.0.0.1:0", cfg.HTTP.Addr)
	assert.True(t, cfg.DebugErrors)
	assert.False(t, cfg.Telemetry.Stdout)
}

func TestWriteConfig(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "out", "worker.yaml")
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	t.Cleanup(func() { rootCmd.SetOut(nil) })

	require.NoError(t, rootCmd.ParseFlags([]string{"--config=", "--http", ":8080", "--debug-errors", "--write-config", configPath}))
	t.Cleanup(func() { _ = rootCmd.Flags().Set("write-config", "") })
	require.NoError(t, runWorker(rootCmd, nil))
	assert.Contains(t, out.String(), configPath)

	cfg, err := config.LoadConfig(configPath)
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.HTTP.Addr)
	assert.True(t, cfg.DebugErrors)
	assert.Equal(t, "metaschema", cfg.ServiceName)
}

func TestNewServerServesConformance(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.ServerID = "worker-test"
	server := newServer(cfg)

	var reqs, resps bytes.Buffer
	client, err := yggrpc.NewFormatClient(&resps, &reqs, "fib", "%d", "%d %d")
	require.NoError(t, err)
	require.NoError(t, client.Send(context.Background(), 12))
	server.Serve(&reqs, &resps)

	var n, f int64
	_, err = client.Recv(context.Background(), false, &n, &f)
	require.NoError(t, err)
	assert.Equal(t, int64(144), f)
}

func TestSetupTelemetry(t *testing.T) {
	shutdown, err := setupTelemetry("worker-test")
	require.NoError(t, err)
	assert.NoError(t, shutdown(context.Background()))
}
