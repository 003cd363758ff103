// © Copyright 2025-2026, Query.Farm LLC - https://query.farm
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Query-farm/metaschema-rpc/config"
	"github.com/Query-farm/metaschema-rpc/conformance"
	"github.com/Query-farm/metaschema-rpc/yggrpc"
	yggotel "github.com/Query-farm/metaschema-rpc/yggrpc/otel"
)

func runWorker(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if path, _ := cmd.Flags().GetString("write-config"); path != "" {
		if err := config.SaveConfig(cfg, path); err != nil {
			return err
		}
		cmd.Printf("wrote configuration to %s\n", path)
		return nil
	}

	logger, closer, err := config.NewLogger(cfg.Logging)
	if err != nil {
		return err
	}
	defer closer.Close()
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	server := newServer(cfg)
	if cfg.Telemetry.Stdout {
		shutdown, err := setupTelemetry(cfg.ServiceName)
		if err != nil {
			return err
		}
		defer func() {
			if err := shutdown(context.Background()); err != nil {
				slog.Warn("telemetry shutdown", "err", err)
			}
		}()
		yggotel.InstrumentServer(server, yggotel.DefaultConfig())
	}

	unixPath, _ := cmd.Flags().GetString("unix")
	switch {
	case unixPath != "":
		return serveUnix(ctx, server, unixPath)
	case cfg.HTTP.Addr != "":
		return serveHTTP(ctx, server, cfg.HTTP)
	}
	server.RunStdio()
	return nil
}

// loadConfig reads the configuration file, if any, and applies flag
// overrides on top of it.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg := config.DefaultConfig()
	if path, _ := cmd.Flags().GetString("config"); path != "" {
		var err error
		if cfg, err = config.LoadConfig(path); err != nil {
			return nil, err
		}
	}
	if cmd.Flags().Changed("http") {
		cfg.HTTP.Addr, _ = cmd.Flags().GetString("http")
	}
	if cmd.Flags().Changed("otel-stdout") {
		cfg.Telemetry.Stdout, _ = cmd.Flags().GetBool("otel-stdout")
	}
	if cmd.Flags().Changed("debug-errors") {
		cfg.DebugErrors, _ = cmd.Flags().GetBool("debug-errors")
	}
	return cfg, cfg.Validate()
}

func newServer(cfg *config.Config) *yggrpc.Server {
	server := yggrpc.NewServer()
	if cfg.ServerID != "" {
		server.SetServerID(cfg.ServerID)
	}
	server.SetServiceName(cfg.ServiceName)
	server.SetDebugErrors(cfg.DebugErrors)
	server.SetMaxMessageSize(cfg.MaxMessageSize)
	conformance.RegisterMethods(server)
	return server
}

func serveHTTP(ctx context.Context, server *yggrpc.Server, cfg config.HTTP) error {
	httpServer := yggrpc.NewHttpServer(server)
	if err := httpServer.SetCompressionLevel(cfg.CompressionLevel); err != nil {
		return err
	}

	listener, err := net.Listen("tcp", cfg.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}
	fmt.Printf("PORT:%d\n", listener.Addr().(*net.TCPAddr).Port)
	os.Stdout.Sync()

	srv := &http.Server{Handler: httpServer}
	go func() {
		<-ctx.Done()
		srv.Shutdown(context.Background())
	}()

	if err := srv.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http serve error: %w", err)
	}
	return nil
}

func serveUnix(ctx context.Context, server *yggrpc.Server, path string) error {
	os.Remove(path)
	listener, err := net.Listen("unix", path)
	if err != nil {
		return fmt.Errorf("failed to listen on unix socket: %w", err)
	}
	defer os.Remove(path)
	fmt.Printf("UNIX:%s\n", path)
	os.Stdout.Sync()

	go func() {
		<-ctx.Done()
		listener.Close()
	}()

	for {
		conn, err := listener.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("accept: %w", err)
		}
		server.ServeWithContext(ctx, conn, conn)
		conn.Close()
	}
}
