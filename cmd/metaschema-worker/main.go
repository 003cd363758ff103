// © Copyright 2025-2026, Query.Farm LLC - https://query.farm
// SPDX-License-Identifier: Apache-2.0

// Command metaschema-worker serves the conformance methods over stdio, a
// unix socket or HTTP.
package main

import (
	"os"

	"github.com/spf13/cobra"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "metaschema-worker",
	Short: "Serve metaschema RPC methods",
	Long: `metaschema-worker registers the conformance methods and serves them.

By default requests are read from stdin and replies written to stdout, so
the worker can be launched as a subprocess. With --http it listens on TCP
and prints PORT:<n>; with --unix it listens on a socket and prints
UNIX:<path>.

Examples:
  metaschema-worker
  metaschema-worker --http 127.0.0.1:0
  metaschema-worker --config worker.yaml --otel-stdout
  metaschema-worker --http :8080 --write-config worker.yaml`,
	SilenceUsage: true,
	RunE:         runWorker,
}

func init() {
	rootCmd.Flags().StringP("config", "c", "", "YAML configuration file")
	rootCmd.Flags().String("http", "", "serve HTTP on this address instead of stdio")
	rootCmd.Flags().String("unix", "", "serve on this unix socket instead of stdio")
	rootCmd.Flags().Bool("otel-stdout", false, "export traces and metrics to stderr")
	rootCmd.Flags().Bool("debug-errors", false, "include stack traces in error replies")
	rootCmd.Flags().String("write-config", "", "write the resolved configuration to this file and exit")
	rootCmd.MarkFlagsMutuallyExclusive("http", "unix")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
