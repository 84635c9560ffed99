// Command wal-perf drives the wal package from the command line: create,
// append, range, bench, and status subcommands, built in cmd/queue's shape
// (version injection via ldflags, top-level panic recovery).
package main

// ============================================================================
// wal-perf - Main Entry Point
// ============================================================================
//
// File: cmd/wal-perf/main.go
// Purpose: Application entry point and CLI initialization
//
// Responsibilities:
//   1. Version Management - Inject build info via ldflags
//   2. Panic Recovery - Catch unexpected panics gracefully
//   3. CLI Setup - Build and configure the Cobra command tree
//   4. Error Handling - Unified command execution error handling
//
// Version Injection:
//   Variables injected at build time via -ldflags:
//   go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
//
// Usage:
//   ./wal-perf create              # Start a fresh journal set
//   ./wal-perf append -f ops.txt    # Submit ops from a file
//   ./wal-perf range --from 1 --to 10
//   ./wal-perf bench
//   ./wal-perf status
//
// ============================================================================

import (
	"fmt"
	"os"

	"github.com/ChuLiYu/wral/internal/cli"
)

var (
	version = "1.0.0"
	commit  = "dev"
	date    = "unknown"
)

func main() {
	defer func() {
		if r := recover(); r != nil {
			fmt.Fprintf(os.Stderr, "Fatal error: %v\n", r)
			os.Exit(1)
		}
	}()

	rootCmd := cli.BuildCLI()
	rootCmd.Version = fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
