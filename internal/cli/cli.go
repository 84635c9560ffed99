// Package cli builds the wal-perf command tree: a small Cobra-based wrapper
// around the wal package for creating, appending to, scanning, and
// benchmarking a journal set from the command line.
package cli

// ============================================================================
// wal-perf CLI - Command Line Interface
// ============================================================================
//
// Package: internal/cli
// File: cli.go
// Purpose: Drive the wal package from the command line via a Cobra tree
//
// Command Structure:
//   wal-perf                        # Root command
//   ├── create                      # Start a fresh journal set
//   ├── append                      # Submit ops from a file or stdin
//   │   └── --file, -f             # Input file (default: stdin)
//   ├── range                       # Print entries in a seqno range
//   │   └── --from, --to           # Inclusive bounds (0 = unbounded)
//   ├── bench                       # Hammer AddOp, report throughput
//   ├── status                      # Summarize entry count/last seqno
//   └── --config, -c               # Config file (all subcommands)
//
// Configuration Management:
//   Uses YAML config (default: configs/wal-perf.yaml), loaded through
//   internal/config. Missing config files fall back to config.Default().
//
// ============================================================================

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/ChuLiYu/wral/internal/config"
	"github.com/ChuLiYu/wral/internal/storage/wal"
	"github.com/spf13/cobra"
)

var configFile string

// BuildCLI assembles the root wal-perf command and its subcommands.
func BuildCLI() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "wal-perf",
		Short: "Create, inspect, and benchmark a wral journal set",
		Long: `wal-perf drives the wal package from the command line:
- create: start a fresh journal set
- append: submit ops read from a file or stdin
- range: print entries in a seqno range
- bench: hammer AddOp from concurrent goroutines and report throughput
- status: summarize an existing journal set`,
		Version: "1.0.0",
	}

	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "configs/wal-perf.yaml", "config file path")

	rootCmd.AddCommand(buildCreateCommand())
	rootCmd.AddCommand(buildAppendCommand())
	rootCmd.AddCommand(buildRangeCommand())
	rootCmd.AddCommand(buildBenchCommand())
	rootCmd.AddCommand(buildStatusCommand())

	return rootCmd
}

func loadConfig() (*config.Config, error) {
	if configFile == "" {
		return config.Default(), nil
	}
	cfg, err := config.Load(configFile)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return config.Default(), nil
		}
		return nil, err
	}
	return cfg, nil
}

func walConfigFrom(cfg *config.Config) wal.Config {
	return wal.Config{
		Name:         cfg.WAL.Name,
		Dir:          cfg.WAL.Dir,
		JournalLimit: cfg.WAL.JournalLimit,
		Fsync:        cfg.WAL.Fsync,
	}
}

func maybeServeMetrics(cfg *config.Config, collector *wal.Collector) {
	if !cfg.Metrics.Enabled {
		return
	}
	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", collector.Handler())
		addr := fmt.Sprintf(":%d", cfg.Metrics.Port)
		slog.Info("serving metrics", "addr", addr)
		if err := http.ListenAndServe(addr, mux); err != nil {
			slog.Error("metrics server stopped", "error", err)
		}
	}()
}

func buildCreateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a fresh journal set, purging any stale siblings",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}

			w, err := wal.Create(walConfigFrom(cfg), wal.NoState{}, nil)
			if err != nil {
				return fmt.Errorf("create wal: %w", err)
			}
			slog.Info("created wal", "name", cfg.WAL.Name, "dir", cfg.WAL.Dir)

			_, _, err = w.Close()
			return err
		},
	}
	return cmd
}

func buildAppendCommand() *cobra.Command {
	var inputFile string

	cmd := &cobra.Command{
		Use:   "append",
		Short: "Submit newline-delimited ops from a file or stdin",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}

			var in io.Reader = os.Stdin
			if inputFile != "" {
				f, err := os.Open(inputFile)
				if err != nil {
					return fmt.Errorf("open input: %w", err)
				}
				defer f.Close()
				in = f
			}

			w, err := wal.Load(walConfigFrom(cfg), wal.DecodeNoState, nil)
			if err != nil {
				return fmt.Errorf("load wal: %w", err)
			}
			defer w.Close()

			scanner := bufio.NewScanner(in)
			var n int
			for scanner.Scan() {
				line := scanner.Bytes()
				if len(line) == 0 {
					continue
				}
				seqno, err := w.AddOp(append([]byte(nil), line...))
				if err != nil {
					return fmt.Errorf("add op: %w", err)
				}
				n++
				slog.Debug("appended op", "seqno", seqno)
			}
			if err := scanner.Err(); err != nil {
				return fmt.Errorf("read input: %w", err)
			}

			slog.Info("append complete", "count", n)
			return nil
		},
	}

	cmd.Flags().StringVarP(&inputFile, "file", "f", "", "file of newline-delimited ops (default: stdin)")
	return cmd
}

func buildRangeCommand() *cobra.Command {
	var from, to uint64

	cmd := &cobra.Command{
		Use:   "range",
		Short: "Print entries whose seqno falls in [from, to] as JSON lines",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}

			w, err := wal.Load(walConfigFrom(cfg), wal.DecodeNoState, nil)
			if err != nil {
				return fmt.Errorf("load wal: %w", err)
			}
			defer w.Close()

			lo := wal.Unbounded()
			if from != 0 {
				lo = wal.Included(from)
			}
			hi := wal.Unbounded()
			if to != 0 {
				hi = wal.Included(to)
			}

			it, err := w.Range(lo, hi)
			if err != nil {
				return fmt.Errorf("range: %w", err)
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			for {
				entry, err := it.Next()
				if err == io.EOF {
					break
				}
				if err != nil {
					return fmt.Errorf("range read: %w", err)
				}
				if err := enc.Encode(struct {
					Seqno uint64 `json:"seqno"`
					Op    string `json:"op"`
				}{Seqno: entry.Seqno, Op: string(entry.Op)}); err != nil {
					return err
				}
			}
			return nil
		},
	}

	cmd.Flags().Uint64Var(&from, "from", 0, "inclusive lower seqno bound (0 = unbounded)")
	cmd.Flags().Uint64Var(&to, "to", 0, "inclusive upper seqno bound (0 = unbounded)")
	return cmd
}

func buildBenchCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bench",
		Short: "Hammer AddOp from concurrent goroutines and report throughput",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}

			var collector *wal.Collector
			if cfg.Metrics.Enabled {
				collector = wal.NewCollector()
				maybeServeMetrics(cfg, collector)
			}

			w, err := wal.Create(walConfigFrom(cfg), wal.NoState{}, collector)
			if err != nil {
				return fmt.Errorf("create wal: %w", err)
			}

			payload := make([]byte, cfg.Bench.OpSize)
			for i := range payload {
				payload[i] = byte('a' + i%26)
			}

			start := time.Now()
			var wg sync.WaitGroup
			errs := make(chan error, cfg.Bench.Goroutines)
			for g := 0; g < cfg.Bench.Goroutines; g++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					for i := 0; i < cfg.Bench.OpsEach; i++ {
						if _, err := w.AddOp(payload); err != nil {
							errs <- err
							return
						}
					}
				}()
			}
			wg.Wait()
			close(errs)
			for err := range errs {
				return fmt.Errorf("bench add op: %w", err)
			}
			elapsed := time.Since(start)

			total := cfg.Bench.Goroutines * cfg.Bench.OpsEach
			slog.Info("bench complete",
				"total_ops", total,
				"elapsed", elapsed,
				"ops_per_sec", float64(total)/elapsed.Seconds(),
			)

			_, _, err = w.Close()
			return err
		},
	}
	return cmd
}

func buildStatusCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show journal set status: entry count and last seqno (no journal count or sizes)",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}

			w, err := wal.Load(walConfigFrom(cfg), wal.DecodeNoState, nil)
			if err != nil {
				return fmt.Errorf("load wal: %w", err)
			}
			defer w.Close()

			it, err := w.Iter()
			if err != nil {
				return fmt.Errorf("iter: %w", err)
			}
			var count int
			var last uint64
			for {
				e, err := it.Next()
				if err == io.EOF {
					break
				}
				if err != nil {
					return fmt.Errorf("read: %w", err)
				}
				last = e.Seqno
				count++
			}

			fmt.Fprintf(cmd.OutOrStdout(), "wal: %s\n", cfg.WAL.Name)
			fmt.Fprintf(cmd.OutOrStdout(), "dir: %s\n", cfg.WAL.Dir)
			fmt.Fprintf(cmd.OutOrStdout(), "entries: %d\n", count)
			fmt.Fprintf(cmd.OutOrStdout(), "last seqno: %s\n", strconv.FormatUint(last, 10))
			return nil
		},
	}
	return cmd
}
