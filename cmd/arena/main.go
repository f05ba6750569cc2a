// Command arena runs LLM agents against a constant-product liquidity pool
// and serves the recorded history.
package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/talgya/amm-arena/internal/config"
	"github.com/talgya/amm-arena/internal/engine"
	"github.com/talgya/amm-arena/internal/entropy"
	"github.com/talgya/amm-arena/internal/llm"
	"github.com/talgya/amm-arena/internal/persistence"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "arena",
		Short: "AMM agent arena",
		Long: `arena runs LLM-driven agents against a shared constant-product pool,
records every action and snapshot to sqlite, and analyses how their
strategies evolve across runs.`,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().String("config", "", "YAML config file (default arena.yaml if present)")
	rootCmd.PersistentFlags().String("db", "", "SQLite database path (overrides config)")
	rootCmd.PersistentFlags().Bool("json", false, "Output as JSON")

	rootCmd.AddCommand(
		newRunCmd(),
		newServeCmd(),
		newReportCmd(),
	)
	return rootCmd
}

// loadConfig reads the configuration, applies the global flags and
// installs the default logger.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if db, _ := cmd.Flags().GetString("db"); db != "" {
		cfg.DBPath = db
	}

	level, err := config.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)
	return cfg, nil
}

func openDB(path string) (*persistence.DB, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
	}
	db, err := persistence.Open(path)
	if err != nil {
		return nil, err
	}
	slog.Info("database opened", "path", path)
	return db, nil
}

// newRunner wires the LLM client, persistence and entropy into a runner.
// Without an LLM key every agent idles and summaries use the fallback digest.
func newRunner(cfg *config.Config, db *persistence.DB) *engine.Runner {
	client := llm.NewClient(cfg.LLM)
	if client.Enabled() {
		slog.Info("LLM enabled", "provider", client.Provider(), "model", client.Model())
	} else {
		slog.Warn("LLM disabled (no LLM_API_KEY set), agents will idle")
	}

	r := engine.NewRunner(cfg.Params, client)
	r.Sink = db
	r.Summarizer = client
	if client.Enabled() {
		r.Learner = client
	}
	r.SeedSource = entropy.SeedSource(entropy.NewClient(cfg.RandomOrgKey))
	return r
}
