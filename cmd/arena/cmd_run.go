package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/talgya/amm-arena/internal/analysis"
	"github.com/talgya/amm-arena/internal/engine"
)

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run consecutive simulations",
		Long: `Run executes consecutive runs, carrying each agent's learning summary
into the next one. Every run is persisted and its report printed.
SIGINT or SIGTERM stops the current run and marks it incomplete.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			p := &cfg.Params
			if cmd.Flags().Changed("runs") {
				p.TotalRuns, _ = cmd.Flags().GetInt("runs")
			}
			if cmd.Flags().Changed("agents") {
				p.NumAgents, _ = cmd.Flags().GetInt("agents")
			}
			if cmd.Flags().Changed("turns") {
				p.TurnsPerRun, _ = cmd.Flags().GetInt("turns")
			}
			if cmd.Flags().Changed("seed") {
				p.Seed, _ = cmd.Flags().GetInt64("seed")
			}
			if cmd.Flags().Changed("delay") {
				p.TurnDelay, _ = cmd.Flags().GetDuration("delay")
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			db, err := openDB(cfg.DBPath)
			if err != nil {
				return err
			}
			defer db.Close()

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			runner := newRunner(cfg, db)
			results, runErr := runner.RunMany(ctx, p.TotalRuns)

			jsonOut, _ := cmd.Flags().GetBool("json")
			if jsonOut {
				if err := json.NewEncoder(cmd.OutOrStdout()).Encode(results); err != nil {
					return err
				}
			} else {
				printResults(cmd, results)
				if metrics, err := db.CompletedRunMetrics(context.WithoutCancel(ctx)); err == nil && len(metrics) > 1 {
					fmt.Fprintln(cmd.OutOrStdout(), "\nTrends across completed runs:")
					fmt.Fprint(cmd.OutOrStdout(), analysis.FormatTrends(analysis.DetectTrends(metrics)))
				}
			}

			if errors.Is(runErr, context.Canceled) {
				slog.Info("interrupted, stopped after current run", "runs_finished", len(results))
				return nil
			}
			return runErr
		},
	}

	cmd.Flags().Int("runs", 1, "Number of consecutive runs")
	cmd.Flags().Int("agents", 5, "Agents per run")
	cmd.Flags().Int("turns", 5, "Turns per run")
	cmd.Flags().Int64("seed", 0, "Seed for the first run (0 draws one)")
	cmd.Flags().Duration("delay", 0, "Pause between turns")

	return cmd
}

func printResults(cmd *cobra.Command, results []*engine.RunResult) {
	out := cmd.OutOrStdout()
	for _, res := range results {
		fmt.Fprintf(out, "\nRun %d (seed %d, %s after %d turns)\n", res.RunNumber, res.Seed, res.Status, res.Turns)
		fmt.Fprint(out, analysis.FormatReport(res.Report))
		for _, a := range res.Agents {
			fmt.Fprintf(out, "  %-10s A=%8.2f B=%8.2f profit=%+8.2f strategy=%s\n",
				a.AgentName, a.TokenA, a.TokenB, a.Profit, a.Strategy)
		}
		if res.Summary != "" {
			fmt.Fprintln(out)
			fmt.Fprintln(out, res.Summary)
		}
	}
}
