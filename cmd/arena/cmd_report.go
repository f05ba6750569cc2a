package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/talgya/amm-arena/internal/analysis"
)

func newReportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Analyse recorded runs",
		Long: `Report prints profit and inequality trends across completed runs,
or with --run the per-agent strategy profiles of a single run.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			db, err := openDB(cfg.DBPath)
			if err != nil {
				return err
			}
			defer db.Close()

			ctx := cmd.Context()
			jsonOut, _ := cmd.Flags().GetBool("json")
			out := cmd.OutOrStdout()

			runID, _ := cmd.Flags().GetInt64("run")
			if runID > 0 {
				run, err := db.GetRun(ctx, runID)
				if err != nil {
					return err
				}
				samples, err := db.ActionSamples(ctx, runID)
				if err != nil {
					return err
				}
				profiles := analysis.DetectArmsRaces(samples)
				if jsonOut {
					return json.NewEncoder(out).Encode(profiles)
				}
				fmt.Fprintf(out, "Run %d (%s), %d actions\n", run.RunNumber, run.Status, len(samples))
				fmt.Fprint(out, analysis.FormatArmsRace(profiles))
				return nil
			}

			metrics, err := db.CompletedRunMetrics(ctx)
			if err != nil {
				return err
			}
			trends := analysis.DetectTrends(metrics)
			if jsonOut {
				return json.NewEncoder(out).Encode(trends)
			}
			fmt.Fprint(out, analysis.FormatTrends(trends))
			return nil
		},
	}

	cmd.Flags().Int64("run", 0, "Run ID to profile")
	return cmd
}
