package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/tirta-dwh/dwhetl/pkg/engine"
	"github.com/tirta-dwh/dwhetl/pkg/orchestrator"
	"github.com/tirta-dwh/dwhetl/pkg/period"
)

//nolint:gochecknoglobals // Command flags need to be global for cobra
var (
	periodStart     string
	periodEnd       string
	periodReprocess bool
)

//nolint:gochecknoglobals // Cobra commands are typically global
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Process every pending month",
	Long: `Run determines the months between the configured epoch and the current
month that have no completed ETL history entry and processes them in order.
A failing month does not stop the remaining ones.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withCore(cmd, func(core *engine.Core) error {
			reports, err := core.Orchestrator.RunPending(cmd.Context(), orchestrator.TriggerCLI)
			if writeErr := writeReports(cmd.OutOrStdout(), reports); writeErr != nil {
				return errors.Join(err, writeErr)
			}

			return err
		})
	},
}

//nolint:gochecknoglobals // Cobra commands are typically global
var periodCmd = &cobra.Command{
	Use:   "period",
	Short: "Process a single period",
	Long: `Period processes an explicit date range.

Examples:
  # Load January 2021, refusing if it was already processed
  dwhetl period --start 2021-01-01 --end 2021-01-31

  # Delete and reload January 2021
  dwhetl period --start 2021-01-01 --end 2021-01-31 --reprocess`,
	RunE: runPeriod,
}

func init() {
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(periodCmd)

	periodCmd.Flags().StringVar(&periodStart, "start", "", "First day of the period (YYYY-MM-DD)")
	periodCmd.Flags().StringVar(&periodEnd, "end", "", "Last day of the period (YYYY-MM-DD)")
	periodCmd.Flags().BoolVar(&periodReprocess, "reprocess", false, "Delete the period's facts and reload it")

	_ = periodCmd.MarkFlagRequired("start")
	_ = periodCmd.MarkFlagRequired("end")
}

func runPeriod(cmd *cobra.Command, _ []string) error {
	p, err := period.Parse(periodStart, periodEnd)
	if err != nil {
		return err
	}

	return withCore(cmd, func(core *engine.Core) error {
		var report *orchestrator.Report

		if periodReprocess {
			report, err = core.Orchestrator.Reprocess(cmd.Context(), p, orchestrator.TriggerCLI)
		} else {
			report, err = core.Orchestrator.RunPeriod(cmd.Context(), p, orchestrator.TriggerCLI)
		}

		if report != nil {
			if writeErr := writeReports(cmd.OutOrStdout(), []*orchestrator.Report{report}); writeErr != nil {
				return errors.Join(err, writeErr)
			}
		}

		return err
	})
}

func writeReports(w io.Writer, reports []*orchestrator.Report) error {
	if len(reports) == 0 {
		_, err := fmt.Fprintln(w, "No periods processed")
		return err
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")

	return enc.Encode(reports)
}
