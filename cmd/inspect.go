package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/tirta-dwh/dwhetl/pkg/engine"
	"github.com/tirta-dwh/dwhetl/pkg/period"
)

//nolint:gochecknoglobals // Command flags need to be global for cobra
var (
	historyLimit  int
	historyOffset int
)

//nolint:gochecknoglobals // Cobra commands are typically global
var pendingCmd = &cobra.Command{
	Use:   "pending",
	Short: "List months that have not been processed",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withCore(cmd, func(core *engine.Core) error {
			pending, err := core.Orchestrator.Pending(cmd.Context())
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			_, _ = fmt.Fprintln(w, "START\tEND")

			for _, p := range pending {
				_, _ = fmt.Fprintf(w, "%s\t%s\n", p.Start.Format(period.DateLayout), p.End.Format(period.DateLayout))
			}

			if err := w.Flush(); err != nil {
				return err
			}

			_, err = fmt.Fprintf(cmd.OutOrStdout(), "\n%d pending\n", len(pending))

			return err
		})
	},
}

//nolint:gochecknoglobals // Cobra commands are typically global
var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show the ETL history log, newest first",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withCore(cmd, func(core *engine.Core) error {
			page, err := core.History.List(cmd.Context(), historyLimit, historyOffset)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			_, _ = fmt.Fprintln(w, "ID\tTIMESTAMP\tSTART\tEND\tSTATUS")

			for _, e := range page.Entries {
				_, _ = fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\n",
					e.ID,
					e.Timestamp.Format("2006-01-02 15:04:05"),
					e.Start.Format(period.DateLayout),
					e.End.Format(period.DateLayout),
					e.Status,
				)
			}

			if err := w.Flush(); err != nil {
				return err
			}

			_, err = fmt.Fprintf(cmd.OutOrStdout(), "\nShowing %d of %d entries (offset %d)\n", len(page.Entries), page.Total, page.Offset)

			return err
		})
	},
}

func init() {
	rootCmd.AddCommand(pendingCmd)
	rootCmd.AddCommand(historyCmd)

	historyCmd.Flags().IntVar(&historyLimit, "limit", 0, "Entries per page (0 uses the configured default)")
	historyCmd.Flags().IntVar(&historyOffset, "offset", 0, "Entries to skip")
}
