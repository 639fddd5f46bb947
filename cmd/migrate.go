package cmd

import (
	"github.com/spf13/cobra"

	"github.com/tirta-dwh/dwhetl/pkg/engine"
)

//nolint:gochecknoglobals // Cobra commands are typically global
var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create the warehouse tables if they do not exist",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withCore(cmd, func(core *engine.Core) error {
			if err := core.Store.Migrate(cmd.Context()); err != nil {
				return err
			}

			logger.Info("Warehouse schema is up to date")

			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
