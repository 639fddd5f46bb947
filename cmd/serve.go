package cmd

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/tirta-dwh/dwhetl/pkg/engine"
)

//nolint:gochecknoglobals // Cobra commands are typically global
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the API, worker and scheduler",
	Long: `Serve runs the HTTP API, the task worker that executes ETL runs one at a
time and the leader-elected scheduler that enqueues the daily pending run.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	// Silence usage on error
	cmd.SilenceUsage = true

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	logger.Info("Configuration loaded")

	service, err := engine.NewService(logger, cfg)
	if err != nil {
		return err
	}

	if err := service.Start(); err != nil {
		_ = service.Stop()
		return err
	}

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	// Graceful shutdown
	return service.Stop()
}
