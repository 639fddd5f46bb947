// Package cmd contains the CLI commands for dwhetl
package cmd

import (
	"fmt"
	"os"

	"github.com/jonboulle/clockwork"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/tirta-dwh/dwhetl/pkg/engine"
)

//nolint:gochecknoglobals // Global vars needed for cobra CLI
var (
	cfgFile string
	logger  *logrus.Logger
)

// rootCmd represents the base command
//
//nolint:gochecknoglobals // Cobra commands are typically global
var rootCmd = &cobra.Command{
	Use:   "dwhetl",
	Short: "Incremental ETL for the water utility data warehouse",
	Long: `dwhetl loads billing and customer-service data from the operational
database into the warehouse star schema, one calendar month at a time.
Months already recorded in the ETL history are skipped unless reprocessed.`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "config.yaml", "config file")
	rootCmd.PersistentFlags().String("log-level", "", "log level override (debug, info, warn, error)")

	// Initialize logger
	logger = logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})
}

// loadConfig reads the config file and applies the log level, preferring
// the --log-level flag over the file.
func loadConfig(cmd *cobra.Command) (*engine.Config, error) {
	cfg, err := engine.LoadConfig(cfgFile)
	if err != nil {
		return nil, err
	}

	if override, _ := cmd.Flags().GetString("log-level"); override != "" {
		cfg.Logging = override
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	level, err := cfg.Level()
	if err != nil {
		return nil, err
	}

	logger.SetLevel(level)

	return cfg, nil
}

// withCore loads config, connects the databases and runs fn.
func withCore(cmd *cobra.Command, fn func(core *engine.Core) error) error {
	// Silence usage on error
	cmd.SilenceUsage = true

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	core, err := engine.NewCore(logger, cfg, clockwork.NewRealClock())
	if err != nil {
		return err
	}

	defer func() {
		if stopErr := core.Stop(); stopErr != nil {
			logger.WithError(stopErr).Error("Failed to close connections")
		}
	}()

	if err := core.Start(); err != nil {
		return err
	}

	return fn(core)
}
