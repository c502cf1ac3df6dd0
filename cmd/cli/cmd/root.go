// Package cmd provides the CLI commands for costpilot.
package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"costpilot/internal/config"
	"costpilot/internal/logging"
	"costpilot/store/postgres"
)

var (
	cfgFile string
	verbose bool
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "costpilot",
	Short: "Detect cloud cost spikes and classify waste",
	Long: `costpilot evaluates daily per-resource cloud billing data,
flags day-over-day cost spikes with an attributed top cause, and
classifies idle resources into waste findings.

Examples:
  costpilot seed --user 6f1d... --scenario spike --days 30 --seed 42
  costpilot detect --user 6f1d...
  costpilot waste list --user 6f1d...`,
}

// Execute runs the CLI
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./costpilot.json)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")

	// Add subcommands
	rootCmd.AddCommand(seedCmd)
	rootCmd.AddCommand(detectCmd)
	rootCmd.AddCommand(wasteCmd)
	rootCmd.AddCommand(versionCmd)
}

func initConfig() {
	if cfgFile != "" {
		cfg, err := config.Load(cfgFile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
			os.Exit(1)
		}
		config.Set(cfg)
	}

	// Initialize logging
	cfg := config.Get()
	if verbose {
		cfg.Logging.Level = "debug"
	}
	if err := logging.Initialize(cfg.Logging); err != nil {
		fmt.Fprintf(os.Stderr, "Error initializing logging: %v\n", err)
	}
}

// openStore connects to the configured database and ensures the
// schema exists.
func openStore(ctx context.Context) (*postgres.Store, error) {
	cfg := config.Get()
	st, err := postgres.Open(ctx, cfg.Database.DSN, cfg.Database.MaxOpenConns)
	if err != nil {
		return nil, err
	}
	if err := st.EnsureSchema(ctx); err != nil {
		st.Close()
		return nil, err
	}
	return st, nil
}

// versionCmd prints version information
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("costpilot version 0.1.0")
	},
}
