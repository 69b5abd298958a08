package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/systmms/dbsts/cmd/dbsts/commands"
	"github.com/systmms/dbsts/internal/config"
	"github.com/systmms/dbsts/internal/logging"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// Global flags
	var (
		configFile string
		noColor    bool
		debug      bool
	)

	// Create config placeholder
	cfg := &config.Config{}

	rootCmd := &cobra.Command{
		Use:   "dbsts",
		Short: "Security token service for data stores",
		Long: `dbsts exchanges verified web identities for short-lived database
accounts and revokes them once their validity window passes.`,
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			// Initialize logger with parsed flags
			logger := logging.New(debug, noColor)

			cfg.Path = configFile
			cfg.Logger = logger
		},
	}

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "sts.yaml", "Config file path")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "Disable colored output")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug logging")

	rootCmd.AddCommand(
		commands.NewServeCommand(cfg),
		commands.NewSweepCommand(cfg),
		commands.NewValidateCommand(cfg),
	)

	return rootCmd.Execute()
}
