package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"dersim/internal/config"
	"dersim/internal/logging"
)

var (
	logLevel    string
	logJSON     bool
	configPath  string
	profilePath string
	schemaPath  string
)

var rootCmd = &cobra.Command{
	Use:   "dersim",
	Short: "DER feeder simulation toolkit",
	Long:  "dersim runs quasi-static studies of a distribution feeder with a smart-inverter DER and renders the results.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		l, err := logging.New(logging.Options{Level: logLevel, JSON: logJSON})
		if err != nil {
			return err
		}
		slog.SetDefault(l)
		cmd.SetContext(logging.NewContext(cmd.Context(), l))
		return nil
	},
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	pf.BoolVar(&logJSON, "log-json", false, "Write logs as JSON")
	pf.StringVar(&configPath, "config", config.DefaultStorePath, "Path to the DER parameter file")
	pf.StringVar(&profilePath, "profile", "", "Path to a YAML run profile (built-in defaults when empty)")
	pf.StringVar(&schemaPath, "schema", "", "Path to a CUE schema for the run profile (embedded when empty)")

	rootCmd.AddCommand(configureCmd)
	rootCmd.AddCommand(simulateCmd)
	rootCmd.AddCommand(plotCmd)
	rootCmd.AddCommand(scriptCmd)
	rootCmd.AddCommand(replayCmd)
}

// loadInputs reads the DER parameter file and the run profile.
func loadInputs() (*config.SimulationConfig, *config.RunProfile, error) {
	cfg, err := config.NewStore(configPath).Load()
	if err != nil {
		return nil, nil, fmt.Errorf("load %s: %w", configPath, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, fmt.Errorf("%s: %w", configPath, err)
	}
	prof, err := config.LoadProfile(profilePath, schemaPath)
	if err != nil {
		return nil, nil, err
	}
	return cfg, prof, nil
}
