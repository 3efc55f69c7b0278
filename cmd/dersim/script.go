package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"dersim/internal/sim"
)

var scriptCmd = &cobra.Command{
	Use:   "script",
	Short: "Print the solver setup script",
	Long:  "script prints the solver commands simulate issues before stepping, for the current DER parameters and run profile.",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, prof, err := loadInputs()
		if err != nil {
			return err
		}
		for _, line := range sim.SetupScript(*cfg, *prof) {
			fmt.Fprintln(cmd.OutOrStdout(), line)
		}
		return nil
	},
}
