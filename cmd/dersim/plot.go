package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"dersim/internal/chart"
	"dersim/internal/der"
)

var (
	plotDir  string
	plotAxes axisFlags
)

var plotCmd = &cobra.Command{
	Use:   "plot",
	Short: "Render charts from exported results",
	Long:  "plot reads the CSV exported by simulate for the current DER parameters and renders PNG charts next to it.",
	RunE: func(cmd *cobra.Command, args []string) error {
		opts, err := plotAxes.options(cmd)
		if err != nil {
			return err
		}
		cfg, prof, err := loadInputs()
		if err != nil {
			return err
		}
		dir := plotDir
		if dir == "" {
			dir = prof.OutputDir
		}
		var mode der.Mode
		if cfg.DEREnabled {
			if mode, err = der.ModeFor(*cfg, prof.Curves, prof.FrequencyHz); err != nil {
				return err
			}
		}
		paths, err := chart.Presenter{Dir: dir, Options: opts}.Present(cmd.Context(), *cfg, mode)
		if err != nil {
			return err
		}
		for _, p := range paths {
			fmt.Fprintln(cmd.OutOrStdout(), p)
		}
		return nil
	},
}

func init() {
	plotCmd.Flags().StringVar(&plotDir, "dir", "", "Directory holding the results (profile output_dir when empty)")
	plotAxes.register(plotCmd)
}
