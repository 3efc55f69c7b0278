package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"dersim/internal/logging"
	"dersim/internal/sim"
)

var (
	replayInput     string
	replaySpeed     float64
	replayRunID     string
	replayPrintOnly bool
	replayJSON      bool
)

var replayCmd = &cobra.Command{
	Use:   "replay",
	Short: "Replay a sample log file",
	Long:  "replay feeds sample rows from a JSONL log back into GreptimeDB or STDOUT.",
	RunE: func(cmd *cobra.Command, args []string) error {
		if replayInput == "" {
			return fmt.Errorf("input file required")
		}
		writer, cleanup, err := newWriters(nil, writerOptions{PrintOnly: replayPrintOnly, JSON: replayJSON})
		if err != nil {
			return err
		}
		defer cleanup()
		n, err := sim.ReplayLogFile(replayInput, writer, sim.ReplayOptions{Speed: replaySpeed, RunID: replayRunID})
		if err != nil {
			return err
		}
		logging.FromContext(cmd.Context()).Info("replay finished", "input", replayInput, "rows", n)
		return nil
	},
}

func init() {
	replayCmd.Flags().StringVar(&replayInput, "input", "", "Path to sample log file")
	replayCmd.Flags().Float64Var(&replaySpeed, "speed", 1.0, "Playback speed multiplier (0 replays without delay)")
	replayCmd.Flags().StringVar(&replayRunID, "run-id", "", "Replay only rows of this run")
	replayCmd.Flags().BoolVar(&replayPrintOnly, "print-only", false, "Print samples to STDOUT instead of writing to DB")
	replayCmd.Flags().BoolVar(&replayJSON, "json", false, "Print samples as JSON lines even on a terminal")
	replayCmd.MarkFlagRequired("input")
}
