package main

import (
	"os"

	"dersim/internal/config"
	"dersim/internal/sim"
)

// writerOptions select the sample writers of a run.
type writerOptions struct {
	PrintOnly bool
	JSON      bool
	LogFile   string
	TUI       bool
	// OnQuit is called when the user leaves the TUI before the run ends.
	OnQuit func()
}

// newWriters sets up sample writers based on flags and env vars.
// It returns the writer and a cleanup function to close any resources.
func newWriters(cfg *config.SimulationConfig, opts writerOptions) (sim.SampleWriter, func(), error) {
	var (
		writers  []sim.SampleWriter
		cleanups []func()
	)
	cleanup := func() {
		for _, c := range cleanups {
			c()
		}
	}

	if opts.TUI {
		var c config.SimulationConfig
		if cfg != nil {
			c = *cfg
		}
		tw := sim.NewTUIWriter(c, opts.OnQuit)
		writers = append(writers, tw)
		cleanups = append(cleanups, tw.Wait)
	}
	if !opts.TUI || useGreptime(opts.PrintOnly) {
		w, err := baseWriter(cfg, opts)
		if err != nil {
			cleanup()
			return nil, nil, err
		}
		writers = append(writers, w)
	}
	if opts.LogFile != "" {
		fw, err := sim.NewFileWriter(opts.LogFile, opts.LogFile+".summary")
		if err != nil {
			cleanup()
			return nil, nil, err
		}
		writers = append(writers, fw)
		cleanups = append(cleanups, func() { fw.Close() })
	}

	if len(writers) == 1 {
		return writers[0], cleanup, nil
	}
	return sim.NewMultiWriter(writers...), cleanup, nil
}

func useGreptime(printOnly bool) bool {
	return !printOnly && os.Getenv("GREPTIMEDB_ENDPOINT") != ""
}

// baseWriter chooses the underlying writer based on the printOnly flag and env vars.
func baseWriter(cfg *config.SimulationConfig, opts writerOptions) (sim.SampleWriter, error) {
	if !useGreptime(opts.PrintOnly) {
		if opts.JSON {
			return sim.NewJSONStdoutWriter(), nil
		}
		return sim.NewStdoutWriter(cfg), nil
	}
	database := os.Getenv("GREPTIMEDB_DATABASE")
	if database == "" {
		database = "public"
	}
	w, err := sim.NewGreptimeDBWriter(
		os.Getenv("GREPTIMEDB_ENDPOINT"),
		database,
		os.Getenv("GREPTIMEDB_TABLE"),
		os.Getenv("GREPTIMEDB_SUMMARY_TABLE"),
	)
	if err != nil {
		return nil, err
	}
	return w, nil
}
