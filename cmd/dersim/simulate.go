package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"dersim/internal/chart"
	"dersim/internal/config"
	"dersim/internal/der"
	"dersim/internal/dss"
	"dersim/internal/feeder"
	"dersim/internal/logging"
	"dersim/internal/results"
	"dersim/internal/sim"
)

var (
	simPrintOnly  bool
	simJSON       bool
	simTUI        bool
	simPlot       bool
	simLogFile    string
	simTranscript string
	simAxes       axisFlags
)

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Run a feeder study",
	Long:  "simulate loads the DER parameter file, steps the load trajectory through the solver and exports the results as CSV.",
	RunE: func(cmd *cobra.Command, args []string) error {
		plotOpts, err := simAxes.options(cmd)
		if err != nil {
			return err
		}
		cfg, prof, err := loadInputs()
		if err != nil {
			return err
		}

		ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer cancel()
		if simTUI {
			// the alt screen owns the terminal
			ctx = logging.NewContext(ctx, slog.New(slog.NewTextHandler(io.Discard, nil)))
		}
		log := logging.FromContext(ctx)

		engine, err := newEngine(*prof, log)
		if err != nil {
			return err
		}
		var rec *dss.Recorder
		if simTranscript != "" {
			rec = dss.NewRecorder(engine)
			engine = rec
		}
		defer engine.Close()

		writer, cleanup, err := newWriters(cfg, writerOptions{
			PrintOnly: simPrintOnly,
			JSON:      simJSON,
			LogFile:   simLogFile,
			TUI:       simTUI,
			OnQuit:    cancel,
		})
		if err != nil {
			return err
		}
		defer cleanup()

		s, err := sim.NewSimulator(*cfg, *prof, engine, writer)
		if err != nil {
			return err
		}
		table, runErr := s.Run(ctx)
		if rec != nil {
			if err := writeTranscript(simTranscript, rec); err != nil {
				log.Error("transcript", "path", simTranscript, "err", err)
			}
		}
		if runErr != nil {
			return fmt.Errorf("run %s: %w", s.RunID(), runErr)
		}

		path, err := exportResults(ctx, prof.OutputDir, table)
		if err != nil {
			return err
		}
		if !simPlot {
			return nil
		}
		var mode der.Mode
		if m := s.Model(); m != nil {
			mode = m.Mode()
		}
		pr := chart.Presenter{Dir: prof.OutputDir, Options: plotOpts}
		paths, err := pr.Present(ctx, *cfg, mode)
		if err != nil {
			return fmt.Errorf("plot %s: %w", path, err)
		}
		for _, p := range paths {
			fmt.Fprintln(cmd.ErrOrStderr(), p)
		}
		return nil
	},
}

func init() {
	fs := simulateCmd.Flags()
	fs.BoolVar(&simPrintOnly, "print-only", false, "Print samples to STDOUT instead of writing to DB")
	fs.BoolVar(&simJSON, "json", false, "Print samples as JSON lines even on a terminal")
	fs.BoolVar(&simTUI, "tui", false, "Follow the run in a terminal UI")
	fs.BoolVar(&simPlot, "plot", false, "Render charts after exporting the results")
	fs.StringVar(&simLogFile, "log-file", "", "Path to export streamed samples (JSONL)")
	fs.StringVar(&simTranscript, "transcript", "", "Path to write the solver command transcript")
	simAxes.register(simulateCmd)
}

// newEngine builds the solver named by the run profile.
func newEngine(p config.RunProfile, log *slog.Logger) (dss.Engine, error) {
	switch p.Engine {
	case "", "virtual":
		return feeder.New(p.Feeder, log), nil
	}
	return nil, fmt.Errorf("engine %q is not available", p.Engine)
}

func exportResults(ctx context.Context, dir string, t *results.Table) (string, error) {
	path, err := results.NewExporter(dir).Export(t)
	if err != nil {
		return "", err
	}
	logging.FromContext(ctx).Info("results exported", "path", path, "samples", t.Len())
	return path, nil
}

func writeTranscript(path string, rec *dss.Recorder) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if _, err := rec.WriteTo(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
