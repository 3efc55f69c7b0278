// Writer implementation printing samples to STDOUT
package sim

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"
	"text/tabwriter"

	"golang.org/x/term"

	"dersim/internal/config"
	"dersim/internal/der"
)

const (
	colorReset   = "\x1b[0m"
	colorRed     = "\x1b[31m"
	colorGreen   = "\x1b[32m"
	colorYellow  = "\x1b[33m"
	colorBlue    = "\x1b[34m"
	colorMagenta = "\x1b[35m"
	colorCyan    = "\x1b[36m"
	colorGray    = "\x1b[90m"
)

// StdoutWriter prints rows in colour when STDOUT is a terminal and as JSON
// lines otherwise.
type StdoutWriter struct {
	cfg      *config.SimulationConfig
	out      io.Writer
	colorize bool
	once     sync.Once
}

// NewStdoutWriter creates a StdoutWriter for os.Stdout.
func NewStdoutWriter(cfg *config.SimulationConfig) *StdoutWriter {
	return &StdoutWriter{
		cfg:      cfg,
		out:      os.Stdout,
		colorize: term.IsTerminal(int(os.Stdout.Fd())),
	}
}

func (w *StdoutWriter) printOverview() {
	if w.cfg == nil {
		return
	}
	c := w.cfg
	fmt.Fprintln(w.out, "Simulation Configuration:")
	tw := tabwriter.NewWriter(w.out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "Simulation Time (s):\t%g\n", c.SimulationTime)
	fmt.Fprintf(tw, "Steps x Points:\t%d x %d\n", c.NumberSteps, c.PointsPerStep)
	fmt.Fprintf(tw, "DER:\t%t\n", c.DEREnabled)
	fmt.Fprintf(tw, "Bus / Line:\t%s / %s\n", c.BusID, c.LineID)
	fmt.Fprintf(tw, "Rated Voltage (kV):\t%g\n", c.RatedVoltageKV)
	if c.DEREnabled {
		fmt.Fprintf(tw, "Control Mode:\t%s\n", c.ControlMode.Title(c.NormalCategory))
		fmt.Fprintf(tw, "S Rated (MVA) / PF:\t%g / %g\n", c.RatedApparentPowerMVA, c.RatedPowerFactor)
		fmt.Fprintf(tw, "Categories:\t%s / %s\n", c.NormalCategory, c.AbnormalCategory)
	}
	tw.Flush()
	fmt.Fprintln(w.out)
}

func statusColor(status string) string {
	switch status {
	case der.StatusTrip:
		return colorRed
	case der.StatusRideThrough:
		return colorYellow
	}
	return colorGreen
}

// Write outputs a single row.
func (w *StdoutWriter) Write(row SampleRow) error {
	if !w.colorize {
		return writeJSONLine(w.out, row)
	}
	w.once.Do(w.printOverview)
	fmt.Fprintf(w.out, "%s[%8.3fs]%s ", colorGray, row.Time, colorReset)
	fmt.Fprintf(w.out, "%sstep=%d%s ", colorBlue, row.Index, colorReset)
	fmt.Fprintf(w.out, "%sloadmult=%.3f%s ", colorCyan, row.LoadMult, colorReset)
	fmt.Fprintf(w.out, "%sv=(%.4f,%.4f,%.4f)%s ", colorYellow, row.Va, row.Vb, row.Vc, colorReset)
	fmt.Fprintf(w.out, "%svm=%.4f%s", colorMagenta, row.Vm, colorReset)
	if row.Mode != "" {
		fmt.Fprintf(w.out, " %sp=%.3f q=%.3f pf=%.3f%s", colorGreen, row.P, row.Q, row.PF(), colorReset)
		fmt.Fprintf(w.out, " %sstatus=%s%s", statusColor(row.Status), row.Status, colorReset)
	}
	fmt.Fprintln(w.out)
	return nil
}

// WriteBatch outputs multiple rows.
func (w *StdoutWriter) WriteBatch(rows []SampleRow) error {
	for _, r := range rows {
		_ = w.Write(r)
	}
	return nil
}

// WriteSummary prints the end-of-run summary.
func (w *StdoutWriter) WriteSummary(s RunSummary) error {
	if !w.colorize {
		return writeJSONLine(w.out, s)
	}
	fmt.Fprintf(w.out, "%sSUMMARY%s run=%s samples=%d solves=%d v=[%.4f, %.4f] trips=%d elapsed=%s\n",
		colorBlue, colorReset, s.RunID, s.Samples, s.Solves, s.MinV, s.MaxV, s.Trips, s.Elapsed)
	return nil
}

func writeJSONLine(out io.Writer, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(out, string(data))
	return err
}
