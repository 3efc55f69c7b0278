package dss

import (
	"fmt"
	"io"
)

// Engine is a feeder solver session driven by script commands. Sessions are
// stateful and not safe for concurrent use.
type Engine interface {
	// Command executes one script line.
	Command(text string) error
	// Solve runs one solution at the current time and advances the clock.
	Solve() error
	// Channel returns every sample recorded so far by a monitor channel.
	// Channels are numbered from 1.
	Channel(monitor string, index int) ([]float64, error)
	// SetPVSystem writes the power factor and reactive power setpoint of a
	// PV system.
	SetPVSystem(name string, pf, kvar float64) error
	Close() error
}

// SolverError reports a command the engine rejected or a failed solution.
type SolverError struct {
	Op      string
	Command string
	Err     error
}

func (e *SolverError) Error() string {
	if e.Command == "" {
		return fmt.Sprintf("solver %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("solver %s %q: %v", e.Op, e.Command, e.Err)
}

func (e *SolverError) Unwrap() error { return e.Err }

// Recorder passes calls through to an Engine and keeps every command it
// issued, in order, as script text.
type Recorder struct {
	engine Engine
	lines  []string
}

// NewRecorder wraps e.
func NewRecorder(e Engine) *Recorder {
	return &Recorder{engine: e}
}

func (r *Recorder) Command(text string) error {
	r.lines = append(r.lines, text)
	return r.engine.Command(text)
}

func (r *Recorder) Solve() error {
	r.lines = append(r.lines, "Solve")
	return r.engine.Solve()
}

func (r *Recorder) Channel(monitor string, index int) ([]float64, error) {
	return r.engine.Channel(monitor, index)
}

func (r *Recorder) SetPVSystem(name string, pf, kvar float64) error {
	r.lines = append(r.lines, fmt.Sprintf("Edit PVSystem.%s pf=%s kvar=%s", name, FormatFloat(pf), FormatFloat(kvar)))
	return r.engine.SetPVSystem(name, pf, kvar)
}

func (r *Recorder) Close() error { return r.engine.Close() }

// Transcript returns the recorded script.
func (r *Recorder) Transcript() []string {
	return append([]string(nil), r.lines...)
}

// WriteTo writes the transcript one command per line.
func (r *Recorder) WriteTo(w io.Writer) (int64, error) {
	var n int64
	for _, l := range r.lines {
		m, err := fmt.Fprintln(w, l)
		n += int64(m)
		if err != nil {
			return n, err
		}
	}
	return n, nil
}
