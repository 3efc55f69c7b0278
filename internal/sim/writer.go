// Package sim drives a DER feeder study: it configures the solver, steps the
// load trajectory, closes the loop through the DER model and streams every
// step to the configured writers.
package sim

import (
	"time"

	"dersim/internal/config"
	"dersim/internal/der"
	"dersim/internal/results"
)

// SampleRow is one streamed simulation step.
type SampleRow struct {
	RunID    string             `json:"run_id"`
	Mode     config.ControlMode `json:"mode,omitempty"`
	Index    int                `json:"index"`
	LoadMult float64            `json:"loadmult"`
	results.Sample
	Timestamp time.Time `json:"timestamp"`
}

// RunSummary is written once when a run finishes.
type RunSummary struct {
	RunID     string             `json:"run_id"`
	Mode      config.ControlMode `json:"mode,omitempty"`
	WithDER   bool               `json:"with_der"`
	Samples   int                `json:"samples"`
	Solves    int                `json:"solves"`
	MinV      float64            `json:"min_v_pu"`
	MaxV      float64            `json:"max_v_pu"`
	Trips     int                `json:"trips"` // transitions into Trip
	Started   time.Time          `json:"started"`
	Elapsed   time.Duration      `json:"elapsed_ns"`
	Timestamp time.Time          `json:"timestamp"`
}

// tripOnset reports whether status enters Trip after prev.
func tripOnset(prev, status string) bool {
	return status == der.StatusTrip && prev != der.StatusTrip
}

// SampleWriter is an interface to support different output writers.
type SampleWriter interface {
	Write(SampleRow) error
}

// Optional: Writers can also support batch mode
type batchWriter interface {
	WriteBatch([]SampleRow) error
}

// SummaryWriter receives the end-of-run summary.
type SummaryWriter interface {
	WriteSummary(RunSummary) error
}

// StateReporter is notified when the orchestrator changes state.
type StateReporter interface {
	SetState(State)
}

// Discard drops every row.
type Discard struct{}

func (Discard) Write(SampleRow) error { return nil }
