// Package results collects per-step samples of a run and moves them to and
// from CSV.
package results

import (
	"math"

	"dersim/internal/config"
)

// Sample is one simulated point. Voltages and currents are per unit, angles
// in radians.
type Sample struct {
	Time   float64    `json:"time_s"`
	Va     float64    `json:"va_pu"`
	Vb     float64    `json:"vb_pu"`
	Vc     float64    `json:"vc_pu"`
	Vm     float64    `json:"vm_pu"`
	P      float64    `json:"p_pu"`
	Q      float64    `json:"q_pu"`
	I      [3]float64 `json:"i_pu"`
	IAngle [3]float64 `json:"i_angle_rad"`
	Status string     `json:"status,omitempty"`
}

// PF is cos(atan2(Q, P)).
func (s Sample) PF() float64 {
	return math.Cos(math.Atan2(s.Q, s.P))
}

// MeanVoltage is the average of the three phase voltages.
func (s Sample) MeanVoltage() float64 {
	return (s.Va + s.Vb + s.Vc) / 3
}

// Table is the finished result of a run. It is not modified after NewTable.
type Table struct {
	withDER bool
	mode    config.ControlMode
	samples []Sample
}

// NewTable copies samples into a table. Without a DER the mean voltage column
// is derived from the phase voltages.
func NewTable(withDER bool, mode config.ControlMode, samples []Sample) *Table {
	s := make([]Sample, len(samples))
	copy(s, samples)
	if !withDER {
		for i := range s {
			s[i].Vm = s[i].MeanVoltage()
		}
	}
	return &Table{withDER: withDER, mode: mode, samples: s}
}

// WithDER reports which schema the table uses.
func (t *Table) WithDER() bool { return t.withDER }

// Mode is the control mode the run used.
func (t *Table) Mode() config.ControlMode { return t.mode }

// Len is the number of samples.
func (t *Table) Len() int { return len(t.samples) }

// Samples returns a copy of the rows.
func (t *Table) Samples() []Sample {
	return append([]Sample(nil), t.samples...)
}

// FileName is the CSV name for the table's schema.
func (t *Table) FileName() string {
	return FileName(t.withDER, t.mode)
}

// FileName returns data_without_DER.csv, or data_<mode>.csv with a DER.
func FileName(withDER bool, mode config.ControlMode) string {
	if !withDER {
		return "data_without_DER.csv"
	}
	return "data_" + string(mode) + ".csv"
}
