// DER simulation parameters and their validation
package config

import (
	"fmt"
	"math"
	"strings"
)

// ControlMode selects the DER control function that is active during a run.
type ControlMode string

const (
	ModeConstantPF    ControlMode = "constant_pf"
	ModeVoltVar       ControlMode = "volt_var"
	ModeWattVar       ControlMode = "watt_var"
	ModeConstantVar   ControlMode = "constant_var"
	ModeVoltWatt      ControlMode = "volt_watt"
	ModeFrequencyWatt ControlMode = "frequency_watt"
)

// ControlModes lists every supported mode in display order.
var ControlModes = []ControlMode{
	ModeConstantPF,
	ModeVoltVar,
	ModeWattVar,
	ModeConstantVar,
	ModeVoltWatt,
	ModeFrequencyWatt,
}

// Title is the chart heading used for a mode.
func (m ControlMode) Title(cat NormalCategory) string {
	switch m {
	case ModeConstantPF:
		return "Constant Power Factor Mode"
	case ModeVoltVar:
		return fmt.Sprintf("Voltage-Reactive Power Mode - CAT %s", cat)
	case ModeWattVar:
		return fmt.Sprintf("Active Power-Reactive Power Mode - CAT %s", cat)
	case ModeConstantVar:
		return "Constant Reactive Power Mode"
	case ModeVoltWatt:
		return "Voltage-Active Power Mode"
	default:
		return "Frequency-Active Power Mode"
	}
}

// Valid reports whether m is one of ControlModes.
func (m ControlMode) Valid() bool {
	for _, c := range ControlModes {
		if c == m {
			return true
		}
	}
	return false
}

// NormalCategory is the IEEE 1547 normal operating performance category.
type NormalCategory string

const (
	CategoryA NormalCategory = "A"
	CategoryB NormalCategory = "B"
)

// AbnormalCategory is the IEEE 1547 abnormal operating performance category.
type AbnormalCategory string

const (
	CategoryI   AbnormalCategory = "I"
	CategoryII  AbnormalCategory = "II"
	CategoryIII AbnormalCategory = "III"
)

// Steady-state runs always cover one day of hourly points.
const (
	SteadyStateTime   = 3600
	SteadyStatePoints = 24
)

// SimulationConfig is the flat parameter set persisted in the DER file.
type SimulationConfig struct {
	SimulationTime        float64
	NumberSteps           int
	PointsPerStep         int
	DEREnabled            bool
	BusID                 string
	RatedVoltageKV        float64
	LineID                string
	ControlMode           ControlMode
	RatedApparentPowerMVA float64
	RatedPowerFactor      float64
	ConstantReactivePower float64
	NormalCategory        NormalCategory
	AbnormalCategory      AbnormalCategory
}

// Default returns the parameters of the 8500-node reference study.
func Default() SimulationConfig {
	return SimulationConfig{
		SimulationTime:        90,
		NumberSteps:           7,
		PointsPerStep:         30,
		DEREnabled:            true,
		BusID:                 "l3104830",
		RatedVoltageKV:        12.47,
		LineID:                "ln5710794-1",
		ControlMode:           ModeVoltVar,
		RatedApparentPowerMVA: 1,
		RatedPowerFactor:      0.9,
		ConstantReactivePower: 0.44,
		NormalCategory:        CategoryB,
		AbnormalCategory:      CategoryII,
	}
}

// SteadyState reports whether the run has no stepped load ramp.
func (c SimulationConfig) SteadyState() bool {
	return c.NumberSteps == 0
}

// TotalPoints is the number of solver steps the run performs.
func (c SimulationConfig) TotalPoints() int {
	if c.SteadyState() {
		return SteadyStatePoints
	}
	return c.NumberSteps * c.PointsPerStep
}

// TimeStep is the simulated duration of one solver step in seconds.
func (c SimulationConfig) TimeStep() float64 {
	if c.SteadyState() {
		return c.SimulationTime
	}
	return c.SimulationTime / float64(c.TotalPoints())
}

// ValidationError reports an out-of-range or missing parameter.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// Validate checks every field against its documented range.
func (c SimulationConfig) Validate() error {
	switch {
	case !(c.SimulationTime > 0) || math.IsInf(c.SimulationTime, 0):
		return &ValidationError{Field: KeySimulationTime, Reason: "must be > 0"}
	case c.NumberSteps < 0:
		return &ValidationError{Field: KeyNumberSteps, Reason: "must be >= 0"}
	case c.PointsPerStep <= 0:
		return &ValidationError{Field: KeyPointsPerStep, Reason: "must be > 0"}
	case !validToken(c.BusID):
		return &ValidationError{Field: KeyBus, Reason: "must be a single non-empty token"}
	case !validToken(c.LineID):
		return &ValidationError{Field: KeyLine, Reason: "must be a single non-empty token"}
	case !(c.RatedVoltageKV > 0):
		return &ValidationError{Field: KeyRatedVoltage, Reason: "must be > 0"}
	case !c.ControlMode.Valid():
		return &ValidationError{Field: KeyControlMode, Reason: fmt.Sprintf("unknown mode %q", c.ControlMode)}
	case !(c.RatedApparentPowerMVA > 0):
		return &ValidationError{Field: KeyRatedPower, Reason: "must be > 0"}
	case !(c.RatedPowerFactor > 0 && c.RatedPowerFactor <= 1):
		return &ValidationError{Field: KeyRatedPF, Reason: "must be in (0, 1]"}
	case math.IsNaN(c.ConstantReactivePower) || math.IsInf(c.ConstantReactivePower, 0):
		return &ValidationError{Field: KeyConstantQ, Reason: "must be finite"}
	}
	if c.NormalCategory != CategoryA && c.NormalCategory != CategoryB {
		return &ValidationError{Field: KeyNormalCategory, Reason: fmt.Sprintf("unknown category %q", c.NormalCategory)}
	}
	switch c.AbnormalCategory {
	case CategoryI, CategoryII, CategoryIII:
	default:
		return &ValidationError{Field: KeyAbnormalCategory, Reason: fmt.Sprintf("unknown category %q", c.AbnormalCategory)}
	}
	return nil
}

func validToken(s string) bool {
	return s != "" && len(strings.Fields(s)) == 1
}
