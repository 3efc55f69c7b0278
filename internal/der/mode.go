package der

import (
	"fmt"

	"dersim/internal/config"
)

// Mode is the single active control function. It is one of ConstantPF,
// VoltVar, WattVar, ConstantVar, VoltWatt or FrequencyWatt.
type Mode interface {
	Kind() config.ControlMode
	mode()
}

// Excitation selects whether constant power factor injects or absorbs vars.
type Excitation string

const (
	Inject Excitation = "INJ"
	Absorb Excitation = "ABS"
)

// ConstantPF holds the power factor fixed.
type ConstantPF struct {
	PF         float64
	Excitation Excitation
}

// VoltVar sets reactive power from the measured voltage.
type VoltVar struct{ Curve Curve }

// WattVar sets reactive power from the active power output.
type WattVar struct{ Curve Curve }

// ConstantVar holds reactive power at Q per unit.
type ConstantVar struct{ Q float64 }

// VoltWatt limits active power by the measured voltage.
type VoltWatt struct{ Curve Curve }

// FrequencyWatt curtails active power with a droop once frequency rises past
// the deadband. DeadbandOF is in Hz, DroopOF in per unit frequency per unit
// power.
type FrequencyWatt struct {
	NominalHz  float64
	DeadbandOF float64
	DroopOF    float64
}

func (ConstantPF) Kind() config.ControlMode    { return config.ModeConstantPF }
func (VoltVar) Kind() config.ControlMode       { return config.ModeVoltVar }
func (WattVar) Kind() config.ControlMode       { return config.ModeWattVar }
func (ConstantVar) Kind() config.ControlMode   { return config.ModeConstantVar }
func (VoltWatt) Kind() config.ControlMode      { return config.ModeVoltWatt }
func (FrequencyWatt) Kind() config.ControlMode { return config.ModeFrequencyWatt }

func (ConstantPF) mode()    {}
func (VoltVar) mode()       {}
func (WattVar) mode()       {}
func (ConstantVar) mode()   {}
func (VoltWatt) mode()      {}
func (FrequencyWatt) mode() {}

// DefaultFrequencyWatt returns the IEEE 1547 default frequency droop.
func DefaultFrequencyWatt(nominalHz float64) FrequencyWatt {
	return FrequencyWatt{
		NominalHz:  nominalHz,
		DeadbandOF: 0.036,
		DroopOF:    0.05,
	}
}

// ModeFor builds the control function selected by cfg. Curve overrides from
// the run profile replace the category defaults.
func ModeFor(cfg config.SimulationConfig, ov config.CurveOverrides, nominalHz float64) (Mode, error) {
	switch cfg.ControlMode {
	case config.ModeConstantPF:
		return ConstantPF{PF: cfg.RatedPowerFactor, Excitation: Inject}, nil
	case config.ModeVoltVar:
		c, err := curveOr(ov.VoltVar, DefaultVoltVar(cfg.NormalCategory))
		if err != nil {
			return nil, fmt.Errorf("volt-var curve: %w", err)
		}
		return VoltVar{Curve: c}, nil
	case config.ModeWattVar:
		c, err := curveOr(ov.WattVar, DefaultWattVar(cfg.NormalCategory))
		if err != nil {
			return nil, fmt.Errorf("watt-var curve: %w", err)
		}
		return WattVar{Curve: c}, nil
	case config.ModeConstantVar:
		return ConstantVar{Q: cfg.ConstantReactivePower}, nil
	case config.ModeVoltWatt:
		c, err := curveOr(ov.VoltWatt, DefaultVoltWatt())
		if err != nil {
			return nil, fmt.Errorf("volt-watt curve: %w", err)
		}
		return VoltWatt{Curve: c}, nil
	case config.ModeFrequencyWatt:
		return DefaultFrequencyWatt(nominalHz), nil
	}
	return nil, &config.ValidationError{Field: config.KeyControlMode, Reason: fmt.Sprintf("unknown mode %q", cfg.ControlMode)}
}

// CurveOf returns the static characteristic of curve based modes.
func CurveOf(m Mode) (Curve, bool) {
	switch m := m.(type) {
	case VoltVar:
		return m.Curve, true
	case WattVar:
		return m.Curve, true
	case VoltWatt:
		return m.Curve, true
	}
	return Curve{}, false
}

func curveOr(p *config.CurvePoints, def Curve) (Curve, error) {
	if p == nil {
		return def, nil
	}
	return NewCurve(p.X, p.Y)
}
