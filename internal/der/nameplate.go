// Package der models a photovoltaic inverter that follows the IEEE 1547
// control functions. The model is stepped explicitly: callers feed measured
// terminal conditions with UpdateInput and advance it with Run.
package der

import (
	"math"

	"dersim/internal/config"
)

// Ratings are the DER ratings in VA, W and var.
type Ratings struct {
	S float64
	P float64
	Q float64
}

// DeriveRatings converts an apparent power rating in MVA and a power factor
// into VA/W/var ratings with P = S*PF and Q = sqrt(S^2 - P^2).
func DeriveRatings(sMVA, pf float64) Ratings {
	s := sMVA * 1e6
	p := s * pf
	q := math.Sqrt(math.Max(s*s-p*p, 0))
	return Ratings{S: s, P: p, Q: q}
}

// ReactiveLimits returns the per-unit reactive injection and absorption
// capability required for a normal operating performance category.
func ReactiveLimits(cat config.NormalCategory) (inj, abs float64) {
	if cat == config.CategoryB {
		return 0.44, 0.44
	}
	return 0.44, 0.25
}

// Nameplate holds the ratings the model limits its output against.
type Nameplate struct {
	VAMax    float64
	PMax     float64
	QMaxInj  float64
	QMaxAbs  float64
	VNom     float64 // line-to-line, V
	Normal   config.NormalCategory
	Abnormal config.AbnormalCategory
}

// NewNameplate builds the nameplate for cfg.
func NewNameplate(cfg config.SimulationConfig) Nameplate {
	r := DeriveRatings(cfg.RatedApparentPowerMVA, cfg.RatedPowerFactor)
	inj, abs := ReactiveLimits(cfg.NormalCategory)
	return Nameplate{
		VAMax:    r.S,
		PMax:     r.S,
		QMaxInj:  r.S * inj,
		QMaxAbs:  r.S * abs,
		VNom:     cfg.RatedVoltageKV * 1000,
		Normal:   cfg.NormalCategory,
		Abnormal: cfg.AbnormalCategory,
	}
}

// phaseBase is the per-phase voltage base in V.
func (n Nameplate) phaseBase() float64 {
	return n.VNom / math.Sqrt(3)
}
