package der

import (
	"math"
	"testing"

	"gotest.tools/v3/assert"
	is "gotest.tools/v3/assert/cmp"

	"dersim/internal/config"
)

func TestCurveInterpolatesAndClamps(t *testing.T) {
	c := DefaultVoltVar(config.CategoryB)
	cases := []struct{ v, q float64 }{
		{0.80, 0.44},
		{0.92, 0.44},
		{0.95, 0.22},
		{1.00, 0},
		{1.05, -0.22},
		{1.08, -0.44},
		{1.30, -0.44},
	}
	for _, tc := range cases {
		assert.Assert(t, near(c.At(tc.v), tc.q), "At(%v) = %v, want %v", tc.v, c.At(tc.v), tc.q)
	}
}

func TestCurveMergesRepeatedPoints(t *testing.T) {
	c := DefaultVoltVar(config.CategoryA)
	x, y := c.Points()
	assert.DeepEqual(t, x, []float64{0.9, 1.0, 1.1})
	assert.DeepEqual(t, y, []float64{0.25, 0, -0.25})
}

func TestNewCurveRejects(t *testing.T) {
	_, err := NewCurve([]float64{1, 2}, []float64{1})
	assert.ErrorContains(t, err, "2 x values and 1 y values")

	_, err = NewCurve([]float64{1, 0.9}, []float64{0, 0})
	assert.ErrorContains(t, err, "must not decrease")

	_, err = NewCurve([]float64{1, 1}, []float64{0, 1})
	assert.ErrorContains(t, err, "discontinuous")

	_, err = NewCurve([]float64{1, 1}, []float64{0, 0})
	assert.ErrorContains(t, err, "two distinct points")

	_, err = NewCurve([]float64{0.9, math.NaN(), 1.1}, []float64{0.25, 0, -0.25})
	assert.ErrorContains(t, err, "not finite")

	_, err = NewCurve([]float64{0.9, 1.1}, []float64{math.Inf(1), 0})
	assert.ErrorContains(t, err, "not finite")
}

func TestModeFor(t *testing.T) {
	cfg := config.Default()
	for _, m := range config.ControlModes {
		cfg.ControlMode = m
		mode, err := ModeFor(cfg, config.CurveOverrides{}, 60)
		assert.NilError(t, err)
		assert.Equal(t, mode.Kind(), m)
	}

	cfg.ControlMode = config.ModeConstantVar
	cfg.ConstantReactivePower = -0.3
	mode, err := ModeFor(cfg, config.CurveOverrides{}, 60)
	assert.NilError(t, err)
	assert.Equal(t, mode.(ConstantVar).Q, -0.3)

	cfg.ControlMode = "bogus"
	_, err = ModeFor(cfg, config.CurveOverrides{}, 60)
	assert.ErrorContains(t, err, "unknown mode")
}

func TestModeForOverride(t *testing.T) {
	cfg := config.Default()
	cfg.ControlMode = config.ModeVoltWatt
	ov := config.CurveOverrides{VoltWatt: &config.CurvePoints{X: []float64{1.05, 1.09}, Y: []float64{1, 0.2}}}
	mode, err := ModeFor(cfg, ov, 60)
	assert.NilError(t, err)
	c, ok := CurveOf(mode)
	assert.Assert(t, ok)
	x, _ := c.Points()
	assert.Assert(t, is.DeepEqual(x, []float64{1.05, 1.09}))

	ov.VoltWatt = &config.CurvePoints{X: []float64{1.1, 1.0}, Y: []float64{1, 0}}
	_, err = ModeFor(cfg, ov, 60)
	assert.ErrorContains(t, err, "volt-watt curve")

	_, ok = CurveOf(ConstantVar{})
	assert.Assert(t, !ok)
}

func near(a, b float64) bool {
	d := a - b
	return d < 1e-9 && d > -1e-9
}
