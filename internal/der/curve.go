package der

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/interp"

	"dersim/internal/config"
)

// Curve is a piecewise linear characteristic. Inputs outside the defined
// range take the value of the nearest end point.
type Curve struct {
	x, y []float64
	fn   interp.PiecewiseLinear
}

// NewCurve builds a curve from matching x and y points. x must be
// non-decreasing; repeated points are merged, while a repeated x with a
// different y is rejected.
func NewCurve(x, y []float64) (Curve, error) {
	if len(x) != len(y) {
		return Curve{}, fmt.Errorf("curve has %d x values and %d y values", len(x), len(y))
	}
	var xs, ys []float64
	for i := range x {
		if math.IsNaN(x[i]) || math.IsInf(x[i], 0) || math.IsNaN(y[i]) || math.IsInf(y[i], 0) {
			return Curve{}, fmt.Errorf("curve point %d (%v, %v) is not finite", i, x[i], y[i])
		}
		if n := len(xs); n > 0 {
			switch {
			case x[i] < xs[n-1]:
				return Curve{}, fmt.Errorf("curve x values must not decrease (%v after %v)", x[i], xs[n-1])
			case x[i] == xs[n-1] && y[i] == ys[n-1]:
				continue
			case x[i] == xs[n-1]:
				return Curve{}, fmt.Errorf("curve is discontinuous at x=%v", x[i])
			}
		}
		xs = append(xs, x[i])
		ys = append(ys, y[i])
	}
	if len(xs) < 2 {
		return Curve{}, fmt.Errorf("curve needs at least two distinct points")
	}
	c := Curve{x: xs, y: ys}
	if err := c.fn.Fit(xs, ys); err != nil {
		return Curve{}, fmt.Errorf("fit curve: %w", err)
	}
	return c, nil
}

func mustCurve(x, y []float64) Curve {
	c, err := NewCurve(x, y)
	if err != nil {
		panic(err)
	}
	return c
}

// At evaluates the curve.
func (c Curve) At(x float64) float64 {
	return c.fn.Predict(x)
}

// Points returns copies of the curve's breakpoints.
func (c Curve) Points() (x, y []float64) {
	return append([]float64(nil), c.x...), append([]float64(nil), c.y...)
}

// DefaultVoltVar returns the IEEE 1547 default volt-var curve for cat.
func DefaultVoltVar(cat config.NormalCategory) Curve {
	if cat == config.CategoryB {
		return mustCurve([]float64{0.92, 0.98, 1.02, 1.08}, []float64{0.44, 0, 0, -0.44})
	}
	return mustCurve([]float64{0.9, 1.0, 1.0, 1.1}, []float64{0.25, 0, 0, -0.25})
}

// DefaultWattVar returns the IEEE 1547 default watt-var curve for cat.
func DefaultWattVar(cat config.NormalCategory) Curve {
	_, abs := ReactiveLimits(cat)
	return mustCurve(
		[]float64{-1, -0.5, -0.2, 0.2, 0.5, 1},
		[]float64{0.44, 0, 0, 0, 0, -abs},
	)
}

// DefaultVoltWatt returns the IEEE 1547 default volt-watt curve.
func DefaultVoltWatt() Curve {
	return mustCurve([]float64{1.06, 1.10}, []float64{1, 0})
}
