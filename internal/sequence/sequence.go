// Package sequence generates the load multiplier trajectories that drive the
// feeder load during a run.
package sequence

import (
	"fmt"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/floats"
)

// Default ramp bounds used for stepped runs.
const (
	RampStart = 0.5
	RampMin   = -0.2
	RampMax   = 1.2
)

// Constant returns count copies of v.
func Constant(v float64, count int) []float64 {
	if count <= 0 {
		return nil
	}
	out := make([]float64, count)
	for i := range out {
		out[i] = v
	}
	return out
}

// Ramp builds steps+1 control points by interleaving a rising ramp from start
// to max (even indices) with a ramp from start to min (odd indices). When the
// control point count is odd a final 1 is appended. Every control point but
// the first is then repeated pointsPerStep times, so the result always has
// steps*pointsPerStep elements.
func Ramp(start, min, max float64, steps, pointsPerStep int) ([]float64, error) {
	if steps < 1 {
		return nil, fmt.Errorf("ramp needs at least one step, got %d", steps)
	}
	if pointsPerStep < 1 {
		return nil, fmt.Errorf("ramp needs at least one point per step, got %d", pointsPerStep)
	}
	n := steps + 1
	half := n / 2
	high := linspace(start, max, half)
	low := linspace(high[0], min, half)

	control := make([]float64, 0, n)
	for i := 0; i < half; i++ {
		control = append(control, high[i], low[i])
	}
	if n%2 == 1 {
		control = append(control, 1)
	}

	out := make([]float64, 0, steps*pointsPerStep)
	for _, v := range control[1:] {
		for j := 0; j < pointsPerStep; j++ {
			out = append(out, v)
		}
	}
	return out, nil
}

// linspace returns n evenly spaced values from a to b inclusive. A single
// point yields a. The last value is exactly b.
func linspace(a, b float64, n int) []float64 {
	if n == 1 {
		return []float64{a}
	}
	dst := floats.Span(make([]float64, n), a, b)
	dst[n-1] = b
	return dst
}

// Join formats seq as a space separated list, the array syntax solver
// commands expect between brackets.
func Join(seq []float64) string {
	parts := make([]string, len(seq))
	for i, v := range seq {
		parts[i] = strconv.FormatFloat(v, 'g', -1, 64)
	}
	return strings.Join(parts, " ")
}
