package chart

import (
	"sort"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"

	"dersim/internal/der"
	"dersim/internal/results"
)

type overlay struct {
	title          string
	xcol, ycol     string
	xlabel, ylabel string
	// lo and hi extend the curve with flat ends when they lie outside it.
	lo, hi float64
}

func overlayFor(m der.Mode) (overlay, bool) {
	switch m.(type) {
	case der.VoltVar:
		return overlay{"Volt-var", results.ColVm, results.ColQ, "Voltage (pu)", "Q_out (pu)", 0.88, 1.12}, true
	case der.WattVar:
		return overlay{"Watt-var", results.ColP, results.ColQ, "P_out (pu)", "Q_out (pu)", 0, 0}, true
	case der.VoltWatt:
		return overlay{"Volt-watt", results.ColVm, results.ColP, "Voltage (pu)", "P_out (pu)", 0.82, 1.12}, true
	}
	return overlay{}, false
}

// extend pads the curve with flat segments out to lo and hi.
func extend(x, y []float64, lo, hi float64) ([]float64, []float64) {
	if len(x) == 0 {
		return x, y
	}
	if lo < x[0] {
		x = append([]float64{lo}, x...)
		y = append([]float64{y[0]}, y...)
	}
	if hi > x[len(x)-1] {
		x = append(x, hi)
		y = append(y, y[len(y)-1])
	}
	return x, y
}

// every returns v[n-1], v[2n-1], ...
func every(v []float64, n int) []float64 {
	var out []float64
	for i := n - 1; i < len(v); i += n {
		out = append(out, v[i])
	}
	return out
}

// operatingPoints takes the settled point of every step. x is sorted
// ascending and y descending before pairing.
func operatingPoints(x, y []float64, pointsPerStep int) plotter.XYs {
	xs := every(x, pointsPerStep)
	ys := every(y, pointsPerStep)
	sort.Float64s(xs)
	sort.Sort(sort.Reverse(sort.Float64Slice(ys)))
	return xys(xs, ys)
}

// OperatingCurve overlays the static curve of a curve based mode with the
// sampled operating points. It returns nil when m has no curve.
func OperatingCurve(fr *results.Frame, m der.Mode, pointsPerStep int) (*plot.Plot, error) {
	ov, ok := overlayFor(m)
	curve, hasCurve := der.CurveOf(m)
	if !ok || !hasCurve || pointsPerStep <= 0 {
		return nil, nil
	}
	c, err := floats(fr, ov.xcol, ov.ycol)
	if err != nil {
		return nil, err
	}

	p := newPlot(ov.title, ov.xlabel, ov.ylabel)
	cx, cy := curve.Points()
	cx, cy = extend(cx, cy, ov.lo, ov.hi)
	line, err := plotter.NewLine(xys(cx, cy))
	if err != nil {
		return nil, err
	}
	line.Color = curveColor
	line.Width = vg.Points(1.5)
	p.Add(line)
	p.Legend.Add(ov.title+" curve", line)

	sc, err := plotter.NewScatter(operatingPoints(c[0], c[1], pointsPerStep))
	if err != nil {
		return nil, err
	}
	sc.GlyphStyle.Shape = draw.TriangleGlyph{}
	sc.GlyphStyle.Color = sampleColor
	sc.GlyphStyle.Radius = vg.Points(4)
	p.Add(sc)
	return p, nil
}
