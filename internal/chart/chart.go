// Package chart renders exported run results with gonum/plot.
package chart

import (
	"fmt"
	"image/color"
	"os"
	"strings"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgimg"

	"dersim/internal/der"
	"dersim/internal/results"
)

var (
	reactiveColor = color.RGBA{R: 0xff, G: 0x7f, B: 0x0e, A: 0xff}
	curveColor    = color.RGBA{R: 0xd6, G: 0x27, B: 0x28, A: 0xff}
	sampleColor   = color.RGBA{R: 0x1f, G: 0x77, B: 0xb4, A: 0xff}
)

// Range is a fixed axis range.
type Range struct {
	Min, Max float64
}

// Options adjust the DER figure.
type Options struct {
	// P and Q override the autoscaled active and reactive power axes.
	P, Q *Range
}

// Grid is a rows by columns figure. Each cell stacks one or more plots.
type Grid [][][]*plot.Plot

func xys(x, y []float64) plotter.XYs {
	pts := make(plotter.XYs, len(x))
	for i := range x {
		pts[i].X = x[i]
		pts[i].Y = y[i]
	}
	return pts
}

func floats(fr *results.Frame, cols ...string) ([][]float64, error) {
	out := make([][]float64, len(cols))
	for i, c := range cols {
		v, err := fr.Floats(c)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func newPlot(title, xlabel, ylabel string) *plot.Plot {
	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = xlabel
	p.Y.Label.Text = ylabel
	p.Add(plotter.NewGrid())
	return p
}

func (r *Range) apply(ax *plot.Axis) {
	if r == nil {
		return
	}
	ax.Min, ax.Max = r.Min, r.Max
}

// WithoutDER plots the phase and mean voltages of a feeder run without DER.
func WithoutDER(fr *results.Frame, bus string) (*plot.Plot, error) {
	c, err := floats(fr, results.ColTime, results.ColVa, results.ColVb, results.ColVc, results.ColVm)
	if err != nil {
		return nil, err
	}
	t := c[0]
	p := newPlot(fmt.Sprintf("Voltage at Bus %s", bus), "Time (s)", "Voltage (pu)")
	if err := plotutil.AddLines(p,
		"Va", xys(t, c[1]),
		"Vb", xys(t, c[2]),
		"Vc", xys(t, c[3]),
		"V Mean", xys(t, c[4]),
	); err != nil {
		return nil, err
	}
	return p, nil
}

// WithDER builds the 3x2 DER figure: voltages, P and Q, currents, power
// factor, current angles and status.
func WithDER(fr *results.Frame, title string, opts Options) (Grid, error) {
	c, err := floats(fr,
		results.ColTime, results.ColVa, results.ColVb, results.ColVc, results.ColVm,
		results.ColP, results.ColQ, results.ColPF,
		results.ColIa, results.ColIb, results.ColIc,
		results.ColIaAng, results.ColIbAng, results.ColIcAng,
	)
	if err != nil {
		return nil, err
	}
	status, err := fr.Strings(results.ColStatus)
	if err != nil {
		return nil, err
	}
	t := c[0]

	volt := newPlot(title, "", "Voltage (pu)")
	if err := plotutil.AddLines(volt, "Va", xys(t, c[1]), "Vb", xys(t, c[2]), "Vc", xys(t, c[3]), "V Mean", xys(t, c[4])); err != nil {
		return nil, err
	}

	pw := newPlot("", "", "Active Power (pu)")
	if err := plotutil.AddLines(pw, "Active Power", xys(t, c[5])); err != nil {
		return nil, err
	}
	opts.P.apply(&pw.Y)

	qw := newPlot("", "", "Reactive Power (pu)")
	ql, err := plotter.NewLine(xys(t, c[6]))
	if err != nil {
		return nil, err
	}
	ql.Color = reactiveColor
	qw.Add(ql)
	qw.Legend.Add("Reactive Power", ql)
	opts.Q.apply(&qw.Y)

	cur := newPlot("", "", "Current (pu)")
	if err := plotutil.AddLines(cur, "Ia", xys(t, c[8]), "Ib", xys(t, c[9]), "Ic", xys(t, c[10])); err != nil {
		return nil, err
	}

	pf := newPlot("", "", "Power Factor")
	if err := plotutil.AddLines(pf, xys(t, c[7])); err != nil {
		return nil, err
	}

	ang := newPlot("", "Time (s)", "Current Angle (rad)")
	if err := plotutil.AddLines(ang, "Ia Angle", xys(t, c[11]), "Ib Angle", xys(t, c[12]), "Ic Angle", xys(t, c[13])); err != nil {
		return nil, err
	}

	st, err := statusPlot(t, status)
	if err != nil {
		return nil, err
	}

	return Grid{
		{{volt}, {pw, qw}},
		{{cur}, {pf}},
		{{ang}, {st}},
	}, nil
}

// statusLevels orders the known statuses; others follow in order of
// appearance.
var statusLevels = []string{der.StatusNormal, der.StatusRideThrough, der.StatusTrip}

func statusPlot(t []float64, status []string) (*plot.Plot, error) {
	level := make(map[string]float64)
	var ticks []plot.Tick
	add := func(s string) {
		if _, ok := level[s]; ok {
			return
		}
		level[s] = float64(len(ticks))
		ticks = append(ticks, plot.Tick{Value: level[s], Label: strings.ReplaceAll(s, " ", "\n")})
	}
	for _, s := range statusLevels {
		add(s)
	}
	y := make([]float64, len(status))
	for i, s := range status {
		add(s)
		y[i] = level[s]
	}
	p := newPlot("", "Time (s)", "")
	if err := plotutil.AddLines(p, "Status", xys(t, y)); err != nil {
		return nil, err
	}
	p.Y.Tick.Marker = plot.ConstantTicks(ticks)
	p.Y.Min, p.Y.Max = -0.5, float64(len(ticks))-0.5
	return p, nil
}

// Save draws the grid into a PNG image of the given size.
func (g Grid) Save(path string, w, h vg.Length) error {
	img := vgimg.NewWith(vgimg.UseWH(w, h), vgimg.UseBackgroundColor(color.White))
	dc := draw.New(img)
	cols := 0
	for _, row := range g {
		if len(row) > cols {
			cols = len(row)
		}
	}
	tiles := draw.Tiles{
		Rows: len(g), Cols: cols,
		PadX: vg.Millimeter * 4, PadY: vg.Millimeter * 4,
		PadTop: vg.Millimeter * 2, PadBottom: vg.Millimeter * 2,
		PadLeft: vg.Millimeter * 2, PadRight: vg.Millimeter * 2,
	}
	for j, row := range g {
		for i, cell := range row {
			if len(cell) == 0 {
				continue
			}
			sub := draw.Tiles{Rows: len(cell), Cols: 1, PadY: vg.Millimeter * 2}
			c := tiles.At(dc, i, j)
			for k, p := range cell {
				p.Draw(sub.At(c, 0, k))
			}
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if _, err := (vgimg.PngCanvas{Canvas: img}).WriteTo(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
