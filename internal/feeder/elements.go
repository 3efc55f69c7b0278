package feeder

import (
	"fmt"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/interp"

	"dersim/internal/dss"
)

// element is anything a New, Edit or "~" line can set properties on.
type element interface {
	set(key, value string) error
}

func apply(el element, props []dss.Prop) error {
	for _, p := range props {
		if err := el.set(p.Key, p.Value); err != nil {
			return fmt.Errorf("%s=%s: %w", p.Key, p.Value, err)
		}
	}
	return nil
}

type xyCurve struct {
	npts int
	x, y []float64
	fn   *interp.PiecewiseLinear
}

func (c *xyCurve) set(key, value string) (err error) {
	switch key {
	case "npts":
		c.npts, err = strconv.Atoi(value)
	case "xarray":
		c.x, err = dss.ParseArray(value)
	case "yarray":
		c.y, err = dss.ParseArray(value)
	default:
		return fmt.Errorf("unknown XYCurve property")
	}
	c.fn = nil
	return err
}

func (c *xyCurve) at(x float64) (float64, error) {
	if c.fn == nil {
		n := len(c.x)
		if c.npts > 0 && c.npts < n {
			n = c.npts
		}
		if n < 2 || len(c.y) < n {
			return 0, fmt.Errorf("curve needs at least two x/y points")
		}
		for i := 1; i < n; i++ {
			if c.x[i] <= c.x[i-1] {
				return 0, fmt.Errorf("curve x values must increase")
			}
		}
		c.fn = &interp.PiecewiseLinear{}
		_ = c.fn.Fit(c.x[:n], c.y[:n])
	}
	return c.fn.Predict(x), nil
}

// shape is a Loadshape or Tshape sampled at a fixed interval in hours.
type shape struct {
	npts     int
	interval float64
	values   []float64
	prop     string
}

func (s *shape) set(key, value string) (err error) {
	switch key {
	case "npts":
		s.npts, err = strconv.Atoi(value)
	case "interval":
		s.interval, err = dss.ParseFloat(value)
	case s.prop:
		s.values, err = dss.ParseArray(value)
	default:
		return fmt.Errorf("unknown shape property")
	}
	return err
}

// at returns the value in effect at hour h. A shape point k covers the
// interval ending at (k+1)*interval.
func (s *shape) at(h float64) float64 {
	n := len(s.values)
	if s.npts > 0 && s.npts < n {
		n = s.npts
	}
	if n == 0 {
		return 1
	}
	interval := s.interval
	if interval <= 0 {
		interval = 1
	}
	idx := int(h/interval+1e-9) - 1
	if idx < 0 {
		idx = 0
	}
	return s.values[idx%n]
}

type pvSystem struct {
	name       string
	phases     int
	bus        string
	kv         float64
	kva        float64
	pmpp       float64
	pf         float64
	kvar       float64
	kvarMode   bool
	irradiance float64
	cutIn      float64
	cutOut     float64
	effCurve   string
	ptCurve    string
	daily      string
	tdaily     string
}

func newPVSystem(name string) *pvSystem {
	return &pvSystem{name: name, phases: 3, kva: 500, pmpp: 500, pf: 1, irradiance: 1, cutIn: 20, cutOut: 20}
}

func (p *pvSystem) set(key, value string) (err error) {
	switch key {
	case "phases":
		p.phases, err = strconv.Atoi(value)
	case "bus1":
		p.bus = value
	case "kv":
		p.kv, err = dss.ParseFloat(value)
	case "kva":
		p.kva, err = dss.ParseFloat(value)
	case "pmpp":
		p.pmpp, err = dss.ParseFloat(value)
	case "pf":
		p.pf, err = dss.ParseFloat(value)
		p.kvarMode = false
	case "kvar":
		p.kvar, err = dss.ParseFloat(value)
		p.kvarMode = true
	case "irradiance":
		p.irradiance, err = dss.ParseFloat(value)
	case "%cutin":
		p.cutIn, err = dss.ParseFloat(value)
	case "%cutout":
		p.cutOut, err = dss.ParseFloat(value)
	case "effcurve":
		p.effCurve = strings.ToLower(value)
	case "p-tcurve":
		p.ptCurve = strings.ToLower(value)
	case "daily":
		p.daily = strings.ToLower(value)
	case "tdaily":
		p.tdaily = strings.ToLower(value)
	default:
		return fmt.Errorf("unknown PVSystem property")
	}
	return err
}

// monitor records one sample per solution. Mode 0 records voltage and
// current magnitude/angle per phase, mode 1 power per phase into the
// terminal.
type monitor struct {
	element  string
	terminal int
	mode     int
	ppolar   bool
	channels [][]float64
}

func (m *monitor) set(key, value string) (err error) {
	switch key {
	case "element":
		m.element = strings.ToLower(value)
	case "terminal":
		m.terminal, err = strconv.Atoi(value)
	case "mode":
		m.mode, err = strconv.Atoi(value)
		if err == nil && m.mode != 0 && m.mode != 1 {
			err = fmt.Errorf("only monitor modes 0 and 1 are supported")
		}
	case "ppolar":
		m.ppolar = yes(value)
	default:
		return fmt.Errorf("unknown Monitor property")
	}
	return err
}

func (m *monitor) record(sample []float64) {
	if m.channels == nil {
		m.channels = make([][]float64, len(sample))
	}
	for i, v := range sample {
		m.channels[i] = append(m.channels[i], v)
	}
}

type energyMeter struct {
	element  string
	terminal int
}

func (e *energyMeter) set(key, value string) (err error) {
	switch key {
	case "element":
		e.element = strings.ToLower(value)
	case "terminal":
		e.terminal, err = strconv.Atoi(value)
	default:
		return fmt.Errorf("unknown EnergyMeter property")
	}
	return err
}

// positional maps positional arguments onto property names in order.
func positional(el element, args []string, names ...string) error {
	for i, a := range args {
		if i >= len(names) {
			return fmt.Errorf("unexpected argument %q", a)
		}
		if err := el.set(names[i], dss.Unquote(a)); err != nil {
			return fmt.Errorf("%s=%s: %w", names[i], a, err)
		}
	}
	return nil
}

func yes(v string) bool {
	switch strings.ToLower(dss.Unquote(v)) {
	case "y", "yes", "true", "t", "1":
		return true
	}
	return false
}
