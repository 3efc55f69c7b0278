// Package feeder is an in-process feeder solver. It reduces the feeder to a
// three-phase Thevenin equivalent seen from the point of common coupling and
// accepts the subset of the OpenDSS script grammar a DER study issues.
package feeder

import (
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"strings"

	"dersim/internal/config"
	"dersim/internal/dss"
)

const defaultMaxIterations = 15

// loadModel is the state "batchedit load..*" acts on. Loads are aggregated
// into the feeder equivalent, so every load shares it.
type loadModel struct {
	model int
	vmin  float64
	vmax  float64
	kw    float64
	kvar  float64
}

// Engine implements dss.Engine over a Thevenin feeder equivalent.
type Engine struct {
	prof config.FeederProfile
	log  *slog.Logger

	closed   bool
	master   string
	loadmult float64
	maxIter  int
	mode     string
	stepH    float64
	number   int
	hour     float64
	solves   int
	capsOn   bool
	markers  []string
	loads    loadModel

	curves   map[string]*xyCurve
	shapes   map[string]*shape
	tshapes  map[string]*shape
	pvs      map[string]*pvSystem
	monitors map[string]*monitor
	meters   map[string]*energyMeter
	last     element

	sol solution
}

var _ dss.Engine = (*Engine)(nil)

// New returns an engine for the feeder described by p. A nil logger uses
// slog.Default.
func New(p config.FeederProfile, log *slog.Logger) *Engine {
	if log == nil {
		log = slog.Default()
	}
	e := &Engine{prof: p, log: log}
	e.reset()
	return e
}

func (e *Engine) reset() {
	e.master = ""
	e.loadmult = 1
	e.maxIter = defaultMaxIterations
	e.mode = "snapshot"
	e.stepH = 1
	e.number = 1
	e.hour = 0
	e.solves = 0
	e.capsOn = true
	e.markers = nil
	e.loads = loadModel{model: 1, vmin: 0.95, vmax: 1.05, kw: e.prof.BaseLoadKW, kvar: e.prof.BaseLoadKVAR}
	e.curves = map[string]*xyCurve{}
	e.shapes = map[string]*shape{}
	e.tshapes = map[string]*shape{}
	e.pvs = map[string]*pvSystem{}
	e.monitors = map[string]*monitor{}
	e.meters = map[string]*energyMeter{}
	e.last = nil
	e.sol = solution{}
}

// Command executes one script line.
func (e *Engine) Command(text string) error {
	if e.closed {
		return &dss.SolverError{Op: "command", Command: text, Err: fmt.Errorf("engine closed")}
	}
	cmd, err := dss.Parse(text)
	if err != nil {
		return err
	}
	if err := e.exec(cmd); err != nil {
		return &dss.SolverError{Op: cmd.Verb, Command: text, Err: err}
	}
	return nil
}

func (e *Engine) exec(cmd dss.Command) error {
	switch cmd.Verb {
	case "compile", "redirect":
		if len(cmd.Args) == 0 {
			return fmt.Errorf("missing file name")
		}
		e.reset()
		e.master = dss.Unquote(cmd.Args[0])
		e.log.Debug("compiled virtual feeder", "master", e.master, "base_kv", e.prof.BaseKV)
		return nil
	case "clear":
		e.reset()
		return nil
	case "new":
		return e.create(cmd)
	case "edit":
		el, err := e.lookup(cmd.Class, cmd.Name)
		if err != nil {
			return err
		}
		e.last = el
		return apply(el, cmd.Props)
	case "~":
		if e.last == nil {
			return fmt.Errorf("no element to continue")
		}
		return apply(e.last, cmd.Props)
	case "batchedit":
		return e.batchEdit(cmd)
	case "set":
		for _, p := range cmd.Props {
			if err := e.setOption(p.Key, p.Value); err != nil {
				return fmt.Errorf("%s=%s: %w", p.Key, p.Value, err)
			}
		}
		return nil
	case "solve":
		return e.Solve()
	case "addbusmarker":
		bus, _ := cmd.Prop("bus")
		e.markers = append(e.markers, bus)
		return nil
	case "clearbusmarkers":
		e.markers = nil
		return nil
	case "interpolate", "show", "export":
		return nil
	case "plot":
		e.logSnapshot()
		return nil
	}
	return fmt.Errorf("unknown command %q", cmd.Verb)
}

func (e *Engine) create(cmd dss.Command) error {
	if e.master == "" {
		return fmt.Errorf("no circuit compiled")
	}
	name := strings.ToLower(cmd.Name)
	var (
		el       element
		register func()
	)
	switch cmd.Class {
	case "xycurve":
		c := &xyCurve{}
		el, register = c, func() { e.curves[name] = c }
	case "loadshape":
		sh := &shape{interval: 1, prop: "mult"}
		el, register = sh, func() { e.shapes[name] = sh }
	case "tshape":
		sh := &shape{interval: 1, prop: "temp"}
		el, register = sh, func() { e.tshapes[name] = sh }
	case "pvsystem":
		pv := newPVSystem(cmd.Name)
		el, register = pv, func() { e.pvs[name] = pv }
	case "monitor":
		m := &monitor{terminal: 1, ppolar: true}
		if err := positional(m, cmd.Args, "element", "terminal"); err != nil {
			return err
		}
		el, register = m, func() { e.monitors[name] = m }
	case "energymeter":
		mt := &energyMeter{terminal: 1}
		if err := positional(mt, cmd.Args, "element", "terminal"); err != nil {
			return err
		}
		el, register = mt, func() { e.meters[name] = mt }
	default:
		return fmt.Errorf("class %q is not part of the virtual feeder", cmd.Class)
	}
	if err := apply(el, cmd.Props); err != nil {
		return err
	}
	if m, ok := el.(*monitor); ok {
		if err := e.checkElement(m.element); err != nil {
			return err
		}
	}
	register()
	e.last = el
	return nil
}

func (e *Engine) lookup(class, name string) (element, error) {
	name = strings.ToLower(name)
	var (
		el element
		ok bool
	)
	switch class {
	case "xycurve":
		el, ok = e.curves[name]
	case "loadshape":
		el, ok = e.shapes[name]
	case "tshape":
		el, ok = e.tshapes[name]
	case "pvsystem":
		el, ok = e.pvs[name]
	case "monitor":
		el, ok = e.monitors[name]
	case "energymeter":
		el, ok = e.meters[name]
	}
	if !ok {
		return nil, fmt.Errorf("%s.%s not found", class, name)
	}
	return el, nil
}

// checkElement accepts monitors on a PV system that exists or on any line,
// since every line monitor observes the coupling point.
func (e *Engine) checkElement(ref string) error {
	class, name, ok := strings.Cut(ref, ".")
	if !ok {
		return fmt.Errorf("monitored element %q is not class.name", ref)
	}
	switch class {
	case "pvsystem":
		if _, ok := e.pvs[name]; !ok {
			return fmt.Errorf("PVSystem.%s not found", name)
		}
		return nil
	case "line":
		return nil
	}
	return fmt.Errorf("cannot monitor %q on the virtual feeder", ref)
}

func (e *Engine) batchEdit(cmd dss.Command) error {
	if cmd.Name != "*" {
		return fmt.Errorf("only class..* batch edits are supported")
	}
	for _, p := range cmd.Props {
		var err error
		switch cmd.Class {
		case "load":
			err = e.loads.set(p.Key, p.Value)
		case "capacitor":
			if p.Key != "enabled" {
				err = fmt.Errorf("unknown Capacitor property")
			} else {
				e.capsOn = yes(p.Value)
			}
		case "pvsystem":
			for _, pv := range e.pvs {
				if err = pv.set(p.Key, p.Value); err != nil {
					break
				}
			}
		default:
			err = fmt.Errorf("class %q is not part of the virtual feeder", cmd.Class)
		}
		if err != nil {
			return fmt.Errorf("%s=%s: %w", p.Key, p.Value, err)
		}
	}
	return nil
}

func (l *loadModel) set(key, value string) (err error) {
	switch key {
	case "mode", "model":
		l.model, err = strconv.Atoi(value)
		if err == nil && l.model != 1 && l.model != 2 && l.model != 5 {
			err = fmt.Errorf("load model %d not supported", l.model)
		}
	case "vminpu":
		l.vmin, err = dss.ParseFloat(value)
	case "vmaxpu":
		l.vmax, err = dss.ParseFloat(value)
	case "kw":
		l.kw, err = dss.ParseFloat(value)
	case "kvar":
		l.kvar, err = dss.ParseFloat(value)
	default:
		return fmt.Errorf("unknown Load property")
	}
	return err
}

func (e *Engine) setOption(key, value string) (err error) {
	switch key {
	case "mode":
		m := strings.ToLower(value)
		if m != "snapshot" && m != "daily" {
			return fmt.Errorf("solution mode %q not supported", value)
		}
		e.mode = m
	case "stepsize", "h":
		e.stepH, err = parseDuration(value)
	case "number":
		e.number, err = strconv.Atoi(value)
		if err == nil && e.number < 1 {
			err = fmt.Errorf("must be >= 1")
		}
	case "loadmult":
		e.loadmult, err = dss.ParseFloat(value)
	case "maxiterations":
		e.maxIter, err = strconv.Atoi(value)
		if err == nil && e.maxIter < 1 {
			err = fmt.Errorf("must be >= 1")
		}
	case "hour":
		e.hour, err = dss.ParseFloat(value)
	case "tolerance":
		e.prof.TolerancePU, err = dss.ParseFloat(value)
	case "maxcontrolit", "controlmode", "voltagebases", "algorithm", "casename", "datapath":
		// Control iterations and bookkeeping options do not affect the
		// equivalent.
	default:
		return fmt.Errorf("unknown option")
	}
	return err
}

// parseDuration reads a step size such as "0.5h", "30m", "15s" or a bare
// number of seconds and returns hours.
func parseDuration(v string) (float64, error) {
	v = strings.ToLower(strings.TrimSpace(v))
	unit := 1.0 / 3600
	switch {
	case strings.HasSuffix(v, "h"):
		unit, v = 1, strings.TrimSuffix(v, "h")
	case strings.HasSuffix(v, "m"):
		unit, v = 1.0/60, strings.TrimSuffix(v, "m")
	case strings.HasSuffix(v, "s"):
		v = strings.TrimSuffix(v, "s")
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, err
	}
	if !(f > 0) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("step size must be > 0")
	}
	return f * unit, nil
}

// Channel returns a copy of a monitor channel, numbered from 1.
func (e *Engine) Channel(name string, index int) ([]float64, error) {
	m, ok := e.monitors[strings.ToLower(name)]
	if !ok {
		return nil, &dss.SolverError{Op: "channel", Err: fmt.Errorf("monitor %q not found", name)}
	}
	if index < 1 || index > channelCount(m.mode) {
		return nil, &dss.SolverError{Op: "channel", Err: fmt.Errorf("monitor %q has no channel %d", name, index)}
	}
	if m.channels == nil {
		return []float64{}, nil
	}
	return append([]float64(nil), m.channels[index-1]...), nil
}

// SetPVSystem writes the power factor and switches the PV system to a fixed
// kvar setpoint.
func (e *Engine) SetPVSystem(name string, pf, kvar float64) error {
	pv, ok := e.pvs[strings.ToLower(name)]
	if !ok {
		return &dss.SolverError{Op: "pvsystem", Err: fmt.Errorf("PVSystem.%s not found", name)}
	}
	if math.IsNaN(pf) || math.IsNaN(kvar) {
		return &dss.SolverError{Op: "pvsystem", Err: fmt.Errorf("PVSystem.%s setpoint is NaN", name)}
	}
	pv.pf = pf
	pv.kvar = kvar
	pv.kvarMode = true
	return nil
}

// Close ends the session.
func (e *Engine) Close() error {
	e.closed = true
	return nil
}

// Solutions reports how many solutions have run since the last compile.
func (e *Engine) Solutions() int { return e.solves }

func (e *Engine) logSnapshot() {
	s := e.sol
	e.log.Info("feeder snapshot",
		"hour", e.hour,
		"loadmult", e.loadmult,
		"va_pu", s.vpu(0, e.vbase()), "vb_pu", s.vpu(1, e.vbase()), "vc_pu", s.vpu(2, e.vbase()),
		"load_kw", real(s.load[0]+s.load[1]+s.load[2])/1000,
		"pv_kw", real(s.pv[0]+s.pv[1]+s.pv[2])/1000,
		"markers", e.markers,
	)
}
