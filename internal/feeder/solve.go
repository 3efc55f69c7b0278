package feeder

import (
	"fmt"
	"math"
	"math/cmplx"
	"strings"

	"dersim/internal/dss"
)

// solution is the state of the coupling point after a solve. Powers are in
// VA per phase, positive for consumption by loads and for generation by PV.
type solution struct {
	v    [3]complex128
	load [3]complex128
	pv   [3]complex128
	cap  [3]complex128
	pvOf map[string][3]complex128
}

func (s solution) vpu(phase int, base float64) float64 {
	return cmplx.Abs(s.v[phase]) / base
}

var phaseAngle = [3]float64{0, -2 * math.Pi / 3, 2 * math.Pi / 3}

func (e *Engine) vbase() float64 {
	return e.prof.BaseKV * 1000 / math.Sqrt(3)
}

// Solve advances the clock in daily mode and runs `number` solutions,
// recording every monitor after each.
func (e *Engine) Solve() error {
	if e.closed {
		return &dss.SolverError{Op: "solve", Err: fmt.Errorf("engine closed")}
	}
	if e.master == "" {
		return &dss.SolverError{Op: "solve", Err: fmt.Errorf("no circuit compiled")}
	}
	for n := 0; n < e.number; n++ {
		if e.mode == "daily" {
			e.hour += e.stepH
		}
		if err := e.solveOnce(); err != nil {
			return &dss.SolverError{Op: "solve", Err: fmt.Errorf("hour %.6g: %w", e.hour, err)}
		}
		e.solves++
		e.record()
	}
	return nil
}

func (e *Engine) solveOnce() error {
	base := e.vbase()
	if !(base > 0) {
		return fmt.Errorf("feeder base voltage must be > 0")
	}
	z := complex(e.prof.ResistanceOhm, e.prof.ReactanceOhm)
	tol := e.prof.TolerancePU
	if !(tol > 0) {
		tol = 1e-6
	}

	pvOf, pvTotal, err := e.pvOutput()
	if err != nil {
		return err
	}

	var vs [3]complex128
	for k := range vs {
		vs[k] = cmplx.Rect(e.prof.SourcePU*base, phaseAngle[k])
	}
	v := e.sol.v
	if v == [3]complex128{} {
		v = vs
	}

	var load, capq [3]complex128
	for it := 1; it <= e.maxIter; it++ {
		maxErr := 0.0
		for k := 0; k < 3; k++ {
			mag := cmplx.Abs(v[k])
			if mag < 1e-3*base {
				return fmt.Errorf("voltage collapse on phase %d", k+1)
			}
			vpu := mag / base
			load[k] = e.loadPower(k, vpu)
			capq[k] = e.capacitorPower(vpu)
			net := load[k] - pvTotal[k] - capq[k]
			i := cmplx.Conj(net / v[k])
			next := vs[k] - z*i
			if d := cmplx.Abs(next-v[k]) / base; d > maxErr {
				maxErr = d
			}
			v[k] = next
		}
		if maxErr < tol {
			e.sol = solution{v: v, load: load, pv: pvTotal, cap: capq, pvOf: pvOf}
			return nil
		}
	}
	return fmt.Errorf("no convergence after %d iterations", e.maxIter)
}

// loadPower returns the aggregate load on phase k at vpu. Constant power
// loads turn into constant impedance outside [vminpu, vmaxpu].
func (e *Engine) loadPower(k int, vpu float64) complex128 {
	share := 1.0 / 3
	if len(e.prof.PhaseShare) == 3 {
		share = e.prof.PhaseShare[k]
	}
	s := complex(e.loads.kw, e.loads.kvar) * complex(e.loadmult*share*1000, 0)
	var scale float64
	switch e.loads.model {
	case 2:
		scale = vpu * vpu
	case 5:
		scale = vpu
	default:
		switch {
		case vpu < e.loads.vmin:
			scale = (vpu / e.loads.vmin) * (vpu / e.loads.vmin)
		case vpu > e.loads.vmax:
			scale = (vpu / e.loads.vmax) * (vpu / e.loads.vmax)
		default:
			scale = 1
		}
	}
	return s * complex(scale, 0)
}

// capacitorPower is the reactive injection of the switched bank, per phase.
func (e *Engine) capacitorPower(vpu float64) complex128 {
	if !e.capsOn {
		return 0
	}
	return complex(0, e.prof.CapacitorKVAR*1000/3*vpu*vpu)
}

// pvOutput evaluates every PV system at the current hour.
func (e *Engine) pvOutput() (map[string][3]complex128, [3]complex128, error) {
	var total [3]complex128
	out := make(map[string][3]complex128, len(e.pvs))
	for name, pv := range e.pvs {
		kw, kvar, err := e.pvPower(pv)
		if err != nil {
			return nil, total, fmt.Errorf("PVSystem.%s: %w", pv.name, err)
		}
		phases := pv.phases
		if phases < 1 || phases > 3 {
			phases = 3
		}
		var s [3]complex128
		for k := 0; k < phases; k++ {
			s[k] = complex(kw, kvar) * complex(1000/float64(phases), 0)
			total[k] += s[k]
		}
		out[name] = s
	}
	return out, total, nil
}

// pvPower returns the AC output in kW and kvar: Pmpp scaled by irradiance,
// the daily shape and the temperature curve, then by inverter efficiency.
func (e *Engine) pvPower(pv *pvSystem) (kw, kvar float64, err error) {
	if !(pv.kva > 0) {
		return 0, 0, fmt.Errorf("kva must be > 0")
	}
	irr := pv.irradiance
	temp := 25.0
	if e.mode == "daily" {
		if s, ok := e.shapes[pv.daily]; ok {
			irr *= s.at(e.hour)
		}
		if s, ok := e.tshapes[pv.tdaily]; ok {
			temp = s.at(e.hour)
		}
	}
	pdc := pv.pmpp * irr
	if c, ok := e.curves[pv.ptCurve]; ok {
		f, err := c.at(temp)
		if err != nil {
			return 0, 0, fmt.Errorf("P-TCurve: %w", err)
		}
		pdc *= f
	}
	if pdc/pv.kva*100 < pv.cutIn {
		pdc = 0
	}
	kw = pdc
	if c, ok := e.curves[pv.effCurve]; ok && pdc > 0 {
		eff, err := c.at(pdc / pv.kva)
		if err != nil {
			return 0, 0, fmt.Errorf("EffCurve: %w", err)
		}
		kw = pdc * eff
	}
	kw = math.Min(kw, pv.kva)

	if pv.kvarMode {
		kvar = pv.kvar
	} else if pf := pv.pf; pf != 0 && math.Abs(pf) < 1 {
		kvar = math.Copysign(kw*math.Tan(math.Acos(math.Abs(pf))), pf)
	}
	if lim := math.Sqrt(math.Max(0, pv.kva*pv.kva-kw*kw)); math.Abs(kvar) > lim {
		kvar = math.Copysign(lim, kvar)
	}
	return kw, kvar, nil
}

// channelCount is the number of channels a monitor mode records.
func channelCount(mode int) int {
	if mode == 1 {
		return 6
	}
	return 12
}

func (e *Engine) record() {
	for _, m := range e.monitors {
		m.record(e.sample(m))
	}
}

// sample builds one monitor row. Terminal power flows into the element, so a
// generating PV system reports negative kW.
func (e *Engine) sample(m *monitor) []float64 {
	var s [3]complex128
	class, name, _ := strings.Cut(m.element, ".")
	if class == "pvsystem" {
		pv := e.sol.pvOf[name]
		for k := range s {
			s[k] = -pv[k]
		}
	} else {
		for k := range s {
			s[k] = e.sol.load[k] - e.sol.pv[k] - e.sol.cap[k]
		}
	}

	out := make([]float64, 0, channelCount(m.mode))
	for k := 0; k < 3; k++ {
		v := e.sol.v[k]
		if m.mode == 1 {
			if m.ppolar {
				out = append(out, cmplx.Abs(s[k])/1000, degrees(cmplx.Phase(s[k])))
			} else {
				out = append(out, real(s[k])/1000, imag(s[k])/1000)
			}
			continue
		}
		out = append(out, cmplx.Abs(v), degrees(cmplx.Phase(v)))
	}
	if m.mode == 0 {
		for k := 0; k < 3; k++ {
			var i complex128
			if v := e.sol.v[k]; v != 0 {
				i = cmplx.Conj(s[k] / v)
			}
			out = append(out, cmplx.Abs(i), degrees(cmplx.Phase(i)))
		}
	}
	return out
}

func degrees(rad float64) float64 {
	return rad * 180 / math.Pi
}
