package der

import (
	"fmt"
	"math"
	"math/cmplx"
)

// Input is one set of measured terminal conditions.
type Input struct {
	V     [3]float64 // phase-to-neutral magnitude, V
	Theta [3]float64 // phase angle, rad
	Freq  float64    // Hz
	PDC   float64    // available DC power, W
}

// Output is the model response to the latest Input.
type Output struct {
	PPU     float64
	QPU     float64
	PKW     float64
	QKVAR   float64
	IPU     [3]float64
	IAngle  [3]float64
	VMeasPU float64
	VaPU    float64
	VbPU    float64
	VcPU    float64
	Status  string
}

// Model is a stateful DER. It is not safe for concurrent use.
type Model struct {
	np   Nameplate
	mode Mode
	ts   float64
	in   Input
	rt   *rideThrough
	out  Output
}

// New returns a model that advances ts seconds per Run.
func New(np Nameplate, mode Mode, ts float64) (*Model, error) {
	if !(np.VAMax > 0) {
		return nil, fmt.Errorf("DER apparent power rating must be > 0")
	}
	if !(np.VNom > 0) {
		return nil, fmt.Errorf("DER nominal voltage must be > 0")
	}
	if !(ts > 0) {
		return nil, fmt.Errorf("DER timestep must be > 0")
	}
	if mode == nil {
		return nil, fmt.Errorf("DER needs a control mode")
	}
	base := np.phaseBase()
	return &Model{
		np:   np,
		mode: mode,
		ts:   ts,
		in:   Input{V: [3]float64{base, base, base}, Theta: [3]float64{0, -2 * math.Pi / 3, 2 * math.Pi / 3}, Freq: 60},
		rt:   newRideThrough(np.Abnormal),
	}, nil
}

// Mode returns the active control function.
func (m *Model) Mode() Mode { return m.mode }

// TimeStep returns the simulated seconds per Run.
func (m *Model) TimeStep() float64 { return m.ts }

// UpdateInput replaces the measured conditions. A zero frequency keeps the
// previous value.
func (m *Model) UpdateInput(in Input) {
	if in.Freq == 0 {
		in.Freq = m.in.Freq
	}
	m.in = in
}

// Output returns the result of the last Run.
func (m *Model) Output() Output { return m.out }

// Run advances the model by one timestep.
func (m *Model) Run() Output {
	base := m.np.phaseBase()
	var vpu [3]float64
	for i, v := range m.in.V {
		vpu[i] = v / base
	}
	vmeas := (vpu[0] + vpu[1] + vpu[2]) / 3
	vmin := math.Min(vpu[0], math.Min(vpu[1], vpu[2]))
	vmax := math.Max(vpu[0], math.Max(vpu[1], vpu[2]))

	out := Output{VMeasPU: vmeas, VaPU: vpu[0], VbPU: vpu[1], VcPU: vpu[2]}
	out.Status = m.rt.step(vmin, vmax, m.ts)

	if out.Status != StatusTrip {
		p, q := m.dispatch(vmeas)
		out.PPU, out.QPU = p, q
		out.PKW = p * m.np.VAMax / 1000
		out.QKVAR = q * m.np.VAMax / 1000
		out.IPU, out.IAngle = phaseCurrents(p, q, vpu, m.in.Theta)
	}
	m.out = out
	return out
}

// dispatch computes the per-unit active and reactive power for the active
// mode, limited by the nameplate.
func (m *Model) dispatch(vmeas float64) (p, q float64) {
	pmax := m.np.PMax / m.np.VAMax
	p = math.Max(0, math.Min(m.in.PDC/m.np.VAMax, pmax))

	switch md := m.mode.(type) {
	case ConstantPF:
		pf := math.Max(math.Min(md.PF, 1), 1e-6)
		q = p * math.Tan(math.Acos(pf))
		if md.Excitation == Absorb {
			q = -q
		}
	case VoltVar:
		q = md.Curve.At(vmeas)
	case WattVar:
		q = md.Curve.At(p)
	case ConstantVar:
		q = md.Q
	case VoltWatt:
		p = math.Min(p, math.Max(0, md.Curve.At(vmeas)))
	case FrequencyWatt:
		p = frequencyDroop(md, m.in.Freq, p)
	}

	qinj := m.np.QMaxInj / m.np.VAMax
	qabs := m.np.QMaxAbs / m.np.VAMax
	q = math.Max(-qabs, math.Min(q, qinj))

	// Reactive power has priority inside the apparent power rating.
	if p*p+q*q > 1 {
		p = math.Sqrt(math.Max(0, 1-q*q))
	}
	return p, q
}

// frequencyDroop curtails output above the over-frequency deadband. A PV
// source already runs at available power, so under-frequency has no effect.
func frequencyDroop(fw FrequencyWatt, f, pAvail float64) float64 {
	nom := fw.NominalHz
	if nom <= 0 {
		nom = 60
	}
	if f > nom+fw.DeadbandOF && fw.DroopOF > 0 {
		dp := (f - nom - fw.DeadbandOF) / (nom * fw.DroopOF)
		return math.Max(0, pAvail-dp)
	}
	return pAvail
}

// phaseCurrents returns I = conj(S/V) per phase in per unit, with each phase
// carrying an equal share of the three-phase power.
func phaseCurrents(p, q float64, vpu, theta [3]float64) (mag, ang [3]float64) {
	s := complex(p, q)
	for i := range vpu {
		if vpu[i] == 0 {
			continue
		}
		v := cmplx.Rect(vpu[i], theta[i])
		c := cmplx.Conj(s / v)
		mag[i] = cmplx.Abs(c)
		ang[i] = cmplx.Phase(c)
	}
	return mag, ang
}
