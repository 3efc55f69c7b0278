package sim

import (
	"context"
	"fmt"
	"math"

	"dersim/internal/der"
	"dersim/internal/dss"
	"dersim/internal/logging"
	"dersim/internal/results"
)

// step solves one point of the trajectory and, with a DER, closes the loop
// through the model.
func (s *Simulator) step(ctx context.Context, i int, loadmult float64, npts int) (results.Sample, error) {
	log := logging.FromContext(ctx)
	if err := s.engine.Command("set loadmult=" + dss.FormatFloat(loadmult)); err != nil {
		return results.Sample{}, err
	}
	if err := s.engine.Solve(); err != nil {
		return results.Sample{}, err
	}
	s.solves++

	sample := results.Sample{Time: float64(i) * s.cfg.TimeStep()}
	var err error
	if s.model != nil {
		err = s.stepDER(i, npts, &sample)
	} else {
		err = s.readBus(i, &sample)
	}
	if err != nil {
		return results.Sample{}, err
	}

	if s.profile.FeederPlot && i == s.cfg.NumberSteps-1 {
		for _, line := range []string{"Interpolate", "plot circuit Power max=2000 n n C1=$00FF0000"} {
			if err := s.engine.Command(line); err != nil {
				return results.Sample{}, err
			}
		}
	}
	log.Debug("step",
		"run_id", s.runID,
		"index", i,
		"loadmult", loadmult,
		"va_pu", sample.Va,
		"p_pu", sample.P,
		"q_pu", sample.Q,
		"status", sample.Status,
	)
	return sample, nil
}

func (s *Simulator) stepDER(i, npts int, sample *results.Sample) error {
	var in der.Input
	for ph, ch := range []int{1, 3, 5} {
		v, err := s.channelAt(MonitorVoltage, ch, i)
		if err != nil {
			return err
		}
		deg, err := s.channelAt(MonitorVoltage, ch+1, i)
		if err != nil {
			return err
		}
		in.V[ph] = v
		in.Theta[ph] = deg * math.Pi / 180
	}
	in.Freq = s.profile.FrequencyHz
	in.PDC = s.ratings.P * dcFraction(s.cfg, i, npts)

	s.model.UpdateInput(in)
	out := s.model.Run()
	if err := s.engine.SetPVSystem(PVName, powerFactor(out.PPU, out.QPU), out.QKVAR); err != nil {
		return err
	}

	sample.P = out.PPU
	sample.Q = out.QPU
	sample.Vm = out.VMeasPU
	sample.Va = out.VaPU
	sample.Vb = out.VbPU
	sample.Vc = out.VcPU
	sample.I = out.IPU
	sample.IAngle = out.IAngle
	sample.Status = out.Status
	return nil
}

// readBus fills the phase voltages from the line monitor, in per unit of the
// rated phase voltage.
func (s *Simulator) readBus(i int, sample *results.Sample) error {
	base := s.cfg.RatedVoltageKV * 1e3 / math.Sqrt(3)
	var v [3]float64
	for ph, ch := range []int{1, 3, 5} {
		x, err := s.channelAt(MonitorBus, ch, i)
		if err != nil {
			return err
		}
		v[ph] = x / base
	}
	sample.Va, sample.Vb, sample.Vc = v[0], v[1], v[2]
	sample.Vm = sample.MeanVoltage()
	return nil
}

func (s *Simulator) channelAt(monitor string, ch, i int) (float64, error) {
	vals, err := s.engine.Channel(monitor, ch)
	if err != nil {
		return 0, err
	}
	if i >= len(vals) {
		return 0, &dss.SolverError{Op: "channel", Err: fmt.Errorf("monitor %s channel %d has %d samples, need %d", monitor, ch, len(vals), i+1)}
	}
	return vals[i], nil
}

// recomputePower replaces the DER power columns of a steady-state day with
// the power the solver measured at the PV terminal.
func (s *Simulator) recomputePower(samples []results.Sample) error {
	var chans [6][]float64
	for k := range chans {
		vals, err := s.engine.Channel(MonitorPower, k+1)
		if err != nil {
			return fmt.Errorf("finalize: %w", err)
		}
		if len(vals) < len(samples) {
			return fmt.Errorf("finalize: %w", &dss.SolverError{Op: "channel", Err: fmt.Errorf("monitor %s has %d samples, need %d", MonitorPower, len(vals), len(samples))})
		}
		chans[k] = vals
	}
	for i := range samples {
		p := -(chans[0][i] + chans[2][i] + chans[4][i])
		q := -(chans[1][i] + chans[3][i] + chans[5][i])
		samples[i].P = 1000 * p / s.ratings.S
		samples[i].Q = 1000 * q / s.ratings.S
	}
	return nil
}
