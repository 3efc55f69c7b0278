package sim

import (
	"fmt"
	"math"

	"dersim/internal/config"
	"dersim/internal/der"
	"dersim/internal/dss"
	"dersim/internal/sequence"
)

// Solver element names the study creates.
const (
	PVName         = "PV"
	MonitorVoltage = "DER_voltage"
	MonitorPower   = "DER_power"
	MonitorBus     = "BUS_voltage"
)

// Solar profile of the steady-state day.
var (
	dailyIrradiance  = []float64{0, 0, 0, 0, 0, 0, .1, .2, .3, .5, .8, .9, 1, 1, .99, .9, .7, .4, .1, 0, 0, 0, 0, 0}
	dailyTemperature = []float64{25, 25, 25, 25, 25, 25, 25, 25, 35, 40, 45, 50, 60, 60, 55, 40, 35, 30, 25, 25, 25, 25, 25, 25}
)

// SteadyStateLoadMult is the load multiplier of every hour of a steady-state
// day.
const SteadyStateLoadMult = -0.2

// LoadTrajectory returns the per-step load multipliers of a run.
func LoadTrajectory(cfg config.SimulationConfig) ([]float64, error) {
	if cfg.SteadyState() {
		return sequence.Constant(SteadyStateLoadMult, config.SteadyStatePoints), nil
	}
	return sequence.Ramp(sequence.RampStart, sequence.RampMin, sequence.RampMax, cfg.NumberSteps, cfg.PointsPerStep)
}

// SetupScript returns the commands that prepare the solver session for a
// run, in issue order.
func SetupScript(cfg config.SimulationConfig, p config.RunProfile) []string {
	npts := cfg.TotalPoints()
	lines := []string{
		fmt.Sprintf("compile [%s]", p.Master),
		fmt.Sprintf("New Energymeter.m1 Line.%s 1", p.MeterLine),
		"batchedit capacitor..* enabled=no",
		"batchedit load..* mode=1",
		"batchedit load..* vmaxpu=1.25",
		"batchedit load..* vminpu=0.75",
		"set maxiterations=100",
		"set maxcontrolit=100",
		fmt.Sprintf("AddBusMarker bus=%s color=red size=8 code=15", cfg.BusID),
		"New XYCurve.PvsT npts=4 xarray=[0 25 75 100] yarray=[1.2 1 .8 .6]",
		"New XYCurve.Eff npts=4 xarray=[.1 .2 .4 1.0] yarray=[.86 .9 .93 .97]",
	}
	lines = append(lines, p.Setup...)

	if cfg.DEREnabled {
		irrad, temp := dailyIrradiance, dailyTemperature
		if !cfg.SteadyState() {
			irrad = sequence.Constant(1, npts)
			temp = sequence.Constant(25, npts)
		}
		r := der.DeriveRatings(cfg.RatedApparentPowerMVA, cfg.RatedPowerFactor)
		lines = append(lines,
			fmt.Sprintf("New Loadshape.Irrad npts=%d interval=1", npts),
			fmt.Sprintf("~ mult=[%s]", sequence.Join(irrad)),
			fmt.Sprintf("New Tshape.Temp npts=%d interval=1", npts),
			fmt.Sprintf("~ temp=[%s]", sequence.Join(temp)),
			fmt.Sprintf("New PVSystem.%s phases=3 bus1=%s kV=%s kva=%s kvar=%s Pmpp=%s PF=%s",
				PVName, cfg.BusID, dss.FormatFloat(cfg.RatedVoltageKV),
				dss.FormatFloat(r.S/1000), dss.FormatFloat(r.Q/1000),
				dss.FormatFloat(r.S/1000), dss.FormatFloat(cfg.RatedPowerFactor)),
			"~ irradiance=0.98 %cutin=0.1 %cutout=0.1 effcurve=Eff P-TCurve=PvsT daily=Irrad Tdaily=Temp",
			fmt.Sprintf("New Monitor.%s element=PVSystem.%s terminal=1 mode=0", MonitorVoltage, PVName),
			fmt.Sprintf("New Monitor.%s element=PVSystem.%s terminal=1 mode=1 ppolar=no", MonitorPower, PVName),
		)
	} else {
		lines = append(lines, fmt.Sprintf("New Monitor.%s element=LINE.%s terminal=1 mode=0", MonitorBus, cfg.LineID))
	}

	return append(lines,
		"set mode=daily",
		fmt.Sprintf("set stepsize=%sh", dss.FormatFloat(cfg.TimeStep()/3600)),
		"set number=1",
	)
}

// dcFraction is the share of rated DC power available at step i of a
// stepped run in the modes that follow irradiance changes.
func dcFraction(cfg config.SimulationConfig, i, npts int) float64 {
	if cfg.SteadyState() {
		return 1
	}
	switch cfg.ControlMode {
	case config.ModeConstantPF, config.ModeWattVar, config.ModeConstantVar:
	default:
		return 1
	}
	n := float64(npts)
	switch x := float64(i); {
	case x < n/4:
		return 0.3
	case x > 3*n/4:
		return 0
	case x < n/2:
		return 1
	default:
		return 0.6
	}
}

// powerFactor is cos(atan2(q, p)).
func powerFactor(p, q float64) float64 {
	return math.Cos(math.Atan2(q, p))
}
