package sim

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"dersim/internal/config"
	"dersim/internal/der"
	"dersim/internal/dss"
	"dersim/internal/feeder"
	"dersim/internal/results"
)

// MockWriter collects streamed rows for validation
type MockWriter struct {
	Rows    []SampleRow
	Summary *RunSummary
	States  []State
	Err     error
}

func (w *MockWriter) Write(row SampleRow) error {
	w.Rows = append(w.Rows, row)
	return w.Err
}

func (w *MockWriter) WriteSummary(s RunSummary) error {
	w.Summary = &s
	return nil
}

func (w *MockWriter) SetState(st State) { w.States = append(w.States, st) }

// fakeEngine answers every monitor with fixed per-phase readings.
type fakeEngine struct {
	commands  []string
	solves    int
	failSolve int
	pvPF      float64
	pvKVAR    float64
	phaseV    float64
	phaseKW   float64
}

func newFakeEngine() *fakeEngine {
	return &fakeEngine{phaseV: 12470 / math.Sqrt(3), phaseKW: -1000.0 / 3, failSolve: -1}
}

func (f *fakeEngine) Command(text string) error {
	f.commands = append(f.commands, text)
	return nil
}

func (f *fakeEngine) Solve() error {
	if f.solves == f.failSolve {
		return &dss.SolverError{Op: "solve", Err: fmt.Errorf("no convergence")}
	}
	f.solves++
	return nil
}

func (f *fakeEngine) Channel(monitor string, index int) ([]float64, error) {
	var v float64
	switch {
	case monitor == MonitorPower && index%2 == 1:
		v = f.phaseKW
	case monitor == MonitorPower:
		v = 0
	case index%2 == 1:
		v = f.phaseV
	default:
		v = []float64{0, -120, 120}[(index-2)/2%3]
	}
	out := make([]float64, f.solves)
	for i := range out {
		out[i] = v
	}
	return out, nil
}

func (f *fakeEngine) SetPVSystem(name string, pf, kvar float64) error {
	f.pvPF, f.pvKVAR = pf, kvar
	return nil
}

func (f *fakeEngine) Close() error { return nil }

func steppedConfig() config.SimulationConfig {
	cfg := config.Default()
	cfg.SimulationTime = 90
	cfg.NumberSteps = 7
	cfg.PointsPerStep = 30
	return cfg
}

func TestSimulatorStepsTrajectory(t *testing.T) {
	cfg := steppedConfig()
	writer := &MockWriter{}
	eng := newFakeEngine()
	sim, err := NewSimulator(cfg, config.DefaultProfile(), eng, writer)
	if err != nil {
		t.Fatalf("NewSimulator: %v", err)
	}
	table, err := sim.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if table.Len() != 210 || len(writer.Rows) != 210 || eng.solves != 210 {
		t.Fatalf("samples=%d rows=%d solves=%d, want 210", table.Len(), len(writer.Rows), eng.solves)
	}
	for i, s := range table.Samples() {
		if want := float64(i) * 90 / 210; math.Abs(s.Time-want) > 1e-9 {
			t.Fatalf("time[%d] = %v, want %v", i, s.Time, want)
		}
		if s.Status == "" {
			t.Fatalf("sample %d has no status", i)
		}
	}
	if sim.State() != StateDone {
		t.Fatalf("state = %v", sim.State())
	}
	if done, total := sim.Progress(); done != 210 || total != 210 {
		t.Fatalf("progress = %d/%d", done, total)
	}
	wantStates := []State{StateConfiguringSolver, StateStepping, StateFinalizing, StateDone}
	if fmt.Sprint(writer.States) != fmt.Sprint(wantStates) {
		t.Fatalf("states = %v, want %v", writer.States, wantStates)
	}
	if writer.Summary == nil || writer.Summary.Samples != 210 || writer.Summary.RunID != sim.RunID() {
		t.Fatalf("unexpected summary %+v", writer.Summary)
	}
	if writer.Rows[0].RunID == "" || writer.Rows[0].Mode != config.ModeVoltVar {
		t.Fatalf("unexpected row %+v", writer.Rows[0])
	}
	if !writer.Rows[1].Timestamp.After(writer.Rows[0].Timestamp) {
		t.Fatalf("timestamps do not advance")
	}
	sent := strings.Join(eng.commands, "\n")
	for _, want := range []string{"set loadmult=1.2\n", "set loadmult=-0.2"} {
		if !strings.Contains(sent, want) {
			t.Fatalf("no %q among solver commands", want)
		}
	}
	if got := writer.Rows[len(writer.Rows)-1].LoadMult; got != -0.2 {
		t.Fatalf("final loadmult = %v, want -0.2", got)
	}
}

func TestSimulatorPushesSetpointsBack(t *testing.T) {
	cfg := steppedConfig()
	cfg.ControlMode = config.ModeConstantVar
	cfg.ConstantReactivePower = 0.3
	eng := newFakeEngine()
	sim, err := NewSimulator(cfg, config.DefaultProfile(), eng, nil)
	if err != nil {
		t.Fatalf("NewSimulator: %v", err)
	}
	if _, err := sim.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	out := sim.Model().Output()
	if math.Abs(eng.pvKVAR-out.QKVAR) > 1e-9 || math.Abs(out.QKVAR-300) > 1e-6 {
		t.Fatalf("kvar pushed %v, model %v", eng.pvKVAR, out.QKVAR)
	}
	if want := math.Cos(math.Atan2(out.QPU, out.PPU)); math.Abs(eng.pvPF-want) > 1e-12 {
		t.Fatalf("pf pushed %v, want %v", eng.pvPF, want)
	}
}

func TestSimulatorDeratesDCPower(t *testing.T) {
	cfg := steppedConfig()
	cfg.ControlMode = config.ModeConstantPF
	cfg.RatedPowerFactor = 1
	sim, err := NewSimulator(cfg, config.DefaultProfile(), newFakeEngine(), nil)
	if err != nil {
		t.Fatalf("NewSimulator: %v", err)
	}
	table, err := sim.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	s := table.Samples()
	checks := map[int]float64{0: 0.3, 60: 1, 120: 0.6, 209: 0}
	for i, want := range checks {
		if math.Abs(s[i].P-want) > 1e-9 {
			t.Errorf("P[%d] = %v, want %v", i, s[i].P, want)
		}
	}
}

func TestSimulatorSteadyStateRecomputesPower(t *testing.T) {
	cfg := config.Default()
	cfg.SimulationTime = config.SteadyStateTime
	cfg.NumberSteps = 0
	eng := newFakeEngine()
	eng.phaseKW = -200
	sim, err := NewSimulator(cfg, config.DefaultProfile(), eng, nil)
	if err != nil {
		t.Fatalf("NewSimulator: %v", err)
	}
	table, err := sim.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if table.Len() != 24 {
		t.Fatalf("samples = %d, want 24", table.Len())
	}
	for i, s := range table.Samples() {
		if s.Time != float64(i)*3600 {
			t.Fatalf("time[%d] = %v", i, s.Time)
		}
		if math.Abs(s.P-0.6) > 1e-12 || s.Q != 0 {
			t.Fatalf("sample %d P=%v Q=%v, want 0.6/0", i, s.P, s.Q)
		}
	}
	for _, c := range eng.commands {
		if strings.HasPrefix(c, "set loadmult=") && c != "set loadmult=-0.2" {
			t.Fatalf("unexpected load multiplier %q", c)
		}
	}
}

func TestSummarizeCountsTripOnsets(t *testing.T) {
	statuses := []string{der.StatusNormal, der.StatusTrip, der.StatusTrip, der.StatusNormal, der.StatusTrip}
	samples := make([]results.Sample, len(statuses))
	for i, st := range statuses {
		samples[i] = results.Sample{Va: 1, Vb: 1, Vc: 1, Status: st}
	}
	samples[2].Vb = 1.1
	sum := summarize(results.NewTable(true, config.ModeVoltVar, samples))
	if sum.Trips != 2 {
		t.Fatalf("trips = %d, want 2", sum.Trips)
	}
	if sum.Samples != 5 || sum.MinV != 1 || sum.MaxV != 1.1 {
		t.Fatalf("summary = %+v", sum)
	}

	m := newTUIModel(config.Default())
	for i, st := range statuses {
		row := sampleRow(i)
		row.Status = st
		mi, _ := m.Update(sampleMsg{row})
		m = mi.(tuiModel)
	}
	if m.trips != sum.Trips {
		t.Fatalf("tui trips = %d, summary trips = %d", m.trips, sum.Trips)
	}
}

func TestSimulatorWithoutDER(t *testing.T) {
	cfg := steppedConfig()
	cfg.DEREnabled = false
	eng := newFakeEngine()
	eng.phaseV = 1.02 * 12470 / math.Sqrt(3)
	writer := &MockWriter{}
	sim, err := NewSimulator(cfg, config.DefaultProfile(), eng, writer)
	if err != nil {
		t.Fatalf("NewSimulator: %v", err)
	}
	table, err := sim.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if table.WithDER() || table.FileName() != "data_without_DER.csv" {
		t.Fatalf("unexpected table schema")
	}
	for _, s := range table.Samples() {
		if math.Abs(s.Va-1.02) > 1e-9 || math.Abs(s.Vm-1.02) > 1e-9 {
			t.Fatalf("unexpected voltages %+v", s)
		}
	}
	if writer.Rows[0].Mode != "" {
		t.Fatalf("row without DER carries mode %q", writer.Rows[0].Mode)
	}
	if sim.Model() != nil || eng.pvKVAR != 0 {
		t.Fatalf("DER touched in a run without DER")
	}
}

func TestSimulatorSolverFailureAborts(t *testing.T) {
	eng := newFakeEngine()
	eng.failSolve = 3
	writer := &MockWriter{}
	sim, err := NewSimulator(steppedConfig(), config.DefaultProfile(), eng, writer)
	if err != nil {
		t.Fatalf("NewSimulator: %v", err)
	}
	_, err = sim.Run(context.Background())
	var se *dss.SolverError
	if !errors.As(err, &se) {
		t.Fatalf("expected SolverError, got %v", err)
	}
	if sim.State() != StateFailed || len(writer.Rows) != 3 || writer.Summary != nil {
		t.Fatalf("state=%v rows=%d summary=%v", sim.State(), len(writer.Rows), writer.Summary)
	}
}

func TestSimulatorCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	sim, err := NewSimulator(steppedConfig(), config.DefaultProfile(), newFakeEngine(), nil)
	if err != nil {
		t.Fatalf("NewSimulator: %v", err)
	}
	if _, err := sim.Run(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestSimulatorWriterErrorsDoNotAbort(t *testing.T) {
	writer := &MockWriter{Err: errors.New("sink down")}
	sim, err := NewSimulator(steppedConfig(), config.DefaultProfile(), newFakeEngine(), writer)
	if err != nil {
		t.Fatalf("NewSimulator: %v", err)
	}
	if _, err := sim.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
}

func TestNewSimulatorRejectsInvalidConfig(t *testing.T) {
	cfg := config.Default()
	cfg.PointsPerStep = 0
	_, err := NewSimulator(cfg, config.DefaultProfile(), newFakeEngine(), nil)
	var ve *config.ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
}

func TestFeederPlotCommands(t *testing.T) {
	prof := config.DefaultProfile()
	prof.FeederPlot = true
	eng := newFakeEngine()
	sim, err := NewSimulator(steppedConfig(), prof, eng, nil)
	if err != nil {
		t.Fatalf("NewSimulator: %v", err)
	}
	if _, err := sim.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	n := 0
	for _, c := range eng.commands {
		if strings.HasPrefix(c, "plot circuit") {
			n++
		}
	}
	if n != 1 {
		t.Fatalf("plot issued %d times, want 1", n)
	}
}

func TestScenarioOnVirtualFeeder(t *testing.T) {
	cfg := steppedConfig()
	prof := config.DefaultProfile()
	rec := dss.NewRecorder(feeder.New(prof.Feeder, nil))
	sim, err := NewSimulator(cfg, prof, rec, nil)
	if err != nil {
		t.Fatalf("NewSimulator: %v", err)
	}
	table, err := sim.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if table.Len() != 210 {
		t.Fatalf("samples = %d, want 210", table.Len())
	}
	for i, s := range table.Samples() {
		if s.Va < 0.8 || s.Va > 1.2 {
			t.Fatalf("sample %d Va = %v pu", i, s.Va)
		}
		if s.Status == der.StatusTrip {
			t.Fatalf("sample %d tripped", i)
		}
	}

	path, err := results.NewExporter(t.TempDir()).Export(table)
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	if filepath.Base(path) != "data_volt_var.csv" {
		t.Fatalf("exported to %s", path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if lines := strings.Count(string(data), "\n"); lines != 211 {
		t.Fatalf("csv has %d lines, want 211", lines)
	}

	solves := 0
	for _, l := range rec.Transcript() {
		if l == "Solve" {
			solves++
		}
	}
	if solves != 210 {
		t.Fatalf("transcript has %d solves", solves)
	}
}

func TestSteadyStateOnVirtualFeeder(t *testing.T) {
	cfg := config.Default()
	cfg.SimulationTime = config.SteadyStateTime
	cfg.NumberSteps = 0
	prof := config.DefaultProfile()
	eng := feeder.New(prof.Feeder, nil)
	sim, err := NewSimulator(cfg, prof, eng, nil)
	if err != nil {
		t.Fatalf("NewSimulator: %v", err)
	}
	table, err := sim.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if table.Len() != 24 {
		t.Fatalf("samples = %d, want 24", table.Len())
	}
	var ch [3][]float64
	for k, idx := range []int{1, 3, 5} {
		if ch[k], err = eng.Channel(MonitorPower, idx); err != nil {
			t.Fatal(err)
		}
	}
	for i, s := range table.Samples() {
		want := -1000 * (ch[0][i] + ch[1][i] + ch[2][i]) / 1e6
		if math.Abs(s.P-want) > 1e-12 {
			t.Fatalf("P[%d] = %v, want %v", i, s.P, want)
		}
	}
	if table.Samples()[0].P > 1e-9 {
		t.Fatalf("PV produces %v pu at midnight", table.Samples()[0].P)
	}
}
