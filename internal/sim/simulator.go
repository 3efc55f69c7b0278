// Simulator orchestrating the solver session and the DER model
package sim

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"

	"dersim/internal/config"
	"dersim/internal/der"
	"dersim/internal/dss"
	"dersim/internal/logging"
	"dersim/internal/results"
)

// State is the orchestrator lifecycle position.
type State int

const (
	StateInit State = iota
	StateConfiguringSolver
	StateStepping
	StateFinalizing
	StateDone
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateInit:
		return "init"
	case StateConfiguringSolver:
		return "configuring_solver"
	case StateStepping:
		return "stepping"
	case StateFinalizing:
		return "finalizing"
	case StateDone:
		return "done"
	default:
		return "failed"
	}
}

// Simulator runs one study. It owns the solver session and the DER model for
// the whole run and is not reusable.
type Simulator struct {
	runID   string
	cfg     config.SimulationConfig
	profile config.RunProfile
	engine  dss.Engine
	model   *der.Model
	ratings der.Ratings
	writer  SampleWriter
	now     func() time.Time

	mu       sync.Mutex
	state    State
	progress int
	total    int
	solves   int
}

// NewSimulator validates cfg and builds the DER model. A nil writer discards
// streamed rows.
func NewSimulator(cfg config.SimulationConfig, profile config.RunProfile, engine dss.Engine, writer SampleWriter) (*Simulator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if engine == nil {
		return nil, fmt.Errorf("simulator needs a solver engine")
	}
	if writer == nil {
		writer = Discard{}
	}
	s := &Simulator{
		runID:   uuid.New().String(),
		cfg:     cfg,
		profile: profile,
		engine:  engine,
		ratings: der.DeriveRatings(cfg.RatedApparentPowerMVA, cfg.RatedPowerFactor),
		writer:  writer,
		now:     time.Now,
		total:   cfg.TotalPoints(),
	}
	if cfg.DEREnabled {
		mode, err := der.ModeFor(cfg, profile.Curves, profile.FrequencyHz)
		if err != nil {
			return nil, err
		}
		model, err := der.New(der.NewNameplate(cfg), mode, cfg.TimeStep())
		if err != nil {
			return nil, err
		}
		s.model = model
	}
	return s, nil
}

// RunID identifies the run in logs and streamed rows.
func (s *Simulator) RunID() string { return s.runID }

// Config returns the parameters of the run.
func (s *Simulator) Config() config.SimulationConfig { return s.cfg }

// Model returns the DER model, or nil when the run has no DER.
func (s *Simulator) Model() *der.Model { return s.model }

// State returns the current lifecycle state.
func (s *Simulator) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Progress reports completed and total steps.
func (s *Simulator) Progress() (done, total int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.progress, s.total
}

func (s *Simulator) setState(ctx context.Context, st State) {
	s.mu.Lock()
	prev := s.state
	s.state = st
	s.mu.Unlock()
	logging.FromContext(ctx).Info("simulator state", "run_id", s.runID, "from", prev, "to", st)
	if r, ok := s.writer.(StateReporter); ok {
		r.SetState(st)
	}
}

// Run configures the solver, steps the load trajectory and returns the
// finished results. Any solver failure aborts the run.
func (s *Simulator) Run(ctx context.Context) (*results.Table, error) {
	log := logging.FromContext(ctx)
	started := s.now()
	log.Info("starting simulator",
		"run_id", s.runID,
		"der", s.cfg.DEREnabled,
		"mode", s.cfg.ControlMode,
		"points", s.total,
		"timestep_s", s.cfg.TimeStep(),
	)

	table, err := s.run(ctx, started)
	if err != nil {
		s.setState(ctx, StateFailed)
		log.Error("simulation failed", "run_id", s.runID, "err", err)
		return nil, err
	}

	sum := summarize(table)
	sum.RunID = s.runID
	sum.Solves = s.solves
	sum.Started = started
	sum.Elapsed = s.now().Sub(started)
	sum.Timestamp = s.now().UTC()
	if sw, ok := s.writer.(SummaryWriter); ok {
		if err := sw.WriteSummary(sum); err != nil {
			log.Error("summary write failed", "err", err)
		}
	}
	s.setState(ctx, StateDone)
	log.Info("simulation finished",
		"run_id", s.runID,
		"samples", sum.Samples,
		"min_v_pu", sum.MinV,
		"max_v_pu", sum.MaxV,
		"trips", sum.Trips,
		"elapsed", sum.Elapsed,
	)
	return table, nil
}

func (s *Simulator) run(ctx context.Context, started time.Time) (*results.Table, error) {
	s.setState(ctx, StateConfiguringSolver)
	for _, line := range SetupScript(s.cfg, s.profile) {
		if err := s.engine.Command(line); err != nil {
			return nil, fmt.Errorf("configure solver: %w", err)
		}
	}
	loadmult, err := LoadTrajectory(s.cfg)
	if err != nil {
		return nil, err
	}

	s.setState(ctx, StateStepping)
	samples := make([]results.Sample, 0, len(loadmult))
	for i, lm := range loadmult {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("step %d: %w", i, err)
		}
		sample, err := s.step(ctx, i, lm, len(loadmult))
		if err != nil {
			return nil, fmt.Errorf("step %d: %w", i, err)
		}
		samples = append(samples, sample)
		s.emit(ctx, SampleRow{
			RunID:     s.runID,
			Mode:      s.mode(),
			Index:     i,
			LoadMult:  lm,
			Sample:    sample,
			Timestamp: started.Add(time.Duration(sample.Time * float64(time.Second))).UTC(),
		})
		s.mu.Lock()
		s.progress = i + 1
		s.mu.Unlock()
	}

	s.setState(ctx, StateFinalizing)
	if s.cfg.DEREnabled && s.cfg.SteadyState() {
		if err := s.recomputePower(samples); err != nil {
			return nil, err
		}
	}
	return results.NewTable(s.cfg.DEREnabled, s.mode(), samples), nil
}

func (s *Simulator) mode() config.ControlMode {
	if !s.cfg.DEREnabled {
		return ""
	}
	return s.cfg.ControlMode
}

func (s *Simulator) emit(ctx context.Context, row SampleRow) {
	if err := s.writer.Write(row); err != nil {
		logging.FromContext(ctx).Error("write failed", "run_id", row.RunID, "index", row.Index, "err", err)
	}
}

func summarize(t *results.Table) RunSummary {
	sum := RunSummary{Mode: t.Mode(), WithDER: t.WithDER(), Samples: t.Len(), MinV: math.Inf(1), MaxV: math.Inf(-1)}
	prev := ""
	for _, r := range t.Samples() {
		for _, v := range []float64{r.Va, r.Vb, r.Vc} {
			sum.MinV = math.Min(sum.MinV, v)
			sum.MaxV = math.Max(sum.MaxV, v)
		}
		if tripOnset(prev, r.Status) {
			sum.Trips++
		}
		prev = r.Status
	}
	if sum.Samples == 0 {
		sum.MinV, sum.MaxV = 0, 0
	}
	return sum
}
