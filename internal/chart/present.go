package chart

import (
	"context"
	"fmt"
	"path/filepath"

	"gonum.org/v1/plot/vg"

	"dersim/internal/config"
	"dersim/internal/der"
	"dersim/internal/logging"
	"dersim/internal/results"
)

// Figure sizes.
var (
	FeederWidth  = 8 * vg.Inch
	FeederHeight = 6 * vg.Inch
	GridWidth    = 15 * vg.Inch
	GridHeight   = 20 * vg.Inch
)

// Presenter reads a run's CSV back from Dir and writes its figures there.
type Presenter struct {
	Dir     string
	Options Options
}

// Present renders the figures for cfg and returns their paths. mode is the
// DER control mode the run used; it is ignored without a DER.
func (pr Presenter) Present(ctx context.Context, cfg config.SimulationConfig, mode der.Mode) ([]string, error) {
	log := logging.FromContext(ctx)
	src := filepath.Join(pr.Dir, results.FileName(cfg.DEREnabled, cfg.ControlMode))
	fr, err := results.ReadCSVFile(src)
	if err != nil {
		return nil, err
	}

	if !cfg.DEREnabled {
		p, err := WithoutDER(fr, cfg.BusID)
		if err != nil {
			return nil, err
		}
		out := filepath.Join(pr.Dir, "voltage_without_DER.png")
		if err := p.Save(FeederWidth, FeederHeight, out); err != nil {
			return nil, fmt.Errorf("save %s: %w", out, err)
		}
		log.Info("chart saved", "path", out)
		return []string{out}, nil
	}

	g, err := WithDER(fr, cfg.ControlMode.Title(cfg.NormalCategory), pr.Options)
	if err != nil {
		return nil, err
	}
	out := filepath.Join(pr.Dir, fmt.Sprintf("der_%s.png", cfg.ControlMode))
	if err := g.Save(out, GridWidth, GridHeight); err != nil {
		return nil, fmt.Errorf("save %s: %w", out, err)
	}
	log.Info("chart saved", "path", out)
	paths := []string{out}

	if cfg.SteadyState() {
		return paths, nil
	}
	p, err := OperatingCurve(fr, mode, cfg.PointsPerStep)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return paths, nil
	}
	out = filepath.Join(pr.Dir, fmt.Sprintf("curve_%s.png", cfg.ControlMode))
	if err := p.Save(FeederWidth, FeederHeight, out); err != nil {
		return nil, fmt.Errorf("save %s: %w", out, err)
	}
	log.Info("chart saved", "path", out)
	return append(paths, out), nil
}
