package config

import (
	"bytes"
	"fmt"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"
)

// FeederProfile describes the three-phase Thevenin equivalent used by the
// in-process feeder engine.
type FeederProfile struct {
	BaseKV        float64   `yaml:"base_kv"`
	SourcePU      float64   `yaml:"source_pu"`
	ResistanceOhm float64   `yaml:"resistance_ohm"`
	ReactanceOhm  float64   `yaml:"reactance_ohm"`
	BaseLoadKW    float64   `yaml:"base_load_kw"`
	BaseLoadKVAR  float64   `yaml:"base_load_kvar"`
	CapacitorKVAR float64   `yaml:"capacitor_kvar"`
	PhaseShare    []float64 `yaml:"phase_share"`
	TolerancePU   float64   `yaml:"tolerance_pu"`
}

// CurvePoints overrides a DER curve; X and Y are per-unit.
type CurvePoints struct {
	X []float64 `yaml:"x"`
	Y []float64 `yaml:"y"`
}

// CurveOverrides replaces the IEEE 1547 default curves.
type CurveOverrides struct {
	VoltVar  *CurvePoints `yaml:"volt_var"`
	WattVar  *CurvePoints `yaml:"watt_var"`
	VoltWatt *CurvePoints `yaml:"volt_watt"`
}

// RunProfile holds the settings that are not part of the DER file.
type RunProfile struct {
	Engine      string         `yaml:"engine"`
	Master      string         `yaml:"master"`
	MeterLine   string         `yaml:"meter_line"`
	OutputDir   string         `yaml:"output_dir"`
	FrequencyHz float64        `yaml:"frequency_hz"`
	FeederPlot  bool           `yaml:"feeder_plot"`
	Setup       []string       `yaml:"setup"`
	Feeder      FeederProfile  `yaml:"feeder"`
	Curves      CurveOverrides `yaml:"curves"`
}

// DefaultProfile returns the settings used when no profile file is given.
func DefaultProfile() RunProfile {
	return RunProfile{
		Engine:      "virtual",
		Master:      "feeders/8500-Node/Master.dss",
		MeterLine:   "ln5815900-1",
		OutputDir:   "docs",
		FrequencyHz: 60,
		Feeder: FeederProfile{
			BaseKV:        12.47,
			SourcePU:      1.03,
			ResistanceOhm: 2.0,
			ReactanceOhm:  4.0,
			BaseLoadKW:    3000,
			BaseLoadKVAR:  1000,
			CapacitorKVAR: 1200,
			PhaseShare:    []float64{0.34, 0.33, 0.33},
			TolerancePU:   1e-6,
		},
	}
}

// LoadProfile reads a YAML run profile validated against the CUE schema at
// cueSchemaPath (embedded schema when empty). An empty path returns defaults.
func LoadProfile(path, cueSchemaPath string) (*RunProfile, error) {
	p := DefaultProfile()
	if path == "" {
		return &p, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var schema []byte
	if cueSchemaPath != "" {
		if schema, err = os.ReadFile(cueSchemaPath); err != nil {
			return nil, fmt.Errorf("cannot read CUE schema: %w", err)
		}
	}
	if err := ParseProfile(path, data, schema, &p); err != nil {
		return nil, err
	}
	slog.Debug("loaded run profile", "path", path, "engine", p.Engine, "output_dir", p.OutputDir)
	return &p, nil
}

// ParseProfile validates data and decodes it over p.
func ParseProfile(name string, data, schema []byte, p *RunProfile) error {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := ValidateWithCue(name, data, schema); err != nil {
		return err
	}
	if err := yaml.Unmarshal(data, p); err != nil {
		return fmt.Errorf("parse profile: %w", err)
	}
	return nil
}
