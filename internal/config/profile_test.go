package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadProfileDefaults(t *testing.T) {
	p, err := LoadProfile("", "")
	if err != nil {
		t.Fatalf("LoadProfile: %v", err)
	}
	if p.Engine != "virtual" || p.FrequencyHz != 60 || p.OutputDir != "docs" {
		t.Fatalf("unexpected defaults: %+v", p)
	}
}

func TestLoadProfile_Valid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "profile.yaml")
	yaml := `
output_dir: out
frequency_hz: 50
setup:
  - set controlmode=static
feeder:
  base_load_kw: 1500
  phase_share: [0.5, 0.25, 0.25]
curves:
  volt_var:
    x: [0.9, 1.0, 1.1]
    y: [0.44, 0, -0.44]
`
	if err := os.WriteFile(path, []byte(yaml), 0o644); err != nil {
		t.Fatalf("failed to write temp file: %v", err)
	}
	p, err := LoadProfile(path, "")
	if err != nil {
		t.Fatalf("LoadProfile() returned error: %v", err)
	}
	if p.OutputDir != "out" || p.FrequencyHz != 50 {
		t.Errorf("unexpected profile: %+v", p)
	}
	if p.Feeder.BaseLoadKW != 1500 || p.Feeder.ReactanceOhm != 4.0 {
		t.Errorf("feeder defaults not merged: %+v", p.Feeder)
	}
	if len(p.Setup) != 1 || p.Curves.VoltVar == nil || len(p.Curves.VoltVar.X) != 3 {
		t.Errorf("unexpected setup/curves: %+v %+v", p.Setup, p.Curves)
	}
	if p.Master != DefaultProfile().Master {
		t.Errorf("master default lost: %q", p.Master)
	}
}

func TestLoadProfile_SchemaViolations(t *testing.T) {
	cases := map[string]string{
		"unknown key":     "colour: red\n",
		"negative freq":   "frequency_hz: -60\n",
		"short curve":     "curves:\n  volt_var:\n    x: [1]\n    y: [0]\n",
		"two phase share": "feeder:\n  phase_share: [0.5, 0.5]\n",
		"unknown engine":  "engine: spice\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "profile.yaml")
			if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
				t.Fatal(err)
			}
			if _, err := LoadProfile(path, ""); err == nil {
				t.Fatalf("expected validation error for %q", body)
			}
		})
	}
}

func TestValidateFileWithCueCustomSchema(t *testing.T) {
	dir := t.TempDir()
	schema := filepath.Join(dir, "strict.cue")
	if err := os.WriteFile(schema, []byte("#Profile: {output_dir: \"docs\"}\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	good := filepath.Join(dir, "good.yaml")
	bad := filepath.Join(dir, "bad.yaml")
	os.WriteFile(good, []byte("output_dir: docs\n"), 0o644)
	os.WriteFile(bad, []byte("output_dir: elsewhere\n"), 0o644)

	if err := ValidateFileWithCue(good, schema); err != nil {
		t.Fatalf("good profile rejected: %v", err)
	}
	if err := ValidateFileWithCue(bad, schema); err == nil {
		t.Fatalf("bad profile accepted")
	}
}
