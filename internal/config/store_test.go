package config

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestStoreRoundTrip(t *testing.T) {
	cases := []SimulationConfig{
		Default(),
		{
			SimulationTime:        3600,
			NumberSteps:           0,
			PointsPerStep:         1,
			DEREnabled:            false,
			BusID:                 "123",
			RatedVoltageKV:        4.16,
			LineID:                "ln1",
			ControlMode:           ModeFrequencyWatt,
			RatedApparentPowerMVA: 2.5,
			RatedPowerFactor:      1,
			ConstantReactivePower: -0.25,
			NormalCategory:        CategoryA,
			AbnormalCategory:      CategoryIII,
		},
		{
			SimulationTime:        0.125,
			NumberSteps:           5,
			PointsPerStep:         10,
			DEREnabled:            true,
			BusID:                 "m1009705",
			RatedVoltageKV:        12.47,
			LineID:                "ln5815900-1",
			ControlMode:           ModeConstantVar,
			RatedApparentPowerMVA: 1e-3,
			RatedPowerFactor:      0.95,
			ConstantReactivePower: 1e21,
			NormalCategory:        CategoryB,
			AbnormalCategory:      CategoryI,
		},
	}
	for _, want := range cases {
		store := NewStore(filepath.Join(t.TempDir(), "docs", "DER.txt"))
		if err := store.Save(want); err != nil {
			t.Fatalf("Save: %v", err)
		}
		got, err := store.Load()
		if err != nil {
			t.Fatalf("Load: %v", err)
		}
		if *got != want {
			t.Fatalf("round trip mismatch:\n got  %+v\n want %+v", *got, want)
		}
	}
}

func TestWriteFormat(t *testing.T) {
	var buf bytes.Buffer
	if err := Write(&buf, Default()); err != nil {
		t.Fatalf("Write: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 13 {
		t.Fatalf("expected 13 lines, got %d", len(lines))
	}
	if lines[0] != "simulation_time 90" || lines[3] != "DER True" {
		t.Fatalf("unexpected lines: %q", lines[:4])
	}
}

func TestWriteRejectsMultiTokenStrings(t *testing.T) {
	cfg := Default()
	cfg.LineID = "line one"
	var ve *ValidationError
	if err := Write(&bytes.Buffer{}, cfg); !errors.As(err, &ve) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
}

func TestSaveOverwrites(t *testing.T) {
	path := filepath.Join(t.TempDir(), "DER.txt")
	if err := os.WriteFile(path, []byte("junk junk junk\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	store := NewStore(path)
	if err := store.Save(Default()); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if _, err := store.Load(); err != nil {
		t.Fatalf("Load after overwrite: %v", err)
	}
}

func TestReadParseErrors(t *testing.T) {
	cases := []struct {
		name string
		in   string
		line int
	}{
		{"three tokens", "simulation_time 90\nbus a b\n", 2},
		{"one token", "bus\n", 1},
		{"blank line", "bus a\n\nline b\n", 2},
		{"float for integer", "number_steps 7.5\n", 1},
		{"string for number", "S_rated big\n", 1},
		{"bad boolean", "DER maybe\n", 1},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Read(strings.NewReader(tc.in))
			var pe *ParseError
			if !errors.As(err, &pe) {
				t.Fatalf("expected ParseError, got %v", err)
			}
			if pe.Line != tc.line {
				t.Fatalf("line = %d, want %d", pe.Line, tc.line)
			}
		})
	}
}

func TestReadIgnoresUnknownKeys(t *testing.T) {
	cfg, err := Read(strings.NewReader("color blue\nnumber_steps 3\n"))
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if cfg.NumberSteps != 3 {
		t.Fatalf("NumberSteps = %d", cfg.NumberSteps)
	}
}

func TestParseValue(t *testing.T) {
	cases := []struct {
		in   string
		kind ValueKind
		num  float64
	}{
		{"42", KindInt, 42},
		{"-3", KindInt, -3},
		{"4.5", KindFloat, 4.5},
		{"1e3", KindFloat, 1000},
		{"1.", KindFloat, 1},
		{"True", KindString, 0},
		{"l3104830", KindString, 0},
		{"1.2.3", KindString, 0},
	}
	for _, tc := range cases {
		v := ParseValue(tc.in)
		if v.Kind != tc.kind {
			t.Errorf("ParseValue(%q).Kind = %v, want %v", tc.in, v.Kind, tc.kind)
			continue
		}
		if v.Kind != KindString && v.Float != tc.num {
			t.Errorf("ParseValue(%q) = %v, want %v", tc.in, v.Float, tc.num)
		}
		if v.Raw != tc.in {
			t.Errorf("ParseValue(%q).Raw = %q", tc.in, v.Raw)
		}
	}
}
