package config

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// Keys of the DER parameter file. The names match files written by earlier
// releases of the tool, so they are not renamed.
const (
	KeySimulationTime   = "simulation_time"
	KeyNumberSteps      = "number_steps"
	KeyPointsPerStep    = "pts_per_steps"
	KeyDER              = "DER"
	KeyBus              = "bus"
	KeyRatedVoltage     = "V_rated"
	KeyLine             = "line"
	KeyControlMode      = "control_mode"
	KeyRatedPower       = "S_rated"
	KeyRatedPF          = "PF_rated"
	KeyConstantQ        = "CONST_Q"
	KeyNormalCategory   = "normal_op_CAT"
	KeyAbnormalCategory = "abnormal_op_CAT"
)

// DefaultStorePath is where the DER file lives relative to the working directory.
const DefaultStorePath = "docs/DER.txt"

// ParseError reports a malformed line in the DER file.
type ParseError struct {
	Line   int
	Text   string
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("DER file line %d %q: %s", e.Line, e.Text, e.Reason)
}

// ValueKind is the type a raw DER file value was coerced to.
type ValueKind int

const (
	KindString ValueKind = iota
	KindInt
	KindFloat
)

// Value is a coerced DER file value. Raw keeps the original text.
type Value struct {
	Kind  ValueKind
	Int   int64
	Float float64
	Raw   string
}

// ParseValue coerces s to an integer when it has no decimal point and parses
// as one, else to a float when parseable, else leaves it a string.
func ParseValue(s string) Value {
	if !strings.Contains(s, ".") {
		if i, err := strconv.ParseInt(s, 10, 64); err == nil {
			return Value{Kind: KindInt, Int: i, Float: float64(i), Raw: s}
		}
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return Value{Kind: KindFloat, Float: f, Raw: s}
	}
	return Value{Kind: KindString, Raw: s}
}

// Store persists a SimulationConfig at a fixed path.
type Store struct {
	Path string
}

// NewStore returns a store at path, or DefaultStorePath when path is empty.
func NewStore(path string) *Store {
	if path == "" {
		path = DefaultStorePath
	}
	return &Store{Path: path}
}

// Save overwrites the DER file with cfg.
func (s *Store) Save(cfg SimulationConfig) error {
	if err := os.MkdirAll(filepath.Dir(s.Path), 0o755); err != nil {
		return err
	}
	f, err := os.Create(s.Path)
	if err != nil {
		return err
	}
	if err := Write(f, cfg); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// Load reads the DER file.
func (s *Store) Load() (*SimulationConfig, error) {
	f, err := os.Open(s.Path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Read(f)
}

// Write encodes cfg as one "key value" line per field. String fields must be
// single tokens, otherwise the file could not be read back.
func Write(w io.Writer, cfg SimulationConfig) error {
	for _, tok := range []struct{ key, val string }{
		{KeyBus, cfg.BusID},
		{KeyLine, cfg.LineID},
		{KeyControlMode, string(cfg.ControlMode)},
		{KeyNormalCategory, string(cfg.NormalCategory)},
		{KeyAbnormalCategory, string(cfg.AbnormalCategory)},
	} {
		if !validToken(tok.val) {
			return &ValidationError{Field: tok.key, Reason: "must be a single non-empty token"}
		}
	}
	der := "False"
	if cfg.DEREnabled {
		der = "True"
	}
	lines := [][2]string{
		{KeySimulationTime, formatFloat(cfg.SimulationTime)},
		{KeyNumberSteps, strconv.Itoa(cfg.NumberSteps)},
		{KeyPointsPerStep, strconv.Itoa(cfg.PointsPerStep)},
		{KeyDER, der},
		{KeyBus, cfg.BusID},
		{KeyRatedVoltage, formatFloat(cfg.RatedVoltageKV)},
		{KeyLine, cfg.LineID},
		{KeyControlMode, string(cfg.ControlMode)},
		{KeyRatedPower, formatFloat(cfg.RatedApparentPowerMVA)},
		{KeyRatedPF, formatFloat(cfg.RatedPowerFactor)},
		{KeyConstantQ, formatFloat(cfg.ConstantReactivePower)},
		{KeyNormalCategory, string(cfg.NormalCategory)},
		{KeyAbnormalCategory, string(cfg.AbnormalCategory)},
	}
	bw := bufio.NewWriter(w)
	for _, l := range lines {
		if _, err := fmt.Fprintf(bw, "%s %s\n", l[0], l[1]); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// Read decodes a DER file. Missing keys keep their Default value and unknown
// keys are ignored.
func Read(r io.Reader) (*SimulationConfig, error) {
	cfg := Default()
	sc := bufio.NewScanner(r)
	n := 0
	for sc.Scan() {
		n++
		text := sc.Text()
		fields := strings.Fields(text)
		if len(fields) != 2 {
			return nil, &ParseError{Line: n, Text: text, Reason: fmt.Sprintf("expected 2 tokens, got %d", len(fields))}
		}
		if err := cfg.set(fields[0], ParseValue(fields[1])); err != nil {
			return nil, &ParseError{Line: n, Text: text, Reason: err.Error()}
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *SimulationConfig) set(key string, v Value) error {
	var err error
	switch key {
	case KeySimulationTime:
		c.SimulationTime, err = v.number()
	case KeyNumberSteps:
		c.NumberSteps, err = v.integer()
	case KeyPointsPerStep:
		c.PointsPerStep, err = v.integer()
	case KeyDER:
		c.DEREnabled, err = v.boolean()
	case KeyBus:
		c.BusID = v.Raw
	case KeyRatedVoltage:
		c.RatedVoltageKV, err = v.number()
	case KeyLine:
		c.LineID = v.Raw
	case KeyControlMode:
		c.ControlMode = ControlMode(v.Raw)
	case KeyRatedPower:
		c.RatedApparentPowerMVA, err = v.number()
	case KeyRatedPF:
		c.RatedPowerFactor, err = v.number()
	case KeyConstantQ:
		c.ConstantReactivePower, err = v.number()
	case KeyNormalCategory:
		c.NormalCategory = NormalCategory(v.Raw)
	case KeyAbnormalCategory:
		c.AbnormalCategory = AbnormalCategory(v.Raw)
	}
	return err
}

func (v Value) number() (float64, error) {
	if v.Kind == KindString {
		return 0, fmt.Errorf("%q is not a number", v.Raw)
	}
	return v.Float, nil
}

func (v Value) integer() (int, error) {
	if v.Kind != KindInt {
		return 0, fmt.Errorf("%q is not an integer", v.Raw)
	}
	return int(v.Int), nil
}

func (v Value) boolean() (bool, error) {
	switch strings.ToLower(v.Raw) {
	case "true", "1":
		return true, nil
	case "false", "0":
		return false, nil
	}
	return false, fmt.Errorf("%q is not a boolean", v.Raw)
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'g', -1, 64)
}
