package dss

import (
	"bytes"
	"errors"
	"testing"

	"gotest.tools/v3/assert"
	is "gotest.tools/v3/assert/cmp"
)

func TestParseNew(t *testing.T) {
	cmd, err := Parse("New PVSystem.PV phases=3 bus1=l3104830 kV=12.47 kva=1000 PF=0.9")
	assert.NilError(t, err)
	assert.Equal(t, cmd.Verb, "new")
	assert.Equal(t, cmd.Class, "pvsystem")
	assert.Equal(t, cmd.Name, "PV")
	assert.Equal(t, cmd.Target(), "pvsystem.PV")
	v, ok := cmd.Prop("KV")
	assert.Assert(t, ok)
	assert.Equal(t, v, "12.47")
	assert.Assert(t, is.Len(cmd.Props, 5))
}

func TestParsePositionalArgs(t *testing.T) {
	cmd, err := Parse("New Energymeter.m1 Line.ln5815900-1 1")
	assert.NilError(t, err)
	assert.DeepEqual(t, cmd.Args, []string{"Line.ln5815900-1", "1"})

	cmd, err = Parse("compile [/tmp/feeders/8500 Node/Master.dss]")
	assert.NilError(t, err)
	assert.Equal(t, cmd.Verb, "compile")
	assert.Equal(t, Unquote(cmd.Args[0]), "/tmp/feeders/8500 Node/Master.dss")
}

func TestParseContinuationArrays(t *testing.T) {
	cmd, err := Parse("~ mult=[0 0 .1 .2 1]")
	assert.NilError(t, err)
	assert.Equal(t, cmd.Verb, "~")
	v, _ := cmd.Prop("mult")
	arr, err := ParseArray(v)
	assert.NilError(t, err)
	assert.DeepEqual(t, arr, []float64{0, 0, 0.1, 0.2, 1})

	cmd, err = Parse("more %cutin=0.1 P-TCurve=PvsT")
	assert.NilError(t, err)
	assert.Equal(t, cmd.Verb, "~")
	v, ok := cmd.Prop("p-tcurve")
	assert.Assert(t, ok)
	assert.Equal(t, v, "PvsT")
}

func TestParseBatchEdit(t *testing.T) {
	cmd, err := Parse("batchedit load..* vmaxpu=1.25")
	assert.NilError(t, err)
	assert.Equal(t, cmd.Class, "load")
	assert.Equal(t, cmd.Name, "*")
}

func TestParseSetAndPlot(t *testing.T) {
	cmd, err := Parse("set stepsize=0.5h")
	assert.NilError(t, err)
	v, _ := cmd.Prop("stepsize")
	assert.Equal(t, v, "0.5h")

	cmd, err = Parse("plot circuit Power max=2000 n n C1=$00FF0000")
	assert.NilError(t, err)
	assert.DeepEqual(t, cmd.Args, []string{"circuit", "Power", "n", "n"})
	v, _ = cmd.Prop("c1")
	assert.Equal(t, v, "$00FF0000")
}

func TestParseErrors(t *testing.T) {
	for _, line := range []string{
		"",
		"   ",
		"New",
		"New PVSystem",
		"New .PV",
		"~ mult=[0 1",
		"~ mult=0 1]",
		"~ mult=[0 1)",
		"set =3",
	} {
		_, err := Parse(line)
		var se *SolverError
		assert.Assert(t, errors.As(err, &se), "line %q: %v", line, err)
		assert.Equal(t, se.Op, "parse")
	}
}

func TestParseArrayRejectsText(t *testing.T) {
	_, err := ParseArray("[1 two 3]")
	assert.ErrorContains(t, err, "two")
}

type nopEngine struct {
	solves int
	pf     float64
}

func (e *nopEngine) Command(string) error { return nil }

func (e *nopEngine) Solve() error {
	e.solves++
	return nil
}

func (e *nopEngine) Channel(string, int) ([]float64, error) {
	return []float64{1, 2}, nil
}

func (e *nopEngine) SetPVSystem(_ string, pf, _ float64) error {
	e.pf = pf
	return nil
}

func (e *nopEngine) Close() error { return nil }

func TestRecorderTranscript(t *testing.T) {
	inner := &nopEngine{}
	r := NewRecorder(inner)
	assert.NilError(t, r.Command("set loadmult=0.5"))
	assert.NilError(t, r.Solve())
	assert.NilError(t, r.SetPVSystem("PV", 0.95, -120.5))
	ch, err := r.Channel("DER_voltage", 1)
	assert.NilError(t, err)
	assert.DeepEqual(t, ch, []float64{1, 2})

	assert.Equal(t, inner.solves, 1)
	assert.Equal(t, inner.pf, 0.95)
	assert.DeepEqual(t, r.Transcript(), []string{
		"set loadmult=0.5",
		"Solve",
		"Edit PVSystem.PV pf=0.95 kvar=-120.5",
	})

	var buf bytes.Buffer
	_, err = r.WriteTo(&buf)
	assert.NilError(t, err)
	assert.Equal(t, buf.String(), "set loadmult=0.5\nSolve\nEdit PVSystem.PV pf=0.95 kvar=-120.5\n")
}
