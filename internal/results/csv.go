package results

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
)

// Column names shared by the writer and the plotter.
const (
	ColTime   = "Time (s)"
	ColVa     = "Va (pu)"
	ColVb     = "Vb (pu)"
	ColVc     = "Vc (pu)"
	ColVm     = "Vm (pu)"
	ColP      = "P (pu)"
	ColQ      = "Q (pu)"
	ColPF     = "PF"
	ColIa     = "Ia (pu)"
	ColIb     = "Ib (pu)"
	ColIc     = "Ic (pu)"
	ColIaAng  = "Ia Angle (rad)"
	ColIbAng  = "Ib Angle (rad)"
	ColIcAng  = "Ic Angle (rad)"
	ColStatus = "Status"
)

// Header returns the CSV columns for a schema.
func Header(withDER bool) []string {
	h := []string{ColTime, ColVa, ColVb, ColVc, ColVm}
	if withDER {
		h = append(h, ColP, ColQ, ColPF, ColIa, ColIb, ColIc, ColIaAng, ColIbAng, ColIcAng, ColStatus)
	}
	return h
}

// ExportError reports a failure writing a results file.
type ExportError struct {
	Path string
	Err  error
}

func (e *ExportError) Error() string {
	return fmt.Sprintf("export %s: %v", e.Path, e.Err)
}

func (e *ExportError) Unwrap() error { return e.Err }

// Exporter writes tables into a directory, creating it when needed.
type Exporter struct {
	Dir string
}

// NewExporter returns an exporter for dir.
func NewExporter(dir string) *Exporter {
	return &Exporter{Dir: dir}
}

// Export overwrites the table's CSV file and returns its path.
func (x *Exporter) Export(t *Table) (string, error) {
	path := filepath.Join(x.Dir, t.FileName())
	if err := os.MkdirAll(x.Dir, 0o755); err != nil {
		return "", &ExportError{Path: path, Err: err}
	}
	f, err := os.Create(path)
	if err != nil {
		return "", &ExportError{Path: path, Err: err}
	}
	if err := WriteCSV(f, t); err != nil {
		f.Close()
		return "", &ExportError{Path: path, Err: err}
	}
	if err := f.Close(); err != nil {
		return "", &ExportError{Path: path, Err: err}
	}
	return path, nil
}

// WriteCSV encodes t with a header row.
func WriteCSV(w io.Writer, t *Table) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header(t.withDER)); err != nil {
		return err
	}
	for _, s := range t.samples {
		rec := []string{num(s.Time), num(s.Va), num(s.Vb), num(s.Vc), num(s.Vm)}
		if t.withDER {
			rec = append(rec,
				num(s.P), num(s.Q), num(s.PF()),
				num(s.I[0]), num(s.I[1]), num(s.I[2]),
				num(s.IAngle[0]), num(s.IAngle[1]), num(s.IAngle[2]),
				s.Status,
			)
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func num(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

// Frame is a CSV file read back by column name.
type Frame struct {
	Header []string
	Rows   [][]string
	index  map[string]int
}

// ReadCSVFile reads the CSV at path.
func ReadCSVFile(path string) (*Frame, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	fr, err := ReadCSV(f)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return fr, nil
}

// ReadCSV reads a CSV with a header row.
func ReadCSV(r io.Reader) (*Frame, error) {
	recs, err := csv.NewReader(r).ReadAll()
	if err != nil {
		return nil, err
	}
	if len(recs) == 0 {
		return nil, fmt.Errorf("missing header row")
	}
	fr := &Frame{Header: recs[0], Rows: recs[1:], index: make(map[string]int, len(recs[0]))}
	for i, h := range fr.Header {
		fr.index[h] = i
	}
	return fr, nil
}

// Len is the number of data rows.
func (f *Frame) Len() int { return len(f.Rows) }

// Has reports whether the column exists.
func (f *Frame) Has(col string) bool {
	_, ok := f.index[col]
	return ok
}

// Strings returns a column as text.
func (f *Frame) Strings(col string) ([]string, error) {
	i, ok := f.index[col]
	if !ok {
		return nil, fmt.Errorf("column %q not found", col)
	}
	out := make([]string, len(f.Rows))
	for r, row := range f.Rows {
		out[r] = row[i]
	}
	return out, nil
}

// Floats returns a numeric column.
func (f *Frame) Floats(col string) ([]float64, error) {
	ss, err := f.Strings(col)
	if err != nil {
		return nil, err
	}
	out := make([]float64, len(ss))
	for r, s := range ss {
		if out[r], err = strconv.ParseFloat(s, 64); err != nil {
			return nil, fmt.Errorf("column %q row %d: %w", col, r+1, err)
		}
	}
	return out, nil
}
