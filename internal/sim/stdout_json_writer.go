package sim

import (
	"io"
	"os"
)

// JSONStdoutWriter prints rows and the run summary as JSON to STDOUT.
type JSONStdoutWriter struct {
	out io.Writer
}

// NewJSONStdoutWriter creates a JSONStdoutWriter writing to os.Stdout.
func NewJSONStdoutWriter() *JSONStdoutWriter {
	return &JSONStdoutWriter{out: os.Stdout}
}

// Write outputs a row in JSON format.
func (w *JSONStdoutWriter) Write(row SampleRow) error {
	return writeJSONLine(w.out, row)
}

// WriteBatch outputs multiple rows in JSON format.
func (w *JSONStdoutWriter) WriteBatch(rows []SampleRow) error {
	for _, r := range rows {
		if err := w.Write(r); err != nil {
			return err
		}
	}
	return nil
}

// WriteSummary outputs the run summary in JSON format.
func (w *JSONStdoutWriter) WriteSummary(s RunSummary) error {
	return writeJSONLine(w.out, s)
}
