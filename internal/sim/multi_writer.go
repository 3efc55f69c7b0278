package sim

// MultiWriter fan-outs rows, summaries and state changes to multiple writers.
type MultiWriter struct {
	writers []SampleWriter
}

// NewMultiWriter creates a new MultiWriter.
func NewMultiWriter(ws ...SampleWriter) *MultiWriter {
	return &MultiWriter{writers: ws}
}

// Write sends a row to all writers.
func (mw *MultiWriter) Write(row SampleRow) error {
	for _, w := range mw.writers {
		if err := w.Write(row); err != nil {
			return err
		}
	}
	return nil
}

// WriteBatch sends multiple rows to all writers, using batch if supported.
func (mw *MultiWriter) WriteBatch(rows []SampleRow) error {
	for _, w := range mw.writers {
		if bw, ok := w.(batchWriter); ok {
			if err := bw.WriteBatch(rows); err != nil {
				return err
			}
			continue
		}
		for _, r := range rows {
			if err := w.Write(r); err != nil {
				return err
			}
		}
	}
	return nil
}

// WriteSummary forwards the summary to writers that accept it.
func (mw *MultiWriter) WriteSummary(s RunSummary) error {
	for _, w := range mw.writers {
		if sw, ok := w.(SummaryWriter); ok {
			if err := sw.WriteSummary(s); err != nil {
				return err
			}
		}
	}
	return nil
}

// SetState forwards a state change to writers that track it.
func (mw *MultiWriter) SetState(st State) {
	for _, w := range mw.writers {
		if r, ok := w.(StateReporter); ok {
			r.SetState(st)
		}
	}
}
