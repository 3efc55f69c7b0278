package sim

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"dersim/internal/config"
)

func TestStdoutWriterJSONFallback(t *testing.T) {
	buf := &bytes.Buffer{}
	w := &StdoutWriter{out: buf, colorize: false}
	if err := w.Write(sampleRow(3)); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	var got SampleRow
	if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("expected JSON output, got %q", buf.String())
	}
	if got.Index != 3 || got.Vm != 1.0 {
		t.Fatalf("unexpected row %+v", got)
	}
	if !strings.Contains(buf.String(), `"va_pu":1.01`) {
		t.Fatalf("sample fields not flattened: %s", buf.String())
	}
}

func TestStdoutWriterColorized(t *testing.T) {
	cfg := config.Default()
	buf := &bytes.Buffer{}
	w := &StdoutWriter{cfg: &cfg, colorize: true, out: buf}
	if err := w.Write(sampleRow(0)); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	output := buf.String()
	if !strings.Contains(output, "Simulation Configuration:") || !strings.Contains(output, "Voltage-Reactive Power Mode - CAT B") {
		t.Fatalf("overview not printed: %q", output)
	}
	if !strings.Contains(output, "\x1b[") || !strings.Contains(output, "status=Normal Operation") {
		t.Fatalf("expected colored row in output: %q", output)
	}

	buf.Reset()
	if err := w.Write(sampleRow(1)); err != nil {
		t.Fatalf("second write failed: %v", err)
	}
	if strings.Contains(buf.String(), "Simulation Configuration:") {
		t.Fatalf("overview printed more than once")
	}

	buf.Reset()
	if err := w.WriteSummary(RunSummary{RunID: "run-1", Samples: 2}); err != nil {
		t.Fatalf("summary failed: %v", err)
	}
	if !strings.Contains(buf.String(), "SUMMARY") || !strings.Contains(buf.String(), "samples=2") {
		t.Fatalf("unexpected summary %q", buf.String())
	}
}

func TestJSONStdoutWriter(t *testing.T) {
	buf := &bytes.Buffer{}
	w := &JSONStdoutWriter{out: buf}
	if err := w.WriteBatch([]SampleRow{sampleRow(0), sampleRow(1)}); err != nil {
		t.Fatalf("batch: %v", err)
	}
	if err := w.WriteSummary(RunSummary{Samples: 2}); err != nil {
		t.Fatalf("summary: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 3 || !strings.Contains(lines[2], `"samples":2`) {
		t.Fatalf("unexpected output %q", lines)
	}
}
