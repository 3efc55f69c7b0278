package main

import (
	"bufio"
	"os"
	"path/filepath"
	"testing"
	"time"

	"dersim/internal/config"
	"dersim/internal/sim"
)

func TestNewWritersPrintOnly(t *testing.T) {
	cfg := config.Default()
	w, cleanup, err := newWriters(&cfg, writerOptions{PrintOnly: true})
	if err != nil {
		t.Fatalf("newWriters returned error: %v", err)
	}
	cleanup()
	if _, ok := w.(*sim.StdoutWriter); !ok {
		t.Fatalf("expected *sim.StdoutWriter, got %T", w)
	}
}

func TestNewWritersGreptimeFallback(t *testing.T) {
	t.Setenv("GREPTIMEDB_ENDPOINT", "")
	w, cleanup, err := newWriters(nil, writerOptions{JSON: true})
	if err != nil {
		t.Fatalf("newWriters returned error: %v", err)
	}
	cleanup()
	if _, ok := w.(*sim.JSONStdoutWriter); !ok {
		t.Fatalf("expected *sim.JSONStdoutWriter, got %T", w)
	}
}

func TestNewWritersBadGreptimeEndpoint(t *testing.T) {
	t.Setenv("GREPTIMEDB_ENDPOINT", "db:notaport")
	if _, _, err := newWriters(nil, writerOptions{}); err == nil {
		t.Fatalf("expected endpoint error")
	}
}

func TestNewWritersLogFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "samples.jsonl")
	w, cleanup, err := newWriters(nil, writerOptions{PrintOnly: true, JSON: true, LogFile: path})
	if err != nil {
		t.Fatalf("newWriters returned error: %v", err)
	}
	mw, ok := w.(*sim.MultiWriter)
	if !ok {
		t.Fatalf("expected *sim.MultiWriter, got %T", w)
	}
	row := sim.SampleRow{RunID: "r1", Index: 0, Timestamp: time.Now()}
	if err := mw.Write(row); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	if err := mw.WriteSummary(sim.RunSummary{RunID: "r1", Samples: 1}); err != nil {
		t.Fatalf("write summary failed: %v", err)
	}
	cleanup()

	for _, p := range []string{path, path + ".summary"} {
		f, err := os.Open(p)
		if err != nil {
			t.Fatalf("open %s: %v", p, err)
		}
		sc := bufio.NewScanner(f)
		lines := 0
		for sc.Scan() {
			lines++
		}
		f.Close()
		if lines != 1 {
			t.Fatalf("%s has %d lines, want 1", p, lines)
		}
	}
}
