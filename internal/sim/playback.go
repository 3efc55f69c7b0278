package sim

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"time"
)

// ReplayOptions control log playback.
type ReplayOptions struct {
	// Speed >0 paces rows by their timestamps divided by Speed; <=0 replays
	// without delay.
	Speed float64
	// RunID keeps only rows of one run when set.
	RunID string
}

// ReplayLog replays JSONL sample rows from r into writer and returns how many
// rows it wrote.
func ReplayLog(r io.Reader, writer SampleWriter, opts ReplayOptions) (int, error) {
	dec := json.NewDecoder(r)
	var (
		prev time.Time
		n    int
	)
	for {
		var row SampleRow
		if err := dec.Decode(&row); err != nil {
			if errors.Is(err, io.EOF) {
				return n, nil
			}
			return n, fmt.Errorf("replay row %d: %w", n+1, err)
		}
		if opts.RunID != "" && row.RunID != opts.RunID {
			continue
		}
		if !prev.IsZero() && opts.Speed > 0 {
			if d := time.Duration(float64(row.Timestamp.Sub(prev)) / opts.Speed); d > 0 {
				time.Sleep(d)
			}
		}
		if err := writer.Write(row); err != nil {
			return n, err
		}
		n++
		prev = row.Timestamp
	}
}

// ReplayLogFile opens a file and replays its rows.
func ReplayLogFile(path string, writer SampleWriter, opts ReplayOptions) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()
	return ReplayLog(f, writer, opts)
}
