package sim

import (
	"encoding/json"
	"os"
)

// FileWriter writes samples and run summaries to JSONL files.
type FileWriter struct {
	sampleFile  *os.File
	summaryFile *os.File
	sampleEnc   *json.Encoder
	summaryEnc  *json.Encoder
}

// NewFileWriter creates a FileWriter. summaryPath may be empty to skip the
// summary log.
func NewFileWriter(samplePath, summaryPath string) (*FileWriter, error) {
	sf, err := os.Create(samplePath)
	if err != nil {
		return nil, err
	}
	fw := &FileWriter{sampleFile: sf, sampleEnc: json.NewEncoder(sf)}
	if summaryPath != "" {
		mf, err := os.Create(summaryPath)
		if err != nil {
			sf.Close()
			return nil, err
		}
		fw.summaryFile = mf
		fw.summaryEnc = json.NewEncoder(mf)
	}
	return fw, nil
}

// Write logs a single row.
func (f *FileWriter) Write(row SampleRow) error {
	return f.sampleEnc.Encode(row)
}

// WriteBatch logs multiple rows.
func (f *FileWriter) WriteBatch(rows []SampleRow) error {
	for _, r := range rows {
		if err := f.Write(r); err != nil {
			return err
		}
	}
	return nil
}

// WriteSummary logs the run summary, if enabled.
func (f *FileWriter) WriteSummary(s RunSummary) error {
	if f.summaryEnc == nil {
		return nil
	}
	return f.summaryEnc.Encode(s)
}

// Close closes any underlying files.
func (f *FileWriter) Close() error {
	var err error
	if f.sampleFile != nil {
		if e := f.sampleFile.Close(); e != nil && err == nil {
			err = e
		}
	}
	if f.summaryFile != nil {
		if e := f.summaryFile.Close(); e != nil && err == nil {
			err = e
		}
	}
	return err
}
