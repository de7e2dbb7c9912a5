package sensing

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
)

// DatasetLogger appends one JSON line per emitted window, recording the
// channel order and units alongside so offline analysis never has to guess
// which channel is which.
type DatasetLogger struct {
	file  *os.File
	runID string
	order []string
	units map[string]string
}

// NewDatasetLogger opens (creating if needed) path for appending, creating
// parent directories as needed.
func NewDatasetLogger(path, runID string, order []string, units map[string]string) (*DatasetLogger, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, parseErrorf("creating dataset directory: %v", err)
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, parseErrorf("opening dataset file: %v", err)
	}
	if order == nil {
		order = ChannelOrder[:]
	}
	if units == nil {
		units = ChannelUnits
	}
	return &DatasetLogger{file: f, runID: runID, order: order, units: units}, nil
}

type datasetRecord struct {
	TSMillis int64             `json:"ts_ms"`
	RunID    string            `json:"run_id"`
	WindowID int               `json:"window_id"`
	Order    []string          `json:"order"`
	Units    map[string]string `json:"units"`
	Window   []float64         `json:"window"`
}

// LogWindow appends one window record.
func (d *DatasetLogger) LogWindow(windowID int, tsMillis int64, window []float64) error {
	rec := datasetRecord{
		TSMillis: tsMillis,
		RunID:    d.runID,
		WindowID: windowID,
		Order:    d.order,
		Units:    d.units,
		Window:   window,
	}
	enc, err := json.Marshal(rec)
	if err != nil {
		return parseErrorf("encoding dataset record: %v", err)
	}
	if _, err := d.file.Write(append(enc, '\n')); err != nil {
		return parseErrorf("writing dataset record: %v", err)
	}
	return d.file.Sync()
}

// Close releases the underlying file handle.
func (d *DatasetLogger) Close() error { return d.file.Close() }

// Record is one previously logged window, as read back by LoadDataset.
type Record struct {
	TSMillis int64
	RunID    string
	WindowID int
	Order    []string
	Window   []float64
}

// LoadDataset reads back every window record from a JSONL file written by
// DatasetLogger, for offline codec-fidelity experiments.
func LoadDataset(path string) ([]Record, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, parseErrorf("reading dataset file: %v", err)
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	var records []Record
	for {
		var rec datasetRecord
		if err := dec.Decode(&rec); err != nil {
			break
		}
		records = append(records, Record{
			TSMillis: rec.TSMillis,
			RunID:    rec.RunID,
			WindowID: rec.WindowID,
			Order:    rec.Order,
			Window:   rec.Window,
		})
	}
	return records, nil
}
