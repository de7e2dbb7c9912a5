// Package eventlog writes the structured, line-delimited event stream that
// every run produces: one JSON object per transmitted frame, received ACK,
// retry, failure, or reconstruction result. Each TX/RX node gets its own
// instance; there are no hidden package-level loggers.
package eventlog

import (
	"os"
	"path/filepath"
	"time"

	apexlog "github.com/apex/log"
	apexjson "github.com/apex/log/handlers/json"
)

// Clock is the minimal time source an EventLogger needs to stamp events.
// runtime.Clock satisfies this.
type Clock interface {
	NowMs() int64
}

type wallClock struct{ start time.Time }

func (w wallClock) NowMs() int64 { return time.Since(w.start).Milliseconds() }

// EventLogger appends base-enveloped events to a run's JSONL log file.
type EventLogger struct {
	file         *os.File
	logger       *apexlog.Logger
	clock        Clock
	runID        string
	role         string
	mode         string
	phyProfileID string
}

// New opens (creating parent directories as needed) "<outDir>/<runID>_<role>.jsonl"
// and returns an EventLogger that stamps every event with runID, role, mode,
// and phyProfileID. A nil clock defaults to the wall clock.
func New(outDir, runID, role, mode, phyProfileID string, clock Clock) (*EventLogger, error) {
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return nil, err
	}
	path := filepath.Join(outDir, runID+"_"+role+".jsonl")
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, err
	}
	if clock == nil {
		clock = wallClock{start: time.Now()}
	}
	logger := &apexlog.Logger{
		Handler: apexjson.New(f),
		Level:   apexlog.InfoLevel,
	}
	return &EventLogger{
		file: f, logger: logger, clock: clock,
		runID: runID, role: role, mode: mode, phyProfileID: phyProfileID,
	}, nil
}

func (l *EventLogger) baseFields() apexlog.Fields {
	return apexlog.Fields{
		"ts_ms":          l.clock.NowMs(),
		"run_id":         l.runID,
		"role":           l.role,
		"mode":           l.mode,
		"phy_profile_id": l.phyProfileID,
	}
}

// LogEvent appends one event with the shared envelope plus the given
// extra fields.
func (l *EventLogger) LogEvent(event string, fields map[string]any) {
	entry := l.logger.WithFields(l.baseFields())
	for k, v := range fields {
		entry = entry.WithField(k, v)
	}
	entry.Info(event)
}

// LogRunStart appends a run_start event carrying the run spec and
// artifacts manifest fingerprint, so every downstream event log is
// self-describing.
func (l *EventLogger) LogRunStart(runSpec any, manifestFingerprint string) {
	l.LogEvent("run_start", map[string]any{
		"runspec":              runSpec,
		"manifest_fingerprint": manifestFingerprint,
	})
}

// Close flushes and releases the underlying file handle.
func (l *EventLogger) Close() error {
	return l.file.Close()
}
