package types

import (
	"strings"
	"time"
)

// Label is the binary roof state reported by the classifier.
type Label uint8

const (
	Unknown Label = iota
	Open
	Closed
)

func (l Label) String() string {
	switch l {
	case Open:
		return "OPEN"
	case Closed:
		return "CLOSED"
	default:
		return "UNKNOWN"
	}
}

func (l Label) MarshalText() ([]byte, error) {
	return []byte(l.String()), nil
}

func (l *Label) UnmarshalText(text []byte) error {
	*l = ParseLabel(string(text))
	return nil
}

// ParseLabel extracts a roof label from free-form text such as a status
// file line. OPEN takes precedence when both words appear.
func ParseLabel(s string) Label {
	u := strings.ToUpper(s)
	switch {
	case strings.Contains(u, "OPEN"):
		return Open
	case strings.Contains(u, "CLOSED"):
		return Closed
	default:
		return Unknown
	}
}

// Frame is one camera image file found in the monitored directory.
// Pixel data stays on disk until the classifier reads it.
type Frame struct {
	Path    string    `json:"path"`
	ModTime time.Time `json:"mod_time"`
}

func (f Frame) Zero() bool {
	return f.Path == ""
}

// Same reports whether two frames refer to the same file content: the
// camera rewriting a file bumps its mtime, which counts as a new frame.
func (f Frame) Same(other Frame) bool {
	return f.Path == other.Path && f.ModTime.Equal(other.ModTime)
}

// ClassificationResult is the outcome of evaluating one frame. Created
// once per poll and immutable once handed to the status store.
type ClassificationResult struct {
	Label       Label     `json:"label"`
	RawLabel    Label     `json:"raw_label"`
	Confidence  float64   `json:"confidence"`
	FramePath   string    `json:"frame_path"`
	FrameTime   time.Time `json:"frame_time"`
	EvaluatedAt time.Time `json:"evaluated_at"`
	Override    string    `json:"override,omitempty"`
}

// StatusRecord is the process-wide current roof status. Exactly one live
// instance, owned by the status store.
type StatusRecord struct {
	Label       Label     `json:"label"`
	Confidence  float64   `json:"confidence"`
	UpdatedAt   time.Time `json:"updated_at"`
	FramePath   string    `json:"frame_path"`
	Consecutive int       `json:"consecutive"`
	Evaluations uint64    `json:"evaluations"`
	LastError   string    `json:"last_error,omitempty"`
}

// Known reports whether the record carries a real classification rather
// than the startup sentinel.
func (r StatusRecord) Known() bool {
	return r.Label == Open || r.Label == Closed
}

// Stale reports whether the record is older than maxAge at time now.
// A zero maxAge disables staleness.
func (r StatusRecord) Stale(now time.Time, maxAge time.Duration) bool {
	if maxAge <= 0 || !r.Known() {
		return false
	}
	return now.Sub(r.UpdatedAt) > maxAge
}

// LogEntry is one status file line: timestamp plus label, appended every
// poll that produced or confirmed a status.
type LogEntry struct {
	Timestamp time.Time
	Label     Label
}
