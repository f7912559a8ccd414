// Package output appends roof status lines to the file downstream
// automation tails. The line format is a compatibility contract: other
// programs parse it, so it never changes shape.
package output

import (
	"fmt"
	"os"
	"sync"

	"roofmon/internal/types"
)

// lineLayout renders local time as 12-hour with AM/PM and no zone.
const lineLayout = "2006-01-02 03:04:05PM"

// FormatLine renders one status line, without the trailing newline.
func FormatLine(e types.LogEntry) string {
	return fmt.Sprintf("%s Roof Status: %s", e.Timestamp.Format(lineLayout), e.Label)
}

// StatusWriter appends one line per call. Each append opens, writes,
// syncs and closes the file, so a crash mid-write never corrupts lines
// already on disk and external rotation of the file just works.
type StatusWriter struct {
	mu   sync.Mutex
	path string
}

func NewStatusWriter(path string) *StatusWriter {
	return &StatusWriter{path: path}
}

func (w *StatusWriter) Append(e types.LogEntry) error {
	if e.Label != types.Open && e.Label != types.Closed {
		return fmt.Errorf("refusing to log label %s", e.Label)
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	f, err := os.OpenFile(w.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open status file: %w", err)
	}
	if _, err := f.WriteString(FormatLine(e) + "\n"); err != nil {
		_ = f.Close()
		return fmt.Errorf("append status line: %w", err)
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		return fmt.Errorf("sync status file: %w", err)
	}
	return f.Close()
}

// Path returns the file this writer appends to.
func (w *StatusWriter) Path() string {
	return w.path
}
