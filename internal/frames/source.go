// Package frames locates and decodes sky-camera images in a watched
// directory. The camera owns the directory; we only ever read it.
package frames

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"roofmon/internal/types"
)

// ErrSourceUnavailable marks a watched directory that is missing or
// unreadable. Callers treat it as transient and retry next poll.
var ErrSourceUnavailable = errors.New("frame source unavailable")

// Source scans a single directory, non-recursively, for camera frames.
type Source struct {
	Dir  string
	Exts []string
}

// NewSource lowercases the extension list once so Latest can compare
// cheaply per entry.
func NewSource(dir string, exts []string) *Source {
	lowered := make([]string, len(exts))
	for i, e := range exts {
		lowered[i] = strings.ToLower(e)
	}
	return &Source{Dir: dir, Exts: lowered}
}

// Latest returns the newest matching frame by modification time. Ties on
// equal mtime go to the lexicographically greatest name, so a camera
// writing frame_0001.png, frame_0002.png within one clock tick still
// resolves deterministically. A directory with no matching files returns
// ok=false with no error.
func (s *Source) Latest() (types.Frame, bool, error) {
	entries, err := os.ReadDir(s.Dir)
	if err != nil {
		return types.Frame{}, false, fmt.Errorf("%w: %s: %v", ErrSourceUnavailable, s.Dir, err)
	}

	var best types.Frame
	for _, entry := range entries {
		if entry.IsDir() || !s.match(entry.Name()) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			// File vanished between ReadDir and stat.
			continue
		}
		cand := types.Frame{
			Path:    filepath.Join(s.Dir, entry.Name()),
			ModTime: info.ModTime(),
		}
		if best.Zero() || cand.ModTime.After(best.ModTime) ||
			(cand.ModTime.Equal(best.ModTime) && cand.Path > best.Path) {
			best = cand
		}
	}

	if best.Zero() {
		return types.Frame{}, false, nil
	}
	return best, true, nil
}

func (s *Source) match(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	for _, want := range s.Exts {
		if ext == want {
			return true
		}
	}
	return false
}
