package secondary

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"roofmon/internal/types"
)

// FileSource parses the last line of another program's roof status file,
// typically one written by ACP or a dome controller.
type FileSource struct {
	Path string
}

func NewFileSource(path string) *FileSource {
	return &FileSource{Path: path}
}

func (s *FileSource) Name() string { return "file" }

// Read parses the final non-empty line. A line mentioning both states
// reads as OPEN. A file with no recognizable state is not an error; it
// reports UNKNOWN.
func (s *FileSource) Read(_ context.Context) (types.Label, time.Time, error) {
	info, err := os.Stat(s.Path)
	if err != nil {
		return types.Unknown, time.Time{}, fmt.Errorf("stat secondary file: %w", err)
	}
	data, err := os.ReadFile(s.Path)
	if err != nil {
		return types.Unknown, time.Time{}, fmt.Errorf("read secondary file: %w", err)
	}

	lines := strings.Split(string(data), "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		line := strings.TrimSpace(lines[i])
		if line == "" {
			continue
		}
		return types.ParseLabel(line), info.ModTime(), nil
	}
	return types.Unknown, info.ModTime(), nil
}
