// Command roofmon-simcam drops synthetic sky frames into a watch
// directory so a full roofmon stack can run without a camera.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"roofmon/internal/simulator"
	"roofmon/internal/types"
)

func main() {
	var (
		dir    = flag.String("dir", "", "Directory to write frames into (required)")
		roof   = flag.String("roof", "cycle", "Roof state: open, closed or cycle")
		period = flag.Duration("period", 10*time.Second, "Time between frames")
		every  = flag.Int("cycle-every", 10, "Frames per state in cycle mode")
		width  = flag.Int("width", 640, "Frame width in pixels")
		height = flag.Int("height", 480, "Frame height in pixels")
		seed   = flag.Int64("seed", 1, "Random seed")
	)
	flag.Parse()

	logger, _ := zap.NewDevelopment()
	defer logger.Sync()
	log := logger.Sugar()

	if *dir == "" {
		log.Fatal("missing -dir")
	}
	next := stateFunc(*roof, *every)
	if next == nil {
		log.Fatalw("bad -roof value", "roof", *roof)
	}
	if err := os.MkdirAll(*dir, 0o755); err != nil {
		log.Fatalw("create directory", "error", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	gen := simulator.NewSized(*seed, *width, *height)
	log.Infow("simcam running",
		"dir", *dir, "roof", *roof, "period", period.String(),
		"width", *width, "height", *height)

	ticker := time.NewTicker(*period)
	defer ticker.Stop()
	for i := 0; ; i++ {
		label := next(i)
		path, err := gen.WriteFrame(*dir, label, time.Now())
		if err != nil {
			log.Warnw("write frame", "error", err)
		} else {
			log.Infow("frame written", "path", path, "roof", label.String())
		}
		select {
		case <-ctx.Done():
			log.Info("simcam stopped")
			return
		case <-ticker.C:
		}
	}
}

// stateFunc maps the -roof flag to a per-frame label choice. Cycle mode
// alternates between open and closed every few frames so a watching
// monitor sees real transitions.
func stateFunc(mode string, every int) func(int) types.Label {
	if every < 1 {
		every = 1
	}
	switch strings.ToLower(mode) {
	case "open":
		return func(int) types.Label { return types.Open }
	case "closed":
		return func(int) types.Label { return types.Closed }
	case "cycle":
		return func(i int) types.Label {
			if (i/every)%2 == 1 {
				return types.Closed
			}
			return types.Open
		}
	}
	return nil
}
