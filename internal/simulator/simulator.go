// Package simulator produces synthetic all-sky frames for running the
// monitor without a camera. Open-roof frames are dark sky with stars;
// closed frames show the flat bright gray of the roof interior.
package simulator

import (
	"fmt"
	"image"
	"image/color"
	"image/png"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"time"

	"roofmon/internal/types"
)

const (
	defaultWidth  = 640
	defaultHeight = 480

	skyBase  = 12
	roofBase = 155
)

// Generator renders frames from a seeded source, so the same seed
// always yields the same sequence. Not safe for concurrent use.
type Generator struct {
	width, height int
	rng           *rand.Rand
}

func New(seed int64) *Generator {
	return NewSized(seed, defaultWidth, defaultHeight)
}

func NewSized(seed int64, width, height int) *Generator {
	return &Generator{
		width:  width,
		height: height,
		rng:    rand.New(rand.NewSource(seed)),
	}
}

// Frame renders one grayscale frame for the given roof state. Anything
// that is not OPEN renders as the closed roof.
func (g *Generator) Frame(label types.Label) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, g.width, g.height))
	if label == types.Open {
		g.paintSky(img)
	} else {
		g.paintRoof(img)
	}
	return img
}

func (g *Generator) paintSky(img *image.Gray) {
	for y := 0; y < g.height; y++ {
		for x := 0; x < g.width; x++ {
			img.SetGray(x, y, color.Gray{Y: clamp(skyBase + g.rng.NormFloat64()*4)})
		}
	}

	stars := 40 + g.rng.Intn(40)
	for i := 0; i < stars; i++ {
		x := g.rng.Intn(g.width)
		y := g.rng.Intn(g.height)
		bright := 160 + g.rng.Intn(96)
		img.SetGray(x, y, color.Gray{Y: uint8(bright)})
		for _, d := range [][2]int{{1, 0}, {-1, 0}, {0, 1}, {0, -1}} {
			nx, ny := x+d[0], y+d[1]
			if nx >= 0 && nx < g.width && ny >= 0 && ny < g.height {
				img.SetGray(nx, ny, color.Gray{Y: uint8(bright / 2)})
			}
		}
	}
}

func (g *Generator) paintRoof(img *image.Gray) {
	for y := 0; y < g.height; y++ {
		for x := 0; x < g.width; x++ {
			// Mild lighting gradient across the panels.
			grad := 20 * float64(x) / float64(g.width)
			img.SetGray(x, y, color.Gray{Y: clamp(roofBase + grad + g.rng.NormFloat64()*6)})
		}
	}
}

func clamp(v float64) uint8 {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return uint8(v)
}

// WriteFrame renders and drops one PNG into dir, stamped with the given
// capture time. The temp file has no .png extension, so a directory
// scan only ever sees complete frames.
func (g *Generator) WriteFrame(dir string, label types.Label, at time.Time) (string, error) {
	if at.IsZero() {
		at = time.Now()
	}
	name := fmt.Sprintf("sim_%d_%s.png", at.UnixMilli(), strings.ToLower(label.String()))

	tmp, err := os.CreateTemp(dir, ".sim-*")
	if err != nil {
		return "", fmt.Errorf("sim temp file: %w", err)
	}
	if err := png.Encode(tmp, g.Frame(label)); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", fmt.Errorf("encode %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("close %s: %w", name, err)
	}
	if err := os.Chtimes(tmp.Name(), at, at); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("stamp %s: %w", name, err)
	}

	path := filepath.Join(dir, name)
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("publish %s: %w", name, err)
	}
	return path, nil
}
