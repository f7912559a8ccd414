// Package classifier scores sky-camera frames with a logistic model.
// The verdict is binary: either the roof blocks the sky or it does not.
package classifier

import (
	"errors"
	"fmt"
	"image"
	"math"
	"time"

	"golang.org/x/image/draw"

	"roofmon/internal/frames"
	"roofmon/internal/types"
)

var (
	// ErrModelNotLoaded means the classifier was built without a model.
	ErrModelNotLoaded = errors.New("model not loaded")
	// ErrInvalidFrame means the frame decoded but cannot be scored.
	ErrInvalidFrame = errors.New("invalid frame")
)

// Classifier evaluates frames against one fixed model. Safe for
// concurrent use: the model is read-only after construction.
type Classifier struct {
	model     *Model
	threshold float64
}

// New builds a classifier. A probability strictly above threshold reads
// as OPEN; equality resolves CLOSED so a coin-flip score never reports
// an open roof.
func New(model *Model, threshold float64) *Classifier {
	return &Classifier{model: model, threshold: threshold}
}

// Classify decodes the frame file and scores it. The returned result
// carries the chosen label and the probability of that label.
func (c *Classifier) Classify(frame types.Frame) (types.ClassificationResult, error) {
	if c.model == nil {
		return types.ClassificationResult{}, ErrModelNotLoaded
	}

	img, err := frames.Decode(frame.Path)
	if err != nil {
		return types.ClassificationResult{}, err
	}

	pOpen, err := c.score(img)
	if err != nil {
		return types.ClassificationResult{}, err
	}

	label := types.Closed
	confidence := 1 - pOpen
	if pOpen > c.threshold {
		label = types.Open
		confidence = pOpen
	}

	return types.ClassificationResult{
		Label:       label,
		RawLabel:    label,
		Confidence:  confidence,
		FramePath:   frame.Path,
		FrameTime:   frame.ModTime,
		EvaluatedAt: time.Now(),
	}, nil
}

// score runs the model on one decoded image and returns P(OPEN).
func (c *Classifier) score(img image.Image) (float64, error) {
	feats, err := features(img, c.model.InputSize)
	if err != nil {
		return 0, err
	}
	if len(feats) != len(c.model.Weights) {
		return 0, fmt.Errorf("%w: %d features vs %d weights", ErrInvalidFrame, len(feats), len(c.model.Weights))
	}
	z := c.model.Bias
	for i, x := range feats {
		z += c.model.Weights[i] * x
	}
	return sigmoid(z), nil
}

// features converts the image to grayscale, resizes it to n x n with
// bilinear filtering, and flattens it row-major as raw 0..255 values.
// The training pipeline prepares images the same way.
func features(img image.Image, n int) ([]float64, error) {
	b := img.Bounds()
	if b.Dx() <= 0 || b.Dy() <= 0 {
		return nil, fmt.Errorf("%w: empty image", ErrInvalidFrame)
	}
	gray := image.NewGray(image.Rect(0, 0, n, n))
	draw.BiLinear.Scale(gray, gray.Bounds(), img, b, draw.Src, nil)

	feats := make([]float64, n*n)
	for i, px := range gray.Pix {
		feats[i] = float64(px)
	}
	return feats, nil
}

func sigmoid(z float64) float64 {
	return 1 / (1 + math.Exp(-z))
}
