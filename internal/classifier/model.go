package classifier

import (
	"fmt"
	"os"

	"github.com/fxamacker/cbor/v2"
)

// ModelVersion is the only blob format this build reads.
const ModelVersion = 1

// Model is the logistic-regression artifact. The blob is CBOR: small,
// self-describing, and readable by the training side without a Go
// dependency.
type Model struct {
	Version   int               `cbor:"version"`
	InputSize int               `cbor:"input_size"`
	Weights   []float64         `cbor:"weights"`
	Bias      float64           `cbor:"bias"`
	Meta      map[string]string `cbor:"meta,omitempty"`
}

func (m *Model) validate() error {
	if m.Version != ModelVersion {
		return fmt.Errorf("model version %d, want %d", m.Version, ModelVersion)
	}
	if m.InputSize <= 0 {
		return fmt.Errorf("model input size %d must be positive", m.InputSize)
	}
	if want := m.InputSize * m.InputSize; len(m.Weights) != want {
		return fmt.Errorf("model has %d weights, want %d for %dx%d input",
			len(m.Weights), want, m.InputSize, m.InputSize)
	}
	return nil
}

// DemoModel builds a logistic model over mean brightness. Every weight
// is a small negative number, so dark frames (open roof, night sky)
// push the score up and bright frames (closed roof) push it down. The
// bias puts the decision boundary at the cutoff brightness.
func DemoModel(n int, cutoff float64) *Model {
	const w = -0.001
	weights := make([]float64, n*n)
	for i := range weights {
		weights[i] = w
	}
	return &Model{
		Version:   ModelVersion,
		InputSize: n,
		Weights:   weights,
		Bias:      -w * cutoff * float64(n*n),
		Meta: map[string]string{
			"kind":   "brightness-demo",
			"cutoff": fmt.Sprintf("%.0f", cutoff),
		},
	}
}

// LoadModel reads and validates a model blob.
func LoadModel(path string) (*Model, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read model: %w", err)
	}
	var m Model
	if err := cbor.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("decode model %s: %w", path, err)
	}
	if err := m.validate(); err != nil {
		return nil, fmt.Errorf("model %s: %w", path, err)
	}
	return &m, nil
}

// SaveModel writes a validated model blob.
func SaveModel(path string, m *Model) error {
	if err := m.validate(); err != nil {
		return err
	}
	data, err := cbor.Marshal(m)
	if err != nil {
		return fmt.Errorf("encode model: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write model: %w", err)
	}
	return nil
}
