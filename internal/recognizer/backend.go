package recognizer

import (
	"io"

	"github.com/MeKo-Tech/gohtr/internal/nn"
)

// Backend is the numeric network behind a Model.
type Backend interface {
	// TrainStep runs one optimizer update and returns the mean batch loss.
	TrainStep(in *nn.Tensor, labels [][]int) (float64, error)
	// Infer returns per-step class scores.
	Infer(in *nn.Tensor) (nn.Logits, error)
	// Loss returns the per-element alignment loss of labels under logits.
	Loss(logits nn.Logits, labels [][]int) ([]float64, error)
	Save(w io.Writer) error
	Load(r io.Reader) error
}

// BackendFactory builds a fresh backend for an alphabet of numChars characters.
type BackendFactory func(numChars int) (Backend, error)

// NetworkFactory returns a factory producing nn networks of the given architecture.
func NetworkFactory(arch nn.Architecture) BackendFactory {
	return func(numChars int) (Backend, error) {
		n, err := nn.NewNetwork(arch, numChars)
		if err != nil {
			return nil, err
		}
		return n, nil
	}
}
