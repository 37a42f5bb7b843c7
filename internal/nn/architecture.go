package nn

import (
	"fmt"
	"slices"
)

// Pool is a max pooling window; stride equals the window.
type Pool struct {
	W int `json:"w" yaml:"w"`
	H int `json:"h" yaml:"h"`
}

// Architecture describes the layer sizes of the network.
type Architecture struct {
	Height       int     // input image height
	Kernels      []int   // square conv kernel size per CNN stage
	Features     []int   // output channels per CNN stage
	Pools        []Pool  // pooling window per CNN stage
	Hidden       int     // LSTM units per direction
	Layers       int     // stacked LSTM layers per direction
	LearningRate float64 // Adam step size
	Seed         int64   // weight initialization seed, 0 picks a time-based seed
}

// DefaultArchitecture returns the five-stage CNN with a two-layer
// bidirectional LSTM of 256 units over 32 pixel high images.
func DefaultArchitecture() Architecture {
	return Architecture{
		Height:       32,
		Kernels:      []int{5, 5, 3, 3, 3},
		Features:     []int{32, 64, 128, 128, 256},
		Pools:        []Pool{{2, 2}, {2, 2}, {1, 2}, {1, 2}, {1, 2}},
		Hidden:       256,
		Layers:       2,
		LearningRate: 0.001,
	}
}

// Validate checks that the architecture is internally consistent.
func (a Architecture) Validate() error {
	if a.Height <= 0 {
		return fmt.Errorf("%w: height must be positive, got %d", ErrShapeMismatch, a.Height)
	}
	n := len(a.Kernels)
	if n == 0 || len(a.Features) != n || len(a.Pools) != n {
		return fmt.Errorf("%w: kernels, features and pools must have the same non-zero length (%d/%d/%d)",
			ErrShapeMismatch, len(a.Kernels), len(a.Features), len(a.Pools))
	}
	hp := 1
	for i := range n {
		if a.Kernels[i] <= 0 || a.Features[i] <= 0 || a.Pools[i].W <= 0 || a.Pools[i].H <= 0 {
			return fmt.Errorf("%w: stage %d has a non-positive size", ErrShapeMismatch, i)
		}
		hp *= a.Pools[i].H
	}
	if hp != a.Height {
		return fmt.Errorf("%w: height pools multiply to %d, want %d", ErrShapeMismatch, hp, a.Height)
	}
	if a.Hidden <= 0 || a.Layers <= 0 {
		return fmt.Errorf("%w: hidden=%d layers=%d", ErrShapeMismatch, a.Hidden, a.Layers)
	}
	if a.LearningRate <= 0 {
		return fmt.Errorf("learning rate must be positive, got %g", a.LearningRate)
	}
	return nil
}

// Downsample returns the factor by which the CNN shrinks the width axis.
func (a Architecture) Downsample() int {
	d := 1
	for _, p := range a.Pools {
		d *= p.W
	}
	return d
}

// TimeSteps returns the sequence length produced for an input width.
func (a Architecture) TimeSteps(width int) int {
	return width / a.Downsample()
}

// outputFeatures returns the channel count fed to the recurrent stage.
func (a Architecture) outputFeatures() int {
	return a.Features[len(a.Features)-1]
}

func (a Architecture) sameShape(b Architecture) bool {
	return a.Height == b.Height &&
		slices.Equal(a.Kernels, b.Kernels) &&
		slices.Equal(a.Features, b.Features) &&
		slices.Equal(a.Pools, b.Pools) &&
		a.Hidden == b.Hidden &&
		a.Layers == b.Layers
}
