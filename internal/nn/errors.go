// Package nn implements the recognition network: a convolutional feature
// extractor, a bidirectional LSTM stack, a linear projection onto the
// character classes, CTC loss and an Adam optimizer. Tensors are float64 and
// matrix products go through gonum.
package nn

import (
	"errors"
	"fmt"
)

var (
	// ErrShapeMismatch reports inputs or parameters whose dimensions do not fit the network.
	ErrShapeMismatch = errors.New("shape mismatch")

	// ErrClassMismatch reports a parameter set built for a different number of classes.
	ErrClassMismatch = fmt.Errorf("%w: class count differs", ErrShapeMismatch)

	// ErrInfeasibleAlignment reports a label that cannot be aligned to the time axis.
	ErrInfeasibleAlignment = errors.New("label cannot be aligned to input sequence")
)
