package nn

import "fmt"

// Tensor is a dense 4-D array laid out as ((n*W+x)*H+y)*C+c: batch, width,
// height, channel. A single-channel tensor matches the width-major layout of
// preprocessed images.
type Tensor struct {
	N, W, H, C int
	Data       []float64
}

// NewTensor allocates a zero tensor.
func NewTensor(n, w, h, c int) *Tensor {
	return &Tensor{N: n, W: w, H: h, C: c, Data: make([]float64, n*w*h*c)}
}

// Index returns the flat offset of element (n, x, y, c).
func (t *Tensor) Index(n, x, y, c int) int {
	return ((n*t.W+x)*t.H+y)*t.C + c
}

// Rows returns the number of spatial positions across the batch.
func (t *Tensor) Rows() int {
	return t.N * t.W * t.H
}

func (t *Tensor) sameShape(o *Tensor) bool {
	return t.N == o.N && t.W == o.W && t.H == o.H && t.C == o.C
}

func (t *Tensor) String() string {
	return fmt.Sprintf("[%d %d %d %d]", t.N, t.W, t.H, t.C)
}

// Logits holds unnormalized class scores laid out as (n*T+t)*K+k.
type Logits struct {
	N, T, K int
	Data    []float64
}

// Sample returns the T*K scores of batch element n.
func (l Logits) Sample(n int) []float64 {
	size := l.T * l.K
	return l.Data[n*size : (n+1)*size]
}

// Step returns the K scores of batch element n at time step t.
func (l Logits) Step(n, t int) []float64 {
	off := (n*l.T + t) * l.K
	return l.Data[off : off+l.K]
}
