package nn

import (
	"math/rand"

	"github.com/MeKo-Tech/gohtr/internal/mempool"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// conv2D is a stride-1 convolution with SAME padding and no bias, computed as
// an im2col matrix product.
type conv2D struct {
	k, inC, outC int
	weight       *Param // (k*k*inC) x outC
	inputGrad    bool

	in   *Tensor
	cols []float64
}

func newConv2D(name string, k, inC, outC int, inputGrad bool, rng *rand.Rand) *conv2D {
	w := newParam(name+"/kernel", k*k*inC, outC)
	w.initTruncatedNormal(rng, 0.1)
	return &conv2D{k: k, inC: inC, outC: outC, weight: w, inputGrad: inputGrad}
}

func (l *conv2D) patchSize() int { return l.k * l.k * l.inC }

func (l *conv2D) forward(in *Tensor, keep bool) *Tensor {
	rows, kk := in.Rows(), l.patchSize()
	cols := mempool.GetFloat64(rows * kk)
	im2col(in, l.k, cols)

	out := NewTensor(in.N, in.W, in.H, l.outC)
	outM := mat.NewDense(rows, l.outC, out.Data)
	outM.Mul(mat.NewDense(rows, kk, cols), l.weight.Matrix())

	l.release()
	if keep {
		l.in, l.cols = in, cols
	} else {
		mempool.PutFloat64(cols)
	}
	return out
}

// backward accumulates the kernel gradient and returns the input gradient,
// or nil when the layer does not propagate to its input.
func (l *conv2D) backward(dOut *Tensor) *Tensor {
	rows, kk := l.in.Rows(), l.patchSize()
	dOutM := mat.NewDense(rows, l.outC, dOut.Data)

	var dW mat.Dense
	dW.Mul(mat.NewDense(rows, kk, l.cols).T(), dOutM)
	floats.Add(l.weight.Grad, dW.RawMatrix().Data)

	var dIn *Tensor
	if l.inputGrad {
		dCols := mempool.GetFloat64(rows * kk)
		mat.NewDense(rows, kk, dCols).Mul(dOutM, l.weight.Matrix().T())
		dIn = NewTensor(l.in.N, l.in.W, l.in.H, l.in.C)
		col2im(dCols, dIn, l.k)
		mempool.PutFloat64(dCols)
	}
	l.release()
	return dIn
}

func (l *conv2D) release() {
	if l.cols != nil {
		mempool.PutFloat64(l.cols)
	}
	l.cols, l.in = nil, nil
}

// im2col writes one k*k*C patch row per spatial position; cols must be zeroed.
func im2col(in *Tensor, k int, cols []float64) {
	pad := (k - 1) / 2
	c := in.C
	kk := k * k * c
	for n := range in.N {
		for x := range in.W {
			for y := range in.H {
				row := ((n*in.W+x)*in.H + y) * kk
				for dx := range k {
					sx := x + dx - pad
					if sx < 0 || sx >= in.W {
						continue
					}
					for dy := range k {
						sy := y + dy - pad
						if sy < 0 || sy >= in.H {
							continue
						}
						src := ((n*in.W+sx)*in.H + sy) * c
						dst := row + (dx*k+dy)*c
						copy(cols[dst:dst+c], in.Data[src:src+c])
					}
				}
			}
		}
	}
}

// col2im scatters patch gradients back onto the input positions.
func col2im(cols []float64, out *Tensor, k int) {
	pad := (k - 1) / 2
	c := out.C
	kk := k * k * c
	for n := range out.N {
		for x := range out.W {
			for y := range out.H {
				row := ((n*out.W+x)*out.H + y) * kk
				for dx := range k {
					sx := x + dx - pad
					if sx < 0 || sx >= out.W {
						continue
					}
					for dy := range k {
						sy := y + dy - pad
						if sy < 0 || sy >= out.H {
							continue
						}
						dst := ((n*out.W+sx)*out.H + sy) * c
						src := row + (dx*k+dy)*c
						floats.Add(out.Data[dst:dst+c], cols[src:src+c])
					}
				}
			}
		}
	}
}
