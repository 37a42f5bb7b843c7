package nn

import (
	"fmt"
	"math"
	"math/rand"
	"slices"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

const forgetBias = 1.0

// Sequence is a list of time steps, each an N x D row-major matrix.
type Sequence [][]float64

// lstmLayer is a single LSTM layer with gates ordered input, candidate,
// forget, output.
type lstmLayer struct {
	in, hidden int
	kernel     *Param // (in+hidden) x 4*hidden
	bias       *Param // 1 x 4*hidden

	n     int
	steps []lstmStep
}

type lstmStep struct {
	z          []float64 // N x (in+hidden): [x_t, h_{t-1}]
	i, j, f, o []float64
	cPrev, tc  []float64
}

func newLSTMLayer(name string, in, hidden int, rng *rand.Rand) *lstmLayer {
	k := newParam(name+"/kernel", in+hidden, 4*hidden)
	k.initGlorotUniform(rng)
	return &lstmLayer{in: in, hidden: hidden, kernel: k, bias: newParam(name+"/bias", 1, 4*hidden)}
}

func sigmoid(x float64) float64 { return 1 / (1 + math.Exp(-x)) }

func (l *lstmLayer) forward(xs Sequence, n int, keep bool) Sequence {
	hd, width := l.hidden, l.in+l.hidden
	h := make([]float64, n*hd)
	c := make([]float64, n*hd)
	out := make(Sequence, len(xs))
	var steps []lstmStep
	if keep {
		steps = make([]lstmStep, len(xs))
	}
	kernel := l.kernel.Matrix()
	b := l.bias.Value

	for t, x := range xs {
		z := make([]float64, n*width)
		for r := range n {
			copy(z[r*width:], x[r*l.in:(r+1)*l.in])
			copy(z[r*width+l.in:], h[r*hd:(r+1)*hd])
		}
		var pre mat.Dense
		pre.Mul(mat.NewDense(n, width, z), kernel)
		raw := pre.RawMatrix().Data

		s := lstmStep{
			z: z, cPrev: c,
			i: make([]float64, n*hd), j: make([]float64, n*hd),
			f: make([]float64, n*hd), o: make([]float64, n*hd),
			tc: make([]float64, n*hd),
		}
		hNew := make([]float64, n*hd)
		cNew := make([]float64, n*hd)
		for r := range n {
			base := r * 4 * hd
			for u := range hd {
				idx := r*hd + u
				iv := sigmoid(raw[base+u] + b[u])
				jv := math.Tanh(raw[base+hd+u] + b[hd+u])
				fv := sigmoid(raw[base+2*hd+u] + b[2*hd+u] + forgetBias)
				ov := sigmoid(raw[base+3*hd+u] + b[3*hd+u])
				cv := fv*c[idx] + iv*jv
				tcv := math.Tanh(cv)
				s.i[idx], s.j[idx], s.f[idx], s.o[idx], s.tc[idx] = iv, jv, fv, ov, tcv
				cNew[idx] = cv
				hNew[idx] = ov * tcv
			}
		}
		if keep {
			steps[t] = s
		}
		h, c = hNew, cNew
		out[t] = hNew
	}
	l.n, l.steps = n, steps
	return out
}

// backward runs backpropagation through time and returns the input gradients.
func (l *lstmLayer) backward(dHs Sequence) Sequence {
	n, hd, width := l.n, l.hidden, l.in+l.hidden
	kernel := l.kernel.Matrix()
	dhNext := make([]float64, n*hd)
	dcNext := make([]float64, n*hd)
	dpre := make([]float64, n*4*hd)
	dXs := make(Sequence, len(dHs))

	for t := len(dHs) - 1; t >= 0; t-- {
		s := l.steps[t]
		for r := range n {
			base := r * 4 * hd
			for u := range hd {
				idx := r*hd + u
				iv, jv, fv, ov, tcv := s.i[idx], s.j[idx], s.f[idx], s.o[idx], s.tc[idx]
				dh := dHs[t][idx] + dhNext[idx]
				dc := dcNext[idx] + dh*ov*(1-tcv*tcv)
				dcNext[idx] = dc * fv

				dpre[base+u] = dc * jv * iv * (1 - iv)
				dpre[base+hd+u] = dc * iv * (1 - jv*jv)
				dpre[base+2*hd+u] = dc * s.cPrev[idx] * fv * (1 - fv)
				dpre[base+3*hd+u] = dh * tcv * ov * (1 - ov)
			}
			floats.Add(l.bias.Grad, dpre[base:base+4*hd])
		}

		dpreM := mat.NewDense(n, 4*hd, dpre)
		var dW mat.Dense
		dW.Mul(mat.NewDense(n, width, s.z).T(), dpreM)
		floats.Add(l.kernel.Grad, dW.RawMatrix().Data)

		var dz mat.Dense
		dz.Mul(dpreM, kernel.T())
		raw := dz.RawMatrix().Data
		dx := make([]float64, n*l.in)
		for r := range n {
			copy(dx[r*l.in:(r+1)*l.in], raw[r*width:r*width+l.in])
			copy(dhNext[r*hd:(r+1)*hd], raw[r*width+l.in:(r+1)*width])
		}
		dXs[t] = dx
	}
	l.steps = nil
	return dXs
}

// lstmStack chains layers so each consumes the previous layer's outputs.
type lstmStack []*lstmLayer

func newLSTMStack(name string, in, hidden, layers int, rng *rand.Rand) lstmStack {
	s := make(lstmStack, layers)
	for i := range s {
		s[i] = newLSTMLayer(fmt.Sprintf("%s/%d", name, i), in, hidden, rng)
		in = hidden
	}
	return s
}

func (s lstmStack) forward(xs Sequence, n int, keep bool) Sequence {
	for _, l := range s {
		xs = l.forward(xs, n, keep)
	}
	return xs
}

func (s lstmStack) backward(d Sequence) Sequence {
	for i := len(s) - 1; i >= 0; i-- {
		d = s[i].backward(d)
	}
	return d
}

func (s lstmStack) params() []*Param {
	out := make([]*Param, 0, 2*len(s))
	for _, l := range s {
		out = append(out, l.kernel, l.bias)
	}
	return out
}

// biLSTM runs a forward and a backward stack and concatenates their outputs
// per time step into N x 2*hidden.
type biLSTM struct {
	fw, bw lstmStack
	hidden int
	n      int
}

func newBiLSTM(in, hidden, layers int, rng *rand.Rand) *biLSTM {
	return &biLSTM{
		fw:     newLSTMStack("rnn/fw", in, hidden, layers, rng),
		bw:     newLSTMStack("rnn/bw", in, hidden, layers, rng),
		hidden: hidden,
	}
}

func reversed(s Sequence) Sequence {
	r := slices.Clone(s)
	slices.Reverse(r)
	return r
}

func (b *biLSTM) forward(xs Sequence, n int, keep bool) Sequence {
	outF := b.fw.forward(xs, n, keep)
	outB := reversed(b.bw.forward(reversed(xs), n, keep))
	hd := b.hidden
	out := make(Sequence, len(xs))
	for t := range xs {
		cat := make([]float64, n*2*hd)
		for r := range n {
			copy(cat[r*2*hd:], outF[t][r*hd:(r+1)*hd])
			copy(cat[r*2*hd+hd:], outB[t][r*hd:(r+1)*hd])
		}
		out[t] = cat
	}
	b.n = n
	return out
}

func (b *biLSTM) backward(d Sequence) Sequence {
	n, hd := b.n, b.hidden
	dF := make(Sequence, len(d))
	dB := make(Sequence, len(d))
	for t, cat := range d {
		dF[t] = make([]float64, n*hd)
		dB[t] = make([]float64, n*hd)
		for r := range n {
			copy(dF[t][r*hd:(r+1)*hd], cat[r*2*hd:r*2*hd+hd])
			copy(dB[t][r*hd:(r+1)*hd], cat[r*2*hd+hd:(r+1)*2*hd])
		}
	}
	dx := b.fw.backward(dF)
	dxB := reversed(b.bw.backward(reversed(dB)))
	for t := range dx {
		floats.Add(dx[t], dxB[t])
	}
	return dx
}

func (b *biLSTM) params() []*Param {
	return append(b.fw.params(), b.bw.params()...)
}
