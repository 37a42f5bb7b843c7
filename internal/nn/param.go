package nn

import (
	"math"
	"math/rand"

	"gonum.org/v1/gonum/mat"
)

// Param is a trainable matrix with its gradient and Adam moment slots.
type Param struct {
	Name  string
	Rows  int
	Cols  int
	Value []float64
	Grad  []float64

	m []float64
	v []float64
}

func newParam(name string, rows, cols int) *Param {
	n := rows * cols
	return &Param{
		Name:  name,
		Rows:  rows,
		Cols:  cols,
		Value: make([]float64, n),
		Grad:  make([]float64, n),
		m:     make([]float64, n),
		v:     make([]float64, n),
	}
}

// Matrix views the parameter values as a Rows x Cols matrix.
func (p *Param) Matrix() *mat.Dense {
	return mat.NewDense(p.Rows, p.Cols, p.Value)
}

// ZeroGrad clears the accumulated gradient.
func (p *Param) ZeroGrad() {
	clear(p.Grad)
}

func (p *Param) fill(v float64) {
	for i := range p.Value {
		p.Value[i] = v
	}
}

// initTruncatedNormal draws from N(0, std) re-sampling values beyond two
// standard deviations.
func (p *Param) initTruncatedNormal(rng *rand.Rand, std float64) {
	for i := range p.Value {
		for {
			x := rng.NormFloat64()
			if math.Abs(x) <= 2 {
				p.Value[i] = x * std
				break
			}
		}
	}
}

// initGlorotUniform draws from U(-l, l) with l = sqrt(6/(fanIn+fanOut)).
func (p *Param) initGlorotUniform(rng *rand.Rand) {
	limit := math.Sqrt(6 / float64(p.Rows+p.Cols))
	for i := range p.Value {
		p.Value[i] = (2*rng.Float64() - 1) * limit
	}
}
