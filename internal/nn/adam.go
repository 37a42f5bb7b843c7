package nn

import "math"

// Adam implements the Adam optimizer with bias-corrected step size.
type Adam struct {
	LearningRate float64
	Beta1        float64
	Beta2        float64
	Epsilon      float64
	step         int
}

// NewAdam returns an optimizer with the usual moment decay rates.
func NewAdam(lr float64) *Adam {
	return &Adam{LearningRate: lr, Beta1: 0.9, Beta2: 0.999, Epsilon: 1e-8}
}

// Steps returns the number of updates applied.
func (a *Adam) Steps() int { return a.step }

// Step applies one update to every parameter from its accumulated gradient.
func (a *Adam) Step(params []*Param) {
	a.step++
	t := float64(a.step)
	lr := a.LearningRate * math.Sqrt(1-math.Pow(a.Beta2, t)) / (1 - math.Pow(a.Beta1, t))
	for _, p := range params {
		for i, g := range p.Grad {
			p.m[i] = a.Beta1*p.m[i] + (1-a.Beta1)*g
			p.v[i] = a.Beta2*p.v[i] + (1-a.Beta2)*g*g
			p.Value[i] -= lr * p.m[i] / (math.Sqrt(p.v[i]) + a.Epsilon)
		}
	}
}
