package nn

import (
	"fmt"
	"math"
)

func logAdd(a, b float64) float64 {
	if math.IsInf(a, -1) {
		return b
	}
	if math.IsInf(b, -1) {
		return a
	}
	if a < b {
		a, b = b, a
	}
	return a + math.Log1p(math.Exp(b-a))
}

// LogSoftmax writes the log-probabilities of scores into dst.
func LogSoftmax(dst, scores []float64) {
	m := math.Inf(-1)
	for _, v := range scores {
		m = math.Max(m, v)
	}
	var sum float64
	for _, v := range scores {
		sum += math.Exp(v - m)
	}
	lse := m + math.Log(sum)
	for i, v := range scores {
		dst[i] = v - lse
	}
}

// MinimumSteps returns the number of time steps needed to emit label with
// CTC: one per label plus a separating blank between repeated labels.
func MinimumSteps(label []int) int {
	n := len(label)
	for i := 1; i < len(label); i++ {
		if label[i] == label[i-1] {
			n++
		}
	}
	return n
}

// CTC computes the connectionist temporal classification loss
// -log p(label | scores) for one sequence of T x K unnormalized scores with
// the given blank class. Repeated labels must be separated by a blank. When
// wantGrad is set it also returns the gradient of the loss with respect to
// the scores.
func CTC(scores []float64, steps, classes int, label []int, blank int, wantGrad bool) (float64, []float64, error) {
	if steps <= 0 || classes <= 0 || len(scores) != steps*classes {
		return 0, nil, fmt.Errorf("%w: %d scores for %d steps x %d classes", ErrShapeMismatch, len(scores), steps, classes)
	}
	for _, c := range label {
		if c < 0 || c >= classes || c == blank {
			return 0, nil, fmt.Errorf("%w: label class %d outside [0,%d) or blank", ErrShapeMismatch, c, classes)
		}
	}
	if need := MinimumSteps(label); need > steps {
		return 0, nil, fmt.Errorf("%w: label needs %d steps, input has %d", ErrInfeasibleAlignment, need, steps)
	}

	lp := make([]float64, len(scores))
	for t := range steps {
		LogSoftmax(lp[t*classes:(t+1)*classes], scores[t*classes:(t+1)*classes])
	}

	// Extended label: blanks around and between every symbol.
	S := 2*len(label) + 1
	ext := make([]int, S)
	for s := range ext {
		if s%2 == 0 {
			ext[s] = blank
		} else {
			ext[s] = label[s/2]
		}
	}
	canSkip := func(s int) bool { return s > 1 && ext[s] != blank && ext[s] != ext[s-2] }

	negInf := math.Inf(-1)
	alpha := make([]float64, steps*S)
	for i := range alpha {
		alpha[i] = negInf
	}
	alpha[0] = lp[ext[0]]
	if S > 1 {
		alpha[1] = lp[ext[1]]
	}
	for t := 1; t < steps; t++ {
		prev, cur := (t-1)*S, t*S
		for s := range S {
			a := alpha[prev+s]
			if s > 0 {
				a = logAdd(a, alpha[prev+s-1])
			}
			if canSkip(s) {
				a = logAdd(a, alpha[prev+s-2])
			}
			alpha[cur+s] = a + lp[t*classes+ext[s]]
		}
	}
	last := (steps - 1) * S
	logZ := alpha[last+S-1]
	if S > 1 {
		logZ = logAdd(logZ, alpha[last+S-2])
	}
	if math.IsInf(logZ, -1) || math.IsNaN(logZ) {
		return 0, nil, fmt.Errorf("%w: zero path probability", ErrInfeasibleAlignment)
	}
	if !wantGrad {
		return -logZ, nil, nil
	}

	// beta excludes the emission at its own step so alpha*beta sums to Z.
	beta := make([]float64, steps*S)
	for i := range beta {
		beta[i] = negInf
	}
	beta[last+S-1] = 0
	if S > 1 {
		beta[last+S-2] = 0
	}
	for t := steps - 2; t >= 0; t-- {
		cur, next := t*S, (t+1)*S
		emit := (t + 1) * classes
		for s := range S {
			b := beta[next+s] + lp[emit+ext[s]]
			if s+1 < S {
				b = logAdd(b, beta[next+s+1]+lp[emit+ext[s+1]])
			}
			if s+2 < S && canSkip(s+2) {
				b = logAdd(b, beta[next+s+2]+lp[emit+ext[s+2]])
			}
			beta[cur+s] = b
		}
	}

	grad := make([]float64, len(scores))
	for t := range steps {
		row := grad[t*classes : (t+1)*classes]
		for k := range row {
			row[k] = math.Exp(lp[t*classes+k])
		}
		for s := range S {
			g := alpha[t*S+s] + beta[t*S+s] - logZ
			if !math.IsInf(g, -1) {
				row[ext[s]] -= math.Exp(g)
			}
		}
	}
	return -logZ, grad, nil
}
