package recognizer

import (
	"math"

	"github.com/MeKo-Tech/gohtr/internal/nn"
)

// DecodedSequence holds greedy CTC-decoded indices and per-step probabilities.
type DecodedSequence struct {
	Indices       []int
	Probs         []float64
	Collapsed     []int
	CollapsedProb []float64
}

// argmax returns index of max value and the value.
func argmax(v []float64) (int, float64) {
	if len(v) == 0 {
		return -1, 0
	}
	idx := 0
	maxVal := v[0]
	for i := 1; i < len(v); i++ {
		if v[i] > maxVal {
			maxVal = v[i]
			idx = i
		}
	}
	return idx, maxVal
}

// softmaxProbOfIndex computes the softmax probability of v[idx] among v.
func softmaxProbOfIndex(v []float64, idx int) float64 {
	if len(v) == 0 || idx < 0 || idx >= len(v) {
		return 0
	}
	m := v[0]
	for _, x := range v[1:] {
		m = math.Max(m, x)
	}
	var denom float64
	for _, x := range v {
		denom += math.Exp(x - m)
	}
	if denom == 0 {
		return 0
	}
	return math.Exp(v[idx]-m) / denom
}

// CTCCollapse removes repeated consecutive indices and blanks, returning collapsed sequence and probs.
func CTCCollapse(indices []int, probs []float64, blank int) ([]int, []float64) {
	outIdx := make([]int, 0, len(indices))
	outProb := make([]float64, 0, len(probs))
	prev := -1
	for i, idx := range indices {
		if idx == blank { // drop blanks
			prev = idx
			continue
		}
		if idx == prev { // collapse repeats
			continue
		}
		outIdx = append(outIdx, idx)
		if i < len(probs) {
			outProb = append(outProb, probs[i])
		} else {
			outProb = append(outProb, 0)
		}
		prev = idx
	}
	return outIdx, outProb
}

// DecodeCTCGreedy decodes every batch element by taking the best class per
// time step, then collapsing repeats and dropping blanks.
func DecodeCTCGreedy(logits nn.Logits, blank int) []DecodedSequence {
	if logits.N <= 0 || logits.T <= 0 || logits.K <= 0 {
		return nil
	}
	out := make([]DecodedSequence, logits.N)
	for b := range logits.N {
		indices := make([]int, logits.T)
		probs := make([]float64, logits.T)
		for t := range logits.T {
			scores := logits.Step(b, t)
			idx, _ := argmax(scores)
			indices[t] = idx
			probs[t] = softmaxProbOfIndex(scores, idx)
		}
		collIdx, collProb := CTCCollapse(indices, probs, blank)
		out[b] = DecodedSequence{Indices: indices, Probs: probs, Collapsed: collIdx, CollapsedProb: collProb}
	}
	return out
}

// SequenceConfidence returns the average of per-character probabilities; 0 if empty.
func SequenceConfidence(charProbs []float64) float64 {
	if len(charProbs) == 0 {
		return 0
	}
	var s float64
	for _, p := range charProbs {
		s += p
	}
	return s / float64(len(charProbs))
}
