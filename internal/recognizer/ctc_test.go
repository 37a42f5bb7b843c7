package recognizer

import (
	"testing"

	"github.com/MeKo-Tech/gohtr/internal/nn"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
)

func TestCTCCollapse(t *testing.T) {
	// indices with repeats and blanks(0): 1,1,0,2,2,2,3,0,3 -> 1,2,3,3
	idx := []int{1, 1, 0, 2, 2, 2, 3, 0, 3}
	pr := []float64{.8, .7, .1, .9, .85, .8, .6, .1, .5}
	outIdx, outPr := CTCCollapse(idx, pr, 0)
	assert.Equal(t, []int{1, 2, 3, 3}, outIdx)
	assert.Equal(t, []float64{.8, .9, .6, .5}, outPr)
}

func TestDecodeCTCGreedy(t *testing.T) {
	// One batch element, T=4, K=4 with blank=3.
	logits := nn.Logits{N: 1, T: 4, K: 4, Data: []float64{
		0.9, 0.1, 0.0, 0.0,
		0.8, 0.2, 0.0, 0.0,
		0.05, 0.03, 0.02, 0.9,
		0.2, 0.1, 0.7, 0.0,
	}}
	dec := DecodeCTCGreedy(logits, 3)
	if assert.Len(t, dec, 1) {
		d := dec[0]
		assert.Equal(t, []int{0, 0, 3, 2}, d.Indices)
		assert.Equal(t, []int{0, 2}, d.Collapsed)
		assert.Len(t, d.CollapsedProb, 2)
		assert.Greater(t, d.Probs[0], 0.25)
		conf := SequenceConfidence(d.CollapsedProb)
		assert.InDelta(t, (d.CollapsedProb[0]+d.CollapsedProb[1])/2, conf, 1e-12)
	}
	assert.Nil(t, DecodeCTCGreedy(nn.Logits{}, 0))
}

func TestSoftmaxProbOfIndex(t *testing.T) {
	assert.InDelta(t, 0.5, softmaxProbOfIndex([]float64{1, 1}, 0), 1e-12)
	assert.InDelta(t, 0, softmaxProbOfIndex(nil, 0), 0)
	assert.InDelta(t, 0, softmaxProbOfIndex([]float64{1}, 2), 0)
}

func TestDecodeCTCGreedy_OutputLengthBound(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("greedy CTC output length <= number of time steps", prop.ForAll(
		func(steps, classes, seed int) bool {
			data := make([]float64, steps*classes)
			for i := range data {
				data[i] = float64((i*seed)%17) / 17
			}
			dec := DecodeCTCGreedy(nn.Logits{N: 1, T: steps, K: classes, Data: data}, classes-1)
			if len(dec) != 1 || len(dec[0].Indices) != steps {
				return false
			}
			if len(dec[0].Collapsed) > steps {
				return false
			}
			for _, c := range dec[0].Collapsed {
				if c == classes-1 {
					return false
				}
			}
			return nn.MinimumSteps(dec[0].Collapsed) <= steps
		},
		gen.IntRange(1, 60),
		gen.IntRange(2, 30),
		gen.IntRange(1, 1000),
	))

	properties.TestingRun(t)
}
