package nn

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCTC_KnownValues(t *testing.T) {
	// All scores equal, so every path of length T has probability K^-T.
	tests := []struct {
		name    string
		steps   int
		classes int
		label   []int
		want    float64
	}{
		{"single step single label", 1, 2, []int{0}, math.Log(2)},
		{"single step empty label", 1, 2, nil, math.Log(2)},
		// paths "0 0", "0 -", "- 0"
		{"two steps one label", 2, 2, []int{0}, -math.Log(0.75)},
		// only "0 - 0"
		{"repeat needs separator", 3, 2, []int{0, 0}, math.Log(8)},
		// only "0 1"
		{"two labels exact", 2, 3, []int{0, 1}, 2 * math.Log(3)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			scores := make([]float64, tt.steps*tt.classes)
			loss, _, err := CTC(scores, tt.steps, tt.classes, tt.label, tt.classes-1, false)
			require.NoError(t, err)
			assert.InDelta(t, tt.want, loss, 1e-9)
		})
	}
}

func TestCTC_Infeasible(t *testing.T) {
	scores := make([]float64, 2*2)
	_, _, err := CTC(scores, 2, 2, []int{0, 0}, 1, false)
	require.ErrorIs(t, err, ErrInfeasibleAlignment)

	_, _, err = CTC(scores, 2, 2, []int{0, 0, 0}, 1, true)
	require.ErrorIs(t, err, ErrInfeasibleAlignment)
}

func TestCTC_InvalidLabel(t *testing.T) {
	scores := make([]float64, 4)
	_, _, err := CTC(scores, 2, 2, []int{1}, 1, false)
	require.ErrorIs(t, err, ErrShapeMismatch, "blank inside label")
	_, _, err = CTC(scores, 2, 2, []int{5}, 1, false)
	require.ErrorIs(t, err, ErrShapeMismatch)
	_, _, err = CTC(scores, 3, 2, []int{0}, 1, false)
	require.ErrorIs(t, err, ErrShapeMismatch)
}

func TestCTC_GradientMatchesFiniteDifferences(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	const steps, classes = 5, 4
	label := []int{0, 2, 2}
	scores := make([]float64, steps*classes)
	for i := range scores {
		scores[i] = rng.NormFloat64()
	}

	loss, grad, err := CTC(scores, steps, classes, label, classes-1, true)
	require.NoError(t, err)
	require.Len(t, grad, len(scores))
	assert.Positive(t, loss)

	const h = 1e-6
	for i := range scores {
		orig := scores[i]
		scores[i] = orig + h
		lp, _, err := CTC(scores, steps, classes, label, classes-1, false)
		require.NoError(t, err)
		scores[i] = orig - h
		lm, _, err := CTC(scores, steps, classes, label, classes-1, false)
		require.NoError(t, err)
		scores[i] = orig
		assert.InDelta(t, (lp-lm)/(2*h), grad[i], 1e-5, "score %d", i)
	}
}

func TestCTC_GradientRowsSumToZero(t *testing.T) {
	scores := []float64{0.3, -1, 2, 0.5, 0.1, 0.1, -0.4, 1.2, 0}
	_, grad, err := CTC(scores, 3, 3, []int{1}, 2, true)
	require.NoError(t, err)
	for s := range 3 {
		var sum float64
		for k := range 3 {
			sum += grad[s*3+k]
		}
		assert.InDelta(t, 0, sum, 1e-9)
	}
}

func TestMinimumSteps(t *testing.T) {
	assert.Equal(t, 0, MinimumSteps(nil))
	assert.Equal(t, 3, MinimumSteps([]int{1, 2, 3}))
	assert.Equal(t, 6, MinimumSteps([]int{1, 1, 2, 2}))
}

func TestLogSoftmax(t *testing.T) {
	dst := make([]float64, 3)
	LogSoftmax(dst, []float64{1000, 1000, 1000})
	for _, v := range dst {
		assert.InDelta(t, -math.Log(3), v, 1e-9)
	}
}
