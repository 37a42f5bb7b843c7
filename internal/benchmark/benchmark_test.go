package benchmark

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/MeKo-Tech/gohtr/internal/nn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSuite_RunAll(t *testing.T) {
	s := NewSuite()
	calls := 0
	s.Add("count", 4, func() error {
		calls++
		return nil
	})
	s.Add("fail", 1, func() error { return errors.New("boom") })

	results := s.RunAll(3)
	require.Len(t, results, 2)
	assert.Equal(t, 3, calls)
	assert.Len(t, results[0].Durations, 3)
	assert.NoError(t, results[0].Error)
	assert.Empty(t, results[1].Durations)
	assert.EqualError(t, results[1].Error, "boom")
	assert.Equal(t, results, s.Results())
	assert.Contains(t, results[1].String(), "ERROR - boom")
}

func TestSuite_RunUnknown(t *testing.T) {
	res := NewSuite().Run("missing", 1)
	require.Error(t, res.Error)
}

func TestResult_Stats(t *testing.T) {
	r := Result{Items: 10, Durations: []time.Duration{time.Second, 3 * time.Second}}
	assert.Equal(t, 4*time.Second, r.Total())
	mean, std := r.MeanStd()
	assert.Equal(t, 2*time.Second, mean)
	assert.InDelta(t, float64(1414*time.Millisecond), float64(std), float64(time.Millisecond))
	assert.InDelta(t, 5.0, r.Throughput(), 1e-9)

	var empty Result
	m, s := empty.MeanStd()
	assert.Zero(t, m)
	assert.Zero(t, s)
	assert.Zero(t, empty.Throughput())
}

func TestSuite_WriteOutputs(t *testing.T) {
	s := NewSuite()
	s.Add("noop", 2, func() error { return nil })
	s.RunAll(2)

	var text bytes.Buffer
	s.WriteResults(&text)
	assert.Contains(t, text.String(), "Benchmark Results:")
	assert.Contains(t, text.String(), "noop: 2 iterations")

	var csv bytes.Buffer
	require.NoError(t, s.WriteCSV(&csv))
	lines := strings.Split(strings.TrimSpace(csv.String()), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[1], "noop,2,2,"))
}

func TestModelBenchmark_Tiny(t *testing.T) {
	cfg := ModelConfig{
		Architecture: nn.Architecture{
			Height:       8,
			Kernels:      []int{3, 3},
			Features:     []int{2, 4},
			Pools:        []nn.Pool{{W: 2, H: 2}, {W: 1, H: 4}},
			Hidden:       4,
			Layers:       1,
			LearningRate: 0.01,
			Seed:         1,
		},
		BatchSize: 2,
		Width:     32,
		Padding:   4,
		Words:     []string{"ab", "ba"},
	}
	mb, err := NewModelBenchmark(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = mb.Close() })

	for _, r := range mb.RunAll(1) {
		assert.NoError(t, r.Error, r.Name)
		assert.Len(t, r.Durations, 1, r.Name)
	}

	_, err = NewModelBenchmark(ModelConfig{BatchSize: 0})
	require.Error(t, err)
}

func TestModelBenchmark_DefaultWordsShareLetters(t *testing.T) {
	cfg := ModelConfig{
		Architecture: nn.Architecture{
			Height:       8,
			Kernels:      []int{3},
			Features:     []int{2},
			Pools:        []nn.Pool{{W: 4, H: 8}},
			Hidden:       2,
			Layers:       1,
			LearningRate: 0.01,
			Seed:         1,
		},
		BatchSize: len(defaultWords),
		Width:     64,
		Padding:   4,
	}
	mb, err := NewModelBenchmark(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = mb.Close() })

	mb2, err := NewModelBenchmark(ModelConfig{
		Architecture: cfg.Architecture,
		BatchSize:    3,
		Width:        32,
		Words:        []string{"the", "then", "hen"},
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = mb2.Close() })
}
