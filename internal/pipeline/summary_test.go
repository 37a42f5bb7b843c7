package pipeline

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSummary_WriteFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "model", "summary.json")
	var s Summary
	s.Append(12.5, 0.5, 0.25)
	require.NoError(t, s.WriteFile(path))
	s.Append(10, 0.25, 0.5)
	require.NoError(t, s.WriteFile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var raw map[string][]float64
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.Equal(t, []float64{12.5, 10}, raw["averageTrainLoss"])
	assert.Equal(t, []float64{0.5, 0.25}, raw["charErrorRates"])
	assert.Equal(t, []float64{0.25, 0.5}, raw["wordAccuracies"])

	_, err = os.Stat(path + ".tmp")
	assert.True(t, os.IsNotExist(err))

	read, err := ReadSummary(path)
	require.NoError(t, err)
	assert.Equal(t, 2, read.Epochs())
}

func TestReadSummary_Missing(t *testing.T) {
	_, err := ReadSummary(filepath.Join(t.TempDir(), "nope.json"))
	require.Error(t, err)
}
