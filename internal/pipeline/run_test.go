package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/MeKo-Tech/gohtr/internal/models"
	"github.com/MeKo-Tech/gohtr/internal/nn"
	"github.com/MeKo-Tech/gohtr/internal/recognizer"
	"github.com/MeKo-Tech/gohtr/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var runWords = []string{
	"a", "b", "ab", "ba", "aa", "bb", "abc", "cab", "bca", "c",
	"ca", "ac", "cc", "bc", "cb", "acb", "bac", "abb", "caa", "bcc",
}

func tinyOptions(t *testing.T) Options {
	t.Helper()
	opts := DefaultOptions()
	opts.DataDir = testutil.CreateDataset(t, testutil.WordEntries(runWords))
	opts.ModelDir = t.TempDir()
	opts.BatchSize = 4
	opts.InferencePadding = 4
	opts.Architecture = nn.Architecture{
		Height:       8,
		Kernels:      []int{3, 3},
		Features:     []int{2, 4},
		Pools:        []nn.Pool{{W: 2, H: 2}, {W: 1, H: 4}},
		Hidden:       4,
		Layers:       1,
		LearningRate: 0.01,
		Seed:         3,
	}
	opts.Trainer = Config{
		EarlyStopping: 1,
		MaxEpochs:     1,
		ImageWidth:    32,
		ImageHeight:   8,
		Seed:          5,
	}
	return opts
}

func TestRunTrainValidateInfer(t *testing.T) {
	opts := tinyOptions(t)

	opts.Mode = ModeTrain
	out, err := Run(context.Background(), opts)
	require.NoError(t, err)
	require.NotNil(t, out.Training)
	assert.Equal(t, 1, out.Training.Epochs)
	assert.Equal(t, 1, out.Training.Snapshots)
	assert.Equal(t, StopMaxEpochs, out.Training.Reason)

	charList, err := os.ReadFile(models.GetCharListPath(opts.ModelDir))
	require.NoError(t, err)
	assert.Equal(t, " abc", string(charList))

	corpus, err := os.ReadFile(models.GetCorpusPath(opts.ModelDir))
	require.NoError(t, err)
	assert.Len(t, strings.Split(string(corpus), " "), len(runWords))

	summary, err := ReadSummary(models.GetSummaryPath(opts.ModelDir))
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Epochs())
	assert.FileExists(t, models.GetSnapshotPath(opts.ModelDir, 1))

	opts.Mode = ModeValidate
	out, err = Run(context.Background(), opts)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, out.CharErrorRate, 0.0)
	assert.GreaterOrEqual(t, out.WordAccuracy, 0.0)
	assert.LessOrEqual(t, out.WordAccuracy, 1.0)

	opts.Mode = ModeInfer
	opts.ImagePath = filepath.Join(t.TempDir(), "word.png")
	testutil.SaveImage(t, testutil.GenerateWordImage("cab"), opts.ImagePath)
	out, err = Run(context.Background(), opts)
	require.NoError(t, err)
	require.NotNil(t, out.Inference)
	for _, r := range out.Inference.Text {
		assert.Contains(t, " abc", string(r))
	}
	assert.Greater(t, out.Inference.Probability, 0.0)
	assert.LessOrEqual(t, out.Inference.Probability, 1.0)
}

func TestRunTrain_ContinuesSnapshotIDs(t *testing.T) {
	opts := tinyOptions(t)
	_, err := RunTrain(context.Background(), opts)
	require.NoError(t, err)
	_, err = RunTrain(context.Background(), opts)
	require.NoError(t, err)

	assert.FileExists(t, models.GetSnapshotPath(opts.ModelDir, 2))
	assert.NoFileExists(t, models.GetSnapshotPath(opts.ModelDir, 1))
}

func TestRunValidate_RequiresSnapshot(t *testing.T) {
	opts := tinyOptions(t)
	charset, err := recognizer.NewCharset([]rune(" abc"))
	require.NoError(t, err)
	require.NoError(t, charset.WriteFile(models.GetCharListPath(opts.ModelDir)))

	_, _, err = RunValidate(context.Background(), opts)
	require.ErrorIs(t, err, recognizer.ErrNoCheckpoint)
}

func TestRunInfer_RequiresCharList(t *testing.T) {
	opts := tinyOptions(t)
	opts.ImagePath = filepath.Join(t.TempDir(), "word.png")
	_, err := RunInfer(opts)
	require.Error(t, err)
}

func TestRun_UnknownMode(t *testing.T) {
	_, err := Run(context.Background(), Options{Mode: "dance"})
	require.Error(t, err)
}
