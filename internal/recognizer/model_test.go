package recognizer

import (
	"bytes"
	"errors"
	"io"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/MeKo-Tech/gohtr/internal/models"
	"github.com/MeKo-Tech/gohtr/internal/nn"
	"github.com/MeKo-Tech/gohtr/internal/preprocess"
	"github.com/MeKo-Tech/gohtr/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeBackend returns canned logits and records calls.
type fakeBackend struct {
	logits     nn.Logits
	loss       float64
	trainCalls int
	lastLabels [][]int
	state      string
}

func (f *fakeBackend) TrainStep(_ *nn.Tensor, labels [][]int) (float64, error) {
	f.trainCalls++
	f.lastLabels = labels
	return f.loss, nil
}

func (f *fakeBackend) Infer(in *nn.Tensor) (nn.Logits, error) {
	if in.N != f.logits.N {
		return nn.Logits{}, nn.ErrShapeMismatch
	}
	return f.logits, nil
}

func (f *fakeBackend) Loss(_ nn.Logits, labels [][]int) ([]float64, error) {
	out := make([]float64, len(labels))
	for i := range out {
		out[i] = f.loss
	}
	return out, nil
}

func (f *fakeBackend) Save(w io.Writer) error {
	_, err := io.WriteString(w, f.state)
	return err
}

func (f *fakeBackend) Load(r io.Reader) error {
	data, err := io.ReadAll(r)
	f.state = string(data)
	return err
}

func fakeFactory(f *fakeBackend) BackendFactory {
	return func(int) (Backend, error) { return f, nil }
}

func testBatch(n, w, h int, texts ...string) preprocess.Batch {
	b := preprocess.Batch{Texts: texts, Size: n}
	for range n {
		b.Images = append(b.Images, preprocess.Image{Width: w, Height: h, Data: make([]float64, w*h), Background: 0.5})
	}
	return b
}

func mustCharset(t *testing.T, chars string) *Charset {
	t.Helper()
	cs, err := NewCharset([]rune(chars))
	require.NoError(t, err)
	return cs
}

func TestNew_MustRestoreWithoutCheckpoint(t *testing.T) {
	dir := t.TempDir()
	_, err := New(mustCharset(t, "ab"), Config{ModelDir: dir, MustRestore: true, Backend: fakeFactory(&fakeBackend{})})
	require.ErrorIs(t, err, ErrNoCheckpoint)
	assert.Contains(t, err.Error(), dir)
}

func TestModel_SaveKeepsOnlyLatest(t *testing.T) {
	dir := t.TempDir()
	fb := &fakeBackend{state: "v1"}
	m, err := New(mustCharset(t, "ab"), Config{ModelDir: dir, Backend: fakeFactory(fb)})
	require.NoError(t, err)
	assert.Equal(t, 0, m.SnapshotID())

	p1, err := m.Save()
	require.NoError(t, err)
	assert.Equal(t, models.GetSnapshotPath(dir, 1), p1)
	fb.state = "v2"
	p2, err := m.Save()
	require.NoError(t, err)
	assert.Equal(t, models.GetSnapshotPath(dir, 2), p2)

	assert.False(t, testutil.FileExists(p1))
	assert.True(t, testutil.FileExists(p2))
	assert.True(t, testutil.FileExists(models.GetCheckpointIndexPath(dir)))

	// A restored model continues numbering after the restored id.
	fb2 := &fakeBackend{}
	m2, err := New(mustCharset(t, "ab"), Config{ModelDir: dir, MustRestore: true, Backend: fakeFactory(fb2)})
	require.NoError(t, err)
	assert.Equal(t, "v2", fb2.state)
	assert.Equal(t, 2, m2.SnapshotID())
	p3, err := m2.Save()
	require.NoError(t, err)
	assert.Equal(t, models.GetSnapshotPath(dir, 3), p3)
	assert.False(t, testutil.FileExists(p2))
}

func TestCheckpointStore_MissingSnapshotIsNoCheckpoint(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(models.GetCheckpointIndexPath(dir), []byte(`{"latest": 7}`), 0o600))
	_, _, ok, err := NewCheckpointStore(dir).Latest()
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, os.WriteFile(models.GetCheckpointIndexPath(dir), []byte(`not json`), 0o600))
	_, _, _, err = NewCheckpointStore(dir).Latest()
	require.Error(t, err)
}

func TestModel_TrainBatch(t *testing.T) {
	fb := &fakeBackend{loss: 1.25}
	m, err := New(mustCharset(t, " ab"), Config{ModelDir: t.TempDir(), Backend: fakeFactory(fb)})
	require.NoError(t, err)

	loss, err := m.TrainBatch(testBatch(2, 8, 4, "ab", "b a"))
	require.NoError(t, err)
	assert.InDelta(t, 1.25, loss, 0)
	assert.Equal(t, [][]int{{1, 2}, {2, 0, 1}}, fb.lastLabels)
	assert.Equal(t, 1, m.BatchesTrained())
}

func TestModel_TrainBatchUnknownCharacter(t *testing.T) {
	fb := &fakeBackend{}
	m, err := New(mustCharset(t, "ab"), Config{ModelDir: t.TempDir(), Backend: fakeFactory(fb)})
	require.NoError(t, err)

	_, err = m.TrainBatch(testBatch(1, 8, 4, "abc"))
	require.ErrorIs(t, err, ErrUnknownCharacter)
	assert.False(t, errors.Is(err, nn.ErrShapeMismatch))
	assert.Equal(t, 0, fb.trainCalls)
	assert.Equal(t, 0, m.BatchesTrained())
}

func TestModel_InferBatch(t *testing.T) {
	fb := &fakeBackend{
		loss: 0.5,
		logits: nn.Logits{N: 1, T: 4, K: 3, Data: []float64{
			5, 0, 0,
			5, 0, 0,
			0, 0, 5,
			0, 5, 0,
		}},
	}
	m, err := New(mustCharset(t, "ab"), Config{ModelDir: t.TempDir(), Backend: fakeFactory(fb)})
	require.NoError(t, err)

	texts, probs, err := m.InferBatch(testBatch(1, 8, 4), false)
	require.NoError(t, err)
	assert.Equal(t, []string{"ab"}, texts)
	assert.Nil(t, probs)

	texts, probs, err = m.InferBatch(testBatch(1, 8, 4), true)
	require.NoError(t, err)
	assert.Equal(t, []string{"ab"}, texts)
	require.Len(t, probs, 1)
	assert.InDelta(t, math.Exp(-0.5), probs[0], 1e-12)

	recs, err := m.Recognize(testBatch(1, 8, 4), false)
	require.NoError(t, err)
	assert.Greater(t, recs[0].Confidence, 0.9)
}

func TestModel_RejectsRaggedBatch(t *testing.T) {
	m, err := New(mustCharset(t, "ab"), Config{ModelDir: t.TempDir(), Backend: fakeFactory(&fakeBackend{})})
	require.NoError(t, err)

	b := testBatch(2, 8, 4, "a", "b")
	b.Images[1] = preprocess.Image{Width: 12, Height: 4, Data: make([]float64, 48)}
	_, err = m.TrainBatch(b)
	require.ErrorIs(t, err, nn.ErrShapeMismatch)

	_, _, err = m.InferBatch(preprocess.Batch{}, false)
	require.ErrorIs(t, err, nn.ErrShapeMismatch)
}

func tinyArchitecture() nn.Architecture {
	return nn.Architecture{
		Height:       4,
		Kernels:      []int{3, 3},
		Features:     []int{2, 3},
		Pools:        []nn.Pool{{W: 2, H: 2}, {W: 1, H: 2}},
		Hidden:       3,
		Layers:       1,
		LearningRate: 0.01,
		Seed:         1,
	}
}

func TestModel_NetworkBackendRoundTrip(t *testing.T) {
	dir := t.TempDir()
	m, err := New(mustCharset(t, "ab"), Config{ModelDir: dir, Architecture: tinyArchitecture()})
	require.NoError(t, err)

	batch := testBatch(2, 8, 4, "ab", "b")
	for i := range batch.Images {
		for j := range batch.Images[i].Data {
			batch.Images[i].Data[j] = float64((i+j)%5)/5 - 0.5
		}
	}
	loss, err := m.TrainBatch(batch)
	require.NoError(t, err)
	assert.Positive(t, loss)

	texts, probs, err := m.InferBatch(batch, true)
	require.NoError(t, err)
	require.Len(t, texts, 2)
	for _, p := range probs {
		assert.Greater(t, p, 0.0)
		assert.LessOrEqual(t, p, 1.0)
	}

	_, err = m.Save()
	require.NoError(t, err)

	restored, err := New(mustCharset(t, "ab"), Config{ModelDir: dir, MustRestore: true, Architecture: tinyArchitecture()})
	require.NoError(t, err)
	again, _, err := restored.InferBatch(batch, false)
	require.NoError(t, err)
	assert.Equal(t, texts, again)

	_, err = New(mustCharset(t, "abc"), Config{ModelDir: dir, Architecture: tinyArchitecture()})
	require.ErrorIs(t, err, ErrCharsetMismatch)

	matches, err := filepath.Glob(filepath.Join(dir, models.SnapshotPrefix+"*"))
	require.NoError(t, err)
	assert.Len(t, matches, 1)

	var buf bytes.Buffer
	require.NoError(t, restored.backend.Save(&buf))
	assert.Positive(t, buf.Len())
}
