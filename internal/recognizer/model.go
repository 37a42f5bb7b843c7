// Package recognizer wraps the recognition network with the alphabet,
// label encoding, greedy decoding and checkpoint persistence.
package recognizer

import (
	"errors"
	"fmt"
	"log/slog"
	"math"

	"github.com/MeKo-Tech/gohtr/internal/models"
	"github.com/MeKo-Tech/gohtr/internal/nn"
	"github.com/MeKo-Tech/gohtr/internal/preprocess"
)

// ErrCharsetMismatch reports a checkpoint trained for a different alphabet.
var ErrCharsetMismatch = errors.New("checkpoint alphabet does not match character list")

// Config holds configuration for the Model.
type Config struct {
	ModelDir     string          // Directory holding snapshots (resolved via models.GetModelDir)
	MustRestore  bool            // Fail when no snapshot exists
	Architecture nn.Architecture // Network layout used when Backend is nil
	Backend      BackendFactory  // Optional backend override
}

// DefaultConfig returns a default model configuration.
func DefaultConfig() Config {
	return Config{Architecture: nn.DefaultArchitecture()}
}

// Model owns the alphabet, the network and the checkpoint store. It is not
// safe for concurrent use.
type Model struct {
	charset        *Charset
	backend        Backend
	store          *CheckpointStore
	snapshotID     int
	batchesTrained int
}

// New builds a model for charset. An existing snapshot in the model
// directory is restored; with MustRestore a missing snapshot is an error.
func New(charset *Charset, config Config) (*Model, error) {
	if charset == nil || charset.Size() == 0 {
		return nil, errors.New("charset cannot be empty")
	}
	factory := config.Backend
	if factory == nil {
		factory = NetworkFactory(config.Architecture)
	}
	backend, err := factory(charset.Size())
	if err != nil {
		return nil, fmt.Errorf("failed to build network: %w", err)
	}

	m := &Model{
		charset: charset,
		backend: backend,
		store:   NewCheckpointStore(models.GetModelDir(config.ModelDir)),
	}
	if err := m.restore(config.MustRestore); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *Model) restore(mustRestore bool) error {
	id, path, ok, err := m.store.Latest()
	if err != nil {
		return err
	}
	if !ok {
		if mustRestore {
			return fmt.Errorf("%w in %s", ErrNoCheckpoint, m.store.Dir())
		}
		slog.Info("Init with new values")
		return nil
	}

	slog.Info("Init with stored values", "path", path)
	rc, err := m.store.Open(id)
	if err != nil {
		return err
	}
	defer func() { _ = rc.Close() }()
	if err := m.backend.Load(rc); err != nil {
		if errors.Is(err, nn.ErrClassMismatch) {
			return fmt.Errorf("%w: %w", ErrCharsetMismatch, err)
		}
		return fmt.Errorf("restore %s: %w", path, err)
	}
	m.snapshotID = id
	return nil
}

// Charset returns the model's alphabet.
func (m *Model) Charset() *Charset { return m.charset }

// BatchesTrained returns the number of successful training steps since construction.
func (m *Model) BatchesTrained() int { return m.batchesTrained }

// SnapshotID returns the id of the last saved or restored snapshot, 0 if none.
func (m *Model) SnapshotID() int { return m.snapshotID }

// TrainBatch encodes the batch texts and performs one optimizer step,
// returning the mean loss.
func (m *Model) TrainBatch(batch preprocess.Batch) (float64, error) {
	labels, err := m.charset.EncodeBatch(batch.Texts)
	if err != nil {
		return 0, err
	}
	in, err := batchTensor(batch)
	if err != nil {
		return 0, err
	}
	loss, err := m.backend.TrainStep(in, labels.Rows())
	if err != nil {
		return 0, fmt.Errorf("train step: %w", err)
	}
	m.batchesTrained++
	return loss, nil
}

// Recognition is the decoded text of one batch element.
type Recognition struct {
	Text        string
	Probability float64 // exp(-loss) of the decoded text, 0 when not requested
	Confidence  float64 // mean softmax probability of the emitted characters
}

// Recognize decodes the batch; with calcProbability the decoded labels are
// re-scored against the same logits.
func (m *Model) Recognize(batch preprocess.Batch, calcProbability bool) ([]Recognition, error) {
	in, err := batchTensor(batch)
	if err != nil {
		return nil, err
	}
	logits, err := m.backend.Infer(in)
	if err != nil {
		return nil, fmt.Errorf("infer step: %w", err)
	}

	decoded := DecodeCTCGreedy(logits, m.charset.Blank())
	out := make([]Recognition, len(decoded))
	labels := make([][]int, len(decoded))
	for i, d := range decoded {
		labels[i] = d.Collapsed
		out[i] = Recognition{
			Text:       m.charset.Decode(d.Collapsed),
			Confidence: SequenceConfidence(d.CollapsedProb),
		}
	}

	if calcProbability {
		losses, err := m.backend.Loss(logits, labels)
		if err != nil {
			return nil, fmt.Errorf("re-score decoded text: %w", err)
		}
		for i, l := range losses {
			out[i].Probability = math.Exp(-l)
		}
	}
	return out, nil
}

// InferBatch returns the decoded texts and, when requested, their
// probabilities (nil otherwise).
func (m *Model) InferBatch(batch preprocess.Batch, calcProbability bool) ([]string, []float64, error) {
	recs, err := m.Recognize(batch, calcProbability)
	if err != nil {
		return nil, nil, err
	}
	texts := make([]string, len(recs))
	var probs []float64
	if calcProbability {
		probs = make([]float64, len(recs))
	}
	for i, r := range recs {
		texts[i] = r.Text
		if probs != nil {
			probs[i] = r.Probability
		}
	}
	return texts, probs, nil
}

// Save writes a snapshot under the next id and keeps only that one.
func (m *Model) Save() (string, error) {
	id := m.snapshotID + 1
	path, err := m.store.Save(id, m.backend.Save)
	if err != nil {
		return "", err
	}
	m.snapshotID = id
	slog.Debug("Model saved", "path", path, "snapshot", id)
	return path, nil
}

// batchTensor stacks the width-major images of a padded batch into a
// single-channel tensor.
func batchTensor(batch preprocess.Batch) (*nn.Tensor, error) {
	if len(batch.Images) == 0 {
		return nil, fmt.Errorf("%w: empty batch", nn.ErrShapeMismatch)
	}
	w, h := batch.Images[0].Width, batch.Images[0].Height
	t := nn.NewTensor(len(batch.Images), w, h, 1)
	size := w * h
	for i, im := range batch.Images {
		if im.Width != w || im.Height != h || len(im.Data) != size {
			return nil, fmt.Errorf("%w: image %d is %dx%d, batch is %dx%d", nn.ErrShapeMismatch, i, im.Width, im.Height, w, h)
		}
		copy(t.Data[i*size:(i+1)*size], im.Data)
	}
	return t, nil
}
