// Package pipeline drives training, validation and single-image inference of
// the handwriting recognizer.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/MeKo-Tech/gohtr/internal/common"
	"github.com/MeKo-Tech/gohtr/internal/dataset"
	"github.com/MeKo-Tech/gohtr/internal/preprocess"
	"gonum.org/v1/gonum/stat"
)

// BatchSource yields raw batches from a training and a validation partition.
// *dataset.Loader implements it.
type BatchSource interface {
	TrainSet()
	ValidationSet()
	HasNext() bool
	IteratorInfo() (int, int)
	Next() dataset.Batch
}

// Recognizer is the model surface the trainer drives.
// *recognizer.Model implements it.
type Recognizer interface {
	TrainBatch(batch preprocess.Batch) (float64, error)
	InferBatch(batch preprocess.Batch, calcProbability bool) ([]string, []float64, error)
	Save() (string, error)
}

// Config holds configuration for the Trainer.
type Config struct {
	EarlyStopping int    // Epochs without improvement before training stops
	MaxEpochs     int    // Upper bound on epochs, 0 = unbounded
	SummaryPath   string // Where the per-epoch summary is written; empty disables it
	ImageWidth    int    // Fixed training/validation image width
	ImageHeight   int    // Image height, must match the network input height
	Augment       bool   // Augment training images
	Seed          int64  // Augmentation seed, 0 = time based

	Progress ProgressCallback // Optional batch progress reporting
	Metrics  *Metrics         // Optional Prometheus metrics
}

// DefaultConfig returns a default trainer configuration.
func DefaultConfig() Config {
	return Config{
		EarlyStopping: 25,
		ImageWidth:    256,
		ImageHeight:   32,
		Augment:       true,
	}
}

// Result describes a finished training run.
type Result struct {
	Epochs            int
	BestCharErrorRate float64
	Snapshots         int
	Reason            StopReason
	Summary           *Summary
}

// Trainer runs the epoch loop: train on every full batch, validate, record
// the summary, save on improvement and stop when improvement stalls.
// A Trainer is not safe for concurrent use.
type Trainer struct {
	config    Config
	model     Recognizer
	source    BatchSource
	trainPrep *preprocess.Preprocessor
	validPrep *preprocess.Preprocessor
	progress  ProgressCallback
}

// NewTrainer creates a trainer for model fed from source.
func NewTrainer(model Recognizer, source BatchSource, config Config) (*Trainer, error) {
	if model == nil {
		return nil, errors.New("model cannot be nil")
	}
	if source == nil {
		return nil, errors.New("batch source cannot be nil")
	}
	if config.EarlyStopping < 1 {
		return nil, fmt.Errorf("invalid early stopping: %d (must be >= 1)", config.EarlyStopping)
	}
	if config.MaxEpochs < 0 {
		return nil, fmt.Errorf("invalid max epochs: %d", config.MaxEpochs)
	}

	base := preprocess.DefaultConfig()
	base.Width = config.ImageWidth
	base.Height = config.ImageHeight

	validPrep, err := preprocess.New(base)
	if err != nil {
		return nil, fmt.Errorf("validation preprocessor: %w", err)
	}
	trainCfg := base
	trainCfg.Augment = config.Augment
	trainCfg.Seed = config.Seed
	trainPrep, err := preprocess.New(trainCfg)
	if err != nil {
		return nil, fmt.Errorf("training preprocessor: %w", err)
	}

	progress := config.Progress
	if progress == nil {
		progress = NoOpProgressCallback{}
	}
	return &Trainer{
		config:    config,
		model:     model,
		source:    source,
		trainPrep: trainPrep,
		validPrep: validPrep,
		progress:  progress,
	}, nil
}

// Train runs epochs until the stopping policy ends the run. On context
// cancellation the partial result is returned along with the context error.
func (t *Trainer) Train(ctx context.Context) (*Result, error) {
	policy := NewEarlyStopping(t.config.EarlyStopping, t.config.MaxEpochs)
	result := &Result{Summary: &Summary{}}

	for {
		epoch := policy.Epoch + 1
		timer := common.NewNamedTimer(fmt.Sprintf("epoch %d", epoch))
		slog.Info("Epoch started", "epoch", epoch)

		avgLoss, err := t.trainEpoch(ctx, epoch)
		if err != nil {
			return t.finish(result, policy, reasonFor(err)), err
		}

		cer, wa, err := t.validate(ctx, epoch)
		if err != nil {
			return t.finish(result, policy, reasonFor(err)), err
		}

		result.Summary.Append(avgLoss, cer, wa)
		if t.config.SummaryPath != "" {
			if err := result.Summary.WriteFile(t.config.SummaryPath); err != nil {
				return t.finish(result, policy, StopNone), err
			}
		}

		improved, stop := policy.Observe(cer)
		if improved {
			path, err := t.model.Save()
			if err != nil {
				return t.finish(result, policy, StopNone), fmt.Errorf("save model: %w", err)
			}
			result.Snapshots++
			t.config.Metrics.checkpointSaved()
			slog.Info("Character error rate improved, model saved", "epoch", epoch, "cer", cer, "path", path)
		} else {
			slog.Info("Character error rate not improved", "epoch", epoch, "cer", cer,
				"best", policy.Best, "stall", policy.Stall)
		}
		t.config.Metrics.observeEpoch(policy)
		timer.Stop()
		slog.Info("Epoch finished", "epoch", epoch, "avg_loss", avgLoss, "cer", cer,
			"word_accuracy", wa, "timer", timer)

		switch stop {
		case StopEarlyStopping:
			slog.Info("No more improvement, training stopped", "epochs_without_improvement", policy.Stall)
			return t.finish(result, policy, stop), nil
		case StopMaxEpochs:
			slog.Info("Maximum number of epochs reached, training stopped", "epochs", policy.Epoch)
			return t.finish(result, policy, stop), nil
		}
	}
}

func reasonFor(err error) StopReason {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return StopCancelled
	}
	return StopNone
}

func (t *Trainer) finish(result *Result, policy *EarlyStopping, reason StopReason) *Result {
	result.Epochs = policy.Epoch
	result.BestCharErrorRate = policy.Best
	result.Reason = reason
	return result
}

// trainEpoch trains on every full batch of the training partition and
// returns the mean batch loss, 0 when there was no full batch.
func (t *Trainer) trainEpoch(ctx context.Context, epoch int) (float64, error) {
	t.source.TrainSet()
	_, total := t.source.IteratorInfo()
	t.progress.OnStart(PhaseTrain, epoch, total)

	losses := make([]float64, 0, total)
	timer := common.NewNamedTimer("train batch")
	for t.source.HasNext() {
		if err := ctx.Err(); err != nil {
			return 0, fmt.Errorf("training interrupted: %w", err)
		}
		current, _ := t.source.IteratorInfo()
		batch := t.trainPrep.ProcessBatch(t.source.Next())
		loss, err := t.model.TrainBatch(batch)
		d := timer.Lap()
		t.config.Metrics.observeBatch(PhaseTrain, d, loss, err)
		if err != nil {
			t.progress.OnError(PhaseTrain, current, err)
			return 0, fmt.Errorf("epoch %d batch %d: %w", epoch, current, err)
		}
		losses = append(losses, loss)
		t.progress.OnBatch(PhaseTrain, current, total, loss)
	}
	t.progress.OnComplete(PhaseTrain)

	if len(losses) == 0 {
		slog.Warn("No full training batch in epoch", "epoch", epoch)
		return 0, nil
	}
	slog.Debug("Training pass timing", "timer", timer)
	return stat.Mean(losses, nil), nil
}

// Validate runs one pass over the validation partition and returns the
// character error rate and word accuracy.
func (t *Trainer) Validate(ctx context.Context) (charErrorRate, wordAccuracy float64, err error) {
	return t.validate(ctx, 0)
}

func (t *Trainer) validate(ctx context.Context, epoch int) (float64, float64, error) {
	t.source.ValidationSet()
	_, total := t.source.IteratorInfo()
	t.progress.OnStart(PhaseValidate, epoch, total)

	var counter ErrorCounter
	timer := common.NewNamedTimer("validation batch")
	for t.source.HasNext() {
		if err := ctx.Err(); err != nil {
			return 0, 0, fmt.Errorf("validation interrupted: %w", err)
		}
		current, _ := t.source.IteratorInfo()
		batch := t.validPrep.ProcessBatch(t.source.Next())
		recognized, _, err := t.model.InferBatch(batch, false)
		t.config.Metrics.observeBatch(PhaseValidate, timer.Lap(), 0, err)
		if err != nil {
			t.progress.OnError(PhaseValidate, current, err)
			return 0, 0, fmt.Errorf("validation batch %d: %w", current, err)
		}
		if len(recognized) != len(batch.Texts) {
			return 0, 0, fmt.Errorf("validation batch %d: got %d recognitions for %d samples",
				current, len(recognized), len(batch.Texts))
		}
		for i, gt := range batch.Texts {
			dist := counter.Add(gt, recognized[i])
			status := "[OK]"
			if dist != 0 {
				status = fmt.Sprintf("[ERR:%d]", dist)
			}
			slog.Debug(fmt.Sprintf("%s %q -> %q", status, gt, recognized[i]))
		}
		t.progress.OnBatch(PhaseValidate, current, total, 0)
	}
	t.progress.OnComplete(PhaseValidate)

	cer, wa, err := counter.Rates()
	if err != nil {
		return 0, 0, err
	}
	t.config.Metrics.observeValidation(cer, wa)
	slog.Info("Validation finished", "epoch", epoch, "cer", cer, "word_accuracy", wa,
		"samples", counter.WordsTotal)
	return cer, wa, nil
}
