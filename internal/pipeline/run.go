package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/MeKo-Tech/gohtr/internal/dataset"
	"github.com/MeKo-Tech/gohtr/internal/models"
	"github.com/MeKo-Tech/gohtr/internal/nn"
	"github.com/MeKo-Tech/gohtr/internal/preprocess"
	"github.com/MeKo-Tech/gohtr/internal/recognizer"
)

// Mode selects what Run does.
type Mode string

const (
	ModeTrain    Mode = "train"
	ModeValidate Mode = "validate"
	ModeInfer    Mode = "infer"
)

// Options collects everything a run needs, already resolved from configuration.
type Options struct {
	Mode             Mode
	DataDir          string
	ModelDir         string
	ImagePath        string
	BatchSize        int
	InferencePadding int
	Architecture     nn.Architecture
	Trainer          Config
}

// DefaultOptions returns options matching the default configuration.
func DefaultOptions() Options {
	return Options{
		Mode:             ModeInfer,
		DataDir:          models.DefaultDataDir,
		BatchSize:        dataset.DefaultConfig().BatchSize,
		InferencePadding: DefaultInferencePadding,
		Architecture:     nn.DefaultArchitecture(),
		Trainer:          DefaultConfig(),
	}
}

// Outcome is the mode-dependent result of Run.
type Outcome struct {
	Training      *Result
	CharErrorRate float64
	WordAccuracy  float64
	Inference     *InferResult
}

// Run executes the selected mode.
func Run(ctx context.Context, opts Options) (*Outcome, error) {
	switch opts.Mode {
	case ModeTrain:
		res, err := RunTrain(ctx, opts)
		return &Outcome{Training: res}, err
	case ModeValidate:
		cer, wa, err := RunValidate(ctx, opts)
		if err != nil {
			return nil, err
		}
		return &Outcome{CharErrorRate: cer, WordAccuracy: wa}, nil
	case ModeInfer:
		res, err := RunInfer(opts)
		if err != nil {
			return nil, err
		}
		return &Outcome{Inference: &res}, nil
	default:
		return nil, fmt.Errorf("unknown mode %q", opts.Mode)
	}
}

// RunTrain loads the dataset, writes the character list and corpus into the
// model directory and trains until the stopping policy ends the run.
func RunTrain(ctx context.Context, opts Options) (*Result, error) {
	loader, err := openLoader(opts)
	if err != nil {
		return nil, err
	}
	modelDir, err := models.EnsureModelDir(opts.ModelDir)
	if err != nil {
		return nil, err
	}

	charset, err := recognizer.NewCharset(recognizer.WithSpace(loader.CharList()))
	if err != nil {
		return nil, fmt.Errorf("build character list: %w", err)
	}
	if err := charset.WriteFile(models.GetCharListPath(modelDir)); err != nil {
		return nil, err
	}
	if err := loader.WriteCorpus(models.GetCorpusPath(modelDir)); err != nil {
		return nil, err
	}
	slog.Info("Dataset prepared", "chars", charset.Size(),
		"train", len(loader.TrainSamples()), "validation", len(loader.ValidationSamples()))

	model, err := recognizer.New(charset, recognizer.Config{
		ModelDir:     modelDir,
		Architecture: opts.Architecture,
	})
	if err != nil {
		return nil, err
	}

	cfg := opts.Trainer
	if cfg.SummaryPath == "" {
		cfg.SummaryPath = models.GetSummaryPath(modelDir)
	}
	trainer, err := NewTrainer(model, loader, cfg)
	if err != nil {
		return nil, err
	}
	return trainer.Train(ctx)
}

// RunValidate restores the saved model and evaluates it on the validation partition.
func RunValidate(ctx context.Context, opts Options) (charErrorRate, wordAccuracy float64, err error) {
	loader, err := openLoader(opts)
	if err != nil {
		return 0, 0, err
	}
	model, err := RestoreModel(opts)
	if err != nil {
		return 0, 0, err
	}
	trainer, err := NewTrainer(model, loader, opts.Trainer)
	if err != nil {
		return 0, 0, err
	}
	return trainer.Validate(ctx)
}

// RunInfer restores the saved model and recognizes opts.ImagePath.
func RunInfer(opts Options) (InferResult, error) {
	if opts.ImagePath == "" {
		return InferResult{}, fmt.Errorf("image path cannot be empty")
	}
	model, err := RestoreModel(opts)
	if err != nil {
		return InferResult{}, err
	}
	cfg := preprocess.InferenceConfig(opts.Architecture.Height, opts.InferencePadding)
	return InferWithConfig(model, opts.ImagePath, cfg)
}

func openLoader(opts Options) (*dataset.Loader, error) {
	return dataset.NewLoader(dataset.Config{
		DataDir:   opts.DataDir,
		BatchSize: opts.BatchSize,
		Seed:      opts.Trainer.Seed,
	})
}

// RestoreModel loads the character list and the latest snapshot from opts.ModelDir.
func RestoreModel(opts Options) (*recognizer.Model, error) {
	charset, err := recognizer.LoadCharList(models.GetCharListPath(opts.ModelDir))
	if err != nil {
		return nil, err
	}
	return recognizer.New(charset, recognizer.Config{
		ModelDir:     opts.ModelDir,
		MustRestore:  true,
		Architecture: opts.Architecture,
	})
}
