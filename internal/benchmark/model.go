package benchmark

import (
	"fmt"
	"os"
	"slices"

	"github.com/MeKo-Tech/gohtr/internal/dataset"
	"github.com/MeKo-Tech/gohtr/internal/nn"
	"github.com/MeKo-Tech/gohtr/internal/preprocess"
	"github.com/MeKo-Tech/gohtr/internal/recognizer"
	"github.com/MeKo-Tech/gohtr/internal/testutil"
)

// ModelConfig describes the synthetic workload.
type ModelConfig struct {
	Architecture nn.Architecture
	BatchSize    int
	Width        int // Fixed training width
	Padding      int // Inference padding
	Words        []string
}

var defaultWords = []string{"the", "and", "handwriting", "of", "recognition", "a", "Labour", "1960"}

// DefaultModelConfig returns a workload with the default network.
func DefaultModelConfig() ModelConfig {
	return ModelConfig{
		Architecture: nn.DefaultArchitecture(),
		BatchSize:    16,
		Width:        256,
		Padding:      16,
		Words:        defaultWords,
	}
}

// ModelBenchmark holds the model and inputs the benchmarks share.
type ModelBenchmark struct {
	*Suite
	model    *recognizer.Model
	modelDir string
}

// NewModelBenchmark builds a fresh model in a temporary directory and
// registers preprocessing, inference and training benchmarks.
func NewModelBenchmark(cfg ModelConfig) (*ModelBenchmark, error) {
	if cfg.BatchSize < 1 {
		return nil, fmt.Errorf("invalid batch size: %d", cfg.BatchSize)
	}
	if len(cfg.Words) == 0 {
		cfg.Words = defaultWords
	}

	raw := dataset.Batch{Size: cfg.BatchSize}
	var chars []rune
	for i := range cfg.BatchSize {
		w := cfg.Words[i%len(cfg.Words)]
		raw.Texts = append(raw.Texts, w)
		raw.Images = append(raw.Images, testutil.GenerateWordImage(w))
		chars = append(chars, []rune(w)...)
	}
	slices.Sort(chars)
	chars = slices.Compact(chars)
	charset, err := recognizer.NewCharset(recognizer.WithSpace(chars))
	if err != nil {
		return nil, err
	}

	dir, err := os.MkdirTemp("", "htr-bench-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create model directory: %w", err)
	}
	model, err := recognizer.New(charset, recognizer.Config{ModelDir: dir, Architecture: cfg.Architecture})
	if err != nil {
		_ = os.RemoveAll(dir)
		return nil, err
	}

	trainCfg := preprocess.DefaultConfig()
	trainCfg.Width = cfg.Width
	trainCfg.Height = cfg.Architecture.Height
	trainPrep, err := preprocess.New(trainCfg)
	if err != nil {
		_ = os.RemoveAll(dir)
		return nil, err
	}
	inferPrep, err := preprocess.New(preprocess.InferenceConfig(cfg.Architecture.Height, cfg.Padding))
	if err != nil {
		_ = os.RemoveAll(dir)
		return nil, err
	}

	trainBatch := trainPrep.ProcessBatch(raw)
	inferBatch := inferPrep.ProcessBatch(raw)

	mb := &ModelBenchmark{Suite: NewSuite(), model: model, modelDir: dir}
	mb.Add("preprocess", cfg.BatchSize, func() error {
		_ = trainPrep.ProcessBatch(raw)
		return nil
	})
	mb.Add("preprocess-single", 1, func() error {
		_ = inferPrep.ProcessImage(raw.Images[0])
		return nil
	})
	mb.Add("infer", cfg.BatchSize, func() error {
		_, _, err := model.InferBatch(inferBatch, false)
		return err
	})
	mb.Add("infer-probability", cfg.BatchSize, func() error {
		_, _, err := model.InferBatch(inferBatch, true)
		return err
	})
	mb.Add("train", cfg.BatchSize, func() error {
		_, err := model.TrainBatch(trainBatch)
		return err
	})
	return mb, nil
}

// Close removes the temporary model directory.
func (mb *ModelBenchmark) Close() error {
	return os.RemoveAll(mb.modelDir)
}
