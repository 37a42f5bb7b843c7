package pipeline

import (
	"errors"
	"fmt"
	"image"

	"github.com/MeKo-Tech/gohtr/internal/dataset"
	"github.com/MeKo-Tech/gohtr/internal/preprocess"
	"github.com/MeKo-Tech/gohtr/internal/utils"
)

// Inference defaults for single images.
const (
	DefaultInferenceHeight  = 32
	DefaultInferencePadding = 16
)

// InferResult is the recognized text of one image and its probability estimate.
type InferResult struct {
	Text        string  `json:"text"`
	Probability float64 `json:"probability"`
}

// Infer recognizes the word image at imagePath with dynamic-width
// preprocessing at the default height and padding.
func Infer(model Recognizer, imagePath string) (InferResult, error) {
	return InferWithConfig(model, imagePath, preprocess.InferenceConfig(DefaultInferenceHeight, DefaultInferencePadding))
}

// InferWithConfig recognizes the word image at imagePath using config.
func InferWithConfig(model Recognizer, imagePath string, config preprocess.Config) (InferResult, error) {
	img, err := utils.LoadGray(imagePath)
	if err != nil {
		return InferResult{}, fmt.Errorf("failed to load image: %w", err)
	}
	return InferImage(model, img, config)
}

// InferImage recognizes an already decoded grayscale image.
func InferImage(model Recognizer, img *image.Gray, config preprocess.Config) (InferResult, error) {
	if model == nil {
		return InferResult{}, errors.New("model cannot be nil")
	}
	prep, err := preprocess.New(config)
	if err != nil {
		return InferResult{}, err
	}
	batch := prep.ProcessBatch(dataset.Batch{Images: []*image.Gray{img}, Size: 1})

	texts, probs, err := model.InferBatch(batch, true)
	if err != nil {
		return InferResult{}, fmt.Errorf("recognition failed: %w", err)
	}
	if len(texts) != 1 || len(probs) != 1 {
		return InferResult{}, fmt.Errorf("got %d recognitions for one image", len(texts))
	}
	return InferResult{Text: texts[0], Probability: probs[0]}, nil
}
