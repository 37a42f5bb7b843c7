// Package batch recognizes many word images with one restored model: files
// are discovered, loaded in parallel and fed to the network in batches.
package batch

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"time"

	"github.com/MeKo-Tech/gohtr/internal/dataset"
	"github.com/MeKo-Tech/gohtr/internal/preprocess"
	"github.com/MeKo-Tech/gohtr/internal/utils"
	"golang.org/x/sync/errgroup"
)

// Recognizer is the inference surface of the model.
type Recognizer interface {
	InferBatch(batch preprocess.Batch, calcProbability bool) ([]string, []float64, error)
}

// Process discovers the images named by paths and recognizes them. Files
// that fail to load are reported per item; model errors abort the run.
func Process(ctx context.Context, model Recognizer, paths []string, config Config) (*Result, error) {
	if model == nil {
		return nil, errors.New("model cannot be nil")
	}
	if err := config.validate(); err != nil {
		return nil, err
	}
	prep, err := preprocess.New(config.Preprocess)
	if err != nil {
		return nil, fmt.Errorf("preprocessor: %w", err)
	}

	files, err := discoverImageFiles(paths, config.Recursive, config.IncludePatterns, config.ExcludePatterns)
	if err != nil {
		return nil, fmt.Errorf("failed to discover image files: %w", err)
	}
	if len(files) == 0 {
		return nil, errors.New("no image files found")
	}

	start := time.Now()
	images, loadErrs, err := loadImages(ctx, files, config.Workers)
	if err != nil {
		return nil, err
	}

	items := make([]Item, len(files))
	var pending []int
	for i, f := range files {
		items[i].File = f
		if loadErrs[i] != nil {
			items[i].Error = loadErrs[i].Error()
			slog.Warn("Skipping unreadable image", "file", f, "error", loadErrs[i])
			continue
		}
		pending = append(pending, i)
	}

	for lo := 0; lo < len(pending); lo += config.BatchSize {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		chunk := pending[lo:min(lo+config.BatchSize, len(pending))]
		raw := dataset.Batch{
			Images: make([]*image.Gray, len(chunk)),
			Texts:  make([]string, len(chunk)),
			Size:   len(chunk),
		}
		for j, idx := range chunk {
			raw.Images[j] = images[idx]
		}
		texts, probs, err := model.InferBatch(prep.ProcessBatch(raw), true)
		if err != nil {
			return nil, fmt.Errorf("recognition failed for batch at %s: %w", files[chunk[0]], err)
		}
		if len(texts) != len(chunk) || len(probs) != len(chunk) {
			return nil, fmt.Errorf("model returned %d results for %d images", len(texts), len(chunk))
		}
		for j, idx := range chunk {
			items[idx].Text = texts[j]
			items[idx].Probability = probs[j]
		}
	}

	res := &Result{Items: items, Duration: time.Since(start), Workers: config.Workers}
	slog.Info("Batch recognition finished", "images", len(items), "failed", res.Failed(),
		"duration", res.Duration.Round(time.Millisecond))
	return res, nil
}

// loadImages decodes files with a bounded number of workers. Per-file load
// errors are returned positionally; only cancellation fails the call.
func loadImages(ctx context.Context, files []string, workers int) ([]*image.Gray, []error, error) {
	images := make([]*image.Gray, len(files))
	errs := make([]error, len(files))

	g, gctx := errgroup.WithContext(ctx)
	if workers > 0 {
		g.SetLimit(workers)
	}
	for i, f := range files {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			images[i], errs[i] = utils.LoadGray(f)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, fmt.Errorf("loading images: %w", err)
	}
	return images, errs, nil
}
