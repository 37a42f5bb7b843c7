// Package dataset loads IAM-style labelled word images and serves them in
// mini-batches for training and validation.
package dataset

import (
	"errors"
	"fmt"
	"image"
	"log/slog"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/MeKo-Tech/gohtr/internal/utils"
)

// TrainFraction is the share of parsed samples assigned to the training partition.
const TrainFraction = 0.95

// Sample is one labelled image from the manifest.
type Sample struct {
	GroundTruth string
	ImagePath   string
}

// Batch is a group of raw grayscale images and their transcriptions.
// Texts is nil for inference-only batches; Images entries are nil when the
// file could not be read.
type Batch struct {
	Images []*image.Gray
	Texts  []string
	Size   int
}

// Mode selects which partition the loader iterates.
type Mode int

const (
	ModeTrain Mode = iota
	ModeValidation
)

func (m Mode) String() string {
	if m == ModeTrain {
		return "train"
	}
	return "validation"
}

// Config holds configuration for the data loader.
type Config struct {
	DataDir   string // Dataset root containing gt/words.txt and images/
	BatchSize int    // Samples per batch, must be >= 1
	Seed      int64  // Shuffle seed; 0 picks a time-based seed
}

// DefaultConfig returns a default loader configuration.
func DefaultConfig() Config {
	return Config{
		BatchSize: 100,
	}
}

// Loader parses a dataset manifest, splits it into training and validation
// partitions and yields batches from the active partition.
// A Loader is not safe for concurrent use.
type Loader struct {
	config Config

	samples           []Sample
	trainSamples      []Sample
	validationSamples []Sample
	charList          []rune

	active []Sample
	mode   Mode
	cursor int

	rng       *rand.Rand
	loadImage func(path string) (*image.Gray, error)
}

// NewLoader parses the manifest under config.DataDir and selects the training partition.
func NewLoader(config Config) (*Loader, error) {
	if config.BatchSize < 1 {
		return nil, fmt.Errorf("invalid batch size: %d (must be >= 1)", config.BatchSize)
	}
	if config.DataDir == "" {
		return nil, fmt.Errorf("%w: data directory cannot be empty", ErrDatasetNotFound)
	}
	if _, err := os.Stat(config.DataDir); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrDatasetNotFound, config.DataDir, err)
	}

	manifest := filepath.Join(config.DataDir, ManifestPath)
	f, err := os.Open(manifest) //nolint:gosec // G304: manifest lives in the user-provided dataset root
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: manifest %s missing", ErrDatasetNotFound, manifest)
		}
		return nil, fmt.Errorf("failed to open manifest: %w", err)
	}
	defer func() {
		if err := f.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "Error closing manifest: %v\n", err)
		}
	}()

	samples, chars, err := ParseManifest(f, config.DataDir)
	if err != nil {
		return nil, err
	}

	seed := config.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	l := &Loader{
		config:    config,
		samples:   samples,
		charList:  chars,
		rng:       rand.New(rand.NewSource(seed)), //nolint:gosec // shuffling only
		loadImage: utils.LoadGray,
	}
	l.split()
	l.TrainSet()

	slog.Debug("Dataset loaded",
		"samples", len(samples),
		"train", len(l.trainSamples),
		"validation", len(l.validationSamples),
		"chars", len(chars))
	return l, nil
}

// split partitions the parsed samples at floor(TrainFraction*N) in parse order.
func (l *Loader) split() {
	idx := SplitIndex(len(l.samples))
	l.trainSamples = append([]Sample(nil), l.samples[:idx]...)
	l.validationSamples = append([]Sample(nil), l.samples[idx:]...)
}

// SplitIndex returns floor(TrainFraction*n).
func SplitIndex(n int) int {
	return int(TrainFraction * float64(n))
}

// TrainSet rewinds the cursor, reshuffles the training partition and makes it active.
func (l *Loader) TrainSet() {
	l.cursor = 0
	l.rng.Shuffle(len(l.trainSamples), func(i, j int) {
		l.trainSamples[i], l.trainSamples[j] = l.trainSamples[j], l.trainSamples[i]
	})
	l.active = l.trainSamples
	l.mode = ModeTrain
}

// ValidationSet rewinds the cursor and makes the validation partition active.
func (l *Loader) ValidationSet() {
	l.cursor = 0
	l.active = l.validationSamples
	l.mode = ModeValidation
}

// Mode returns the currently active partition.
func (l *Loader) Mode() Mode { return l.mode }

// IteratorInfo returns the 1-based number of the next batch and the total batch count.
// Training drops the trailing partial batch from the count; validation keeps it.
func (l *Loader) IteratorInfo() (int, int) {
	n := len(l.active)
	bs := l.config.BatchSize
	var total int
	if l.mode == ModeTrain {
		total = n / bs
	} else {
		total = (n + bs - 1) / bs
	}
	return l.cursor/bs + 1, total
}

// HasNext reports whether another batch is available: a full batch in
// training mode, any remaining sample in validation mode.
func (l *Loader) HasNext() bool {
	if l.mode == ModeTrain {
		return l.cursor+l.config.BatchSize <= len(l.active)
	}
	return l.cursor < len(l.active)
}

// Next returns the next batch from the active partition and advances the
// cursor by the batch size. Unreadable images are left nil and logged.
func (l *Loader) Next() Batch {
	start := min(l.cursor, len(l.active))
	end := min(l.cursor+l.config.BatchSize, len(l.active))
	slice := l.active[start:end]

	imgs := make([]*image.Gray, len(slice))
	texts := make([]string, len(slice))
	for i, s := range slice {
		img, err := l.loadImage(s.ImagePath)
		if err != nil {
			slog.Warn("Failed to load sample image, using placeholder", "path", s.ImagePath, "error", err)
			img = nil
		}
		imgs[i] = img
		texts[i] = s.GroundTruth
	}

	l.cursor += l.config.BatchSize
	return Batch{Images: imgs, Texts: texts, Size: len(imgs)}
}

// BatchSize returns the configured batch size.
func (l *Loader) BatchSize() int { return l.config.BatchSize }

// CharList returns the sorted unique characters of all transcriptions.
func (l *Loader) CharList() []rune { return append([]rune(nil), l.charList...) }

// Samples returns all parsed samples in manifest order.
func (l *Loader) Samples() []Sample { return l.samples }

// TrainSamples returns the training partition in its current order.
func (l *Loader) TrainSamples() []Sample { return l.trainSamples }

// ValidationSamples returns the validation partition.
func (l *Loader) ValidationSamples() []Sample { return l.validationSamples }

// Words returns the training transcriptions followed by the validation ones,
// in manifest order regardless of how often the training set was shuffled.
func (l *Loader) Words() []string {
	out := make([]string, 0, len(l.samples))
	for _, s := range l.samples {
		out = append(out, s.GroundTruth)
	}
	return out
}

// WriteCorpus writes all words of the dataset joined by single spaces.
func (l *Loader) WriteCorpus(path string) error {
	if err := os.WriteFile(path, []byte(strings.Join(l.Words(), " ")), 0o644); err != nil { //nolint:gosec // corpus is not sensitive
		return fmt.Errorf("failed to write corpus: %w", err)
	}
	return nil
}
