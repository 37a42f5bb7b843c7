package batch

import (
	"errors"
	"fmt"
	"os"
	"runtime"
	"time"

	"github.com/MeKo-Tech/gohtr/internal/preprocess"
)

// Config holds all configuration for batch recognition.
type Config struct {
	// Preprocessing of every image, normally preprocess.InferenceConfig
	Preprocess preprocess.Config

	// Parallel loading and model batching
	Workers   int // Image loaders, 0 = GOMAXPROCS
	BatchSize int // Images per model call

	// File discovery settings
	Recursive       bool
	IncludePatterns []string
	ExcludePatterns []string
}

// DefaultConfig returns a configuration for the given network height.
func DefaultConfig(height, padding int) Config {
	return Config{
		Preprocess: preprocess.InferenceConfig(height, padding),
		Workers:    runtime.GOMAXPROCS(0),
		BatchSize:  32,
	}
}

func (c Config) validate() error {
	if c.Workers < 0 {
		return fmt.Errorf("invalid workers: %d", c.Workers)
	}
	if c.BatchSize < 1 {
		return fmt.Errorf("invalid batch size: %d (must be positive)", c.BatchSize)
	}
	if !c.Preprocess.DynamicWidth && c.Preprocess.Width < 1 {
		return errors.New("preprocessing needs a fixed width or dynamic width")
	}
	return nil
}

// Item is the recognition result for one file. Error is set when the file
// could not be loaded; Text and Probability are empty then.
type Item struct {
	File        string  `json:"file"`
	Text        string  `json:"text"`
	Probability float64 `json:"probability"`
	Error       string  `json:"error,omitempty"`
}

// Result holds the result of batch recognition.
type Result struct {
	Items    []Item
	Duration time.Duration
	Workers  int
}

// Failed returns the number of items that could not be recognized.
func (r *Result) Failed() int {
	n := 0
	for _, it := range r.Items {
		if it.Error != "" {
			n++
		}
	}
	return n
}

// FormatResults formats the results in the specified format.
func (r *Result) FormatResults(format string) (string, error) {
	return formatResults(r.Items, format)
}

// SaveResults writes the formatted results to outputFile.
func (r *Result) SaveResults(format, outputFile string) error {
	output, err := r.FormatResults(format)
	if err != nil {
		return fmt.Errorf("failed to format results: %w", err)
	}
	if err := os.WriteFile(outputFile, []byte(output), 0o600); err != nil {
		return fmt.Errorf("failed to write output file: %w", err)
	}
	return nil
}
