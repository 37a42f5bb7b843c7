package pipeline

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Summary is the per-epoch training record, rewritten in full after every epoch.
type Summary struct {
	AverageTrainLoss []float64 `json:"averageTrainLoss"`
	CharErrorRates   []float64 `json:"charErrorRates"`
	WordAccuracies   []float64 `json:"wordAccuracies"`
}

// Append adds one epoch.
func (s *Summary) Append(avgLoss, charErrorRate, wordAccuracy float64) {
	s.AverageTrainLoss = append(s.AverageTrainLoss, avgLoss)
	s.CharErrorRates = append(s.CharErrorRates, charErrorRate)
	s.WordAccuracies = append(s.WordAccuracies, wordAccuracy)
}

// Epochs returns the number of recorded epochs.
func (s *Summary) Epochs() int { return len(s.CharErrorRates) }

// WriteFile replaces path with the JSON encoding of the summary.
func (s *Summary) WriteFile(path string) error {
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("encode summary: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("create summary directory: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("write summary: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("replace summary: %w", err)
	}
	return nil
}

// ReadSummary loads a summary written by WriteFile.
func ReadSummary(path string) (*Summary, error) {
	data, err := os.ReadFile(path) //nolint:gosec // G304: summary path comes from configuration
	if err != nil {
		return nil, fmt.Errorf("read summary: %w", err)
	}
	var s Summary
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("decode summary: %w", err)
	}
	return &s, nil
}
