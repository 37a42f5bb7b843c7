package pipeline

import (
	"errors"
	"fmt"

	"github.com/agnivade/levenshtein"
)

// ErrEmptyValidationSet reports a validation pass without samples or without
// ground-truth characters, where the error rates are undefined.
var ErrEmptyValidationSet = errors.New("validation set is empty")

// ErrorCounter accumulates character and word errors over a validation pass.
type ErrorCounter struct {
	CharErrors int
	CharTotal  int
	WordsOK    int
	WordsTotal int
}

// Add records one sample and returns its edit distance.
func (c *ErrorCounter) Add(groundTruth, recognized string) int {
	dist := levenshtein.ComputeDistance(recognized, groundTruth)
	c.CharErrors += dist
	c.CharTotal += len([]rune(groundTruth))
	c.WordsTotal++
	if groundTruth == recognized {
		c.WordsOK++
	}
	return dist
}

// Rates returns the character error rate and word accuracy.
func (c *ErrorCounter) Rates() (charErrorRate, wordAccuracy float64, err error) {
	if c.WordsTotal == 0 {
		return 0, 0, fmt.Errorf("%w: no samples", ErrEmptyValidationSet)
	}
	if c.CharTotal == 0 {
		return 0, 0, fmt.Errorf("%w: no ground-truth characters", ErrEmptyValidationSet)
	}
	return float64(c.CharErrors) / float64(c.CharTotal), float64(c.WordsOK) / float64(c.WordsTotal), nil
}

// ErrorRates computes character error rate and word accuracy of recognized
// texts against ground truth.
func ErrorRates(groundTruth, recognized []string) (charErrorRate, wordAccuracy float64, err error) {
	if len(groundTruth) != len(recognized) {
		return 0, 0, fmt.Errorf("got %d recognized texts for %d ground-truth texts", len(recognized), len(groundTruth))
	}
	var c ErrorCounter
	for i := range groundTruth {
		c.Add(groundTruth[i], recognized[i])
	}
	return c.Rates()
}
