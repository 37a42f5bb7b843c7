package models

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// Artefact file names stored in the model directory.
const (
	CharListFile   = "charList.txt"
	SummaryFile    = "summary.json"
	CorpusFile     = "corpus.txt"
	CheckpointFile = "checkpoint"
	SnapshotPrefix = "snapshot-"
)

// Default model and data directories.
const (
	DefaultModelDir = "model"
	DefaultDataDir  = "data"
)

// Environment variable for model directory override.
const EnvModelDir = "HTR_MODEL_DIR"

// findProjectRoot finds the project root by looking for go.mod.
func findProjectRoot() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}

	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir, nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return "", errors.New("could not find project root (go.mod not found)")
}

// GetModelDir returns the model directory path from various sources.
// Priority: 1. Explicit modelDir parameter, 2. Environment variable, 3. Project root + default.
func GetModelDir(modelDir string) string {
	if modelDir != "" {
		return modelDir
	}

	if envDir := os.Getenv(EnvModelDir); envDir != "" {
		return envDir
	}

	if projectRoot, err := findProjectRoot(); err == nil {
		return filepath.Join(projectRoot, DefaultModelDir)
	}

	return DefaultModelDir
}

// GetCharListPath returns the path of the persisted recognition alphabet.
func GetCharListPath(modelDir string) string {
	return filepath.Join(GetModelDir(modelDir), CharListFile)
}

// GetSummaryPath returns the path of the per-epoch training summary.
func GetSummaryPath(modelDir string) string {
	return filepath.Join(GetModelDir(modelDir), SummaryFile)
}

// GetCorpusPath returns the path of the word corpus written during training.
func GetCorpusPath(modelDir string) string {
	return filepath.Join(GetModelDir(modelDir), CorpusFile)
}

// GetSnapshotPath returns the path of the snapshot with the given id.
func GetSnapshotPath(modelDir string, id int) string {
	return filepath.Join(GetModelDir(modelDir), fmt.Sprintf("%s%d", SnapshotPrefix, id))
}

// GetCheckpointIndexPath returns the path of the file naming the latest snapshot.
func GetCheckpointIndexPath(modelDir string) string {
	return filepath.Join(GetModelDir(modelDir), CheckpointFile)
}

// EnsureModelDir creates the model directory if it does not exist.
func EnsureModelDir(modelDir string) (string, error) {
	dir := GetModelDir(modelDir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create model directory %s: %w", dir, err)
	}
	return dir, nil
}

// ValidateFileExists checks if an artefact exists at the given path.
func ValidateFileExists(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return fmt.Errorf("file not found: %s", path)
	}
	return nil
}
