package recognizer

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/MeKo-Tech/gohtr/internal/models"
)

// ErrNoCheckpoint reports a mandatory restore without any saved snapshot.
var ErrNoCheckpoint = errors.New("no saved model found")

// checkpointIndex is the content of the checkpoint index file.
type checkpointIndex struct {
	Latest   int    `json:"latest"`
	Snapshot string `json:"snapshot"`
}

// CheckpointStore keeps the most recent parameter snapshot of a model directory.
type CheckpointStore struct {
	dir string
}

// NewCheckpointStore returns a store rooted at dir.
func NewCheckpointStore(dir string) *CheckpointStore {
	return &CheckpointStore{dir: dir}
}

// Dir returns the directory holding the snapshots.
func (s *CheckpointStore) Dir() string { return s.dir }

// Latest returns the id and path of the most recent snapshot. ok is false
// when no snapshot exists.
func (s *CheckpointStore) Latest() (id int, path string, ok bool, err error) {
	data, err := os.ReadFile(models.GetCheckpointIndexPath(s.dir))
	if errors.Is(err, os.ErrNotExist) {
		return 0, "", false, nil
	}
	if err != nil {
		return 0, "", false, fmt.Errorf("read checkpoint index: %w", err)
	}
	var idx checkpointIndex
	if err := json.Unmarshal(data, &idx); err != nil {
		return 0, "", false, fmt.Errorf("parse checkpoint index: %w", err)
	}
	path = models.GetSnapshotPath(s.dir, idx.Latest)
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			slog.Warn("Checkpoint index names a missing snapshot", "path", path)
			return 0, "", false, nil
		}
		return 0, "", false, fmt.Errorf("stat snapshot: %w", err)
	}
	return idx.Latest, path, true, nil
}

// Open opens a snapshot for reading.
func (s *CheckpointStore) Open(id int) (io.ReadCloser, error) {
	f, err := os.Open(models.GetSnapshotPath(s.dir, id))
	if err != nil {
		return nil, fmt.Errorf("open snapshot %d: %w", id, err)
	}
	return f, nil
}

// Save writes snapshot id through write, points the index at it and removes
// every older snapshot.
func (s *CheckpointStore) Save(id int, write func(io.Writer) error) (string, error) {
	if err := os.MkdirAll(s.dir, 0o750); err != nil {
		return "", fmt.Errorf("create model directory: %w", err)
	}
	path := models.GetSnapshotPath(s.dir, id)
	if err := writeFileAtomic(path, write); err != nil {
		return "", fmt.Errorf("write snapshot %d: %w", id, err)
	}

	idx, err := json.MarshalIndent(checkpointIndex{Latest: id, Snapshot: filepath.Base(path)}, "", "  ")
	if err != nil {
		return "", err
	}
	err = writeFileAtomic(models.GetCheckpointIndexPath(s.dir), func(w io.Writer) error {
		_, err := w.Write(idx)
		return err
	})
	if err != nil {
		return "", fmt.Errorf("write checkpoint index: %w", err)
	}

	s.prune(id)
	return path, nil
}

// prune removes snapshots other than keep; failures are logged only.
func (s *CheckpointStore) prune(keep int) {
	matches, err := filepath.Glob(filepath.Join(s.dir, models.SnapshotPrefix+"*"))
	if err != nil {
		return
	}
	for _, m := range matches {
		id, err := strconv.Atoi(strings.TrimPrefix(filepath.Base(m), models.SnapshotPrefix))
		if err != nil || id == keep {
			continue
		}
		if err := os.Remove(m); err != nil {
			slog.Warn("Failed to remove old snapshot", "path", m, "error", err)
		}
	}
}

// writeFileAtomic writes to a temporary file next to path and renames it.
func writeFileAtomic(path string, write func(io.Writer) error) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp*")
	if err != nil {
		return err
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if err := write(tmp); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
