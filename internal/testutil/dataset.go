package testutil

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

// DatasetEntry describes one manifest line of a synthetic IAM-layout dataset.
type DatasetEntry struct {
	ID        string
	Text      string
	SkipImage bool // write the manifest line but no image file
}

// EntryID returns a deterministic hyphen-segmented sample id for index i.
func EntryID(i int) string {
	return fmt.Sprintf("t01-%03d-00-%02d", i/100, i%100)
}

// ManifestLine formats an entry the way IAM words.txt does: id, status,
// graylevel, bounding box, grammatical tag and the transcription.
func ManifestLine(e DatasetEntry) string {
	return fmt.Sprintf("%s ok 154 1 1 %d 24 NN %s", e.ID, 7*len(e.Text), e.Text)
}

// WriteDataset writes gt/words.txt and rendered word images under root.
func WriteDataset(root string, entries []DatasetEntry) error {
	var sb strings.Builder
	sb.WriteString("#--- synthetic words.txt ---\n")
	sb.WriteString("#\n\n")
	for _, e := range entries {
		sb.WriteString(ManifestLine(e))
		sb.WriteByte('\n')
		if e.SkipImage {
			continue
		}
		parts := strings.Split(e.ID, "-")
		if len(parts) < 2 {
			return fmt.Errorf("invalid entry id %q", e.ID)
		}
		p := filepath.Join(root, "images", parts[0], parts[0]+"-"+parts[1], e.ID+".png")
		if err := WritePNG(p, GenerateWordImage(e.Text)); err != nil {
			return fmt.Errorf("write image %s: %w", p, err)
		}
	}

	gt := filepath.Join(root, "gt")
	if err := os.MkdirAll(gt, 0o750); err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(gt, "words.txt"), []byte(sb.String()), 0o600)
}

// WordEntries builds entries with sequential ids for the given words.
func WordEntries(words []string) []DatasetEntry {
	out := make([]DatasetEntry, len(words))
	for i, w := range words {
		out[i] = DatasetEntry{ID: EntryID(i), Text: w}
	}
	return out
}

// CreateDataset writes a synthetic dataset into a fresh temp dir and returns its root.
func CreateDataset(t *testing.T, entries []DatasetEntry) string {
	t.Helper()
	root := t.TempDir()
	require.NoError(t, WriteDataset(root, entries), "Failed to write synthetic dataset")
	return root
}
