package dataset

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"slices"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Manifest layout constants for IAM-style word datasets.
const (
	// ManifestPath is the manifest location relative to the dataset root.
	ManifestPath = "gt/words.txt"
	// ImageDir is the image tree root relative to the dataset root.
	ImageDir = "images"
	// MinManifestFields is the minimum number of space-separated fields per data line.
	MinManifestFields = 9
	// TranscriptionField is the index of the first transcription field.
	TranscriptionField = 8
)

var (
	// ErrMalformedManifest is returned for data lines that cannot be parsed.
	ErrMalformedManifest = errors.New("malformed manifest line")
	// ErrDatasetNotFound is returned when the dataset root or manifest is missing.
	ErrDatasetNotFound = errors.New("dataset not found")
)

// knownCorruptSamples lists sample ids whose images are broken in the IAM release.
var knownCorruptSamples = map[string]struct{}{
	"a01-117-05-02": {},
	"r06-022-03-05": {},
}

// IsKnownCorrupt reports whether the sample id is on the known-corrupt list.
func IsKnownCorrupt(id string) bool {
	_, ok := knownCorruptSamples[id]
	return ok
}

// ImagePathForID maps a hyphen-segmented sample id to its image file:
// images/<seg0>/<seg0>-<seg1>/<id>.png under dataDir.
func ImagePathForID(dataDir, id string) (string, error) {
	parts := strings.Split(id, "-")
	if len(parts) < 2 || parts[0] == "" || parts[1] == "" {
		return "", fmt.Errorf("%w: sample id %q needs at least two hyphen-separated segments", ErrMalformedManifest, id)
	}
	sub1 := parts[0]
	sub2 := parts[0] + "-" + parts[1]
	return filepath.Join(dataDir, ImageDir, sub1, sub2, id+".png"), nil
}

// ParseManifest reads manifest lines and returns the samples in file order
// together with the sorted set of characters used by their transcriptions.
func ParseManifest(r io.Reader, dataDir string) ([]Sample, []rune, error) {
	scanner := bufio.NewScanner(r)
	samples := make([]Sample, 0, 1024)
	chars := make(map[rune]struct{}, 128)

	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || line[0] == '#' {
			continue
		}

		fields := strings.Split(line, " ")
		if len(fields) < MinManifestFields {
			return nil, nil, fmt.Errorf("%w: line %d has %d fields, want at least %d",
				ErrMalformedManifest, lineNum, len(fields), MinManifestFields)
		}

		id := fields[0]
		path, err := ImagePathForID(dataDir, id)
		if err != nil {
			return nil, nil, fmt.Errorf("line %d: %w", lineNum, err)
		}
		if IsKnownCorrupt(id) {
			slog.Warn("Ignoring known broken image", "id", id, "path", path)
			continue
		}

		text := norm.NFC.String(strings.Join(fields[TranscriptionField:], " "))
		for _, c := range text {
			chars[c] = struct{}{}
		}
		samples = append(samples, Sample{GroundTruth: text, ImagePath: path})
	}
	if err := scanner.Err(); err != nil {
		return nil, nil, fmt.Errorf("failed reading manifest: %w", err)
	}

	return samples, sortedChars(chars), nil
}

func sortedChars(set map[rune]struct{}) []rune {
	out := make([]rune, 0, len(set))
	for c := range set {
		out = append(out, c)
	}
	slices.Sort(out)
	return out
}
