package recognizer

import (
	"errors"
	"fmt"
)

// ErrUnknownCharacter reports a ground-truth character missing from the alphabet.
var ErrUnknownCharacter = errors.New("character not in alphabet")

// LabelError describes the text and character that failed label encoding.
type LabelError struct {
	Text     string
	Char     rune
	Position int
}

func (e *LabelError) Error() string {
	return fmt.Sprintf("%v: %q at position %d of %q", ErrUnknownCharacter, e.Char, e.Position, e.Text)
}

func (e *LabelError) Unwrap() error { return ErrUnknownCharacter }

// SparseLabels is the sparse encoding of a batch of label sequences:
// Indices[i] = (batch row, position) carries class Values[i], and Shape is
// (batch size, longest label length).
type SparseLabels struct {
	Indices [][2]int
	Values  []int
	Shape   [2]int
}

// Encode maps text to class indices.
func (c *Charset) Encode(text string) ([]int, error) {
	out := make([]int, 0, len(text))
	pos := 0
	for _, r := range text {
		idx := c.LookupIndex(r)
		if idx < 0 {
			return nil, &LabelError{Text: text, Char: r, Position: pos}
		}
		out = append(out, idx)
		pos++
	}
	return out, nil
}

// EncodeBatch builds the sparse label representation of texts.
func (c *Charset) EncodeBatch(texts []string) (SparseLabels, error) {
	sl := SparseLabels{Shape: [2]int{len(texts), 0}}
	for row, text := range texts {
		label, err := c.Encode(text)
		if err != nil {
			return SparseLabels{}, fmt.Errorf("batch element %d: %w", row, err)
		}
		sl.Shape[1] = max(sl.Shape[1], len(label))
		for pos, v := range label {
			sl.Indices = append(sl.Indices, [2]int{row, pos})
			sl.Values = append(sl.Values, v)
		}
	}
	return sl, nil
}

// Rows expands the sparse encoding into one label sequence per batch row.
func (s SparseLabels) Rows() [][]int {
	rows := make([][]int, s.Shape[0])
	for i, ix := range s.Indices {
		row, pos := ix[0], ix[1]
		for len(rows[row]) <= pos {
			rows[row] = append(rows[row], 0)
		}
		rows[row][pos] = s.Values[i]
	}
	for i := range rows {
		if rows[i] == nil {
			rows[i] = []int{}
		}
	}
	return rows
}
