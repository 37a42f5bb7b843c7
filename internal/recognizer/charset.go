package recognizer

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"
)

// Charset is the immutable bijection between alphabet characters and class
// indices. The CTC blank takes index Size().
type Charset struct {
	chars []rune
	index map[rune]int
}

// NewCharset builds a charset from characters in the given order.
func NewCharset(chars []rune) (*Charset, error) {
	if len(chars) == 0 {
		return nil, errors.New("character list cannot be empty")
	}
	index := make(map[rune]int, len(chars))
	for i, r := range chars {
		if _, ok := index[r]; ok {
			return nil, fmt.Errorf("duplicate character %q in character list", r)
		}
		index[r] = i
	}
	return &Charset{chars: slices.Clone(chars), index: index}, nil
}

// WithSpace returns chars with a leading space inserted when none is present.
func WithSpace(chars []rune) []rune {
	if slices.Contains(chars, ' ') {
		return slices.Clone(chars)
	}
	return append([]rune{' '}, chars...)
}

// LoadCharList reads a character list file: every character of the file in
// order, ignoring a UTF-8 BOM and line breaks.
func LoadCharList(path string) (*Charset, error) {
	if path == "" {
		return nil, errors.New("character list path cannot be empty")
	}
	data, err := os.ReadFile(path) //nolint:gosec // G304: reading the model's own character list
	if err != nil {
		return nil, fmt.Errorf("failed to read character list: %w", err)
	}
	text := strings.TrimPrefix(string(data), "\uFEFF")
	text = strings.NewReplacer("\r", "", "\n", "").Replace(text)
	cs, err := NewCharset([]rune(text))
	if err != nil {
		return nil, fmt.Errorf("character list %s: %w", path, err)
	}
	return cs, nil
}

// WriteFile writes the characters in order without separators.
func (c *Charset) WriteFile(path string) error {
	if err := os.WriteFile(path, []byte(string(c.chars)), 0o600); err != nil {
		return fmt.Errorf("failed to write character list: %w", err)
	}
	return nil
}

// Size returns the number of characters, excluding the blank.
func (c *Charset) Size() int { return len(c.chars) }

// Blank returns the class index reserved for the CTC blank.
func (c *Charset) Blank() int { return len(c.chars) }

// Chars returns a copy of the characters in index order.
func (c *Charset) Chars() []rune { return slices.Clone(c.chars) }

// LookupIndex returns the index of a character, or -1 if not present.
func (c *Charset) LookupIndex(r rune) int {
	if c == nil {
		return -1
	}
	if idx, ok := c.index[r]; ok {
		return idx
	}
	return -1
}

// LookupChar returns the character for an index.
func (c *Charset) LookupChar(index int) (rune, bool) {
	if c == nil || index < 0 || index >= len(c.chars) {
		return 0, false
	}
	return c.chars[index], true
}

// Decode maps class indices back to text, skipping indices outside the alphabet.
func (c *Charset) Decode(indices []int) string {
	var sb strings.Builder
	for _, idx := range indices {
		if r, ok := c.LookupChar(idx); ok {
			sb.WriteRune(r)
		}
	}
	return sb.String()
}

func (c *Charset) String() string { return string(c.chars) }
