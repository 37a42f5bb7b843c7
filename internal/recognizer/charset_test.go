package recognizer

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewCharset(t *testing.T) {
	cs, err := NewCharset([]rune(" ab"))
	require.NoError(t, err)
	assert.Equal(t, 3, cs.Size())
	assert.Equal(t, 3, cs.Blank())
	assert.Equal(t, 1, cs.LookupIndex('a'))
	assert.Equal(t, -1, cs.LookupIndex('z'))
	r, ok := cs.LookupChar(2)
	assert.True(t, ok)
	assert.Equal(t, 'b', r)
	_, ok = cs.LookupChar(3)
	assert.False(t, ok)

	_, err = NewCharset(nil)
	require.Error(t, err)
	_, err = NewCharset([]rune("aba"))
	require.Error(t, err)
}

func TestWithSpace(t *testing.T) {
	assert.Equal(t, []rune(" ab"), WithSpace([]rune("ab")))
	assert.Equal(t, []rune("a b"), WithSpace([]rune("a b")))
}

func TestCharset_Decode(t *testing.T) {
	cs, err := NewCharset([]rune("abc"))
	require.NoError(t, err)
	assert.Equal(t, "cab", cs.Decode([]int{2, 0, 1}))
	assert.Equal(t, "a", cs.Decode([]int{0, 3, -1}), "blank and out-of-range indices are skipped")
	assert.Equal(t, "abc", cs.String())
}

func TestLoadCharList(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "charList.txt")
	require.NoError(t, os.WriteFile(p, []byte("\xEF\xBB\xBF !abé\n"), 0o600))

	cs, err := LoadCharList(p)
	require.NoError(t, err)
	assert.Equal(t, []rune(" !abé"), cs.Chars())
}

func TestLoadCharList_Errors(t *testing.T) {
	_, err := LoadCharList("")
	require.Error(t, err)

	_, err = LoadCharList(filepath.Join(t.TempDir(), "missing.txt"))
	require.ErrorIs(t, err, os.ErrNotExist)

	p := filepath.Join(t.TempDir(), "empty.txt")
	require.NoError(t, os.WriteFile(p, []byte("\n"), 0o600))
	_, err = LoadCharList(p)
	require.Error(t, err)
}

func TestCharset_WriteFileRoundTrip(t *testing.T) {
	cs, err := NewCharset([]rune(" 'AZaz"))
	require.NoError(t, err)
	p := filepath.Join(t.TempDir(), "charList.txt")
	require.NoError(t, cs.WriteFile(p))

	loaded, err := LoadCharList(p)
	require.NoError(t, err)
	assert.Equal(t, cs.Chars(), loaded.Chars())
}
