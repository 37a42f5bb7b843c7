package utils

import (
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsSupportedImage(t *testing.T) {
	assert.True(t, IsSupportedImage("a.PNG"))
	assert.True(t, IsSupportedImage("dir/b.tif"))
	assert.False(t, IsSupportedImage("c.gif"))
	assert.False(t, IsSupportedImage("noext"))
}

func TestLoadGray_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "word.png")

	src := image.NewRGBA(image.Rect(0, 0, 4, 2))
	src.Set(1, 1, color.RGBA{R: 255, G: 255, B: 255, A: 255})
	f, err := os.Create(p)
	require.NoError(t, err)
	require.NoError(t, png.Encode(f, src))
	require.NoError(t, f.Close())

	g, err := LoadGray(p)
	require.NoError(t, err)
	assert.Equal(t, 4, g.Bounds().Dx())
	assert.Equal(t, 2, g.Bounds().Dy())
	assert.Equal(t, uint8(255), g.GrayAt(1, 1).Y)
	assert.Equal(t, uint8(0), g.GrayAt(0, 0).Y)
}

func TestLoadImage_Errors(t *testing.T) {
	_, err := LoadImage("")
	var ipe *ImageProcessingError
	require.ErrorAs(t, err, &ipe)
	assert.Equal(t, "load", ipe.Operation)

	_, err = LoadImage("missing.png")
	require.Error(t, err)
	assert.True(t, errors.Is(err, os.ErrNotExist))

	_, err = LoadImage("file.gif")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported format")

	dir := t.TempDir()
	bad := filepath.Join(dir, "bad.png")
	require.NoError(t, os.WriteFile(bad, []byte("not a png"), 0o644))
	_, err = LoadImage(bad)
	require.ErrorAs(t, err, &ipe)
	assert.Equal(t, "decode", ipe.Operation)
}

func TestToGray_OffsetBounds(t *testing.T) {
	src := image.NewGray(image.Rect(5, 5, 8, 7))
	src.SetGray(6, 6, color.Gray{Y: 200})
	g := ToGray(src)
	assert.Equal(t, image.Rect(0, 0, 3, 2), g.Bounds())
	assert.Equal(t, uint8(200), g.GrayAt(1, 1).Y)
	assert.Nil(t, ToGray(nil))
}
