package testutil

import (
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// WordImageMargin is the horizontal and vertical margin around rendered words.
const WordImageMargin = 4

// GenerateWordImage renders dark text on a white background as grayscale.
// The image is sized to the text plus WordImageMargin on each side.
func GenerateWordImage(text string) *image.Gray {
	face := basicfont.Face7x13
	textWidth := font.MeasureString(face, text).Ceil()
	textHeight := face.Metrics().Height.Ceil()

	w := max(textWidth, 1) + 2*WordImageMargin
	h := textHeight + 2*WordImageMargin
	img := image.NewGray(image.Rect(0, 0, w, h))
	draw.Draw(img, img.Bounds(), &image.Uniform{C: color.White}, image.Point{}, draw.Src)

	drawer := &font.Drawer{
		Dst:  img,
		Src:  &image.Uniform{C: color.Black},
		Face: face,
		Dot:  fixed.P(WordImageMargin, WordImageMargin+face.Metrics().Ascent.Ceil()),
	}
	drawer.DrawString(text)
	return img
}

// CreateUniformImage returns a grayscale image filled with a single value.
func CreateUniformImage(width, height int, value uint8) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, width, height))
	for i := range img.Pix {
		img.Pix[i] = value
	}
	return img
}

// WritePNG encodes an image as PNG, creating parent directories.
func WritePNG(path string, img image.Image) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return err
	}
	f, err := os.Create(path) //nolint:gosec // G304: test data path
	if err != nil {
		return err
	}
	if err := png.Encode(f, img); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

// SaveImage saves an image to the specified path, failing the test on error.
func SaveImage(t *testing.T, img image.Image, path string) {
	t.Helper()
	require.NoError(t, WritePNG(path, img), "Failed to save image %s", path)
}
