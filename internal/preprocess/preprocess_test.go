package preprocess

import (
	"image"
	"image/color"
	"testing"

	"github.com/MeKo-Tech/gohtr/internal/dataset"
	"github.com/MeKo-Tech/gohtr/internal/testutil"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTest(t *testing.T, cfg Config) *Preprocessor {
	t.Helper()
	if cfg.Seed == 0 {
		cfg.Seed = 42
	}
	p, err := New(cfg)
	require.NoError(t, err)
	return p
}

func TestNew_Validation(t *testing.T) {
	_, err := New(Config{Width: 10, Height: 0})
	require.Error(t, err)
	_, err = New(Config{Width: 0, Height: 10})
	require.Error(t, err)
	_, err = New(Config{Height: 10, DynamicWidth: true, Padding: -1})
	require.Error(t, err)
	_, err = New(Config{Height: 10, DynamicWidth: true})
	require.NoError(t, err)
}

func TestProcessImage_FixedSizeWhitePage(t *testing.T) {
	p := newTest(t, Config{Width: 64, Height: 16, WidthMultiple: 4})
	out := p.ProcessImage(testutil.CreateUniformImage(50, 10, 255))

	assert.Equal(t, 64, out.Width)
	assert.Equal(t, 16, out.Height)
	require.Len(t, out.Data, 64*16)
	for _, v := range out.Data {
		assert.InDelta(t, BackgroundValue, v, 0.01)
	}
	assert.InDelta(t, 0.5, out.Background, 1e-9)
}

func TestProcessImage_TransposesToWidthMajor(t *testing.T) {
	img := image.NewGray(image.Rect(0, 0, 8, 4))
	for y := range 4 {
		for x := range 8 {
			v := uint8(255)
			if x < 4 {
				v = 0
			}
			img.SetGray(x, y, color.Gray{Y: v})
		}
	}
	p := newTest(t, Config{Width: 8, Height: 4})
	out := p.ProcessImage(img)

	require.Equal(t, 8, out.Width)
	require.Equal(t, 4, out.Height)
	for y := range 4 {
		assert.InDelta(t, -0.5, out.At(0, y), 0.01)
		assert.InDelta(t, 0.5, out.At(7, y), 0.01)
	}
	assert.InDelta(t, -0.5, out.Data[0*4+3], 0.01)
	assert.Len(t, out.Column(1), 4)
}

func TestProcessImage_NilYieldsPlaceholder(t *testing.T) {
	p := newTest(t, Config{Width: 32, Height: 8})
	out := p.ProcessImage(nil)
	assert.Equal(t, 32, out.Width)
	assert.Equal(t, 8, out.Height)
	for _, v := range out.Data {
		assert.Equal(t, PlaceholderValue, v)
	}
}

func TestProcessImage_DynamicWidth(t *testing.T) {
	p := newTest(t, InferenceConfig(16, 16))
	// f = 16/10, round(1.6*50)=80, +16 padding = 96.
	out := p.ProcessImage(testutil.CreateUniformImage(50, 10, 255))
	assert.Equal(t, 96, out.Width)
	assert.Equal(t, 16, out.Height)

	// f = 16/10, round(1.6*51)=82, +16 = 98, rounded up to 100.
	out = p.ProcessImage(testutil.CreateUniformImage(51, 10, 255))
	assert.Equal(t, 100, out.Width)
}

func TestProcessBatch_PadsToWidest(t *testing.T) {
	p := newTest(t, InferenceConfig(16, 0))
	batch := dataset.Batch{
		Images: []*image.Gray{
			testutil.GenerateWordImage("a"),
			testutil.GenerateWordImage("longer word"),
		},
		Texts: []string{"a", "longer word"},
		Size:  2,
	}
	single := p.ProcessImage(batch.Images[1])

	out := p.ProcessBatch(batch)
	require.Len(t, out.Images, 2)
	assert.Equal(t, 2, out.Size)
	assert.Equal(t, batch.Texts, out.Texts)
	assert.Equal(t, single.Width, out.Width())
	for _, im := range out.Images {
		assert.Equal(t, out.Width(), im.Width)
		assert.Equal(t, 16, im.Height)
		assert.Len(t, im.Data, im.Width*im.Height)
	}

	narrow := p.ProcessImage(batch.Images[0])
	padded := out.Images[0]
	for x := narrow.Width; x < padded.Width; x++ {
		for y := range padded.Height {
			assert.Equal(t, BackgroundValue, padded.At(x, y))
		}
	}
}

func TestProcessImage_DynamicPlaceholderUsesPageWidth(t *testing.T) {
	cfg := InferenceConfig(32, 16)
	p := newTest(t, cfg)

	// A blank 256x32 page scales by 1, gains 16 padding: 272, already a multiple of 4.
	out := p.ProcessImage(nil)
	assert.Equal(t, 272, out.Width)
	assert.Equal(t, 32, out.Height)
	for _, v := range out.Data {
		assert.Equal(t, PlaceholderValue, v)
	}

	batch := p.ProcessBatch(dataset.Batch{
		Images: []*image.Gray{testutil.GenerateWordImage("a"), nil},
		Texts:  []string{"a", "gone"},
		Size:   2,
	})
	assert.Equal(t, 272, batch.Width())
	assert.Equal(t, 272, batch.Images[0].Width)
}

func TestProcessImage_DynamicPlaceholderRoundsToMultiple(t *testing.T) {
	p := newTest(t, Config{Width: 30, Height: 10, DynamicWidth: true, Padding: 3, WidthMultiple: 4})
	// 30 + 3 = 33, rounded up to 36.
	assert.Equal(t, 36, p.ProcessImage(nil).Width)
}

func TestPadWidth_NoopWhenWideEnough(t *testing.T) {
	im := Image{Width: 4, Height: 2, Data: make([]float64, 8), Background: 0.5}
	assert.Equal(t, im, im.PadWidth(3))
	assert.Equal(t, 6, im.PadWidth(6).Width)
}

func TestProcessImage_AugmentedShapeAndRange(t *testing.T) {
	properties := gopter.NewProperties(nil)
	p := newTest(t, Config{Width: 64, Height: 16, Augment: true, WidthMultiple: 4})

	properties.Property("augmented output keeps the fixed shape and normalized range", prop.ForAll(
		func(w, h int) bool {
			img := testutil.CreateUniformImage(w, h, 128)
			out := p.ProcessImage(img)
			if out.Width != 64 || out.Height != 16 || len(out.Data) != 64*16 {
				return false
			}
			for _, v := range out.Data {
				if v < -0.5-1e-9 || v > 0.5+1e-9 {
					return false
				}
			}
			return true
		},
		gen.IntRange(1, 120),
		gen.IntRange(1, 40),
	))

	properties.TestingRun(t)
}

func TestRoundUp(t *testing.T) {
	assert.Equal(t, 8, roundUp(5, 4))
	assert.Equal(t, 8, roundUp(8, 4))
	assert.Equal(t, 5, roundUp(5, 1))
}
