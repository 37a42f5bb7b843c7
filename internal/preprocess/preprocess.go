// Package preprocess turns raw grayscale word images into width-major float
// tensors of uniform height for the recognition network.
package preprocess

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"math"
	"math/rand"
	"time"

	"github.com/MeKo-Tech/gohtr/internal/dataset"
	"github.com/disintegration/imaging"
	"gonum.org/v1/gonum/floats"
)

// Pixel normalization: v/255 - 0.5 maps ink (0) to -0.5 and paper (255) to 0.5.
const (
	pixelScale  = 1.0 / 255.0
	pixelOffset = -0.5
)

// BackgroundValue is the normalized value of a white (paper) pixel.
const BackgroundValue = 255*pixelScale + pixelOffset

// PlaceholderValue fills tensors that stand in for unreadable images.
const PlaceholderValue = pixelOffset

// Image is a normalized tensor stored width-major: Data[x*Height+y].
type Image struct {
	Width      int
	Height     int
	Data       []float64
	Background float64
}

// At returns the value at column x, row y.
func (im Image) At(x, y int) float64 {
	return im.Data[x*im.Height+y]
}

// Column returns the Height values of column x.
func (im Image) Column(x int) []float64 {
	return im.Data[x*im.Height : (x+1)*im.Height]
}

// PadWidth returns a copy right-padded with the background value to width.
func (im Image) PadWidth(width int) Image {
	if width <= im.Width {
		return im
	}
	data := make([]float64, width*im.Height)
	copy(data, im.Data)
	for i := im.Width * im.Height; i < len(data); i++ {
		data[i] = im.Background
	}
	return Image{Width: width, Height: im.Height, Data: data, Background: im.Background}
}

// Batch holds preprocessed images of a common shape and their texts.
type Batch struct {
	Images []Image
	Texts  []string
	Size   int
}

// Width returns the common image width of the batch, 0 when empty.
func (b Batch) Width() int {
	if len(b.Images) == 0 {
		return 0
	}
	return b.Images[0].Width
}

// Config holds preprocessing parameters.
type Config struct {
	Width         int   // Target width (ignored per image when DynamicWidth is set)
	Height        int   // Target height
	Augment       bool  // Apply random photometric and geometric perturbation
	DynamicWidth  bool  // Derive width from each image's aspect ratio
	Padding       int   // Extra width added in dynamic mode
	WidthMultiple int   // Dynamic widths are rounded up to this multiple
	Seed          int64 // Random seed for augmentation; 0 picks a time-based seed
}

// DefaultConfig returns the configuration used for training-time validation batches.
func DefaultConfig() Config {
	return Config{
		Width:         256,
		Height:        32,
		WidthMultiple: 4,
	}
}

// InferenceConfig returns the dynamic-width configuration used for single images.
func InferenceConfig(height, padding int) Config {
	cfg := DefaultConfig()
	cfg.Height = height
	cfg.DynamicWidth = true
	cfg.Padding = padding
	return cfg
}

// Preprocessor normalizes images; it is not safe for concurrent use when
// augmentation is enabled.
type Preprocessor struct {
	config Config
	rng    *rand.Rand
}

// New creates a preprocessor with the given configuration.
func New(config Config) (*Preprocessor, error) {
	if config.Height <= 0 {
		return nil, fmt.Errorf("invalid height: %d", config.Height)
	}
	if !config.DynamicWidth && config.Width <= 0 {
		return nil, fmt.Errorf("invalid width: %d", config.Width)
	}
	if config.Padding < 0 {
		return nil, errors.New("padding cannot be negative")
	}
	if config.WidthMultiple <= 0 {
		config.WidthMultiple = 1
	}
	seed := config.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &Preprocessor{config: config, rng: rand.New(rand.NewSource(seed))}, nil //nolint:gosec // augmentation only
}

// Config returns the preprocessor configuration.
func (p *Preprocessor) Config() Config { return p.config }

// ProcessImage fits an image into the target size, optionally augments it,
// normalizes it and transposes it to width-major order. A nil or empty image
// yields a uniform placeholder tensor.
func (p *Preprocessor) ProcessImage(img *image.Gray) Image {
	if img == nil || img.Bounds().Empty() {
		return p.placeholder()
	}

	var src image.Image = img
	if p.config.Augment {
		src = p.augmentSource(src)
	}

	canvas := p.fit(src)
	w, h := canvas.Bounds().Dx(), canvas.Bounds().Dy()
	pixels := grayValues(canvas)
	if p.config.Augment {
		p.augmentPixels(pixels)
	}
	return normalizeTranspose(pixels, w, h)
}

// ProcessBatch preprocesses every image and right-pads all of them to the
// widest image in the batch.
func (p *Preprocessor) ProcessBatch(batch dataset.Batch) Batch {
	images := make([]Image, len(batch.Images))
	maxWidth := 0
	for i, img := range batch.Images {
		images[i] = p.ProcessImage(img)
		maxWidth = max(maxWidth, images[i].Width)
	}
	for i := range images {
		images[i] = images[i].PadWidth(maxWidth)
	}
	return Batch{Images: images, Texts: batch.Texts, Size: batch.Size}
}

// placeholder stands in for a missing image: a blank Width x Height page
// sized the same way a real image of that size would be.
func (p *Preprocessor) placeholder() Image {
	w := p.config.Width
	if p.config.DynamicWidth {
		w, _ = p.targetWidth(max(w, 1), p.config.Height)
	}
	h := p.config.Height
	data := make([]float64, w*h)
	for i := range data {
		data[i] = PlaceholderValue
	}
	return Image{Width: w, Height: h, Data: data, Background: BackgroundValue}
}

// targetWidth returns the canvas width and the base scale factor for src.
func (p *Preprocessor) targetWidth(w, h int) (int, float64) {
	ht := float64(p.config.Height)
	if p.config.DynamicWidth {
		f := ht / float64(h)
		wt := int(math.Round(f*float64(w))) + p.config.Padding
		wt = roundUp(max(wt, 1), p.config.WidthMultiple)
		return wt, f
	}
	wt := p.config.Width
	return wt, math.Min(float64(wt)/float64(w), ht/float64(h))
}

// fit scales src into the target canvas preserving aspect ratio and places it
// on a white background, centred unless augmentation randomizes the offset.
func (p *Preprocessor) fit(src image.Image) *image.NRGBA {
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	wt, f := p.targetWidth(w, h)
	ht := p.config.Height

	fx, fy := f, f
	if p.config.Augment {
		fx *= p.uniform(0.75, 1.05)
		fy *= p.uniform(0.75, 1.05)
	}
	newW := clampInt(int(math.Round(float64(w)*fx)), 1, wt)
	newH := clampInt(int(math.Round(float64(h)*fy)), 1, ht)

	tx := (wt - newW) / 2
	ty := (ht - newH) / 2
	if p.config.Augment {
		tx = p.rng.Intn(wt - newW + 1)
		ty = p.rng.Intn(ht - newH + 1)
	}

	resized := imaging.Resize(src, newW, newH, imaging.Linear)
	canvas := imaging.New(wt, ht, color.White)
	return imaging.Paste(canvas, resized, image.Pt(tx, ty))
}

// grayValues returns the canvas luminance in row-major order.
func grayValues(img *image.NRGBA) []float64 {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	out := make([]float64, w*h)
	for y := range h {
		for x := range w {
			g, _ := color.GrayModel.Convert(img.NRGBAAt(b.Min.X+x, b.Min.Y+y)).(color.Gray)
			out[y*w+x] = float64(g.Y)
		}
	}
	return out
}

// normalizeTranspose maps row-major pixels in [0,255] to the width-major tensor.
func normalizeTranspose(pixels []float64, w, h int) Image {
	floats.Scale(pixelScale, pixels)
	floats.AddConst(pixelOffset, pixels)
	data := make([]float64, w*h)
	for y := range h {
		row := pixels[y*w : (y+1)*w]
		for x, v := range row {
			data[x*h+y] = v
		}
	}
	return Image{Width: w, Height: h, Data: data, Background: BackgroundValue}
}

func (p *Preprocessor) uniform(lo, hi float64) float64 {
	return lo + p.rng.Float64()*(hi-lo)
}

func roundUp(v, multiple int) int {
	if multiple <= 1 {
		return v
	}
	if r := v % multiple; r != 0 {
		return v + multiple - r
	}
	return v
}

func clampInt(v, lo, hi int) int {
	return max(lo, min(v, hi))
}
