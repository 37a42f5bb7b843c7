package preprocess

import (
	"image"
	"image/color"

	"github.com/anthonynsimon/bild/blur"
	"github.com/anthonynsimon/bild/effect"
	"github.com/anthonynsimon/bild/transform"
	"github.com/disintegration/imaging"
)

// Augmentation probabilities and ranges.
const (
	blurProb     = 0.25
	dilateProb   = 0.25
	erodeProb    = 0.25
	rotateProb   = 0.25
	shearProb    = 0.25
	dimProb      = 0.5
	noiseProb    = 0.25
	dropoutProb  = 0.25
	dropoutRate  = 0.05
	maxRotateDeg = 3.0
	maxShearDeg  = 8.0
	maxNoiseAmp  = 25
)

// augmentSource applies the geometric and morphological perturbations that
// run on the source image before fitting.
func (p *Preprocessor) augmentSource(src image.Image) image.Image {
	if p.rng.Float64() < blurProb {
		src = blur.Gaussian(src, p.uniform(0.5, 1.5))
	}
	if p.rng.Float64() < dilateProb {
		src = effect.Dilate(src, 1)
	}
	if p.rng.Float64() < erodeProb {
		src = effect.Erode(src, 1)
	}
	if p.rng.Float64() < rotateProb {
		src = imaging.Rotate(src, p.uniform(-maxRotateDeg, maxRotateDeg), color.White)
	}
	if p.rng.Float64() < shearProb {
		sheared := transform.ShearH(src, p.uniform(-maxShearDeg, maxShearDeg))
		b := sheared.Bounds()
		bg := imaging.New(b.Dx(), b.Dy(), color.White)
		src = imaging.Overlay(bg, sheared, image.Pt(0, 0), 1.0)
	}
	return src
}

// augmentPixels applies photometric perturbations to fitted row-major pixels
// in [0,255].
func (p *Preprocessor) augmentPixels(pixels []float64) {
	if p.rng.Float64() < dimProb {
		factor := 0.25 + 0.75*p.rng.Float64()
		for i := range pixels {
			pixels[i] *= factor
		}
	}
	if p.rng.Float64() < noiseProb {
		amp := float64(1 + p.rng.Intn(maxNoiseAmp))
		for i := range pixels {
			pixels[i] = clamp255(pixels[i] + (p.rng.Float64()-0.5)*amp)
		}
	}
	if p.rng.Float64() < dropoutProb {
		for i := range pixels {
			if p.rng.Float64() < dropoutRate {
				pixels[i] = 255
			}
		}
	}
}

func clamp255(v float64) float64 {
	return max(0, min(v, 255))
}
