// Package enhance improves the legibility of rendered pages: grayscale,
// contrast and brightness scaling, denoising, sharpening, stroke thickening
// and binarization, plus an HSV background mask for tinted copies.
package enhance

import (
	"fmt"
	"image"
	"image/draw"
	"math"

	"bond-log-enhancer/internal/domain"

	"github.com/disintegration/imaging"
)

// Binarization selects how the final gray image is reduced to black and white.
type Binarization string

const (
	BinarizeNone     Binarization = "none"
	BinarizeFixed    Binarization = "fixed"
	BinarizeAdaptive Binarization = "adaptive"
	BinarizeOtsu     Binarization = "otsu"
)

// Config is one transform chain. Zero values disable a step; a contrast or
// brightness factor of 0 is treated as 1.
type Config struct {
	Contrast   float64      `yaml:"contrast" json:"contrast"`
	Brightness float64      `yaml:"brightness" json:"brightness"`
	Denoise    float64      `yaml:"denoise" json:"denoise"` // gaussian sigma
	Sharpen    float64      `yaml:"sharpen" json:"sharpen"` // unsharp mask sigma
	Thicken    int          `yaml:"thicken" json:"thicken"` // morphological passes
	Binarize   Binarization `yaml:"binarize" json:"binarize"`
	Threshold  uint8        `yaml:"threshold" json:"threshold"` // fixed mode, pixels <= threshold become ink
	Window     int          `yaml:"window" json:"window"`       // adaptive mode window, odd
	Bias       int          `yaml:"bias" json:"bias"`           // adaptive mode offset below the local mean
}

// Validate rejects values that cannot be applied.
func (c Config) Validate() error {
	for name, v := range map[string]float64{
		"contrast": c.Contrast, "brightness": c.Brightness, "denoise": c.Denoise, "sharpen": c.Sharpen,
	} {
		if v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
			return &domain.ValidationError{Field: name, Message: "must be a finite non-negative number"}
		}
	}
	if c.Thicken < 0 {
		return &domain.ValidationError{Field: "thicken", Message: "must not be negative"}
	}
	switch c.Binarize {
	case "", BinarizeNone, BinarizeFixed, BinarizeOtsu:
	case BinarizeAdaptive:
		if c.Window != 0 && c.Window < 3 {
			return &domain.ValidationError{Field: "window", Message: "must be at least 3"}
		}
	default:
		return &domain.ValidationError{Field: "binarize", Message: fmt.Sprintf("unknown mode %q", c.Binarize)}
	}
	return nil
}

// Enhancer applies a Config to bitmaps. It holds no mutable state and is safe
// for concurrent use.
type Enhancer struct {
	cfg Config
}

// New returns an Enhancer for cfg.
func New(cfg Config) (*Enhancer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Enhancer{cfg: cfg}, nil
}

// Config returns the chain the enhancer applies.
func (e *Enhancer) Config() Config {
	return e.cfg
}

// Apply runs the chain. The result is an *image.Gray with the same pixel
// dimensions as the input and is a pure function of the input pixels and Config.
func (e *Enhancer) Apply(in domain.Bitmap) domain.Bitmap {
	if in.Empty() {
		return in
	}
	c := e.cfg
	g := toGray(in.Image)

	contrast := factorOrOne(c.Contrast)
	brightness := factorOrOne(c.Brightness)
	if contrast != 1 || brightness != 1 {
		applyLUT(g, toneCurve(contrast, brightness))
	}
	if c.Denoise > 0 {
		g = toGray(imaging.Blur(g, c.Denoise))
	}
	if c.Sharpen > 0 {
		g = toGray(imaging.Sharpen(g, c.Sharpen))
	}
	if c.Thicken > 0 {
		g = thicken(g, c.Thicken)
	}

	switch c.Binarize {
	case BinarizeFixed:
		g = binarize(g, c.Threshold)
	case BinarizeAdaptive:
		window, bias := c.Window, c.Bias
		if window == 0 {
			window = 31
		}
		g = adaptiveThreshold(g, window, bias)
	case BinarizeOtsu:
		g = binarize(g, otsuThreshold(g))
	}

	return domain.Bitmap{Image: g, DPI: in.DPI}
}

func factorOrOne(f float64) float64 {
	if f == 0 {
		return 1
	}
	return f
}

// toneCurve maps every gray level through contrast scaling around mid-gray
// followed by multiplicative brightness.
func toneCurve(contrast, brightness float64) [256]uint8 {
	var lut [256]uint8
	for i := range lut {
		v := (float64(i)-128)*contrast + 128
		v *= brightness
		lut[i] = clamp8(v)
	}
	return lut
}

func applyLUT(g *image.Gray, lut [256]uint8) {
	for i, v := range g.Pix {
		g.Pix[i] = lut[v]
	}
}

func clamp8(v float64) uint8 {
	switch {
	case v <= 0:
		return 0
	case v >= 255:
		return 255
	default:
		return uint8(v + 0.5)
	}
}

// toGray returns a gray copy of img whose bounds start at the origin.
func toGray(img image.Image) *image.Gray {
	b := img.Bounds()
	out := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	switch src := img.(type) {
	case *image.Gray:
		draw.Draw(out, out.Bounds(), src, b.Min, draw.Src)
		return out
	case *image.NRGBA:
		if isNeutral(src) {
			for y := 0; y < b.Dy(); y++ {
				row := src.Pix[src.PixOffset(b.Min.X, b.Min.Y+y):]
				dst := out.Pix[y*out.Stride:]
				for x := 0; x < b.Dx(); x++ {
					dst[x] = row[x*4]
				}
			}
			return out
		}
	}
	gray := imaging.Grayscale(img)
	for y := 0; y < b.Dy(); y++ {
		row := gray.Pix[y*gray.Stride:]
		dst := out.Pix[y*out.Stride:]
		for x := 0; x < b.Dx(); x++ {
			dst[x] = row[x*4]
		}
	}
	return out
}

// isNeutral reports whether every pixel already has R == G == B, as produced
// by imaging filters run over a gray image.
func isNeutral(img *image.NRGBA) bool {
	b := img.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		i := img.PixOffset(b.Min.X, y)
		for x := b.Min.X; x < b.Max.X; x++ {
			if img.Pix[i] != img.Pix[i+1] || img.Pix[i] != img.Pix[i+2] {
				return false
			}
			i += 4
		}
	}
	return true
}
