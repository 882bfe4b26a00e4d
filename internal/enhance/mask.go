package enhance

import (
	"fmt"
	"image"
	"image/color"
	"sort"

	"bond-log-enhancer/internal/domain"

	"github.com/lucasb-eyer/go-colorful"
)

// HueRange selects pixels in HSV space. Hue is in degrees [0,360); a range with
// MinHue > MaxHue wraps through 0. Saturation and value are in [0,1]; a zero
// maximum means 1.
type HueRange struct {
	MinHue float64 `yaml:"min_hue" json:"min_hue"`
	MaxHue float64 `yaml:"max_hue" json:"max_hue"`
	MinSat float64 `yaml:"min_sat" json:"min_sat"`
	MaxSat float64 `yaml:"max_sat" json:"max_sat"`
	MinVal float64 `yaml:"min_val" json:"min_val"`
	MaxVal float64 `yaml:"max_val" json:"max_val"`
}

const maxMaskCache = 1 << 16

// PinkCarbonRanges cover the two shades of the pink carbon-copy tint.
var PinkCarbonRanges = []HueRange{
	{MinHue: 300, MaxHue: 360, MinSat: 0.08, MinVal: 0.08},
	{MinHue: 0, MaxHue: 40, MinSat: 0.08, MinVal: 0.08},
}

// MaskConfig is the optional background mask step of a preset.
type MaskConfig struct {
	Ranges []HueRange `yaml:"ranges" json:"ranges"`
	Fill   *uint8     `yaml:"fill,omitempty" json:"fill,omitempty"` // gray level, white when nil
}

// FillColor returns the configured fill or white.
func (m MaskConfig) FillColor() color.Gray {
	if m.Fill == nil {
		return color.Gray{Y: paper}
	}
	return color.Gray{Y: *m.Fill}
}

func (r HueRange) normalized() HueRange {
	if r.MaxSat == 0 {
		r.MaxSat = 1
	}
	if r.MaxVal == 0 {
		r.MaxVal = 1
	}
	return r
}

// Validate checks bounds.
func (r HueRange) Validate() error {
	n := r.normalized()
	if n.MinHue < 0 || n.MinHue > 360 || n.MaxHue < 0 || n.MaxHue > 360 {
		return fmt.Errorf("hue bounds must be within 0..360: %v..%v", r.MinHue, r.MaxHue)
	}
	if n.MinSat < 0 || n.MinSat > n.MaxSat || n.MaxSat > 1 {
		return fmt.Errorf("saturation bounds invalid: %v..%v", r.MinSat, r.MaxSat)
	}
	if n.MinVal < 0 || n.MinVal > n.MaxVal || n.MaxVal > 1 {
		return fmt.Errorf("value bounds invalid: %v..%v", r.MinVal, r.MaxVal)
	}
	return nil
}

func (r HueRange) contains(h, s, v float64) bool {
	if s < r.MinSat || s > r.MaxSat || v < r.MinVal || v > r.MaxVal {
		return false
	}
	return h >= r.MinHue && h <= r.MaxHue
}

// Union splits wrapping ranges at 0 degrees and merges ranges whose hue
// intervals touch or overlap and that share saturation and value bounds.
// The result is sorted and non-wrapping.
func Union(ranges []HueRange) []HueRange {
	var parts []HueRange
	for _, r := range ranges {
		r = r.normalized()
		if r.MinHue > r.MaxHue {
			lo, hi := r, r
			lo.MinHue, lo.MaxHue = 0, r.MaxHue
			hi.MinHue, hi.MaxHue = r.MinHue, 360
			parts = append(parts, lo, hi)
			continue
		}
		parts = append(parts, r)
	}

	sort.SliceStable(parts, func(i, j int) bool {
		a, b := parts[i], parts[j]
		if a.MinSat != b.MinSat {
			return a.MinSat < b.MinSat
		}
		if a.MaxSat != b.MaxSat {
			return a.MaxSat < b.MaxSat
		}
		if a.MinVal != b.MinVal {
			return a.MinVal < b.MinVal
		}
		if a.MaxVal != b.MaxVal {
			return a.MaxVal < b.MaxVal
		}
		return a.MinHue < b.MinHue
	})

	var out []HueRange
	for _, p := range parts {
		if n := len(out); n > 0 {
			last := &out[n-1]
			sameBand := last.MinSat == p.MinSat && last.MaxSat == p.MaxSat &&
				last.MinVal == p.MinVal && last.MaxVal == p.MaxVal
			if sameBand && p.MinHue <= last.MaxHue {
				if p.MaxHue > last.MaxHue {
					last.MaxHue = p.MaxHue
				}
				continue
			}
		}
		out = append(out, p)
	}
	return out
}

// Mask replaces pixels that fall in any of the ranges with fill and converts
// every other pixel to its gray luminance. The result is an *image.Gray with
// the same dimensions as the input.
func Mask(in domain.Bitmap, ranges []HueRange, fill color.Gray) domain.Bitmap {
	if in.Empty() {
		return in
	}
	union := Union(ranges)
	b := in.Image.Bounds()
	out := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))

	// Scanned pages repeat a small palette, so classification is cached by colour.
	type verdict struct {
		match bool
		gray  uint8
	}
	cache := make(map[color.RGBA]verdict, 1024)

	for y := 0; y < b.Dy(); y++ {
		for x := 0; x < b.Dx(); x++ {
			rgba := color.RGBAModel.Convert(in.Image.At(b.Min.X+x, b.Min.Y+y)).(color.RGBA)
			vd, ok := cache[rgba]
			if !ok {
				vd.gray = color.GrayModel.Convert(rgba).(color.Gray).Y
				if c, visible := colorful.MakeColor(rgba); visible {
					h, s, v := c.Hsv()
					for _, r := range union {
						if r.contains(h, s, v) {
							vd.match = true
							break
						}
					}
				}
				if len(cache) < maxMaskCache {
					cache[rgba] = vd
				}
			}
			if vd.match {
				out.Pix[y*out.Stride+x] = fill.Y
			} else {
				out.Pix[y*out.Stride+x] = vd.gray
			}
		}
	}
	return domain.Bitmap{Image: out, DPI: in.DPI}
}
