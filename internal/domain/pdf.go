package domain

import (
	"image"
	"math"
)

// Letter is the normalized output page size in points.
var Letter = Geometry{Width: 612, Height: 792}

// Geometry is a page size in PDF points.
type Geometry struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Landscape reports whether the page is wider than it is tall.
func (g Geometry) Landscape() bool {
	return g.Width > g.Height
}

// Valid reports whether both dimensions are finite and positive.
func (g Geometry) Valid() bool {
	return finitePositive(g.Width) && finitePositive(g.Height)
}

// OrientedLike returns g rotated to match the orientation of other.
func (g Geometry) OrientedLike(other Geometry) Geometry {
	if g.Landscape() != other.Landscape() {
		return Geometry{Width: g.Height, Height: g.Width}
	}
	return g
}

// Rect is a rectangle in page points with the origin at the bottom-left corner.
type Rect struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Problem returns a short description of why r cannot be placed on a page of
// the given geometry, or an empty string when it can.
func (r Rect) Problem(page Geometry) string {
	for _, v := range []float64{r.X, r.Y, r.Width, r.Height} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return "non-finite rectangle"
		}
	}
	if r.Width <= 0 || r.Height <= 0 {
		return "non-positive rectangle size"
	}
	const slack = 0.5
	if r.X < -slack || r.Y < -slack || r.X+r.Width > page.Width+slack || r.Y+r.Height > page.Height+slack {
		return "rectangle outside page"
	}
	return ""
}

// Bitmap is a rendered page raster. Pixel coordinates have the origin at the top-left.
type Bitmap struct {
	Image image.Image
	DPI   float64
}

// Size returns the pixel dimensions of the bitmap.
func (b Bitmap) Size() (int, int) {
	if b.Image == nil {
		return 0, 0
	}
	r := b.Image.Bounds()
	return r.Dx(), r.Dy()
}

// Empty reports whether the bitmap carries no pixels.
func (b Bitmap) Empty() bool {
	w, h := b.Size()
	return w == 0 || h == 0
}

func finitePositive(v float64) bool {
	return v > 0 && !math.IsInf(v, 0) && !math.IsNaN(v)
}
