package enhance

import (
	"image"
)

const (
	ink   = 0
	paper = 255
)

// binarize performs a global threshold: pixels at or below threshold become ink.
func binarize(g *image.Gray, threshold uint8) *image.Gray {
	out := image.NewGray(g.Rect)
	for i, v := range g.Pix {
		if v <= threshold {
			out.Pix[i] = ink
		} else {
			out.Pix[i] = paper
		}
	}
	return out
}

// otsuThreshold picks the level that maximizes the between-class variance of
// the histogram. Ties keep the lowest level.
func otsuThreshold(g *image.Gray) uint8 {
	var hist [256]int
	for _, v := range g.Pix {
		hist[v]++
	}
	total := len(g.Pix)
	if total == 0 {
		return 127
	}

	var sum float64
	for i, n := range hist {
		sum += float64(i) * float64(n)
	}

	var (
		sumB, best float64
		wB         int
		level      uint8 = 127
		found      bool
	)
	for t := 0; t < 256; t++ {
		wB += hist[t]
		if wB == 0 {
			continue
		}
		wF := total - wB
		if wF == 0 {
			break
		}
		sumB += float64(t) * float64(hist[t])
		mB := sumB / float64(wB)
		mF := (sum - sumB) / float64(wF)
		between := float64(wB) * float64(wF) * (mB - mF) * (mB - mF)
		if !found || between > best {
			best = between
			level = uint8(t)
			found = true
		}
	}
	return level
}

// adaptiveThreshold compares each pixel with the mean of its window minus bias,
// using an integral image so the cost is independent of the window size.
func adaptiveThreshold(g *image.Gray, window, bias int) *image.Gray {
	if window < 3 {
		window = 3
	}
	if window%2 == 0 {
		window++
	}
	w, h := g.Rect.Dx(), g.Rect.Dy()
	out := image.NewGray(g.Rect)
	half := window / 2

	// ints has a zero row and column so lookups need no bounds checks.
	stride := w + 1
	ints := make([]int64, stride*(h+1))
	for y := 0; y < h; y++ {
		var rowSum int64
		for x := 0; x < w; x++ {
			rowSum += int64(g.Pix[y*g.Stride+x])
			ints[(y+1)*stride+x+1] = ints[y*stride+x+1] + rowSum
		}
	}

	for y := 0; y < h; y++ {
		y0, y1 := max(y-half, 0), min(y+half, h-1)
		for x := 0; x < w; x++ {
			x0, x1 := max(x-half, 0), min(x+half, w-1)
			sum := ints[(y1+1)*stride+x1+1] - ints[y0*stride+x1+1] - ints[(y1+1)*stride+x0] + ints[y0*stride+x0]
			area := int64((x1 - x0 + 1) * (y1 - y0 + 1))
			th := sum/area - int64(bias)
			if int64(g.Pix[y*g.Stride+x]) < th {
				out.Pix[y*out.Stride+x] = ink
			} else {
				out.Pix[y*out.Stride+x] = paper
			}
		}
	}
	return out
}

var cross = [5][2]int{{0, 0}, {1, 0}, {-1, 0}, {0, 1}, {0, -1}}

// thicken spreads dark strokes over the 4-neighbourhood passes times, then
// erodes once less, which closes gaps in faint strokes and leaves them one
// pass heavier.
func thicken(g *image.Gray, passes int) *image.Gray {
	cur := g
	for i := 0; i < passes; i++ {
		cur = morph(cur, true)
	}
	for i := 0; i < passes-1; i++ {
		cur = morph(cur, false)
	}
	return cur
}

// morph takes the neighbourhood minimum (darken) or maximum.
func morph(g *image.Gray, darken bool) *image.Gray {
	w, h := g.Rect.Dx(), g.Rect.Dy()
	out := image.NewGray(g.Rect)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			v := g.Pix[y*g.Stride+x]
			for _, d := range cross[1:] {
				x2, y2 := x+d[0], y+d[1]
				if x2 < 0 || y2 < 0 || x2 >= w || y2 >= h {
					continue
				}
				n := g.Pix[y2*g.Stride+x2]
				if (darken && n < v) || (!darken && n > v) {
					v = n
				}
			}
			out.Pix[y*out.Stride+x] = v
		}
	}
	return out
}
