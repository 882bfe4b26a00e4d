package enhance

import (
	"image"
	"image/color"
	"testing"

	"bond-log-enhancer/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// tintedCopy has two pink shades as background and black text in the middle rows.
func tintedCopy(w, h int) (domain.Bitmap, func(x, y int) bool) {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	isText := func(x, y int) bool { return y >= h/2-2 && y < h/2+2 && x%3 != 0 }
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			switch {
			case isText(x, y):
				img.Set(x, y, color.RGBA{A: 255})
			case (x+y)%2 == 0:
				img.Set(x, y, color.RGBA{R: 255, G: 192, B: 203, A: 255})
			default:
				img.Set(x, y, color.RGBA{R: 232, G: 150, B: 150, A: 255})
			}
		}
	}
	return domain.Bitmap{Image: img, DPI: 400}, isText
}

func variance(vals []float64) float64 {
	if len(vals) == 0 {
		return 0
	}
	var mean float64
	for _, v := range vals {
		mean += v
	}
	mean /= float64(len(vals))
	var sum float64
	for _, v := range vals {
		sum += (v - mean) * (v - mean)
	}
	return sum / float64(len(vals))
}

func TestMask_RemovesTintKeepsText(t *testing.T) {
	page, isText := tintedCopy(40, 20)

	var before []float64
	b := page.Image.Bounds()
	for y := 0; y < b.Dy(); y++ {
		for x := 0; x < b.Dx(); x++ {
			if !isText(x, y) {
				before = append(before, float64(color.GrayModel.Convert(page.Image.At(x, y)).(color.Gray).Y))
			}
		}
	}
	require.Greater(t, variance(before), 1.0, "fixture background should be noisy")

	out := Mask(page, PinkCarbonRanges, color.Gray{Y: 255})
	g, ok := out.Image.(*image.Gray)
	require.True(t, ok)

	var after []float64
	for y := 0; y < b.Dy(); y++ {
		for x := 0; x < b.Dx(); x++ {
			v := g.GrayAt(x, y).Y
			if isText(x, y) {
				assert.LessOrEqual(t, v, uint8(2), "text pixel at %d,%d", x, y)
				continue
			}
			after = append(after, float64(v))
		}
	}
	assert.InDelta(t, 0, variance(after), 1e-9)
	assert.Equal(t, 255.0, after[0])
	assert.Equal(t, 400.0, out.DPI)
}

func TestMask_OnlyOneShadeLeavesTheOther(t *testing.T) {
	page, _ := tintedCopy(10, 10)

	// The lighter shade sits near 350 degrees, the darker one at 0 degrees.
	out := Mask(page, []HueRange{{MinHue: 345, MaxHue: 355, MinSat: 0.1, MinVal: 0.1}}, color.Gray{Y: 255})
	g := out.Image.(*image.Gray)

	assert.Equal(t, uint8(255), g.GrayAt(0, 0).Y)
	assert.NotEqual(t, uint8(255), g.GrayAt(1, 0).Y)
}

func TestUnion_MergesOverlappingShades(t *testing.T) {
	shadeA := HueRange{MinHue: 330, MaxHue: 350, MinSat: 0.08, MinVal: 0.08}
	shadeB := HueRange{MinHue: 340, MaxHue: 20, MinSat: 0.08, MinVal: 0.08}

	got := Union([]HueRange{shadeA, shadeB})

	require.Len(t, got, 2)
	assert.Equal(t, 0.0, got[0].MinHue)
	assert.Equal(t, 20.0, got[0].MaxHue)
	assert.Equal(t, 330.0, got[1].MinHue)
	assert.Equal(t, 360.0, got[1].MaxHue)
	assert.Equal(t, 1.0, got[1].MaxSat)
}

func TestUnion_KeepsDifferentBands(t *testing.T) {
	pale := HueRange{MinHue: 300, MaxHue: 340, MinSat: 0.05, MaxSat: 0.2}
	deep := HueRange{MinHue: 320, MaxHue: 360, MinSat: 0.2}

	assert.Len(t, Union([]HueRange{pale, deep}), 2)
}

func TestUnion_MatchesAnyOfInputs(t *testing.T) {
	ranges := []HueRange{
		{MinHue: 350, MaxHue: 10, MinSat: 0.1, MinVal: 0.1},
		{MinHue: 5, MaxHue: 30, MinSat: 0.1, MinVal: 0.1},
	}
	union := Union(ranges)

	for h := 0.0; h < 360; h += 2.5 {
		var want bool
		for _, r := range ranges {
			n := r.normalized()
			if n.MinHue > n.MaxHue {
				want = want || h >= n.MinHue || h <= n.MaxHue
			} else {
				want = want || (h >= n.MinHue && h <= n.MaxHue)
			}
		}
		var got bool
		for _, r := range union {
			got = got || r.contains(h, 0.5, 0.5)
		}
		assert.Equal(t, want, got, "hue %v", h)
	}
}

func TestHueRange_Validate(t *testing.T) {
	assert.NoError(t, PinkCarbonRanges[0].Validate())
	assert.Error(t, HueRange{MinHue: -1, MaxHue: 10}.Validate())
	assert.Error(t, HueRange{MinHue: 0, MaxHue: 10, MinSat: 0.5, MaxSat: 0.2}.Validate())
}
