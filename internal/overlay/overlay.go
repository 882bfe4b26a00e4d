// Package overlay turns recognized text into invisible text runs on output pages.
package overlay

import (
	"fmt"
	"image/color"
	"math"
	"strings"
	"unicode"

	"bond-log-enhancer/internal/domain"
	apperrors "bond-log-enhancer/pkg/errors"

	"github.com/wudi/pdfkit/builder"
	"github.com/wudi/pdfkit/contentstream"
	"github.com/wudi/pdfkit/ir/semantic"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Style selects how overlay text is painted.
type Style string

const (
	// StyleInvisible uses text render mode 3: selectable and searchable, never painted.
	StyleInvisible Style = "invisible"
	// StyleBackground paints the text in the background colour at a low opacity.
	StyleBackground Style = "background"
)

const (
	// ascentRatio is the Helvetica ascender height as a fraction of the font size.
	ascentRatio = 0.718
	// avgCharWidth is the average Helvetica advance width in em.
	avgCharWidth = 0.5

	defaultSizeRatio = 0.8
	defaultBands     = 3
	minFontSize      = 1.0

	alphaStateName = "GSOverlay"
)

// Options configures how runs are built and painted.
type Options struct {
	Style      Style
	Opacity    float64
	SizeRatio  float64
	Font       string
	Background color.Gray
}

// DefaultOptions returns invisible text at zero opacity on a white background.
func DefaultOptions() Options {
	return Options{
		Style:      StyleInvisible,
		SizeRatio:  defaultSizeRatio,
		Background: color.Gray{Y: 255},
	}
}

// ParseStyle maps a config value to a Style.
func ParseStyle(s string) (Style, error) {
	switch Style(strings.ToLower(strings.TrimSpace(s))) {
	case "", StyleInvisible:
		return StyleInvisible, nil
	case StyleBackground:
		return StyleBackground, nil
	default:
		return "", fmt.Errorf("unknown overlay style %q", s)
	}
}

func (o Options) sizeRatio() float64 {
	if o.SizeRatio <= 0 || o.SizeRatio > 1 || math.IsNaN(o.SizeRatio) {
		return defaultSizeRatio
	}
	return o.SizeRatio
}

func (o Options) opacity() float64 {
	if o.Style != StyleBackground {
		return 0
	}
	return math.Max(0, math.Min(1, o.Opacity))
}

// FromWords converts word boxes in bitmap pixels (origin top-left) into runs in
// page points (origin bottom-left). Words without text are dropped.
func FromWords(words []domain.Word, bm domain.Bitmap, page domain.Geometry, opts Options) []domain.OverlayTextRun {
	w, h := bm.Size()
	if w == 0 || h == 0 || !page.Valid() {
		return nil
	}
	origin := bm.Image.Bounds().Min
	sx := page.Width / float64(w)
	sy := page.Height / float64(h)

	runs := make([]domain.OverlayTextRun, 0, len(words))
	for _, word := range words {
		text := strings.TrimSpace(word.Text)
		if text == "" {
			continue
		}
		box := word.Box.Sub(origin).Canon()
		rect := domain.Rect{
			X:      float64(box.Min.X) * sx,
			Y:      page.Height - float64(box.Max.Y)*sy,
			Width:  float64(box.Dx()) * sx,
			Height: float64(box.Dy()) * sy,
		}
		runs = append(runs, domain.OverlayTextRun{
			Text:     text,
			Rect:     rect,
			FontSize: math.Max(minFontSize, rect.Height*opts.sizeRatio()),
			Color:    opts.Background,
			Opacity:  opts.opacity(),
		})
	}
	return runs
}

// Bands places text into n full-width horizontal bands, top to bottom. It is
// used when a backend produced text without positions, so that a search hit
// lands somewhere on the page. n <= 0 means three bands.
func Bands(text string, page domain.Geometry, n int, opts Options) []domain.OverlayTextRun {
	text = strings.Join(strings.Fields(text), " ")
	if text == "" || !page.Valid() {
		return nil
	}
	if n <= 0 {
		n = defaultBands
	}

	bandHeight := page.Height / float64(n)
	size := fitFontSize(text, page.Width, bandHeight*opts.sizeRatio())

	runs := make([]domain.OverlayTextRun, 0, n)
	for i := 0; i < n; i++ {
		runs = append(runs, domain.OverlayTextRun{
			Text: text,
			Rect: domain.Rect{
				X:      0,
				Y:      page.Height - float64(i+1)*bandHeight,
				Width:  page.Width,
				Height: bandHeight,
			},
			FontSize: size,
			Color:    opts.Background,
			Opacity:  opts.opacity(),
		})
	}
	return runs
}

// fitFontSize returns the largest size up to maxSize at which text fits width.
func fitFontSize(text string, width, maxSize float64) float64 {
	n := float64(len([]rune(text)))
	if n == 0 {
		return math.Max(minFontSize, maxSize)
	}
	return math.Max(minFontSize, math.Min(maxSize, width/(n*avgCharWidth)))
}

// Apply draws each run onto pb after whatever is already on the page. Runs with
// a malformed rectangle or no encodable text are skipped and returned as
// overlay insertion errors. page is the 1-based page number used in errors.
func Apply(pb builder.PageBuilder, page int, geometry domain.Geometry, runs []domain.OverlayTextRun, opts Options) (int, []error) {
	var (
		applied int
		errs    []error
	)
	for _, run := range runs {
		if problem := run.Rect.Problem(geometry); problem != "" {
			errs = append(errs, apperrors.NewOverlayInsertionError(page, fmt.Sprintf("%s: %q", problem, run.Text)))
			continue
		}
		text := Sanitize(run.Text)
		if text == "" {
			errs = append(errs, apperrors.NewOverlayInsertionError(page, fmt.Sprintf("no encodable text in %q", run.Text)))
			continue
		}
		size := run.FontSize
		if size <= 0 || math.IsNaN(size) || math.IsInf(size, 0) {
			size = math.Max(minFontSize, run.Rect.Height*opts.sizeRatio())
		}

		pb.DrawText(text, run.Rect.X, baseline(run.Rect, size), textOptions(text, run, size, opts))
		applied++
	}
	return applied, errs
}

func textOptions(text string, run domain.OverlayTextRun, size float64, opts Options) builder.TextOptions {
	to := builder.TextOptions{
		Font:         opts.Font,
		FontSize:     size,
		RenderMode:   contentstream.TextInvisible,
		HorizScaling: horizScaling(text, run.Rect.Width, size),
	}
	if opts.Style == StyleBackground {
		v := float64(run.Color.Y) / 255
		to.RenderMode = contentstream.TextFill
		// Pure black is the zero colour and would be dropped by the builder.
		to.Color = builder.Color{R: v, G: v, B: v, A: 1}
	}
	return to
}

// baseline centres the ascender box of the font vertically in r.
func baseline(r domain.Rect, size float64) float64 {
	return r.Y + (r.Height-size*ascentRatio)/2
}

// horizScaling stretches the run so its selection box spans the word width.
func horizScaling(text string, width, size float64) float64 {
	natural := float64(len(text)) * size * avgCharWidth
	if natural <= 0 || width <= 0 {
		return 100
	}
	return math.Max(10, math.Min(1000, width/natural*100))
}

// SetOpacity makes all text on page paint at the given fill alpha. Overlay
// text is drawn after the page image, so the graphics state is set right
// before the first text object and the image keeps full opacity.
func SetOpacity(page *semantic.Page, opacity float64) bool {
	if page == nil || len(page.Contents) == 0 {
		return false
	}
	ops := page.Contents[0].Operations
	at := -1
	for i, op := range ops {
		if op.Operator == "BT" {
			at = i
			break
		}
	}
	if at < 0 {
		return false
	}

	alpha := math.Max(0, math.Min(1, opacity))
	if page.Resources == nil {
		page.Resources = &semantic.Resources{}
	}
	if page.Resources.ExtGStates == nil {
		page.Resources.ExtGStates = make(map[string]semantic.ExtGState)
	}
	page.Resources.ExtGStates[alphaStateName] = semantic.ExtGState{FillAlpha: &alpha, StrokeAlpha: &alpha}

	gs := semantic.Operation{
		Operator: "gs",
		Operands: []semantic.Operand{semantic.NameOperand{Value: alphaStateName}},
	}
	out := make([]semantic.Operation, 0, len(ops)+1)
	out = append(out, ops[:at]...)
	out = append(out, gs)
	out = append(out, ops[at:]...)
	page.Contents[0].Operations = out
	return true
}

var foldMarks = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

var punctuation = strings.NewReplacer(
	"‘", "'", "’", "'", "‚", "'",
	"“", `"`, "”", `"`, "„", `"`,
	"–", "-", "—", "-", "−", "-",
	"…", "...", " ", " ", "­", "",
)

// Sanitize reduces s to printable ASCII, the subset the standard Helvetica font
// encodes the same way under every base encoding. Accents are folded, common
// typographic punctuation is replaced and whitespace runs are collapsed.
func Sanitize(s string) string {
	s = punctuation.Replace(s)
	if folded, _, err := transform.String(foldMarks, s); err == nil {
		s = folded
	}

	var b strings.Builder
	for _, r := range s {
		switch {
		case unicode.IsSpace(r):
			b.WriteByte(' ')
		case r >= 0x20 && r < 0x7f:
			b.WriteRune(r)
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}
