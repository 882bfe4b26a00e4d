package pipeline

import (
	"context"
	"fmt"
	"image"
	"path/filepath"
	"time"

	"bond-log-enhancer/internal/domain"
	"bond-log-enhancer/internal/enhance"
	"bond-log-enhancer/internal/overlay"
	apperrors "bond-log-enhancer/pkg/errors"

	"github.com/disintegration/imaging"
	"github.com/wudi/pdfkit/builder"
	"github.com/wudi/pdfkit/ir/semantic"
)

// pageWork is a processed page waiting to be appended.
type pageWork struct {
	output domain.Geometry
	bitmap domain.Bitmap
	runs   []domain.OverlayTextRun
	result domain.PageResult
}

// processPage renders, enhances and recognizes page i. Page level failures
// are recorded on the result; only cancellation is returned as an error.
func (p *Pipeline) processPage(ctx context.Context, r *run, i int) (*pageWork, error) {
	start := time.Now()
	w := &pageWork{result: domain.PageResult{Page: i + 1, Status: domain.PageStatusOK}}
	defer func() { w.result.DurationMS = time.Since(start).Milliseconds() }()

	source, err := r.src.Geometry(i)
	if err != nil || !source.Valid() {
		if err == nil {
			err = fmt.Errorf("invalid page size %.2fx%.2f", source.Width, source.Height)
		}
		source = domain.Letter
		w.fail(apperrors.NewPageRenderError(i+1, err))
	}
	w.output = p.cfg.PagePolicy.Output(source)
	w.result.Geometry = w.output
	if w.result.Status == domain.PageStatusFailed {
		return w, nil
	}

	bm, err := r.src.Render(ctx, i, r.dpi)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		if !apperrors.IsType(err, apperrors.ErrorTypePageRender) {
			err = apperrors.NewPageRenderError(i+1, err)
		}
		p.logger().Warn("Page render failed; using placeholder", "page", i+1, "error", err)
		w.fail(err)
		return w, nil
	}
	if bm.Empty() {
		w.fail(apperrors.NewPageRenderError(i+1, fmt.Errorf("empty bitmap")))
		return w, nil
	}

	if m := r.preset.Mask; m != nil {
		bm = enhance.Mask(bm, m.Ranges, m.FillColor())
	}
	bm = r.enhancer.Apply(bm)
	w.bitmap = bm
	p.snapshot(i, bm)

	if p.deps.Recognizer == nil {
		return w, nil
	}
	sel := p.deps.Recognizer.Recognize(ctx, domain.RecognizeInput{
		Bitmap:    bm,
		PageIndex: i,
		Languages: p.cfg.Languages,
	})
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := sel.Err(); err != nil {
		w.result.AddError(err)
	}

	rec := sel.Recognition
	text := rec.PlainText()
	w.result.Backend = rec.Backend
	w.result.VocabularyHits = sel.Hits
	w.result.RecognizedChars = len([]rune(text))

	switch {
	case len(rec.Words) > 0:
		w.runs = overlay.FromWords(rec.Words, bm, w.output, p.cfg.Overlay)
	case text != "":
		w.runs = overlay.Bands(text, w.output, p.cfg.Bands, p.cfg.Overlay)
	}
	return w, nil
}

func (w *pageWork) fail(err error) {
	w.result.AddError(err)
	w.result.Status = domain.PageStatusFailed
}

// snapshot writes the enhanced bitmap as page-NNNN.png into the debug dir.
func (p *Pipeline) snapshot(i int, bm domain.Bitmap) {
	if p.cfg.DebugDir == "" {
		return
	}
	path := filepath.Join(p.cfg.DebugDir, fmt.Sprintf("page-%04d.png", i+1))
	if err := imaging.Save(bm.Image, path); err != nil {
		p.logger().Warn("Failed to write debug snapshot", "page", i+1, "path", path, "error", err)
	}
}

// appendPage adds w as the next output page. The bitmap fills the page and
// overlay text is drawn after it, so overlay failures never touch the image.
func (p *Pipeline) appendPage(b builder.PDFBuilder, w *pageWork) domain.PageResult {
	res := w.result
	g := w.output
	pb := b.NewPage(g.Width, g.Height)

	if w.bitmap.Empty() {
		pb.DrawRectangle(0, 0, g.Width, g.Height, builder.RectOptions{
			Fill:      true,
			FillColor: builder.Color{R: 1, G: 1, B: 1, A: 1},
		})
		pb.Finish()
		return res
	}

	pb.DrawImage(pageImage(w.bitmap.Image), 0, 0, g.Width, g.Height, builder.ImageOptions{})

	applied, errs := overlay.Apply(pb, res.Page, g, w.runs, p.cfg.Overlay)
	for _, err := range errs {
		p.logger().Warn("Overlay run skipped", "page", res.Page, "error", err)
		res.AddError(err)
	}
	res.OverlayRuns = applied
	pb.Finish()
	return res
}

// pageImage converts an enhanced bitmap into an image XObject. Two-level
// images are packed to one bit per pixel, everything else is 8-bit gray.
func pageImage(img image.Image) *semantic.Image {
	g := grayOf(img)
	w, h := g.Rect.Dx(), g.Rect.Dy()

	xo := &semantic.Image{
		Width:      w,
		Height:     h,
		ColorSpace: semantic.DeviceColorSpace{Name: "DeviceGray"},
	}
	if bilevel(g) {
		xo.BitsPerComponent = 1
		xo.Data = packBits(g)
		return xo
	}

	data := make([]byte, 0, w*h)
	for y := 0; y < h; y++ {
		off := g.PixOffset(g.Rect.Min.X, g.Rect.Min.Y+y)
		data = append(data, g.Pix[off:off+w]...)
	}
	xo.BitsPerComponent = 8
	xo.Data = data
	return xo
}

func grayOf(img image.Image) *image.Gray {
	if g, ok := img.(*image.Gray); ok {
		return g
	}
	b := img.Bounds()
	g := image.NewGray(b)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			g.Set(x, y, img.At(x, y))
		}
	}
	return g
}

func bilevel(g *image.Gray) bool {
	w := g.Rect.Dx()
	for y := 0; y < g.Rect.Dy(); y++ {
		off := g.PixOffset(g.Rect.Min.X, g.Rect.Min.Y+y)
		for _, v := range g.Pix[off : off+w] {
			if v != 0 && v != 255 {
				return false
			}
		}
	}
	return true
}

// packBits packs a two-level image into rows of 1-bit samples, MSB first,
// each row padded to a whole byte. In DeviceGray a set bit is white.
func packBits(g *image.Gray) []byte {
	w, h := g.Rect.Dx(), g.Rect.Dy()
	stride := (w + 7) / 8
	out := make([]byte, stride*h)
	for y := 0; y < h; y++ {
		off := g.PixOffset(g.Rect.Min.X, g.Rect.Min.Y+y)
		row := out[y*stride : (y+1)*stride]
		for x, v := range g.Pix[off : off+w] {
			if v != 0 {
				row[x/8] |= 0x80 >> uint(x%8)
			}
		}
	}
	return out
}
