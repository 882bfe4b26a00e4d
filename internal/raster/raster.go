// Package raster renders pages of a source PDF to bitmaps with go-fitz.
package raster

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"io"
	"math"
	"os"
	"sync"

	"bond-log-enhancer/internal/domain"
	apperrors "bond-log-enhancer/pkg/errors"

	"github.com/gen2brain/go-fitz"
	"github.com/wudi/pdfkit/ir"
	"github.com/wudi/pdfkit/ir/semantic"
)

const (
	// PointsPerInch is the PDF user space unit; a page rendered at 72 DPI has one pixel per point.
	PointsPerInch = 72.0
	DefaultDPI    = 300.0
	MaxDPI        = 1200.0
)

// Source is an opened, read-only PDF. go-fitz handles are not safe for
// concurrent use so every call holds mu.
type Source struct {
	mu   sync.Mutex
	doc  *fitz.Document
	path string
	data []byte
	n    int

	boxesRead bool
	boxes     []domain.Geometry
}

var _ domain.PageSource = (*Source)(nil)

// Open opens the PDF at path. Failure is a source_unreadable error.
func Open(path string) (*Source, error) {
	doc, err := fitz.New(path)
	if err != nil {
		return nil, apperrors.NewSourceUnreadableError(path, err)
	}
	return newSource(doc, path)
}

// OpenBytes opens a PDF held in memory.
func OpenBytes(data []byte, name string) (*Source, error) {
	doc, err := fitz.NewFromMemory(data)
	if err != nil {
		return nil, apperrors.NewSourceUnreadableError(name, err)
	}
	src, err := newSource(doc, name)
	if err != nil {
		return nil, err
	}
	src.data = data
	return src, nil
}

func newSource(doc *fitz.Document, path string) (*Source, error) {
	n := doc.NumPage()
	if n <= 0 {
		doc.Close()
		return nil, apperrors.NewSourceUnreadableError(path, fmt.Errorf("document has no pages"))
	}
	return &Source{doc: doc, path: path, n: n}, nil
}

// Path returns the name the source was opened with.
func (s *Source) Path() string {
	return s.path
}

// PageCount returns the number of pages.
func (s *Source) PageCount() int {
	return s.n
}

// Geometry returns the page size in points.
func (s *Source) Geometry(index int) (domain.Geometry, error) {
	if index < 0 || index >= s.n {
		return domain.Geometry{}, domain.ErrPageOutOfRange
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.doc == nil {
		return domain.Geometry{}, fmt.Errorf("source closed")
	}

	// Bound reports the page box at 72 DPI, i.e. in points, truncated to whole points.
	b, err := s.doc.Bound(index)
	if err != nil {
		return domain.Geometry{}, err
	}
	g := domain.Geometry{Width: float64(b.Dx()), Height: float64(b.Dy())}

	// The parsed box is only trusted when it agrees with go-fitz up to the truncation.
	if boxes := s.pageBoxes(); index < len(boxes) {
		exact := boxes[index]
		if math.Abs(exact.Width-g.Width) <= 1 && math.Abs(exact.Height-g.Height) <= 1 {
			return exact, nil
		}
	}
	return g, nil
}

// pageBoxes reads the page boxes at full precision with the pdfkit parser.
// It runs once; nil means the document could not be parsed. Callers hold mu.
func (s *Source) pageBoxes() []domain.Geometry {
	if s.boxesRead {
		return s.boxes
	}
	s.boxesRead = true

	var r io.ReaderAt
	if s.data != nil {
		r = bytes.NewReader(s.data)
	} else {
		f, err := os.Open(s.path)
		if err != nil {
			return nil
		}
		defer f.Close()
		r = f
	}

	doc, err := ir.NewDefault().Parse(context.Background(), r)
	if err != nil || len(doc.Pages) != s.n {
		return nil
	}
	boxes := make([]domain.Geometry, len(doc.Pages))
	for i, p := range doc.Pages {
		if p == nil {
			return nil
		}
		boxes[i] = pageGeometry(p)
	}
	s.boxes = boxes
	return boxes
}

// pageGeometry is the visible page size: the crop box, scaled by UserUnit and
// turned by Rotate.
func pageGeometry(p *semantic.Page) domain.Geometry {
	box := p.CropBox
	if box.URX-box.LLX == 0 || box.URY-box.LLY == 0 {
		box = p.MediaBox
	}
	g := domain.Geometry{
		Width:  math.Abs(box.URX - box.LLX),
		Height: math.Abs(box.URY - box.LLY),
	}
	if p.UserUnit > 0 {
		g.Width *= p.UserUnit
		g.Height *= p.UserUnit
	}
	if r := ((p.Rotate % 360) + 360) % 360; r == 90 || r == 270 {
		g.Width, g.Height = g.Height, g.Width
	}
	return g
}

// Render rasterizes one page. Pixel dimensions are the page size times dpi/72.
func (s *Source) Render(ctx context.Context, index int, dpi float64) (domain.Bitmap, error) {
	if err := ctx.Err(); err != nil {
		return domain.Bitmap{}, err
	}
	if index < 0 || index >= s.n {
		return domain.Bitmap{}, apperrors.NewPageRenderError(index+1, domain.ErrPageOutOfRange)
	}
	dpi = ClampDPI(dpi)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.doc == nil {
		return domain.Bitmap{}, apperrors.NewPageRenderError(index+1, fmt.Errorf("source closed"))
	}

	img, err := s.doc.ImageDPI(index, dpi)
	if err != nil {
		return domain.Bitmap{}, apperrors.NewPageRenderError(index+1, err)
	}
	return domain.Bitmap{Image: img, DPI: dpi}, nil
}

// Text returns the embedded text of a page.
func (s *Source) Text(index int) (string, error) {
	if index < 0 || index >= s.n {
		return "", domain.ErrPageOutOfRange
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.doc == nil {
		return "", fmt.Errorf("source closed")
	}
	return s.doc.Text(index)
}

// Metadata returns the document info dictionary.
func (s *Source) Metadata() map[string]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.doc == nil {
		return nil
	}
	return s.doc.Metadata()
}

// Close releases the go-fitz handle. It is safe to call more than once.
func (s *Source) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.doc == nil {
		return nil
	}
	err := s.doc.Close()
	s.doc = nil
	return err
}

// ClampDPI replaces non-positive values with DefaultDPI and caps at MaxDPI.
func ClampDPI(dpi float64) float64 {
	switch {
	case dpi <= 0:
		return DefaultDPI
	case dpi > MaxDPI:
		return MaxDPI
	default:
		return dpi
	}
}

// DPIFromScale converts a linear zoom factor into DPI (scale 1 == 72 DPI).
func DPIFromScale(scale float64) float64 {
	return scale * PointsPerInch
}

// ScaleFromDPI converts DPI into a linear zoom factor.
func ScaleFromDPI(dpi float64) float64 {
	return dpi / PointsPerInch
}

// PixelSize returns the expected bitmap size for a page rendered at dpi.
func PixelSize(g domain.Geometry, dpi float64) image.Point {
	s := ScaleFromDPI(dpi)
	return image.Pt(int(g.Width*s+0.5), int(g.Height*s+0.5))
}
