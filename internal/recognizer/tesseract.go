//go:build ocr

package recognizer

import (
	"context"
	"fmt"
	"strings"

	"bond-log-enhancer/internal/domain"

	"github.com/otiai10/gosseract/v2"
)

// Tesseract recognizes text with the local Tesseract engine through gosseract.
// A fresh client is created per call because gosseract clients are not safe
// for concurrent use.
type Tesseract struct {
	cfg TesseractConfig
}

// NewTesseract returns the local engine backend.
func NewTesseract(cfg TesseractConfig) *Tesseract {
	if len(cfg.Languages) == 0 {
		cfg.Languages = []string{"eng"}
	}
	if cfg.PageSegMode == 0 {
		cfg.PageSegMode = int(gosseract.PSM_SINGLE_BLOCK)
	}
	return &Tesseract{cfg: cfg}
}

func (t *Tesseract) Name() string { return BackendTesseract }

// Recognize returns the page text and word boxes with confidences scaled to 0..1.
func (t *Tesseract) Recognize(ctx context.Context, in domain.RecognizeInput) (domain.Recognition, error) {
	if err := ctx.Err(); err != nil {
		return domain.Recognition{}, err
	}
	png, err := encodePNG(in.Bitmap)
	if err != nil {
		return domain.Recognition{}, err
	}

	client := gosseract.NewClient()
	defer client.Close()

	langs := t.cfg.Languages
	if len(in.Languages) > 0 {
		langs = in.Languages
	}
	if err := client.SetLanguage(langs...); err != nil {
		return domain.Recognition{}, fmt.Errorf("set language: %w", err)
	}
	if err := client.SetPageSegMode(gosseract.PageSegMode(t.cfg.PageSegMode)); err != nil {
		return domain.Recognition{}, fmt.Errorf("set page segmentation mode: %w", err)
	}
	if t.cfg.Whitelist != "" {
		if err := client.SetWhitelist(t.cfg.Whitelist); err != nil {
			return domain.Recognition{}, fmt.Errorf("set whitelist: %w", err)
		}
	}
	for k, v := range t.cfg.Variables {
		if err := client.SetVariable(gosseract.SettableVariable(k), v); err != nil {
			return domain.Recognition{}, fmt.Errorf("set variable %s: %w", k, err)
		}
	}
	if in.Bitmap.DPI > 0 {
		_ = client.SetVariable("user_defined_dpi", fmt.Sprintf("%d", int(in.Bitmap.DPI)))
	}
	if err := client.SetImageFromBytes(png); err != nil {
		return domain.Recognition{}, fmt.Errorf("set image: %w", err)
	}

	text, err := client.Text()
	if err != nil {
		return domain.Recognition{}, fmt.Errorf("ocr: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return domain.Recognition{}, err
	}

	boxes, err := client.GetBoundingBoxes(gosseract.RIL_WORD)
	if err != nil {
		// Text without positions is still usable; the overlay falls back to bands.
		return domain.Recognition{Backend: t.Name(), Text: strings.TrimSpace(text)}, nil
	}
	words := make([]domain.Word, 0, len(boxes))
	for _, b := range boxes {
		w := strings.TrimSpace(b.Word)
		if w == "" {
			continue
		}
		words = append(words, domain.Word{Text: w, Box: b.Box, Confidence: b.Confidence / 100})
	}
	return domain.Recognition{Backend: t.Name(), Text: strings.TrimSpace(text), Words: words}, nil
}
