//go:build !ocr

package recognizer

import (
	"context"

	"bond-log-enhancer/internal/domain"
)

// Tesseract is the stub used when the binary is built without the "ocr" tag.
// Every call fails with domain.ErrOCRNotEnabled, which the chain records as a
// recognition failure. Rebuild with:
//
//	go build -tags ocr ./...
//
// which requires libtesseract and leptonica headers.
type Tesseract struct {
	cfg TesseractConfig
}

// NewTesseract returns the stub backend.
func NewTesseract(cfg TesseractConfig) *Tesseract {
	return &Tesseract{cfg: cfg}
}

func (t *Tesseract) Name() string { return BackendTesseract }

func (t *Tesseract) Recognize(ctx context.Context, in domain.RecognizeInput) (domain.Recognition, error) {
	return domain.Recognition{}, domain.ErrOCRNotEnabled
}
