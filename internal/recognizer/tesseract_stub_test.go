//go:build !ocr

package recognizer

import (
	"context"
	"testing"

	"bond-log-enhancer/internal/domain"

	"github.com/stretchr/testify/assert"
)

func TestTesseractStub_NotEnabled(t *testing.T) {
	_, err := NewTesseract(TesseractConfig{}).Recognize(context.Background(), testInput())
	assert.ErrorIs(t, err, domain.ErrOCRNotEnabled)
}
