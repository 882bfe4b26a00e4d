package domain

import "errors"

// Domain errors
var (
	ErrRunNotFound      = errors.New("enhancement run not found")
	ErrDocumentNotFound = errors.New("enhanced document not found")
	ErrInvalidToken     = errors.New("invalid token")
	ErrInvalidFile      = errors.New("invalid file")
	ErrUnknownPreset    = errors.New("unknown enhancement preset")
	ErrUnknownBackend   = errors.New("unknown recognizer backend")
	ErrOCRNotEnabled    = errors.New("tesseract support not compiled in (build with -tags ocr)")
	ErrPageOutOfRange   = errors.New("page index out of range")
)

// ValidationError represents a validation error with field and message information.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return e.Field + ": " + e.Message
	}
	return e.Message
}
