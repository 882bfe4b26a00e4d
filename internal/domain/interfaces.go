package domain

import (
	"context"
	"time"
)

// PageSource is a read-only, page-addressable input document.
type PageSource interface {
	PageCount() int
	Geometry(index int) (Geometry, error)
	Render(ctx context.Context, index int, dpi float64) (Bitmap, error)
	Close() error
}

// RecognizeInput carries one enhanced page to a recognizer backend.
type RecognizeInput struct {
	Bitmap    Bitmap
	PageIndex int
	Languages []string
}

// Recognizer maps a bitmap to text. Empty output is a valid result.
type Recognizer interface {
	Name() string
	Recognize(ctx context.Context, in RecognizeInput) (Recognition, error)
}

// RunRepository persists run summaries.
type RunRepository interface {
	Save(ctx context.Context, summary *RunSummary) error
	Get(ctx context.Context, id string) (*RunSummary, error)
}

// Logger defines the interface for logging operations
type Logger interface {
	Info(msg string, fields ...interface{})
	Error(msg string, err error, fields ...interface{})
	Debug(msg string, fields ...interface{})
	Warn(msg string, fields ...interface{})
}

// Config defines the interface for configuration management
type Config interface {
	GetServerPort() string
	GetUploadPath() string
	GetOutputPath() string
	GetMaxFileSize() int64
	GetLogLevel() string

	GetSupabaseURL() string
	GetSupabaseKey() string
	GetEnhancedBucket() string

	GetPreset() string
	GetDPI() float64
	GetRecognizers() []string
	GetTargetVocabulary() TargetVocabulary
	GetPagePolicy() string
	GetPageTimeout() time.Duration
	GetWorkers() int
	GetOverlayStyle() string
	GetOverlayOpacity() float64
	GetDebugDir() string
	GetPresetsFile() string

	GetCloudOCRURL() string
	GetCloudOCRToken() string
	GetCloudOCRRPS() float64
	GetSidecarDir() string
	GetTesseractLang() string

	GetVertexProject() string
	GetVertexLocation() string
	GetVertexModel() string

	// Validate reports settings that were given but could not be loaded.
	Validate() error
}
