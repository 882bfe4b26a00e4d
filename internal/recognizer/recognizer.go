// Package recognizer provides the text recognition backends and the policy
// that picks one result per page.
package recognizer

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"bond-log-enhancer/internal/domain"

	"github.com/disintegration/imaging"
)

// Backend names accepted by Build.
const (
	BackendTesseract  = "tesseract"
	BackendCloud      = "cloud"
	BackendSidecar    = "sidecar"
	BackendVocabulary = "vocabulary"
	BackendGemini     = "gemini"
)

// TesseractConfig configures the local engine. PageSegMode uses Tesseract's
// numbering; 0 selects 6 (single uniform block), which suits form scans.
type TesseractConfig struct {
	Languages   []string
	PageSegMode int
	Whitelist   string
	Variables   map[string]string
}

// Options configures the backends created by Build.
type Options struct {
	Vocabulary domain.TargetVocabulary
	Languages  []string
	Tesseract  TesseractConfig

	CloudURL   string
	CloudToken string
	CloudRPS   float64
	HTTPClient *http.Client

	SidecarDir string

	VertexProject  string
	VertexLocation string
	VertexModel    string

	Logger domain.Logger
}

// Build creates backends in the given order. Unknown or misconfigured names are errors.
func Build(names []string, opts Options) ([]domain.Recognizer, error) {
	out := make([]domain.Recognizer, 0, len(names))
	seen := make(map[string]bool, len(names))
	for _, raw := range names {
		name := strings.ToLower(strings.TrimSpace(raw))
		if name == "" || name == "none" || seen[name] {
			continue
		}
		seen[name] = true

		switch name {
		case BackendTesseract:
			cfg := opts.Tesseract
			if len(cfg.Languages) == 0 {
				cfg.Languages = opts.Languages
			}
			out = append(out, NewTesseract(cfg))
		case BackendCloud:
			c, err := NewCloud(CloudConfig{
				URL:    opts.CloudURL,
				Token:  opts.CloudToken,
				RPS:    opts.CloudRPS,
				Client: opts.HTTPClient,
			})
			if err != nil {
				closeAll(out)
				return nil, err
			}
			out = append(out, c)
		case BackendSidecar:
			s, err := NewSidecar(opts.SidecarDir)
			if err != nil {
				closeAll(out)
				return nil, err
			}
			out = append(out, s)
		case BackendVocabulary:
			out = append(out, NewVocabulary(opts.Vocabulary))
		case BackendGemini:
			g, err := NewGemini(context.Background(), GeminiConfig{
				Project:    opts.VertexProject,
				Location:   opts.VertexLocation,
				Model:      opts.VertexModel,
				RPS:        opts.CloudRPS,
				Vocabulary: opts.Vocabulary,
			})
			if err != nil {
				closeAll(out)
				return nil, err
			}
			out = append(out, g)
		default:
			closeAll(out)
			return nil, fmt.Errorf("%w: %s", domain.ErrUnknownBackend, raw)
		}
	}
	return out, nil
}

// closeAll closes the backends that hold connections.
func closeAll(backends []domain.Recognizer) error {
	var first error
	for _, b := range backends {
		if c, ok := b.(io.Closer); ok {
			if err := c.Close(); err != nil && first == nil {
				first = err
			}
		}
	}
	return first
}

// fallback is implemented by backends that only run when no primary backend produced text.
type fallback interface {
	Fallback() bool
}

func isFallback(r domain.Recognizer) bool {
	f, ok := r.(fallback)
	return ok && f.Fallback()
}

// encodePNG serializes a bitmap for engines and services that take image files.
func encodePNG(bm domain.Bitmap) ([]byte, error) {
	if bm.Empty() {
		return nil, fmt.Errorf("empty bitmap")
	}
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, bm.Image, imaging.PNG); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}

// pageFileName is the base name shared by sidecar files and uploads, 1-based.
func pageFileName(index int) string {
	return fmt.Sprintf("page-%04d", index+1)
}

const defaultTimeout = 90 * time.Second
