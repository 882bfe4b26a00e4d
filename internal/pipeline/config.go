package pipeline

import (
	"context"
	"fmt"
	"strings"
	"time"

	"bond-log-enhancer/internal/domain"
	"bond-log-enhancer/internal/enhance"
	"bond-log-enhancer/internal/overlay"
	"bond-log-enhancer/internal/raster"
	"bond-log-enhancer/internal/recognizer"
)

// PagePolicy decides the size of each output page.
type PagePolicy string

const (
	// PagePolicySource keeps the geometry of the matching source page.
	PagePolicySource PagePolicy = "source"
	// PagePolicyLetter normalizes every page to US Letter, turned for landscape sources.
	PagePolicyLetter PagePolicy = "letter"
)

// ParsePagePolicy maps a config value to a PagePolicy. Empty means source.
func ParsePagePolicy(s string) (PagePolicy, error) {
	switch PagePolicy(strings.ToLower(strings.TrimSpace(s))) {
	case "", PagePolicySource:
		return PagePolicySource, nil
	case PagePolicyLetter:
		return PagePolicyLetter, nil
	default:
		return "", &domain.ValidationError{Field: "page_policy", Message: fmt.Sprintf("unknown page policy %q", s)}
	}
}

// Output returns the output page geometry for a source page.
func (p PagePolicy) Output(source domain.Geometry) domain.Geometry {
	if p == PagePolicyLetter {
		return domain.Letter.OrientedLike(source)
	}
	return source
}

// DocumentInfo is written to the output document information dictionary.
// Empty fields are filled from the source document where it has them.
type DocumentInfo struct {
	Title    string
	Author   string
	Subject  string
	Keywords []string
}

// Config describes one enhancement run.
type Config struct {
	InputPath  string
	OutputPath string

	// Preset names the enhancement preset; empty selects "default".
	Preset string
	// DPI overrides the preset render resolution when positive.
	DPI float64

	PagePolicy PagePolicy
	// Workers > 1 processes pages concurrently. Output order is always source order.
	Workers int
	// DebugDir receives page-NNNN.png snapshots of each enhanced bitmap when set.
	DebugDir string

	Overlay overlay.Options
	// Bands is the number of fallback bands used for text without positions.
	Bands     int
	Languages []string

	Info DocumentInfo
}

func (c Config) withDefaults() Config {
	if c.PagePolicy == "" {
		c.PagePolicy = PagePolicySource
	}
	if c.Workers < 1 {
		c.Workers = 1
	}
	if c.Overlay.Style == "" {
		c.Overlay = overlay.DefaultOptions()
	}
	return c
}

// Validate reports missing paths and unknown policies.
func (c Config) Validate() error {
	if strings.TrimSpace(c.InputPath) == "" {
		return &domain.ValidationError{Field: "input", Message: "input path is required"}
	}
	if strings.TrimSpace(c.OutputPath) == "" {
		return &domain.ValidationError{Field: "output", Message: "output path is required"}
	}
	if _, err := ParsePagePolicy(string(c.PagePolicy)); err != nil {
		return err
	}
	if c.DPI < 0 || c.DPI > raster.MaxDPI {
		return &domain.ValidationError{Field: "dpi", Message: fmt.Sprintf("dpi must be between 0 and %d", int(raster.MaxDPI))}
	}
	return nil
}

// PageRecognizer picks recognized text for a page. *recognizer.Chain implements it.
type PageRecognizer interface {
	Recognize(ctx context.Context, in domain.RecognizeInput) recognizer.Selection
}

// PresetLookup resolves preset names. *enhance.Registry implements it.
type PresetLookup interface {
	Lookup(name string) (enhance.Preset, error)
}

// Dependencies are the collaborators of a run. Zero values fall back to the
// go-fitz rasterizer, the built-in presets and no recognition.
type Dependencies struct {
	// Open opens the source document. The returned source must allow
	// concurrent Render calls when Workers > 1.
	Open       func(path string) (domain.PageSource, error)
	Recognizer PageRecognizer
	Presets    PresetLookup
	Logger     domain.Logger
	// OnPage is called after each page is appended, in source order.
	OnPage func(domain.PageResult)
	// Now is used for run timestamps.
	Now func() time.Time
}

type defaultPresets struct{}

func (defaultPresets) Lookup(name string) (enhance.Preset, error) { return enhance.Lookup(name) }

func openRaster(path string) (domain.PageSource, error) {
	return raster.Open(path)
}
