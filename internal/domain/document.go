package domain

import (
	"image"
	"image/color"
	"strings"
	"time"
)

// Word is a recognized token with its pixel bounding box.
type Word struct {
	Text       string          `json:"text"`
	Box        image.Rectangle `json:"box"`
	Confidence float64         `json:"confidence"` // 0..1
}

// Recognition is the output of one recognizer backend for one page.
type Recognition struct {
	Backend string `json:"backend"`
	Text    string `json:"text"`
	Words   []Word `json:"words,omitempty"`
}

// Empty reports whether the recognition carries no usable text.
func (r Recognition) Empty() bool {
	if strings.TrimSpace(r.Text) != "" {
		return false
	}
	for _, w := range r.Words {
		if strings.TrimSpace(w.Text) != "" {
			return false
		}
	}
	return true
}

// PlainText returns the recognized text, joining word tokens when no text block was produced.
func (r Recognition) PlainText() string {
	if strings.TrimSpace(r.Text) != "" || len(r.Words) == 0 {
		return strings.TrimSpace(r.Text)
	}
	parts := make([]string, 0, len(r.Words))
	for _, w := range r.Words {
		if t := strings.TrimSpace(w.Text); t != "" {
			parts = append(parts, t)
		}
	}
	return strings.Join(parts, " ")
}

// OverlayTextRun is one invisible text annotation attached to an output page.
type OverlayTextRun struct {
	Text     string     `json:"text"`
	Rect     Rect       `json:"rect"`
	FontSize float64    `json:"font_size"`
	Color    color.Gray `json:"-"`
	Opacity  float64    `json:"opacity"`
}

// PageStatus summarizes how a single page went through the pipeline.
type PageStatus string

const (
	PageStatusOK      PageStatus = "ok"
	PageStatusPartial PageStatus = "partial"
	PageStatusFailed  PageStatus = "failed"
)

// PageResult is the typed outcome of processing one page.
type PageResult struct {
	Page            int        `json:"page"` // 1-based
	Status          PageStatus `json:"status"`
	Geometry        Geometry   `json:"geometry"`
	Backend         string     `json:"backend,omitempty"`
	RecognizedChars int        `json:"recognized_chars"`
	VocabularyHits  []string   `json:"vocabulary_hits,omitempty"`
	OverlayRuns     int        `json:"overlay_runs"`
	Errors          []string   `json:"errors,omitempty"`
	DurationMS      int64      `json:"duration_ms"`
}

// AddError records a non-fatal failure and downgrades the status.
func (p *PageResult) AddError(err error) {
	if err == nil {
		return
	}
	p.Errors = append(p.Errors, err.Error())
	if p.Status == PageStatusOK || p.Status == "" {
		p.Status = PageStatusPartial
	}
}

// RunSummary aggregates the page results of one pipeline run.
type RunSummary struct {
	ID               string       `json:"id"`
	InputPath        string       `json:"input_path"`
	OutputPath       string       `json:"output_path"`
	Preset           string       `json:"preset"`
	PageCount        int          `json:"page_count"`
	PagesProcessed   int          `json:"pages_processed"`
	PagesWithText    int          `json:"pages_with_text"`
	PagesWithOverlay int          `json:"pages_with_overlay"`
	PagesFailed      int          `json:"pages_failed"`
	Pages            []PageResult `json:"pages"`
	FatalError       string       `json:"fatal_error,omitempty"`
	StartedAt        time.Time    `json:"started_at"`
	FinishedAt       time.Time    `json:"finished_at"`
}

// Record appends a page result and updates the counters.
func (s *RunSummary) Record(p PageResult) {
	s.Pages = append(s.Pages, p)
	s.PagesProcessed++
	if p.RecognizedChars > 0 {
		s.PagesWithText++
	}
	if p.OverlayRuns > 0 {
		s.PagesWithOverlay++
	}
	if p.Status == PageStatusFailed {
		s.PagesFailed++
	}
}

// Succeeded reports whether the run finished without a fatal error.
func (s *RunSummary) Succeeded() bool {
	return s.FatalError == ""
}
