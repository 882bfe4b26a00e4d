// Package verify checks that an enhanced document is searchable by
// extracting the text layer of every page with go-fitz.
package verify

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"bond-log-enhancer/internal/domain"
	apperrors "bond-log-enhancer/pkg/errors"

	"github.com/gen2brain/go-fitz"
)

// DefaultPageTimeout bounds text extraction for a single page.
const DefaultPageTimeout = 90 * time.Second

// Metadata is what go-fitz reports about the document.
type Metadata struct {
	PageCount int    `json:"page_count"`
	Title     string `json:"title,omitempty"`
	Author    string `json:"author,omitempty"`
	Producer  string `json:"producer,omitempty"`
}

// TermHits lists the 1-based pages on which a term was found.
type TermHits struct {
	Term  string `json:"term"`
	Pages []int  `json:"pages"`
}

// Report is the result of searching a document for a set of terms.
type Report struct {
	Metadata    Metadata   `json:"metadata"`
	Terms       []TermHits `json:"terms"`
	PagesNoText []int      `json:"pages_without_text,omitempty"`
	// Failed holds pages whose extraction errored or timed out.
	Failed []int `json:"failed_pages,omitempty"`
}

// Found reports whether every term was found on at least one page.
func (r *Report) Found() bool {
	for _, t := range r.Terms {
		if len(t.Pages) == 0 {
			return false
		}
	}
	return true
}

// Pages returns the pages containing term, matched case-insensitively.
func (r *Report) Pages(term string) []int {
	for _, t := range r.Terms {
		if strings.EqualFold(t.Term, term) {
			return t.Pages
		}
	}
	return nil
}

// Verifier extracts page text and searches it.
type Verifier struct {
	logger      domain.Logger
	pageTimeout time.Duration
}

// NewVerifier creates a verifier. A non-positive timeout uses DefaultPageTimeout.
func NewVerifier(logger domain.Logger, pageTimeout time.Duration) *Verifier {
	if pageTimeout <= 0 {
		pageTimeout = DefaultPageTimeout
	}
	return &Verifier{logger: logger, pageTimeout: pageTimeout}
}

// SearchFile opens the PDF at path and searches it for terms.
func (v *Verifier) SearchFile(ctx context.Context, path string, terms []string, onPage func(page int, text string)) (*Report, error) {
	doc, err := fitz.New(path)
	if err != nil {
		return nil, apperrors.NewSourceUnreadableError(path, err)
	}
	return v.searchDocument(ctx, doc, terms, onPage)
}

// SearchReader searches a PDF read fully from r.
func (v *Verifier) SearchReader(ctx context.Context, r io.Reader, terms []string) (*Report, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read PDF: %w", err)
	}
	doc, err := fitz.NewFromMemory(data)
	if err != nil {
		return nil, apperrors.NewSourceUnreadableError("upload", err)
	}
	return v.searchDocument(ctx, doc, terms, nil)
}

// textDocument is the part of *fitz.Document the verifier uses.
type textDocument interface {
	NumPage() int
	Metadata() map[string]string
	Text(pageNumber int) (string, error)
	Close() error
}

type pageText struct {
	text string
	err  error
}

// searchDocument searches doc and closes it. Extractions abandoned on timeout
// or cancellation still hold the document, so Close waits for them.
func (v *Verifier) searchDocument(ctx context.Context, doc textDocument, terms []string, onPage func(int, string)) (*Report, error) {
	var inflight sync.WaitGroup
	defer closeWhenIdle(doc, &inflight)
	return v.search(ctx, doc, &inflight, terms, onPage)
}

// closeWhenIdle closes doc now if no extraction is running, otherwise in the
// background once the last one returns. go-fitz Close does not wait for them.
func closeWhenIdle(doc io.Closer, inflight *sync.WaitGroup) {
	idle := make(chan struct{})
	go func() {
		inflight.Wait()
		close(idle)
	}()
	select {
	case <-idle:
		doc.Close()
	default:
		go func() {
			<-idle
			doc.Close()
		}()
	}
}

func (v *Verifier) search(ctx context.Context, doc textDocument, inflight *sync.WaitGroup, terms []string, onPage func(int, string)) (*Report, error) {
	meta := doc.Metadata()
	report := &Report{
		Metadata: Metadata{
			PageCount: doc.NumPage(),
			Title:     meta["title"],
			Author:    meta["author"],
			Producer:  meta["producer"],
		},
	}

	needles := make([]string, 0, len(terms))
	for _, t := range terms {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		report.Terms = append(report.Terms, TermHits{Term: t, Pages: []int{}})
		needles = append(needles, normalize(t))
	}

	for i := 0; i < report.Metadata.PageCount; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		text, err := v.pageText(ctx, doc, inflight, i)
		if err != nil {
			v.logger.Warn("Failed to extract text from page", "page", i+1, "total", report.Metadata.PageCount, "error", err)
			report.Failed = append(report.Failed, i+1)
			continue
		}
		text = sanitizeText(text)
		if onPage != nil {
			onPage(i+1, text)
		}
		if strings.TrimSpace(text) == "" {
			report.PagesNoText = append(report.PagesNoText, i+1)
			continue
		}

		haystack := normalize(text)
		for j, n := range needles {
			if strings.Contains(haystack, n) {
				report.Terms[j].Pages = append(report.Terms[j].Pages, i+1)
			}
		}
	}
	return report, nil
}

// pageText extracts one page under the page timeout. go-fitz cannot be
// interrupted, so on timeout the extraction goroutine is left to drain and
// stays counted in inflight until it returns.
func (v *Verifier) pageText(ctx context.Context, doc textDocument, inflight *sync.WaitGroup, i int) (string, error) {
	ch := make(chan pageText, 1)
	inflight.Add(1)
	go func() {
		defer inflight.Done()
		t, err := doc.Text(i)
		ch <- pageText{text: t, err: err}
	}()

	timer := time.NewTimer(v.pageTimeout)
	defer timer.Stop()
	select {
	case res := <-ch:
		return res.text, res.err
	case <-timer.C:
		return "", fmt.Errorf("timeout after %v", v.pageTimeout)
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// normalize lower-cases s and collapses whitespace runs, so terms match
// across the line breaks the text layer may insert.
func normalize(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}

// sanitizeText removes NUL and control characters other than tab and line
// breaks, and drops invalid runes, so page text is safe to JSON encode.
func sanitizeText(text string) string {
	var b strings.Builder
	b.Grow(len(text))
	for _, r := range text {
		switch {
		case r == '\t' || r == '\n' || r == '\r':
			b.WriteRune(r)
		case r < 0x20 || r == 0x7f:
		case r == '�':
		case r >= 0xD800 && r <= 0xDFFF:
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}
