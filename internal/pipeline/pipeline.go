// Package pipeline runs the page enhancement pipeline: every source page is
// rasterized, enhanced, optionally recognized and appended to a new PDF with
// an invisible text layer.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"bond-log-enhancer/internal/domain"
	"bond-log-enhancer/internal/enhance"
	"bond-log-enhancer/internal/overlay"
	"bond-log-enhancer/internal/raster"
	apperrors "bond-log-enhancer/pkg/errors"

	"github.com/google/uuid"
	"github.com/wudi/pdfkit/builder"
	"github.com/wudi/pdfkit/ir/semantic"
	"github.com/wudi/pdfkit/writer"
	"golang.org/x/sync/errgroup"
)

const producer = "bond-log-enhancer"

// Pipeline is one configured enhancement run.
type Pipeline struct {
	cfg  Config
	deps Dependencies
	log  domain.Logger
}

// New returns a pipeline for cfg. Configuration errors surface from Run.
func New(cfg Config, deps Dependencies) *Pipeline {
	if deps.Open == nil {
		deps.Open = openRaster
	}
	if deps.Presets == nil {
		deps.Presets = defaultPresets{}
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	return &Pipeline{cfg: cfg.withDefaults(), deps: deps}
}

// run holds the state resolved at the start of Run.
type run struct {
	preset   enhance.Preset
	enhancer *enhance.Enhancer
	dpi      float64
	src      domain.PageSource
}

// Run processes the input document and writes the output document. The
// returned summary is never nil. An error is returned only when the run could
// not produce an output: the source is unreadable, saving failed, the
// configuration is invalid or ctx was cancelled. Page level failures are
// recorded in the summary.
func (p *Pipeline) Run(ctx context.Context) (*domain.RunSummary, error) {
	summary := &domain.RunSummary{
		ID:         uuid.New().String(),
		InputPath:  p.cfg.InputPath,
		OutputPath: p.cfg.OutputPath,
		StartedAt:  p.deps.Now(),
	}
	p.log = p.deps.Logger
	if l, ok := p.log.(scopedLogger); ok {
		p.log = l.With("run_id", summary.ID)
	}
	fail := func(err error) (*domain.RunSummary, error) {
		summary.FatalError = err.Error()
		summary.FinishedAt = p.deps.Now()
		p.logger().Error("Enhancement run failed", err, "input", p.cfg.InputPath)
		return summary, err
	}

	if err := p.cfg.Validate(); err != nil {
		return fail(err)
	}
	preset, err := p.deps.Presets.Lookup(p.cfg.Preset)
	if err != nil {
		return fail(err)
	}
	summary.Preset = preset.Name
	enhancer, err := enhance.New(preset.Enhance)
	if err != nil {
		return fail(fmt.Errorf("preset %s: %w", preset.Name, err))
	}

	src, err := p.deps.Open(p.cfg.InputPath)
	if err != nil {
		if !apperrors.IsType(err, apperrors.ErrorTypeSourceUnreadable) {
			err = apperrors.NewSourceUnreadableError(p.cfg.InputPath, err)
		}
		return fail(err)
	}
	defer src.Close()

	r := &run{preset: preset, enhancer: enhancer, dpi: p.dpi(preset), src: src}
	summary.PageCount = src.PageCount()

	p.logger().Info("Enhancement run started",
		"input", p.cfg.InputPath,
		"pages", summary.PageCount,
		"preset", preset.Name,
		"dpi", r.dpi,
		"workers", p.cfg.Workers,
	)

	if p.cfg.DebugDir != "" {
		if err := os.MkdirAll(p.cfg.DebugDir, 0o755); err != nil {
			p.logger().Warn("Debug snapshots disabled", "dir", p.cfg.DebugDir, "error", err)
			p.cfg.DebugDir = ""
		}
	}

	b := builder.NewBuilder()
	b.SetInfo(p.documentInfo(src))

	emit := func(w *pageWork) {
		res := p.appendPage(b, w)
		summary.Record(res)
		p.logger().Debug("Page appended",
			"page", res.Page,
			"status", res.Status,
			"backend", res.Backend,
			"overlay_runs", res.OverlayRuns,
		)
		if p.deps.OnPage != nil {
			p.deps.OnPage(res)
		}
	}

	if p.cfg.Workers > 1 && summary.PageCount > 1 {
		err = p.processParallel(ctx, r, emit)
	} else {
		err = p.processSequential(ctx, r, emit)
	}
	if err != nil {
		return fail(err)
	}

	doc, err := b.Build()
	if err != nil {
		return fail(apperrors.NewSaveError(p.cfg.OutputPath, err))
	}
	if p.cfg.Overlay.Style == overlay.StyleBackground {
		for i, page := range doc.Pages {
			if i < len(summary.Pages) && summary.Pages[i].OverlayRuns > 0 {
				overlay.SetOpacity(page, p.cfg.Overlay.Opacity)
			}
		}
	}
	if len(doc.Pages) != summary.PageCount {
		return fail(apperrors.NewSaveError(p.cfg.OutputPath,
			fmt.Errorf("assembled %d pages for %d source pages", len(doc.Pages), summary.PageCount)))
	}

	if err := p.save(ctx, doc); err != nil {
		return fail(err)
	}

	summary.FinishedAt = p.deps.Now()
	p.logger().Info("Enhancement run finished",
		"output", p.cfg.OutputPath,
		"pages", summary.PagesProcessed,
		"pages_with_text", summary.PagesWithText,
		"pages_with_overlay", summary.PagesWithOverlay,
		"pages_failed", summary.PagesFailed,
	)
	return summary, nil
}

func (p *Pipeline) processSequential(ctx context.Context, r *run, emit func(*pageWork)) error {
	for i := 0; i < r.src.PageCount(); i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		w, err := p.processPage(ctx, r, i)
		if err != nil {
			return err
		}
		emit(w)
	}
	return nil
}

// processParallel runs up to Workers pages at once. Results are kept by index
// and emitted in source order once every page is done.
func (p *Pipeline) processParallel(ctx context.Context, r *run, emit func(*pageWork)) error {
	n := r.src.PageCount()
	works := make([]*pageWork, n)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.cfg.Workers)
	for i := 0; i < n; i++ {
		i := i
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			w, err := p.processPage(gctx, r, i)
			if err != nil {
				return err
			}
			works[i] = w
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	for _, w := range works {
		emit(w)
	}
	return nil
}

func (p *Pipeline) dpi(preset enhance.Preset) float64 {
	if p.cfg.DPI > 0 {
		return raster.ClampDPI(p.cfg.DPI)
	}
	return raster.ClampDPI(preset.DPI)
}

type metadataSource interface {
	Metadata() map[string]string
}

func (p *Pipeline) documentInfo(src domain.PageSource) *semantic.DocumentInfo {
	info := &semantic.DocumentInfo{
		Title:    p.cfg.Info.Title,
		Author:   p.cfg.Info.Author,
		Subject:  p.cfg.Info.Subject,
		Keywords: p.cfg.Info.Keywords,
		Creator:  producer,
		Producer: producer,
	}
	if m, ok := src.(metadataSource); ok {
		meta := m.Metadata()
		if info.Title == "" {
			info.Title = meta["title"]
		}
		if info.Author == "" {
			info.Author = meta["author"]
		}
	}
	if info.Title == "" {
		base := filepath.Base(p.cfg.InputPath)
		info.Title = base[:len(base)-len(filepath.Ext(base))]
	}
	return info
}

// save writes doc next to the output path and renames it into place, so a
// failed save never leaves a truncated document behind.
func (p *Pipeline) save(ctx context.Context, doc *semantic.Document) error {
	out := p.cfg.OutputPath
	if err := os.MkdirAll(filepath.Dir(out), 0o755); err != nil {
		return apperrors.NewSaveError(out, err)
	}
	f, err := os.CreateTemp(filepath.Dir(out), "."+filepath.Base(out)+".*")
	if err != nil {
		return apperrors.NewSaveError(out, err)
	}
	tmp := f.Name()

	w := (&writer.WriterBuilder{}).Build()
	werr := w.Write(ctx, doc, f, writer.Config{Compression: 9})
	cerr := f.Close()
	if err := errors.Join(werr, cerr); err != nil {
		os.Remove(tmp)
		return apperrors.NewSaveError(out, err)
	}
	if err := os.Rename(tmp, out); err != nil {
		os.Remove(tmp)
		return apperrors.NewSaveError(out, err)
	}
	return nil
}

// scopedLogger is a logger that can carry fields into every entry.
type scopedLogger interface {
	With(fields ...interface{}) domain.Logger
}

func (p *Pipeline) logger() domain.Logger {
	if p.log != nil {
		return p.log
	}
	if p.deps.Logger == nil {
		return nopLogger{}
	}
	return p.deps.Logger
}

type nopLogger struct{}

func (nopLogger) Info(string, ...interface{})         {}
func (nopLogger) Error(string, error, ...interface{}) {}
func (nopLogger) Debug(string, ...interface{})        {}
func (nopLogger) Warn(string, ...interface{})         {}
