// Package watcher processes PDFs dropped into an inbox directory.
package watcher

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"bond-log-enhancer/internal/domain"

	"github.com/fsnotify/fsnotify"
)

const (
	defaultSettle = 300 * time.Millisecond
	tick          = 250 * time.Millisecond
)

// Handler processes one settled PDF in the inbox.
type Handler func(ctx context.Context, path string) error

// Config configures an inbox watcher.
type Config struct {
	Inbox string
	// Settle is how long a file must go without events before it is handled.
	Settle time.Duration
	// Existing also handles PDFs already in the inbox at start.
	Existing bool
	Workers  int
}

// Watcher debounces filesystem events on the inbox and hands stable PDFs to
// a handler on a small worker pool.
type Watcher struct {
	cfg     Config
	handle  Handler
	logger  domain.Logger
	mu      sync.Mutex
	handled map[string]time.Time
}

// New creates a watcher for cfg.Inbox.
func New(cfg Config, handle Handler, logger domain.Logger) (*Watcher, error) {
	info, err := os.Stat(cfg.Inbox)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, &domain.ValidationError{Field: "inbox", Message: cfg.Inbox + " is not a directory"}
	}
	if cfg.Settle <= 0 {
		cfg.Settle = defaultSettle
	}
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	return &Watcher{cfg: cfg, handle: handle, logger: logger, handled: make(map[string]time.Time)}, nil
}

// Run blocks until ctx is cancelled or the underlying watcher fails.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer fw.Close()
	if err := fw.Add(w.cfg.Inbox); err != nil {
		return err
	}
	w.logger.Info("Watching inbox", "dir", w.cfg.Inbox, "workers", w.cfg.Workers)

	files := make(chan string, 256)
	var wg sync.WaitGroup
	for i := 0; i < w.cfg.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for path := range files {
				w.process(ctx, path)
			}
		}()
	}
	defer func() {
		close(files)
		wg.Wait()
	}()

	pending := map[string]time.Time{}
	if w.cfg.Existing {
		entries, err := os.ReadDir(w.cfg.Inbox)
		if err != nil {
			return err
		}
		for _, e := range entries {
			if !e.IsDir() && IsPDF(e.Name()) {
				pending[filepath.Join(w.cfg.Inbox, e.Name())] = time.Time{}
			}
		}
	}

	ticker := time.NewTicker(tick)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-fw.Events:
			if !ok {
				return errors.New("inbox watcher closed")
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write) == 0 || !IsPDF(ev.Name) {
				continue
			}
			pending[ev.Name] = time.Now()
		case err, ok := <-fw.Errors:
			if !ok {
				return errors.New("inbox watcher closed")
			}
			w.logger.Warn("Inbox watch error", "error", err)
		case <-ticker.C:
			now := time.Now()
			for path, last := range pending {
				if now.Sub(last) < w.cfg.Settle {
					continue
				}
				delete(pending, path)
				if !w.changed(path) {
					continue
				}
				select {
				case files <- path:
				case <-ctx.Done():
					return nil
				}
			}
		}
	}
}

// changed reports whether path has a modification time not yet handled.
func (w *Watcher) changed(path string) bool {
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return false
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if prev, ok := w.handled[path]; ok && prev.Equal(info.ModTime()) {
		return false
	}
	w.handled[path] = info.ModTime()
	return true
}

func (w *Watcher) process(ctx context.Context, path string) {
	start := time.Now()
	w.logger.Info("Inbox file ready", "path", path)
	if err := w.handle(ctx, path); err != nil {
		w.logger.Error("Failed to process inbox file", err, "path", path)
		return
	}
	w.logger.Info("Inbox file processed", "path", path, "duration_ms", time.Since(start).Milliseconds())
}

// IsPDF reports whether name looks like a PDF and is not a hidden or partial file.
func IsPDF(name string) bool {
	base := filepath.Base(name)
	if strings.HasPrefix(base, ".") {
		return false
	}
	return strings.EqualFold(filepath.Ext(base), ".pdf")
}
