package recognizer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"bond-log-enhancer/internal/domain"
	apperrors "bond-log-enhancer/pkg/errors"
)

// Attempt is the outcome of one backend on one page.
type Attempt struct {
	Backend     string
	Recognition domain.Recognition
	Hits        []string
	Err         error
	Duration    time.Duration
}

// Selection is the result adopted for a page plus every attempt made.
type Selection struct {
	Recognition domain.Recognition
	Hits        []string
	Attempts    []Attempt
}

// Err returns a recognition error when every backend that ran failed.
// A page where some backend succeeded with empty text is not a failure.
func (s Selection) Err() error {
	if len(s.Attempts) == 0 {
		return nil
	}
	var errs []error
	for _, a := range s.Attempts {
		if a.Err == nil {
			return nil
		}
		errs = append(errs, a.Err)
	}
	return errors.Join(errs...)
}

// Chain runs every configured backend on a page and adopts the result with the
// most vocabulary matches, then the longest text, then the earliest backend.
// Fallback backends run only when no primary backend produced text.
type Chain struct {
	primary  []domain.Recognizer
	fallback []domain.Recognizer
	vocab    domain.TargetVocabulary
	timeout  time.Duration
	logger   domain.Logger
}

// NewChain builds the selection policy. A non-positive timeout uses 90 seconds.
func NewChain(backends []domain.Recognizer, vocab domain.TargetVocabulary, timeout time.Duration, logger domain.Logger) *Chain {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	c := &Chain{vocab: vocab, timeout: timeout, logger: logger}
	for _, b := range backends {
		if isFallback(b) {
			c.fallback = append(c.fallback, b)
		} else {
			c.primary = append(c.primary, b)
		}
	}
	return c
}

// Backends returns the backend names in evaluation order.
func (c *Chain) Backends() []string {
	names := make([]string, 0, len(c.primary)+len(c.fallback))
	for _, b := range c.primary {
		names = append(names, b.Name())
	}
	for _, b := range c.fallback {
		names = append(names, b.Name())
	}
	return names
}

// Close releases backends that hold clients.
func (c *Chain) Close() error {
	return closeAll(append(append([]domain.Recognizer(nil), c.primary...), c.fallback...))
}

// Recognize never returns an error; failures are recorded on the attempts.
// Primary backends share one deadline for the page; backends still waiting
// when it passes are recorded as timed out without being called. Fallbacks
// run afterwards under a deadline of their own.
func (c *Chain) Recognize(ctx context.Context, in domain.RecognizeInput) Selection {
	var sel Selection
	best := -1

	run := func(backends []domain.Recognizer) {
		deadline, cancel := context.WithTimeout(ctx, c.timeout)
		defer cancel()
		for _, b := range backends {
			if ctx.Err() != nil {
				return
			}
			var a Attempt
			if deadline.Err() != nil {
				a = c.failed(b, in, 0, c.timeoutErr())
			} else {
				a = c.attempt(deadline, b, in)
			}
			sel.Attempts = append(sel.Attempts, a)
			if a.Err != nil || a.Recognition.Empty() {
				continue
			}
			if best < 0 || better(a, sel.Attempts[best]) {
				best = len(sel.Attempts) - 1
			}
		}
	}

	run(c.primary)
	if best < 0 {
		run(c.fallback)
	}

	if best >= 0 {
		sel.Recognition = sel.Attempts[best].Recognition
		sel.Hits = sel.Attempts[best].Hits
	}
	return sel
}

// better reports whether a beats the current best b. Earlier attempts win ties.
func better(a, b Attempt) bool {
	if len(a.Hits) != len(b.Hits) {
		return len(a.Hits) > len(b.Hits)
	}
	return len(a.Recognition.PlainText()) > len(b.Recognition.PlainText())
}

func (c *Chain) attempt(ctx context.Context, r domain.Recognizer, in domain.RecognizeInput) Attempt {
	start := time.Now()
	rec, err := c.call(ctx, r, in)
	if err != nil {
		return c.failed(r, in, time.Since(start), err)
	}
	a := Attempt{Backend: r.Name(), Duration: time.Since(start)}
	if rec.Backend == "" {
		rec.Backend = r.Name()
	}
	a.Recognition = rec
	a.Hits = c.vocab.Matches(rec.PlainText())
	if c.logger != nil {
		c.logger.Debug("Recognizer finished", "page", in.PageIndex+1, "backend", r.Name(),
			"chars", len(rec.PlainText()), "hits", len(a.Hits), "ms", a.Duration.Milliseconds())
	}
	return a
}

func (c *Chain) failed(r domain.Recognizer, in domain.RecognizeInput, took time.Duration, err error) Attempt {
	if c.logger != nil {
		c.logger.Warn("Recognizer failed; continuing", "page", in.PageIndex+1, "backend", r.Name(), "error", err)
	}
	return Attempt{
		Backend:  r.Name(),
		Duration: took,
		Err:      apperrors.NewRecognitionError(in.PageIndex+1, r.Name(), err),
	}
}

func (c *Chain) timeoutErr() error {
	return fmt.Errorf("timeout after %v", c.timeout)
}

// call returns when ctx ends even if the recognizer ignores it.
func (c *Chain) call(ctx context.Context, r domain.Recognizer, in domain.RecognizeInput) (domain.Recognition, error) {
	type result struct {
		rec domain.Recognition
		err error
	}
	resultCh := make(chan result, 1)
	go func() {
		rec, err := r.Recognize(ctx, in)
		resultCh <- result{rec: rec, err: err}
	}()

	select {
	case res := <-resultCh:
		return res.rec, res.err
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return domain.Recognition{}, c.timeoutErr()
		}
		return domain.Recognition{}, ctx.Err()
	}
}
