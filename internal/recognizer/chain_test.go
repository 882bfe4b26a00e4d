package recognizer

import (
	"context"
	"errors"
	"image"
	"strings"
	"testing"
	"time"

	"bond-log-enhancer/internal/domain"
	apperrors "bond-log-enhancer/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type nopLogger struct{}

func (nopLogger) Info(string, ...interface{})         {}
func (nopLogger) Error(string, error, ...interface{}) {}
func (nopLogger) Debug(string, ...interface{})        {}
func (nopLogger) Warn(string, ...interface{})         {}

// fakeRecognizer returns a fixed text or error, optionally after a delay.
type fakeRecognizer struct {
	name  string
	text  string
	err   error
	delay time.Duration
	calls int
}

func (f *fakeRecognizer) Name() string { return f.name }

func (f *fakeRecognizer) Recognize(ctx context.Context, in domain.RecognizeInput) (domain.Recognition, error) {
	f.calls++
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	if f.err != nil {
		return domain.Recognition{}, f.err
	}
	return domain.Recognition{Text: f.text}, nil
}

func testInput() domain.RecognizeInput {
	return domain.RecognizeInput{
		Bitmap:    domain.Bitmap{Image: image.NewGray(image.Rect(0, 0, 4, 4)), DPI: 300},
		PageIndex: 1,
	}
}

var bondVocab = domain.NewTargetVocabulary("U521981590", "DOE, JANE A", "INTAKE DESK")

func TestChain_MostVocabularyMatchesWins(t *testing.T) {
	longNoHits := &fakeRecognizer{name: "a", text: strings.Repeat("noise ", 50)}
	twoHits := &fakeRecognizer{name: "b", text: "U521981590 doe, jane a"}
	oneHit := &fakeRecognizer{name: "c", text: "intake desk and a lot of other words here"}

	sel := NewChain([]domain.Recognizer{longNoHits, twoHits, oneHit}, bondVocab, time.Second, nopLogger{}).
		Recognize(context.Background(), testInput())

	assert.Equal(t, "b", sel.Recognition.Backend)
	assert.Equal(t, []string{"U521981590", "DOE, JANE A"}, sel.Hits)
	assert.Len(t, sel.Attempts, 3)
	assert.NoError(t, sel.Err())
}

func TestChain_TieBreaks(t *testing.T) {
	short := &fakeRecognizer{name: "short", text: "INTAKE DESK"}
	long := &fakeRecognizer{name: "long", text: "INTAKE DESK, second floor"}
	sameAsLong := &fakeRecognizer{name: "later", text: "INTAKE DESK, second floor"}

	sel := NewChain([]domain.Recognizer{short, long, sameAsLong}, bondVocab, time.Second, nopLogger{}).
		Recognize(context.Background(), testInput())

	// Longest text wins on equal hits; equal length keeps the earlier backend.
	assert.Equal(t, "long", sel.Recognition.Backend)
}

func TestChain_FailuresAreCollected(t *testing.T) {
	broken := &fakeRecognizer{name: "broken", err: errors.New("engine crashed")}
	ok := &fakeRecognizer{name: "ok", text: "MDC INTAKE"}

	sel := NewChain([]domain.Recognizer{broken, ok}, bondVocab, time.Second, nopLogger{}).
		Recognize(context.Background(), testInput())

	assert.Equal(t, "ok", sel.Recognition.Backend)
	require.Error(t, sel.Attempts[0].Err)
	assert.True(t, apperrors.IsType(sel.Attempts[0].Err, apperrors.ErrorTypeRecognition))
	assert.NoError(t, sel.Err(), "one working backend is enough")
}

func TestChain_AllFailIsEmptyWithError(t *testing.T) {
	a := &fakeRecognizer{name: "a", err: errors.New("boom")}
	b := &fakeRecognizer{name: "b", err: domain.ErrOCRNotEnabled}

	sel := NewChain([]domain.Recognizer{a, b}, bondVocab, time.Second, nopLogger{}).
		Recognize(context.Background(), testInput())

	assert.True(t, sel.Recognition.Empty())
	require.Error(t, sel.Err())
	assert.ErrorIs(t, sel.Err(), domain.ErrOCRNotEnabled)
	assert.True(t, apperrors.IsType(sel.Err(), apperrors.ErrorTypeRecognition))
}

func TestChain_EmptyOutputIsNotAFailure(t *testing.T) {
	blank := &fakeRecognizer{name: "blank", text: ""}

	sel := NewChain([]domain.Recognizer{blank}, bondVocab, time.Second, nopLogger{}).
		Recognize(context.Background(), testInput())

	assert.True(t, sel.Recognition.Empty())
	assert.NoError(t, sel.Err())
}

func TestChain_TimeoutFallsBackToEmpty(t *testing.T) {
	hung := &fakeRecognizer{name: "hung", text: "late", delay: 500 * time.Millisecond}

	start := time.Now()
	sel := NewChain([]domain.Recognizer{hung}, bondVocab, 30*time.Millisecond, nopLogger{}).
		Recognize(context.Background(), testInput())

	assert.Less(t, time.Since(start), 400*time.Millisecond)
	assert.True(t, sel.Recognition.Empty())
	require.Error(t, sel.Err())
	assert.Contains(t, sel.Err().Error(), "timeout")
}

func TestChain_TimeoutIsSharedByThePage(t *testing.T) {
	first := &fakeRecognizer{name: "first", text: "late", delay: time.Second}
	second := &fakeRecognizer{name: "second", text: "late", delay: time.Second}
	third := &fakeRecognizer{name: "third", text: "late", delay: time.Second}

	start := time.Now()
	sel := NewChain([]domain.Recognizer{first, second, third, NewVocabulary(bondVocab)}, bondVocab, 100*time.Millisecond, nopLogger{}).
		Recognize(context.Background(), testInput())

	assert.Less(t, time.Since(start), 250*time.Millisecond)
	require.Len(t, sel.Attempts, 4)
	for _, a := range sel.Attempts[:3] {
		require.Error(t, a.Err, a.Backend)
		assert.Contains(t, a.Err.Error(), "timeout")
	}
	assert.Zero(t, second.calls)
	assert.Zero(t, third.calls)
	assert.Equal(t, BackendVocabulary, sel.Recognition.Backend)
}

func TestChain_VocabularyIsFallbackOnly(t *testing.T) {
	vocab := NewVocabulary(bondVocab)

	withText := &fakeRecognizer{name: "ocr", text: "some recognized words"}
	sel := NewChain([]domain.Recognizer{vocab, withText}, bondVocab, time.Second, nopLogger{}).
		Recognize(context.Background(), testInput())
	assert.Equal(t, "ocr", sel.Recognition.Backend)
	assert.Len(t, sel.Attempts, 1, "fallback should not run when a primary produced text")

	failing := &fakeRecognizer{name: "ocr", err: domain.ErrOCRNotEnabled}
	chain := NewChain([]domain.Recognizer{failing, vocab}, bondVocab, time.Second, nopLogger{})
	sel = chain.Recognize(context.Background(), testInput())
	assert.Equal(t, BackendVocabulary, sel.Recognition.Backend)
	assert.Equal(t, bondVocab.Entries(), sel.Hits)
	assert.NoError(t, sel.Err())
	assert.Equal(t, []string{"ocr", "vocabulary"}, chain.Backends())
}

func TestChain_CancelledContextStops(t *testing.T) {
	a := &fakeRecognizer{name: "a", text: "text"}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	sel := NewChain([]domain.Recognizer{a}, bondVocab, time.Second, nopLogger{}).Recognize(ctx, testInput())

	assert.Equal(t, 0, a.calls)
	assert.True(t, sel.Recognition.Empty())
}
