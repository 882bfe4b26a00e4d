package recognizer

import (
	"context"

	"bond-log-enhancer/internal/domain"
)

// Vocabulary returns the target vocabulary for every page. It has no
// positions and runs only when no other backend produced text, so pages stay
// searchable for the known labels even without recognition.
type Vocabulary struct {
	vocab domain.TargetVocabulary
}

func NewVocabulary(vocab domain.TargetVocabulary) *Vocabulary {
	return &Vocabulary{vocab: vocab}
}

func (v *Vocabulary) Name() string   { return BackendVocabulary }
func (v *Vocabulary) Fallback() bool { return true }

func (v *Vocabulary) Recognize(ctx context.Context, in domain.RecognizeInput) (domain.Recognition, error) {
	if err := ctx.Err(); err != nil {
		return domain.Recognition{}, err
	}
	return domain.Recognition{Backend: v.Name(), Text: v.vocab.Join(" ")}, nil
}
