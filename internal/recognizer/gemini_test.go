package recognizer

import (
	"context"
	"errors"
	"testing"

	"bond-log-enhancer/internal/domain"

	"cloud.google.com/go/vertexai/genai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeGenerator struct {
	resp  *genai.GenerateContentResponse
	err   error
	parts []genai.Part
}

func (f *fakeGenerator) GenerateContent(ctx context.Context, parts ...genai.Part) (*genai.GenerateContentResponse, error) {
	f.parts = parts
	return f.resp, f.err
}

func textResponse(parts ...string) *genai.GenerateContentResponse {
	content := &genai.Content{Role: "model"}
	for _, p := range parts {
		content.Parts = append(content.Parts, genai.Text(p))
	}
	return &genai.GenerateContentResponse{Candidates: []*genai.Candidate{{Content: content}}}
}

func TestGemini_JoinsTextParts(t *testing.T) {
	gen := &fakeGenerator{resp: textResponse("BOOKING FACE SHEET\n", "U521981590")}
	g := newGemini(nil, gen, GeminiConfig{Vocabulary: bondVocab})

	rec, err := g.Recognize(context.Background(), testInput())
	require.NoError(t, err)

	assert.Equal(t, BackendGemini, rec.Backend)
	assert.Equal(t, "BOOKING FACE SHEET\nU521981590", rec.Text)

	require.Len(t, gen.parts, 2)
	blob, ok := gen.parts[0].(genai.Blob)
	require.True(t, ok)
	assert.Equal(t, "image/png", blob.MIMEType)
	assert.NotEmpty(t, blob.Data)
	prompt, ok := gen.parts[1].(genai.Text)
	require.True(t, ok)
	assert.Contains(t, string(prompt), "U521981590")
}

func TestGemini_StripsFences(t *testing.T) {
	gen := &fakeGenerator{resp: textResponse("```text\nINTAKE DESK\n```")}
	g := newGemini(nil, gen, GeminiConfig{})

	rec, err := g.Recognize(context.Background(), testInput())
	require.NoError(t, err)
	assert.Equal(t, "INTAKE DESK", rec.Text)
}

func TestGemini_NoCandidatesIsEmpty(t *testing.T) {
	g := newGemini(nil, &fakeGenerator{resp: &genai.GenerateContentResponse{}}, GeminiConfig{})

	rec, err := g.Recognize(context.Background(), testInput())
	require.NoError(t, err)
	assert.Empty(t, rec.Text)
	assert.Equal(t, BackendGemini, rec.Backend)
}

func TestGemini_CallError(t *testing.T) {
	g := newGemini(nil, &fakeGenerator{err: errors.New("quota exceeded")}, GeminiConfig{})

	_, err := g.Recognize(context.Background(), testInput())
	assert.ErrorContains(t, err, "quota exceeded")
}

func TestNewGemini_RequiresProject(t *testing.T) {
	_, err := NewGemini(context.Background(), GeminiConfig{})

	var verr *domain.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "GOOGLE_CLOUD_PROJECT", verr.Field)
}

func TestGeminiPrompt(t *testing.T) {
	assert.Equal(t, transcribePrompt, geminiPrompt(domain.NewTargetVocabulary()))
	assert.Contains(t, geminiPrompt(bondVocab), "DOE, JANE A")
}

func TestStripFences(t *testing.T) {
	assert.Equal(t, "plain", stripFences("  plain \n"))
	assert.Equal(t, "a\nb", stripFences("```\na\nb\n```"))
}
