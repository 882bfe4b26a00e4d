package recognizer

import (
	"context"
	"fmt"
	"strings"

	"bond-log-enhancer/internal/domain"

	"cloud.google.com/go/vertexai/genai"
	"golang.org/x/time/rate"
)

const defaultGeminiModel = "gemini-2.0-flash-001"

const transcribePrompt = "Transcribe every piece of text printed or handwritten on this scanned page, " +
	"top to bottom, one line per printed line. Output only the transcription, no commentary."

// GeminiConfig configures the Vertex AI transcription backend.
type GeminiConfig struct {
	Project  string
	Location string
	Model    string
	RPS      float64
	// Vocabulary is listed in the prompt as terms the page may contain.
	Vocabulary domain.TargetVocabulary
}

// contentGenerator is the part of *genai.GenerativeModel the backend calls.
type contentGenerator interface {
	GenerateContent(ctx context.Context, parts ...genai.Part) (*genai.GenerateContentResponse, error)
}

// Gemini asks a Vertex AI Gemini model to transcribe the enhanced page image.
// It returns plain text only; overlay text is placed in bands.
type Gemini struct {
	client  *genai.Client
	model   contentGenerator
	prompt  string
	limiter *rate.Limiter
}

// NewGemini creates the Vertex AI client with application default credentials.
func NewGemini(ctx context.Context, cfg GeminiConfig) (*Gemini, error) {
	if strings.TrimSpace(cfg.Project) == "" {
		return nil, &domain.ValidationError{Field: "GOOGLE_CLOUD_PROJECT", Message: "gemini recognizer requires a project"}
	}
	location := cfg.Location
	if location == "" {
		location = "us-central1"
	}
	client, err := genai.NewClient(ctx, cfg.Project, location)
	if err != nil {
		return nil, fmt.Errorf("failed to create vertex ai client: %w", err)
	}

	name := cfg.Model
	if name == "" {
		name = defaultGeminiModel
	}
	model := client.GenerativeModel(name)
	model.SetTemperature(0)

	return newGemini(client, model, cfg), nil
}

func newGemini(client *genai.Client, model contentGenerator, cfg GeminiConfig) *Gemini {
	limit := rate.Inf
	if cfg.RPS > 0 {
		limit = rate.Limit(cfg.RPS)
	}
	return &Gemini{
		client:  client,
		model:   model,
		prompt:  geminiPrompt(cfg.Vocabulary),
		limiter: rate.NewLimiter(limit, 1),
	}
}

func geminiPrompt(vocab domain.TargetVocabulary) string {
	if vocab.Len() == 0 {
		return transcribePrompt
	}
	return transcribePrompt + " Terms that may appear on the page: " + vocab.Join("; ") + "."
}

func (g *Gemini) Name() string { return BackendGemini }

func (g *Gemini) Recognize(ctx context.Context, in domain.RecognizeInput) (domain.Recognition, error) {
	if err := g.limiter.Wait(ctx); err != nil {
		return domain.Recognition{}, err
	}
	png, err := encodePNG(in.Bitmap)
	if err != nil {
		return domain.Recognition{}, err
	}

	resp, err := g.model.GenerateContent(ctx, genai.ImageData("png", png), genai.Text(g.prompt))
	if err != nil {
		return domain.Recognition{}, fmt.Errorf("gemini call failed: %w", err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return domain.Recognition{Backend: g.Name()}, nil
	}

	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if t, ok := part.(genai.Text); ok {
			sb.WriteString(string(t))
		}
	}
	return domain.Recognition{Backend: g.Name(), Text: stripFences(sb.String())}, nil
}

// Close releases the Vertex AI client.
func (g *Gemini) Close() error {
	if g.client == nil {
		return nil
	}
	return g.client.Close()
}

// stripFences removes a markdown code fence the model sometimes wraps output in.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[i+1:]
	}
	return strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(s), "```"))
}
