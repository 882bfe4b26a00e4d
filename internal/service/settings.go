package service

import (
	"path/filepath"
	"strings"
	"time"

	"bond-log-enhancer/internal/domain"
	"bond-log-enhancer/internal/overlay"
	"bond-log-enhancer/internal/pipeline"
	"bond-log-enhancer/internal/recognizer"
)

// Settings are the run options shared by the HTTP service, the inbox watcher
// and the CLI. They start from configuration; callers override fields.
type Settings struct {
	Preset         string
	DPI            float64
	Recognizers    []string
	Vocabulary     domain.TargetVocabulary
	PagePolicy     string
	PageTimeout    time.Duration
	Workers        int
	OverlayStyle   string
	OverlayOpacity float64
	DebugDir       string
	Languages      []string

	CloudURL   string
	CloudToken string
	CloudRPS   float64
	SidecarDir string

	VertexProject  string
	VertexLocation string
	VertexModel    string
}

// SettingsFromConfig copies run options out of cfg.
func SettingsFromConfig(cfg domain.Config) Settings {
	return Settings{
		Preset:         cfg.GetPreset(),
		DPI:            cfg.GetDPI(),
		Recognizers:    cfg.GetRecognizers(),
		Vocabulary:     cfg.GetTargetVocabulary(),
		PagePolicy:     cfg.GetPagePolicy(),
		PageTimeout:    cfg.GetPageTimeout(),
		Workers:        cfg.GetWorkers(),
		OverlayStyle:   cfg.GetOverlayStyle(),
		OverlayOpacity: cfg.GetOverlayOpacity(),
		DebugDir:       cfg.GetDebugDir(),
		Languages:      splitLanguages(cfg.GetTesseractLang()),
		CloudURL:       cfg.GetCloudOCRURL(),
		CloudToken:     cfg.GetCloudOCRToken(),
		CloudRPS:       cfg.GetCloudOCRRPS(),
		SidecarDir:     cfg.GetSidecarDir(),
		VertexProject:  cfg.GetVertexProject(),
		VertexLocation: cfg.GetVertexLocation(),
		VertexModel:    cfg.GetVertexModel(),
	}
}

// splitLanguages accepts Tesseract's "eng+spa" form as well as commas.
func splitLanguages(s string) []string {
	var out []string
	for _, l := range strings.FieldsFunc(s, func(r rune) bool { return r == '+' || r == ',' || r == ' ' }) {
		out = append(out, strings.ToLower(l))
	}
	return out
}

// PipelineConfig builds the pipeline configuration for one input/output pair.
func (s Settings) PipelineConfig(input, output string) (pipeline.Config, error) {
	policy, err := pipeline.ParsePagePolicy(s.PagePolicy)
	if err != nil {
		return pipeline.Config{}, err
	}
	style, err := overlay.ParseStyle(s.OverlayStyle)
	if err != nil {
		return pipeline.Config{}, &domain.ValidationError{Field: "overlay_style", Message: err.Error()}
	}
	opts := overlay.DefaultOptions()
	opts.Style = style
	opts.Opacity = s.OverlayOpacity

	return pipeline.Config{
		InputPath:  input,
		OutputPath: output,
		Preset:     s.Preset,
		DPI:        s.DPI,
		PagePolicy: policy,
		Workers:    s.Workers,
		DebugDir:   s.DebugDir,
		Overlay:    opts,
		Languages:  s.Languages,
		Info:       pipeline.DocumentInfo{Keywords: s.Vocabulary.Entries()},
	}, nil
}

// Recognizer builds the recognition chain, or nil when no backend is configured.
func (s Settings) Recognizer(logger domain.Logger) (*recognizer.Chain, error) {
	backends, err := recognizer.Build(s.Recognizers, recognizer.Options{
		Vocabulary: s.Vocabulary,
		Languages:  s.Languages,
		CloudURL:   s.CloudURL,
		CloudToken: s.CloudToken,
		CloudRPS:   s.CloudRPS,
		SidecarDir: s.SidecarDir,

		VertexProject:  s.VertexProject,
		VertexLocation: s.VertexLocation,
		VertexModel:    s.VertexModel,

		Logger: logger,
	})
	if err != nil {
		return nil, err
	}
	if len(backends) == 0 {
		return nil, nil
	}
	return recognizer.NewChain(backends, s.Vocabulary, s.PageTimeout, logger), nil
}

// EnhancedName returns the output file name for an input document:
// "scan.pdf" becomes "scan-enhanced.pdf".
func EnhancedName(input string) string {
	base := filepath.Base(input)
	return strings.TrimSuffix(base, filepath.Ext(base)) + "-enhanced.pdf"
}
