package service

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"bond-log-enhancer/internal/domain"
	"bond-log-enhancer/internal/enhance"
	"bond-log-enhancer/internal/pipeline"
	"bond-log-enhancer/internal/verify"
	apperrors "bond-log-enhancer/pkg/errors"

	"github.com/google/uuid"
)

var pdfMagic = []byte("%PDF-")

// EnhanceRequest is one uploaded document to enhance.
type EnhanceRequest struct {
	FileName string
	File     io.Reader
	// Preset overrides the configured preset when set.
	Preset string
	// Vocabulary is added to the configured target vocabulary.
	Vocabulary []string
	Owner      string
}

// EnhancementService runs the pipeline for uploads, stores the enhanced
// document and keeps the run summary.
type EnhancementService struct {
	settings    Settings
	uploadDir   string
	outputDir   string
	maxFileSize int64

	runs     domain.RunRepository
	storage  domain.DocumentStorage
	presets  *enhance.Registry
	verifier *verify.Verifier
	logger   domain.Logger

	open func(path string) (domain.PageSource, error)
}

func NewEnhancementService(
	cfg domain.Config,
	runs domain.RunRepository,
	storage domain.DocumentStorage,
	presets *enhance.Registry,
	logger domain.Logger,
) *EnhancementService {
	if presets == nil {
		presets = enhance.NewRegistry()
	}
	settings := SettingsFromConfig(cfg)
	return &EnhancementService{
		settings:    settings,
		uploadDir:   cfg.GetUploadPath(),
		outputDir:   cfg.GetOutputPath(),
		maxFileSize: cfg.GetMaxFileSize(),
		runs:        runs,
		storage:     storage,
		presets:     presets,
		verifier:    verify.NewVerifier(logger, settings.PageTimeout),
		logger:      logger,
	}
}

// Settings returns a copy of the configured run settings.
func (s *EnhancementService) Settings() Settings {
	return s.settings
}

// Presets lists the available enhancement presets.
func (s *EnhancementService) Presets() []enhance.Preset {
	return s.presets.Presets()
}

// DocumentKey is the storage path of a run's enhanced document.
func DocumentKey(runID string) string {
	return "runs/" + runID + "/enhanced.pdf"
}

// Enhance validates the upload, runs the pipeline on it and uploads the
// result. The summary is returned and stored even when the run fails.
func (s *EnhancementService) Enhance(ctx context.Context, req EnhanceRequest) (*domain.RunSummary, error) {
	if req.File == nil {
		return nil, apperrors.NewValidationError("file is required")
	}
	name := filepath.Base(strings.TrimSpace(req.FileName))
	if name == "." || name == string(filepath.Separator) || !strings.EqualFold(filepath.Ext(name), ".pdf") {
		return nil, apperrors.NewValidationError("only PDF files are supported", req.FileName)
	}

	br := bufio.NewReader(req.File)
	head, _ := br.Peek(len(pdfMagic))
	if !bytes.Equal(head, pdfMagic) {
		return nil, apperrors.NewValidationError("file is not a PDF document", name)
	}

	if err := os.MkdirAll(s.uploadDir, 0o755); err != nil {
		return nil, apperrors.NewInternalError("failed to prepare upload directory", err)
	}
	if err := os.MkdirAll(s.outputDir, 0o755); err != nil {
		return nil, apperrors.NewInternalError("failed to prepare output directory", err)
	}

	uploadID := uuid.New().String()
	input := filepath.Join(s.uploadDir, uploadID+".pdf")
	output := filepath.Join(s.outputDir, uploadID+"-enhanced.pdf")
	defer os.Remove(input)

	if err := s.saveUpload(input, br); err != nil {
		return nil, err
	}

	settings := s.settings
	if req.Preset != "" {
		settings.Preset = req.Preset
	}
	if len(req.Vocabulary) > 0 {
		settings.Vocabulary = domain.NewTargetVocabulary(append(settings.Vocabulary.Entries(), req.Vocabulary...)...)
	}

	s.logger.Info("Enhancement requested", "file", name, "owner", req.Owner, "preset", settings.Preset)

	summary, err := s.ProcessFile(ctx, input, output, settings)
	if err != nil || s.storage == nil {
		return summary, err
	}

	// The local copy is the only one until the upload succeeds.
	if err := s.upload(ctx, summary.ID, output); err != nil {
		summary.FatalError = err.Error()
		s.saveSummary(ctx, summary)
		return summary, err
	}
	os.Remove(output)
	summary.OutputPath = DocumentKey(summary.ID)
	s.saveSummary(ctx, summary)
	return summary, nil
}

func (s *EnhancementService) saveUpload(path string, r io.Reader) error {
	f, err := os.Create(path)
	if err != nil {
		return apperrors.NewInternalError("failed to store upload", err)
	}
	if s.maxFileSize > 0 {
		r = io.LimitReader(r, s.maxFileSize+1)
	}
	n, err := io.Copy(f, r)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return apperrors.NewInternalError("failed to store upload", err)
	}
	if s.maxFileSize > 0 && n > s.maxFileSize {
		return apperrors.NewValidationError("file too large", fmt.Sprintf("limit is %d bytes", s.maxFileSize))
	}
	return nil
}

func (s *EnhancementService) upload(ctx context.Context, runID, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return apperrors.NewSaveError(path, err)
	}
	defer f.Close()
	if err := s.storage.Upload(ctx, DocumentKey(runID), f); err != nil {
		s.logger.Error("Failed to upload enhanced document", err, "run_id", runID)
		return err
	}
	return nil
}

// ProcessFile runs the pipeline from input to output with the given settings
// and stores the summary.
func (s *EnhancementService) ProcessFile(ctx context.Context, input, output string, settings Settings) (*domain.RunSummary, error) {
	cfg, err := settings.PipelineConfig(input, output)
	if err != nil {
		return nil, err
	}
	chain, err := settings.Recognizer(s.logger)
	if err != nil {
		return nil, err
	}

	deps := pipeline.Dependencies{
		Open:    s.open,
		Presets: s.presets,
		Logger:  s.logger,
		OnPage: func(p domain.PageResult) {
			s.logger.Debug("Page appended", "page", p.Page, "status", p.Status, "backend", p.Backend, "hits", len(p.VocabularyHits))
		},
	}
	if chain != nil {
		defer chain.Close()
		deps.Recognizer = chain
	}

	summary, runErr := pipeline.New(cfg, deps).Run(ctx)
	s.saveSummary(ctx, summary)
	return summary, runErr
}

func (s *EnhancementService) saveSummary(ctx context.Context, summary *domain.RunSummary) {
	if s.runs == nil || summary == nil {
		return
	}
	if err := s.runs.Save(ctx, summary); err != nil {
		s.logger.Error("Failed to save run summary", err, "run_id", summary.ID)
	}
}

// GetRun returns a stored run summary.
func (s *EnhancementService) GetRun(ctx context.Context, id string) (*domain.RunSummary, error) {
	if s.runs == nil {
		return nil, domain.ErrRunNotFound
	}
	return s.runs.Get(ctx, id)
}

// OpenDocument opens the enhanced document of a run. The caller closes it.
func (s *EnhancementService) OpenDocument(ctx context.Context, id string) (io.ReadCloser, error) {
	summary, err := s.GetRun(ctx, id)
	if err != nil {
		return nil, err
	}
	if !summary.Succeeded() || s.storage == nil {
		return nil, domain.ErrDocumentNotFound
	}
	return s.storage.Download(ctx, DocumentKey(summary.ID))
}

// Search looks for terms in the text layer of a run's enhanced document.
// No terms means the configured target vocabulary.
func (s *EnhancementService) Search(ctx context.Context, id string, terms []string) (*verify.Report, error) {
	if len(terms) == 0 {
		terms = s.settings.Vocabulary.Entries()
	}
	if len(terms) == 0 {
		return nil, apperrors.NewValidationError("at least one search term is required")
	}
	rc, err := s.OpenDocument(ctx, id)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return s.verifier.SearchReader(ctx, rc, terms)
}
