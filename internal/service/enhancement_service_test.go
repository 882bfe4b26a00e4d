package service

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"bond-log-enhancer/internal/domain"
	"bond-log-enhancer/internal/enhance"
	"bond-log-enhancer/internal/repository"
	"bond-log-enhancer/internal/verify"
	apperrors "bond-log-enhancer/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type nopLogger struct{}

func (nopLogger) Info(string, ...interface{})         {}
func (nopLogger) Error(string, error, ...interface{}) {}
func (nopLogger) Debug(string, ...interface{})        {}
func (nopLogger) Warn(string, ...interface{})         {}

// scanSource is a small in-memory scan: pale paper with one dark line.
type scanSource struct {
	pages int
}

func (s scanSource) PageCount() int { return s.pages }

func (s scanSource) Geometry(i int) (domain.Geometry, error) {
	if i < 0 || i >= s.pages {
		return domain.Geometry{}, domain.ErrPageOutOfRange
	}
	return domain.Letter, nil
}

func (s scanSource) Render(ctx context.Context, i int, dpi float64) (domain.Bitmap, error) {
	img := image.NewGray(image.Rect(0, 0, 153, 198))
	for p := range img.Pix {
		img.Pix[p] = 230
	}
	for x := 10; x < 140; x++ {
		img.SetGray(x, 40+i*10, color.Gray{Y: 20})
	}
	return domain.Bitmap{Image: img, DPI: 18}, nil
}

func (s scanSource) Close() error { return nil }

func newTestService(t *testing.T, sidecar map[int]string) (*EnhancementService, *repository.MemoryRunRepository) {
	t.Helper()
	root := t.TempDir()

	sidecarDir := filepath.Join(root, "sidecar")
	require.NoError(t, os.MkdirAll(sidecarDir, 0o755))
	for page, text := range sidecar {
		name := filepath.Join(sidecarDir, fmt.Sprintf("page-%04d.txt", page))
		require.NoError(t, os.WriteFile(name, []byte(text), 0o644))
	}

	runs := repository.NewMemoryRunRepository()
	svc := &EnhancementService{
		settings: Settings{
			Preset:      enhance.DefaultPreset,
			Recognizers: []string{"sidecar"},
			SidecarDir:  sidecarDir,
			Vocabulary:  domain.NewTargetVocabulary("U521981590", "BOOKING FACE SHEET"),
			PageTimeout: 10 * time.Second,
			Workers:     1,
		},
		uploadDir:   filepath.Join(root, "uploads"),
		outputDir:   filepath.Join(root, "enhanced"),
		maxFileSize: 1024,
		runs:        runs,
		storage:     repository.NewLocalStorage(filepath.Join(root, "store")),
		presets:     enhance.NewRegistry(),
		logger:      nopLogger{},
		open:        func(string) (domain.PageSource, error) { return scanSource{pages: 3}, nil },
	}
	svc.verifier = verify.NewVerifier(nopLogger{}, 10*time.Second)
	return svc, runs
}

func TestEnhance_StoresDocumentAndSummary(t *testing.T) {
	svc, runs := newTestService(t, map[int]string{2: "BOOKING FACE SHEET U521981590"})
	ctx := context.Background()

	summary, err := svc.Enhance(ctx, EnhanceRequest{
		FileName: "booking.pdf",
		File:     strings.NewReader("%PDF-1.4 scanned"),
		Owner:    "user-1",
	})
	require.NoError(t, err)
	require.True(t, summary.Succeeded())

	assert.Equal(t, 3, summary.PageCount)
	assert.Equal(t, DocumentKey(summary.ID), summary.OutputPath)
	assert.Equal(t, []string{"U521981590", "BOOKING FACE SHEET"}, summary.Pages[1].VocabularyHits)

	stored, err := runs.Get(ctx, summary.ID)
	require.NoError(t, err)
	assert.Equal(t, DocumentKey(summary.ID), stored.OutputPath)

	// Upload and output temp files are removed.
	leftovers, _ := filepath.Glob(filepath.Join(svc.uploadDir, "*"))
	assert.Empty(t, leftovers)
	leftovers, _ = filepath.Glob(filepath.Join(svc.outputDir, "*"))
	assert.Empty(t, leftovers)

	report, err := svc.Search(ctx, summary.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, 3, report.Metadata.PageCount)
	assert.Equal(t, []int{2}, report.Pages("U521981590"))
	assert.True(t, report.Found())
}

type failingStorage struct{}

func (failingStorage) Upload(context.Context, string, io.Reader) error {
	return errors.New("bucket unavailable")
}

func (failingStorage) Download(context.Context, string) (io.ReadCloser, error) {
	return nil, domain.ErrDocumentNotFound
}

func TestEnhance_KeepsOutputWithoutUpload(t *testing.T) {
	tests := []struct {
		name    string
		storage domain.DocumentStorage
		wantErr bool
	}{
		{"no storage", nil, false},
		{"upload fails", failingStorage{}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, _ := newTestService(t, nil)
			svc.storage = tt.storage

			summary, err := svc.Enhance(context.Background(), EnhanceRequest{
				FileName: "booking.pdf",
				File:     strings.NewReader("%PDF-1.4 scanned"),
			})
			if tt.wantErr {
				require.Error(t, err)
			} else {
				require.NoError(t, err)
			}
			require.NotNil(t, summary)

			assert.True(t, strings.HasPrefix(summary.OutputPath, svc.outputDir), summary.OutputPath)
			_, statErr := os.Stat(summary.OutputPath)
			assert.NoError(t, statErr, "enhanced document must still exist")
		})
	}
}

func TestEnhance_RejectsInvalidUploads(t *testing.T) {
	svc, _ := newTestService(t, nil)
	ctx := context.Background()

	tests := []struct {
		name string
		req  EnhanceRequest
		msg  string
	}{
		{"missing file", EnhanceRequest{FileName: "a.pdf"}, "file is required"},
		{"wrong extension", EnhanceRequest{FileName: "a.png", File: strings.NewReader("%PDF-1.4")}, "only PDF files"},
		{"not a pdf", EnhanceRequest{FileName: "a.pdf", File: strings.NewReader("GIF89a")}, "not a PDF"},
		{"too large", EnhanceRequest{FileName: "a.pdf", File: strings.NewReader("%PDF-" + strings.Repeat("x", 2048))}, "too large"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			summary, err := svc.Enhance(ctx, tt.req)
			require.Error(t, err)
			assert.Nil(t, summary)
			assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeValidation))
			assert.Contains(t, err.Error(), tt.msg)
		})
	}
}

func TestEnhance_UnknownPresetIsRecorded(t *testing.T) {
	svc, runs := newTestService(t, nil)

	summary, err := svc.Enhance(context.Background(), EnhanceRequest{
		FileName: "booking.pdf",
		File:     strings.NewReader("%PDF-1.4"),
		Preset:   "sepia",
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrUnknownPreset)
	require.NotNil(t, summary)

	stored, getErr := runs.Get(context.Background(), summary.ID)
	require.NoError(t, getErr)
	assert.False(t, stored.Succeeded())

	_, err = svc.OpenDocument(context.Background(), summary.ID)
	assert.ErrorIs(t, err, domain.ErrDocumentNotFound)
}

func TestGetRun_NotFound(t *testing.T) {
	svc, _ := newTestService(t, nil)
	_, err := svc.GetRun(context.Background(), "missing")
	assert.ErrorIs(t, err, domain.ErrRunNotFound)

	_, err = svc.Search(context.Background(), "missing", []string{"SHERIFF"})
	assert.ErrorIs(t, err, domain.ErrRunNotFound)
}

func TestSettings_PipelineConfig(t *testing.T) {
	s := Settings{
		PagePolicy:     "letter",
		OverlayStyle:   "background",
		OverlayOpacity: 0.01,
		Vocabulary:     domain.NewTargetVocabulary("SHERIFF"),
		Languages:      []string{"eng"},
	}
	cfg, err := s.PipelineConfig("in.pdf", "out.pdf")
	require.NoError(t, err)
	assert.Equal(t, "in.pdf", cfg.InputPath)
	assert.EqualValues(t, "letter", cfg.PagePolicy)
	assert.EqualValues(t, "background", cfg.Overlay.Style)
	assert.Equal(t, 0.01, cfg.Overlay.Opacity)
	assert.Equal(t, []string{"SHERIFF"}, cfg.Info.Keywords)

	s.PagePolicy = "a4"
	_, err = s.PipelineConfig("in.pdf", "out.pdf")
	assert.Error(t, err)

	s.PagePolicy = ""
	s.OverlayStyle = "neon"
	_, err = s.PipelineConfig("in.pdf", "out.pdf")
	var verr *domain.ValidationError
	assert.ErrorAs(t, err, &verr)
}

func TestSettings_Recognizer(t *testing.T) {
	chain, err := Settings{Recognizers: []string{"none"}}.Recognizer(nopLogger{})
	require.NoError(t, err)
	assert.Nil(t, chain)

	_, err = Settings{Recognizers: []string{"palm"}}.Recognizer(nopLogger{})
	assert.ErrorIs(t, err, domain.ErrUnknownBackend)

	chain, err = Settings{Recognizers: []string{"vocabulary"}}.Recognizer(nopLogger{})
	require.NoError(t, err)
	assert.NotNil(t, chain)
}

func TestSplitLanguages(t *testing.T) {
	assert.Equal(t, []string{"eng", "spa"}, splitLanguages("ENG+spa"))
	assert.Equal(t, []string{"eng", "spa"}, splitLanguages("eng, spa"))
	assert.Nil(t, splitLanguages(""))
}

func TestEnhancedName(t *testing.T) {
	assert.Equal(t, "booking-enhanced.pdf", EnhancedName("/inbox/booking.pdf"))
	assert.Equal(t, "SCAN-enhanced.pdf", EnhancedName("SCAN.PDF"))
}
