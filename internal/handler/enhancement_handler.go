// Package handler provides HTTP handlers for the API.
package handler

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"bond-log-enhancer/internal/domain"
	"bond-log-enhancer/internal/enhance"
	"bond-log-enhancer/internal/service"
	"bond-log-enhancer/internal/verify"

	"github.com/gorilla/mux"
)

// maxUploadMemory is the multipart size kept in memory before spilling to disk.
const maxUploadMemory = 32 << 20

// EnhancementService is what the handlers need from *service.EnhancementService.
type EnhancementService interface {
	Enhance(ctx context.Context, req service.EnhanceRequest) (*domain.RunSummary, error)
	GetRun(ctx context.Context, id string) (*domain.RunSummary, error)
	OpenDocument(ctx context.Context, id string) (io.ReadCloser, error)
	Search(ctx context.Context, id string, terms []string) (*verify.Report, error)
	Presets() []enhance.Preset
}

// EnhancementHandler handles enhancement-related HTTP requests
type EnhancementHandler struct {
	service EnhancementService
	logger  domain.Logger
}

// NewEnhancementHandler creates a new enhancement handler
func NewEnhancementHandler(service EnhancementService, logger domain.Logger) *EnhancementHandler {
	return &EnhancementHandler{service: service, logger: logger}
}

// CreateEnhancement accepts a multipart upload and runs the pipeline on it.
func (h *EnhancementHandler) CreateEnhancement(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadMemory); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid multipart form")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "File is required")
		return
	}
	defer file.Close()

	req := service.EnhanceRequest{
		FileName: header.Filename,
		File:     file,
		Preset:   strings.TrimSpace(r.FormValue("preset")),
	}
	if v := r.FormValue("vocabulary"); v != "" {
		req.Vocabulary = domain.ParseVocabulary(v).Entries()
	}
	if user, ok := GetUserFromContext(r); ok {
		req.Owner = user.ID
	}

	summary, err := h.service.Enhance(r.Context(), req)
	if err != nil {
		h.logger.Error("Enhancement failed", err, "file", header.Filename)
		if summary == nil {
			writeError(w, statusFor(err), err.Error())
			return
		}
		writeJSON(w, statusFor(err), map[string]interface{}{
			"error": err.Error(),
			"run":   summary,
		})
		return
	}

	writeJSON(w, http.StatusCreated, summary)
}

// GetEnhancement returns a stored run summary.
func (h *EnhancementHandler) GetEnhancement(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if id == "" {
		writeError(w, http.StatusBadRequest, "Run ID is required")
		return
	}

	summary, err := h.service.GetRun(r.Context(), id)
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

// GetEnhancedDocument streams the enhanced PDF of a run.
func (h *EnhancementHandler) GetEnhancedDocument(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if id == "" {
		writeError(w, http.StatusBadRequest, "Run ID is required")
		return
	}

	rc, err := h.service.OpenDocument(r.Context(), id)
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	defer rc.Close()

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", `inline; filename="`+id+`-enhanced.pdf"`)
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, rc); err != nil {
		h.logger.Warn("Document stream interrupted", "run_id", id, "error", err)
	}
}

type searchRequest struct {
	ID    string   `json:"id"`
	Terms []string `json:"terms"`
}

// Search looks for terms in the text layer of an enhanced document.
func (h *EnhancementHandler) Search(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if strings.TrimSpace(req.ID) == "" {
		writeError(w, http.StatusBadRequest, "Run ID is required")
		return
	}

	report, err := h.service.Search(r.Context(), req.ID, req.Terms)
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// ListPresets returns the available enhancement presets.
func (h *EnhancementHandler) ListPresets(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.service.Presets())
}
