package handler

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"bond-log-enhancer/internal/domain"
)

func TestNewRouter_Health(t *testing.T) {
	router := newTestRouter(newMockEnhancementService())

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rr := httptest.NewRecorder()

	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rr.Code)
	}
	if !strings.Contains(rr.Body.String(), `"status":"ok"`) {
		t.Fatalf("unexpected response body: %s", rr.Body.String())
	}
}

func TestNewRouter_ProtectsAPI(t *testing.T) {
	validator := &mockValidator{user: &domain.SupabaseUser{ID: "user-1"}}
	auth := NewAuthMiddleware(validator, NewMockHandlerLogger())
	router := NewRouter(NewEnhancementHandler(newMockEnhancementService(), NewMockHandlerLogger()), auth.Middleware)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/v1/presets", nil))
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected status %d, got %d", http.StatusUnauthorized, rr.Code)
	}

	// Health stays public.
	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rr.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/presets", nil)
	req.Header.Set("Authorization", "Bearer good")
	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rr.Code)
	}
	if !strings.Contains(rr.Body.String(), `"name":"tinted-carbon-copy"`) {
		t.Fatalf("unexpected response body: %s", rr.Body.String())
	}
}
