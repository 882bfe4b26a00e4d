package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"strings"
	"testing"
)

func TestAppError_Fatal(t *testing.T) {
	cause := stderrors.New("boom")

	cases := []struct {
		err   *AppError
		fatal bool
	}{
		{NewSourceUnreadableError("in.pdf", cause), true},
		{NewSaveError("out.pdf", cause), true},
		{NewPageRenderError(3, cause), false},
		{NewRecognitionError(3, "tesseract", cause), false},
		{NewOverlayInsertionError(3, "zero height"), false},
	}

	for _, tc := range cases {
		if tc.err.Fatal() != tc.fatal {
			t.Fatalf("%s: expected fatal=%v", tc.err.Type, tc.fatal)
		}
		wrapped := fmt.Errorf("run: %w", tc.err)
		if IsFatal(wrapped) != tc.fatal {
			t.Fatalf("%s: IsFatal on wrapped error expected %v", tc.err.Type, tc.fatal)
		}
	}
}

func TestAppError_ErrorIncludesPageAndCause(t *testing.T) {
	err := NewRecognitionError(2, "cloud", stderrors.New("deadline exceeded"))

	msg := err.Error()
	for _, want := range []string{"recognition", "page 2", "cloud", "deadline exceeded"} {
		if !strings.Contains(msg, want) {
			t.Fatalf("expected %q in %q", want, msg)
		}
	}
	if !stderrors.Is(err, err.Cause) {
		t.Fatalf("expected Unwrap to expose the cause")
	}
}

func TestIsTypeAndStatusCode(t *testing.T) {
	err := fmt.Errorf("handler: %w", NewValidationError("file is required"))

	if !IsType(err, ErrorTypeValidation) {
		t.Fatalf("expected validation type")
	}
	if IsType(err, ErrorTypeSave) {
		t.Fatalf("did not expect save type")
	}
	if GetStatusCode(err) != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", GetStatusCode(err))
	}
	if GetStatusCode(stderrors.New("plain")) != http.StatusInternalServerError {
		t.Fatalf("expected 500 for plain errors")
	}
}
