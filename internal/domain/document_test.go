package domain

import (
	"errors"
	"image"
	"math"
	"reflect"
	"testing"
)

// TestTargetVocabulary_Matches checks case-insensitive containment and de-duplication.
func TestTargetVocabulary_Matches(t *testing.T) {
	vocab := NewTargetVocabulary("U521981590", "DOE, JANE A", "u521981590", "  ", "INTAKE DESK")

	if vocab.Len() != 3 {
		t.Fatalf("expected 3 unique entries, got %d (%v)", vocab.Len(), vocab.Entries())
	}

	tests := []struct {
		name string
		text string
		want []string
	}{
		{
			// Identifier embedded in recognized text, different case
			name: "lower case identifier",
			text: "booking no. u521981590 white-court copy",
			want: []string{"U521981590"},
		},
		{
			// Entries are reported in vocabulary order, not text order
			name: "multiple hits",
			text: "Intake Desk ... West, Undra D ... U521981590",
			want: []string{"U521981590", "DOE, JANE A", "INTAKE DESK"},
		},
		{
			name: "no hits",
			text: "nothing relevant here",
			want: nil,
		},
		{
			name: "empty text",
			text: "",
			want: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := vocab.Matches(tt.text)
			if !reflect.DeepEqual(got, tt.want) {
				t.Fatalf("Matches(%q) = %v, want %v", tt.text, got, tt.want)
			}
		})
	}
}

func TestParseVocabulary_KeepsCommas(t *testing.T) {
	vocab := ParseVocabulary("DOE, JANE A;CPL R. SMITH\nMDC INTAKE;;")

	want := []string{"DOE, JANE A", "CPL R. SMITH", "MDC INTAKE"}
	if !reflect.DeepEqual(vocab.Entries(), want) {
		t.Fatalf("expected %v, got %v", want, vocab.Entries())
	}
	if vocab.Join(" ") != "DOE, JANE A CPL R. SMITH MDC INTAKE" {
		t.Fatalf("unexpected join: %q", vocab.Join(" "))
	}
}

// TestRect_Problem tests the placement checks used before inserting overlay text.
func TestRect_Problem(t *testing.T) {
	page := Geometry{Width: 612, Height: 792}

	tests := []struct {
		name string
		rect Rect
		ok   bool
	}{
		{name: "inside", rect: Rect{X: 10, Y: 10, Width: 100, Height: 12}, ok: true},
		{name: "full page", rect: Rect{X: 0, Y: 0, Width: 612, Height: 792}, ok: true},
		{name: "zero height", rect: Rect{X: 10, Y: 10, Width: 100, Height: 0}},
		{name: "negative width", rect: Rect{X: 10, Y: 10, Width: -5, Height: 10}},
		{name: "nan", rect: Rect{X: math.NaN(), Y: 10, Width: 5, Height: 10}},
		{name: "inf", rect: Rect{X: 10, Y: 10, Width: math.Inf(1), Height: 10}},
		{name: "past right edge", rect: Rect{X: 600, Y: 10, Width: 100, Height: 10}},
		{name: "below page", rect: Rect{X: 10, Y: -20, Width: 100, Height: 10}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			problem := tt.rect.Problem(page)
			if tt.ok && problem != "" {
				t.Fatalf("expected rect to be valid, got %q", problem)
			}
			if !tt.ok && problem == "" {
				t.Fatalf("expected a problem for %+v", tt.rect)
			}
		})
	}
}

func TestGeometry_OrientedLike(t *testing.T) {
	landscape := Geometry{Width: 1008, Height: 612}

	got := Letter.OrientedLike(landscape)
	if got.Width != 792 || got.Height != 612 {
		t.Fatalf("expected letter landscape 792x612, got %+v", got)
	}
	if Letter.OrientedLike(Letter) != Letter {
		t.Fatalf("expected portrait letter unchanged")
	}
	if (Geometry{}).Valid() {
		t.Fatalf("zero geometry should not be valid")
	}
}

func TestRecognition_PlainText(t *testing.T) {
	r := Recognition{Words: []Word{
		{Text: "MDC", Box: image.Rect(0, 0, 10, 10)},
		{Text: " "},
		{Text: "INTAKE", Box: image.Rect(12, 0, 40, 10)},
	}}

	if r.Empty() {
		t.Fatalf("expected words to make recognition non-empty")
	}
	if r.PlainText() != "MDC INTAKE" {
		t.Fatalf("unexpected plain text %q", r.PlainText())
	}
	if !(Recognition{Text: "  \n"}).Empty() {
		t.Fatalf("expected whitespace-only recognition to be empty")
	}
}

func TestRunSummary_Record(t *testing.T) {
	var s RunSummary

	ok := PageResult{Page: 1, Status: PageStatusOK, RecognizedChars: 12, OverlayRuns: 3}
	partial := PageResult{Page: 2, Status: PageStatusOK}
	partial.AddError(errors.New("recognition: page 2: timeout"))
	failed := PageResult{Page: 3, Status: PageStatusFailed}

	s.Record(ok)
	s.Record(partial)
	s.Record(failed)

	if s.PagesProcessed != 3 || s.PagesWithText != 1 || s.PagesWithOverlay != 1 || s.PagesFailed != 1 {
		t.Fatalf("unexpected counters: %+v", s)
	}
	if s.Pages[1].Status != PageStatusPartial {
		t.Fatalf("expected AddError to downgrade status, got %s", s.Pages[1].Status)
	}
	if !s.Succeeded() {
		t.Fatalf("expected run without fatal error to succeed")
	}
}
