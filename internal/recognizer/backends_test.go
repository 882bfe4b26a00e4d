package recognizer

import (
	"context"
	"encoding/json"
	"image"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"bond-log-enhancer/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCloud_UploadsPageAndParsesBlocks(t *testing.T) {
	var gotAuth, gotPage, gotFile string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		gotPage = r.FormValue("page")
		if _, hdr, err := r.FormFile("file"); err == nil {
			gotFile = hdr.Filename
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"text": "BOOKING U521981590",
			"blocks": []map[string]interface{}{
				{"text": "BOOKING", "box": []int{10, 20, 80, 40}, "confidence": 91},
				{"text": "U521981590", "box": []int{90, 20, 200, 40}, "confidence": 0.8},
				{"text": "  ", "box": []int{0, 0, 1, 1}},
			},
		})
	}))
	defer srv.Close()

	c, err := NewCloud(CloudConfig{URL: srv.URL, Token: "secret", RPS: 100})
	require.NoError(t, err)

	rec, err := c.Recognize(context.Background(), testInput())
	require.NoError(t, err)

	assert.Equal(t, "Bearer secret", gotAuth)
	assert.Equal(t, "2", gotPage)
	assert.Equal(t, "page-0002.png", gotFile)
	assert.Equal(t, BackendCloud, rec.Backend)
	assert.Equal(t, "BOOKING U521981590", rec.Text)
	require.Len(t, rec.Words, 2)
	assert.Equal(t, image.Rect(90, 20, 200, 40), rec.Words[1].Box)
	assert.InDelta(t, 0.91, rec.Words[0].Confidence, 1e-9)
	assert.InDelta(t, 0.8, rec.Words[1].Confidence, 1e-9)
}

func TestCloud_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "quota exceeded", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c, err := NewCloud(CloudConfig{URL: srv.URL})
	require.NoError(t, err)

	_, err = c.Recognize(context.Background(), testInput())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "429")
}

func TestCloud_RequiresURL(t *testing.T) {
	_, err := NewCloud(CloudConfig{})
	assert.Error(t, err)
}

func TestSidecar_JSONTextAndMissing(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "page-0001.json"),
		[]byte(`{"text":"WHITE-COURT COPY","blocks":[{"text":"WHITE-COURT","box":[1,2,30,12],"confidence":0.9}]}`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "page-0002.txt"), []byte("  U521981590\n"), 0o644))

	s, err := NewSidecar(dir)
	require.NoError(t, err)

	rec, err := s.Recognize(context.Background(), domain.RecognizeInput{PageIndex: 0})
	require.NoError(t, err)
	assert.Equal(t, "WHITE-COURT COPY", rec.Text)
	require.Len(t, rec.Words, 1)

	rec, err = s.Recognize(context.Background(), domain.RecognizeInput{PageIndex: 1})
	require.NoError(t, err)
	assert.Equal(t, "U521981590", rec.Text)
	assert.Empty(t, rec.Words)

	rec, err = s.Recognize(context.Background(), domain.RecognizeInput{PageIndex: 2})
	require.NoError(t, err)
	assert.True(t, rec.Empty())
}

func TestSidecar_BadJSONIsAnError(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "page-0001.json"), []byte("{"), 0o644))

	s, err := NewSidecar(dir)
	require.NoError(t, err)

	_, err = s.Recognize(context.Background(), domain.RecognizeInput{PageIndex: 0})
	assert.Error(t, err)

	_, err = NewSidecar(filepath.Join(dir, "missing"))
	assert.Error(t, err)
}

func TestBuild(t *testing.T) {
	dir := t.TempDir()

	backends, err := Build([]string{"Tesseract", "sidecar", "vocabulary", "sidecar", "none"}, Options{
		Vocabulary: bondVocab,
		SidecarDir: dir,
	})
	require.NoError(t, err)

	var names []string
	for _, b := range backends {
		names = append(names, b.Name())
	}
	assert.Equal(t, []string{BackendTesseract, BackendSidecar, BackendVocabulary}, names)

	_, err = Build([]string{"abbyy"}, Options{})
	assert.ErrorIs(t, err, domain.ErrUnknownBackend)

	_, err = Build([]string{"cloud"}, Options{})
	assert.Error(t, err)

	_, err = Build([]string{"vocabulary", "gemini"}, Options{})
	var verr *domain.ValidationError
	assert.ErrorAs(t, err, &verr)
}
