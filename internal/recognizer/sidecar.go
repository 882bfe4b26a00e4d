package recognizer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"bond-log-enhancer/internal/domain"
)

// Sidecar reads text produced outside the pipeline, for example by a manual
// upload to an online converter. For page N it looks for page-000N.json (same
// shape as the cloud response) and then page-000N.txt. A missing file is an
// empty result, not an error.
type Sidecar struct {
	dir string
}

// NewSidecar checks that dir exists.
func NewSidecar(dir string) (*Sidecar, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, &domain.ValidationError{Field: "SIDECAR_DIR", Message: "sidecar recognizer requires a directory"}
	}
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("sidecar dir: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("sidecar dir %s is not a directory", dir)
	}
	return &Sidecar{dir: dir}, nil
}

func (s *Sidecar) Name() string { return BackendSidecar }

func (s *Sidecar) Recognize(ctx context.Context, in domain.RecognizeInput) (domain.Recognition, error) {
	if err := ctx.Err(); err != nil {
		return domain.Recognition{}, err
	}
	base := filepath.Join(s.dir, pageFileName(in.PageIndex))

	data, err := os.ReadFile(base + ".json")
	switch {
	case err == nil:
		var e extraction
		if err := json.Unmarshal(data, &e); err != nil {
			return domain.Recognition{}, fmt.Errorf("parse %s.json: %w", base, err)
		}
		return e.recognition(s.Name()), nil
	case !errors.Is(err, fs.ErrNotExist):
		return domain.Recognition{}, err
	}

	data, err = os.ReadFile(base + ".txt")
	switch {
	case err == nil:
		return domain.Recognition{Backend: s.Name(), Text: strings.TrimSpace(string(data))}, nil
	case errors.Is(err, fs.ErrNotExist):
		return domain.Recognition{Backend: s.Name()}, nil
	default:
		return domain.Recognition{}, err
	}
}
