package repository

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"bond-log-enhancer/internal/domain"
	apperrors "bond-log-enhancer/pkg/errors"
)

// SupabaseStorage stores enhanced documents in a Supabase Storage bucket
// through the storage REST API.
type SupabaseStorage struct {
	baseURL string
	apiKey  string
	bucket  string
	client  *http.Client
}

func NewSupabaseStorage(baseURL, apiKey, bucket string, client *http.Client) *SupabaseStorage {
	if client == nil {
		client = http.DefaultClient
	}
	return &SupabaseStorage{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		bucket:  bucket,
		client:  client,
	}
}

func (s *SupabaseStorage) objectURL(path string) string {
	parts := strings.Split(strings.TrimLeft(path, "/"), "/")
	for i, p := range parts {
		parts[i] = url.PathEscape(p)
	}
	return s.baseURL + "/storage/v1/object/" + url.PathEscape(s.bucket) + "/" + strings.Join(parts, "/")
}

// Upload stores file at path, replacing an existing object.
func (s *SupabaseStorage) Upload(ctx context.Context, path string, file io.Reader) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.objectURL(path), file)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+s.apiKey)
	req.Header.Set("apikey", s.apiKey)
	req.Header.Set("Content-Type", "application/pdf")
	req.Header.Set("x-upsert", "true")

	resp, err := s.client.Do(req)
	if err != nil {
		return apperrors.NewNetworkError("storage upload failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return apperrors.NewNetworkError("storage upload failed",
			fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(body))))
	}
	return nil
}

// Download opens the object at path. The caller closes the reader.
func (s *SupabaseStorage) Download(ctx context.Context, path string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.objectURL(path), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+s.apiKey)
	req.Header.Set("apikey", s.apiKey)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, apperrors.NewNetworkError("storage download failed", err)
	}
	switch {
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusBadRequest:
		// Supabase Storage reports a missing object as 400 with "not_found".
		resp.Body.Close()
		return nil, domain.ErrDocumentNotFound
	case resp.StatusCode >= 300:
		resp.Body.Close()
		return nil, apperrors.NewNetworkError("storage download failed", fmt.Errorf("status %d", resp.StatusCode))
	}
	return resp.Body, nil
}

// LocalStorage keeps documents under a directory on disk.
type LocalStorage struct {
	root string
}

func NewLocalStorage(root string) *LocalStorage {
	return &LocalStorage{root: root}
}

func (s *LocalStorage) resolve(path string) (string, error) {
	clean := filepath.Clean("/" + filepath.FromSlash(path))
	if clean == string(filepath.Separator) {
		return "", &domain.ValidationError{Field: "path", Message: "empty object path"}
	}
	return filepath.Join(s.root, clean), nil
}

func (s *LocalStorage) Upload(ctx context.Context, path string, file io.Reader) error {
	dst, err := s.resolve(path)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	f, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(f, file); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func (s *LocalStorage) Download(ctx context.Context, path string) (io.ReadCloser, error) {
	src, err := s.resolve(path)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(src)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, domain.ErrDocumentNotFound
	}
	return f, err
}
