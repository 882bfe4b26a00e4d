package domain

import (
	"context"
	"io"
)

// DocumentStorage stores enhanced output documents by object path.
type DocumentStorage interface {
	Upload(ctx context.Context, path string, file io.Reader) error
	Download(ctx context.Context, path string) (io.ReadCloser, error)
}
