package archive

import (
	"context"
	"io"
)

// Store persists finished recordings outside the local recordings directory.
type Store interface {
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
}
