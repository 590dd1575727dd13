package fingerprint

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/cespare/xxhash/v2"

	"github.com/sdejongh/mediatidy/pkg/storage"
)

const minBufferSize = 4096

// ContentHasher computes xxhash64 digests of whole files
type ContentHasher struct {
	backend    storage.Backend
	bufferPool *sync.Pool
}

// NewContentHasher creates a hasher reading through backend
func NewContentHasher(backend storage.Backend, bufferSize int) *ContentHasher {
	if bufferSize < minBufferSize {
		bufferSize = minBufferSize
	}
	return &ContentHasher{
		backend:    backend,
		bufferPool: newBufferPool(bufferSize),
	}
}

// Sum returns the hex encoded xxhash64 of the file at path
func (h *ContentHasher) Sum(ctx context.Context, path string) (string, error) {
	reader, err := h.backend.Open(ctx, path)
	if err != nil {
		return "", err
	}
	defer reader.Close()

	digest := xxhash.New()

	bufPtr := h.bufferPool.Get().(*[]byte)
	defer h.bufferPool.Put(bufPtr)
	buffer := *bufPtr

	for {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		default:
		}

		n, err := reader.Read(buffer)
		if n > 0 {
			digest.Write(buffer[:n])
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", fmt.Errorf("failed to read file: %w", err)
		}
	}

	return fmt.Sprintf("%016x", digest.Sum64()), nil
}

func newBufferPool(size int) *sync.Pool {
	return &sync.Pool{
		New: func() interface{} {
			buf := make([]byte, size)
			return &buf
		},
	}
}
