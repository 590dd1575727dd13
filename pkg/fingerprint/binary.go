package fingerprint

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/sdejongh/mediatidy/pkg/storage"
)

// BinaryComparer compares files byte by byte.
// It is the final check before a content-hash duplicate is deleted.
type BinaryComparer struct {
	backend    storage.Backend
	bufferPool *sync.Pool
}

// NewBinaryComparer creates a byte-by-byte comparer
func NewBinaryComparer(backend storage.Backend, bufferSize int) *BinaryComparer {
	if bufferSize < minBufferSize {
		bufferSize = minBufferSize
	}
	return &BinaryComparer{
		backend:    backend,
		bufferPool: newBufferPool(bufferSize),
	}
}

// Same reports whether the files at a and b have identical content
func (c *BinaryComparer) Same(ctx context.Context, a, b string) (bool, error) {
	aInfo, err := c.backend.Stat(ctx, a)
	if err != nil {
		return false, err
	}
	bInfo, err := c.backend.Stat(ctx, b)
	if err != nil {
		return false, err
	}
	if aInfo.Size != bInfo.Size {
		return false, nil
	}

	aReader, err := c.backend.Open(ctx, a)
	if err != nil {
		return false, err
	}
	defer aReader.Close()

	bReader, err := c.backend.Open(ctx, b)
	if err != nil {
		return false, err
	}
	defer bReader.Close()

	aBufPtr := c.bufferPool.Get().(*[]byte)
	defer c.bufferPool.Put(aBufPtr)
	bBufPtr := c.bufferPool.Get().(*[]byte)
	defer c.bufferPool.Put(bBufPtr)
	aBuf, bBuf := *aBufPtr, *bBufPtr

	for {
		select {
		case <-ctx.Done():
			return false, ctx.Err()
		default:
		}

		aN, aErr := io.ReadFull(aReader, aBuf)
		bN, bErr := io.ReadFull(bReader, bBuf)

		if aN != bN || !bytes.Equal(aBuf[:aN], bBuf[:bN]) {
			return false, nil
		}

		aDone, err := readDone(aErr)
		if err != nil {
			return false, fmt.Errorf("failed to read %s: %w", a, err)
		}
		bDone, err := readDone(bErr)
		if err != nil {
			return false, fmt.Errorf("failed to read %s: %w", b, err)
		}
		if aDone || bDone {
			return aDone == bDone, nil
		}
	}
}

// readDone maps io.ReadFull results to end-of-file or a real error
func readDone(err error) (bool, error) {
	switch {
	case err == nil:
		return false, nil
	case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
		return true, nil
	}
	return false, err
}
