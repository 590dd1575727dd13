// Package scan walks directory trees and yields classified file entries.
package scan

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"iter"
	"path/filepath"

	"github.com/sdejongh/mediatidy/pkg/classify"
	"github.com/sdejongh/mediatidy/pkg/logging"
	"github.com/sdejongh/mediatidy/pkg/models"
	"github.com/sdejongh/mediatidy/pkg/storage"
)

var errStopWalk = errors.New("walk stopped by consumer")

// Comparer decides whether two entries hold the same content
type Comparer interface {
	Equal(ctx context.Context, a, b *models.FileEntry) (bool, error)
}

// Index enumerates the files under a root
type Index struct {
	backend  storage.Backend
	matcher  *Matcher
	comparer Comparer
	logger   logging.Logger
}

// NewIndex creates an index reading through backend
func NewIndex(backend storage.Backend, excludePatterns []string, logger logging.Logger) *Index {
	return &Index{
		backend: backend,
		matcher: NewMatcher(excludePatterns),
		logger:  logging.OrNull(logger),
	}
}

// SetComparer sets the content comparison used by Equal
func (ix *Index) SetComparer(c Comparer) {
	ix.comparer = c
}

// Walk lazily yields every regular file below root.
//
// The filesystem is read again on every call. Symbolic links are never
// followed and excluded paths are skipped. A directory that cannot be read
// yields a (nil, err) pair and the walk continues with its siblings; a
// cancelled context ends the sequence with (nil, ctx.Err()).
func (ix *Index) Walk(ctx context.Context, root string) iter.Seq2[*models.FileEntry, error] {
	return func(yield func(*models.FileEntry, error) bool) {
		err := ix.backend.Walk(ctx, root, func(path string, info *storage.FileInfo, err error) error {
			if err != nil {
				if !yield(nil, fmt.Errorf("walk %s: %w", path, err)) {
					return errStopWalk
				}
				if info != nil && info.IsDir {
					return fs.SkipDir
				}
				return nil
			}

			if path != root {
				rel, relErr := filepath.Rel(root, path)
				if relErr == nil && ix.matcher.Match(rel, info.IsDir) {
					if info.IsDir {
						return fs.SkipDir
					}
					return nil
				}
			}

			if info.IsDir {
				return nil
			}
			if !info.IsRegular() {
				ix.logger.Debug(ctx, "skipping non-regular file", logging.Fields{"path": path})
				return nil
			}

			kind, classErr := classify.Resolve(path, false)
			if classErr != nil {
				ix.logger.Debug(ctx, "unrecognized file", logging.Fields{"path": path, "reason": classErr.Error()})
			}

			if !yield(models.NewFileEntry(path, kind, info.Size, info.ModTime), nil) {
				return errStopWalk
			}
			return nil
		})

		if err != nil && !errors.Is(err, errStopWalk) {
			yield(nil, err)
		}
	}
}

// Entries collects the walk into a slice. Unreadable paths are logged and
// skipped; only cancellation aborts the collection.
func (ix *Index) Entries(ctx context.Context, root string) ([]*models.FileEntry, error) {
	var entries []*models.FileEntry
	for entry, err := range ix.Walk(ctx, root) {
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return entries, ctxErr
			}
			ix.logger.Warn(ctx, "cannot read path", logging.Fields{"error": err.Error()})
			continue
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// Equal reports whether a and b hold the same content.
// Entries of different kinds are never equal.
func (ix *Index) Equal(ctx context.Context, a, b *models.FileEntry) (bool, error) {
	if a.Kind != b.Kind {
		return false, nil
	}
	if ix.comparer == nil {
		return false, errors.New("no comparer configured")
	}
	return ix.comparer.Equal(ctx, a, b)
}
