package storage

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"time"
)

// ErrDestinationExists is returned when a copy or move would overwrite a file
var ErrDestinationExists = errors.New("destination already exists")

// FileInfo represents metadata about a file
type FileInfo struct {
	Path      string
	Size      int64
	ModTime   time.Time
	IsDir     bool
	IsSymlink bool
	Mode      fs.FileMode
}

// IsRegular reports whether the entry is a plain file
func (fi FileInfo) IsRegular() bool {
	return !fi.IsDir && !fi.IsSymlink && fi.Mode.IsRegular()
}

// WalkFunc is called for every entry visited by Walk.
// info is nil when err reports a failure to stat the path; a directory that
// stats but cannot be listed is reported with both set.
// Returning fs.SkipDir from a directory skips its contents.
type WalkFunc func(path string, info *FileInfo, err error) error

// Backend defines the filesystem operations the sorter and deduplicator need.
// All paths are absolute. No operation ever overwrites an existing file.
type Backend interface {
	// Walk visits root and everything below it in lexical order.
	// Symbolic links are reported but never followed.
	Walk(ctx context.Context, root string, fn WalkFunc) error

	// Open opens a file for reading
	Open(ctx context.Context, path string) (io.ReadCloser, error)

	// Stat returns file metadata without following a final symlink
	Stat(ctx context.Context, path string) (*FileInfo, error)

	// Exists checks if a file or directory exists
	Exists(ctx context.Context, path string) (bool, error)

	// Move renames src to dst, copying across devices when needed.
	// It returns the number of bytes relocated.
	Move(ctx context.Context, src, dst string) (int64, error)

	// Copy duplicates src at dst, preserving mode and modification time
	Copy(ctx context.Context, src, dst string) (int64, error)

	// Remove deletes a single file
	Remove(ctx context.Context, path string) error

	// MkdirAll creates a directory and all necessary parents
	MkdirAll(ctx context.Context, path string) error

	// Close releases any resources held by the backend
	Close() error
}
