package models

import (
	"errors"
	"fmt"
	"io/fs"
)

// ErrCorrupt marks files a probe could not parse
var ErrCorrupt = errors.New("file is corrupt or unsupported")

// ClassificationError reports a path that could not be classified.
// It is never fatal: the file is treated as KindOther.
type ClassificationError struct {
	Path   string
	Reason string
}

func (e *ClassificationError) Error() string {
	return fmt.Sprintf("cannot classify %s: %s", e.Path, e.Reason)
}

// MetadataUnavailableError reports a failed probe.
// Files hitting it go to the NoMetaData bucket and are excluded from grouping.
type MetadataUnavailableError struct {
	Path string
	Err  error
}

func (e *MetadataUnavailableError) Error() string {
	return fmt.Sprintf("metadata unavailable for %s: %v", e.Path, e.Err)
}

func (e *MetadataUnavailableError) Unwrap() error { return e.Err }

// Is lets errors.Is(err, ErrCorrupt) match every metadata failure
func (e *MetadataUnavailableError) Is(target error) bool {
	return target == ErrCorrupt
}

// CollisionError reports a destination that could not be freed
type CollisionError struct {
	Destination string
	Attempts    int
}

func (e *CollisionError) Error() string {
	return fmt.Sprintf("no free name for %s after %d attempts", e.Destination, e.Attempts)
}

// FatalConfigError aborts a run before any file is touched
type FatalConfigError struct {
	Op  string
	Err error
}

func (e *FatalConfigError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *FatalConfigError) Unwrap() error { return e.Err }

// ValidationError represents a configuration validation error
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Field + ": " + e.Message
}

// IsPermission reports whether err is a permission failure
func IsPermission(err error) bool {
	return errors.Is(err, fs.ErrPermission)
}

// IsCorrupt reports whether err comes from a failed metadata probe
func IsCorrupt(err error) bool {
	return errors.Is(err, ErrCorrupt)
}
