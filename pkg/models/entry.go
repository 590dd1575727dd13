package models

import (
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// FileEntry represents a classified file found during a directory walk.
// The descriptive fields never change after creation; a relocated file gets a
// new entry. Metadata and fingerprint are computed on first request and kept
// until Refresh is called.
type FileEntry struct {
	// Path is the absolute path on the filesystem
	Path string
	// Kind is the classification resolved at walk time
	Kind Kind
	// Ext is the lowercase extension including the dot
	Ext string
	// Size in bytes
	Size int64
	// ModTime is the last modification time
	ModTime time.Time

	// computing a fingerprint may read metadata, so the slots lock separately
	metaMu      sync.Mutex
	metadata    *Metadata
	metadataErr error

	fpMu        sync.Mutex
	fingerprint Fingerprint
	fpErr       error
	fpDone      bool
}

// NewFileEntry creates an entry for an already classified file
func NewFileEntry(path string, kind Kind, size int64, modTime time.Time) *FileEntry {
	return &FileEntry{
		Path:    path,
		Kind:    kind,
		Ext:     LowerExt(path),
		Size:    size,
		ModTime: modTime,
	}
}

// Name returns the base name of the file
func (e *FileEntry) Name() string {
	return filepath.Base(e.Path)
}

// String identifies the entry in logs
func (e *FileEntry) String() string {
	return e.Path
}

// Metadata returns the memoized metadata, calling extract on first use
func (e *FileEntry) Metadata(extract func() (*Metadata, error)) (*Metadata, error) {
	e.metaMu.Lock()
	defer e.metaMu.Unlock()

	if e.metadata == nil && e.metadataErr == nil {
		e.metadata, e.metadataErr = extract()
	}
	return e.metadata, e.metadataErr
}

// Fingerprint returns the memoized fingerprint, calling compute on first use
func (e *FileEntry) Fingerprint(compute func() (Fingerprint, error)) (Fingerprint, error) {
	e.fpMu.Lock()
	defer e.fpMu.Unlock()

	if !e.fpDone {
		e.fingerprint, e.fpErr = compute()
		e.fpDone = true
	}
	return e.fingerprint, e.fpErr
}

// CachedFingerprint returns the fingerprint if it has already been computed
func (e *FileEntry) CachedFingerprint() (Fingerprint, bool) {
	e.fpMu.Lock()
	defer e.fpMu.Unlock()
	return e.fingerprint, e.fpDone && e.fpErr == nil
}

// Refresh drops memoized metadata and fingerprint
func (e *FileEntry) Refresh() {
	e.fpMu.Lock()
	e.fingerprint = Fingerprint{}
	e.fpErr = nil
	e.fpDone = false
	e.fpMu.Unlock()

	e.metaMu.Lock()
	e.metadata = nil
	e.metadataErr = nil
	e.metaMu.Unlock()
}

// LowerExt returns the lowercase extension of path
func LowerExt(path string) string {
	return strings.ToLower(filepath.Ext(path))
}
