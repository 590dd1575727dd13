// Package metadata extracts capture dates and content descriptors from media files.
package metadata

import (
	"context"
	"time"

	"github.com/sdejongh/mediatidy/pkg/models"
)

// Extractor reads embedded metadata from one file.
//
// A file the probe cannot parse yields a Metadata with Corrupt set together
// with a *models.MetadataUnavailableError. Any other error (missing file,
// permission denied, cancelled context) is returned as is.
type Extractor interface {
	Extract(ctx context.Context, path string) (*models.Metadata, error)
}

// Set routes entries to the extractor for their kind
type Set struct {
	Image Extractor
	Video Extractor
}

// For returns the extractor for kind, or nil when the kind carries no metadata
func (s *Set) For(kind models.Kind) Extractor {
	switch kind {
	case models.KindImage:
		return s.Image
	case models.KindVideo:
		return s.Video
	}
	return nil
}

// Extract returns the metadata of entry, probing the file at most once
func (s *Set) Extract(ctx context.Context, entry *models.FileEntry) (*models.Metadata, error) {
	ex := s.For(entry.Kind)
	if ex == nil {
		return &models.Metadata{}, nil
	}
	return entry.Metadata(func() (*models.Metadata, error) {
		return ex.Extract(ctx, entry.Path)
	})
}

// CaptureDate returns the embedded capture date of entry, if any
func (s *Set) CaptureDate(ctx context.Context, entry *models.FileEntry) (time.Time, bool, error) {
	meta, err := s.Extract(ctx, entry)
	if err != nil {
		if models.IsCorrupt(err) {
			return time.Time{}, false, nil
		}
		return time.Time{}, false, err
	}
	if !meta.HasCaptureDate() {
		return time.Time{}, false, nil
	}
	return *meta.CaptureDate, true, nil
}

// IsCorrupt reports whether the probe for entry failed
func (s *Set) IsCorrupt(ctx context.Context, entry *models.FileEntry) (bool, error) {
	meta, err := s.Extract(ctx, entry)
	if err != nil {
		if models.IsCorrupt(err) {
			return true, nil
		}
		return false, err
	}
	return meta.Corrupt, nil
}

func corrupt(path, reason string, err error) (*models.Metadata, error) {
	return &models.Metadata{Corrupt: true, Reason: reason},
		&models.MetadataUnavailableError{Path: path, Err: err}
}

// plausible rejects zero and epoch placeholder dates written by some cameras
func plausible(t time.Time) bool {
	year := t.Year()
	return year > 1904 && year <= time.Now().Year()+1
}
