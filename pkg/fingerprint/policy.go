// Package fingerprint decides when two files hold the same content.
//
// Each kind has its own identity: images compare by perceptual hash, videos
// by (size, duration, bitrate) as reported by the probe, and everything else
// by an xxhash64 of the bytes. Content hashes are confirmed byte by byte
// before they justify deleting anything.
package fingerprint

import (
	"context"
	"fmt"
	"strings"

	"github.com/sdejongh/mediatidy/pkg/logging"
	"github.com/sdejongh/mediatidy/pkg/metadata"
	"github.com/sdejongh/mediatidy/pkg/models"
	"github.com/sdejongh/mediatidy/pkg/storage"
)

// Method is the identity used for a kind
type Method string

const (
	// MethodPerceptual uses the image perceptual hash
	MethodPerceptual Method = "perceptual"
	// MethodProbe uses size, duration and bitrate from the video probe
	MethodProbe Method = "probe"
	// MethodContent hashes the file bytes
	MethodContent Method = "content"
)

// contentPrefix marks image fingerprints that fell back to the byte hash
const contentPrefix = "x:"

// MethodFor returns the fingerprint method for kind
func MethodFor(kind models.Kind) Method {
	switch kind {
	case models.KindImage:
		return MethodPerceptual
	case models.KindVideo:
		return MethodProbe
	}
	return MethodContent
}

// Store persists fingerprints between runs
type Store interface {
	// Lookup returns a stored fingerprint still valid for entry's size and mtime
	Lookup(ctx context.Context, entry *models.FileEntry) (models.Fingerprint, bool)
	// Put records the fingerprint of entry
	Put(ctx context.Context, entry *models.FileEntry, fp models.Fingerprint) error
}

// Options configures a Policy
type Options struct {
	// BufferSize is the read buffer for hashing and comparing
	BufferSize int
	// Store is an optional persistent cache
	Store Store
	// Refresh ignores stored fingerprints and rewrites them
	Refresh bool
	Logger  logging.Logger
}

// Policy computes and compares fingerprints
type Policy struct {
	extractors *metadata.Set
	hasher     *ContentHasher
	binary     *BinaryComparer
	store      Store
	refresh    bool
	logger     logging.Logger
}

// NewPolicy creates a fingerprint policy
func NewPolicy(backend storage.Backend, extractors *metadata.Set, opts Options) *Policy {
	return &Policy{
		extractors: extractors,
		hasher:     NewContentHasher(backend, opts.BufferSize),
		binary:     NewBinaryComparer(backend, opts.BufferSize),
		store:      opts.Store,
		refresh:    opts.Refresh,
		logger:     logging.OrNull(opts.Logger),
	}
}

// Compute returns the fingerprint of entry, computing it at most once per
// entry. A corrupt media file yields an error matching models.ErrCorrupt.
func (p *Policy) Compute(ctx context.Context, entry *models.FileEntry) (models.Fingerprint, error) {
	return entry.Fingerprint(func() (models.Fingerprint, error) {
		if p.store != nil && !p.refresh {
			if fp, ok := p.store.Lookup(ctx, entry); ok {
				return fp, nil
			}
		}

		fp, err := p.compute(ctx, entry)
		if err != nil {
			return models.Fingerprint{}, err
		}

		if p.store != nil {
			if err := p.store.Put(ctx, entry, fp); err != nil {
				p.logger.Warn(ctx, "failed to cache fingerprint", logging.Fields{
					"path":  entry.Path,
					"error": err.Error(),
				})
			}
		}
		return fp, nil
	})
}

func (p *Policy) compute(ctx context.Context, entry *models.FileEntry) (models.Fingerprint, error) {
	fp := models.Fingerprint{Kind: entry.Kind}

	switch MethodFor(entry.Kind) {
	case MethodPerceptual:
		meta, err := p.extractors.Extract(ctx, entry)
		if err != nil {
			return fp, err
		}
		if meta.PerceptualHash != "" {
			fp.Value = meta.PerceptualHash
			return fp, nil
		}
		sum, err := p.hasher.Sum(ctx, entry.Path)
		if err != nil {
			return fp, err
		}
		fp.Value = contentPrefix + sum

	case MethodProbe:
		meta, err := p.extractors.Extract(ctx, entry)
		if err != nil {
			return fp, err
		}
		fp.Value = fmt.Sprintf("%d|%d|%d", entry.Size, meta.Duration.Milliseconds(), meta.Bitrate)

	default:
		sum, err := p.hasher.Sum(ctx, entry.Path)
		if err != nil {
			return fp, err
		}
		fp.Value = sum
	}

	return fp, nil
}

// Equal reports whether a and b hold the same content under their kind's
// identity. Entries of different kinds are never equal.
func (p *Policy) Equal(ctx context.Context, a, b *models.FileEntry) (bool, error) {
	if a.Kind != b.Kind {
		return false, nil
	}
	if MethodFor(a.Kind) == MethodContent && a.Size != b.Size {
		return false, nil
	}

	fa, err := p.Compute(ctx, a)
	if err != nil {
		return false, err
	}
	fb, err := p.Compute(ctx, b)
	if err != nil {
		return false, err
	}
	if fa != fb {
		return false, nil
	}

	return p.Confirm(ctx, a, b, fa)
}

// Confirm double-checks two entries that share fingerprint fp.
// Byte hashes are verified byte by byte; the other methods are trusted.
func (p *Policy) Confirm(ctx context.Context, a, b *models.FileEntry, fp models.Fingerprint) (bool, error) {
	if !RequiresConfirmation(fp) {
		return true, nil
	}
	return p.binary.Same(ctx, a.Path, b.Path)
}

// RequiresConfirmation reports whether fp comes from a byte hash
func RequiresConfirmation(fp models.Fingerprint) bool {
	if MethodFor(fp.Kind) == MethodContent {
		return true
	}
	return fp.Kind == models.KindImage && strings.HasPrefix(fp.Value, contentPrefix)
}
