package metadata

import (
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"time"

	"github.com/corona10/goimagehash"
	"github.com/rwcarlsen/goexif/exif"

	"github.com/sdejongh/mediatidy/pkg/models"
	"github.com/sdejongh/mediatidy/pkg/storage"
)

// extensions with a registered decoder; anything else is hashed by content
var decodable = map[string]bool{
	".jpg": true, ".jpeg": true, ".jpe": true, ".png": true, ".gif": true,
}

// ImageExtractor reads EXIF capture dates and computes perceptual hashes
type ImageExtractor struct {
	backend   storage.Backend
	algorithm models.ImageHashAlgorithm
}

// NewImageExtractor creates an image extractor reading through backend
func NewImageExtractor(backend storage.Backend, algorithm models.ImageHashAlgorithm) *ImageExtractor {
	if !algorithm.Valid() {
		algorithm = models.HashAverage
	}
	return &ImageExtractor{backend: backend, algorithm: algorithm}
}

// Extract reads the capture date and perceptual hash of an image
func (e *ImageExtractor) Extract(ctx context.Context, path string) (*models.Metadata, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	meta := &models.Metadata{}
	if date, ok, err := e.captureDate(ctx, path); err != nil {
		return nil, err
	} else if ok {
		meta.CaptureDate = &date
	}

	f, err := e.backend.Open(ctx, path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	switch {
	case errors.Is(err, image.ErrFormat) && !decodable[models.LowerExt(path)]:
		// no decoder for this format; the fingerprint falls back to content
		return meta, nil
	case err != nil:
		return corrupt(path, "cannot decode image", err)
	}

	hash, err := e.hash(img)
	if err != nil {
		return corrupt(path, "cannot hash image", err)
	}
	meta.PerceptualHash = hash.ToString()

	return meta, nil
}

// captureDate reads DateTimeOriginal, falling back to DateTime.
// Images without EXIF are normal and yield no date.
func (e *ImageExtractor) captureDate(ctx context.Context, path string) (date time.Time, ok bool, err error) {
	f, err := e.backend.Open(ctx, path)
	if err != nil {
		return date, false, err
	}
	defer f.Close()

	x, err := exif.Decode(f)
	if err != nil {
		return date, false, nil
	}

	date, err = x.DateTime()
	if err != nil || !plausible(date) {
		return time.Time{}, false, nil
	}
	return date, true, nil
}

func (e *ImageExtractor) hash(img image.Image) (*goimagehash.ImageHash, error) {
	switch e.algorithm {
	case models.HashDifference:
		return goimagehash.DifferenceHash(img)
	case models.HashPerception:
		return goimagehash.PerceptionHash(img)
	case models.HashAverage:
		return goimagehash.AverageHash(img)
	}
	return nil, fmt.Errorf("unknown hash algorithm %q", e.algorithm)
}
