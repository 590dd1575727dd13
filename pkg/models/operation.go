package models

import (
	"time"
)

// Granularity controls the depth of date-based sort folders
type Granularity string

const (
	// GranularityYear sorts into YYYY
	GranularityYear Granularity = "year"
	// GranularityMonth sorts into YYYY/MonthName
	GranularityMonth Granularity = "month"
	// GranularityDay sorts into YYYY/MonthName/DD
	GranularityDay Granularity = "day"
)

// Valid reports whether g is a known granularity
func (g Granularity) Valid() bool {
	switch g {
	case GranularityYear, GranularityMonth, GranularityDay:
		return true
	}
	return false
}

// RelocationMode selects between moving and copying sorted files
type RelocationMode string

const (
	// ModeMove renames files into the destination tree
	ModeMove RelocationMode = "move"
	// ModeCopy copies files and keeps the originals
	ModeCopy RelocationMode = "copy"
)

// ImageHashAlgorithm selects the perceptual hash used for images
type ImageHashAlgorithm string

const (
	// HashAverage is the average hash
	HashAverage ImageHashAlgorithm = "average"
	// HashDifference is the difference hash
	HashDifference ImageHashAlgorithm = "difference"
	// HashPerception is the DCT based perception hash
	HashPerception ImageHashAlgorithm = "perception"
)

// Valid reports whether a is a known hash algorithm
func (a ImageHashAlgorithm) Valid() bool {
	switch a {
	case HashAverage, HashDifference, HashPerception:
		return true
	}
	return false
}

// SortOperation describes a directory sort run
type SortOperation struct {
	ID              string
	SourcePath      string
	DestPath        string
	Granularity     Granularity
	Mode            RelocationMode
	Rename          bool
	MtimeFallback   bool
	DryRun          bool
	ExcludePatterns []string
	MaxWorkers      int
	CreatedAt       time.Time
}

// Validate checks if the operation configuration is valid
func (op *SortOperation) Validate() error {
	if op.SourcePath == "" {
		return &ValidationError{Field: "SourcePath", Message: "source path is required"}
	}
	if op.DestPath == "" {
		return &ValidationError{Field: "DestPath", Message: "destination path is required"}
	}
	if !op.Granularity.Valid() {
		return &ValidationError{Field: "Granularity", Message: "must be year, month or day"}
	}
	if op.Mode != ModeMove && op.Mode != ModeCopy {
		return &ValidationError{Field: "Mode", Message: "must be move or copy"}
	}
	if op.MaxWorkers < 1 {
		return &ValidationError{Field: "MaxWorkers", Message: "max workers must be at least 1"}
	}
	return nil
}

// DedupOperation describes a duplicate removal run
type DedupOperation struct {
	ID              string
	RootPath        string
	Keep            int
	ImageHash       ImageHashAlgorithm
	DryRun          bool
	Refresh         bool
	UseCache        bool
	ExcludePatterns []string
	MaxWorkers      int
	BufferSize      int
	CreatedAt       time.Time
}

// Validate checks if the operation configuration is valid
func (op *DedupOperation) Validate() error {
	if op.RootPath == "" {
		return &ValidationError{Field: "RootPath", Message: "path is required"}
	}
	if op.Keep < 1 {
		return &ValidationError{Field: "Keep", Message: "must keep at least one copy"}
	}
	if !op.ImageHash.Valid() {
		return &ValidationError{Field: "ImageHash", Message: "must be average, difference or perception"}
	}
	if op.MaxWorkers < 1 {
		return &ValidationError{Field: "MaxWorkers", Message: "max workers must be at least 1"}
	}
	if op.BufferSize < 1024 {
		return &ValidationError{Field: "BufferSize", Message: "buffer size must be at least 1024 bytes"}
	}
	return nil
}
