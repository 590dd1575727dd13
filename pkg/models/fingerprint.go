package models

import "time"

// Fingerprint identifies file content for duplicate detection.
// Two entries are duplicates iff their fingerprints are equal.
type Fingerprint struct {
	// Kind scopes the value so fingerprints of different kinds never match
	Kind Kind
	// Value is the policy-specific identity (hash string or metadata tuple)
	Value string
}

// IsZero reports whether the fingerprint was never computed
func (f Fingerprint) IsZero() bool {
	return f.Value == ""
}

func (f Fingerprint) String() string {
	return string(f.Kind) + ":" + f.Value
}

// Metadata holds embedded media information extracted by a probe
type Metadata struct {
	// CaptureDate is when the media was recorded (nil when unknown)
	CaptureDate *time.Time
	// Corrupt is set when the probe could not parse the file
	Corrupt bool
	// Reason describes why the file is corrupt
	Reason string

	// PerceptualHash is the image hash string (images only)
	PerceptualHash string

	// Duration of the stream (videos only)
	Duration time.Duration
	// Bitrate in bits per second (videos only)
	Bitrate int64
	// Codec of the first video stream (videos only)
	Codec string
}

// HasCaptureDate reports whether a capture date is known
func (m *Metadata) HasCaptureDate() bool {
	return m != nil && m.CaptureDate != nil && !m.CaptureDate.IsZero()
}

// DuplicateGroup is a set of entries sharing one fingerprint,
// ordered by modification time ascending
type DuplicateGroup struct {
	Fingerprint Fingerprint
	Entries     []*FileEntry
}

// Size returns the number of entries in the group
func (g DuplicateGroup) Size() int {
	return len(g.Entries)
}

// IsDuplicate reports whether the group holds more than one file
func (g DuplicateGroup) IsDuplicate() bool {
	return len(g.Entries) > 1
}
