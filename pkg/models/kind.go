package models

// Kind is the semantic category of a file
type Kind string

const (
	// KindImage is a still image (photo, screenshot, scan)
	KindImage Kind = "image"
	// KindVideo is a video container
	KindVideo Kind = "video"
	// KindLog is a log or measurement dump
	KindLog Kind = "log"
	// KindScript is an executable script
	KindScript Kind = "script"
	// KindOther is anything not recognized
	KindOther Kind = "other"
	// KindDirectory is a directory
	KindDirectory Kind = "directory"
)

// Kinds lists every file kind in a stable order
var Kinds = []Kind{KindImage, KindVideo, KindLog, KindScript, KindOther, KindDirectory}

// Bucket returns the top-level folder name used when sorting files of this kind
func (k Kind) Bucket() string {
	switch k {
	case KindImage:
		return "Photos"
	case KindVideo:
		return "Videos"
	case KindLog:
		return "Logs"
	case KindScript:
		return "Scripts"
	case KindDirectory:
		return ""
	default:
		return "Other"
	}
}

// IsMedia reports whether files of this kind carry embedded capture metadata
func (k Kind) IsMedia() bool {
	return k == KindImage || k == KindVideo
}

// ParseKind converts a string to a Kind, falling back to KindOther
func ParseKind(s string) Kind {
	for _, k := range Kinds {
		if string(k) == s {
			return k
		}
	}
	return KindOther
}
