package models

import (
	"time"
)

// Action represents what should be done with a file
type Action string

const (
	// ActionMove renames the file to its destination
	ActionMove Action = "move"
	// ActionCopy copies the file and leaves the source in place
	ActionCopy Action = "copy"
	// ActionDelete removes the source file
	ActionDelete Action = "delete"
	// ActionSkip leaves the file untouched
	ActionSkip Action = "skip"
)

// RelocationPlan is the computed destination and action for one file.
// A plan is applied at most once and never persisted.
type RelocationPlan struct {
	Source      *FileEntry
	Destination string
	Action      Action
	Reason      string
}

// Outcome is the result of applying (or previewing) a plan
type Outcome struct {
	Plan     RelocationPlan
	Applied  bool
	Corrupt  bool
	Err      error
	Bytes    int64
	Duration time.Duration
}

// Failed reports whether the operation errored
func (o Outcome) Failed() bool {
	return o.Err != nil
}
