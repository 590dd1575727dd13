package models

import (
	"time"
)

// Report represents the results of a sort or dedup run
type Report struct {
	// Run details
	RunID   string
	Command string
	Root    string
	Dest    string
	DryRun  bool

	// Timing
	StartTime time.Time
	EndTime   time.Time
	Duration  time.Duration

	// Statistics
	Stats Statistics

	// Per-file outcomes, in completion order
	Outcomes []Outcome

	// Files a probe could not parse; never deleted automatically
	Corrupted []string

	// Errors encountered
	Errors []RunError

	// Overall status
	Status Status
}

// Statistics holds run metrics
type Statistics struct {
	FilesScanned    int
	FilesMoved      int
	FilesCopied     int
	FilesDeleted    int
	FilesSkipped    int
	FilesCorrupted  int
	FilesErrored    int
	DuplicateGroups int
	BytesFreed      int64
	BytesRelocated  int64
}

// Status represents the overall result
type Status string

const (
	// StatusSuccess indicates all operations completed successfully
	StatusSuccess Status = "success"
	// StatusPartial indicates some operations failed
	StatusPartial Status = "partial"
	// StatusFailed indicates the run failed
	StatusFailed Status = "failed"
	// StatusCancelled indicates the run was interrupted
	StatusCancelled Status = "cancelled"
)

// RunError represents a per-file error
type RunError struct {
	FilePath  string
	Operation Action
	Error     string
	Timestamp time.Time
}

// NewReport creates an empty report for a run
func NewReport(runID, command, root, dest string, dryRun bool) *Report {
	return &Report{
		RunID:     runID,
		Command:   command,
		Root:      root,
		Dest:      dest,
		DryRun:    dryRun,
		StartTime: time.Now(),
		Status:    StatusSuccess,
	}
}

// Record adds an outcome to the report and updates the counters.
// Dry-run outcomes are counted as if they had been applied.
func (r *Report) Record(o Outcome) {
	r.Outcomes = append(r.Outcomes, o)

	if o.Corrupt {
		r.Stats.FilesCorrupted++
		if o.Plan.Source != nil {
			r.Corrupted = append(r.Corrupted, o.Plan.Source.Path)
		}
	}

	if o.Err != nil {
		r.Stats.FilesErrored++
		path := ""
		if o.Plan.Source != nil {
			path = o.Plan.Source.Path
		}
		r.Errors = append(r.Errors, RunError{
			FilePath:  path,
			Operation: o.Plan.Action,
			Error:     o.Err.Error(),
			Timestamp: time.Now(),
		})
		return
	}

	switch o.Plan.Action {
	case ActionMove:
		r.Stats.FilesMoved++
		r.Stats.BytesRelocated += o.Bytes
	case ActionCopy:
		r.Stats.FilesCopied++
		r.Stats.BytesRelocated += o.Bytes
	case ActionDelete:
		r.Stats.FilesDeleted++
		r.Stats.BytesFreed += o.Bytes
	case ActionSkip:
		r.Stats.FilesSkipped++
	}
}

// RecordCorrupt notes a file that was excluded because its probe failed
func (r *Report) RecordCorrupt(path string) {
	r.Stats.FilesCorrupted++
	r.Corrupted = append(r.Corrupted, path)
}

// Finish stamps the end time and derives the status
func (r *Report) Finish(cancelled bool) {
	r.EndTime = time.Now()
	r.Duration = r.EndTime.Sub(r.StartTime)

	switch {
	case cancelled:
		r.Status = StatusCancelled
	case r.Stats.FilesErrored > 0:
		r.Status = StatusPartial
	default:
		r.Status = StatusSuccess
	}
}

// ExitCode returns the appropriate exit code for the status
func (s Status) ExitCode() int {
	switch s {
	case StatusSuccess:
		return 0
	case StatusPartial:
		return 1
	case StatusFailed:
		return 2
	case StatusCancelled:
		return 3
	default:
		return 2
	}
}
