package output

import (
	"io"

	"github.com/sdejongh/mediatidy/pkg/models"
)

// Update types
const (
	// UpdateStage announces a new stage; Total is 0 when unknown
	UpdateStage = "stage"
	// UpdateItem reports one finished work item
	UpdateItem = "item"
	// UpdateOutcome reports the outcome of a planned action
	UpdateOutcome = "outcome"
	// UpdateError reports a per-file failure
	UpdateError = "error"
)

// Stage names used by the pipelines
const (
	StageScan        = "Scanning"
	StageFingerprint = "Fingerprinting"
	StageMetadata    = "Reading metadata"
	StageApply       = "Applying"
)

// ProgressUpdate represents a progress notification during a run
type ProgressUpdate struct {
	Type     string
	Stage    string
	FilePath string
	Current  int
	Total    int
	Outcome  *models.Outcome
	DryRun   bool
	Error    error
}

// Formatter defines the interface for output formatting.
// Implementations include human-readable, progress bar and JSON formatters.
type Formatter interface {
	// Start initializes the formatter for a new run
	Start(writer io.Writer, report *models.Report) error

	// Progress reports progress during the run
	Progress(update ProgressUpdate) error

	// Complete finalizes output and displays the summary
	Complete(report *models.Report) error

	// Error reports an error that ended the run
	Error(err error) error

	// Name returns the formatter name
	Name() string
}

// Options selects and configures a formatter
type Options struct {
	// Format is "human" or "json"
	Format string
	// Progress enables progress bars when the writer is a terminal
	Progress bool
	// Verbose prints one line per planned action
	Verbose bool
	// Quiet prints errors and the final status only
	Quiet bool
	// Terminal reports whether the output is an interactive terminal
	Terminal bool
}

// New returns the formatter described by opts
func New(opts Options) Formatter {
	switch {
	case opts.Format == "json":
		return NewJSONFormatter()
	case opts.Progress && opts.Terminal && !opts.Quiet:
		return NewProgressFormatter(opts.Verbose)
	default:
		human := NewHumanFormatter(opts.Verbose)
		human.Quiet = opts.Quiet
		return human
	}
}

// Nop discards everything; used by library callers and tests
type Nop struct{}

func (Nop) Start(io.Writer, *models.Report) error { return nil }
func (Nop) Progress(ProgressUpdate) error         { return nil }
func (Nop) Complete(*models.Report) error         { return nil }
func (Nop) Error(error) error                     { return nil }
func (Nop) Name() string                          { return "none" }

// OrNop returns f, or Nop when f is nil
func OrNop(f Formatter) Formatter {
	if f == nil {
		return Nop{}
	}
	return f
}
