package output

import (
	"encoding/json"
	"io"
	"os"
	"sync"
	"time"

	"github.com/sdejongh/mediatidy/pkg/models"
)

// JSONFormatter formats output as JSON for automation and scripting.
// Nothing is written until Complete so the output stays a single document.
type JSONFormatter struct {
	mu     sync.Mutex
	writer io.Writer
	events []JSONEvent
}

// JSONEvent represents a single event recorded during the run
type JSONEvent struct {
	Timestamp time.Time `json:"timestamp"`
	Type      string    `json:"type"`
	Data      any       `json:"data,omitempty"`
}

// JSONReportData represents the final report
type JSONReportData struct {
	RunID      string            `json:"run_id"`
	Command    string            `json:"command"`
	Root       string            `json:"root"`
	Dest       string            `json:"dest,omitempty"`
	DryRun     bool              `json:"dry_run"`
	Status     string            `json:"status"`
	Duration   string            `json:"duration"`
	DurationMs int64             `json:"duration_ms"`
	Stats      JSONStatsData     `json:"stats"`
	Outcomes   []JSONOutcomeData `json:"outcomes,omitempty"`
	Corrupted  []string          `json:"corrupted,omitempty"`
	Errors     []JSONErrorData   `json:"errors,omitempty"`
	Fatal      string            `json:"fatal,omitempty"`
}

// JSONStatsData represents statistics in JSON format
type JSONStatsData struct {
	FilesScanned    int   `json:"files_scanned"`
	DuplicateGroups int   `json:"duplicate_groups"`
	FilesMoved      int   `json:"files_moved"`
	FilesCopied     int   `json:"files_copied"`
	FilesDeleted    int   `json:"files_deleted"`
	FilesSkipped    int   `json:"files_skipped"`
	FilesCorrupted  int   `json:"files_corrupted"`
	FilesErrored    int   `json:"files_errored"`
	BytesFreed      int64 `json:"bytes_freed"`
	BytesRelocated  int64 `json:"bytes_relocated"`
}

// JSONOutcomeData represents one planned or applied action
type JSONOutcomeData struct {
	Path        string `json:"path"`
	Kind        string `json:"kind,omitempty"`
	Action      string `json:"action"`
	Destination string `json:"destination,omitempty"`
	Reason      string `json:"reason,omitempty"`
	Applied     bool   `json:"applied"`
	Bytes       int64  `json:"bytes,omitempty"`
	Error       string `json:"error,omitempty"`
}

// JSONErrorData represents an error entry
type JSONErrorData struct {
	Path      string `json:"path"`
	Operation string `json:"operation,omitempty"`
	Error     string `json:"error"`
}

// NewJSONFormatter creates a new JSON formatter
func NewJSONFormatter() *JSONFormatter {
	return &JSONFormatter{
		events: make([]JSONEvent, 0),
	}
}

// Start initializes the formatter
func (f *JSONFormatter) Start(writer io.Writer, report *models.Report) error {
	if writer == nil {
		writer = os.Stdout
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.writer = writer
	f.events = append(f.events, JSONEvent{
		Timestamp: time.Now(),
		Type:      "start",
		Data:      map[string]string{"run_id": report.RunID, "command": report.Command},
	})
	return nil
}

// Progress records stage changes; per-item progress is not emitted to keep
// the output parseable
func (f *JSONFormatter) Progress(update ProgressUpdate) error {
	if update.Type != UpdateStage {
		return nil
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, JSONEvent{
		Timestamp: time.Now(),
		Type:      "stage",
		Data:      map[string]any{"stage": update.Stage, "total": update.Total},
	})
	return nil
}

// Complete writes the final report as a single JSON document
func (f *JSONFormatter) Complete(report *models.Report) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.writer == nil {
		f.writer = io.Discard
	}
	return writeJSON(f.writer, BuildJSONReport(report))
}

// Error writes a minimal document for a run that could not start or finish
func (f *JSONFormatter) Error(err error) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.events = append(f.events, JSONEvent{
		Timestamp: time.Now(),
		Type:      "error",
		Data:      map[string]string{"error": err.Error()},
	})
	if f.writer == nil {
		return nil
	}
	return writeJSON(f.writer, JSONReportData{Status: string(models.StatusFailed), Fatal: err.Error()})
}

// Name returns the formatter name
func (f *JSONFormatter) Name() string {
	return "json"
}

// Events returns the events recorded so far
func (f *JSONFormatter) Events() []JSONEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]JSONEvent(nil), f.events...)
}

// BuildJSONReport converts a report into its JSON representation
func BuildJSONReport(report *models.Report) JSONReportData {
	s := report.Stats
	data := JSONReportData{
		RunID:      report.RunID,
		Command:    report.Command,
		Root:       report.Root,
		Dest:       report.Dest,
		DryRun:     report.DryRun,
		Status:     string(report.Status),
		Duration:   report.Duration.Round(time.Millisecond).String(),
		DurationMs: report.Duration.Milliseconds(),
		Stats: JSONStatsData{
			FilesScanned:    s.FilesScanned,
			DuplicateGroups: s.DuplicateGroups,
			FilesMoved:      s.FilesMoved,
			FilesCopied:     s.FilesCopied,
			FilesDeleted:    s.FilesDeleted,
			FilesSkipped:    s.FilesSkipped,
			FilesCorrupted:  s.FilesCorrupted,
			FilesErrored:    s.FilesErrored,
			BytesFreed:      s.BytesFreed,
			BytesRelocated:  s.BytesRelocated,
		},
		Corrupted: report.Corrupted,
	}

	for _, o := range report.Outcomes {
		od := JSONOutcomeData{
			Action:      string(o.Plan.Action),
			Destination: o.Plan.Destination,
			Reason:      o.Plan.Reason,
			Applied:     o.Applied,
			Bytes:       o.Bytes,
		}
		if o.Plan.Source != nil {
			od.Path = o.Plan.Source.Path
			od.Kind = string(o.Plan.Source.Kind)
		}
		if o.Err != nil {
			od.Error = o.Err.Error()
		}
		data.Outcomes = append(data.Outcomes, od)
	}

	for _, e := range report.Errors {
		data.Errors = append(data.Errors, JSONErrorData{
			Path:      e.FilePath,
			Operation: string(e.Operation),
			Error:     e.Error,
		})
	}
	return data
}

func writeJSON(w io.Writer, v any) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}
