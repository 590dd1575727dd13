package output

import (
	"fmt"
	"io"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/sdejongh/mediatidy/pkg/models"
)

// HumanFormatter formats output in human-readable format
type HumanFormatter struct {
	// Verbose prints one line per planned action
	Verbose bool
	// Quiet suppresses everything but errors and the status line
	Quiet bool

	writer io.Writer
	dryRun bool
}

// NewHumanFormatter creates a new human-readable formatter
func NewHumanFormatter(verbose bool) *HumanFormatter {
	return &HumanFormatter{Verbose: verbose}
}

// Start initializes the formatter
func (f *HumanFormatter) Start(writer io.Writer, report *models.Report) error {
	f.writer = writer
	f.dryRun = report.DryRun

	if writer == nil || f.Quiet {
		return nil
	}

	fmt.Fprintln(writer, headerStyle.Render(fmt.Sprintf("mediatidy %s %s", report.Command, report.Root)))
	if report.Dest != "" {
		fmt.Fprintf(writer, "  destination: %s\n", report.Dest)
	}
	if report.DryRun {
		fmt.Fprintln(writer, warnStyle.Render("  dry run: nothing will be changed"))
	}
	return nil
}

// Progress reports progress during the run
func (f *HumanFormatter) Progress(update ProgressUpdate) error {
	if f.writer == nil {
		return nil
	}

	switch update.Type {
	case UpdateStage:
		if f.Quiet {
			return nil
		}
		if update.Total > 0 {
			fmt.Fprintf(f.writer, "%s %d files...\n", update.Stage, update.Total)
		} else {
			fmt.Fprintf(f.writer, "%s...\n", update.Stage)
		}

	case UpdateOutcome:
		if !f.Verbose || f.Quiet || update.Outcome == nil {
			return nil
		}
		fmt.Fprintln(f.writer, describeOutcome(*update.Outcome, f.dryRun || update.DryRun))

	case UpdateError:
		fmt.Fprintf(f.writer, "%s %s: %v\n", errorStyle.Render("✗"), update.FilePath, update.Error)
	}

	return nil
}

// Complete finalizes output and displays the summary
func (f *HumanFormatter) Complete(report *models.Report) error {
	w := f.writer
	if w == nil {
		w = io.Discard
	}
	if f.Quiet {
		fmt.Fprintln(w, statusLine(report))
		return nil
	}
	writeSummary(w, report)
	return nil
}

// Error reports an error
func (f *HumanFormatter) Error(err error) error {
	if f.writer != nil {
		fmt.Fprintf(f.writer, "%s %v\n", errorStyle.Render("Error:"), err)
	}
	return nil
}

// Name returns the formatter name
func (f *HumanFormatter) Name() string {
	return "human"
}

func writeSummary(w io.Writer, report *models.Report) {
	s := report.Stats
	title := "Summary"
	if report.DryRun {
		title = "Summary (dry run)"
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, headerStyle.Render(title))
	fmt.Fprintf(w, "  Run:             %s\n", report.RunID)
	fmt.Fprintf(w, "  Scanned:         %d files\n", s.FilesScanned)
	if report.Command == "dedup" {
		fmt.Fprintf(w, "  Duplicate sets:  %d\n", s.DuplicateGroups)
	}
	fmt.Fprintf(w, "  Moved:           %d\n", s.FilesMoved)
	fmt.Fprintf(w, "  Copied:          %d\n", s.FilesCopied)
	fmt.Fprintf(w, "  Deleted:         %d (%s freed)\n", s.FilesDeleted, formatBytes(s.BytesFreed))
	fmt.Fprintf(w, "  Skipped:         %d\n", s.FilesSkipped)
	fmt.Fprintf(w, "  Corrupted:       %d\n", s.FilesCorrupted)
	fmt.Fprintf(w, "  Errors:          %d\n", s.FilesErrored)
	if s.BytesRelocated > 0 {
		fmt.Fprintf(w, "  Relocated:       %s\n", formatBytes(s.BytesRelocated))
	}
	fmt.Fprintf(w, "  Duration:        %s\n", formatDuration(report.Duration))
	fmt.Fprintln(w, statusLine(report))

	if len(report.Corrupted) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, warnStyle.Render("Corrupted files (left in place):"))
		for _, p := range report.Corrupted {
			fmt.Fprintf(w, "  %s\n", p)
		}
	}

	if len(report.Errors) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, errorStyle.Render("Errors:"))
		for _, e := range report.Errors {
			fmt.Fprintf(w, "  %s (%s): %s\n", e.FilePath, e.Operation, e.Error)
		}
	}
}

func statusLine(report *models.Report) string {
	status := string(report.Status)
	return "  Status:          " + statusStyle(status).Render(status)
}

func describeOutcome(o models.Outcome, dryRun bool) string {
	src := ""
	if o.Plan.Source != nil {
		src = o.Plan.Source.Path
	}

	if o.Err != nil {
		return fmt.Sprintf("%s %s %s: %v", errorStyle.Render("✗"), o.Plan.Action, src, o.Err)
	}

	verb := actionVerb(o.Plan.Action, dryRun)
	line := fmt.Sprintf("%s %s", verb, src)
	if o.Plan.Destination != "" && o.Plan.Action != models.ActionDelete {
		line += " → " + o.Plan.Destination
	}
	if o.Plan.Reason != "" {
		line += dimStyle.Render(" (" + o.Plan.Reason + ")")
	}
	return line
}

func actionVerb(a models.Action, dryRun bool) string {
	past := map[models.Action]string{
		models.ActionMove:   "moved",
		models.ActionCopy:   "copied",
		models.ActionDelete: "deleted",
		models.ActionSkip:   "skipped",
	}
	if dryRun && a != models.ActionSkip {
		return warnStyle.Render("would " + string(a))
	}
	if a == models.ActionDelete {
		return warnStyle.Render(past[a])
	}
	return successStyle.Render(past[a])
}

// formatBytes formats bytes in human-readable format
func formatBytes(b int64) string {
	if b < 0 {
		b = 0
	}
	return humanize.Bytes(uint64(b))
}

// formatDuration formats a duration in human-readable format
func formatDuration(d time.Duration) string {
	if d < time.Second {
		return d.Round(time.Millisecond).String()
	}
	return d.Round(100 * time.Millisecond).String()
}
