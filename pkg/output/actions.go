package output

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/sdejongh/mediatidy/pkg/models"
)

// WriteActionsReport writes every planned action of a run to a file.
// Format can be "human" or "json". Nothing is written for a run without
// outcomes or corrupted files.
func WriteActionsReport(report *models.Report, path string, format string) error {
	if len(report.Outcomes) == 0 && len(report.Corrupted) == 0 {
		return nil
	}

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create report file: %w", err)
	}
	defer file.Close()

	switch format {
	case "json":
		return writeJSON(file, BuildJSONReport(report))
	default:
		return writeActionsHuman(report, file)
	}
}

func writeActionsHuman(report *models.Report, w io.Writer) error {
	fmt.Fprintf(w, "Actions Report\n")
	fmt.Fprintf(w, "==============\n\n")
	fmt.Fprintf(w, "Generated: %s\n", time.Now().Format(time.RFC3339))
	fmt.Fprintf(w, "Run:       %s\n", report.RunID)
	fmt.Fprintf(w, "Command:   %s\n", report.Command)
	fmt.Fprintf(w, "Root:      %s\n", report.Root)
	if report.Dest != "" {
		fmt.Fprintf(w, "Dest:      %s\n", report.Dest)
	}
	fmt.Fprintf(w, "Dry Run:   %v\n\n", report.DryRun)

	byAction := make(map[models.Action][]models.Outcome)
	var failed []models.Outcome
	for _, o := range report.Outcomes {
		if o.Err != nil {
			failed = append(failed, o)
			continue
		}
		byAction[o.Plan.Action] = append(byAction[o.Plan.Action], o)
	}

	labels := []struct {
		action models.Action
		label  string
	}{
		{models.ActionMove, "Moved"},
		{models.ActionCopy, "Copied"},
		{models.ActionDelete, "Deleted"},
		{models.ActionSkip, "Skipped"},
	}

	for _, l := range labels {
		outcomes := byAction[l.action]
		if len(outcomes) == 0 {
			continue
		}
		writeSection(w, fmt.Sprintf("%s (%d files)", l.label, len(outcomes)))
		for _, o := range outcomes {
			fmt.Fprintf(w, "  %s\n", o.Plan.Source.Path)
			if o.Plan.Destination != "" && o.Plan.Action != models.ActionDelete {
				fmt.Fprintf(w, "    To:     %s\n", o.Plan.Destination)
			}
			if o.Plan.Reason != "" {
				fmt.Fprintf(w, "    Reason: %s\n", o.Plan.Reason)
			}
			if o.Bytes > 0 {
				fmt.Fprintf(w, "    Size:   %s\n", formatBytes(o.Bytes))
			}
		}
		fmt.Fprintf(w, "\n")
	}

	if len(report.Corrupted) > 0 {
		writeSection(w, fmt.Sprintf("Corrupted (%d files)", len(report.Corrupted)))
		for _, p := range report.Corrupted {
			fmt.Fprintf(w, "  %s\n", p)
		}
		fmt.Fprintf(w, "\n")
	}

	if len(failed) > 0 {
		writeSection(w, fmt.Sprintf("Errors (%d files)", len(failed)))
		for _, o := range failed {
			fmt.Fprintf(w, "  %s\n    %s: %v\n", o.Plan.Source.Path, o.Plan.Action, o.Err)
		}
		fmt.Fprintf(w, "\n")
	}

	return nil
}

func writeSection(w io.Writer, label string) {
	fmt.Fprintf(w, "%s\n", label)
	fmt.Fprintf(w, "%s\n", strings.Repeat("-", len(label)))
}
