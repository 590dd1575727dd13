package output

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/cheggaaa/pb/v3"
	"golang.org/x/term"

	"github.com/sdejongh/mediatidy/pkg/models"
)

const barTemplate pb.ProgressBarTemplate = `{{string . "stage" | cyan}} {{counters . }} {{bar . "[" "=" ">" " " "]"}} {{percent . }} {{etime . }}`

// IsTerminal reports whether f is an interactive terminal
func IsTerminal(f *os.File) bool {
	return f != nil && term.IsTerminal(int(f.Fd()))
}

// ProgressFormatter shows one progress bar per counted stage and falls back
// to the human summary when the run completes
type ProgressFormatter struct {
	human *HumanFormatter

	mu     sync.Mutex
	writer io.Writer
	bar    *pb.ProgressBar
}

// NewProgressFormatter creates a progress bar formatter
func NewProgressFormatter(verbose bool) *ProgressFormatter {
	return &ProgressFormatter{human: NewHumanFormatter(verbose)}
}

// Start initializes the formatter
func (f *ProgressFormatter) Start(writer io.Writer, report *models.Report) error {
	f.mu.Lock()
	f.writer = writer
	f.mu.Unlock()
	return f.human.Start(writer, report)
}

// Progress reports progress during the run
func (f *ProgressFormatter) Progress(update ProgressUpdate) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.writer == nil {
		return nil
	}

	switch update.Type {
	case UpdateStage:
		f.finishBar()
		if update.Total <= 0 {
			fmt.Fprintf(f.writer, "%s...\n", update.Stage)
			return nil
		}
		f.bar = barTemplate.New(update.Total).
			SetWriter(f.writer).
			Set("stage", update.Stage)
		f.bar.Start()

	case UpdateItem:
		if f.bar != nil {
			f.bar.SetCurrent(int64(update.Current))
		}

	case UpdateOutcome:
		// per-file lines would tear the bar; show them once it is done
		if f.bar == nil {
			return f.human.Progress(update)
		}

	case UpdateError:
		// errors are listed in the summary
	}

	return nil
}

// Complete finalizes output and displays the summary
func (f *ProgressFormatter) Complete(report *models.Report) error {
	f.mu.Lock()
	f.finishBar()
	f.mu.Unlock()
	return f.human.Complete(report)
}

// Error reports an error
func (f *ProgressFormatter) Error(err error) error {
	f.mu.Lock()
	f.finishBar()
	f.mu.Unlock()
	return f.human.Error(err)
}

// Name returns the formatter name
func (f *ProgressFormatter) Name() string {
	return "progress"
}

func (f *ProgressFormatter) finishBar() {
	if f.bar != nil {
		f.bar.Finish()
		f.bar = nil
	}
}
