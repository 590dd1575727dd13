package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/sdejongh/mediatidy/pkg/config"
	"github.com/sdejongh/mediatidy/pkg/logging"
	"github.com/sdejongh/mediatidy/pkg/metadata"
	"github.com/sdejongh/mediatidy/pkg/models"
	"github.com/sdejongh/mediatidy/pkg/output"
	"github.com/sdejongh/mediatidy/pkg/storage"
	"github.com/spf13/cobra"
)

const ffprobeBinary = "ffprobe"

// checkDependencies verifies external tools before a run starts
var checkDependencies = func() error {
	return metadata.CheckDependencies(ffprobeBinary)
}

// ExitError carries a process exit code out of a command. A nil Err means
// the failure was already shown to the user by the formatter.
type ExitError struct {
	Code int
	Err  error
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return e.Err.Error()
	}
	return fmt.Sprintf("exit status %d", e.Code)
}

func (e *ExitError) Unwrap() error { return e.Err }

// ExitCode maps a command error to the process exit code. Errors returned
// before a run starts are usage or configuration errors and exit 2.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return models.StatusFailed.ExitCode()
}

// Reported reports whether err was already shown to the user
func Reported(err error) bool {
	var exitErr *ExitError
	return errors.As(err, &exitErr) && exitErr.Err == nil
}

// createLogger creates a logger based on configuration
func createLogger(cfg *config.Config) (logging.Logger, error) {
	if !cfg.Logging.Enabled {
		return logging.NewNullLogger(), nil
	}

	format := logging.FormatText
	if cfg.Logging.Format == "json" {
		format = logging.FormatJSON
	}

	return logging.New(logging.Config{
		Path:   cfg.Logging.File,
		Format: format,
		Level:  logging.ParseLevel(cfg.Logging.Level),
	})
}

// newFormatter selects the output formatter for cmd's writer
func newFormatter(cmd *cobra.Command, cfg *config.Config) output.Formatter {
	terminal := false
	if f, ok := cmd.OutOrStdout().(*os.File); ok {
		terminal = output.IsTerminal(f)
	}

	return output.New(output.Options{
		Format:   cfg.Output.Format,
		Progress: cfg.Output.Progress,
		Verbose:  globalFlags.Verbose,
		Quiet:    cfg.Output.Quiet,
		Terminal: terminal,
	})
}

// newBackend creates the local storage backend
func newBackend(cfg *config.Config) *storage.Local {
	backend := storage.NewLocal()
	backend.SetBufferSize(cfg.Performance.BufferSize)
	return backend
}

// newExtractors wires the image and video metadata extractors
func newExtractors(backend storage.Backend, algorithm models.ImageHashAlgorithm) *metadata.Set {
	return &metadata.Set{
		Image: metadata.NewImageExtractor(backend, algorithm),
		Video: metadata.NewVideoExtractor(metadata.NewFFProbe()),
	}
}

// finishRun writes the optional actions report and turns the run status
// into the command's exit code
func finishRun(report *models.Report, rf *runFlags) error {
	if rf.Report != "" {
		if err := output.WriteActionsReport(report, rf.Report, rf.ReportFormat); err != nil {
			return &ExitError{
				Code: models.StatusFailed.ExitCode(),
				Err:  fmt.Errorf("failed to write actions report: %w", err),
			}
		}
	}

	if code := report.Status.ExitCode(); code != 0 {
		return &ExitError{Code: code}
	}
	return nil
}
