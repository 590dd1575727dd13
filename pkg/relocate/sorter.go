package relocate

import (
	"context"
	"errors"
	"io"

	"github.com/sdejongh/mediatidy/pkg/logging"
	"github.com/sdejongh/mediatidy/pkg/models"
	"github.com/sdejongh/mediatidy/pkg/output"
	"github.com/sdejongh/mediatidy/pkg/scan"
	"github.com/sdejongh/mediatidy/pkg/storage"
	"github.com/sdejongh/mediatidy/pkg/worker"
)

// Sorter runs the sort pipeline: walk the source, relocate every file on
// the worker pool and report.
type Sorter struct {
	backend   storage.Backend
	engine    *Engine
	pool      *worker.Pool
	formatter output.Formatter
	out       io.Writer
	logger    logging.Logger
	operation *models.SortOperation
}

// NewSorter creates a sorter driving engine
func NewSorter(
	backend storage.Backend,
	engine *Engine,
	pool *worker.Pool,
	formatter output.Formatter,
	logger logging.Logger,
	operation *models.SortOperation,
) *Sorter {
	return &Sorter{
		backend:   backend,
		engine:    engine,
		pool:      pool,
		formatter: output.OrNop(formatter),
		logger:    logging.OrNull(logger),
		operation: operation,
	}
}

// SetOutput sets the writer handed to the formatter
func (s *Sorter) SetOutput(w io.Writer) {
	s.out = w
}

// Run sorts the source tree. The destination root is created before any
// file is touched; failing that aborts with a FatalConfigError. The returned
// report is never nil.
func (s *Sorter) Run(ctx context.Context) (*models.Report, error) {
	op := s.operation
	report := models.NewReport(op.ID, "sort", op.SourcePath, op.DestPath, op.DryRun)
	s.formatter.Start(s.out, report)

	s.logger.Info(ctx, "starting sort", logging.Fields{
		"run_id":      op.ID,
		"source":      op.SourcePath,
		"destination": op.DestPath,
		"granularity": string(op.Granularity),
		"mode":        string(op.Mode),
		"dry_run":     op.DryRun,
		"workers":     s.pool.Size(),
	})

	if !op.DryRun {
		if err := s.backend.MkdirAll(ctx, op.DestPath); err != nil {
			return s.finish(ctx, report, &models.FatalConfigError{Op: "create destination " + op.DestPath, Err: err})
		}
	}

	s.formatter.Progress(output.ProgressUpdate{Type: output.UpdateStage, Stage: output.StageScan})
	entries, err := scan.NewIndex(s.backend, op.ExcludePatterns, s.logger).Entries(ctx, op.SourcePath)
	report.Stats.FilesScanned = len(entries)
	if err != nil {
		return s.finish(ctx, report, err)
	}

	s.formatter.Progress(output.ProgressUpdate{
		Type:  output.UpdateStage,
		Stage: output.StageApply,
		Total: len(entries),
	})

	outcomes, err := worker.Execute(ctx, s.pool, entries,
		func(ctx context.Context, e *models.FileEntry) (models.Outcome, error) {
			return s.engine.Relocate(ctx, e), nil
		},
		worker.Hooks[*models.FileEntry]{
			Progress: func(done, total int) {
				s.formatter.Progress(output.ProgressUpdate{
					Type:    output.UpdateItem,
					Stage:   output.StageApply,
					Current: done,
					Total:   total,
				})
			},
		},
	)

	for i := range outcomes {
		report.Record(outcomes[i])
		s.formatter.Progress(output.ProgressUpdate{
			Type:    output.UpdateOutcome,
			Outcome: &outcomes[i],
			DryRun:  op.DryRun,
		})
	}

	return s.finish(ctx, report, err)
}

func (s *Sorter) finish(ctx context.Context, report *models.Report, err error) (*models.Report, error) {
	cancelled := errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
	report.Finish(cancelled)
	if err != nil && !cancelled {
		report.Status = models.StatusFailed
	}

	if err != nil && !cancelled {
		s.formatter.Error(err)
	} else {
		s.formatter.Complete(report)
	}

	s.logger.Info(ctx, "sort finished", logging.Fields{
		"status":    string(report.Status),
		"moved":     report.Stats.FilesMoved,
		"copied":    report.Stats.FilesCopied,
		"deleted":   report.Stats.FilesDeleted,
		"skipped":   report.Stats.FilesSkipped,
		"corrupted": report.Stats.FilesCorrupted,
		"errors":    report.Stats.FilesErrored,
		"duration":  report.Duration.String(),
	})
	return report, err
}
