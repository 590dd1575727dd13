package dedup

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/sdejongh/mediatidy/pkg/fingerprint"
	"github.com/sdejongh/mediatidy/pkg/logging"
	"github.com/sdejongh/mediatidy/pkg/models"
	"github.com/sdejongh/mediatidy/pkg/output"
	"github.com/sdejongh/mediatidy/pkg/scan"
	"github.com/sdejongh/mediatidy/pkg/storage"
	"github.com/sdejongh/mediatidy/pkg/worker"
)

// Cache is the part of the fingerprint cache the remover maintains
type Cache interface {
	Remove(ctx context.Context, path string) error
	Prune(ctx context.Context, seen map[string]bool) (int64, error)
}

// Remover runs the duplicate removal pipeline:
// walk, fingerprint, group, plan, confirm, delete and report.
type Remover struct {
	backend   storage.Backend
	policy    *fingerprint.Policy
	pool      *worker.Pool
	cache     Cache
	formatter output.Formatter
	out       io.Writer
	logger    logging.Logger
	operation *models.DedupOperation
}

// NewRemover creates a remover
func NewRemover(
	backend storage.Backend,
	policy *fingerprint.Policy,
	pool *worker.Pool,
	formatter output.Formatter,
	logger logging.Logger,
	operation *models.DedupOperation,
) *Remover {
	return &Remover{
		backend:   backend,
		policy:    policy,
		pool:      pool,
		formatter: output.OrNop(formatter),
		logger:    logging.OrNull(logger),
		operation: operation,
	}
}

// SetCache sets the fingerprint cache to keep in step with deletions
func (r *Remover) SetCache(c Cache) {
	r.cache = c
}

// SetOutput sets the writer handed to the formatter
func (r *Remover) SetOutput(w io.Writer) {
	r.out = w
}

type deletion struct {
	plan   models.RelocationPlan
	keeper *models.FileEntry
}

// Run executes the deduplication. The returned report is never nil; when
// ctx is cancelled the report is marked cancelled and ctx.Err() is returned.
func (r *Remover) Run(ctx context.Context) (*models.Report, error) {
	op := r.operation
	report := models.NewReport(op.ID, "dedup", op.RootPath, "", op.DryRun)
	r.formatter.Start(r.out, report)

	r.logger.Info(ctx, "starting duplicate removal", logging.Fields{
		"run_id":  op.ID,
		"root":    op.RootPath,
		"keep":    op.Keep,
		"dry_run": op.DryRun,
		"workers": r.pool.Size(),
	})

	// Walk
	r.formatter.Progress(output.ProgressUpdate{Type: output.UpdateStage, Stage: output.StageScan})
	entries, err := scan.NewIndex(r.backend, op.ExcludePatterns, r.logger).Entries(ctx, op.RootPath)
	report.Stats.FilesScanned = len(entries)
	if err != nil {
		return r.finish(ctx, report, err)
	}

	// Fingerprint
	candidates := candidates(entries)
	r.logger.Debug(ctx, "fingerprint candidates selected", logging.Fields{
		"scanned":    len(entries),
		"candidates": len(candidates),
	})
	results, err := r.fingerprint(ctx, candidates, report)
	if err != nil {
		return r.finish(ctx, report, err)
	}

	// Group and plan
	groups, corrupted := Group(results)
	report.Stats.DuplicateGroups = len(groups)
	for _, e := range corrupted {
		r.logger.Warn(ctx, "corrupt file excluded from duplicate detection", logging.Fields{"path": e.Path})
		report.RecordCorrupt(e.Path)
	}

	deletions := planWithKeepers(groups, op.Keep)
	r.logger.Info(ctx, "duplicates grouped", logging.Fields{
		"groups":    len(groups),
		"deletions": len(deletions),
		"corrupted": len(corrupted),
	})

	// Apply
	if err := r.apply(ctx, deletions, report); err != nil {
		return r.finish(ctx, report, err)
	}

	if r.cache != nil {
		seen := make(map[string]bool, len(entries))
		for _, e := range entries {
			seen[e.Path] = true
		}
		for _, o := range report.Outcomes {
			if o.Applied && o.Plan.Action == models.ActionDelete {
				delete(seen, o.Plan.Source.Path)
			}
		}
		if _, err := r.cache.Prune(ctx, seen); err != nil {
			r.logger.Warn(ctx, "failed to prune fingerprint cache", logging.Fields{"error": err.Error()})
		}
	}

	return r.finish(ctx, report, nil)
}

func (r *Remover) fingerprint(ctx context.Context, entries []*models.FileEntry, report *models.Report) ([]Result, error) {
	r.formatter.Progress(output.ProgressUpdate{
		Type:  output.UpdateStage,
		Stage: output.StageFingerprint,
		Total: len(entries),
	})

	var failed []models.Outcome
	results, err := worker.Execute(ctx, r.pool, entries,
		func(ctx context.Context, e *models.FileEntry) (Result, error) {
			fp, err := r.policy.Compute(ctx, e)
			if err != nil && models.IsCorrupt(err) {
				return Result{Entry: e, Err: err}, nil
			}
			if err != nil {
				return Result{}, err
			}
			return Result{Entry: e, Fingerprint: fp}, nil
		},
		worker.Hooks[*models.FileEntry]{
			Progress: func(done, total int) {
				r.formatter.Progress(output.ProgressUpdate{
					Type:    output.UpdateItem,
					Stage:   output.StageFingerprint,
					Current: done,
					Total:   total,
				})
			},
			OnError: func(e *models.FileEntry, err error) {
				failed = append(failed, models.Outcome{
					Plan: models.RelocationPlan{Source: e, Action: models.ActionSkip, Reason: "fingerprint failed"},
					Err:  err,
				})
				r.formatter.Progress(output.ProgressUpdate{
					Type:     output.UpdateError,
					Stage:    output.StageFingerprint,
					FilePath: e.Path,
					Error:    err,
				})
			},
		},
	)

	for _, o := range failed {
		report.Record(o)
	}
	return results, err
}

func (r *Remover) apply(ctx context.Context, deletions []deletion, report *models.Report) error {
	if len(deletions) == 0 {
		return nil
	}

	r.formatter.Progress(output.ProgressUpdate{
		Type:  output.UpdateStage,
		Stage: output.StageApply,
		Total: len(deletions),
	})

	outcomes, err := worker.Execute(ctx, r.pool, deletions,
		func(ctx context.Context, d deletion) (models.Outcome, error) {
			return r.remove(ctx, d), nil
		},
		worker.Hooks[deletion]{
			Progress: func(done, total int) {
				r.formatter.Progress(output.ProgressUpdate{
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
		r.formatter.Progress(output.ProgressUpdate{
			Type:    output.UpdateOutcome,
			Outcome: &outcomes[i],
			DryRun:  r.operation.DryRun,
		})
	}
	return err
}

// remove deletes one planned duplicate. Byte-hash fingerprints are confirmed
// against the keeper first; a mismatch leaves the file in place.
func (r *Remover) remove(ctx context.Context, d deletion) models.Outcome {
	start := time.Now()
	entry := d.plan.Source
	outcome := models.Outcome{Plan: d.plan}

	fp, _ := entry.CachedFingerprint()
	same, err := r.policy.Confirm(ctx, d.keeper, entry, fp)
	if err != nil {
		outcome.Err = fmt.Errorf("failed to confirm duplicate: %w", err)
		return outcome
	}
	if !same {
		r.logger.Warn(ctx, "fingerprint collision, file kept", logging.Fields{
			"path":   entry.Path,
			"keeper": d.keeper.Path,
		})
		outcome.Plan.Action = models.ActionSkip
		outcome.Plan.Reason = "fingerprint collision with " + d.keeper.Path
		return outcome
	}

	outcome.Bytes = entry.Size
	if r.operation.DryRun {
		r.logger.Info(ctx, "would delete duplicate", logging.Fields{"path": entry.Path, "keeper": d.keeper.Path})
		outcome.Duration = time.Since(start)
		return outcome
	}

	if err := r.backend.Remove(ctx, entry.Path); err != nil {
		r.logger.Error(ctx, "failed to delete duplicate", err, logging.Fields{"path": entry.Path})
		outcome.Bytes = 0
		outcome.Err = err
		return outcome
	}

	r.logger.Info(ctx, "deleted duplicate", logging.Fields{
		"path":   entry.Path,
		"keeper": d.keeper.Path,
		"size":   entry.Size,
	})
	if r.cache != nil {
		if err := r.cache.Remove(ctx, entry.Path); err != nil {
			r.logger.Warn(ctx, "failed to drop cache entry", logging.Fields{"path": entry.Path, "error": err.Error()})
		}
	}

	outcome.Applied = true
	outcome.Duration = time.Since(start)
	return outcome
}

func (r *Remover) finish(ctx context.Context, report *models.Report, err error) (*models.Report, error) {
	cancelled := errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
	report.Finish(cancelled)
	if err != nil && !cancelled {
		report.Status = models.StatusFailed
	}

	if err != nil && !cancelled {
		r.formatter.Error(err)
	} else {
		r.formatter.Complete(report)
	}
	r.logger.Info(ctx, "duplicate removal finished", logging.Fields{
		"status":    string(report.Status),
		"deleted":   report.Stats.FilesDeleted,
		"skipped":   report.Stats.FilesSkipped,
		"corrupted": report.Stats.FilesCorrupted,
		"errors":    report.Stats.FilesErrored,
		"freed":     report.Stats.BytesFreed,
		"duration":  report.Duration.String(),
	})
	return report, err
}

// candidates drops files that cannot have a duplicate. Byte-hashed kinds
// need a partner of identical kind and size; media are always fingerprinted
// so corrupt files are detected and reported.
func candidates(entries []*models.FileEntry) []*models.FileEntry {
	type key struct {
		kind models.Kind
		size int64
	}
	count := make(map[key]int)
	for _, e := range entries {
		if fingerprint.MethodFor(e.Kind) == fingerprint.MethodContent {
			count[key{e.Kind, e.Size}]++
		}
	}

	out := make([]*models.FileEntry, 0, len(entries))
	for _, e := range entries {
		if fingerprint.MethodFor(e.Kind) == fingerprint.MethodContent && count[key{e.Kind, e.Size}] < 2 {
			continue
		}
		out = append(out, e)
	}
	return out
}

func planWithKeepers(groups []models.DuplicateGroup, keep int) []deletion {
	keepers := make(map[string]*models.FileEntry)
	for _, g := range groups {
		for _, e := range g.Entries {
			keepers[e.Path] = g.Entries[0]
		}
	}

	plans := PlanDeletions(groups, keep)
	deletions := make([]deletion, len(plans))
	for i, p := range plans {
		deletions[i] = deletion{plan: p, keeper: keepers[p.Source.Path]}
	}
	return deletions
}
