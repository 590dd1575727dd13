// Package relocate moves media into a date-based tree without ever losing a
// file: collisions are resolved by content comparison and numeric suffixes.
package relocate

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/sdejongh/mediatidy/pkg/classify"
	"github.com/sdejongh/mediatidy/pkg/logging"
	"github.com/sdejongh/mediatidy/pkg/metadata"
	"github.com/sdejongh/mediatidy/pkg/models"
	"github.com/sdejongh/mediatidy/pkg/storage"
)

// NoMetaDataDir receives files without a usable capture date
const NoMetaDataDir = "NoMetaData"

// DefaultMaxSuffix bounds the _N suffixes tried for one destination
const DefaultMaxSuffix = 1000

// Comparer decides whether two entries hold the same content
type Comparer interface {
	Equal(ctx context.Context, a, b *models.FileEntry) (bool, error)
}

// Engine plans and applies relocations for a sort operation
type Engine struct {
	backend    storage.Backend
	extractors *metadata.Set
	comparer   Comparer
	logger     logging.Logger
	operation  *models.SortOperation

	// MaxSuffix is the highest suffix tried before giving up on a name
	MaxSuffix int

	// mu guards locks and claimed
	mu    sync.Mutex
	locks map[string]*sync.Mutex
	// destinations claimed by a dry run, which never creates them
	claimed map[string]*models.FileEntry
}

// NewEngine creates a relocation engine
func NewEngine(
	backend storage.Backend,
	extractors *metadata.Set,
	comparer Comparer,
	logger logging.Logger,
	operation *models.SortOperation,
) *Engine {
	return &Engine{
		backend:    backend,
		extractors: extractors,
		comparer:   comparer,
		logger:     logging.OrNull(logger),
		operation:  operation,
		MaxSuffix:  DefaultMaxSuffix,
		locks:      make(map[string]*sync.Mutex),
		claimed:    make(map[string]*models.FileEntry),
	}
}

// Plan computes where entry belongs. The destination is the ideal path;
// collisions are resolved when the plan is applied. A corrupt media file is
// planned into NoMetaData and reported through the returned corrupt flag.
func (e *Engine) Plan(ctx context.Context, entry *models.FileEntry) (plan models.RelocationPlan, corrupt bool, err error) {
	date, ok, err := e.extractors.CaptureDate(ctx, entry)
	if err != nil {
		return models.RelocationPlan{Source: entry, Action: models.ActionSkip}, false, err
	}
	// metadata is memoized on the entry, this does not probe again
	if corrupt, _ = e.extractors.IsCorrupt(ctx, entry); corrupt {
		e.logger.Warn(ctx, "metadata unavailable, sorting without date", logging.Fields{"path": entry.Path})
	}

	reason := "capture date"
	if !ok && !corrupt && e.operation.MtimeFallback {
		date, ok = entry.ModTime, true
		reason = "modification time"
	}
	if !ok {
		reason = "no capture date"
	}

	dest := Destination(e.operation.DestPath, entry, date, ok, e.operation.Granularity, e.operation.Rename)
	plan = models.RelocationPlan{
		Source:      entry,
		Destination: dest,
		Action:      e.action(),
		Reason:      reason,
	}
	if filepath.Clean(dest) == filepath.Clean(entry.Path) {
		plan.Action = models.ActionSkip
		plan.Reason = "already in place"
	}
	return plan, corrupt, nil
}

// Apply resolves collisions for plan and performs it. The destination
// directory is locked for the whole resolution so concurrent workers never
// race for the same name.
func (e *Engine) Apply(ctx context.Context, plan models.RelocationPlan) models.Outcome {
	start := time.Now()
	outcome := models.Outcome{Plan: plan}
	if plan.Action == models.ActionSkip {
		return outcome
	}
	if err := ctx.Err(); err != nil {
		outcome.Err = err
		return outcome
	}

	dir := filepath.Dir(plan.Destination)
	unlock := e.lock(dir)
	defer unlock()

	resolved, err := e.resolve(ctx, plan)
	outcome.Plan = resolved
	if err != nil {
		var collision *models.CollisionError
		if errors.As(err, &collision) {
			e.logger.Warn(ctx, "no free destination name, file left in place", logging.Fields{
				"path":        plan.Source.Path,
				"destination": plan.Destination,
				"attempts":    collision.Attempts,
			})
			outcome.Plan.Action = models.ActionSkip
			outcome.Plan.Reason = err.Error()
			return outcome
		}
		outcome.Err = err
		return outcome
	}

	if e.operation.DryRun {
		if resolved.Action == models.ActionMove || resolved.Action == models.ActionCopy {
			e.mu.Lock()
			e.claimed[resolved.Destination] = resolved.Source
			e.mu.Unlock()
			outcome.Bytes = resolved.Source.Size
		}
		if resolved.Action == models.ActionDelete {
			outcome.Bytes = resolved.Source.Size
		}
		outcome.Duration = time.Since(start)
		return outcome
	}

	outcome.Bytes, outcome.Err = e.perform(ctx, resolved)
	outcome.Applied = outcome.Err == nil
	outcome.Duration = time.Since(start)

	fields := logging.Fields{
		"path":        resolved.Source.Path,
		"destination": resolved.Destination,
		"action":      string(resolved.Action),
	}
	switch {
	case models.IsPermission(outcome.Err):
		e.logger.Warn(ctx, "permission denied, file left in place", fields)
	case outcome.Err != nil:
		e.logger.Error(ctx, "relocation failed", outcome.Err, fields)
	default:
		e.logger.Info(ctx, "file relocated", fields)
	}
	return outcome
}

// Relocate plans and applies entry in one step
func (e *Engine) Relocate(ctx context.Context, entry *models.FileEntry) models.Outcome {
	plan, corrupt, err := e.Plan(ctx, entry)
	if err != nil {
		return models.Outcome{Plan: plan, Err: err}
	}
	outcome := e.Apply(ctx, plan)
	outcome.Corrupt = corrupt
	return outcome
}

// resolve walks the candidate names dest, dest_1, dest_2, ... and settles
// on the first free one. A candidate holding the same content as the source
// turns the plan into a deletion of the source (or a skip when copying).
func (e *Engine) resolve(ctx context.Context, plan models.RelocationPlan) (models.RelocationPlan, error) {
	ext := filepath.Ext(plan.Destination)
	stem := strings.TrimSuffix(plan.Destination, ext)

	for n := 0; n <= e.MaxSuffix; n++ {
		candidate := plan.Destination
		if n > 0 {
			candidate = fmt.Sprintf("%s_%d%s", stem, n, ext)
		}

		if filepath.Clean(candidate) == filepath.Clean(plan.Source.Path) {
			plan.Destination = candidate
			plan.Action = models.ActionSkip
			plan.Reason = "already in place"
			return plan, nil
		}

		existing, err := e.occupant(ctx, candidate)
		if err != nil {
			return plan, err
		}
		if existing == nil {
			plan.Destination = candidate
			if n > 0 {
				plan.Reason += ", renamed to avoid collision"
			}
			return plan, nil
		}

		same, err := e.comparer.Equal(ctx, plan.Source, existing)
		if err != nil {
			if !models.IsCorrupt(err) {
				return plan, fmt.Errorf("failed to compare with %s: %w", candidate, err)
			}
			same = false
		}
		if same {
			plan.Destination = candidate
			if e.operation.Mode == models.ModeCopy {
				plan.Action = models.ActionSkip
				plan.Reason = "already copied to " + candidate
			} else {
				plan.Action = models.ActionDelete
				plan.Reason = "duplicate of " + candidate
			}
			return plan, nil
		}
	}

	return plan, &models.CollisionError{Destination: plan.Destination, Attempts: e.MaxSuffix + 1}
}

// occupant returns an entry for whatever holds path, or nil when it is free
func (e *Engine) occupant(ctx context.Context, path string) (*models.FileEntry, error) {
	e.mu.Lock()
	claimed, ok := e.claimed[path]
	e.mu.Unlock()
	if ok {
		return claimed, nil
	}

	exists, err := e.backend.Exists(ctx, path)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, nil
	}
	info, err := e.backend.Stat(ctx, path)
	if err != nil {
		return nil, err
	}
	return models.NewFileEntry(path, classify.Classify(path, info.IsDir), info.Size, info.ModTime), nil
}

func (e *Engine) perform(ctx context.Context, plan models.RelocationPlan) (int64, error) {
	switch plan.Action {
	case models.ActionDelete:
		if err := e.backend.Remove(ctx, plan.Source.Path); err != nil {
			return 0, err
		}
		return plan.Source.Size, nil
	case models.ActionMove, models.ActionCopy:
		if err := e.backend.MkdirAll(ctx, filepath.Dir(plan.Destination)); err != nil {
			return 0, err
		}
		if plan.Action == models.ActionCopy {
			return e.backend.Copy(ctx, plan.Source.Path, plan.Destination)
		}
		return e.backend.Move(ctx, plan.Source.Path, plan.Destination)
	}
	return 0, nil
}

func (e *Engine) action() models.Action {
	if e.operation.Mode == models.ModeCopy {
		return models.ActionCopy
	}
	return models.ActionMove
}

func (e *Engine) lock(dir string) func() {
	e.mu.Lock()
	m, ok := e.locks[dir]
	if !ok {
		m = &sync.Mutex{}
		e.locks[dir] = m
	}
	e.mu.Unlock()

	m.Lock()
	return m.Unlock
}

// Destination returns the sorted path of entry under root.
//
// Dated files go to root/<bucket>/YYYY[/MonthName[/DD]]/<name>; undated ones
// to root/<bucket>/NoMetaData/<name>. With rename set, dated files are named
// YYYYMMDD_HHMMSS<ext>.
func Destination(root string, entry *models.FileEntry, date time.Time, dated bool, g models.Granularity, rename bool) string {
	bucket := filepath.Join(root, entry.Kind.Bucket())
	if !dated {
		return filepath.Join(bucket, NoMetaDataDir, entry.Name())
	}

	name := entry.Name()
	if rename {
		name = date.Format("20060102_150405") + entry.Ext
	}
	return filepath.Join(bucket, DateDir(date, g), name)
}

// DateDir returns the relative folder for date at granularity g
func DateDir(date time.Time, g models.Granularity) string {
	year := fmt.Sprintf("%04d", date.Year())
	switch g {
	case models.GranularityYear:
		return year
	case models.GranularityDay:
		return filepath.Join(year, date.Month().String(), fmt.Sprintf("%02d", date.Day()))
	default:
		return filepath.Join(year, date.Month().String())
	}
}
