// Package worker runs per-file jobs on a bounded goroutine pool.
package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"

	"github.com/sdejongh/mediatidy/pkg/logging"
)

// Pool is a bounded pool shared by the stages of a run
type Pool struct {
	pool   *ants.Pool
	size   int
	logger logging.Logger
}

// NewPool creates a pool running at most size jobs at once
func NewPool(size int, logger logging.Logger) (*Pool, error) {
	if size < 1 {
		size = 1
	}
	p, err := ants.NewPool(size)
	if err != nil {
		return nil, fmt.Errorf("failed to create worker pool: %w", err)
	}
	return &Pool{pool: p, size: size, logger: logging.OrNull(logger)}, nil
}

// Size returns the maximum number of concurrent jobs
func (p *Pool) Size() int {
	return p.size
}

// Running returns the number of jobs currently executing
func (p *Pool) Running() int {
	return p.pool.Running()
}

// Release stops the pool; it cannot be used afterwards
func (p *Pool) Release() {
	p.pool.Release()
}

// Func processes one item
type Func[T, R any] func(ctx context.Context, item T) (R, error)

// Hooks observe the progress of Execute. Both callbacks are serialized.
type Hooks[T any] struct {
	// Progress is called once per finished item, failed or not
	Progress func(done, total int)
	// OnError is called for every failed item
	OnError func(item T, err error)
}

// Execute applies fn to every item on the pool.
//
// Results of successful items are returned in completion order; failing
// items are logged with their identity and left out. A panic inside fn is
// recovered and reported as that item's error. Once ctx is cancelled no
// further item is started, running items finish, and ctx.Err() is returned
// together with the results gathered so far.
func Execute[T, R any](ctx context.Context, p *Pool, items []T, fn Func[T, R], hooks Hooks[T]) ([]R, error) {
	var (
		mu      sync.Mutex
		wg      sync.WaitGroup
		results = make([]R, 0, len(items))
		done    int
	)

	finish := func(item T, r R, err error, elapsed time.Duration) {
		mu.Lock()
		defer mu.Unlock()

		done++
		if err != nil {
			p.logger.Warn(ctx, "item failed", logging.Fields{
				"item":     fmt.Sprint(item),
				"error":    err.Error(),
				"duration": elapsed.String(),
			})
			if hooks.OnError != nil {
				hooks.OnError(item, err)
			}
		} else {
			results = append(results, r)
		}
		if hooks.Progress != nil {
			hooks.Progress(done, len(items))
		}
	}

	for _, item := range items {
		if ctx.Err() != nil {
			break
		}

		wg.Add(1)
		submitErr := p.pool.Submit(func() {
			defer wg.Done()
			if ctx.Err() != nil {
				return
			}
			start := time.Now()
			r, err := safeCall(ctx, item, fn)
			finish(item, r, err, time.Since(start))
		})
		if submitErr != nil {
			wg.Done()
			var zero R
			finish(item, zero, fmt.Errorf("failed to schedule: %w", submitErr), 0)
		}
	}

	wg.Wait()

	if err := ctx.Err(); err != nil {
		return results, err
	}
	return results, nil
}

func safeCall[T, R any](ctx context.Context, item T, fn Func[T, R]) (r R, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("panic while processing %v: %v", item, rec)
		}
	}()
	return fn(ctx, item)
}
