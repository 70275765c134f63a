// Package worker runs compaction engines in parallel and hands their
// results back in input order.
package worker

import (
	"context"
	"log/slog"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/andresmejia3/facepack/internal/compact"
	"github.com/andresmejia3/facepack/internal/types"
)

// EmitFunc receives results in index order. Returning an error stops the
// pool.
type EmitFunc func(Result) error

// Pool fans frames out to engines and re-orders their results.
type Pool struct {
	compactor *compact.Compactor
	sel       compact.Selection
	engines   int
	logger    *slog.Logger
}

// NewPool creates a pool of n engines (at least one).
func NewPool(c *compact.Compactor, sel compact.Selection, n int, logger *slog.Logger) *Pool {
	if n < 1 {
		n = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Pool{compactor: c, sel: sel, engines: n, logger: logger}
}

// Run processes tasks until the channel is closed. Task indices must be
// dense and start at zero, as produced by Scan. Run returns the first error
// from emit or ctx; per-frame failures are reported through Result.Err.
func (p *Pool) Run(ctx context.Context, tasks <-chan types.FrameTask, emit EmitFunc) error {
	g, ctx := errgroup.WithContext(ctx)

	// Must be drained concurrently with the engines to avoid a deadlock.
	results := make(chan Result, p.engines*2)

	var engines sync.WaitGroup
	for i := 0; i < p.engines; i++ {
		e := NewEngine(i, p.compactor, p.sel)
		engines.Add(1)
		g.Go(func() error {
			defer engines.Done()
			return e.run(ctx, tasks, results, p.logger)
		})
	}
	g.Go(func() error {
		engines.Wait()
		close(results)
		return nil
	})
	g.Go(func() error {
		return p.aggregate(results, emit)
	})

	return g.Wait()
}

// aggregate emits results in strict index order. Engine 2 may finish a
// frame before engine 1 finishes an earlier one.
func (p *Pool) aggregate(results <-chan Result, emit EmitFunc) error {
	buffer := make(map[int]Result)
	next := 0

	for res := range results {
		buffer[res.Index] = res

		for {
			r, ok := buffer[next]
			if !ok {
				break
			}
			delete(buffer, next)
			if err := emit(r); err != nil {
				return err
			}
			next++
		}
	}

	if len(buffer) == 0 {
		return nil
	}

	// Only reachable when indices had gaps.
	p.logger.Warn("worker: flushing out-of-sequence results", "count", len(buffer), "expected", next)
	indices := make([]int, 0, len(buffer))
	for i := range buffer {
		indices = append(indices, i)
	}
	sort.Ints(indices)
	for _, i := range indices {
		if err := emit(buffer[i]); err != nil {
			return err
		}
	}
	return nil
}
