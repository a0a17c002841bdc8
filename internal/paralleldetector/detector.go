package paralleldetector

import (
	"context"
	"errors"
	"runtime"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/dreamware/treebalancer/internal/forest"
	"github.com/dreamware/treebalancer/internal/violation"
)

// drainGrace is how long Close waits for in-flight Detect calls to
// finish on their own before force-cancelling them.
const drainGrace = 5 * time.Second

// ErrDetectorClosed is returned by Detect once Close has been called.
var ErrDetectorClosed = errors.New("paralleldetector: detector closed")

// Detector runs BalanceChecker queries over chunked ghost-layer data in
// parallel.
type Detector struct {
	checker    forest.BalanceChecker
	maxWorkers int

	mu      sync.Mutex
	closed  bool
	cancels []context.CancelFunc
	active  sync.WaitGroup
}

// New constructs a Detector bounded to maxWorkers concurrent chunk
// checks. maxWorkers <= 0 defaults to runtime.NumCPU().
func New(checker forest.BalanceChecker, maxWorkers int) *Detector {
	if maxWorkers <= 0 {
		maxWorkers = runtime.NumCPU()
	}
	return &Detector{checker: checker, maxWorkers: maxWorkers}
}

// Detect partitions ghosts into min(partitionCount, maxWorkers) chunks
// and checks each concurrently against trees, merging the resulting
// violations. The merge order across chunks is not meaningful; within a
// chunk, order matches the checker's own output order.
func (d *Detector) Detect(ctx context.Context, trees []forest.SpatialIndex, ghosts []forest.GhostElement, partitionCount int) ([]violation.Violation, error) {
	if len(ghosts) == 0 {
		return nil, nil
	}

	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil, ErrDetectorClosed
	}
	d.active.Add(1)
	childCtx, cancel := context.WithCancel(ctx)
	d.cancels = append(d.cancels, cancel)
	d.mu.Unlock()
	defer func() {
		cancel()
		d.active.Done()
	}()

	chunks := chunk(ghosts, chunkCount(partitionCount, d.maxWorkers, len(ghosts)))

	g, gctx := errgroup.WithContext(childCtx)
	g.SetLimit(d.maxWorkers)

	var mu sync.Mutex
	var all []violation.Violation
	for _, c := range chunks {
		c := c
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			found, err := d.checker.FindViolations(trees, c)
			if err != nil {
				return err
			}
			mu.Lock()
			all = append(all, found...)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return all, nil
}

// Close waits up to 5s for every in-flight Detect call to finish, then
// force-cancels any that remain. It returns ctx's error if ctx is done
// first, or nil once every call has stopped.
func (d *Detector) Close(ctx context.Context) error {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.active.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		d.forceCancel()
		return ctx.Err()
	case <-time.After(drainGrace):
		d.forceCancel()
		<-done
		return nil
	}
}

func (d *Detector) forceCancel() {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, c := range d.cancels {
		c()
	}
}

// chunkCount picks min(partitionCount, maxWorkers), clamped to at least 1
// and at most n (no point in empty chunks).
func chunkCount(partitionCount, maxWorkers, n int) int {
	count := partitionCount
	if maxWorkers < count {
		count = maxWorkers
	}
	if count < 1 {
		count = 1
	}
	if count > n {
		count = n
	}
	return count
}

// chunk splits elements into n roughly-equal, contiguous slices.
func chunk(elements []forest.GhostElement, n int) [][]forest.GhostElement {
	if n < 1 {
		n = 1
	}
	out := make([][]forest.GhostElement, 0, n)
	size := (len(elements) + n - 1) / n
	for start := 0; start < len(elements); start += size {
		end := start + size
		if end > len(elements) {
			end = len(elements)
		}
		out = append(out, elements[start:end])
	}
	return out
}
