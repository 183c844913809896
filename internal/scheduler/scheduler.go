// Package scheduler runs directory aggregations on background workers and
// hands finished results back to a polling consumer.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"runtime"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/tw93/diskdash/internal/aggregate"
	"github.com/tw93/diskdash/internal/logging"
	"github.com/tw93/diskdash/internal/metrics"
)

const (
	minWorkers    = 8  // Minimum concurrent walks for better I/O throughput
	maxWorkers    = 64 // Maximum concurrent walks to avoid excessive goroutines
	cpuMultiplier = 2  // Walks per CPU core for I/O-bound work
)

var (
	// ErrWorkerPanic marks a result whose worker panicked.
	ErrWorkerPanic = errors.New("scheduler: aggregation worker panicked")
	// ErrClosed is returned by Request after Close.
	ErrClosed = errors.New("scheduler: closed")
)

// Computer is the aggregation a worker runs.
type Computer interface {
	Compute(ctx context.Context, root string, maxDepth int) (aggregate.Result, error)
}

// Completion is one delivered result. Err is non-nil when the path could not
// be measured; Result is then zero.
type Completion struct {
	Path     string
	MaxDepth int
	Result   aggregate.Result
	Err      error
	Took     time.Duration
}

// Scheduler tracks the pending set and the result channel. Request and
// PollCompleted are meant to be called from a single consuming loop, but
// both are safe for concurrent use.
type Scheduler struct {
	computer Computer
	sem      *semaphore.Weighted
	results  chan Completion

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.Mutex
	pending map[string]int // path -> requested depth
	closed  bool
}

// DefaultWorkers scales concurrent walks with the CPU count.
func DefaultWorkers() int {
	n := runtime.NumCPU() * cpuMultiplier
	if n < minWorkers {
		n = minWorkers
	}
	if n > maxWorkers {
		n = maxWorkers
	}
	return n
}

// New returns a scheduler running at most workers walks at once. Requests
// beyond that wait their turn but stay in the pending set.
func New(c Computer, workers int) *Scheduler {
	if workers <= 0 {
		workers = DefaultWorkers()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		computer: c,
		sem:      semaphore.NewWeighted(int64(workers)),
		results:  make(chan Completion, 256),
		ctx:      ctx,
		cancel:   cancel,
		pending:  make(map[string]int),
	}
}

// Request dispatches a worker for path unless one is already pending. It
// reports whether a new worker was started.
func (s *Scheduler) Request(path string, maxDepth int) bool {
	path = filepath.Clean(path)

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		metrics.RecordRequest("rejected")
		return false
	}
	if _, ok := s.pending[path]; ok {
		s.mu.Unlock()
		metrics.RecordRequest("duplicate")
		return false
	}
	s.pending[path] = maxDepth
	n := len(s.pending)
	s.wg.Add(1)
	s.mu.Unlock()

	metrics.RecordRequest("dispatched")
	metrics.SetPending(n)
	go s.run(path, maxDepth)
	return true
}

func (s *Scheduler) run(path string, maxDepth int) {
	defer s.wg.Done()

	c := Completion{Path: path, MaxDepth: maxDepth}
	start := time.Now()
	if err := s.sem.Acquire(s.ctx, 1); err != nil {
		c.Err = fmt.Errorf("%w: %v", ErrClosed, err)
		s.deliver(c)
		return
	}
	defer s.sem.Release(1)

	c.Result, c.Err = s.compute(path, maxDepth)
	c.Took = time.Since(start)
	s.deliver(c)
}

// compute shields the scheduler from a panicking walk: the path is reported
// as unmeasurable and other workers carry on.
func (s *Scheduler) compute(path string, maxDepth int) (res aggregate.Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			metrics.RecordWorkerPanic()
			logging.Error("aggregation worker panicked",
				logging.String("path", path), logging.Any("panic", r))
			res = aggregate.Result{}
			err = fmt.Errorf("%w: %v", ErrWorkerPanic, r)
		}
	}()
	return s.computer.Compute(s.ctx, path, maxDepth)
}

func (s *Scheduler) deliver(c Completion) {
	select {
	case s.results <- c:
	case <-s.ctx.Done():
		// Nobody will poll again; drop the result but keep the pending set
		// consistent.
		s.mu.Lock()
		delete(s.pending, c.Path)
		s.mu.Unlock()
	}
}

// PollCompleted drains every result delivered since the last call without
// blocking. Each completion is returned exactly once and its path leaves the
// pending set.
func (s *Scheduler) PollCompleted() []Completion {
	var out []Completion
	for {
		select {
		case c := <-s.results:
			out = append(out, c)
		default:
			if len(out) > 0 {
				s.mu.Lock()
				for _, c := range out {
					delete(s.pending, c.Path)
				}
				n := len(s.pending)
				s.mu.Unlock()
				metrics.SetPending(n)
			}
			return out
		}
	}
}

// IsPending reports whether path has a worker in flight.
func (s *Scheduler) IsPending(path string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.pending[filepath.Clean(path)]
	return ok
}

// PendingCount returns the size of the pending set.
func (s *Scheduler) PendingCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

// Close rejects new requests, cancels waiting and running walks, and waits
// for workers to exit or ctx to expire.
func (s *Scheduler) Close(ctx context.Context) error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.cancel()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
