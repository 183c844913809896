package scheduler

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tw93/diskdash/internal/aggregate"
)

// fakeComputer returns canned results, optionally waiting on a per-path gate.
type fakeComputer struct {
	mu      sync.Mutex
	results map[string]aggregate.Result
	gates   map[string]chan struct{}
	panics  map[string]bool
	calls   atomic.Int32
}

func newFake() *fakeComputer {
	return &fakeComputer{
		results: make(map[string]aggregate.Result),
		gates:   make(map[string]chan struct{}),
		panics:  make(map[string]bool),
	}
}

func (f *fakeComputer) gate(path string) chan struct{} {
	f.mu.Lock()
	defer f.mu.Unlock()
	ch := make(chan struct{})
	f.gates[path] = ch
	return ch
}

func (f *fakeComputer) Compute(ctx context.Context, root string, maxDepth int) (aggregate.Result, error) {
	f.calls.Add(1)
	f.mu.Lock()
	gate := f.gates[root]
	res := f.results[root]
	panics := f.panics[root]
	f.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return aggregate.Result{}, ctx.Err()
		}
	}
	if panics {
		panic("walk exploded")
	}
	return res, nil
}

func drain(t *testing.T, s *Scheduler, n int) []Completion {
	t.Helper()
	var got []Completion
	require.Eventually(t, func() bool {
		got = append(got, s.PollCompleted()...)
		return len(got) >= n
	}, 2*time.Second, 5*time.Millisecond)
	return got
}

func closeScheduler(t *testing.T, s *Scheduler) {
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = s.Close(ctx)
	})
}

func TestRequestPollScenario(t *testing.T) {
	f := newFake()
	f.results["/a/b"] = aggregate.Result{TotalBytes: 12345, DepthReached: 2}
	s := New(f, 4)
	closeScheduler(t, s)

	assert.True(t, s.Request("/a/b", 2))

	got := drain(t, s, 1)
	require.Len(t, got, 1)
	assert.Equal(t, "/a/b", got[0].Path)
	assert.Equal(t, aggregate.Result{TotalBytes: 12345, DepthReached: 2, Truncated: false}, got[0].Result)
	assert.NoError(t, got[0].Err)

	assert.Empty(t, s.PollCompleted(), "each result is consumed exactly once")
	assert.False(t, s.IsPending("/a/b"))
}

func TestRequestIsIdempotentWhilePending(t *testing.T) {
	f := newFake()
	release := f.gate("/data")
	s := New(f, 4)
	closeScheduler(t, s)

	assert.True(t, s.Request("/data", 2))
	assert.False(t, s.Request("/data", 2))
	assert.False(t, s.Request("/data/", 2), "paths are cleaned before comparison")
	assert.Equal(t, 1, s.PendingCount())
	assert.True(t, s.IsPending("/data"))

	close(release)
	got := drain(t, s, 1)
	assert.Len(t, got, 1)
	assert.Equal(t, int32(1), f.calls.Load(), "exactly one worker ran")
	assert.Zero(t, s.PendingCount())
}

func TestRequestAgainAfterDrain(t *testing.T) {
	f := newFake()
	s := New(f, 2)
	closeScheduler(t, s)

	require.True(t, s.Request("/x", 1))
	drain(t, s, 1)
	assert.True(t, s.Request("/x", 1), "a drained path can be requested again")
	drain(t, s, 1)
	assert.Equal(t, int32(2), f.calls.Load())
}

func TestPollDoesNotBlock(t *testing.T) {
	f := newFake()
	release := f.gate("/slow")
	s := New(f, 1)
	closeScheduler(t, s)
	defer close(release)

	s.Request("/slow", 2)
	start := time.Now()
	assert.Empty(t, s.PollCompleted())
	assert.Less(t, time.Since(start), 100*time.Millisecond)
	assert.True(t, s.IsPending("/slow"), "still pending until delivered and drained")
}

func TestCompletionOrderFollowsCompletion(t *testing.T) {
	f := newFake()
	first := f.gate("/first")
	second := f.gate("/second")
	s := New(f, 4)
	closeScheduler(t, s)

	s.Request("/first", 2)
	s.Request("/second", 2)

	close(second)
	got := drain(t, s, 1)
	assert.Equal(t, "/second", got[0].Path)

	close(first)
	got = drain(t, s, 1)
	assert.Equal(t, "/first", got[0].Path)
}

func TestWorkerPanicIsContained(t *testing.T) {
	f := newFake()
	f.panics["/bad"] = true
	f.results["/good"] = aggregate.Result{TotalBytes: 7}
	s := New(f, 4)
	closeScheduler(t, s)

	s.Request("/bad", 2)
	s.Request("/good", 2)
	got := drain(t, s, 2)

	byPath := map[string]Completion{}
	for _, c := range got {
		byPath[c.Path] = c
	}
	assert.ErrorIs(t, byPath["/bad"].Err, ErrWorkerPanic)
	assert.Zero(t, byPath["/bad"].Result.TotalBytes)
	assert.NoError(t, byPath["/good"].Err)
	assert.Equal(t, int64(7), byPath["/good"].Result.TotalBytes)
	assert.Zero(t, s.PendingCount())
}

func TestWorkerLimitQueuesRequests(t *testing.T) {
	f := newFake()
	release := f.gate("/one")
	f.gate("/two") // never released; /two must not start while /one holds the slot
	s := New(f, 1)
	closeScheduler(t, s)

	s.Request("/one", 2)
	require.Eventually(t, func() bool { return f.calls.Load() == 1 }, time.Second, time.Millisecond)
	s.Request("/two", 2)
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, int32(1), f.calls.Load())
	assert.Equal(t, 2, s.PendingCount())

	close(release)
	require.Eventually(t, func() bool { return f.calls.Load() == 2 }, time.Second, time.Millisecond)
}

func TestCloseRejectsAndStopsWorkers(t *testing.T) {
	f := newFake()
	f.gate("/stuck")
	s := New(f, 2)

	s.Request("/stuck", 2)
	require.Eventually(t, func() bool { return f.calls.Load() == 1 }, time.Second, time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, s.Close(ctx))

	assert.False(t, s.Request("/later", 2))
	for _, c := range s.PollCompleted() {
		assert.True(t, errors.Is(c.Err, context.Canceled), c.Err)
	}
}

func TestDefaultWorkersBounds(t *testing.T) {
	n := DefaultWorkers()
	assert.GreaterOrEqual(t, n, minWorkers)
	assert.LessOrEqual(t, n, maxWorkers)
}
