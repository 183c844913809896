// Package engine owns the size cache, the scheduler and the navigation
// history, and exposes the operations the presentation loop drives.
//
// An Engine is not safe for concurrent use. Every method is meant to be called
// from a single consuming loop; background workers only read the cache and
// report results through the scheduler.
package engine

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"github.com/tw93/diskdash/internal/aggregate"
	"github.com/tw93/diskdash/internal/classify"
	"github.com/tw93/diskdash/internal/disks"
	"github.com/tw93/diskdash/internal/history"
	"github.com/tw93/diskdash/internal/listing"
	"github.com/tw93/diskdash/internal/logging"
	"github.com/tw93/diskdash/internal/metrics"
	"github.com/tw93/diskdash/internal/scheduler"
	"github.com/tw93/diskdash/internal/sizecache"
)

var (
	// ErrEmptyDirectory is returned by navigation into a directory with no
	// children. It is distinct from listing.ErrInaccessible.
	ErrEmptyDirectory = errors.New("engine: directory is empty")
	// ErrNoHistory means there is nothing to go back or forward to.
	ErrNoHistory = errors.New("engine: no history in that direction")
	// ErrProtected refuses deleting a must-keep entry.
	ErrProtected = errors.New("engine: path is protected")
)

// Options configures an Engine.
type Options struct {
	MaxDepth       int
	FollowSymlinks bool
	// Workers caps concurrent aggregations; 0 scales with CPUs.
	Workers   int
	CacheSize int
	// Protected overrides the default pattern policy when non-nil.
	Protected map[string]classify.Category
	// Roots are mount points classified as must-keep.
	Roots []string
	// Store persists totals across sessions; optional.
	Store *sizecache.DiskStore
	// Computer measures directories; nil restores from Store or walks.
	Computer scheduler.Computer
	// Now defaults to time.Now.
	Now func() time.Time
}

// Update is a finished size that landed in the current view.
type Update struct {
	Path string
	Size listing.Size
	Err  error
}

// Engine is the top-level context object.
type Engine struct {
	opts       Options
	cache      *sizecache.Cache
	store      *sizecache.DiskStore
	classifier *classify.Classifier
	agg        *aggregate.Aggregator
	sched      *scheduler.Scheduler
	asm        *listing.Assembler
	hist       history.History

	current    listing.Listing
	hasCurrent bool

	// unmeasurable holds paths whose last aggregation failed.
	unmeasurable map[string]error
	// stale holds in-flight paths whose result was invalidated by a delete.
	stale map[string]bool

	persist sync.WaitGroup
}

// New builds an Engine and starts its scheduler.
func New(opts Options) (*Engine, error) {
	if opts.MaxDepth < 0 {
		return nil, fmt.Errorf("max depth must be >= 0, got %d", opts.MaxDepth)
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	patterns := opts.Protected
	if patterns == nil {
		patterns = classify.DefaultProtected()
	}

	cache, err := sizecache.New(opts.CacheSize)
	if err != nil {
		return nil, fmt.Errorf("create size cache: %w", err)
	}

	e := &Engine{
		opts:         opts,
		cache:        cache,
		store:        opts.Store,
		classifier:   classify.New(patterns, opts.Roots...),
		unmeasurable: make(map[string]error),
		stale:        make(map[string]bool),
	}
	e.agg = aggregate.New(aggregate.Options{
		Cache:          cache,
		Protected:      e.classifier.Protected,
		FollowSymlinks: opts.FollowSymlinks,
	})
	measure := opts.Computer
	if measure == nil {
		measure = &computer{agg: e.agg, store: e.store}
	}
	e.sched = scheduler.New(measure, opts.Workers)
	e.asm = listing.New(listing.Config{
		Cache:          cache,
		Scheduler:      e.sched,
		Classifier:     e.classifier,
		MaxDepth:       opts.MaxDepth,
		FollowSymlinks: opts.FollowSymlinks,
		Unmeasurable:   e.Unmeasurable,
		Now:            opts.Now,
	})
	return e, nil
}

// List returns dir's children without touching history. Listing the current
// directory again refreshes the current view.
func (e *Engine) List(dir string) (listing.Listing, error) {
	l, err := e.asm.List(dir)
	if err != nil {
		return listing.Listing{}, err
	}
	if e.hasCurrent && l.Dir == e.current.Dir {
		e.current = l
		return e.view(), nil
	}
	return l, nil
}

// Open navigates into dir. An inaccessible or empty dir is refused and the
// previous listing is returned alongside the error so the caller can keep
// showing it.
func (e *Engine) Open(dir string) (listing.Listing, error) {
	dir = filepath.Clean(dir)
	l, err := e.asm.List(dir)
	if err != nil {
		return e.view(), err
	}
	if l.Empty {
		logging.Debug("refusing empty directory", logging.String("path", dir))
		return e.view(), fmt.Errorf("%w: %s", ErrEmptyDirectory, dir)
	}
	e.hist.Visit(dir)
	e.setCurrent(l)
	logging.Debug("opened directory",
		logging.String("path", dir),
		logging.Int("history", e.hist.Len()))
	return e.view(), nil
}

// Back moves one step back in history.
func (e *Engine) Back() (listing.Listing, error) {
	return e.step(e.hist.Back, e.hist.Forward)
}

// Forward moves one step forward in history.
func (e *Engine) Forward() (listing.Listing, error) {
	return e.step(e.hist.Forward, e.hist.Back)
}

// step moves the cursor and lists the target; a target that stopped being
// listable leaves the cursor where it was.
func (e *Engine) step(move, undo func() (string, bool)) (listing.Listing, error) {
	dir, ok := move()
	if !ok {
		return e.view(), ErrNoHistory
	}
	l, err := e.asm.List(dir)
	if err == nil && l.Empty {
		err = fmt.Errorf("%w: %s", ErrEmptyDirectory, dir)
	}
	if err != nil {
		undo()
		return e.view(), err
	}
	e.setCurrent(l)
	return e.view(), nil
}

func (e *Engine) setCurrent(l listing.Listing) {
	e.current = l
	e.hasCurrent = true
}

// view copies the current listing so callers may sort or filter it freely.
func (e *Engine) view() listing.Listing {
	l := e.current
	l.Entries = slices.Clone(l.Entries)
	return l
}

// Current returns the listing on screen.
func (e *Engine) Current() (listing.Listing, bool) {
	return e.view(), e.hasCurrent
}

// CanBack reports whether Back would move.
func (e *Engine) CanBack() bool { return e.hist.CanBack() }

// CanForward reports whether Forward would move.
func (e *Engine) CanForward() bool { return e.hist.CanForward() }

// RequestSize asks for path to be measured, clearing an earlier failure.
func (e *Engine) RequestSize(path string) bool {
	path = filepath.Clean(path)
	delete(e.unmeasurable, path)
	if !e.sched.Request(path, e.opts.MaxDepth) {
		return false
	}
	if e.hasCurrent {
		if i := e.current.Index(path); i >= 0 {
			e.current.Entries[i].Size = listing.Size{State: listing.SizePending}
		}
	}
	return true
}

// Pending returns the number of directories being measured.
func (e *Engine) Pending() int {
	return e.sched.PendingCount()
}

// Progress exposes the live walk counters.
func (e *Engine) Progress() *aggregate.Progress {
	return e.agg.Progress()
}

// Poll drains finished aggregations without blocking. Successful totals go
// into the cache (and the disk store); failures mark the path unmeasurable
// and count zero bytes. Only results for rows in the current listing are
// returned.
func (e *Engine) Poll() []Update {
	var updates []Update
	completed := e.sched.PollCompleted()
	if len(completed) > 0 && e.sched.PendingCount() == 0 {
		e.agg.Progress().Reset()
	}
	for _, c := range completed {
		if e.stale[c.Path] {
			delete(e.stale, c.Path)
			if e.hasCurrent && e.current.Index(c.Path) >= 0 {
				e.sched.Request(c.Path, e.opts.MaxDepth)
			}
			continue
		}
		if errors.Is(c.Err, scheduler.ErrClosed) {
			continue
		}

		size := e.record(c)
		if !e.hasCurrent {
			continue
		}
		if e.asm.Apply(&e.current, c.Path, size) {
			updates = append(updates, Update{Path: c.Path, Size: size, Err: c.Err})
		}
	}
	return updates
}

func (e *Engine) record(c scheduler.Completion) listing.Size {
	if c.Err != nil {
		e.unmeasurable[c.Path] = c.Err
		logging.Warn("directory unmeasurable",
			logging.String("path", c.Path), logging.Err(c.Err))
		return listing.Size{State: listing.SizeKnown}
	}

	entry := sizecache.Entry{
		Size:         c.Result.TotalBytes,
		ComputedAt:   c.Result.ComputedAt,
		DepthReached: c.Result.DepthReached,
		Truncated:    c.Result.Truncated,
	}
	restored := !entry.ComputedAt.IsZero()
	if !restored {
		entry.ComputedAt = e.opts.Now()
	}
	e.cache.Put(c.Path, entry)
	if e.store != nil && !restored {
		e.save(c.Path, entry)
	}
	return listing.Size{State: listing.SizeKnown, Bytes: entry.Size, Truncated: entry.Truncated}
}

func (e *Engine) save(path string, entry sizecache.Entry) {
	e.persist.Add(1)
	go func() {
		defer e.persist.Done()
		if err := e.store.Save(path, entry); err != nil {
			logging.Debug("persist size failed", logging.String("path", path), logging.Err(err))
		}
	}()
}

// Refresh forgets every total under the current directory and lists it
// again.
func (e *Engine) Refresh() (listing.Listing, error) {
	if !e.hasCurrent {
		return listing.Listing{}, ErrNoHistory
	}
	dir := e.current.Dir
	e.forget(dir)
	for _, row := range e.current.Entries {
		if row.IsDir {
			e.unpersist(row.Path)
		}
	}
	return e.List(dir)
}

// unpersist removes path's persisted totals after in-flight saves land, so a
// late save cannot restore a total that was just invalidated.
func (e *Engine) unpersist(path string) {
	if e.store == nil {
		return
	}
	e.persist.Wait()
	if err := e.store.Remove(path); err != nil {
		logging.Debug("remove persisted sizes failed", logging.String("path", path), logging.Err(err))
	}
}

// Delete removes path from disk and invalidates everything that counted it.
// A failed delete may still have removed part of the tree, so totals are
// invalidated either way.
func (e *Engine) Delete(path string) error {
	path = filepath.Clean(path)
	if cat, _ := e.classifier.Classify(classify.Input{Path: path, Name: filepath.Base(path)}); cat == classify.MustKeep {
		return fmt.Errorf("%w: %s", ErrProtected, path)
	}
	err := os.RemoveAll(path)
	e.InvalidateOnDelete(path)
	if err != nil {
		logging.Warn("delete incomplete", logging.String("path", path), logging.Err(err))
		return fmt.Errorf("delete %s: %w", path, err)
	}
	logging.Info("deleted", logging.String("path", path))
	return nil
}

// InvalidateOnDelete forgets path, its descendants and all of its ancestors
// after a delete of path, complete or not. Affected rows in the current view
// go back to pending; a current directory that no longer exists is left for
// the nearest surviving history entry.
func (e *Engine) InvalidateOnDelete(path string) {
	path = filepath.Clean(path)
	e.forget(path)
	e.unpersist(path)
	_, statErr := os.Lstat(path)
	gone := errors.Is(statErr, fs.ErrNotExist)
	if gone {
		e.hist.Drop(path)
	}

	if !e.hasCurrent {
		return
	}
	dir := e.current.Dir
	if dir == path || sizecache.IsDescendant(path, dir) {
		if l, err := e.asm.List(dir); err == nil {
			e.setCurrent(l)
			return
		}
		e.hasCurrent = false
		e.current = listing.Listing{}
		if cur, ok := e.hist.Current(); ok {
			if l, err := e.asm.List(cur); err == nil {
				e.setCurrent(l)
			}
		}
		return
	}

	if i := e.current.Index(path); i >= 0 && gone {
		e.current.Entries = append(e.current.Entries[:i], e.current.Entries[i+1:]...)
		e.current.Empty = len(e.current.Entries) == 0
	}
	for i := range e.current.Entries {
		row := &e.current.Entries[i]
		if row.IsDir && (row.Path == path || sizecache.IsDescendant(row.Path, path)) {
			row.Size = listing.Size{State: listing.SizePending}
			e.sched.Request(row.Path, e.opts.MaxDepth)
		}
	}
}

// forget drops cached totals and failures for path, its descendants and its
// ancestors, and marks matching in-flight work stale.
func (e *Engine) forget(path string) {
	e.cache.Invalidate(path)
	for p := range e.unmeasurable {
		if related(path, p) {
			delete(e.unmeasurable, p)
		}
	}
	for _, p := range e.pendingRelated(path) {
		e.stale[p] = true
	}
}

func (e *Engine) pendingRelated(path string) []string {
	var out []string
	if e.sched.IsPending(path) {
		out = append(out, path)
	}
	for _, a := range sizecache.Ancestors(path) {
		if e.sched.IsPending(a) {
			out = append(out, a)
		}
	}
	if e.hasCurrent {
		for _, row := range e.current.Entries {
			if sizecache.IsDescendant(path, row.Path) && e.sched.IsPending(row.Path) {
				out = append(out, row.Path)
			}
		}
	}
	return out
}

func related(path, p string) bool {
	return p == path || sizecache.IsDescendant(path, p) || sizecache.IsDescendant(p, path)
}

// Unmeasurable reports whether path's last measurement failed. Such rows
// count zero bytes until RequestSize retries them.
func (e *Engine) Unmeasurable(path string) bool {
	_, ok := e.unmeasurable[path]
	return ok
}

// Disks lists mounted filesystems for the overview screen.
func (e *Engine) Disks() []disks.Disk {
	return disks.List()
}

// Close stops the scheduler and waits for pending disk writes.
func (e *Engine) Close(ctx context.Context) error {
	err := e.sched.Close(ctx)
	done := make(chan struct{})
	go func() {
		e.persist.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		if err == nil {
			err = ctx.Err()
		}
	}
	return err
}

// computer restores a persisted total when one is fresh enough, and walks
// the tree otherwise.
type computer struct {
	agg   *aggregate.Aggregator
	store *sizecache.DiskStore
}

func (c *computer) Compute(ctx context.Context, root string, maxDepth int) (aggregate.Result, error) {
	if c.store != nil {
		if entry, err := c.store.Load(root); err == nil && sizecache.Fresh(entry, maxDepth) {
			metrics.RecordCacheLookup("disk_hit")
			return aggregate.Result{
				TotalBytes:   entry.Size,
				DepthReached: entry.DepthReached,
				Truncated:    entry.Truncated,
				ComputedAt:   entry.ComputedAt,
			}, nil
		}
	}
	return c.agg.Compute(ctx, root, maxDepth)
}
