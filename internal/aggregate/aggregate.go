// Package aggregate computes depth-limited recursive directory sizes.
package aggregate

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/tw93/diskdash/internal/logging"
	"github.com/tw93/diskdash/internal/metrics"
	"github.com/tw93/diskdash/internal/sizecache"
)

const (
	// DefaultMaxDepth is how many directory levels below the root are read.
	DefaultMaxDepth = 2

	maxDirWorkers   = 16  // Maximum concurrent first-level subdirectory walks
	batchUpdateSize = 100 // Batch atomic progress updates every N items
)

// ErrInaccessible is returned when the root itself cannot be read.
var ErrInaccessible = errors.New("aggregate: root inaccessible")

// Result is the outcome of one Compute call.
type Result struct {
	TotalBytes int64
	// DepthReached is the depth budget the total is valid for.
	DepthReached int
	// Truncated means some subtree below the budget was not examined, so
	// TotalBytes undercounts.
	Truncated bool
	// ComputedAt is set only when the total was restored from a persisted
	// entry instead of a walk.
	ComputedAt time.Time
}

// Options configures an Aggregator. All fields are optional.
type Options struct {
	// Cache is consulted for subdirectories; it is never written.
	Cache sizecache.Lookup
	// Protected reports subtrees that must not be measured.
	Protected func(path, name string) bool
	// FollowSymlinks descends into symlinked directories and counts symlinked
	// files. Cycles are detected either way.
	FollowSymlinks bool
	// Workers caps concurrent first-level subdirectory walks.
	Workers int
	// Progress receives live counters; may be shared across aggregators.
	Progress *Progress
}

// Aggregator walks directory trees. It is safe for concurrent use.
type Aggregator struct {
	opts Options
}

// New returns an Aggregator.
func New(opts Options) *Aggregator {
	if opts.Workers <= 0 {
		opts.Workers = runtime.NumCPU() * 2
		if opts.Workers > maxDirWorkers {
			opts.Workers = maxDirWorkers
		}
	}
	if opts.Progress == nil {
		opts.Progress = &Progress{}
	}
	return &Aggregator{opts: opts}
}

// Progress returns the live counters this aggregator updates.
func (a *Aggregator) Progress() *Progress {
	return a.opts.Progress
}

// Compute sums regular file sizes under root, reading directories at most
// maxDepth levels below it. Unreadable or protected subtrees count as zero.
// Only a failure to read root itself, or ctx cancellation, is an error.
func (a *Aggregator) Compute(ctx context.Context, root string, maxDepth int) (Result, error) {
	if maxDepth < 0 {
		maxDepth = 0
	}
	root = filepath.Clean(root)
	start := time.Now()

	stat := os.Stat
	if !a.opts.FollowSymlinks {
		stat = os.Lstat
	}
	info, err := stat(root)
	if err != nil {
		metrics.RecordAggregation("inaccessible", time.Since(start), 0)
		return Result{}, fmt.Errorf("%w: %v", ErrInaccessible, err)
	}
	if info.Mode()&fs.ModeSymlink != 0 {
		// Walks skip unfollowed links, so the link itself weighs nothing.
		metrics.RecordAggregation("symlink", time.Since(start), 0)
		return Result{DepthReached: maxDepth}, nil
	}
	if !info.IsDir() {
		metrics.RecordAggregation("file", time.Since(start), info.Size())
		return Result{TotalBytes: info.Size(), DepthReached: maxDepth}, nil
	}

	w := &walker{
		Aggregator: a,
		ctx:        ctx,
		maxDepth:   maxDepth,
	}
	onPath := pathSet{identify(root, info): {}}
	total, truncated, err := w.root(root, onPath)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			metrics.RecordAggregation("canceled", time.Since(start), 0)
			return Result{}, err
		}
		metrics.RecordAggregation("inaccessible", time.Since(start), 0)
		return Result{}, fmt.Errorf("%w: %v", ErrInaccessible, err)
	}

	outcome := "complete"
	if truncated {
		outcome = "truncated"
	}
	metrics.RecordAggregation(outcome, time.Since(start), total)
	logging.Debug("aggregated",
		logging.String("path", root),
		logging.Int64("bytes", total),
		logging.Int("depth", maxDepth),
		logging.Bool("truncated", truncated),
		logging.Duration("took", time.Since(start)))

	return Result{TotalBytes: total, DepthReached: maxDepth, Truncated: truncated}, nil
}

type walker struct {
	*Aggregator
	ctx      context.Context
	maxDepth int
}

type child struct {
	path string
	info fs.FileInfo
}

// root reads the top directory and fans its subdirectories out to workers.
func (w *walker) root(dir string, onPath pathSet) (int64, bool, error) {
	entries, err := os.ReadDir(dir)
	if err != nil && len(entries) == 0 {
		return 0, false, err
	}
	w.opts.Progress.addDirs(1)

	var total int64
	var truncated atomic.Bool
	files, dirs := w.split(dir, entries)
	for _, f := range files {
		total += f.info.Size()
	}
	w.opts.Progress.addFiles(int64(len(files)), total)

	if len(dirs) == 0 {
		return total, false, nil
	}
	if w.maxDepth == 0 {
		return total, true, nil
	}

	var mu sync.Mutex
	g, ctx := errgroup.WithContext(w.ctx)
	g.SetLimit(w.opts.Workers)
	sub := &walker{Aggregator: w.Aggregator, ctx: ctx, maxDepth: w.maxDepth}
	for _, d := range dirs {
		d := d
		g.Go(func() error {
			size, trunc, err := sub.subdir(d, 1, onPath.clone())
			if err != nil {
				return err
			}
			mu.Lock()
			total += size
			mu.Unlock()
			if trunc {
				truncated.Store(true)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return 0, false, err
	}
	return total, truncated.Load(), nil
}

// subdir measures one directory found at the given level (root is level 0).
func (w *walker) subdir(d child, level int, onPath pathSet) (int64, bool, error) {
	if err := w.ctx.Err(); err != nil {
		return 0, false, err
	}

	id := identify(d.path, d.info)
	if _, seen := onPath[id]; seen {
		logging.Debug("skipping directory cycle", logging.String("path", d.path))
		return 0, false, nil
	}

	if w.opts.Cache != nil {
		if e, ok := w.opts.Cache.Get(d.path); ok && sizecache.Fresh(e, w.maxDepth-level) {
			w.opts.Progress.addFiles(0, e.Size)
			return e.Size, e.Truncated, nil
		}
	}

	entries, err := os.ReadDir(d.path)
	if err != nil && len(entries) == 0 {
		logging.Debug("unreadable directory counted as zero",
			logging.String("path", d.path), logging.Err(err))
		return 0, false, nil
	}
	w.opts.Progress.addDirs(1)
	w.opts.Progress.setCurrent(d.path)

	onPath[id] = struct{}{}
	defer delete(onPath, id)

	var total int64
	truncated := false
	files, dirs := w.split(d.path, entries)
	for _, f := range files {
		total += f.info.Size()
	}
	w.opts.Progress.addFiles(int64(len(files)), total)

	if len(dirs) > 0 && level >= w.maxDepth {
		return total, true, nil
	}
	for _, sd := range dirs {
		size, trunc, err := w.subdir(sd, level+1, onPath)
		if err != nil {
			return 0, false, err
		}
		total += size
		truncated = truncated || trunc
	}
	return total, truncated, nil
}

// split separates regular files from directories worth descending into,
// dropping protected entries and, unless following them, symlinks.
func (w *walker) split(dir string, entries []fs.DirEntry) (files, dirs []child) {
	for _, e := range entries {
		p := filepath.Join(dir, e.Name())
		if w.opts.Protected != nil && w.opts.Protected(p, e.Name()) {
			continue
		}

		var info fs.FileInfo
		var err error
		if e.Type()&fs.ModeSymlink != 0 {
			if !w.opts.FollowSymlinks {
				continue
			}
			info, err = os.Stat(p)
		} else {
			info, err = e.Info()
		}
		if err != nil {
			continue
		}

		switch {
		case info.IsDir():
			dirs = append(dirs, child{path: p, info: info})
		case info.Mode().IsRegular():
			files = append(files, child{path: p, info: info})
		}
	}
	return files, dirs
}

// Progress holds live scan counters, updated with atomics in batches.
type Progress struct {
	files   atomic.Int64
	dirs    atomic.Int64
	bytes   atomic.Int64
	current atomic.Pointer[string]
	ticks   atomic.Int64
}

// Snapshot returns the current counters.
func (p *Progress) Snapshot() (files, dirs, bytes int64, current string) {
	if cur := p.current.Load(); cur != nil {
		current = *cur
	}
	return p.files.Load(), p.dirs.Load(), p.bytes.Load(), current
}

// Reset zeroes the counters.
func (p *Progress) Reset() {
	p.files.Store(0)
	p.dirs.Store(0)
	p.bytes.Store(0)
	p.current.Store(nil)
}

func (p *Progress) addFiles(n, bytes int64) {
	if n > 0 {
		p.files.Add(n)
	}
	if bytes > 0 {
		p.bytes.Add(bytes)
	}
}

func (p *Progress) addDirs(n int64) {
	p.dirs.Add(n)
}

// setCurrent publishes the path being read every batchUpdateSize directories.
func (p *Progress) setCurrent(path string) {
	if p.ticks.Add(1)%batchUpdateSize == 1 {
		p.current.Store(&path)
	}
}
