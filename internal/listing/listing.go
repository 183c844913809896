// Package listing assembles the rows shown for one directory: its immediate
// children with classification and whatever size is known so far.
package listing

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/tw93/diskdash/internal/classify"
	"github.com/tw93/diskdash/internal/logging"
	"github.com/tw93/diskdash/internal/metrics"
	"github.com/tw93/diskdash/internal/sizecache"
)

// ErrInaccessible means the directory could not be opened or read. Callers
// should keep showing their previous listing.
var ErrInaccessible = errors.New("listing: directory inaccessible")

// SizeState says how much is known about an entry's size.
type SizeState int

const (
	SizeKnown SizeState = iota
	SizePending
	SizeUnknown
)

func (s SizeState) String() string {
	switch s {
	case SizeKnown:
		return "known"
	case SizePending:
		return "pending"
	default:
		return "unknown"
	}
}

// Size is an entry's byte count plus its state. Bytes is meaningful only
// when State is SizeKnown.
type Size struct {
	State     SizeState
	Bytes     int64
	Truncated bool
}

// Known reports whether the size has been measured.
func (s Size) Known() bool { return s.State == SizeKnown }

// Entry is one child row.
type Entry struct {
	Path       string
	Name       string
	IsDir      bool
	Size       Size
	ModTime    time.Time
	Category   classify.Category
	Usefulness classify.Score
	// Empty is set for directories with no children.
	Empty bool
	// Symlink marks a link shown as itself rather than its target. Walks
	// skip such links, so it counts zero bytes.
	Symlink bool
}

// Listing is the result of listing one directory. Empty distinguishes a
// valid, childless directory from an error.
type Listing struct {
	Dir     string
	Entries []Entry
	Empty   bool
}

// Index returns the row for path, or -1.
func (l Listing) Index(path string) int {
	path = filepath.Clean(path)
	for i := range l.Entries {
		if l.Entries[i].Path == path {
			return i
		}
	}
	return -1
}

// Requester is the part of the scheduler the assembler drives.
type Requester interface {
	Request(path string, maxDepth int) bool
}

// Config wires an Assembler.
type Config struct {
	Cache      sizecache.Lookup
	Scheduler  Requester
	Classifier *classify.Classifier
	// MaxDepth is passed with every size request.
	MaxDepth int
	// FollowSymlinks lists a link as its target and sizes it like one.
	FollowSymlinks bool
	// Unmeasurable reports directories whose last measurement failed; they
	// count zero bytes instead of being requested again.
	Unmeasurable func(path string) bool
	// Now defaults to time.Now.
	Now func() time.Time
}

// Assembler builds listings. It is not safe for concurrent use; it belongs
// to the consuming loop.
type Assembler struct {
	cfg Config
}

// New returns an Assembler.
func New(cfg Config) *Assembler {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Classifier == nil {
		cfg.Classifier = classify.Default()
	}
	return &Assembler{cfg: cfg}
}

// List enumerates dir's immediate children in filesystem order. Files are
// sized directly; directories take a fresh cached total or are marked
// pending and requested from the scheduler.
func (a *Assembler) List(dir string) (Listing, error) {
	dir = filepath.Clean(dir)
	children, err := readDir(dir)
	if err != nil {
		metrics.RecordListing("inaccessible")
		logging.Warn("directory inaccessible", logging.String("path", dir), logging.Err(err))
		return Listing{}, fmt.Errorf("%w: %s: %v", ErrInaccessible, dir, err)
	}
	if len(children) == 0 {
		metrics.RecordListing("empty")
		return Listing{Dir: dir, Entries: []Entry{}, Empty: true}, nil
	}

	now := a.cfg.Now()
	entries := make([]Entry, 0, len(children))
	requested := 0
	for _, child := range children {
		e, req := a.entry(dir, child, now)
		if req {
			requested++
		}
		entries = append(entries, e)
	}

	metrics.RecordListing("ok")
	logging.Debug("listed directory",
		logging.String("path", dir),
		logging.Int("entries", len(entries)),
		logging.Int("requested", requested))
	return Listing{Dir: dir, Entries: entries}, nil
}

func (a *Assembler) entry(dir string, child fs.DirEntry, now time.Time) (Entry, bool) {
	p := filepath.Join(dir, child.Name())
	e := Entry{Path: p, Name: child.Name()}

	info, err := child.Info()
	if err == nil && child.Type()&fs.ModeSymlink != 0 {
		if !a.cfg.FollowSymlinks {
			e.Symlink = true
			e.ModTime = info.ModTime()
			e.Size = Size{State: SizeKnown}
			e.Category, e.Usefulness = a.cfg.Classifier.Classify(classify.Input{Path: p, Name: e.Name, ModTime: e.ModTime, Now: now})
			return e, false
		}
		// A dangling link stays a file.
		if target, statErr := os.Stat(p); statErr == nil {
			info = target
		}
	}
	if err != nil {
		e.Size = Size{State: SizeUnknown}
		e.IsDir = child.IsDir()
		e.Category, e.Usefulness = a.cfg.Classifier.Classify(classify.Input{Path: p, Name: e.Name, IsDir: e.IsDir, Now: now})
		return e, false
	}

	e.IsDir = info.IsDir()
	e.ModTime = info.ModTime()
	requested := false
	if e.IsDir {
		e.Empty = isEmptyDir(p)
		requested = a.dirSize(&e)
	} else {
		e.Size = Size{State: SizeKnown, Bytes: info.Size()}
	}

	e.Category, e.Usefulness = a.cfg.Classifier.Classify(classify.Input{
		Path:           p,
		Name:           e.Name,
		Ext:            extOf(e),
		IsDir:          e.IsDir,
		Size:           e.Size.Bytes,
		ModTime:        e.ModTime,
		Now:            now,
		Empty:          e.Empty,
		AggregateKnown: e.IsDir && e.Size.Known(),
	})
	return e, requested
}

// dirSize fills e.Size for a directory and reports whether a request was
// issued.
func (a *Assembler) dirSize(e *Entry) bool {
	switch {
	case e.Empty:
		e.Size = Size{State: SizeKnown}
		return false
	case a.cfg.Classifier.Protected(e.Path, e.Name):
		e.Size = Size{State: SizeUnknown}
		return false
	}

	if a.cfg.Cache != nil {
		if c, ok := a.cfg.Cache.Get(e.Path); ok && sizecache.Fresh(c, a.cfg.MaxDepth) {
			e.Size = Size{State: SizeKnown, Bytes: c.Size, Truncated: c.Truncated}
			return false
		}
	}
	if a.cfg.Unmeasurable != nil && a.cfg.Unmeasurable(e.Path) {
		e.Size = Size{State: SizeKnown}
		return false
	}

	e.Size = Size{State: SizePending}
	if a.cfg.Scheduler == nil {
		return false
	}
	return a.cfg.Scheduler.Request(e.Path, a.cfg.MaxDepth)
}

// Apply merges a finished size into the row for path and reclassifies it
// with the aggregate. It reports whether l had such a row.
func (a *Assembler) Apply(l *Listing, path string, s Size) bool {
	i := l.Index(path)
	if i < 0 {
		return false
	}
	e := &l.Entries[i]
	e.Size = s
	e.Category, e.Usefulness = a.cfg.Classifier.Classify(classify.Input{
		Path:           e.Path,
		Name:           e.Name,
		Ext:            extOf(*e),
		IsDir:          e.IsDir,
		Size:           s.Bytes,
		ModTime:        e.ModTime,
		Now:            a.cfg.Now(),
		Empty:          e.Empty,
		AggregateKnown: e.IsDir && s.Known(),
	})
	return true
}

func extOf(e Entry) string {
	if e.IsDir {
		return ""
	}
	return filepath.Ext(e.Name)
}

// readDir returns entries in the order the filesystem yields them;
// os.ReadDir would sort by name.
func readDir(dir string) ([]fs.DirEntry, error) {
	f, err := os.Open(dir)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	entries, err := f.ReadDir(-1)
	if err != nil {
		return nil, err
	}
	return entries, nil
}

func isEmptyDir(dir string) bool {
	f, err := os.Open(dir)
	if err != nil {
		return false
	}
	defer f.Close()
	_, err = f.Readdirnames(1)
	return errors.Is(err, io.EOF)
}
