// Package sizecache stores computed directory totals keyed by absolute path.
package sizecache

import (
	"path/filepath"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/tw93/diskdash/internal/metrics"
)

// DefaultCapacity bounds the number of directories remembered per session.
const DefaultCapacity = 1 << 16

// Entry is a previously computed aggregate for one directory.
type Entry struct {
	Size         int64
	ComputedAt   time.Time
	DepthReached int
	Truncated    bool
}

// Fresh reports whether e can answer a request that needs depth levels.
// A complete (untruncated) total is valid at any depth; a truncated one only
// for requests no deeper than the depth it was computed with.
func Fresh(e Entry, depth int) bool {
	return !e.Truncated || e.DepthReached >= depth
}

// Lookup is the read-only side of the cache handed to aggregation workers.
type Lookup interface {
	Get(path string) (Entry, bool)
}

// Cache maps cleaned absolute paths to entries. Reads and writes are O(1);
// the backing LRU is safe for concurrent use, but by convention only the
// consuming loop calls Put and Invalidate.
type Cache struct {
	entries *lru.Cache[string, Entry]
}

// New returns a cache holding at most capacity directories.
func New(capacity int) (*Cache, error) {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	entries, err := lru.New[string, Entry](capacity)
	if err != nil {
		return nil, err
	}
	return &Cache{entries: entries}, nil
}

// Get returns the entry for path, if any.
func (c *Cache) Get(path string) (Entry, bool) {
	e, ok := c.entries.Get(filepath.Clean(path))
	if ok {
		metrics.RecordCacheLookup("hit")
	} else {
		metrics.RecordCacheLookup("miss")
	}
	return e, ok
}

// Peek is Get without touching recency or metrics.
func (c *Cache) Peek(path string) (Entry, bool) {
	return c.entries.Peek(filepath.Clean(path))
}

// Put records a computed total for path.
func (c *Cache) Put(path string, e Entry) {
	if e.ComputedAt.IsZero() {
		e.ComputedAt = time.Now()
	}
	c.entries.Add(filepath.Clean(path), e)
	metrics.SetCacheEntries(c.entries.Len())
}

// Len returns the number of cached directories.
func (c *Cache) Len() int {
	return c.entries.Len()
}

// Invalidate drops path, everything below it, and every ancestor up to the
// filesystem root, since all of their totals include path. It returns the
// removed paths.
func (c *Cache) Invalidate(path string) []string {
	path = filepath.Clean(path)
	var removed []string

	for _, key := range c.entries.Keys() {
		if key == path || IsDescendant(path, key) {
			if c.entries.Remove(key) {
				removed = append(removed, key)
			}
		}
	}
	for _, dir := range Ancestors(path) {
		if c.entries.Remove(dir) {
			removed = append(removed, dir)
		}
	}

	metrics.RecordInvalidation(len(removed))
	metrics.SetCacheEntries(c.entries.Len())
	return removed
}

// Ancestors lists the parents of path from nearest to the root, not
// including path itself.
func Ancestors(path string) []string {
	path = filepath.Clean(path)
	var out []string
	for {
		parent := filepath.Dir(path)
		if parent == path {
			return out
		}
		out = append(out, parent)
		path = parent
	}
}

// IsDescendant reports whether p lies strictly below dir.
func IsDescendant(dir, p string) bool {
	dir = filepath.Clean(dir)
	p = filepath.Clean(p)
	if dir == p {
		return false
	}
	prefix := dir
	if !strings.HasSuffix(prefix, string(filepath.Separator)) {
		prefix += string(filepath.Separator)
	}
	return strings.HasPrefix(p, prefix)
}
