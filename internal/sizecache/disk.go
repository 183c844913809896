package sizecache

import (
	"encoding/gob"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/cespare/xxhash/v2"
)

// DefaultTTL is how long a persisted total is trusted.
const DefaultTTL = 7 * 24 * time.Hour

// cacheModTimeGrace ignores minor directory mtime bumps.
const cacheModTimeGrace = 30 * time.Minute

var (
	ErrNotCached = errors.New("sizecache: no persisted entry")
	ErrExpired   = errors.New("sizecache: persisted entry expired")
)

type diskRecord struct {
	Path    string
	Entry   Entry
	ModTime time.Time
}

// DiskStore persists entries across sessions, one gob file per directory.
type DiskStore struct {
	dir string
	ttl time.Duration
}

// NewDiskStore creates dir if needed.
func NewDiskStore(dir string, ttl time.Duration) (*DiskStore, error) {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create cache dir: %w", err)
	}
	return &DiskStore{dir: dir, ttl: ttl}, nil
}

func (s *DiskStore) file(path string) string {
	sum := xxhash.Sum64String(filepath.Clean(path))
	return filepath.Join(s.dir, strconv.FormatUint(sum, 16)+".cache")
}

// Load returns the persisted entry for path. The entry is rejected when the
// directory changed after it was written or it is older than the TTL.
func (s *DiskStore) Load(path string) (Entry, error) {
	path = filepath.Clean(path)
	f, err := os.Open(s.file(path))
	if err != nil {
		if os.IsNotExist(err) {
			return Entry{}, ErrNotCached
		}
		return Entry{}, err
	}
	defer f.Close()

	var rec diskRecord
	if err := gob.NewDecoder(f).Decode(&rec); err != nil {
		return Entry{}, fmt.Errorf("decode %s: %w", path, err)
	}
	// Hash collision.
	if rec.Path != path {
		return Entry{}, ErrNotCached
	}

	info, err := os.Stat(path)
	if err != nil {
		return Entry{}, err
	}
	if info.ModTime().After(rec.ModTime.Add(cacheModTimeGrace)) {
		return Entry{}, fmt.Errorf("%w: directory modified", ErrExpired)
	}
	if time.Since(rec.Entry.ComputedAt) > s.ttl {
		return Entry{}, fmt.Errorf("%w: too old", ErrExpired)
	}
	return rec.Entry, nil
}

// Save writes e for path, replacing any earlier record atomically.
func (s *DiskStore) Save(path string, e Entry) error {
	path = filepath.Clean(path)
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if e.ComputedAt.IsZero() {
		e.ComputedAt = time.Now()
	}

	target := s.file(path)
	tmp, err := os.CreateTemp(s.dir, filepath.Base(target)+".*.tmp")
	if err != nil {
		return err
	}
	rec := diskRecord{Path: path, Entry: e, ModTime: info.ModTime()}
	if err := gob.NewEncoder(tmp).Encode(rec); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), target)
}

// Remove deletes the persisted entries for path and all its ancestors.
func (s *DiskStore) Remove(path string) error {
	var errs []error
	for _, p := range append([]string{filepath.Clean(path)}, Ancestors(path)...) {
		if err := os.Remove(s.file(p)); err != nil && !os.IsNotExist(err) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
