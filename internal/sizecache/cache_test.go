package sizecache

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newCache(t *testing.T) *Cache {
	t.Helper()
	c, err := New(128)
	require.NoError(t, err)
	return c
}

func TestGetPut(t *testing.T) {
	c := newCache(t)
	_, ok := c.Get("/a/b")
	assert.False(t, ok)

	c.Put("/a/b/", Entry{Size: 12345, DepthReached: 2})
	e, ok := c.Get("/a/b")
	require.True(t, ok)
	assert.Equal(t, int64(12345), e.Size)
	assert.Equal(t, 2, e.DepthReached)
	assert.False(t, e.ComputedAt.IsZero(), "Put stamps ComputedAt")
}

func TestInvalidateRemovesAncestorsAndDescendants(t *testing.T) {
	c := newCache(t)
	for _, p := range []string{"/", "/a", "/a/b", "/a/b/c", "/a/b/c/d", "/a/bb", "/x"} {
		c.Put(p, Entry{Size: 1})
	}

	removed := c.Invalidate("/a/b/c")
	assert.ElementsMatch(t, []string{"/a/b/c", "/a/b/c/d", "/a/b", "/a", "/"}, removed)

	for _, p := range []string{"/", "/a", "/a/b", "/a/b/c", "/a/b/c/d"} {
		_, ok := c.Peek(p)
		assert.False(t, ok, p)
	}
	for _, p := range []string{"/a/bb", "/x"} {
		_, ok := c.Peek(p)
		assert.True(t, ok, "sibling %s must survive", p)
	}
}

func TestInvalidateUncachedPathStillClearsAncestors(t *testing.T) {
	c := newCache(t)
	c.Put("/home", Entry{Size: 10})
	c.Put("/home/ada", Entry{Size: 5})

	c.Invalidate("/home/ada/never-measured.iso")

	assert.Zero(t, c.Len())
}

func TestFresh(t *testing.T) {
	truncated := Entry{DepthReached: 2, Truncated: true}
	assert.True(t, Fresh(truncated, 1))
	assert.True(t, Fresh(truncated, 2))
	assert.False(t, Fresh(truncated, 3), "deeper request must recompute")

	complete := Entry{DepthReached: 2}
	assert.True(t, Fresh(complete, 10))
}

func TestCapacityEvicts(t *testing.T) {
	c, err := New(2)
	require.NoError(t, err)
	c.Put("/a", Entry{})
	c.Put("/b", Entry{})
	c.Put("/c", Entry{})
	assert.Equal(t, 2, c.Len())
	_, ok := c.Peek("/a")
	assert.False(t, ok)
}

func TestAncestors(t *testing.T) {
	assert.Equal(t, []string{"/a/b", "/a", "/"}, Ancestors("/a/b/c"))
	assert.Empty(t, Ancestors("/"))
}

func TestIsDescendant(t *testing.T) {
	assert.True(t, IsDescendant("/a", "/a/b"))
	assert.True(t, IsDescendant("/", "/a"))
	assert.False(t, IsDescendant("/a", "/a"))
	assert.False(t, IsDescendant("/a", "/ab"))
	assert.False(t, IsDescendant("/a/b", "/a"))
}

func TestDiskStoreRoundTrip(t *testing.T) {
	root := t.TempDir()
	target := filepath.Join(root, "data")
	require.NoError(t, os.Mkdir(target, 0755))

	s, err := NewDiskStore(filepath.Join(root, "cache"), time.Hour)
	require.NoError(t, err)

	_, err = s.Load(target)
	assert.ErrorIs(t, err, ErrNotCached)

	want := Entry{Size: 4096, DepthReached: 2, ComputedAt: time.Now()}
	require.NoError(t, s.Save(target, want))

	got, err := s.Load(target)
	require.NoError(t, err)
	assert.Equal(t, want.Size, got.Size)
	assert.Equal(t, want.DepthReached, got.DepthReached)
}

func TestDiskStoreRejectsModifiedDirectory(t *testing.T) {
	root := t.TempDir()
	target := filepath.Join(root, "data")
	require.NoError(t, os.Mkdir(target, 0755))
	s, err := NewDiskStore(filepath.Join(root, "cache"), time.Hour)
	require.NoError(t, err)

	require.NoError(t, s.Save(target, Entry{Size: 1}))
	later := time.Now().Add(2 * time.Hour)
	require.NoError(t, os.Chtimes(target, later, later))

	_, err = s.Load(target)
	assert.ErrorIs(t, err, ErrExpired)
}

func TestDiskStoreRejectsOldEntries(t *testing.T) {
	root := t.TempDir()
	s, err := NewDiskStore(filepath.Join(root, "cache"), time.Minute)
	require.NoError(t, err)

	require.NoError(t, s.Save(root, Entry{Size: 1, ComputedAt: time.Now().Add(-time.Hour)}))
	_, err = s.Load(root)
	assert.ErrorIs(t, err, ErrExpired)
}

func TestDiskStoreRemoveClearsAncestors(t *testing.T) {
	root := t.TempDir()
	child := filepath.Join(root, "a")
	grandchild := filepath.Join(child, "b")
	require.NoError(t, os.MkdirAll(grandchild, 0755))

	s, err := NewDiskStore(filepath.Join(root, "cache"), time.Hour)
	require.NoError(t, err)
	for _, p := range []string{root, child, grandchild} {
		require.NoError(t, s.Save(p, Entry{Size: 1}))
	}

	require.NoError(t, s.Remove(grandchild))
	for _, p := range []string{root, child, grandchild} {
		_, err := s.Load(p)
		assert.ErrorIs(t, err, ErrNotCached, p)
	}
}
