package config

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tw93/diskdash/internal/aggregate"
	"github.com/tw93/diskdash/internal/classify"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("DISKDASH_PATH", "")
	t.Setenv("DISKDASH_MAX_DEPTH", "")
	t.Setenv("DISKDASH_PROTECTED", "")

	cfg, err := Load(nil)
	require.NoError(t, err)
	assert.Equal(t, "", cfg.Path)
	assert.Equal(t, aggregate.DefaultMaxDepth, cfg.MaxDepth)
	assert.False(t, cfg.FollowSymlinks)
	assert.True(t, cfg.Persist)
	assert.Equal(t, 7*24*time.Hour, cfg.CacheTTL)
	assert.Equal(t, classify.MustKeep, cfg.Protected["$recycle.bin"])
}

func TestLoadFromEnvironment(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("DISKDASH_PATH", dir)
	t.Setenv("DISKDASH_MAX_DEPTH", "4")
	t.Setenv("DISKDASH_FOLLOW_SYMLINKS", "true")
	t.Setenv("DISKDASH_CACHE_TTL", "1h")
	t.Setenv("DISKDASH_PROTECTED", "vault, *.iso=useless, !boot")

	cfg, err := Load(nil)
	require.NoError(t, err)
	assert.Equal(t, dir, cfg.Path)
	assert.Equal(t, 4, cfg.MaxDepth)
	assert.True(t, cfg.FollowSymlinks)
	assert.Equal(t, time.Hour, cfg.CacheTTL)
	assert.Equal(t, classify.MustKeep, cfg.Protected["vault"])
	assert.Equal(t, classify.Useless, cfg.Protected["*.iso"])
	_, hasBoot := cfg.Protected["boot"]
	assert.False(t, hasBoot)
}

func TestArgumentOverridesEnvironment(t *testing.T) {
	t.Setenv("DISKDASH_PATH", "/somewhere/else")
	cfg, err := Load([]string{"relative/dir"})
	require.NoError(t, err)
	assert.True(t, filepath.IsAbs(cfg.Path))
	assert.Equal(t, "dir", filepath.Base(cfg.Path))
}

func TestLoadRejectsBadValues(t *testing.T) {
	t.Setenv("DISKDASH_MAX_DEPTH", "-1")
	_, err := Load(nil)
	assert.Error(t, err)

	t.Setenv("DISKDASH_MAX_DEPTH", "2")
	t.Setenv("DISKDASH_PROTECTED", "x=precious")
	_, err = Load(nil)
	assert.ErrorContains(t, err, "precious")
}

func TestParseProtectedDoesNotMutateBase(t *testing.T) {
	base := map[string]classify.Category{"boot": classify.MustKeep}
	out, err := ParseProtected("!boot,Data=system", base)
	require.NoError(t, err)
	assert.Contains(t, base, "boot")
	assert.NotContains(t, out, "boot")
	assert.Equal(t, classify.System, out["data"])
}
