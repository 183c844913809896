// Package config loads configuration from environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/adrg/xdg"
	"github.com/joho/godotenv"

	"github.com/tw93/diskdash/internal/aggregate"
	"github.com/tw93/diskdash/internal/classify"
	"github.com/tw93/diskdash/internal/sizecache"
)

const appName = "diskdash"

// Config holds all analyzer configuration.
type Config struct {
	// Start directory; empty opens the disk overview.
	Path string

	// Engine
	MaxDepth       int
	FollowSymlinks bool
	Workers        int
	Protected      map[string]classify.Category

	// Size cache
	CacheSize int
	CacheTTL  time.Duration
	CacheDir  string
	Persist   bool

	// Logging
	LogLevel  string
	LogFormat string
	LogOutput string

	// Metrics listener, disabled when empty
	MetricsAddr string
}

// Load reads configuration from a .env file (if present), environment
// variables and the first positional argument, which overrides DISKDASH_PATH.
func Load(args []string) (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Path:           envOr("DISKDASH_PATH", ""),
		MaxDepth:       envInt("DISKDASH_MAX_DEPTH", aggregate.DefaultMaxDepth),
		FollowSymlinks: envBool("DISKDASH_FOLLOW_SYMLINKS", false),
		Workers:        envInt("DISKDASH_WORKERS", 0), // 0 = scale with CPUs
		CacheSize:      envInt("DISKDASH_CACHE_SIZE", sizecache.DefaultCapacity),
		CacheTTL:       envDuration("DISKDASH_CACHE_TTL", sizecache.DefaultTTL),
		CacheDir:       envOr("DISKDASH_CACHE_DIR", filepath.Join(xdg.CacheHome, appName)),
		Persist:        envBool("DISKDASH_PERSIST", true),
		LogLevel:       envOr("DISKDASH_LOG_LEVEL", "info"),
		LogFormat:      envOr("DISKDASH_LOG_FORMAT", "json"),
		LogOutput:      envOr("DISKDASH_LOG_OUTPUT", filepath.Join(xdg.StateHome, appName, appName+".log")),
		MetricsAddr:    envOr("DISKDASH_METRICS_ADDR", ""),
	}

	if len(args) > 0 && strings.TrimSpace(args[0]) != "" {
		cfg.Path = args[0]
	}
	if cfg.Path != "" {
		abs, err := filepath.Abs(cfg.Path)
		if err != nil {
			return nil, fmt.Errorf("cannot resolve %q: %w", cfg.Path, err)
		}
		cfg.Path = abs
	}

	protected, err := ParseProtected(os.Getenv("DISKDASH_PROTECTED"), classify.DefaultProtected())
	if err != nil {
		return nil, err
	}
	cfg.Protected = protected

	if cfg.MaxDepth < 0 {
		return nil, fmt.Errorf("DISKDASH_MAX_DEPTH must be >= 0, got %d", cfg.MaxDepth)
	}
	if cfg.CacheSize <= 0 {
		return nil, fmt.Errorf("DISKDASH_CACHE_SIZE must be > 0, got %d", cfg.CacheSize)
	}

	return cfg, nil
}

// ParseProtected merges a comma-separated "pattern=category" list onto base.
// A bare pattern means MustKeep; "!pattern" removes a pattern from base.
func ParseProtected(raw string, base map[string]classify.Category) (map[string]classify.Category, error) {
	out := make(map[string]classify.Category, len(base))
	for k, v := range base {
		out[k] = v
	}
	for _, item := range strings.Split(raw, ",") {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		if strings.HasPrefix(item, "!") {
			delete(out, strings.ToLower(strings.TrimPrefix(item, "!")))
			continue
		}
		pattern, catName, hasCat := strings.Cut(item, "=")
		pattern = strings.ToLower(strings.TrimSpace(pattern))
		cat := classify.MustKeep
		if hasCat {
			var ok bool
			cat, ok = classify.ParseCategory(catName)
			if !ok {
				return nil, fmt.Errorf("DISKDASH_PROTECTED: unknown category %q for %q", catName, pattern)
			}
		}
		out[pattern] = cat
	}
	return out, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return i
}

func envDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}
