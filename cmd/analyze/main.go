package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/tw93/diskdash/internal/config"
	"github.com/tw93/diskdash/internal/disks"
	"github.com/tw93/diskdash/internal/engine"
	"github.com/tw93/diskdash/internal/logging"
	"github.com/tw93/diskdash/internal/metrics"
	"github.com/tw93/diskdash/internal/sizecache"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "analyzer error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	cfg, err := config.Load(args)
	if err != nil {
		return err
	}

	if err := initLogging(cfg); err != nil {
		// The TUI still works without a log file.
		fmt.Fprintf(os.Stderr, "logging disabled: %v\n", err)
	}
	defer logging.Sync()

	eng, err := newEngine(cfg)
	if err != nil {
		return err
	}
	stopMetrics := serveMetrics(cfg.MetricsAddr)

	logging.Info("analyzer starting",
		logging.String("path", cfg.Path),
		logging.Int("max_depth", cfg.MaxDepth),
		logging.Bool("follow_symlinks", cfg.FollowSymlinks))

	p := tea.NewProgram(newModel(eng, cfg.Path), tea.WithAltScreen())
	_, runErr := p.Run()

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := eng.Close(ctx); err != nil {
		logging.Warn("engine shutdown incomplete", logging.Err(err))
	}
	stopMetrics(ctx)
	return runErr
}

func initLogging(cfg *config.Config) error {
	out := cfg.LogOutput
	if out != "stdout" && out != "stderr" {
		if err := os.MkdirAll(filepath.Dir(out), 0755); err != nil {
			return err
		}
	}
	return logging.Init(logging.Config{
		Level:      cfg.LogLevel,
		Format:     cfg.LogFormat,
		OutputPath: out,
	})
}

func newEngine(cfg *config.Config) (*engine.Engine, error) {
	var store *sizecache.DiskStore
	if cfg.Persist {
		s, err := sizecache.NewDiskStore(cfg.CacheDir, cfg.CacheTTL)
		if err != nil {
			logging.Warn("size persistence disabled", logging.Err(err))
		} else {
			store = s
		}
	}

	var roots []string
	for _, d := range disks.List() {
		roots = append(roots, d.Mount)
	}

	return engine.New(engine.Options{
		MaxDepth:       cfg.MaxDepth,
		FollowSymlinks: cfg.FollowSymlinks,
		Workers:        cfg.Workers,
		CacheSize:      cfg.CacheSize,
		Protected:      cfg.Protected,
		Roots:          roots,
		Store:          store,
	})
}

// serveMetrics exposes /metrics when addr is set and returns its shutdown.
func serveMetrics(addr string) func(context.Context) {
	if addr == "" {
		return func(context.Context) {}
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.Error("metrics server failed", logging.Err(err))
		}
	}()
	logging.Info("metrics listening", logging.String("addr", addr))
	return func(ctx context.Context) {
		_ = srv.Shutdown(ctx)
	}
}
