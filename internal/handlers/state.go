// Package handlers binds the codec, preset expander, option grammar,
// fetcher, pipeline, limits, and cache into the three HTTP endpoints.
package handlers

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"
	"golang.org/x/sync/singleflight"

	"imgforge/internal/config"
	"imgforge/pkg/cache"
	"imgforge/pkg/fetch"
	"imgforge/pkg/options"
)

// State is the shared per-process request machinery. Everything here is
// either read-only after startup or owns its own synchronization.
type State struct {
	Config  *config.Config
	Cache   cache.Backend
	Fetcher *fetch.Fetcher
	Presets options.Registry

	// workers bounds concurrent decode/encode work; cache hits and raw
	// requests bypass it.
	workers *semaphore.Weighted

	// flight coalesces concurrent misses on the same cache key.
	flight singleflight.Group

	// The configured local watermark file is read once and reused.
	watermarkOnce sync.Once
	watermarkData []byte
	watermarkErr  error
}

// NewState wires the request machinery from configuration.
func NewState(cfg *config.Config, backend cache.Backend) (*State, error) {
	presets, err := options.ParseRegistry(cfg.Presets)
	if err != nil {
		return nil, err
	}

	fetcher := fetch.New(fetch.Options{
		DownloadTimeout: time.Duration(cfg.DownloadTimeout) * time.Second,
		MaxBytes:        cfg.MaxSrcFileSizeByte,
		AllowedMime:     cfg.AllowedMimeList,
		WatermarkPath:   cfg.WatermarkPath,
	})

	return &State{
		Config:  cfg,
		Cache:   backend,
		Fetcher: fetcher,
		Presets: presets,
		workers: semaphore.NewWeighted(int64(cfg.Workers)),
	}, nil
}

// acquireWorker takes one processing permit, honoring cancellation while
// waiting. The returned release function is safe to defer unconditionally.
func (s *State) acquireWorker(ctx context.Context) (func(), error) {
	if err := s.workers.Acquire(ctx, 1); err != nil {
		return func() {}, err
	}
	return func() { s.workers.Release(1) }, nil
}

// localWatermark lazily loads the configured watermark file.
func (s *State) localWatermark(ctx context.Context) ([]byte, error) {
	s.watermarkOnce.Do(func() {
		s.watermarkData, s.watermarkErr = s.Fetcher.Watermark(ctx, "")
	})
	return s.watermarkData, s.watermarkErr
}
