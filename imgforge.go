// Package imgforge exposes the image transformation proxy as an embeddable
// library: build a Forge from configuration, then either mount Handler on an
// HTTP server or call ProcessPath / ImageInfo directly.
package imgforge

import (
	"context"
	"net/http"

	"imgforge/internal/config"
	"imgforge/internal/handlers"
	"imgforge/internal/middleware"
	"imgforge/pkg/cache"
	"imgforge/pkg/logger"
)

// Forge is a fully wired proxy instance.
type Forge struct {
	cfg   *config.Config
	state *handlers.State
}

// Aliases re-exported so embedders never import internal packages.
type (
	Config    = config.Config
	Rendered  = handlers.Rendered
	ImageInfo = handlers.ImageInfo
)

// LoadConfig reads configuration from the environment (IMGFORGE_* variables
// and an optional config.yaml).
func LoadConfig() (*Config, error) {
	return config.Load()
}

// New builds a Forge from an explicit configuration.
func New(cfg *Config) (*Forge, error) {
	backend, err := cache.New(cache.Config{
		Type:           cfg.Cache.Type,
		MemoryCapacity: cfg.Cache.MemoryCapacity,
		DiskPath:       cfg.Cache.DiskPath,
		DiskCapacity:   cfg.Cache.DiskCapacity,
	})
	if err != nil {
		return nil, err
	}

	state, err := handlers.NewState(cfg, backend)
	if err != nil {
		return nil, err
	}

	return &Forge{cfg: cfg, state: state}, nil
}

// FromEnv builds a Forge from environment-derived configuration and
// initializes logging at the configured level.
func FromEnv() (*Forge, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	logger.Init(cfg.LogLevel)
	return New(cfg)
}

// Config returns the effective configuration.
func (f *Forge) Config() *Config {
	return f.cfg
}

// ProcessPath runs the full request flow for an imgproxy-style path
// ("/signature/options/plain/url" or the base64 form) and returns the
// encoded image bytes with their content type.
func (f *Forge) ProcessPath(ctx context.Context, path string) (*Rendered, error) {
	return f.state.ProcessPath(ctx, path)
}

// ImageInfo returns source metadata for a path without processing pixels.
func (f *Forge) ImageInfo(ctx context.Context, path string) (*ImageInfo, error) {
	return f.state.InfoPath(ctx, path)
}

// Handler assembles the complete middleware chain around the endpoint
// router: panic recovery, request ids, access logging, the global rate
// limiter, and the bearer gate.
func (f *Forge) Handler() http.Handler {
	limiter := middleware.NewRateLimiter(f.cfg.RateLimitPerMinute)

	var handler http.Handler = handlers.NewRouter(f.state)
	handler = middleware.AuthMiddleware(f.cfg.Secret, handler)
	handler = middleware.RateLimitMiddleware(limiter, handler)
	handler = middleware.LoggerMiddleware(handler)
	handler = middleware.RequestIDMiddleware(handler)
	handler = middleware.RecoverMiddleware(handler)
	return handler
}
