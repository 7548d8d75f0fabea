package handlers

import (
	"context"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"imgforge/internal/metrics"
	"imgforge/internal/middleware"
	"imgforge/pkg/cache"
	"imgforge/pkg/forgeurl"
	"imgforge/pkg/options"
	"imgforge/pkg/processing"
)

// Rendered is one processed response body, shared verbatim by every
// coalesced waiter of a singleflight render.
type Rendered struct {
	Bytes       []byte
	ContentType string
	CacheHit    bool
}

// Forge is the main endpoint: parse, verify, expand, parse options, fetch,
// process, cache, respond. Cache hits skip the worker semaphore entirely.
func (s *State) Forge(w http.ResponseWriter, r *http.Request, rawPath string) {
	ctx, cancel := context.WithTimeout(r.Context(), time.Duration(s.Config.Timeout)*time.Second)
	defer cancel()

	result, err := s.ProcessPath(ctx, rawPath)
	if err != nil {
		writeServiceError(w, middleware.RequestID(r.Context()), err)
		return
	}
	s.serveImage(w, result)
}

// ProcessPath runs the full request flow for a raw path and returns the
// encoded image. It is the transport-independent core of the Forge handler.
func (s *State) ProcessPath(ctx context.Context, rawPath string) (*Rendered, error) {
	parsed, err := s.parseAndAuthorize(rawPath)
	if err != nil {
		return nil, err
	}

	key := cache.Key(rawPath)
	if entry, ok := s.cacheGet(ctx, key); ok {
		return &Rendered{Bytes: entry.Bytes, ContentType: entry.ContentType, CacheHit: true}, nil
	}

	// Coalesce concurrent misses: only one goroutine renders, the rest wait
	// for its result.
	value, err, _ := s.flight.Do(key, func() (interface{}, error) {
		if entry, ok := s.cacheGet(ctx, key); ok {
			return &Rendered{Bytes: entry.Bytes, ContentType: entry.ContentType, CacheHit: true}, nil
		}
		return s.render(ctx, parsed, key)
	})
	if err != nil {
		return nil, err
	}
	return value.(*Rendered), nil
}

// parseAndAuthorize splits the path and checks the signature. "unsafe" is
// honored only when the server allows unsigned URLs; the error is the same
// either way so probes learn nothing.
func (s *State) parseAndAuthorize(rawPath string) (*forgeurl.ParsedURL, error) {
	parsed, err := forgeurl.Parse(rawPath)
	if err != nil {
		return nil, err
	}

	if parsed.Signature == forgeurl.UnsafeToken {
		if !s.Config.AllowUnsigned {
			return nil, errSignatureMismatch
		}
		return parsed, nil
	}

	if !forgeurl.Verify(s.Config.KeyBytes, s.Config.SaltBytes, parsed.Signature, parsed.SignedPath) {
		return nil, errSignatureMismatch
	}
	return parsed, nil
}

// render performs the miss path: presets, options, fetch, guards, permit,
// pipeline, cache populate.
func (s *State) render(ctx context.Context, parsed *forgeurl.ParsedURL, key string) (*Rendered, error) {
	expanded, err := options.Expand(parsed.Options, s.Presets, s.Config.OnlyPresets)
	if err != nil {
		return nil, err
	}

	po, err := options.ParseAll(expanded)
	if err != nil {
		return nil, err
	}

	sourceURL, err := parsed.Source.Decode()
	if err != nil {
		return nil, err
	}

	sourceBytes, err := s.fetchSource(ctx, sourceURL, po)
	if err != nil {
		return nil, err
	}

	if err := s.checkResolution(sourceBytes, po); err != nil {
		return nil, err
	}

	watermarkData, err := s.resolveWatermark(ctx, po)
	if err != nil {
		return nil, err
	}

	if !po.Raw {
		release, err := s.acquireWorker(ctx)
		if err != nil {
			return nil, err
		}
		defer release()
	}

	extension := parsed.Source.Extension
	if extension == "" {
		if u, err := url.Parse(sourceURL); err == nil {
			extension = strings.TrimPrefix(path.Ext(u.Path), ".")
		}
	}

	processStart := time.Now()
	result, err := processing.Process(ctx, sourceBytes, po, watermarkData, extension)
	if err != nil {
		return nil, err
	}
	metrics.ProcessingDuration.WithLabelValues(result.Format).Observe(time.Since(processStart).Seconds())
	metrics.ProcessedImages.WithLabelValues(result.Format).Inc()

	// Populate failures never fail the response.
	entry := &cache.Entry{
		Bytes:       result.Bytes,
		ContentType: result.ContentType,
		CreatedAt:   time.Now(),
	}
	if err := s.Cache.Put(ctx, key, entry); err != nil {
		log.Warn().Err(err).Str("backend", s.Cache.Name()).Msg("cache populate failed")
	}

	return &Rendered{Bytes: result.Bytes, ContentType: result.ContentType}, nil
}

// fetchSource downloads the source under the effective guards. Per-request
// overrides apply only when the server opts in.
func (s *State) fetchSource(ctx context.Context, sourceURL string, po *options.ParsedOptions) ([]byte, error) {
	var maxBytes int64
	if po != nil && s.Config.AllowSecurityOptions && po.MaxSrcFileSz > 0 {
		maxBytes = po.MaxSrcFileSz
	}

	fetchStart := time.Now()
	result, err := s.Fetcher.Fetch(ctx, sourceURL, maxBytes)
	metrics.FetchDuration.Observe(time.Since(fetchStart).Seconds())
	if err != nil {
		metrics.SourceFetches.WithLabelValues("error").Inc()
		return nil, err
	}
	metrics.SourceFetches.WithLabelValues("success").Inc()
	return result.Bytes, nil
}

// checkResolution enforces the megapixel guard from the image header alone,
// before any pixel data is decoded.
func (s *State) checkResolution(sourceBytes []byte, po *options.ParsedOptions) error {
	maxResolution := s.Config.MaxSrcResolution
	if s.Config.AllowSecurityOptions && po.MaxSrcResolMP > 0 {
		maxResolution = po.MaxSrcResolMP
	}
	if maxResolution <= 0 {
		return nil
	}

	header, _, err := processing.DecodeConfig(sourceBytes)
	if err != nil {
		return &processing.EngineError{Stage: "load", Err: err}
	}

	megapixels := float64(header.Width) * float64(header.Height) / 1e6
	if megapixels > maxResolution {
		return errResolutionTooLarge
	}
	return nil
}

// resolveWatermark loads the overlay for requests that ask for one: the
// per-request URL when present, else the configured local file.
func (s *State) resolveWatermark(ctx context.Context, po *options.ParsedOptions) ([]byte, error) {
	if po.Watermark == nil {
		return nil, nil
	}
	if po.WatermarkURL != "" {
		return s.Fetcher.Watermark(ctx, po.WatermarkURL)
	}
	return s.localWatermark(ctx)
}

// cacheGet treats backend failures as misses with a warning.
func (s *State) cacheGet(ctx context.Context, key string) (*cache.Entry, bool) {
	entry, ok, err := s.Cache.Get(ctx, key)
	if err != nil {
		log.Warn().Err(err).Str("backend", s.Cache.Name()).Msg("cache lookup failed, treating as miss")
		return nil, false
	}

	if s.Cache.Name() != "none" {
		if ok {
			metrics.CacheHits.WithLabelValues(s.Cache.Name()).Inc()
		} else {
			metrics.CacheMisses.WithLabelValues(s.Cache.Name()).Inc()
		}
	}
	return entry, ok
}

func (s *State) serveImage(w http.ResponseWriter, result *Rendered) {
	w.Header().Set("Content-Type", result.ContentType)
	if result.CacheHit {
		w.Header().Set("X-Cache-Status", "HIT")
	}
	w.Write(result.Bytes)
}
