// Package fetch downloads source and watermark images with hard guards:
// a per-request download deadline, a streamed byte cap, a bounded redirect
// chain, and an optional MIME allowlist.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/rs/zerolog/log"
)

// maxRedirects bounds the upstream redirect chain.
const maxRedirects = 5

var (
	// ErrInvalidScheme rejects anything that is not http or https.
	ErrInvalidScheme = errors.New("source url scheme must be http or https")

	// ErrSourceTooLarge fires when the body exceeds the byte cap mid-stream.
	ErrSourceTooLarge = errors.New("source image file size is too large")

	// ErrUnsupportedMime fires when the upstream content type is not allowlisted.
	ErrUnsupportedMime = errors.New("source image MIME type is not allowed")

	// ErrDownloadTimeout fires when the download deadline elapses before the
	// body is fully read.
	ErrDownloadTimeout = errors.New("source download timed out")
)

// Error wraps any other transport failure with a short, user-safe message.
// The upstream URL never appears in it.
type Error struct {
	Reason string
}

func (e *Error) Error() string {
	return "fetch failed: " + e.Reason
}

// Result is a fetched body with its reported content type.
type Result struct {
	Bytes       []byte
	ContentType string
}

// Fetcher owns the upstream HTTP client. One instance is shared by all
// requests; per-request state travels through Fetch arguments.
type Fetcher struct {
	client          *retryablehttp.Client
	downloadTimeout time.Duration
	maxBytes        int64 // 0 means uncapped
	allowedMime     []string
	watermarkPath   string
}

// Options configures a Fetcher.
type Options struct {
	// DownloadTimeout bounds connect + headers + body per fetch.
	DownloadTimeout time.Duration
	// MaxBytes is the default source byte cap; 0 disables it.
	MaxBytes int64
	// AllowedMime restricts upstream content types; empty allows all.
	AllowedMime []string
	// WatermarkPath is the local fallback watermark file.
	WatermarkPath string
}

// New builds a Fetcher with a retrying client and a capped redirect policy.
func New(opts Options) *Fetcher {
	client := retryablehttp.NewClient()
	client.RetryMax = 2
	client.RetryWaitMin = 100 * time.Millisecond
	client.RetryWaitMax = time.Second
	client.Logger = nil
	client.HTTPClient.CheckRedirect = func(req *http.Request, via []*http.Request) error {
		if len(via) >= maxRedirects {
			return fmt.Errorf("stopped after %d redirects", maxRedirects)
		}
		return nil
	}

	return &Fetcher{
		client:          client,
		downloadTimeout: opts.DownloadTimeout,
		maxBytes:        opts.MaxBytes,
		allowedMime:     opts.AllowedMime,
		watermarkPath:   opts.WatermarkPath,
	}
}

// Fetch downloads rawURL under the fetcher's guards. maxBytesOverride, when
// positive, replaces the configured byte cap for this request.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string, maxBytesOverride int64) (*Result, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") {
		return nil, ErrInvalidScheme
	}

	fetchCtx, cancel := context.WithTimeout(ctx, f.downloadTimeout)
	defer cancel()

	req, err := retryablehttp.NewRequestWithContext(fetchCtx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, &Error{Reason: "could not build request"}
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, f.classify(ctx, fetchCtx, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &Error{Reason: fmt.Sprintf("upstream returned status %d", resp.StatusCode)}
	}

	contentType := resp.Header.Get("Content-Type")
	if idx := strings.IndexByte(contentType, ';'); idx >= 0 {
		contentType = strings.TrimSpace(contentType[:idx])
	}
	if len(f.allowedMime) > 0 && !f.mimeAllowed(contentType) {
		return nil, ErrUnsupportedMime
	}

	limit := f.maxBytes
	if maxBytesOverride > 0 {
		limit = maxBytesOverride
	}

	body, err := readCapped(resp.Body, limit)
	if err != nil {
		if errors.Is(err, ErrSourceTooLarge) {
			return nil, ErrSourceTooLarge
		}
		return nil, f.classify(ctx, fetchCtx, err)
	}

	return &Result{Bytes: body, ContentType: contentType}, nil
}

// Watermark resolves the overlay image: a per-request URL when given,
// otherwise the configured local file. Remote watermarks go through the same
// guards as source images.
func (f *Fetcher) Watermark(ctx context.Context, watermarkURL string) ([]byte, error) {
	if watermarkURL != "" {
		result, err := f.Fetch(ctx, watermarkURL, 0)
		if err != nil {
			return nil, err
		}
		return result.Bytes, nil
	}

	if f.watermarkPath == "" {
		return nil, nil
	}
	data, err := os.ReadFile(f.watermarkPath)
	if err != nil {
		log.Error().Err(err).Str("path", f.watermarkPath).Msg("failed to read watermark file")
		return nil, &Error{Reason: "could not load watermark"}
	}
	return data, nil
}

func (f *Fetcher) mimeAllowed(contentType string) bool {
	for _, allowed := range f.allowedMime {
		if strings.EqualFold(allowed, contentType) {
			return true
		}
	}
	return false
}

// classify separates the caller's cancellation from the download deadline;
// everything else is a generic transport failure.
func (f *Fetcher) classify(parent, fetchCtx context.Context, err error) error {
	if parent.Err() != nil {
		return parent.Err()
	}
	if errors.Is(fetchCtx.Err(), context.DeadlineExceeded) {
		return ErrDownloadTimeout
	}
	log.Debug().Err(err).Msg("upstream fetch failed")
	return &Error{Reason: "upstream request failed"}
}

// readCapped streams the body, aborting as soon as the limit is crossed so a
// hostile upstream cannot make us buffer an unbounded response.
func readCapped(r io.Reader, limit int64) ([]byte, error) {
	if limit <= 0 {
		return io.ReadAll(r)
	}
	body, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, err
	}
	if int64(len(body)) > limit {
		return nil, ErrSourceTooLarge
	}
	return body, nil
}
