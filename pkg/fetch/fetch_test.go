package fetch_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"imgforge/pkg/fetch"
)

func newFetcher(opts fetch.Options) *fetch.Fetcher {
	if opts.DownloadTimeout == 0 {
		opts.DownloadTimeout = 5 * time.Second
	}
	return fetch.New(opts)
}

func TestFetchSuccess(t *testing.T) {
	payload := []byte("fake-image-bytes")
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		w.Write(payload)
	}))
	defer server.Close()

	f := newFetcher(fetch.Options{})
	result, err := f.Fetch(context.Background(), server.URL+"/a.png", 0)
	require.NoError(t, err)

	assert.Equal(t, payload, result.Bytes)
	assert.Equal(t, "image/png", result.ContentType)
}

func TestFetchStripsContentTypeParameters(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/jpeg; charset=binary")
		w.Write([]byte("x"))
	}))
	defer server.Close()

	f := newFetcher(fetch.Options{})
	result, err := f.Fetch(context.Background(), server.URL, 0)
	require.NoError(t, err)
	assert.Equal(t, "image/jpeg", result.ContentType)
}

func TestFetchRejectsBadScheme(t *testing.T) {
	f := newFetcher(fetch.Options{})

	for _, bad := range []string{"ftp://host/a.png", "file:///etc/passwd", "not a url"} {
		_, err := f.Fetch(context.Background(), bad, 0)
		assert.ErrorIs(t, err, fetch.ErrInvalidScheme, bad)
	}
}

func TestFetchSizeCap(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(make([]byte, 4096))
	}))
	defer server.Close()

	f := newFetcher(fetch.Options{MaxBytes: 1024})
	_, err := f.Fetch(context.Background(), server.URL, 0)
	assert.ErrorIs(t, err, fetch.ErrSourceTooLarge)
}

func TestFetchSizeCapOverride(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(make([]byte, 2048))
	}))
	defer server.Close()

	f := newFetcher(fetch.Options{MaxBytes: 1024})

	// A larger per-request cap admits the body.
	result, err := f.Fetch(context.Background(), server.URL, 4096)
	require.NoError(t, err)
	assert.Len(t, result.Bytes, 2048)

	// A tighter one rejects it.
	_, err = f.Fetch(context.Background(), server.URL, 512)
	assert.ErrorIs(t, err, fetch.ErrSourceTooLarge)
}

func TestFetchMimeAllowlist(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte("<html>"))
	}))
	defer server.Close()

	f := newFetcher(fetch.Options{AllowedMime: []string{"image/png", "image/jpeg"}})
	_, err := f.Fetch(context.Background(), server.URL, 0)
	assert.ErrorIs(t, err, fetch.ErrUnsupportedMime)
}

func TestFetchUpstreamError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer server.Close()

	f := newFetcher(fetch.Options{})
	_, err := f.Fetch(context.Background(), server.URL, 0)

	var fetchErr *fetch.Error
	require.ErrorAs(t, err, &fetchErr)
	assert.NotContains(t, fetchErr.Error(), server.URL)
}

func TestFetchDownloadTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(2 * time.Second)
	}))
	defer server.Close()

	f := newFetcher(fetch.Options{DownloadTimeout: 100 * time.Millisecond})
	_, err := f.Fetch(context.Background(), server.URL, 0)
	assert.ErrorIs(t, err, fetch.ErrDownloadTimeout)
}

func TestFetchCallerCancellation(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(2 * time.Second)
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	f := newFetcher(fetch.Options{})
	_, err := f.Fetch(ctx, server.URL, 0)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestFetchRedirectCap(t *testing.T) {
	var server *httptest.Server
	server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Redirect forever; the client must give up on its own.
		http.Redirect(w, r, server.URL+r.URL.Path+"x", http.StatusFound)
	}))
	defer server.Close()

	f := newFetcher(fetch.Options{})
	_, err := f.Fetch(context.Background(), server.URL+"/start", 0)
	assert.Error(t, err)
}

func TestWatermarkLocalFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "wm.png")
	require.NoError(t, os.WriteFile(path, []byte("watermark-bytes"), 0o600))

	f := newFetcher(fetch.Options{WatermarkPath: path})
	data, err := f.Watermark(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, []byte("watermark-bytes"), data)
}

func TestWatermarkUnconfigured(t *testing.T) {
	f := newFetcher(fetch.Options{})
	data, err := f.Watermark(context.Background(), "")
	require.NoError(t, err)
	assert.Nil(t, data)
}

func TestWatermarkRemote(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("remote-watermark"))
	}))
	defer server.Close()

	f := newFetcher(fetch.Options{})
	data, err := f.Watermark(context.Background(), server.URL+"/wm.png")
	require.NoError(t, err)
	assert.Equal(t, []byte("remote-watermark"), data)
}
