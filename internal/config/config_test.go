package config_test

import (
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"imgforge/internal/config"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:3000", cfg.Bind)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, 30, cfg.Timeout)
	assert.Equal(t, 10, cfg.DownloadTimeout)
	assert.Greater(t, cfg.Workers, 0)
	assert.False(t, cfg.AllowUnsigned)
	assert.Equal(t, "none", cfg.Cache.Type)
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("IMGFORGE_KEY", hex.EncodeToString([]byte("secret-key")))
	t.Setenv("IMGFORGE_SALT", hex.EncodeToString([]byte("secret-salt")))
	t.Setenv("IMGFORGE_ALLOW_UNSIGNED", "true")
	t.Setenv("IMGFORGE_WORKERS", "7")
	t.Setenv("IMGFORGE_TIMEOUT", "15")
	t.Setenv("IMGFORGE_DOWNLOAD_TIMEOUT", "5")
	t.Setenv("IMGFORGE_RATE_LIMIT_PER_MINUTE", "120")
	t.Setenv("IMGFORGE_MAX_SRC_FILE_SIZE", "4MB")
	t.Setenv("IMGFORGE_ALLOWED_MIME_TYPES", "image/png, image/jpeg")
	t.Setenv("IMGFORGE_CACHE_TYPE", "memory")
	t.Setenv("IMGFORGE_CACHE_MEMORY_CAPACITY", "42")

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, []byte("secret-key"), cfg.KeyBytes)
	assert.Equal(t, []byte("secret-salt"), cfg.SaltBytes)
	assert.True(t, cfg.AllowUnsigned)
	assert.Equal(t, 7, cfg.Workers)
	assert.Equal(t, 15, cfg.Timeout)
	assert.Equal(t, 5, cfg.DownloadTimeout)
	assert.Equal(t, 120, cfg.RateLimitPerMinute)
	assert.Equal(t, int64(4*1024*1024), cfg.MaxSrcFileSizeByte)
	assert.Equal(t, []string{"image/png", "image/jpeg"}, cfg.AllowedMimeList)
	assert.Equal(t, "memory", cfg.Cache.Type)
	assert.Equal(t, 42, cfg.Cache.MemoryCapacity)
}

func TestBindNormalization(t *testing.T) {
	t.Setenv("IMGFORGE_BIND", "3456")

	cfg, err := config.Load()
	require.NoError(t, err)
	assert.Equal(t, "0.0.0.0:3456", cfg.Bind)
}

func TestInvalidHexKeyRejected(t *testing.T) {
	t.Setenv("IMGFORGE_KEY", "not-hex")

	_, err := config.Load()
	assert.Error(t, err)
}

func TestInvalidCacheTypeRejected(t *testing.T) {
	t.Setenv("IMGFORGE_CACHE_TYPE", "redis")

	_, err := config.Load()
	assert.Error(t, err)
}

func TestDiskCacheRequiresPath(t *testing.T) {
	t.Setenv("IMGFORGE_CACHE_TYPE", "disk")

	_, err := config.Load()
	assert.Error(t, err)
}

func TestInvalidMaxSrcFileSizeRejected(t *testing.T) {
	t.Setenv("IMGFORGE_MAX_SRC_FILE_SIZE", "lots")

	_, err := config.Load()
	assert.Error(t, err)
}
