package cache_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"imgforge/pkg/cache"
)

func entry(data string) *cache.Entry {
	return &cache.Entry{
		Bytes:       []byte(data),
		ContentType: "image/png",
		CreatedAt:   time.Now(),
	}
}

func TestKeyIsStableAndUnique(t *testing.T) {
	a := cache.Key("/sig/resize:fit:10:10/plain/http://src/a.png")
	b := cache.Key("/sig/resize:fit:10:10/plain/http://src/a.png")
	c := cache.Key("/sig/resize:fit:10:10/cache_buster:v2/plain/http://src/a.png")
	unsafe := cache.Key("/unsafe/resize:fit:10:10/plain/http://src/a.png")

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.NotEqual(t, a, unsafe)
	assert.Len(t, a, 64)
}

func TestNoneBackendAlwaysMisses(t *testing.T) {
	backend, err := cache.New(cache.Config{Type: "none"})
	require.NoError(t, err)
	assert.Equal(t, "none", backend.Name())

	ctx := context.Background()
	require.NoError(t, backend.Put(ctx, "k", entry("v")))

	_, ok, err := backend.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemoryBackendRoundTrip(t *testing.T) {
	backend, err := cache.New(cache.Config{Type: "memory", MemoryCapacity: 10})
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, backend.Put(ctx, "k", entry("hello")))

	got, ok, err := backend.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []byte("hello"), got.Bytes)
	assert.Equal(t, "image/png", got.ContentType)
}

func TestMemoryBackendEvictsLRU(t *testing.T) {
	backend, err := cache.New(cache.Config{Type: "memory", MemoryCapacity: 2})
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, backend.Put(ctx, "a", entry("a")))
	require.NoError(t, backend.Put(ctx, "b", entry("b")))

	// Touch "a" so "b" becomes the eviction candidate.
	_, ok, _ := backend.Get(ctx, "a")
	require.True(t, ok)

	require.NoError(t, backend.Put(ctx, "c", entry("c")))

	_, ok, _ = backend.Get(ctx, "b")
	assert.False(t, ok, "least recently used entry is evicted")
	_, ok, _ = backend.Get(ctx, "a")
	assert.True(t, ok)
	_, ok, _ = backend.Get(ctx, "c")
	assert.True(t, ok)
}

func TestDiskBackendRoundTrip(t *testing.T) {
	dir := t.TempDir()
	backend, err := cache.New(cache.Config{Type: "disk", DiskPath: dir, DiskCapacity: 100})
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, backend.Put(ctx, "k", entry("disk-bytes")))

	got, ok, err := backend.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []byte("disk-bytes"), got.Bytes)
}

func TestDiskBackendSurvivesReopen(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	first, err := cache.New(cache.Config{Type: "disk", DiskPath: dir, DiskCapacity: 100})
	require.NoError(t, err)
	require.NoError(t, first.Put(ctx, "persist", entry("still-here")))

	second, err := cache.New(cache.Config{Type: "disk", DiskPath: dir, DiskCapacity: 100})
	require.NoError(t, err)

	got, ok, err := second.Get(ctx, "persist")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []byte("still-here"), got.Bytes)
}

func TestDiskBackendPrunesToCapacity(t *testing.T) {
	dir := t.TempDir()
	backend, err := cache.New(cache.Config{Type: "disk", DiskPath: dir, DiskCapacity: 3})
	require.NoError(t, err)
	ctx := context.Background()

	for i := 0; i < 6; i++ {
		e := entry(fmt.Sprintf("v%d", i))
		e.CreatedAt = time.Now().Add(time.Duration(i) * time.Second)
		require.NoError(t, backend.Put(ctx, fmt.Sprintf("k%d", i), e))
	}

	// The oldest entries are gone, the newest survive.
	_, ok, _ := backend.Get(ctx, "k0")
	assert.False(t, ok)
	_, ok, _ = backend.Get(ctx, "k5")
	assert.True(t, ok)
}

func TestDiskBackendPutIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	backend, err := cache.New(cache.Config{Type: "disk", DiskPath: dir, DiskCapacity: 10})
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, backend.Put(ctx, "k", entry("first")))
	require.NoError(t, backend.Put(ctx, "k", entry("second")))

	got, ok, err := backend.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)
	// Entries are immutable once written.
	assert.Equal(t, []byte("first"), got.Bytes)
}

func TestHybridBackendPromotesOnHit(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	// Seed the disk tier directly, then read through a hybrid cache.
	seed, err := cache.New(cache.Config{Type: "disk", DiskPath: dir, DiskCapacity: 100})
	require.NoError(t, err)
	require.NoError(t, seed.Put(ctx, "cold", entry("from-disk")))

	hybrid, err := cache.New(cache.Config{
		Type:           "hybrid",
		MemoryCapacity: 10,
		DiskPath:       dir,
		DiskCapacity:   100,
	})
	require.NoError(t, err)

	got, ok, err := hybrid.Get(ctx, "cold")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []byte("from-disk"), got.Bytes)

	// A second read, after the promotion, returns the same entry.
	got, ok, err = hybrid.Get(ctx, "cold")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []byte("from-disk"), got.Bytes)
}

func TestHybridBackendWritesBothTiers(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	hybrid, err := cache.New(cache.Config{
		Type:           "hybrid",
		MemoryCapacity: 10,
		DiskPath:       dir,
		DiskCapacity:   100,
	})
	require.NoError(t, err)
	require.NoError(t, hybrid.Put(ctx, "k", entry("both")))

	// The disk tier holds the entry independently of the memory tier.
	disk, err := cache.New(cache.Config{Type: "disk", DiskPath: dir, DiskCapacity: 100})
	require.NoError(t, err)

	got, ok, err := disk.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []byte("both"), got.Bytes)
}

func TestUnknownCacheTypeRejected(t *testing.T) {
	_, err := cache.New(cache.Config{Type: "redis"})
	assert.Error(t, err)
}
