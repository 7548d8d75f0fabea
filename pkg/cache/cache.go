// Package cache stores rendered image bytes keyed by the full request path.
// Three backends are available: a memory entry-count LRU, a SQLite-backed
// disk store that survives restarts, and a hybrid two-tier combination.
// Entries are immutable once written; eviction is implicit via capacity.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"
)

// Entry is one cached rendering.
type Entry struct {
	Bytes       []byte
	ContentType string
	CreatedAt   time.Time
}

// Backend is the common cache interface. Get never errors on plain absence;
// a backend failure is returned so callers can treat it as a miss with a
// warning. Put failures are surfaced the same way and must never fail the
// response.
type Backend interface {
	Name() string
	Get(ctx context.Context, key string) (*Entry, bool, error)
	Put(ctx context.Context, key string, entry *Entry) error
}

// Config selects and sizes a backend.
type Config struct {
	// Type: memory, disk, hybrid, or none.
	Type string
	// MemoryCapacity bounds the memory tier in entries.
	MemoryCapacity int
	// DiskPath is the directory for the SQLite block store.
	DiskPath string
	// DiskCapacity bounds the disk tier in entries.
	DiskCapacity int
}

// New builds the backend named by the configuration.
func New(cfg Config) (Backend, error) {
	switch cfg.Type {
	case "", "none":
		return nopBackend{}, nil
	case "memory":
		return newMemory(cfg.MemoryCapacity)
	case "disk":
		return newDisk(cfg.DiskPath, cfg.DiskCapacity)
	case "hybrid":
		return newHybrid(cfg)
	default:
		return nil, fmt.Errorf("unknown cache type %q", cfg.Type)
	}
}

// Key derives the stable cache key for a request path. The full path is
// hashed, signature token included, so signed and unsafe variants of the
// same rendering never collide.
func Key(path string) string {
	sum := sha256.Sum256([]byte(path))
	return hex.EncodeToString(sum[:])
}

// nopBackend is the "none" cache: every lookup misses, every write is
// dropped.
type nopBackend struct{}

func (nopBackend) Name() string { return "none" }

func (nopBackend) Get(context.Context, string) (*Entry, bool, error) { return nil, false, nil }

func (nopBackend) Put(context.Context, string, *Entry) error { return nil }
