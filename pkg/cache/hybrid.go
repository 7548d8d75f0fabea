package cache

import (
	"context"

	"github.com/rs/zerolog/log"
)

// hybridBackend layers a memory hot set over the disk cold set. Reads query
// memory first and promote disk hits; writes populate both tiers.
type hybridBackend struct {
	hot  *memoryBackend
	cold *diskBackend
}

func newHybrid(cfg Config) (*hybridBackend, error) {
	hot, err := newMemory(cfg.MemoryCapacity)
	if err != nil {
		return nil, err
	}
	cold, err := newDisk(cfg.DiskPath, cfg.DiskCapacity)
	if err != nil {
		return nil, err
	}
	return &hybridBackend{hot: hot, cold: cold}, nil
}

func (h *hybridBackend) Name() string { return "hybrid" }

func (h *hybridBackend) Get(ctx context.Context, key string) (*Entry, bool, error) {
	if entry, ok, _ := h.hot.Get(ctx, key); ok {
		return entry, true, nil
	}

	entry, ok, err := h.cold.Get(ctx, key)
	if err != nil || !ok {
		return nil, false, err
	}

	// Promote on first hit.
	if err := h.hot.Put(ctx, key, entry); err != nil {
		log.Warn().Err(err).Msg("hybrid cache promotion failed")
	}
	return entry, true, nil
}

func (h *hybridBackend) Put(ctx context.Context, key string, entry *Entry) error {
	if err := h.hot.Put(ctx, key, entry); err != nil {
		log.Warn().Err(err).Msg("hybrid cache memory populate failed")
	}
	return h.cold.Put(ctx, key, entry)
}
