package cache

import (
	"context"

	lru "github.com/hashicorp/golang-lru/v2"
)

// memoryBackend is a bounded-entry LRU. The underlying cache owns its own
// locking; get and put are O(1).
type memoryBackend struct {
	entries *lru.Cache[string, *Entry]
}

func newMemory(capacity int) (*memoryBackend, error) {
	entries, err := lru.New[string, *Entry](capacity)
	if err != nil {
		return nil, err
	}
	return &memoryBackend{entries: entries}, nil
}

func (m *memoryBackend) Name() string { return "memory" }

func (m *memoryBackend) Get(_ context.Context, key string) (*Entry, bool, error) {
	entry, ok := m.entries.Get(key)
	if !ok {
		return nil, false, nil
	}
	return entry, true, nil
}

func (m *memoryBackend) Put(_ context.Context, key string, entry *Entry) error {
	m.entries.Add(key, entry)
	return nil
}
