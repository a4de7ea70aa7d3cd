package blob

import (
	"context"

	"github.com/maypok86/otter/v2"
	"github.com/maypok86/otter/v2/stats"
)

// Memory is an in-process blob store backed by otter. Entries never expire
// here: retention is the name store's concern, enforced by its sweep. The
// cache bounds the number of origins held, shedding the least used origin
// documents when the process tracks too many sites.
// The generic type T represents the per-handle entry being stored.
type Memory[T any] struct {
	cache   *otter.Cache[string, map[string]T]
	counter *stats.Counter
}

// NewMemory creates a new in-memory blob store holding at most maxOrigins
// origin documents.
func NewMemory[T any](maxOrigins int) (*Memory[T], error) {
	counter := stats.NewCounter()
	cache := otter.Must(&otter.Options[string, map[string]T]{
		MaximumSize:   maxOrigins,
		StatsRecorder: counter,
	})

	return &Memory[T]{
		cache:   cache,
		counter: counter,
	}, nil
}

// Get retrieves an origin's handle map. The returned map is a copy; mutating
// it does not affect the stored document.
func (m *Memory[T]) Get(ctx context.Context, origin string) (map[string]T, bool, error) {
	entry, ok := m.cache.GetEntry(origin)
	if !ok {
		return nil, false, nil
	}

	entries := make(map[string]T, len(entry.Value))
	for k, v := range entry.Value {
		entries[k] = v
	}
	return entries, true, nil
}

// Set replaces an origin's handle map.
func (m *Memory[T]) Set(ctx context.Context, origin string, entries map[string]T) error {
	copied := make(map[string]T, len(entries))
	for k, v := range entries {
		copied[k] = v
	}
	m.cache.Set(origin, copied)
	return nil
}

// Delete removes an origin document.
func (m *Memory[T]) Delete(ctx context.Context, origin string) error {
	m.cache.Invalidate(origin)
	return nil
}

// Origins lists the origins currently held.
func (m *Memory[T]) Origins(ctx context.Context) ([]string, error) {
	origins := make([]string, 0, m.cache.EstimatedSize())
	for origin := range m.cache.Keys() {
		origins = append(origins, origin)
	}
	return origins, nil
}

// Close releases resources held by the store.
func (m *Memory[T]) Close() error {
	return nil
}
