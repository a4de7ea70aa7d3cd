package blob

import (
	"context"
)

// Store is the persistence layer beneath the name store. It deals in whole
// origin documents: the only write primitive is replacing an origin's full
// handle map. Per-key atomic updates are deliberately absent; callers that
// need read-modify-write must serialize it themselves.
// The generic type T represents the per-handle entry being stored.
type Store[T any] interface {
	// Get retrieves an origin's full handle map.
	// Returns the map, whether it was found, and any error.
	Get(ctx context.Context, origin string) (map[string]T, bool, error)

	// Set replaces an origin's full handle map.
	Set(ctx context.Context, origin string, entries map[string]T) error

	// Delete removes an origin and all its entries.
	Delete(ctx context.Context, origin string) error

	// Origins lists every origin currently held by the store.
	Origins(ctx context.Context) ([]string, error)

	// Close releases any resources held by the store.
	Close() error
}
