package blob

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/valkey-io/valkey-go"
)

const (
	// originKeyPrefix namespaces origin documents in the shared keyspace.
	originKeyPrefix = "unveil:names:"

	// originIndexKey is the set tracking every origin with a stored document.
	// Required because the sweep must enumerate origins, and key scans are
	// not an option on shared instances.
	originIndexKey = "unveil:origins"
)

// Distributed implements Store using Valkey. Origin documents are stored as
// JSON blobs, one key per origin, with a set indexing the known origins.
// The generic type T represents the per-handle entry being stored.
type Distributed[T any] struct {
	client valkey.Client
}

// NewDistributed creates a new Valkey-backed blob store.
func NewDistributed[T any](valkeyClient valkey.Client) (*Distributed[T], error) {
	return &Distributed[T]{
		client: valkeyClient,
	}, nil
}

// Get retrieves an origin's handle map.
// Returns the map, whether it was found, and any error.
func (d *Distributed[T]) Get(ctx context.Context, origin string) (map[string]T, bool, error) {
	cmd := d.client.B().Get().Key(originKeyPrefix + origin).Build()
	result := d.client.Do(ctx, cmd)

	if err := result.Error(); err != nil {
		// Key not found is not an error in our semantics
		if valkey.IsValkeyNil(err) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("failed to get origin document: %w", err)
	}

	data, err := result.AsBytes()
	if err != nil {
		return nil, false, fmt.Errorf("failed to read origin document: %w", err)
	}

	var entries map[string]T
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, false, fmt.Errorf("failed to unmarshal origin document: %w", err)
	}

	return entries, true, nil
}

// Set replaces an origin's handle map and records the origin in the index.
func (d *Distributed[T]) Set(ctx context.Context, origin string, entries map[string]T) error {
	data, err := json.Marshal(entries)
	if err != nil {
		return fmt.Errorf("failed to marshal origin document: %w", err)
	}

	setCmd := d.client.B().Set().Key(originKeyPrefix + origin).Value(string(data)).Build()
	if err := d.client.Do(ctx, setCmd).Error(); err != nil {
		return fmt.Errorf("failed to set origin document: %w", err)
	}

	indexCmd := d.client.B().Sadd().Key(originIndexKey).Member(origin).Build()
	if err := d.client.Do(ctx, indexCmd).Error(); err != nil {
		return fmt.Errorf("failed to index origin: %w", err)
	}

	return nil
}

// Delete removes an origin document and its index entry.
func (d *Distributed[T]) Delete(ctx context.Context, origin string) error {
	delCmd := d.client.B().Del().Key(originKeyPrefix + origin).Build()
	if err := d.client.Do(ctx, delCmd).Error(); err != nil {
		return fmt.Errorf("failed to delete origin document: %w", err)
	}

	indexCmd := d.client.B().Srem().Key(originIndexKey).Member(origin).Build()
	if err := d.client.Do(ctx, indexCmd).Error(); err != nil {
		return fmt.Errorf("failed to unindex origin: %w", err)
	}

	return nil
}

// Origins lists every indexed origin.
func (d *Distributed[T]) Origins(ctx context.Context) ([]string, error) {
	cmd := d.client.B().Smembers().Key(originIndexKey).Build()
	origins, err := d.client.Do(ctx, cmd).AsStrSlice()
	if err != nil {
		return nil, fmt.Errorf("failed to list origins: %w", err)
	}
	return origins, nil
}

// Close releases resources associated with the store's client.
func (d *Distributed[T]) Close() error {
	d.client.Close()
	return nil
}
