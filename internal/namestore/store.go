package namestore

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/unveil/unveil-bridge/internal/blob"
)

// ErrNotFound is returned when an operation targets an entry that does not
// exist.
var ErrNotFound = errors.New("no entry for handle")

// ErrClosed is returned by writes issued after the store has been closed.
// Resolutions in flight at shutdown run into this; their session still sees
// the result, only the persist is lost.
var ErrClosed = errors.New("name store is closed")

// Store owns the persistent (origin, handle) → display name mapping. Reads go
// straight to the blob store; every write is funnelled through a single
// ordered writer goroutine. The backing store only offers whole-origin
// get/set, so the writer's strict FIFO is what keeps one read-modify-write
// cycle from clobbering another.
type Store struct {
	blobs   blob.Store[Entry]
	writes  chan writeOp
	stopped chan struct{}

	// mu guards the writes channel against Close: senders hold the read
	// lock, so the channel is only closed once no send is in progress.
	mu     sync.RWMutex
	closed bool

	now func() time.Time
}

type writeOp struct {
	ctx    context.Context
	origin string
	mutate func(entries map[string]Entry) error
	reply  chan error
}

// New creates a Store over the given blob store and starts its writer.
func New(blobs blob.Store[Entry]) *Store {
	s := &Store{
		blobs:   blobs,
		writes:  make(chan writeOp),
		stopped: make(chan struct{}),
		now:     time.Now,
	}
	go s.runWriter()
	return s
}

// runWriter is the single-writer actor: it applies queued mutations one at a
// time, in arrival order, each as a full read-modify-write of the origin's
// document. An origin left with zero handles is deleted rather than written.
func (s *Store) runWriter() {
	defer close(s.stopped)

	for op := range s.writes {
		op.reply <- s.applyWrite(op)
	}
}

func (s *Store) applyWrite(op writeOp) error {
	entries, _, err := s.blobs.Get(op.ctx, op.origin)
	if err != nil {
		return fmt.Errorf("reading origin %q: %w", op.origin, err)
	}
	if entries == nil {
		entries = make(map[string]Entry)
	}

	if err := op.mutate(entries); err != nil {
		return err
	}

	if len(entries) == 0 {
		if err := s.blobs.Delete(op.ctx, op.origin); err != nil {
			return fmt.Errorf("removing empty origin %q: %w", op.origin, err)
		}
		return nil
	}

	if err := s.blobs.Set(op.ctx, op.origin, entries); err != nil {
		return fmt.Errorf("writing origin %q: %w", op.origin, err)
	}
	return nil
}

func (s *Store) write(ctx context.Context, origin string, mutate func(map[string]Entry) error) error {
	op := writeOp{
		ctx:    ctx,
		origin: origin,
		mutate: mutate,
		reply:  make(chan error, 1),
	}

	s.mu.RLock()
	if s.closed {
		s.mu.RUnlock()
		return ErrClosed
	}
	s.writes <- op
	s.mu.RUnlock()

	return <-op.reply
}

// Get retrieves the entry for (origin, handle).
func (s *Store) Get(ctx context.Context, origin, handle string) (Entry, bool, error) {
	entries, found, err := s.blobs.Get(ctx, origin)
	if err != nil {
		return Entry{}, false, fmt.Errorf("reading origin %q: %w", origin, err)
	}
	if !found {
		return Entry{}, false, nil
	}

	entry, ok := entries[handle]
	return entry, ok, nil
}

// Entries returns all entries for an origin. An unknown origin yields an
// empty map.
func (s *Store) Entries(ctx context.Context, origin string) (map[string]Entry, error) {
	entries, found, err := s.blobs.Get(ctx, origin)
	if err != nil {
		return nil, fmt.Errorf("reading origin %q: %w", origin, err)
	}
	if !found {
		return map[string]Entry{}, nil
	}
	return entries, nil
}

// Put records a resolution result. An empty or whitespace-only display name
// is stored as the handle itself. A previously pinned entry stays pinned
// regardless of the pinned argument; pin state is only changed explicitly
// via Pin or Override. Writing may evict the origin's oldest non-pinned
// entries to honour the soft cap.
func (s *Store) Put(ctx context.Context, origin, handle, displayName string, pinned bool) error {
	return s.write(ctx, origin, func(entries map[string]Entry) error {
		existing, ok := entries[handle]
		entries[handle] = Entry{
			DisplayName: normalizeName(displayName, handle),
			ResolvedAt:  s.now().UnixMilli(),
			Pinned:      pinned || (ok && existing.Pinned),
		}

		if evicted := evictOverCap(entries); evicted > 0 {
			log.Debug().
				Str("origin", origin).
				Int("evicted", evicted).
				Msg("origin over soft cap, evicted oldest entries")
		}
		return nil
	})
}

// Override records a user-supplied display name, pinning the entry so it is
// exempt from expiry and eviction. The display name must not be blank.
func (s *Store) Override(ctx context.Context, origin, handle, displayName string) error {
	name := strings.TrimSpace(displayName)
	if name == "" {
		return fmt.Errorf("display name for %q must not be blank", handle)
	}

	return s.write(ctx, origin, func(entries map[string]Entry) error {
		entries[handle] = Entry{
			DisplayName: name,
			ResolvedAt:  s.now().UnixMilli(),
			Pinned:      true,
		}
		return nil
	})
}

// Pin sets or clears the pin flag on an existing entry without touching the
// display name or resolution time.
func (s *Store) Pin(ctx context.Context, origin, handle string, pinned bool) error {
	return s.write(ctx, origin, func(entries map[string]Entry) error {
		entry, ok := entries[handle]
		if !ok {
			return fmt.Errorf("pinning %q: %w", handle, ErrNotFound)
		}
		entry.Pinned = pinned
		entries[handle] = entry
		return nil
	})
}

// Remove deletes the entry for (origin, handle). The origin document itself
// is removed when its last handle goes.
func (s *Store) Remove(ctx context.Context, origin, handle string) error {
	return s.write(ctx, origin, func(entries map[string]Entry) error {
		if _, ok := entries[handle]; !ok {
			return fmt.Errorf("removing %q: %w", handle, ErrNotFound)
		}
		delete(entries, handle)
		return nil
	})
}

// Sweep removes non-pinned entries older than the retention window, repairs
// blank display names, and drops origins left without entries. It returns
// the number of mutations made. Per-origin storage failures are logged and
// skipped; the sweep is best-effort and idempotent.
func (s *Store) Sweep(ctx context.Context) (int, error) {
	origins, err := s.blobs.Origins(ctx)
	if err != nil {
		return 0, fmt.Errorf("listing origins: %w", err)
	}

	now := s.now()
	total := 0

	for _, origin := range origins {
		removed, repaired := 0, 0

		err := s.write(ctx, origin, func(entries map[string]Entry) error {
			for handle, entry := range entries {
				if !entry.Pinned && entry.Age(now) > RetentionWindow {
					delete(entries, handle)
					removed++
					continue
				}
				if strings.TrimSpace(entry.DisplayName) == "" {
					entry.DisplayName = handle
					entries[handle] = entry
					repaired++
				}
			}
			return nil
		})
		if err != nil {
			log.Warn().Err(err).Str("origin", origin).Msg("sweep: origin skipped")
			continue
		}

		total += removed + repaired
	}

	return total, nil
}

// Close stops the writer and releases the backing store. Writes issued
// after Close fail with ErrClosed. Close is idempotent.
func (s *Store) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	close(s.writes)
	<-s.stopped
	return s.blobs.Close()
}

// evictOverCap trims an origin's document to the soft cap, removing the
// oldest non-pinned entries first. Pinned entries are never evicted, even
// when that leaves the origin over cap.
func evictOverCap(entries map[string]Entry) int {
	over := len(entries) - OriginSoftCap
	if over <= 0 {
		return 0
	}

	type aged struct {
		handle     string
		resolvedAt int64
	}

	candidates := make([]aged, 0, len(entries))
	for handle, entry := range entries {
		if !entry.Pinned {
			candidates = append(candidates, aged{handle, entry.ResolvedAt})
		}
	}
	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].resolvedAt < candidates[j].resolvedAt
	})

	evicted := 0
	for _, c := range candidates {
		if len(entries) <= OriginSoftCap {
			break
		}
		delete(entries, c.handle)
		evicted++
	}
	return evicted
}
