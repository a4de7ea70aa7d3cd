// Package resolve coordinates display-name resolution: it deduplicates
// concurrent requests per (origin, handle), funnels results into the name
// store, and notifies every waiter exactly once, in registration order.
package resolve

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/unveil/unveil-bridge/internal/lookup"
	"github.com/unveil/unveil-bridge/internal/namestore"
	"golang.org/x/sync/singleflight"
)

// Coordinator owns the name store and the pending-resolution registry. At
// most one external lookup is in flight per (origin, handle); every caller
// registered while a lookup is pending shares its outcome.
type Coordinator struct {
	store  *namestore.Store
	lookup lookup.Func

	mu      sync.Mutex
	pending map[string]*pendingResolution

	flight singleflight.Group
	now    func() time.Time
}

// pendingResolution tracks one in-flight lookup and its waiters, notified
// FIFO on completion.
type pendingResolution struct {
	waiters []func(displayName string)
}

// NewCoordinator creates a Coordinator over the given store and lookup
// collaborator.
func NewCoordinator(store *namestore.Store, fn lookup.Func) *Coordinator {
	return &Coordinator{
		store:   store,
		lookup:  fn,
		pending: make(map[string]*pendingResolution),
		now:     time.Now,
	}
}

// Store exposes the coordinator's name store for read paths and the user
// override surface. All resolution writes stay inside the coordinator.
func (c *Coordinator) Store() *namestore.Store {
	return c.store
}

func pendingKey(origin, handle string) string {
	return origin + "\x00" + handle
}

// Resolve supplies the display name for (origin, handle) to fn. A fresh
// cache entry answers synchronously before Resolve returns. Otherwise fn is
// queued: the first waiter starts the single external lookup, later waiters
// ride along, and all are notified in registration order once it completes.
// A lookup in flight always runs to completion, even if the interested
// elements are gone by then.
func (c *Coordinator) Resolve(ctx context.Context, origin, handle string, fn func(displayName string)) {
	entry, found, err := c.store.Get(ctx, origin, handle)
	if err != nil {
		// storage is best-effort: resolve for this session regardless
		log.Warn().Err(err).Str("origin", origin).Str("handle", handle).
			Msg("name store read failed, resolving without cache")
	}
	if found && entry.Fresh(c.now()) {
		fn(entry.DisplayName)
		return
	}

	key := pendingKey(origin, handle)

	c.mu.Lock()
	if p, inflight := c.pending[key]; inflight {
		p.waiters = append(p.waiters, fn)
		c.mu.Unlock()
		return
	}
	c.pending[key] = &pendingResolution{waiters: []func(string){fn}}
	c.mu.Unlock()

	// the flight outlives the triggering request's context deliberately
	bg := context.WithoutCancel(ctx)
	go func() {
		displayName := c.fetch(bg, origin, handle)
		if _, err := c.Release(bg, origin, handle, displayName); err != nil {
			log.Warn().Err(err).Str("origin", origin).Str("handle", handle).
				Msg("name store write failed, result served from session only")
		}
	}()
}

// fetch performs the external lookup, deduplicated through the singleflight
// group, applying the fallback policy: any failure or empty result yields
// the handle itself.
func (c *Coordinator) fetch(ctx context.Context, origin, handle string) string {
	name, err, _ := c.flight.Do(pendingKey(origin, handle), func() (interface{}, error) {
		return c.lookup(ctx, origin, handle)
	})
	if err != nil {
		log.Info().Err(err).Str("origin", origin).Str("handle", handle).
			Msg("lookup failed, falling back to handle")
		return handle
	}

	displayName := strings.TrimSpace(name.(string))
	if displayName == "" {
		return handle
	}
	return displayName
}

// Acquire marks (origin, handle) in flight. It reports false when a fresh
// cache entry makes a lookup unnecessary or another lookup already holds the
// pair.
func (c *Coordinator) Acquire(ctx context.Context, origin, handle string) (bool, error) {
	entry, found, err := c.store.Get(ctx, origin, handle)
	if err != nil {
		return false, err
	}
	if found && entry.Fresh(c.now()) {
		return false, nil
	}

	key := pendingKey(origin, handle)

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, inflight := c.pending[key]; inflight {
		return false, nil
	}
	c.pending[key] = &pendingResolution{}
	return true, nil
}

// Release persists the display name, clears the in-flight state and notifies
// every waiter in registration order. It always does all three, regardless
// of whether the caller previously acquired the pair; the returned flag
// reports whether the persist succeeded.
func (c *Coordinator) Release(ctx context.Context, origin, handle, displayName string) (bool, error) {
	err := c.store.Put(ctx, origin, handle, displayName, false)

	c.mu.Lock()
	p := c.pending[pendingKey(origin, handle)]
	delete(c.pending, pendingKey(origin, handle))
	c.mu.Unlock()

	if displayName == "" {
		displayName = handle
	}

	if p != nil {
		for _, waiter := range p.waiters {
			waiter(displayName)
		}
	}

	if err != nil {
		return false, err
	}
	return true, nil
}
