package resolve

import (
	"context"
	"sync"
)

// Table is a per-session shadow of resolved names. It answers repeat handles
// within one document without touching the shared store again and keeps a
// session's view stable even if the store evicts mid-pass.
type Table struct {
	mu    sync.Mutex
	names map[string]string
}

// NewTable creates an empty session table.
func NewTable() *Table {
	return &Table{names: make(map[string]string)}
}

// Lookup reports the display name recorded for handle in this session.
func (t *Table) Lookup(handle string) (string, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	name, ok := t.names[handle]
	return name, ok
}

// Record stores the session-local resolution for handle.
func (t *Table) Record(handle, displayName string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.names[handle] = displayName
}

// Session ties one document pass to an origin. Resolutions complete on
// lookup goroutines, but their apply callbacks do not run there: each is
// queued and executed by Wait on the goroutine driving the pass, so the
// document tree is never read or written from more than one goroutine.
type Session struct {
	origin string
	coord  *Coordinator
	table  *Table

	mu      sync.Mutex
	queue   []func()
	pending int
	ready   chan struct{}
}

// NewSession starts a resolution session for origin.
func NewSession(coord *Coordinator, origin string) *Session {
	return &Session{
		origin: origin,
		coord:  coord,
		table:  NewTable(),
		ready:  make(chan struct{}, 1),
	}
}

// Origin reports the origin this session resolves against.
func (s *Session) Origin() string {
	return s.origin
}

// Want requests the display name for handle and queues apply with the
// result. Queued callbacks only ever run inside Wait, on the goroutine
// calling it, so scans can keep walking the tree while lookups complete.
func (s *Session) Want(ctx context.Context, handle string, apply func(displayName string)) {
	s.mu.Lock()
	s.pending++
	s.mu.Unlock()

	if name, ok := s.table.Lookup(handle); ok {
		s.enqueue(func() { apply(name) })
		return
	}

	s.coord.Resolve(ctx, s.origin, handle, func(displayName string) {
		s.table.Record(handle, displayName)
		s.enqueue(func() { apply(displayName) })
	})
}

func (s *Session) enqueue(fn func()) {
	s.mu.Lock()
	s.queue = append(s.queue, fn)
	s.mu.Unlock()

	select {
	case s.ready <- struct{}{}:
	default:
	}
}

// Wait runs queued callbacks until every request registered through Want
// has been applied, or the context is done. Outstanding lookups keep running
// on cancellation; only the drain is abandoned.
func (s *Session) Wait(ctx context.Context) error {
	for {
		s.mu.Lock()
		batch := s.queue
		s.queue = nil
		s.mu.Unlock()

		for _, fn := range batch {
			fn()
		}

		s.mu.Lock()
		s.pending -= len(batch)
		done := s.pending == 0 && len(s.queue) == 0
		s.mu.Unlock()

		if done {
			return nil
		}

		select {
		case <-s.ready:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
