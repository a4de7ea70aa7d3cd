// Package audit emits one structured log event per API request, capturing
// the request identity and what the handler did with it. The entry rides the
// request context so handlers can annotate it as they work.
package audit

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"github.com/justinas/alice"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Level is the level audit events are written at. Audit events are part of
// the service's output, not diagnostics, so they sit above Error.
const Level = zerolog.Level(9)

type keyType struct{}

var contextKey = keyType{}

// Entry accumulates the details of one request. Fields may be set from
// multiple resolution goroutines; use the mutating methods rather than
// writing fields directly from handlers that fan out.
type Entry struct {
	mu sync.Mutex

	Method    string
	Path      string
	Origin    string
	SourceIP  string
	UserAgent string
	Status    int
	Error     string

	// Handles lists the account handles touched by this request, in the
	// order they were recorded.
	Handles []string
}

// Context returns a context carrying an audit entry, creating one when the
// context has none. The entry is returned alongside.
func Context(ctx context.Context) (context.Context, *Entry) {
	if entry, ok := ctx.Value(contextKey).(*Entry); ok {
		return ctx, entry
	}

	entry := &Entry{}
	return context.WithValue(ctx, contextKey, entry), entry
}

// Log returns the entry carried by the context, or a discarded placeholder
// when the middleware is not in the chain.
func Log(ctx context.Context) *Entry {
	if entry, ok := ctx.Value(contextKey).(*Entry); ok {
		return entry
	}
	return &Entry{}
}

// SetOrigin records the origin the request operates on.
func (e *Entry) SetOrigin(origin string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.Origin = origin
}

// AddHandle records a handle touched by the request.
func (e *Entry) AddHandle(handle string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.Handles = append(e.Handles, handle)
}

// SetError records a failure for the audit trail, appending when an error is
// already present.
func (e *Entry) SetError(msg string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.Error == "" {
		e.Error = msg
		return
	}
	e.Error = e.Error + "; " + msg
}

// Begin populates the entry from the incoming request.
func (e *Entry) Begin(r *http.Request) {
	e.Method = r.Method
	e.Path = r.URL.Path
	e.SourceIP = r.RemoteAddr
	e.UserAgent = r.UserAgent()
	e.Status = http.StatusOK
}

// End returns the function that writes the audit event. Deferred by the
// middleware so the event is written even when the handler panics.
func (e *Entry) End(ctx context.Context) func() {
	return func() {
		if r := recover(); r != nil {
			e.SetError(fmt.Sprintf("panic: %v", r))
			e.Status = http.StatusInternalServerError
			defer panic(r)
		}

		e.mu.Lock()
		defer e.mu.Unlock()

		ev := log.Ctx(ctx).WithLevel(Level).
			Str("method", e.Method).
			Str("path", e.Path).
			Str("sourceIP", e.SourceIP).
			Str("userAgent", e.UserAgent).
			Int("status", e.Status)

		if e.Origin != "" {
			ev = ev.Str("origin", e.Origin)
		}
		if len(e.Handles) > 0 {
			ev = ev.Strs("handles", e.Handles)
		}
		if e.Error != "" {
			ev = ev.Str("error", e.Error)
		}

		ev.Msg("audit")
	}
}

// statusRecorder captures the status code written by the handler.
type statusRecorder struct {
	http.ResponseWriter
	entry *Entry
}

func (w *statusRecorder) WriteHeader(status int) {
	w.entry.Status = status
	w.ResponseWriter.WriteHeader(status)
}

// Middleware creates the audit middleware: it seeds the request context with
// an entry and writes the audit event when the request completes.
func Middleware() alice.Constructor {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, entry := Context(r.Context())

			entry.Begin(r)
			defer entry.End(ctx)()

			next.ServeHTTP(
				&statusRecorder{ResponseWriter: w, entry: entry},
				r.WithContext(ctx),
			)
		})
	}
}
