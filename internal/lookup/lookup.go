// Package lookup turns a raw account handle into a display name. The rest of
// the system treats this as a swappable collaborator: given (origin, handle),
// return a name or fail. Failures and empty names are handled upstream by
// falling back to the handle itself.
package lookup

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/unveil/unveil-bridge/internal/config"
)

// Func resolves origin + handle to a display name. Implementations must
// return within a bounded time or fail.
type Func func(ctx context.Context, origin, handle string) (string, error)

// WithTimeout bounds every call to the wrapped Func.
func WithTimeout(fn Func, timeout time.Duration) Func {
	return func(ctx context.Context, origin, handle string) (string, error) {
		ctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()

		return fn(ctx, origin, handle)
	}
}

// NewFromConfig builds the configured lookup implementation, bounded by the
// configured timeout.
func NewFromConfig(cfg config.LookupConfig, client *http.Client) (Func, error) {
	var fn Func

	switch cfg.Mode {
	case "scrape":
		fn = NewScraper(client)
	case "github":
		api, err := NewGitHubAPI(client, cfg.GithubAPIURL)
		if err != nil {
			return nil, fmt.Errorf("github lookup configuration failed: %w", err)
		}
		fn = api
	default:
		return nil, fmt.Errorf("invalid lookup mode %q", cfg.Mode)
	}

	return WithTimeout(fn, time.Duration(cfg.TimeoutSeconds)*time.Second), nil
}
