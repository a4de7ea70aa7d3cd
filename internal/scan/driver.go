// Package scan drives a full annotation pass: it runs every locator over a
// parsed document, filters out boundaries already marked for their handle,
// and hands the surviving candidates to a resolution session.
package scan

import (
	"context"

	"github.com/rs/zerolog/log"
	"github.com/unveil/unveil-bridge/internal/extract"
	"github.com/unveil/unveil-bridge/internal/page"
	"github.com/unveil/unveil-bridge/internal/resolve"
	"github.com/unveil/unveil-bridge/internal/rules"
	"golang.org/x/net/html"
)

// Driver runs annotation passes against one origin. It is cheap to construct
// per request; the coordinator and rule store behind it are shared.
type Driver struct {
	coord    *resolve.Coordinator
	rules    *rules.Store
	locators []extract.Locator
}

// NewDriver creates a driver over the shared coordinator and rule store,
// using the full locator set.
func NewDriver(coord *resolve.Coordinator, ruleStore *rules.Store) *Driver {
	return &Driver{
		coord:    coord,
		rules:    ruleStore,
		locators: extract.All(),
	}
}

// Document annotates a whole parsed document for origin and blocks until
// every rewrite has been applied or ctx is done. All tree access happens on
// the calling goroutine: lookups complete elsewhere, but their rewrites are
// queued and run inside the session's wait. Rewrites are idempotent: marked
// boundaries are skipped, so feeding an annotated document back through
// leaves it unchanged.
func (d *Driver) Document(ctx context.Context, origin string, doc *html.Node) error {
	session := resolve.NewSession(d.coord, origin)
	d.scan(ctx, session, doc)
	return session.Wait(ctx)
}

// Batch annotates a set of subtrees in one session, so a handle shared
// between them resolves once. It blocks like Document.
func (d *Driver) Batch(ctx context.Context, origin string, roots ...*html.Node) error {
	session := resolve.NewSession(d.coord, origin)
	for _, root := range roots {
		d.scan(ctx, session, root)
	}
	return session.Wait(ctx)
}

func (d *Driver) scan(ctx context.Context, session *resolve.Session, root *html.Node) {
	r := d.rules.Current()

	for _, locator := range d.locators {
		candidates := locator.Locate(root, r)

		skipped := 0
		for _, candidate := range candidates {
			if page.IsProcessed(candidate.Boundary, candidate.Handle) {
				skipped++
				continue
			}
			session.Want(ctx, candidate.Handle, candidate.Apply)
		}

		if len(candidates) > 0 {
			log.Debug().
				Str("origin", session.Origin()).
				Str("locator", locator.Name()).
				Int("candidates", len(candidates)).
				Int("skipped", skipped).
				Msg("scan: candidates located")
		}
	}
}
