package scan

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/unveil/unveil-bridge/internal/blob"
	"github.com/unveil/unveil-bridge/internal/namestore"
	"github.com/unveil/unveil-bridge/internal/resolve"
	"github.com/unveil/unveil-bridge/internal/rules"
	"golang.org/x/net/html"
)

func parse(t *testing.T, fragment string) *html.Node {
	t.Helper()

	doc, err := html.Parse(strings.NewReader(fragment))
	require.NoError(t, err)
	return doc
}

func render(t *testing.T, n *html.Node) string {
	t.Helper()

	var sb strings.Builder
	require.NoError(t, html.Render(&sb, n))
	return sb.String()
}

func testDriver(t *testing.T, fn func(ctx context.Context, origin, handle string) (string, error)) *Driver {
	t.Helper()

	blobs, err := blob.NewMemory[namestore.Entry](100)
	require.NoError(t, err)

	store := namestore.New(blobs)
	t.Cleanup(func() { _ = store.Close() })

	coord := resolve.NewCoordinator(store, fn)
	return NewDriver(coord, rules.NewStore(rules.Default()))
}

func namesFromDirectory(ctx context.Context, origin, handle string) (string, error) {
	names := map[string]string{
		"alice": "Alice Cooper",
		"bob":   "Bob Smith",
	}
	name, ok := names[handle]
	if !ok {
		return "", errors.New("profile not found")
	}
	return name, nil
}

const issuePage = `<div>
<p>Opened by <a href="/alice" data-hovercard-url="/users/alice/hovercard">alice</a></p>
<h1><span class="leading-visual"><img class="avatar" alt="@bob" src="/b.png"></span>bob</h1>
<p>cc <a href="/notifications">notifications</a></p>
</div>`

func TestDocument_AnnotatesAcrossLocators(t *testing.T) {
	ctx := context.Background()
	d := testDriver(t, namesFromDirectory)

	doc := parse(t, issuePage)
	require.NoError(t, d.Document(ctx, "example.com", doc))

	out := render(t, doc)
	assert.Contains(t, out, "Opened by <a")
	assert.Contains(t, out, ">Alice Cooper</a>")
	assert.Contains(t, out, ">Bob Smith</h1>")
	assert.Contains(t, out, `alt="@Bob Smith"`)
	// reserved navigation link stays untouched
	assert.Contains(t, out, ">notifications</a>")
}

func TestDocument_SecondPassIsByteIdentical(t *testing.T) {
	ctx := context.Background()

	lookups := atomic.Int32{}
	d := testDriver(t, func(ctx context.Context, origin, handle string) (string, error) {
		lookups.Add(1)
		return namesFromDirectory(ctx, origin, handle)
	})

	doc := parse(t, issuePage)
	require.NoError(t, d.Document(ctx, "example.com", doc))
	first := render(t, doc)
	firstLookups := lookups.Load()

	require.NoError(t, d.Document(ctx, "example.com", doc))
	assert.Equal(t, first, render(t, doc))
	assert.Equal(t, firstLookups, lookups.Load(), "marked boundaries must not resolve again")
}

func TestDocument_ReparseOfAnnotatedOutputIsStable(t *testing.T) {
	ctx := context.Background()
	d := testDriver(t, namesFromDirectory)

	doc := parse(t, issuePage)
	require.NoError(t, d.Document(ctx, "example.com", doc))
	annotated := render(t, doc)

	// markers survive serialization, so a fresh parse is still a no-op
	redoc := parse(t, annotated)
	require.NoError(t, d.Document(ctx, "example.com", redoc))
	assert.Equal(t, annotated, render(t, redoc))
}

func TestDocument_FailedLookupLeavesHandleText(t *testing.T) {
	ctx := context.Background()

	lookups := atomic.Int32{}
	d := testDriver(t, func(ctx context.Context, origin, handle string) (string, error) {
		lookups.Add(1)
		return "", errors.New("upstream 503")
	})

	doc := parse(t, `<p><a href="/ghost" data-hovercard-url="/users/ghost/hovercard">ghost</a></p>`)
	require.NoError(t, d.Document(ctx, "example.com", doc))

	out := render(t, doc)
	assert.Contains(t, out, ">ghost</a>")

	// the fallback is cached, so a rescan does not hit the upstream again
	require.NoError(t, d.Document(ctx, "example.com", doc))
	assert.Equal(t, out, render(t, doc))
	assert.Equal(t, int32(1), lookups.Load())
}

func TestDocument_ResolutionCompletingMidScan(t *testing.T) {
	ctx := context.Background()

	// lookups finish while later locators are still walking the tree; the
	// rewrites must wait for the pass rather than race it
	d := testDriver(t, func(ctx context.Context, origin, handle string) (string, error) {
		time.Sleep(time.Millisecond)
		return "Name for " + handle, nil
	})

	var sb strings.Builder
	sb.WriteString("<div>")
	for i := 0; i < 200; i++ {
		fmt.Fprintf(&sb,
			`<p><a href="/user-%d" data-hovercard-url="/users/user-%d/hovercard">user-%d</a></p>`,
			i, i, i)
	}
	sb.WriteString(`<table><tr><td>` +
		`<img class="avatar" alt="@user-0" src="a.png"/>` +
		`<span>user-0</span>` +
		`</td></tr></table>`)
	sb.WriteString("</div>")

	doc := parse(t, sb.String())
	require.NoError(t, d.Document(ctx, "example.com", doc))

	out := render(t, doc)
	assert.Contains(t, out, ">Name for user-0</a>")
	assert.Contains(t, out, ">Name for user-199</a>")
	assert.Contains(t, out, "<span>Name for user-0</span>")
	assert.NotContains(t, out, ">user-42<")

	// and the result is still idempotent
	require.NoError(t, d.Document(ctx, "example.com", doc))
	assert.Equal(t, out, render(t, doc))
}

func TestBatch_SharedHandleResolvesOnce(t *testing.T) {
	ctx := context.Background()

	lookups := atomic.Int32{}
	d := testDriver(t, func(ctx context.Context, origin, handle string) (string, error) {
		lookups.Add(1)
		return "Alice Cooper", nil
	})

	a := parse(t, `<p><a href="/alice" data-hovercard-url="/users/alice/hovercard">alice</a></p>`)
	b := parse(t, `<p><a href="/alice" data-hovercard-url="/users/alice/hovercard">alice</a></p>`)
	require.NoError(t, d.Batch(ctx, "example.com", a, b))

	assert.Contains(t, render(t, a), ">Alice Cooper</a>")
	assert.Contains(t, render(t, b), ">Alice Cooper</a>")
	assert.Equal(t, int32(1), lookups.Load())
}
