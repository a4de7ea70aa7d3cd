package namestore

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/unveil/unveil-bridge/internal/blob"
)

var testNow = time.Date(2025, time.March, 14, 9, 26, 53, 0, time.UTC)

func newTestStore(t *testing.T) *Store {
	t.Helper()

	blobs, err := blob.NewMemory[Entry](1000)
	require.NoError(t, err)

	store := New(blobs)
	store.now = func() time.Time { return testNow }
	t.Cleanup(func() { _ = store.Close() })

	return store
}

func TestPutAndGet(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	err := store.Put(ctx, "example.com", "testuser", "Test User", false)
	require.NoError(t, err)

	entry, found, err := store.Get(ctx, "example.com", "testuser")
	require.NoError(t, err)
	require.True(t, found)

	assert.Equal(t, "Test User", entry.DisplayName)
	assert.Equal(t, testNow.UnixMilli(), entry.ResolvedAt)
	assert.False(t, entry.Pinned)
}

func TestPut_BlankNameFallsBackToHandle(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	err := store.Put(ctx, "example.com", "testuser", "   ", false)
	require.NoError(t, err)

	entry, found, err := store.Get(ctx, "example.com", "testuser")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "testuser", entry.DisplayName)
}

func TestPut_PreservesExistingPin(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	require.NoError(t, store.Override(ctx, "example.com", "testuser", "Chosen Name"))

	// A later non-pinned resolution must not clear the pin.
	require.NoError(t, store.Put(ctx, "example.com", "testuser", "Resolved Name", false))

	entry, _, err := store.Get(ctx, "example.com", "testuser")
	require.NoError(t, err)
	assert.True(t, entry.Pinned)
	assert.Equal(t, "Resolved Name", entry.DisplayName)
}

func TestOverride_RejectsBlankName(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	err := store.Override(ctx, "example.com", "testuser", "  ")
	require.Error(t, err)
}

func TestPin_TogglesWithoutTouchingName(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	require.NoError(t, store.Put(ctx, "example.com", "testuser", "Test User", false))
	require.NoError(t, store.Pin(ctx, "example.com", "testuser", true))

	entry, _, err := store.Get(ctx, "example.com", "testuser")
	require.NoError(t, err)
	assert.True(t, entry.Pinned)
	assert.Equal(t, "Test User", entry.DisplayName)

	require.NoError(t, store.Pin(ctx, "example.com", "testuser", false))
	entry, _, err = store.Get(ctx, "example.com", "testuser")
	require.NoError(t, err)
	assert.False(t, entry.Pinned)
}

func TestPin_UnknownHandle(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	err := store.Pin(ctx, "example.com", "nobody", true)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestRemove_DropsEmptyOrigin(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	require.NoError(t, store.Put(ctx, "example.com", "testuser", "Test User", false))
	require.NoError(t, store.Remove(ctx, "example.com", "testuser"))

	_, found, err := store.Get(ctx, "example.com", "testuser")
	require.NoError(t, err)
	assert.False(t, found)

	origins, err := store.blobs.Origins(ctx)
	require.NoError(t, err)
	assert.Empty(t, origins)
}

func TestRemove_UnknownHandle(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	err := store.Remove(ctx, "example.com", "nobody")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestSweep_RemovesExpiredNonPinnedOnly(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	stale := testNow.Add(-RetentionWindow - time.Hour).UnixMilli()
	ancient := testNow.Add(-90 * 24 * time.Hour).UnixMilli()
	recent := testNow.Add(-time.Hour).UnixMilli()

	seed := map[string]Entry{
		"stale":       {DisplayName: "Stale", ResolvedAt: stale},
		"pinned-old":  {DisplayName: "Kept", ResolvedAt: ancient, Pinned: true},
		"recent":      {DisplayName: "Recent", ResolvedAt: recent},
		"blank-fresh": {DisplayName: "  ", ResolvedAt: recent},
	}
	require.NoError(t, store.blobs.Set(ctx, "example.com", seed))

	removed, err := store.Sweep(ctx)
	require.NoError(t, err)

	// one expiry removal plus one blank-name repair
	assert.Equal(t, 2, removed)

	entries, err := store.Entries(ctx, "example.com")
	require.NoError(t, err)

	assert.NotContains(t, entries, "stale")
	assert.Contains(t, entries, "pinned-old")
	assert.Contains(t, entries, "recent")
	assert.Equal(t, "blank-fresh", entries["blank-fresh"].DisplayName)
}

func TestSweep_DropsEmptiedOrigin(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	stale := testNow.Add(-RetentionWindow - time.Hour).UnixMilli()
	require.NoError(t, store.blobs.Set(ctx, "example.com", map[string]Entry{
		"stale": {DisplayName: "Stale", ResolvedAt: stale},
	}))

	removed, err := store.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	origins, err := store.blobs.Origins(ctx)
	require.NoError(t, err)
	assert.Empty(t, origins)
}

func TestSweep_Idempotent(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	require.NoError(t, store.Put(ctx, "example.com", "testuser", "Test User", false))

	removed, err := store.Sweep(ctx)
	require.NoError(t, err)
	assert.Zero(t, removed)

	removed, err = store.Sweep(ctx)
	require.NoError(t, err)
	assert.Zero(t, removed)
}

func TestEvict_OldestNonPinnedFirst(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	seed := make(map[string]Entry, OriginSoftCap+1)
	for i := 0; i < OriginSoftCap-1; i++ {
		seed[fmt.Sprintf("user-%04d", i)] = Entry{
			DisplayName: "User",
			ResolvedAt:  testNow.Add(-time.Duration(i) * time.Minute).UnixMilli(),
		}
	}
	// the oldest entries: one pinned, one not
	seed["oldest-pinned"] = Entry{
		DisplayName: "Kept",
		ResolvedAt:  testNow.Add(-48 * time.Hour).UnixMilli(),
		Pinned:      true,
	}
	seed["oldest-plain"] = Entry{
		DisplayName: "Gone",
		ResolvedAt:  testNow.Add(-72 * time.Hour).UnixMilli(),
	}
	require.Len(t, seed, OriginSoftCap+1)
	require.NoError(t, store.blobs.Set(ctx, "example.com", seed))

	// pushes the origin to cap+2; two evictions bring it back to cap
	require.NoError(t, store.Put(ctx, "example.com", "newcomer", "New User", false))

	entries, err := store.Entries(ctx, "example.com")
	require.NoError(t, err)

	assert.Len(t, entries, OriginSoftCap)
	assert.Contains(t, entries, "newcomer")
	assert.Contains(t, entries, "oldest-pinned")
	assert.NotContains(t, entries, "oldest-plain")
}

func TestEntries_UnknownOrigin(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	entries, err := store.Entries(ctx, "nowhere.example")
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestClose_RejectsLaterWrites(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	require.NoError(t, store.Put(ctx, "example.com", "testuser", "Test User", false))
	require.NoError(t, store.Close())

	err := store.Put(ctx, "example.com", "testuser", "Too Late", false)
	assert.ErrorIs(t, err, ErrClosed)

	// idempotent
	assert.NoError(t, store.Close())
}

func TestClose_WithInFlightWrites(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	// writers racing Close must either complete or fail with ErrClosed
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				handle := fmt.Sprintf("user-%d-%d", i, j)
				err := store.Put(ctx, "example.com", handle, "Name", false)
				if err != nil {
					assert.ErrorIs(t, err, ErrClosed)
					return
				}
			}
		}()
	}

	require.NoError(t, store.Close())
	wg.Wait()
}
