package namestore

import (
	"strings"
	"time"
)

const (
	// RetentionWindow is how long a non-pinned entry remains fresh. Entries
	// older than this are re-resolved on demand and removed by the sweep.
	RetentionWindow = 7 * 24 * time.Hour

	// OriginSoftCap is the soft limit on handles per origin. Eviction removes
	// the oldest non-pinned entries beyond this count. Pinned entries never
	// count against eviction, so an origin with enough pinned entries can sit
	// permanently over the cap; that is accepted behaviour.
	OriginSoftCap = 1000
)

// Entry is a resolved display name for one (origin, handle) pair. The JSON
// shape matches the persisted blob layout: timestamp is epoch milliseconds
// and the pin flag is stored as "noExpire".
type Entry struct {
	DisplayName string `json:"displayName"`
	ResolvedAt  int64  `json:"timestamp"`
	Pinned      bool   `json:"noExpire"`
}

// Fresh reports whether the entry can be served without re-resolution.
// Pinned entries are fresh at any age.
func (e Entry) Fresh(now time.Time) bool {
	return e.Pinned || e.Age(now) <= RetentionWindow
}

// Age is the time elapsed since the entry was resolved.
func (e Entry) Age(now time.Time) time.Duration {
	return now.Sub(time.UnixMilli(e.ResolvedAt))
}

// normalizeName applies the stored-name invariant: a display name is never
// empty or whitespace-only; such a resolution stores the handle itself.
func normalizeName(displayName, handle string) string {
	name := strings.TrimSpace(displayName)
	if name == "" {
		return handle
	}
	return name
}
