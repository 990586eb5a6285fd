package cache

import (
	"time"

	"github.com/maypok86/otter/v2"
	"github.com/puzpuzpuz/xsync/v3"
)

// PlaylistCache holds fetched playlist bodies keyed by their upstream URL.
// Entry eviction and expiry live in otter; alongside it the cache keeps a
// last-requested timestamp per URL so the background refresher knows which
// playlists are still worth re-fetching after their entries expire.
type PlaylistCache struct {
	entries  *otter.Cache[string, string]  // cached playlist bodies, TTL-bound
	lastSeen *xsync.MapOf[string, time.Time] // URL -> last client request time
	enabled  bool
}

// NewPlaylistCache creates a playlist cache with the given expiration.
// When enabled is false every lookup misses and stores are dropped, which
// keeps call sites free of cache-enabled checks.
func NewPlaylistCache(duration time.Duration, enabled bool) *PlaylistCache {
	return &PlaylistCache{
		entries: otter.Must(&otter.Options[string, string]{
			MaximumSize:      1024,
			ExpiryCalculator: otter.ExpiryWriting[string, string](duration),
		}),
		lastSeen: xsync.NewMapOf[string, time.Time](),
		enabled:  enabled,
	}
}

// Get returns the cached playlist body for a URL, if present and fresh.
func (c *PlaylistCache) Get(url string) (string, bool) {
	if !c.enabled {
		return "", false
	}
	c.lastSeen.Store(url, time.Now())
	return c.entries.GetIfPresent(url)
}

// Set stores a playlist body for a URL.
func (c *PlaylistCache) Set(url, body string) {
	if !c.enabled {
		return
	}
	c.entries.Set(url, body)
}

// Refresh stores a playlist body without touching the last-seen timestamp,
// so background re-fetches don't keep an otherwise idle URL alive forever.
func (c *PlaylistCache) Refresh(url, body string) {
	if !c.enabled {
		return
	}
	c.entries.Set(url, body)
}

// Forget drops a URL from both the entry store and the refresh tracking.
func (c *PlaylistCache) Forget(url string) {
	c.entries.Invalidate(url)
	c.lastSeen.Delete(url)
}

// TrackedURLs returns the URLs clients requested within maxIdle, pruning
// everything older so the refresher stops re-fetching abandoned playlists.
func (c *PlaylistCache) TrackedURLs(maxIdle time.Duration) []string {
	var urls []string
	cutoff := time.Now().Add(-maxIdle)

	c.lastSeen.Range(func(url string, seen time.Time) bool {
		if seen.Before(cutoff) {
			c.lastSeen.Delete(url)
			return true
		}
		urls = append(urls, url)
		return true
	})

	return urls
}

// Len returns the number of currently cached playlist bodies.
func (c *PlaylistCache) Len() int {
	return c.entries.EstimatedSize()
}

// Clear empties the cache and the refresh tracking.
func (c *PlaylistCache) Clear() {
	c.entries.InvalidateAll()
	c.lastSeen.Clear()
}
