// Package metacache holds the three small TTL-indexed lookup caches that sit
// in front of origin round-trips: resource metadata, redirect resolution,
// and segment-cache preload hints.
package metacache

import (
	"time"

	"github.com/streamhub/videoproxy/internal/ttlstore"
)

// ObjectMeta is what C2 remembers about an origin resource so a HEAD round-trip
// can be skipped on subsequent requests.
type ObjectMeta struct {
	ContentLength int64
	ContentType   string
	LastModified  string
	ETag          string
}

// MetadataCache is C2: origin URL -> ObjectMeta.
type MetadataCache struct {
	store *ttlstore.Store[ObjectMeta]
}

func NewMetadataCache(ttl time.Duration) *MetadataCache {
	return &MetadataCache{store: ttlstore.New[ObjectMeta](ttl)}
}

func (c *MetadataCache) Get(url string) (ObjectMeta, bool) { return c.store.Get(url) }
func (c *MetadataCache) Set(url string, meta ObjectMeta)   { c.store.Set(url, meta) }
func (c *MetadataCache) Len() int                           { return c.store.Len() }
func (c *MetadataCache) Stop()                              { c.store.Stop() }

// RedirectCache is C3: origin URL -> the resolved URL it last redirected to.
type RedirectCache struct {
	store *ttlstore.Store[string]
}

func NewRedirectCache(ttl time.Duration) *RedirectCache {
	return &RedirectCache{store: ttlstore.New[string](ttl)}
}

func (c *RedirectCache) Get(url string) (string, bool) { return c.store.Get(url) }
func (c *RedirectCache) Set(url, resolved string)      { c.store.Set(url, resolved) }
func (c *RedirectCache) Len() int                       { return c.store.Len() }
func (c *RedirectCache) Stop()                          { c.store.Stop() }

// PreloadCache records that a playhead-ahead prefetch was issued for a URL, so
// MarkPending can report a duplicate preload within the TTL window.
type PreloadCache struct {
	store *ttlstore.Store[time.Time]
}

func NewPreloadCache(ttl time.Duration) *PreloadCache {
	return &PreloadCache{store: ttlstore.New[time.Time](ttl)}
}

// MarkPending records a preload in flight for url and reports whether one was
// already pending (in which case the caller should skip issuing another).
func (c *PreloadCache) MarkPending(url string, now time.Time) (alreadyPending bool) {
	if _, ok := c.store.Get(url); ok {
		return true
	}
	c.store.Set(url, now)
	return false
}

func (c *PreloadCache) Len() int { return c.store.Len() }
func (c *PreloadCache) Stop()    { c.store.Stop() }
