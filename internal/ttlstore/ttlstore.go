// Package ttlstore provides a small generic wrapper around a TTL-indexed map,
// the same timestamp-indexed lazily-expiring lookup shape used throughout the
// corpus for namespace/registration caches.
package ttlstore

import (
	"time"

	"github.com/jellydator/ttlcache/v3"
)

// Store is a generic TTL-indexed map from key to value. Reads of an expired
// entry behave as if the entry were absent; writes overwrite unconditionally.
type Store[V any] struct {
	cache *ttlcache.Cache[string, V]
	ttl   time.Duration
}

// New builds a Store with the given default TTL. Callers own the returned
// Store's lifetime; call Stop when the process shuts down.
func New[V any](ttl time.Duration) *Store[V] {
	cache := ttlcache.New[string, V](
		ttlcache.WithTTL[string, V](ttl),
		ttlcache.WithDisableTouchOnHit[string, V](),
	)
	go cache.Start()
	return &Store[V]{cache: cache, ttl: ttl}
}

// Get returns the value and true if a live (non-expired) entry exists.
func (s *Store[V]) Get(key string) (V, bool) {
	item := s.cache.Get(key)
	if item == nil {
		var zero V
		return zero, false
	}
	return item.Value(), true
}

// Set overwrites the entry for key, unconditionally, under the store's default TTL.
func (s *Store[V]) Set(key string, value V) {
	s.cache.Set(key, value, ttlcache.DefaultTTL)
}

// Delete removes an entry, used when the underlying origin state is known stale.
func (s *Store[V]) Delete(key string) {
	s.cache.Delete(key)
}

// Len returns the number of live entries currently tracked.
func (s *Store[V]) Len() int {
	return s.cache.Len()
}

// Stop halts the store's background expiry goroutine.
func (s *Store[V]) Stop() {
	s.cache.Stop()
}
