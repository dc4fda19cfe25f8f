// Package segcache implements the segment-aligned byte cache: a fixed-size,
// content-addressed LRU keyed by (url, segment start), evicting in LRU order
// down to a low-water mark whenever an insert would overflow the byte budget.
package segcache

import (
	"container/list"
	"sort"
	"sync"
	"time"
)

// SegmentSize is the default aligned chunk size; callers may override via New.
const SegmentSize = 2 * 1024 * 1024

// Segment is an immutable, SEG-aligned byte block for one resource.
type Segment struct {
	URL   string
	Start int64
	Bytes []byte
}

func (s *Segment) End() int64 { return s.Start + int64(len(s.Bytes)) - 1 }

type key struct {
	url   string
	start int64
}

type entry struct {
	seg        *Segment
	lastAccess time.Time
	elem       *list.Element
}

// Cache is the LRU-evicted segment store, C4.
type Cache struct {
	mu       sync.Mutex
	segSize  int64
	capacity int64
	size     int64

	entries map[key]*entry
	lru     *list.List // front = most recently used

	hits, misses uint64
}

// New builds a Cache with the given byte budget and segment size.
func New(capacity int64, segSize int64) *Cache {
	if segSize <= 0 {
		segSize = SegmentSize
	}
	return &Cache{
		segSize:  segSize,
		capacity: capacity,
		entries:  make(map[key]*entry),
		lru:      list.New(),
	}
}

// AlignDown returns the segment-aligned start containing offset.
func (c *Cache) AlignDown(offset int64) int64 {
	return (offset / c.segSize) * c.segSize
}

// SegmentSize returns the cache's configured segment size.
func (c *Cache) SegmentSize() int64 { return c.segSize }

// Has reports whether a segment containing the interval [start, end] is cached.
func (c *Cache) Has(url string, start, end int64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	segStart := c.AlignDown(start)
	e, ok := c.entries[key{url, segStart}]
	if !ok {
		return false
	}
	return end <= e.seg.End()
}

// GetAligned returns the exact segment at (url, segStart), bumping its LRU position.
func (c *Cache) GetAligned(url string, segStart int64) (*Segment, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key{url, segStart}]
	if !ok {
		c.misses++
		return nil, false
	}
	c.hits++
	e.lastAccess = time.Now()
	c.lru.MoveToFront(e.elem)
	return e.seg, true
}

// Put inserts a new segment, evicting LRU entries down to 0.7*capacity first
// if the insert would overflow the budget. First-writer-wins: if an entry
// already exists at this key, the new bytes are discarded.
func (c *Cache) Put(url string, segStart int64, bytes []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()

	k := key{url, segStart}
	if _, exists := c.entries[k]; exists {
		return
	}

	added := int64(len(bytes))
	if c.capacity > 0 && c.size+added > c.capacity {
		lowWater := int64(float64(c.capacity) * 0.7)
		c.evictTo(lowWater)
	}

	seg := &Segment{URL: url, Start: segStart, Bytes: bytes}
	e := &entry{seg: seg, lastAccess: time.Now()}
	e.elem = c.lru.PushFront(e)
	c.entries[k] = e
	c.size += added
}

// evictTo removes LRU entries until total size <= target. Caller holds c.mu.
func (c *Cache) evictTo(target int64) {
	for c.size > target {
		back := c.lru.Back()
		if back == nil {
			return
		}
		e := back.Value.(*entry)
		c.lru.Remove(back)
		delete(c.entries, key{e.seg.URL, e.seg.Start})
		c.size -= int64(len(e.seg.Bytes))
	}
}

// RecordLookup updates the hit/miss counters backing Stats.HitRate for a
// lookup performed through Coalesce+Assemble, since that pair (not
// GetAligned) is what actually resolves a client request from cache.
func (c *Cache) RecordLookup(hit bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if hit {
		c.hits++
	} else {
		c.misses++
	}
}

// Coalesce returns all cached segments for url whose interval overlaps or is
// contiguous with [start-segSize, end+segSize], sorted by start ascending.
func (c *Cache) Coalesce(url string, start, end int64) []*Segment {
	c.mu.Lock()
	defer c.mu.Unlock()

	lo := start - c.segSize
	hi := end + c.segSize

	var out []*Segment
	for k, e := range c.entries {
		if k.url != url {
			continue
		}
		segEnd := e.seg.End()
		if segEnd < lo || e.seg.Start > hi {
			continue
		}
		out = append(out, e.seg)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Start < out[j].Start })
	return out
}

// Assemble concatenates a prefix of segments that exactly covers [start, end]
// into a single byte slice. Returns false if a gap exists before end is reached.
func Assemble(segments []*Segment, start, end int64) ([]byte, bool) {
	if len(segments) == 0 {
		return nil, false
	}

	out := make([]byte, 0, end-start+1)
	want := start
	for _, seg := range segments {
		if want < seg.Start {
			return nil, false // gap
		}
		if want > seg.End() {
			continue // fully consumed already by an earlier overlapping segment
		}
		offset := want - seg.Start
		avail := seg.Bytes[offset:]
		remaining := end - want + 1
		if int64(len(avail)) >= remaining {
			out = append(out, avail[:remaining]...)
			return out, true
		}
		out = append(out, avail...)
		want = seg.End() + 1
	}
	return nil, false
}

// Stats is a point-in-time snapshot of cache hit accounting.
type Stats struct {
	Hits, Misses uint64
	Entries      int
	SizeBytes    int64
}

// HitRate returns hits / (hits + misses), or 0 when no lookups have occurred.
func (s Stats) HitRate() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total)
}

// Snapshot returns the current hit/miss counters and occupancy.
func (c *Cache) Snapshot() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Stats{
		Hits:      c.hits,
		Misses:    c.misses,
		Entries:   len(c.entries),
		SizeBytes: c.size,
	}
}
