package rangeengine

import "github.com/streamhub/videoproxy/internal/segcache"

// segmentFiller accumulates upstream bytes into segment-cache-sized buffers
// and commits a buffer to the cache only when it has observed a complete,
// aligned SEG window -- never a partial one. A window whose leading bytes
// were never observed (the stream started mid-segment) is skipped entirely,
// since it can never become complete.
type segmentFiller struct {
	cache   *segcache.Cache
	url     string
	segSize int64
	total   int64 // resource size, so the final short segment can still be committed

	curStart int64
	buf      []byte
	skip     bool
	started  bool
}

func newSegmentFiller(cache *segcache.Cache, url string, total int64) *segmentFiller {
	return &segmentFiller{
		cache:   cache,
		url:     url,
		segSize: cache.SegmentSize(),
		total:   total,
	}
}

// pending reports whether a segment window is currently open and fillable,
// i.e. whether reading a bit further could still complete a cacheable segment.
func (f *segmentFiller) pending() bool {
	return f.started && !f.skip
}

// feed informs the filler that the bytes of chunk were observed starting at
// absolute offset chunkStart.
func (f *segmentFiller) feed(chunkStart int64, chunk []byte) {
	pos := chunkStart
	remaining := chunk

	for len(remaining) > 0 {
		segStart := f.cache.AlignDown(pos)
		if !f.started || segStart != f.curStart {
			f.curStart = segStart
			f.buf = nil
			f.skip = pos != segStart
			f.started = true
		}

		segEnd := segStart + f.segSize - 1
		if segEnd > f.total-1 {
			segEnd = f.total - 1
		}
		wantLen := segEnd - segStart + 1

		takeToSegEnd := segEnd - pos + 1
		take := takeToSegEnd
		if take > int64(len(remaining)) {
			take = int64(len(remaining))
		}

		if !f.skip {
			if f.buf == nil {
				f.buf = make([]byte, 0, wantLen)
			}
			f.buf = append(f.buf, remaining[:take]...)
		}

		remaining = remaining[take:]
		pos += take

		if pos > segEnd {
			if !f.skip && int64(len(f.buf)) == wantLen {
				f.cache.Put(f.url, f.curStart, f.buf)
			}
			f.buf = nil
			f.started = false
		}
	}
}
