// Package stats maintains the live counters behind the admin endpoints: a
// rolling throughput window, cumulative request/byte counters, and the
// cache occupancy figures reported by the segment/metadata/redirect caches.
package stats

import (
	"sync"
	"time"

	"go.uber.org/atomic"
)

const windowSpan = 10 * time.Second

// sample is one (timestamp, bytes) throughput record.
type sample struct {
	at    time.Time
	bytes int64
}

// Recorder tracks the counters behind GET /api/stats and /metrics.
type Recorder struct {
	startedAt time.Time

	totalBytes     atomic.Int64
	totalRequests  atomic.Int64
	activeRequests atomic.Int64
	rangeRequests  atomic.Int64

	mu     sync.Mutex
	window []sample
}

func New() *Recorder {
	return &Recorder{startedAt: time.Now()}
}

// RequestStarted marks the beginning of a handled request, returning a
// completion func the caller must invoke exactly once on every exit path.
func (r *Recorder) RequestStarted(isRange bool) (done func()) {
	r.totalRequests.Inc()
	r.activeRequests.Inc()
	if isRange {
		r.rangeRequests.Inc()
	}
	return func() {
		r.activeRequests.Dec()
	}
}

// RecordBytes appends a throughput sample and trims the rolling window.
// Implements rangeengine.ThroughputRecorder.
func (r *Recorder) RecordBytes(n int64) {
	if n <= 0 {
		return
	}
	r.totalBytes.Add(n)

	now := time.Now()
	r.mu.Lock()
	r.window = append(r.window, sample{at: now, bytes: n})
	r.trimLocked(now)
	r.mu.Unlock()
}

// trimLocked drops samples older than windowSpan. Caller holds r.mu.
func (r *Recorder) trimLocked(now time.Time) {
	cutoff := now.Add(-windowSpan)
	i := 0
	for i < len(r.window) && r.window[i].at.Before(cutoff) {
		i++
	}
	if i > 0 {
		r.window = r.window[i:]
	}
}

// CurrentSpeed returns bytes/second over the rolling window.
func (r *Recorder) CurrentSpeed() float64 {
	now := time.Now()
	r.mu.Lock()
	r.trimLocked(now)
	var sum int64
	for _, s := range r.window {
		sum += s.bytes
	}
	r.mu.Unlock()

	if len(r.window) == 0 {
		return 0
	}
	return float64(sum) / windowSpan.Seconds()
}

// Snapshot is a point-in-time view of all counters, used for both the JSON
// admin endpoint and the Prometheus collector.
type Snapshot struct {
	TotalRequests  int64
	ActiveRequests int64
	TotalBytes     int64
	CurrentSpeed   float64
	RangeRequests  int64
	Uptime         time.Duration
}

func (r *Recorder) Snapshot() Snapshot {
	return Snapshot{
		TotalRequests:  r.totalRequests.Load(),
		ActiveRequests: r.activeRequests.Load(),
		TotalBytes:     r.totalBytes.Load(),
		CurrentSpeed:   r.CurrentSpeed(),
		RangeRequests:  r.rangeRequests.Load(),
		Uptime:         time.Since(r.startedAt),
	}
}
