package stats

import (
	"github.com/streamhub/videoproxy/internal/metacache"
	"github.com/streamhub/videoproxy/internal/segcache"
)

// CacheSnapshot mirrors the "cache" object in the GET /api/stats response.
type CacheSnapshot struct {
	MetadataEntries int     `json:"metadataEntries"`
	RedirectEntries int     `json:"redirectEntries"`
	SegmentEntries  int     `json:"segmentEntries"`
	SegmentBytes    int64   `json:"segmentBytes"`
	HitRate         float64 `json:"hitRate"`
}

// APIResponse is the exact JSON shape served from GET /api/stats.
type APIResponse struct {
	TotalRequests         int64         `json:"totalRequests"`
	ActiveRequests        int64         `json:"activeRequests"`
	TotalBytesTransferred int64         `json:"totalBytesTransferred"`
	CurrentSpeed          float64       `json:"currentSpeed"`
	RangeRequests         int64         `json:"rangeRequests"`
	UptimeMillis          int64         `json:"uptime"`
	FormattedSpeed        string        `json:"formattedSpeed"`
	FormattedTotal        string        `json:"formattedTotal"`
	Cache                 CacheSnapshot `json:"cache"`
}

// BuildAPIResponse assembles the admin JSON payload from the live recorder
// and the three caches it does not itself own.
func BuildAPIResponse(r *Recorder, meta *metacache.MetadataCache, redirect *metacache.RedirectCache, seg *segcache.Cache) APIResponse {
	snap := r.Snapshot()
	segSnap := seg.Snapshot()

	return APIResponse{
		TotalRequests:         snap.TotalRequests,
		ActiveRequests:        snap.ActiveRequests,
		TotalBytesTransferred: snap.TotalBytes,
		CurrentSpeed:          snap.CurrentSpeed,
		RangeRequests:         snap.RangeRequests,
		UptimeMillis:          snap.Uptime.Milliseconds(),
		FormattedSpeed:        formatSpeed(snap.CurrentSpeed),
		FormattedTotal:        formatBytes(snap.TotalBytes),
		Cache: CacheSnapshot{
			MetadataEntries: meta.Len(),
			RedirectEntries: redirect.Len(),
			SegmentEntries:  segSnap.Entries,
			SegmentBytes:    segSnap.SizeBytes,
			HitRate:         segSnap.HitRate(),
		},
	}
}
