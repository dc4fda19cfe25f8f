package stats

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/streamhub/videoproxy/internal/metacache"
	"github.com/streamhub/videoproxy/internal/segcache"
)

// RegisterCollectors wires gauge funcs reading live off r, the three caches,
// backing GET /metrics, into reg.
func RegisterCollectors(reg prometheus.Registerer, r *Recorder, meta *metacache.MetadataCache, redirect *metacache.RedirectCache, seg *segcache.Cache) {
	reg.MustRegister(
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "videoproxy_requests_total",
			Help: "Total requests handled since startup.",
		}, func() float64 { return float64(r.Snapshot().TotalRequests) }),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "videoproxy_requests_active",
			Help: "Requests currently in flight.",
		}, func() float64 { return float64(r.Snapshot().ActiveRequests) }),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "videoproxy_range_requests_total",
			Help: "Total requests that carried a Range header.",
		}, func() float64 { return float64(r.Snapshot().RangeRequests) }),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "videoproxy_bytes_transferred_total",
			Help: "Total response bytes written to clients since startup.",
		}, func() float64 { return float64(r.Snapshot().TotalBytes) }),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "videoproxy_current_speed_bytes_per_second",
			Help: "Throughput over the trailing 10-second window.",
		}, func() float64 { return r.CurrentSpeed() }),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "videoproxy_uptime_seconds",
			Help: "Seconds since the recorder started.",
		}, func() float64 { return r.Snapshot().Uptime.Seconds() }),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "videoproxy_metadata_cache_entries",
			Help: "Live entries in the metadata cache.",
		}, func() float64 { return float64(meta.Len()) }),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "videoproxy_redirect_cache_entries",
			Help: "Live entries in the redirect cache.",
		}, func() float64 { return float64(redirect.Len()) }),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "videoproxy_segment_cache_entries",
			Help: "Live segments held in the segment cache.",
		}, func() float64 { return float64(seg.Snapshot().Entries) }),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "videoproxy_segment_cache_bytes",
			Help: "Bytes occupied by the segment cache.",
		}, func() float64 { return float64(seg.Snapshot().SizeBytes) }),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "videoproxy_segment_cache_hit_rate",
			Help: "Segment cache hit rate over its lifetime.",
		}, func() float64 { return seg.Snapshot().HitRate() }),
	)
}
