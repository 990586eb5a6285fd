package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// RequestsTotal counts proxy requests per endpoint. This metric is a counter
// and only increases.
var RequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "hls_bridge_requests_total",
	Help: "Total proxy requests handled",
}, []string{"endpoint"})

// RequestsInFlight tracks the number of requests currently being handled.
// This metric is a gauge, going up as requests arrive and down as they finish.
var RequestsInFlight = promauto.NewGauge(prometheus.GaugeOpts{
	Name: "hls_bridge_requests_in_flight",
	Help: "Number of requests currently in flight",
})

// ProxyErrors counts failed proxy requests per endpoint. The "error_type"
// label categorizes the failure (missing_parameter, upstream_status, fetch,
// read). This metric is a counter and only increases.
var ProxyErrors = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "hls_bridge_proxy_errors",
	Help: "Number of failed proxy requests",
}, []string{"endpoint", "error_type"})

// BytesTransferred tracks the total bytes written back to clients per
// endpoint. The "kind" label distinguishes manifest text from binary
// passthrough. This metric is a counter and only increases.
var BytesTransferred = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "hls_bridge_bytes_transferred",
	Help: "Total bytes transferred to clients",
}, []string{"endpoint", "kind"})

// ManifestsRewritten counts rewritten manifests by playlist kind
// (master, media, unknown).
var ManifestsRewritten = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "hls_bridge_manifests_rewritten",
	Help: "Number of manifests rewritten",
}, []string{"kind"})

// CacheHits counts playlist cache hits and misses via the "result" label.
var CacheHits = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "hls_bridge_playlist_cache_requests",
	Help: "Playlist cache lookups by result",
}, []string{"result"})
