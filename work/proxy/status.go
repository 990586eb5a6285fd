package proxy

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/puzpuzpuz/xsync/v3"

	"hls-bridge/work/logger"
)

// statusResponse is the JSON snapshot served by /status.
type statusResponse struct {
	Uptime           string           `json:"uptime"`
	CachedPlaylists  int              `json:"cachedPlaylists"`
	UpstreamRequests map[string]int64 `json:"upstreamRequests"`
	LogLevel         string           `json:"logLevel"`
}

// HandleStatus serves a JSON snapshot of runtime state: uptime, cached
// playlist count, and request counts per upstream host.
func (b *Bridge) HandleStatus(w http.ResponseWriter, r *http.Request) {
	hosts := make(map[string]int64)
	b.hostRequests.Range(func(host string, counter *xsync.Counter) bool {
		hosts[host] = counter.Value()
		return true
	})

	resp := statusResponse{
		Uptime:           time.Since(b.started).Round(time.Second).String(),
		CachedPlaylists:  b.Cache.Len(),
		UpstreamRequests: hosts,
		LogLevel:         logger.GetLogLevel(),
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		logger.Error("{proxy/status - HandleStatus} failed to encode status: %v", err)
	}
}

// HandleHealth is the liveness probe.
func (b *Bridge) HandleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	w.Write([]byte("OK"))
}
