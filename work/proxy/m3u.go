package proxy

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"hls-bridge/work/logger"
	"hls-bridge/work/metrics"
	"hls-bridge/work/utils"
)

// HandleM3U serves GET /api/proxy-m3u: a plain fetch-and-return of playlist
// text with no rewriting, used by the frontend to load full channel lists
// without tripping CORS. Bodies are cached by URL since channel lists
// change rarely and tend to be large.
func (b *Bridge) HandleM3U(w http.ResponseWriter, r *http.Request) {
	metrics.RequestsTotal.WithLabelValues("m3u").Inc()
	metrics.RequestsInFlight.Inc()
	defer metrics.RequestsInFlight.Dec()

	targetURL := r.URL.Query().Get("url")
	if targetURL == "" {
		metrics.ProxyErrors.WithLabelValues("m3u", "missing_parameter").Inc()
		http.Error(w, "URL required", http.StatusBadRequest)
		return
	}

	if body, ok := b.Cache.Get(targetURL); ok {
		metrics.CacheHits.WithLabelValues("hit").Inc()
		logger.Debug("{proxy/m3u - HandleM3U} cache hit for %s", utils.LogURL(b.Config, targetURL))
		writePlaylist(w, http.StatusOK, body)
		return
	}
	metrics.CacheHits.WithLabelValues("miss").Inc()

	ctx, cancel := context.WithTimeout(r.Context(), b.Config.UpstreamTimeout)
	defer cancel()

	body, status, err := b.fetchPlaylistText(ctx, targetURL)
	if err != nil {
		logger.Error("{proxy/m3u - HandleM3U} fetch failed for %s: %v", utils.LogURL(b.Config, targetURL), err)
		metrics.ProxyErrors.WithLabelValues("m3u", "fetch").Inc()
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if !acceptableStatus(status) {
		logger.Warn("{proxy/m3u - HandleM3U} upstream %s returned %d", utils.LogURL(b.Config, targetURL), status)
		metrics.ProxyErrors.WithLabelValues("m3u", "upstream_status").Inc()
		http.Error(w, fmt.Sprintf("Target returned %d", status), status)
		return
	}

	b.Cache.Set(targetURL, body)
	writePlaylist(w, status, body)
}

// fetchPlaylistText performs the single upstream GET for a playlist and
// returns its text body. An unacceptable upstream status comes back with an
// empty body and a nil error; the caller decides how to forward it.
func (b *Bridge) fetchPlaylistText(ctx context.Context, targetURL string) (string, int, error) {
	resp, err := b.fetch(ctx, targetURL, "")
	if err != nil {
		return "", 0, err
	}
	defer resp.Body.Close()

	if !acceptableStatus(resp.StatusCode) {
		return "", resp.StatusCode, nil
	}

	body, err := b.readCapped(resp)
	if err != nil {
		return "", resp.StatusCode, err
	}
	return body, resp.StatusCode, nil
}

// writePlaylist sends playlist text with the headers browser players expect.
func writePlaylist(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "audio/x-mpegurl")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Content-Length", strconv.Itoa(len(body)))
	w.WriteHeader(status)

	n, _ := io.WriteString(w, body)
	metrics.BytesTransferred.WithLabelValues("m3u", "text").Add(float64(n))
}
