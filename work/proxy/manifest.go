package proxy

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"hls-bridge/work/logger"
	"hls-bridge/work/metrics"
	"hls-bridge/work/rewrite"
	"hls-bridge/work/utils"
)

// rangeHeaders are copied verbatim from the upstream response whenever
// present, before any body bytes are written. They are what makes seeking
// and range probing work for players behind the proxy.
var rangeHeaders = []string{"Content-Range", "Accept-Ranges"}

// HandleManifest serves GET /api/proxy-manifest. It fetches the target URL
// once, classifies the response as manifest text or opaque binary, rewrites
// manifest text so every referenced resource routes back through this
// endpoint, and forwards binary bodies untouched.
func (b *Bridge) HandleManifest(w http.ResponseWriter, r *http.Request) {
	metrics.RequestsTotal.WithLabelValues("manifest").Inc()
	metrics.RequestsInFlight.Inc()
	defer metrics.RequestsInFlight.Dec()

	targetURL := r.URL.Query().Get("url")
	if targetURL == "" {
		metrics.ProxyErrors.WithLabelValues("manifest", "missing_parameter").Inc()
		http.Error(w, "URL required", http.StatusBadRequest)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), b.Config.UpstreamTimeout)
	defer cancel()

	resp, err := b.fetch(ctx, targetURL, r.Header.Get("Range"))
	if err != nil {
		logger.Error("{proxy/manifest - HandleManifest} fetch failed for %s: %v", utils.LogURL(b.Config, targetURL), err)
		metrics.ProxyErrors.WithLabelValues("manifest", "fetch").Inc()
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	defer resp.Body.Close()

	if !acceptableStatus(resp.StatusCode) {
		logger.Warn("{proxy/manifest - HandleManifest} upstream %s returned %d", utils.LogURL(b.Config, targetURL), resp.StatusCode)
		metrics.ProxyErrors.WithLabelValues("manifest", "upstream_status").Inc()
		http.Error(w, fmt.Sprintf("Target returned %d", resp.StatusCode), resp.StatusCode)
		return
	}

	if rewrite.IsManifestResponse(resp.Header.Get("Content-Type"), targetURL) {
		b.serveManifest(w, targetURL, resp)
		return
	}
	b.serveBinary(w, targetURL, resp)
}

// serveManifest buffers the manifest body, rewrites every URL reference to
// a self-referencing proxy URL, and sends the result. The rewritten body
// gets a recomputed Content-Length since its size differs from upstream's.
func (b *Bridge) serveManifest(w http.ResponseWriter, targetURL string, resp *http.Response) {
	body, err := b.readCapped(resp)
	if err != nil {
		logger.Error("{proxy/manifest - serveManifest} read failed for %s: %v", utils.LogURL(b.Config, targetURL), err)
		metrics.ProxyErrors.WithLabelValues("manifest", "read").Inc()
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	rw, err := rewrite.New(targetURL, ManifestRoute)
	if err != nil {
		metrics.ProxyErrors.WithLabelValues("manifest", "bad_url").Inc()
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	rewritten := rw.Rewrite(body)

	copyHeaders(w.Header(), resp.Header, rangeHeaders)
	w.Header().Set("Content-Type", "application/vnd.apple.mpegurl")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Content-Length", strconv.Itoa(len(rewritten)))
	w.WriteHeader(resp.StatusCode)

	n, _ := io.WriteString(w, rewritten)
	metrics.BytesTransferred.WithLabelValues("manifest", "text").Add(float64(n))
	metrics.ManifestsRewritten.WithLabelValues(rewrite.PlaylistKind(body)).Inc()

	logger.Debug("{proxy/manifest - serveManifest} rewrote %s (%s in, %s out)",
		utils.LogURL(b.Config, targetURL), utils.FormatBytes(int64(len(body))), utils.FormatBytes(int64(n)))
}

// serveBinary streams an opaque body (segment, key, thumbnail) straight
// through without buffering it, after copying the headers the client needs.
func (b *Bridge) serveBinary(w http.ResponseWriter, targetURL string, resp *http.Response) {
	copyHeaders(w.Header(), resp.Header, rangeHeaders)
	copyHeaders(w.Header(), resp.Header, []string{"Content-Length"})
	if ct := resp.Header.Get("Content-Type"); ct != "" {
		w.Header().Set("Content-Type", ct)
	}
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Cache-Control", "public, max-age=3600")
	w.WriteHeader(resp.StatusCode)

	n, err := io.Copy(w, resp.Body)
	if err != nil {
		// client disconnects land here; nothing to recover, headers are out
		logger.Debug("{proxy/manifest - serveBinary} copy ended early for %s: %v", utils.LogURL(b.Config, targetURL), err)
	}
	metrics.BytesTransferred.WithLabelValues("manifest", "binary").Add(float64(n))
}

// readCapped reads a text body up to the configured manifest size limit.
// Oversized bodies are rejected rather than truncated, since a truncated
// playlist would rewrite into a broken one.
func (b *Bridge) readCapped(resp *http.Response) (string, error) {
	maxBytes := b.Config.MaxManifestSize * 1024 * 1024
	if resp.ContentLength > maxBytes {
		return "", fmt.Errorf("playlist too large: %s", utils.FormatBytes(resp.ContentLength))
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBytes+1))
	if err != nil {
		return "", err
	}
	if int64(len(body)) > maxBytes {
		return "", fmt.Errorf("playlist too large: exceeds %s", utils.FormatBytes(maxBytes))
	}
	return string(body), nil
}

// copyHeaders copies the named headers from src to dst when present.
func copyHeaders(dst http.Header, src http.Header, names []string) {
	for _, name := range names {
		if v := src.Get(name); v != "" {
			dst.Set(name, v)
		}
	}
}
