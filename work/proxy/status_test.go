package proxy

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
)

func TestHandleHealth(t *testing.T) {
	b := newTestBridge(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	b.HandleHealth(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if got := rec.Body.String(); got != "OK" {
		t.Errorf("body = %q, want %q", got, "OK")
	}
}

func TestHandleStatus_CountsUpstreamRequests(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/vnd.apple.mpegurl")
		_, _ = io.WriteString(w, "#EXTM3U\n")
	}))
	defer upstream.Close()

	b := newTestBridge(t)
	proxyRequest(t, b, upstream.URL+"/live.m3u8", nil)
	proxyRequest(t, b, upstream.URL+"/live.m3u8", nil)

	req := httptest.NewRequest(http.MethodGet, "/status", nil)
	rec := httptest.NewRecorder()
	b.HandleStatus(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}

	var resp statusResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	host := strings.TrimPrefix(upstream.URL, "http://")
	if got := resp.UpstreamRequests[host]; got != 2 {
		t.Errorf("upstream requests for %s = %d, want 2", host, got)
	}
	if resp.Uptime == "" {
		t.Error("uptime is empty")
	}
}

func TestHandleStatus_ReportsCachedPlaylists(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, "#EXTM3U\n")
	}))
	defer upstream.Close()

	b := newTestBridge(t)

	req := httptest.NewRequest(http.MethodGet, M3URoute+"?url="+url.QueryEscape(upstream.URL+"/list.m3u"), nil)
	rec := httptest.NewRecorder()
	b.HandleM3U(rec, req)

	statusRec := httptest.NewRecorder()
	b.HandleStatus(statusRec, httptest.NewRequest(http.MethodGet, "/status", nil))

	var resp statusResponse
	if err := json.Unmarshal(statusRec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp.CachedPlaylists != 1 {
		t.Errorf("cachedPlaylists = %d, want 1", resp.CachedPlaylists)
	}
}
