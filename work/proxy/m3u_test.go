package proxy

import (
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

const channelList = "#EXTM3U\n#EXTINF:-1 tvg-name=\"News\",News\nhttp://provider/news.m3u8\n"

func m3uRequest(t *testing.T, b *Bridge, target string) *httptest.ResponseRecorder {
	t.Helper()

	path := M3URoute
	if target != "" {
		path += "?url=" + url.QueryEscape(target)
	}
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	b.HandleM3U(rec, req)
	return rec
}

func TestHandleM3U_MissingURL(t *testing.T) {
	b := newTestBridge(t)

	rec := m3uRequest(t, b, "")

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
	if got := strings.TrimSpace(rec.Body.String()); got != "URL required" {
		t.Errorf("body = %q, want %q", got, "URL required")
	}
}

func TestHandleM3U_ReturnsPlaylistUnrewritten(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, channelList)
	}))
	defer upstream.Close()

	b := newTestBridge(t)
	rec := m3uRequest(t, b, upstream.URL+"/list.m3u")

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if got := rec.Body.String(); got != channelList {
		t.Errorf("body = %q, want upstream playlist verbatim", got)
	}
	if got := rec.Header().Get("Content-Type"); got != "audio/x-mpegurl" {
		t.Errorf("Content-Type = %q, want %q", got, "audio/x-mpegurl")
	}
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Errorf("Access-Control-Allow-Origin = %q, want %q", got, "*")
	}
}

func TestHandleM3U_SecondRequestServedFromCache(t *testing.T) {
	var upstreamCalls atomic.Int64
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		upstreamCalls.Add(1)
		_, _ = io.WriteString(w, channelList)
	}))
	defer upstream.Close()

	b := newTestBridge(t)
	target := upstream.URL + "/list.m3u"

	first := m3uRequest(t, b, target)
	second := m3uRequest(t, b, target)

	if got := upstreamCalls.Load(); got != 1 {
		t.Errorf("upstream calls = %d, want 1", got)
	}
	if first.Body.String() != second.Body.String() {
		t.Errorf("cached body differs: %q vs %q", first.Body.String(), second.Body.String())
	}
}

func TestHandleM3U_UpstreamErrorForwarded(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer upstream.Close()

	b := newTestBridge(t)
	rec := m3uRequest(t, b, upstream.URL+"/list.m3u")

	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusNotFound)
	}
	if got := strings.TrimSpace(rec.Body.String()); got != "Target returned 404" {
		t.Errorf("body = %q, want %q", got, "Target returned 404")
	}
}

func TestRefreshPlaylists_UpdatesCachedBody(t *testing.T) {
	var body atomic.Value
	body.Store("#EXTM3U\nold\n")
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, body.Load().(string))
	}))
	defer upstream.Close()

	b := newTestBridge(t)
	target := upstream.URL + "/list.m3u"

	// prime the cache, then change what upstream serves
	m3uRequest(t, b, target)
	body.Store("#EXTM3U\nnew\n")

	b.RefreshPlaylists()

	// the refresh runs on the worker pool; poll until the cache flips
	for i := 0; i < 100; i++ {
		if cached, ok := b.Cache.Get(target); ok && strings.Contains(cached, "new") {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("cache was not refreshed with new upstream body")
}
