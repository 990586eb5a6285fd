package cache

import (
	"testing"
	"time"
)

func TestPlaylistCache_SetGet(t *testing.T) {
	c := NewPlaylistCache(time.Minute, true)

	c.Set("http://host/list.m3u", "#EXTM3U\n")

	got, ok := c.Get("http://host/list.m3u")
	if !ok {
		t.Fatal("Get = miss, want hit")
	}
	if got != "#EXTM3U\n" {
		t.Errorf("Get = %q, want %q", got, "#EXTM3U\n")
	}
}

func TestPlaylistCache_MissOnUnknownURL(t *testing.T) {
	c := NewPlaylistCache(time.Minute, true)

	if _, ok := c.Get("http://host/other.m3u"); ok {
		t.Error("Get = hit, want miss")
	}
}

func TestPlaylistCache_DisabledAlwaysMisses(t *testing.T) {
	c := NewPlaylistCache(time.Minute, false)

	c.Set("http://host/list.m3u", "#EXTM3U\n")

	if _, ok := c.Get("http://host/list.m3u"); ok {
		t.Error("disabled cache returned a hit")
	}
}

func TestPlaylistCache_Forget(t *testing.T) {
	c := NewPlaylistCache(time.Minute, true)

	c.Set("http://host/list.m3u", "#EXTM3U\n")
	c.Forget("http://host/list.m3u")

	if _, ok := c.Get("http://host/list.m3u"); ok {
		t.Error("Get after Forget = hit, want miss")
	}
}

func TestPlaylistCache_TrackedURLs(t *testing.T) {
	c := NewPlaylistCache(time.Minute, true)

	c.Get("http://host/a.m3u")
	c.Get("http://host/b.m3u")

	urls := c.TrackedURLs(time.Hour)
	if len(urls) != 2 {
		t.Fatalf("TrackedURLs = %v, want 2 entries", urls)
	}
}

func TestPlaylistCache_TrackedURLs_PrunesIdle(t *testing.T) {
	c := NewPlaylistCache(time.Minute, true)

	c.Get("http://host/a.m3u")
	time.Sleep(20 * time.Millisecond)

	if urls := c.TrackedURLs(time.Millisecond); len(urls) != 0 {
		t.Errorf("TrackedURLs = %v, want idle URL pruned", urls)
	}
	// pruned entries stay gone even with a generous window
	if urls := c.TrackedURLs(time.Hour); len(urls) != 0 {
		t.Errorf("TrackedURLs after prune = %v, want empty", urls)
	}
}

func TestPlaylistCache_RefreshDoesNotTouchLastSeen(t *testing.T) {
	c := NewPlaylistCache(time.Minute, true)

	c.Refresh("http://host/a.m3u", "#EXTM3U\n")

	if urls := c.TrackedURLs(time.Hour); len(urls) != 0 {
		t.Errorf("TrackedURLs = %v, want refresh-only URL untracked", urls)
	}
	if _, ok := c.Get("http://host/a.m3u"); !ok {
		t.Error("refreshed body not retrievable")
	}
}

func TestPlaylistCache_Clear(t *testing.T) {
	c := NewPlaylistCache(time.Minute, true)

	c.Set("http://host/a.m3u", "#EXTM3U\n")
	c.Get("http://host/a.m3u")
	c.Clear()

	if _, ok := c.Get("http://host/a.m3u"); ok {
		t.Error("Get after Clear = hit, want miss")
	}
	// the Get above re-tracked the URL; only the pre-Clear tracking must be gone
	if got := c.Len(); got != 0 {
		t.Errorf("Len after Clear = %d, want 0", got)
	}
}
