package proxy

import (
	"context"
	"net/http"
	"net/url"
	"time"

	"github.com/panjf2000/ants/v2"
	"github.com/puzpuzpuz/xsync/v3"
	"go.uber.org/ratelimit"

	"hls-bridge/work/cache"
	"hls-bridge/work/client"
	"hls-bridge/work/config"
	"hls-bridge/work/logger"
	"hls-bridge/work/utils"
)

// Route paths for the self-referencing proxy endpoints. The manifest route
// is baked into rewritten playlists, so changing it invalidates every
// manifest a client is currently holding.
const (
	ManifestRoute = "/api/proxy-manifest"
	M3URoute      = "/api/proxy-m3u"
)

// Bridge is the core application: it fetches remote HLS resources with the
// configured spoofed identity, rewrites manifest text to route back through
// itself, and passes binary media through untouched. Request handling is
// stateless; the only shared structures are the playlist cache, the per-host
// rate limiters and the per-host request counters.
type Bridge struct {
	Config       *config.Config                       // Application configuration
	HttpClient   *client.HeaderSettingClient          // HTTP client with spoofed headers
	Cache        *cache.PlaylistCache                 // Cache for raw playlist bodies
	WorkerPool   *ants.Pool                           // Worker pool for background refresh tasks
	hostLimiters *xsync.MapOf[string, ratelimit.Limiter] // per-upstream-host rate limiters
	hostRequests *xsync.MapOf[string, *xsync.Counter] // per-upstream-host request counters
	started      time.Time                            // process start, reported by /status
	refreshStop  chan bool                            // Stop signal for the cache refresh loop
}

// New creates and initializes a new Bridge instance.
func New(cfg *config.Config, httpClient *client.HeaderSettingClient, playlistCache *cache.PlaylistCache, workerPool *ants.Pool) *Bridge {
	return &Bridge{
		Config:       cfg,
		HttpClient:   httpClient,
		Cache:        playlistCache,
		WorkerPool:   workerPool,
		hostLimiters: xsync.NewMapOf[string, ratelimit.Limiter](),
		hostRequests: xsync.NewMapOf[string, *xsync.Counter](),
		started:      time.Now(),
		refreshStop:  make(chan bool, 1),
	}
}

// limiterFor returns the rate limiter for an upstream host, creating an
// unlimited one when no per-host rate is configured.
func (b *Bridge) limiterFor(host string) ratelimit.Limiter {
	limiter, _ := b.hostLimiters.LoadOrCompute(host, func() ratelimit.Limiter {
		if b.Config.RateLimitPerHost <= 0 {
			return ratelimit.NewUnlimited()
		}
		return ratelimit.New(b.Config.RateLimitPerHost)
	})
	return limiter
}

// countHostRequest bumps the request counter for an upstream host.
func (b *Bridge) countHostRequest(host string) {
	counter, _ := b.hostRequests.LoadOrCompute(host, xsync.NewCounter)
	counter.Inc()
}

// fetch performs the single upstream GET for a target URL. The caller's
// Range header, when present, is forwarded verbatim so partial-content
// segment fetches and byte-range probes work through the proxy. There are
// no retries; whatever this returns is what the client gets.
func (b *Bridge) fetch(ctx context.Context, targetURL, rangeHeader string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, targetURL, nil)
	if err != nil {
		return nil, err
	}
	if rangeHeader != "" {
		req.Header.Set("Range", rangeHeader)
	}

	if u, err := url.Parse(targetURL); err == nil && u.Host != "" {
		b.limiterFor(u.Host).Take()
		b.countHostRequest(u.Host)
	}

	logger.Debug("{proxy/proxy - fetch} GET %s (range=%q)", utils.LogURL(b.Config, targetURL), rangeHeader)
	return b.HttpClient.Do(req)
}

// acceptableStatus reports whether an upstream status is forwarded with a
// body. Anything outside the 2xx range (206 included) is terminal and gets
// a short diagnostic instead.
func acceptableStatus(status int) bool {
	return (status >= 200 && status < 300) || status == http.StatusPartialContent
}

// StartCacheRefresh launches the background loop that periodically
// re-fetches recently requested playlists into the cache.
func (b *Bridge) StartCacheRefresh() {
	if !b.Config.CacheEnabled {
		return
	}

	go func() {
		ticker := time.NewTicker(b.Config.CacheRefreshInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				b.RefreshPlaylists()
			case <-b.refreshStop:
				return
			}
		}
	}()
}

// StopCacheRefresh signals the refresh loop to exit.
func (b *Bridge) StopCacheRefresh() {
	select {
	case b.refreshStop <- true:
	default:
	}
}

// RefreshPlaylists re-fetches every tracked playlist on the worker pool.
// URLs nobody requested for two refresh intervals fall out of tracking and
// are left to expire.
func (b *Bridge) RefreshPlaylists() {
	urls := b.Cache.TrackedURLs(2 * b.Config.CacheRefreshInterval)
	if len(urls) == 0 {
		return
	}

	logger.Info("{proxy/proxy - RefreshPlaylists} refreshing %d cached playlists", len(urls))

	for _, u := range urls {
		target := u
		err := b.WorkerPool.Submit(func() {
			ctx, cancel := context.WithTimeout(context.Background(), b.Config.UpstreamTimeout)
			defer cancel()

			body, status, err := b.fetchPlaylistText(ctx, target)
			if err != nil {
				logger.Warn("{proxy/proxy - RefreshPlaylists} refresh failed for %s: %v", utils.LogURL(b.Config, target), err)
				return
			}
			if !acceptableStatus(status) {
				logger.Warn("{proxy/proxy - RefreshPlaylists} refresh for %s returned %d", utils.LogURL(b.Config, target), status)
				return
			}
			b.Cache.Refresh(target, body)
		})
		if err != nil {
			logger.Warn("{proxy/proxy - RefreshPlaylists} could not submit refresh task: %v", err)
		}
	}
}
