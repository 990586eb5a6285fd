package main

import (
	"fmt"
	"log"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/panjf2000/ants/v2"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"hls-bridge/work/cache"
	"hls-bridge/work/client"
	"hls-bridge/work/config"
	"hls-bridge/work/handlers"
	"hls-bridge/work/logger"
	"hls-bridge/work/middleware"
	"hls-bridge/work/proxy"
	"hls-bridge/work/utils"
)

var (
	Version = "v0.1.0" // default version
)

// our main app worker
func main() {

	// load our config
	cfg := config.LoadConfig()

	// set the global log level from config
	logger.SetLogLevel(cfg.LogLevel)

	// Initialize HTTP client with the spoofed upstream identity
	httpClient := client.NewHeaderSettingClient(cfg)

	// Initialize worker pool for background playlist refreshes
	workerPool, err := ants.NewPool(cfg.WorkerThreads, ants.WithPreAlloc(true))
	if err != nil {
		log.Fatalf("Failed to create worker pool: %v", err)
	}
	defer workerPool.Release()

	// Initialize playlist cache
	playlistCache := cache.NewPlaylistCache(cfg.CacheDuration, cfg.CacheEnabled)

	// Create bridge instance
	bridge := proxy.New(cfg, httpClient, playlistCache, workerPool)

	// Start background cache refresh
	bridge.StartCacheRefresh()
	defer bridge.StopCacheRefresh()

	// Setup HTTP routes
	router := mux.NewRouter()

	// Manifest rewriting proxy (manifests rewritten, media passed through)
	router.HandleFunc(proxy.ManifestRoute, handlers.HandleManifest(bridge)).Methods("GET")

	// Plain playlist fetch (no rewriting), gzipped since it's pure text
	router.HandleFunc(proxy.M3URoute, middleware.Gzip(handlers.HandleM3U(bridge))).Methods("GET")

	// Runtime status and health
	router.HandleFunc("/status", middleware.Gzip(handlers.HandleStatus(bridge))).Methods("GET")
	router.HandleFunc("/health", handlers.HandleHealth(bridge)).Methods("GET")

	// Metrics handler
	router.Handle("/metrics", promhttp.Handler()).Methods("GET")

	addr := fmt.Sprintf(":%d", cfg.ListenPort)

	// show info
	logger.Info("Starting HLS-Bridge %s", Version)
	logger.Info("Server configuration:")
	logger.Info("  - Listen Port: %d", cfg.ListenPort)
	logger.Info("  - User-Agent: %s", cfg.UserAgent)
	logger.Info("  - Upstream Timeout: %s", cfg.UpstreamTimeout)
	logger.Info("  - Max. Manifest Size: %s", utils.FormatBytes(cfg.MaxManifestSize*1024*1024))
	logger.Info("  - Cache Enabled: %v", cfg.CacheEnabled)
	logger.Info("  - Cache Duration: %s", cfg.CacheDuration)
	logger.Info("  - Cache Refresh Rate: %s", cfg.CacheRefreshInterval)
	logger.Info("  - Worker Threads: %d", cfg.WorkerThreads)
	logger.Info("  - Rate Limit/Host: %d req/s", cfg.RateLimitPerHost)
	logger.Info("  - Log Level: %s", cfg.LogLevel)
	logger.Info("  - URL Obfuscation: %v", cfg.ObfuscateUrls)

	// fire us up
	if err := http.ListenAndServe(addr, router); err != nil {
		log.Fatalf("Server failed to start: %v", err)
	}

}
