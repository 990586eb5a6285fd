package config

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"sync"
	"time"
)

// Config holds all application configuration values for the HLS bridge server.
// It covers the listening socket, the spoofed upstream request identity, the
// playlist cache, and the limits applied to upstream fetches.
type Config struct {
	ListenPort           int           `json:"listenPort"`           // TCP port the HTTP server binds to
	UserAgent            string        `json:"userAgent"`            // User-Agent header sent on every upstream fetch
	AcceptLanguage       string        `json:"acceptLanguage"`       // Accept-Language header sent upstream
	ReqOrigin            string        `json:"reqOrigin"`            // Spoofed Origin header for upstream requests (empty = unset)
	ReqReferrer          string        `json:"reqReferrer"`          // Spoofed Referer header for upstream requests (empty = unset)
	UpstreamTimeout      time.Duration `json:"upstreamTimeout"`      // Per-request timeout for upstream fetches
	MaxManifestSize      int64         `json:"maxManifestSize"`      // Maximum manifest size in MB before a fetch is rejected
	CacheEnabled         bool          `json:"cacheEnabled"`         // Whether the playlist cache is enabled
	CacheDuration        time.Duration `json:"cacheDuration"`        // Duration before cached playlists expire
	CacheRefreshInterval time.Duration `json:"cacheRefreshInterval"` // Interval for background re-fetch of cached playlists
	WorkerThreads        int           `json:"workerThreads"`        // Number of worker threads for background tasks
	RateLimitPerHost     int           `json:"rateLimitPerHost"`     // Max upstream requests per second per host (0 = unlimited)
	LogLevel             string        `json:"logLevel"`             // Log level: DEBUG, INFO, WARN, ERROR
	ObfuscateUrls        bool          `json:"obfuscateUrls"`        // Obfuscate URLs in logs for security
}

// ConfigFile represents the JSON file structure for marshaling/unmarshaling
// configuration. String duration fields (e.g., "30s") are parsed into
// time.Duration values.
type ConfigFile struct {
	ListenPort           int    `json:"listenPort"`
	UserAgent            string `json:"userAgent"`
	AcceptLanguage       string `json:"acceptLanguage"`
	ReqOrigin            string `json:"reqOrigin"`
	ReqReferrer          string `json:"reqReferrer"`
	UpstreamTimeout      string `json:"upstreamTimeout"` // Duration as string (e.g., "30s")
	MaxManifestSize      int64  `json:"maxManifestSize"`
	CacheEnabled         bool   `json:"cacheEnabled"`
	CacheDuration        string `json:"cacheDuration"`        // Duration as string (e.g., "5m")
	CacheRefreshInterval string `json:"cacheRefreshInterval"` // Duration as string (e.g., "12h")
	WorkerThreads        int    `json:"workerThreads"`
	RateLimitPerHost     int    `json:"rateLimitPerHost"`
	LogLevel             string `json:"logLevel"`
	ObfuscateUrls        bool   `json:"obfuscateUrls"`
}

var (
	configCache *Config      // Cached configuration instance (singleton)
	configMutex sync.RWMutex // Mutex for safe concurrent access to configCache
)

// LoadConfig loads the configuration from file or returns the cached instance.
//
// Process:
//   - Uses double-checked locking to avoid redundant reloads.
//   - Attempts to load from `/settings/config.json`.
//   - Falls back to default config if file is missing or invalid.
//   - Runs validation to ensure safe defaults.
//
// Returns:
//   - *Config: fully validated configuration object
func LoadConfig() *Config {
	configMutex.RLock()
	if configCache != nil {
		defer configMutex.RUnlock()
		return configCache
	}
	configMutex.RUnlock()

	configMutex.Lock()
	defer configMutex.Unlock()

	// Double-check under write lock
	if configCache != nil {
		return configCache
	}

	// Attempt to load from file
	configPath := "/settings/config.json"
	config, err := loadFromFile(configPath)
	if err != nil {
		log.Printf("Failed to load config from %s: %v", configPath, err)
		log.Printf("Falling back to default configuration...")
		config = getDefaultConfig()
	}

	// Ensure safe defaults for missing values
	validateAndSetDefaults(config)

	// Cache for future calls
	configCache = config

	return config
}

// loadFromFile reads and parses the configuration from a JSON file.
//
// Parameters:
//   - path: path to JSON config file
//
// Returns:
//   - *Config: parsed configuration
//   - error: if reading/parsing failed
func loadFromFile(path string) (*Config, error) {

	// read from the file
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// unmarshal the config file
	var configFile ConfigFile
	if err := json.Unmarshal(data, &configFile); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	// convert to our settings
	return convertFromFile(&configFile)
}

// convertFromFile converts a ConfigFile to Config,
// parsing duration strings into time.Duration.
func convertFromFile(cf *ConfigFile) (*Config, error) {
	config := &Config{
		ListenPort:       cf.ListenPort,
		UserAgent:        cf.UserAgent,
		AcceptLanguage:   cf.AcceptLanguage,
		ReqOrigin:        cf.ReqOrigin,
		ReqReferrer:      cf.ReqReferrer,
		MaxManifestSize:  cf.MaxManifestSize,
		CacheEnabled:     cf.CacheEnabled,
		WorkerThreads:    cf.WorkerThreads,
		RateLimitPerHost: cf.RateLimitPerHost,
		LogLevel:         cf.LogLevel,
		ObfuscateUrls:    cf.ObfuscateUrls,
	}

	// Parse duration fields
	var err error
	if config.UpstreamTimeout, err = time.ParseDuration(cf.UpstreamTimeout); err != nil {
		return nil, fmt.Errorf("invalid upstreamTimeout: %w", err)
	}
	if config.CacheDuration, err = time.ParseDuration(cf.CacheDuration); err != nil {
		return nil, fmt.Errorf("invalid cacheDuration: %w", err)
	}
	if config.CacheRefreshInterval, err = time.ParseDuration(cf.CacheRefreshInterval); err != nil {
		return nil, fmt.Errorf("invalid cacheRefreshInterval: %w", err)
	}

	return config, nil
}

// getDefaultConfig returns a baseline configuration
// with sensible defaults when no file is present.
func getDefaultConfig() *Config {
	return &Config{
		ListenPort:           8080,                             // Default HTTP port
		UserAgent:            "Mozilla/5.0 (HLS-Bridge) Gecko", // Descriptive default UA
		AcceptLanguage:       "en-US,en;q=0.9",                 // Default Accept-Language
		ReqOrigin:            "",                               // No Origin spoofing by default
		ReqReferrer:          "",                               // No Referer spoofing by default
		UpstreamTimeout:      30 * time.Second,                 // Default upstream fetch timeout
		MaxManifestSize:      10,                               // Default: reject manifests over 10 MB
		CacheEnabled:         true,                             // Enable playlist caching
		CacheDuration:        5 * time.Minute,                  // Default 5 min playlist expiration
		CacheRefreshInterval: 12 * time.Hour,                   // Default: refresh playlists every 12 hours
		WorkerThreads:        8,                                // Default worker threads
		RateLimitPerHost:     0,                                // Unlimited upstream rate by default
		LogLevel:             "INFO",                           // Default log level
		ObfuscateUrls:        false,                            // Do not obfuscate by default
	}
}

// validateAndSetDefaults ensures all config values are valid,
// filling in defaults for missing/invalid ones.
func validateAndSetDefaults(config *Config) {
	if config.ListenPort <= 0 || config.ListenPort > 65535 {
		config.ListenPort = 8080
	}
	if config.UserAgent == "" {
		config.UserAgent = "Mozilla/5.0 (HLS-Bridge) Gecko"
	}
	if config.AcceptLanguage == "" {
		config.AcceptLanguage = "en-US,en;q=0.9"
	}
	if config.UpstreamTimeout <= 0 {
		config.UpstreamTimeout = 30 * time.Second
	}
	if config.MaxManifestSize <= 0 {
		config.MaxManifestSize = 10
	}
	if config.CacheDuration <= 0 {
		config.CacheDuration = 5 * time.Minute
	}
	if config.CacheRefreshInterval <= 0 {
		config.CacheRefreshInterval = 12 * time.Hour
	}
	if config.WorkerThreads <= 0 {
		config.WorkerThreads = 8
	}
	if config.RateLimitPerHost < 0 {
		config.RateLimitPerHost = 0
	}
	if config.LogLevel == "" {
		config.LogLevel = "INFO"
	}
	// ReqOrigin and ReqReferrer may remain empty
}

// CreateExampleConfig creates an example config file on disk.
//
// Parameters:
//   - path: file path to write example config
//
// Returns:
//   - error: if write fails
func CreateExampleConfig(path string) error {
	example := ConfigFile{
		ListenPort:           8080,
		UserAgent:            "Mozilla/5.0 (HLS-Bridge) Gecko",
		AcceptLanguage:       "en-US,en;q=0.9",
		ReqOrigin:            "https://provider.example.com",
		ReqReferrer:          "https://provider.example.com/player",
		UpstreamTimeout:      "30s",
		MaxManifestSize:      10,
		CacheEnabled:         true,
		CacheDuration:        "5m",
		CacheRefreshInterval: "12h",
		WorkerThreads:        4,
		RateLimitPerHost:     10,
		LogLevel:             "INFO",
		ObfuscateUrls:        true,
	}

	// setup the data properly
	data, err := json.MarshalIndent(example, "", "  ")
	if err != nil {
		return err
	}

	// write the config file
	return os.WriteFile(path, data, 0644)
}

// ClearConfigCache resets the configCache to nil.
// Forces a reload on the next LoadConfig() call.
func ClearConfigCache() {
	configMutex.Lock()
	defer configMutex.Unlock()
	configCache = nil
}
