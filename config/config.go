package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig
	Browser   BrowserConfig
	Pipeline  PipelineConfig
	Reader    ReaderConfig
	Auth      AuthConfig
	RateLimit RateLimitConfig
	Log       LogConfig
}

// ServerConfig controls the HTTP server.
type ServerConfig struct {
	Host string // default: "0.0.0.0"
	Port int    // default: 8080
	Mode string // "debug", "release", "test"; default: "release"
}

// BrowserConfig controls the Rod browser behind /render-title.
type BrowserConfig struct {
	// Enabled toggles the render capability. When false the render
	// endpoint answers 501.
	Enabled bool // default: true

	// Headless controls whether the browser runs headless.
	Headless bool // default: true

	// MaxPages is the page pool capacity (max concurrent tabs).
	MaxPages int // default: 4

	// DefaultProxy is the default proxy URL for browser and proxy-endpoint traffic.
	DefaultProxy string

	// RelayPrivateTargets lets /proxy-fetch reach loopback, private and
	// link-local addresses. Off by default.
	RelayPrivateTargets bool

	// NoSandbox disables Chrome's sandbox (needed in Docker).
	NoSandbox bool // default: false

	// BrowserBin overrides the Chromium binary path.
	BrowserBin string

	// NavigationTimeout bounds page.Navigate.
	NavigationTimeout time.Duration // default: 25s

	// SettleTimeout bounds the wait for the DOM to settle after navigation.
	SettleTimeout time.Duration // default: 12s

	// BlockedResourceTypes lists resource types to block.
	// default: ["Image", "Font", "Media"]
	BlockedResourceTypes []string

	// BlockAds drops requests to known ad and tracking domains.
	BlockAds bool // default: true
}

// PipelineConfig controls the title pipeline's strategy ladder.
type PipelineConfig struct {
	DirectTimeout   time.Duration // default: 12s
	ReaderTimeout   time.Duration // default: 25s, covers every reader attempt
	OGTimeout       time.Duration // default: 10s
	CategoryTimeout time.Duration // default: 8s
	RenderTimeout   time.Duration // default: 25s

	// ProxyOrigin is the base origin of a /proxy-fetch endpoint. When set,
	// the pipeline falls back to it after a failed direct fetch.
	ProxyOrigin string

	// RenderOrigin is the base origin of a /render-title endpoint. When empty
	// the in-process browser is used if enabled.
	RenderOrigin string

	// CategoryAPI is the category lookup API base URL.
	CategoryAPI string // default: "https://api.mercadolibre.com"

	// EventLogCapacity bounds the in-memory observability ring buffer.
	EventLogCapacity int // default: 5000
}

// ReaderConfig controls the third-party reader service.
type ReaderConfig struct {
	BaseURL     string // default: "https://r.jina.ai"
	MaxAttempts int    // default: 3
}

// AuthConfig controls API key authentication.
type AuthConfig struct {
	// Enabled toggles API key authentication.
	Enabled bool // default: false

	// APIKeys is the list of valid API keys.
	APIKeys []string
}

// RateLimitConfig controls per-key rate limiting.
type RateLimitConfig struct {
	// RequestsPerSecond is the sustained rate per API key.
	RequestsPerSecond float64 // default: 2

	// Burst is the maximum burst size per API key.
	Burst int // default: 5
}

// LogConfig controls structured logging.
type LogConfig struct {
	Level  string // default: "info"
	Format string // "json" or "text"; default: "json"
}

// Load reads configuration from environment variables with sane defaults.
func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Host: envOr("RANKSCOPE_HOST", "0.0.0.0"),
			Port: envIntOr("RANKSCOPE_PORT", 8080),
			Mode: envOr("RANKSCOPE_MODE", "release"),
		},
		Browser: BrowserConfig{
			Enabled:           envBoolOr("RANKSCOPE_BROWSER_ENABLED", true),
			Headless:          envBoolOr("RANKSCOPE_HEADLESS", true),
			MaxPages:          envIntOr("RANKSCOPE_MAX_PAGES", 4),
			DefaultProxy:      os.Getenv("RANKSCOPE_PROXY"),
			NoSandbox:         envBoolOr("RANKSCOPE_NO_SANDBOX", false),
			BrowserBin:        os.Getenv("RANKSCOPE_BROWSER_BIN"),
			NavigationTimeout: envDurationOr("RANKSCOPE_RENDER_NAV_TIMEOUT", 25*time.Second),
			SettleTimeout:     envDurationOr("RANKSCOPE_RENDER_SETTLE", 12*time.Second),
			BlockedResourceTypes: envSliceOr("RANKSCOPE_BLOCKED_RESOURCES", []string{
				"Image", "Font", "Media",
			}),
			BlockAds:            envBoolOr("RANKSCOPE_BLOCK_ADS", true),
			RelayPrivateTargets: envBoolOr("RANKSCOPE_RELAY_PRIVATE", false),
		},
		Pipeline: PipelineConfig{
			DirectTimeout:    envDurationOr("RANKSCOPE_DIRECT_TIMEOUT", 12*time.Second),
			ReaderTimeout:    envDurationOr("RANKSCOPE_READER_TIMEOUT", 25*time.Second),
			OGTimeout:        envDurationOr("RANKSCOPE_OG_TIMEOUT", 10*time.Second),
			CategoryTimeout:  envDurationOr("RANKSCOPE_CATEGORY_TIMEOUT", 8*time.Second),
			RenderTimeout:    envDurationOr("RANKSCOPE_RENDER_TIMEOUT", 25*time.Second),
			ProxyOrigin:      strings.TrimRight(os.Getenv("RANKSCOPE_PROXY_ORIGIN"), "/"),
			RenderOrigin:     strings.TrimRight(os.Getenv("RANKSCOPE_RENDER_ORIGIN"), "/"),
			CategoryAPI:      strings.TrimRight(envOr("RANKSCOPE_CATEGORY_API", "https://api.mercadolibre.com"), "/"),
			EventLogCapacity: envIntOr("RANKSCOPE_EVENT_LOG_CAP", 5000),
		},
		Reader: ReaderConfig{
			BaseURL:     strings.TrimRight(envOr("RANKSCOPE_READER_BASE", "https://r.jina.ai"), "/"),
			MaxAttempts: envIntOr("RANKSCOPE_READER_ATTEMPTS", 3),
		},
		Auth: AuthConfig{
			Enabled: envBoolOr("RANKSCOPE_AUTH_ENABLED", false),
			APIKeys: envSliceOr("RANKSCOPE_API_KEYS", nil),
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: envFloatOr("RANKSCOPE_RATE_RPS", 2.0),
			Burst:             envIntOr("RANKSCOPE_RATE_BURST", 5),
		},
		Log: LogConfig{
			Level:  envOr("RANKSCOPE_LOG_LEVEL", "info"),
			Format: envOr("RANKSCOPE_LOG_FORMAT", "json"),
		},
	}
}

// --- helper functions ---

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envIntOr(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func envBoolOr(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envFloatOr(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envDurationOr(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func envSliceOr(key string, fallback []string) []string {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		result := make([]string, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				result = append(result, trimmed)
			}
		}
		return result
	}
	return fallback
}
