// Package config provides centralized configuration loaded from environment
// variables. Shared by the scan and serve commands.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config is populated from environment variables with sensible defaults.
// Nothing here is required: an empty webhook URL just disables notification
// delivery, and the RIDB API key is only needed for Recreation.gov listing.
type Config struct {
	// Data directory holding rec-areas.json, scan-state.json,
	// favorites.json, and availability.json.
	DataDir string

	// Notification webhook (Discord-compatible). Empty = disabled.
	WebhookURL string

	// Public availability page linked from notifications.
	PublicURL string

	// Provider clients
	RIDBAPIKey        string
	RequestsPerMinute int
	QueryTimeout      time.Duration

	// Rotation
	DefaultBatchSize int

	// API server (serve command)
	APIHost          string
	APIPort          int
	CORSAllowOrigins []string
}

// Load reads configuration from environment variables.
func Load() *Config {
	return &Config{
		DataDir:    envOr("CAMPWATCH_DATA_DIR", "data"),
		WebhookURL: envOr("CAMPING_WEBHOOK_URL", ""),
		PublicURL:  envOr("CAMPWATCH_PUBLIC_URL", "https://ethanrabb.com/camping"),

		RIDBAPIKey:        envOr("RIDB_API_KEY", ""),
		RequestsPerMinute: envInt("PROVIDER_REQUESTS_PER_MINUTE", 30),
		QueryTimeout:      time.Duration(envInt("PROVIDER_QUERY_TIMEOUT_SECONDS", 30)) * time.Second,

		DefaultBatchSize: envInt("CAMPWATCH_BATCH_SIZE", 4),

		APIHost: envOr("API_HOST", "0.0.0.0"),
		APIPort: envInt("API_PORT", 8000),
		CORSAllowOrigins: envList("CORS_ALLOW_ORIGINS", []string{
			"http://localhost:3000",
			"http://localhost:4321",
		}),
	}
}

// --------------------------------------------------------------------------
// Env helpers
// --------------------------------------------------------------------------

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envList(key string, fallback []string) []string {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		result := make([]string, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				result = append(result, trimmed)
			}
		}
		if len(result) > 0 {
			return result
		}
	}
	return fallback
}
