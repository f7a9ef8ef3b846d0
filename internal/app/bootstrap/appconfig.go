// internal/app/bootstrap/appconfig.go
package bootstrap

import "time"

// AppConfig holds service-specific configuration for this WAFFLE app.
//
// These values come from environment variables, configuration files, or
// command-line flags (loaded in LoadConfig). They represent *app-level*
// configuration, not WAFFLE core configuration.
//
// WAFFLE's CoreConfig handles framework-level settings like:
//   - HTTP/HTTPS ports and TLS configuration
//   - Logging level and format
//   - CORS settings
//   - Request body size limits
//   - Database connection timeouts
//
// AppConfig is where everything specific to this application lives.
type AppConfig struct {
	// MongoDB connection configuration
	MongoURI         string // MongoDB connection string (e.g., mongodb://localhost:27017)
	MongoDatabase    string // Database name within MongoDB
	MongoMaxPoolSize uint64 // Max connection pool size
	MongoMinPoolSize uint64 // Min connection pool size

	// Broadcast hub configuration
	HubSendBuffer int // Per-subscriber buffered channel capacity

	// Leaderboard configuration
	LeaderboardTopK int // Size of the watched top-of-leaderboard window

	// Store retry configuration (transient failures only)
	StoreRetryAttempts int
	StoreRetryBackoff  time.Duration

	// Registration surge protection
	RegistrationIPLimit   int // Attempts per IP per minute
	RegistrationUserLimit int // Attempts per user per minute
}
