// internal/app/bootstrap/config.go
package bootstrap

import (
	"fmt"
	"time"

	"github.com/dalemusser/waffle/config"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"go.uber.org/zap"
)

// appConfigKeys defines the configuration keys for CompHub.
// These are loaded via WAFFLE's config system with support for:
//   - Config files: mongo_uri, hub_send_buffer, etc.
//   - Environment variables: COMPHUB_MONGO_URI, COMPHUB_HUB_SEND_BUFFER, etc.
//   - Command-line flags: --mongo_uri, --hub_send_buffer, etc.
var appConfigKeys = []config.AppKey{
	{Name: "mongo_uri", Default: "mongodb://localhost:27017", Desc: "MongoDB connection URI"},
	{Name: "mongo_database", Default: "comp_hub", Desc: "MongoDB database name"},
	{Name: "mongo_max_pool_size", Default: 100, Desc: "MongoDB max connection pool size (default: 100)"},
	{Name: "mongo_min_pool_size", Default: 10, Desc: "MongoDB min connection pool size (default: 10)"},

	// Broadcast hub
	{Name: "hub_send_buffer", Default: 32, Desc: "Per-subscriber message buffer; a full buffer drops the subscriber"},

	// Leaderboard
	{Name: "leaderboard_top_k", Default: 25, Desc: "Size of the watched top-of-leaderboard window"},

	// Store retries
	{Name: "store_retry_attempts", Default: 3, Desc: "Bounded retry attempts for transient store failures"},
	{Name: "store_retry_backoff", Default: "50ms", Desc: "Base backoff between store retries"},

	// Registration surge protection
	{Name: "registration_ip_limit", Default: 30, Desc: "Registration attempts per IP per minute"},
	{Name: "registration_user_limit", Default: 10, Desc: "Registration attempts per user per minute"},
}

// LoadConfig loads WAFFLE core config and app-specific config.
//
// It is called early in startup so that both WAFFLE and the app have
// access to configuration before any backends or handlers are built.
// CoreConfig comes from the shared WAFFLE layer; AppConfig is specific
// to this app and can be extended as the app grows.
//
// WAFFLE's config.LoadWithAppConfig handles:
//   - Loading from .env files
//   - Loading from config.yaml/json/toml files
//   - Reading environment variables (WAFFLE_* for core, COMPHUB_* for app)
//   - Parsing command-line flags
//   - Merging with precedence: flags > env > files > defaults
func LoadConfig(logger *zap.Logger) (*config.CoreConfig, AppConfig, error) {
	coreCfg, appValues, err := config.LoadWithAppConfig(logger, "COMPHUB", appConfigKeys)
	if err != nil {
		return nil, AppConfig{}, err
	}

	appCfg := AppConfig{
		MongoURI:         appValues.String("mongo_uri"),
		MongoDatabase:    appValues.String("mongo_database"),
		MongoMaxPoolSize: uint64(appValues.Int("mongo_max_pool_size")),
		MongoMinPoolSize: uint64(appValues.Int("mongo_min_pool_size")),

		HubSendBuffer:   appValues.Int("hub_send_buffer"),
		LeaderboardTopK: appValues.Int("leaderboard_top_k"),

		StoreRetryAttempts: appValues.Int("store_retry_attempts"),
		StoreRetryBackoff:  appValues.Duration("store_retry_backoff", 50*time.Millisecond),

		RegistrationIPLimit:   appValues.Int("registration_ip_limit"),
		RegistrationUserLimit: appValues.Int("registration_user_limit"),
	}

	return coreCfg, appCfg, nil
}

// ValidateConfig performs app-specific config validation.
//
// Return nil to accept the loaded config, or an error to abort startup.
// This is the right place to enforce required fields or invariants that
// involve both the core and app configs.
//
// CompHub validates the MongoDB URI format to catch configuration
// errors early, before attempting to connect.
func ValidateConfig(coreCfg *config.CoreConfig, appCfg AppConfig, logger *zap.Logger) error {
	if err := wafflemongo.ValidateURI(appCfg.MongoURI); err != nil {
		logger.Error("invalid MongoDB URI", zap.Error(err))
		return fmt.Errorf("invalid MongoDB URI: %w", err)
	}

	if appCfg.HubSendBuffer <= 0 {
		return fmt.Errorf("hub_send_buffer must be positive, got %d", appCfg.HubSendBuffer)
	}
	if appCfg.LeaderboardTopK <= 0 {
		return fmt.Errorf("leaderboard_top_k must be positive, got %d", appCfg.LeaderboardTopK)
	}
	if appCfg.StoreRetryAttempts <= 0 {
		return fmt.Errorf("store_retry_attempts must be positive, got %d", appCfg.StoreRetryAttempts)
	}

	return nil
}
