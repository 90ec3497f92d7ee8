// Package config provides configuration management for the landkeeper
// runtime.
//
// This package handles environment variable loading with type-safe parsing,
// applies secure production defaults, and performs extensive validation of
// all configuration values.
//
// # Loading Configuration
//
// Configuration is loaded from environment variables:
//
//	cfg, err := config.Load()
//	if err != nil {
//	    log.Fatal(err)
//	}
//
// # Environment Variables
//
// Server settings:
//   - PORT: WebSocket/admin HTTP port (default: 8080)
//   - LOG_LEVEL: Logging verbosity (default: "info")
//   - TRANSPORT_ENCODING: Default wire encoding (default: "messagepack")
//
// Timeouts:
//   - REQUEST_TIMEOUT: Per-action processing deadline (default: 5s)
//   - RETIREMENT_GRACE: Empty-land collection delay (default: 15s)
//
// Security:
//   - ENABLE_DEV_MODE: Enable development mode (default: true)
//   - ALLOWED_ORIGINS: CORS allowed origins (comma-separated)
//   - MAX_REQUEST_SIZE: Maximum envelope size (default: 64KB)
//
// Rate limiting:
//   - RATE_LIMIT_REQUESTS_PER_SECOND: Requests per second (default: 5)
//   - RATE_LIMIT_BURST: Burst allowance (default: 10)
//
// Retry policy:
//   - RETRY_MAX_ATTEMPTS: Maximum attempts, including the first (default: 3)
//   - RETRY_INITIAL_DELAY: First retry delay (default: 100ms)
//   - RETRY_MAX_DELAY: Maximum retry delay (default: 30s)
//   - RETRY_BACKOFF_MULTIPLIER: Backoff factor (default: 2.0)
//
// Persistence:
//   - DATA_DIR: Replay recording storage directory (default: "./data/replays")
//   - AUTO_SAVE_INTERVAL: Auto-flush frequency (default: 30s)
//
// Matchmaking control plane (spec §4.5):
//   - REDIS_HOST / REDIS_PORT: backing store for tickets, queues, the
//     cluster directory, and single-login leases
//   - PROVISIONING_BASE_URL: provisioning registry base URL
//   - MATCHMAKING_ROLE: "api", "queue-worker", or "all"
//   - CLUSTER_DIRECTORY_TTL_SECONDS: single-login lease TTL (default: 8)
//   - NODE_ID: defaults to "node-<pid>" when unset
//
// # Validation
//
// All configuration values are validated on load:
//   - Port must be in valid range (1-65535)
//   - Timeouts must meet minimum requirements
//   - Rate limit values must be positive
//   - Retry configuration must be sensible
//   - Matchmaking role and cluster directory TTL must be sane
//
// # CORS Support
//
// Use OriginAllowed to check WebSocket origins:
//
//	if cfg.OriginAllowed(origin) {
//	    // Allow connection
//	}
//
// In development mode (EnableDevMode=true), all origins are allowed.
//
// # Retry Configuration
//
// GetRetryConfig returns a retry.RetryConfig that can be used directly
// with the retry package:
//
//	retryConfig := cfg.GetRetryConfig()
//	retrier := retry.NewRetrier(retryConfig)
//
// # Provisioning Registry Seeds
//
// LoadServerSeeds reads a static bootstrap list of provisioning registry
// entries (spec §4.5) from a YAML file, used by matchmaking processes to
// know about gameservers before any heartbeat has arrived:
//
//	seeds, err := config.LoadServerSeeds("seeds.yaml")
package config
