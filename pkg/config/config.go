// Package config provides configuration management for the landkeeper
// runtime. It handles environment variable loading, validation, and
// provides secure defaults for production deployment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"landkeeper/pkg/retry"

	"github.com/sirupsen/logrus"
)

// MatchmakingRole selects which responsibilities a matchmaking process
// instance takes on. See spec §4.5.
type MatchmakingRole string

const (
	RoleAPI         MatchmakingRole = "api"
	RoleQueueWorker MatchmakingRole = "queue-worker"
	RoleAll         MatchmakingRole = "all"
)

// TransportEncoding selects the default wire encoding offered to sessions
// during join negotiation.
type TransportEncoding string

const (
	EncodingJSON        TransportEncoding = "json"
	EncodingOpcode      TransportEncoding = "opcode"
	EncodingMessagePack TransportEncoding = "messagepack"
)

// Config represents the server configuration with environment variable
// support. All configuration values can be set via environment variables or
// will use secure defaults appropriate for production deployment. Config is
// thread-safe; all field access should be done through getter methods when
// used concurrently, or by holding the mutex directly.
type Config struct {
	// mu provides thread-safe access to configuration fields when the Config
	// instance is shared across goroutines. Use RLock for reads and Lock for writes.
	mu sync.RWMutex `json:"-"`

	// ServerPort is the port the game WebSocket / admin HTTP server listens on.
	ServerPort int `json:"server_port"`

	// LogLevel controls the logging verbosity (debug, info, warn, error).
	LogLevel string `json:"log_level"`

	// AllowedOrigins is a list of allowed WebSocket origins for CORS.
	AllowedOrigins []string `json:"allowed_origins"`

	// MaxRequestSize is the maximum size of incoming envelopes/requests in bytes.
	MaxRequestSize int64 `json:"max_request_size"`

	// EnableDevMode enables development-friendly settings (broader CORS, verbose logging).
	EnableDevMode bool `json:"enable_dev_mode"`

	// RequestTimeout is the maximum duration for processing an action (§5
	// "Cancellation & timeouts").
	RequestTimeout time.Duration `json:"request_timeout"`

	// TransportEncoding is the default encoding advertised to sessions in
	// joinResponse when the client does not request one explicitly.
	TransportEncoding TransportEncoding `json:"transport_encoding"`

	// Rate limiting configuration

	RateLimitEnabled           bool          `json:"rate_limit_enabled"`
	RateLimitRequestsPerSecond float64       `json:"rate_limit_requests_per_second"`
	RateLimitBurst             int           `json:"rate_limit_burst"`
	RateLimitCleanupInterval   time.Duration `json:"rate_limit_cleanup_interval"`

	// Retry configuration

	RetryEnabled           bool          `json:"retry_enabled"`
	RetryMaxAttempts       int           `json:"retry_max_attempts"`
	RetryInitialDelay      time.Duration `json:"retry_initial_delay"`
	RetryMaxDelay          time.Duration `json:"retry_max_delay"`
	RetryBackoffMultiplier float64       `json:"retry_backoff_multiplier"`
	RetryJitterPercent     int           `json:"retry_jitter_percent"`

	// Persistence configuration (replay recordings, §4.6 / §9(b))

	DataDir          string        `json:"data_dir"`
	AutoSaveInterval time.Duration `json:"auto_save_interval"`

	// Server lifecycle timeouts

	ShutdownTimeout     time.Duration `json:"shutdown_timeout"`
	ShutdownGracePeriod time.Duration `json:"shutdown_grace_period"`

	// Land lifecycle (spec §9 open question (a): retirement grace)

	// RetirementGrace is how long a land keeper with zero attached sessions
	// stays alive before the realm collects it. The default is 15s,
	// overridable through RETIREMENT_GRACE; any value in [0, 60s] is spec-compliant.
	RetirementGrace time.Duration `json:"retirement_grace"`

	// Matchmaking control plane (spec §4.5, §6)

	RedisHost                    string          `json:"redis_host"`
	RedisPort                    int             `json:"redis_port"`
	ProvisioningBaseURL          string          `json:"provisioning_base_url"`
	MatchmakingRole              MatchmakingRole `json:"matchmaking_role"`
	MatchmakingMinWaitMs         int64           `json:"matchmaking_min_wait_ms"`
	MatchmakingRelaxAfterMs      int64           `json:"matchmaking_relax_after_ms"`
	MatchmakingTickInterval      time.Duration   `json:"matchmaking_tick_interval"`
	ClusterDirectoryTTLSeconds   int             `json:"cluster_directory_ttl_seconds"`
	NodeID                       string          `json:"node_id"`
	UseNodeInboxForMatchAssigned bool            `json:"use_node_inbox_for_match_assigned"`
}

// Load creates a new Config instance by reading from environment variables
// and applying secure defaults. It validates all configuration values and
// returns an error if any required values are missing or invalid.
func Load() (*Config, error) {
	logrus.WithFields(logrus.Fields{
		"function": "Load",
		"package":  "config",
	}).Debug("entering Load")

	cfg := &Config{
		ServerPort:        getEnvAsInt("PORT", 8080),
		LogLevel:          getEnvAsString("LOG_LEVEL", "info"),
		AllowedOrigins:    getEnvAsStringSlice("ALLOWED_ORIGINS", []string{}),
		MaxRequestSize:    getEnvAsInt64("MAX_REQUEST_SIZE", 64*1024),
		EnableDevMode:     getEnvAsBool("ENABLE_DEV_MODE", true),
		RequestTimeout:    getEnvAsDuration("REQUEST_TIMEOUT", 5*time.Second),
		TransportEncoding: TransportEncoding(getEnvAsString("TRANSPORT_ENCODING", string(EncodingMessagePack))),

		RateLimitEnabled:           getEnvAsBool("RATE_LIMIT_ENABLED", false),
		RateLimitRequestsPerSecond: getEnvAsFloat64("RATE_LIMIT_REQUESTS_PER_SECOND", 5),
		RateLimitBurst:             getEnvAsInt("RATE_LIMIT_BURST", 10),
		RateLimitCleanupInterval:   getEnvAsDuration("RATE_LIMIT_CLEANUP_INTERVAL", 1*time.Minute),

		RetryEnabled:           getEnvAsBool("RETRY_ENABLED", true),
		RetryMaxAttempts:       getEnvAsInt("RETRY_MAX_ATTEMPTS", 3),
		RetryInitialDelay:      getEnvAsDuration("RETRY_INITIAL_DELAY", 100*time.Millisecond),
		RetryMaxDelay:          getEnvAsDuration("RETRY_MAX_DELAY", 30*time.Second),
		RetryBackoffMultiplier: getEnvAsFloat64("RETRY_BACKOFF_MULTIPLIER", 2.0),
		RetryJitterPercent:     getEnvAsInt("RETRY_JITTER_PERCENT", 10),

		DataDir:          getEnvAsString("DATA_DIR", "./data/replays"),
		AutoSaveInterval: getEnvAsDuration("AUTO_SAVE_INTERVAL", 30*time.Second),

		ShutdownTimeout:     getEnvAsDuration("SHUTDOWN_TIMEOUT", 30*time.Second),
		ShutdownGracePeriod: getEnvAsDuration("SHUTDOWN_GRACE_PERIOD", 1*time.Second),

		RetirementGrace: getEnvAsDuration("RETIREMENT_GRACE", 15*time.Second),

		RedisHost:           getEnvAsString("REDIS_HOST", "localhost"),
		RedisPort:           getEnvAsInt("REDIS_PORT", 6379),
		ProvisioningBaseURL: getEnvAsString("PROVISIONING_BASE_URL", "http://localhost:8080"),
		MatchmakingRole:     MatchmakingRole(getEnvAsString("MATCHMAKING_ROLE", string(RoleAll))),

		MatchmakingMinWaitMs:         getEnvAsInt64("MATCHMAKING_MIN_WAIT_MS", 0),
		MatchmakingRelaxAfterMs:      getEnvAsInt64("MATCHMAKING_RELAX_AFTER_MS", 30000),
		MatchmakingTickInterval:      getEnvAsDuration("MATCHMAKING_TICK_INTERVAL", 3*time.Second),
		ClusterDirectoryTTLSeconds:   getEnvAsInt("CLUSTER_DIRECTORY_TTL_SECONDS", 8),
		NodeID:                       getEnvAsString("NODE_ID", ""),
		UseNodeInboxForMatchAssigned: getEnvAsBool("USE_NODE_INBOX_FOR_MATCH_ASSIGNED", false),
	}

	if cfg.NodeID == "" {
		cfg.NodeID = fmt.Sprintf("node-%d", os.Getpid())
	}

	logrus.WithFields(logrus.Fields{
		"function":    "Load",
		"package":     "config",
		"server_port": cfg.ServerPort,
		"node_id":     cfg.NodeID,
		"role":        cfg.MatchmakingRole,
	}).Debug("configuration loaded, starting validation")

	if err := cfg.validate(); err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "Load",
			"package":  "config",
			"error":    err,
		}).Error("configuration validation failed")
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// validate checks that all configuration values are valid and consistent.
func (c *Config) validate() error {
	if err := c.validateServerSettings(); err != nil {
		return err
	}
	if err := c.validateTimeouts(); err != nil {
		return err
	}
	if err := c.validateSecuritySettings(); err != nil {
		return err
	}
	if err := c.validateRateLimitConfig(); err != nil {
		return err
	}
	if err := c.validateRetryConfig(); err != nil {
		return err
	}
	if err := c.validateMatchmakingSettings(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateServerSettings() error {
	if c.ServerPort < 1 || c.ServerPort > 65535 {
		return fmt.Errorf("server port must be between 1 and 65535, got %d", c.ServerPort)
	}

	validLogLevels := []string{"debug", "info", "warn", "error"}
	found := false
	for _, level := range validLogLevels {
		if strings.ToLower(c.LogLevel) == level {
			found = true
			break
		}
	}
	if !found {
		return fmt.Errorf("log level must be one of %v, got %s", validLogLevels, c.LogLevel)
	}

	switch c.TransportEncoding {
	case EncodingJSON, EncodingOpcode, EncodingMessagePack:
	default:
		return fmt.Errorf("transport encoding must be one of json|opcode|messagepack, got %s", c.TransportEncoding)
	}

	return nil
}

func (c *Config) validateTimeouts() error {
	if c.RequestTimeout < time.Second {
		return fmt.Errorf("request timeout must be at least 1 second, got %v", c.RequestTimeout)
	}
	if c.RetirementGrace < 0 || c.RetirementGrace > 60*time.Second {
		return fmt.Errorf("retirement grace must be within [0, 60s], got %v", c.RetirementGrace)
	}
	return nil
}

func (c *Config) validateSecuritySettings() error {
	if c.MaxRequestSize < 1024 {
		return fmt.Errorf("max request size must be at least 1024 bytes, got %d", c.MaxRequestSize)
	}
	if !c.EnableDevMode && len(c.AllowedOrigins) == 0 {
		return fmt.Errorf("allowed origins must be specified when dev mode is disabled")
	}
	return nil
}

func (c *Config) validateRateLimitConfig() error {
	if c.RateLimitEnabled {
		if c.RateLimitRequestsPerSecond <= 0 {
			return fmt.Errorf("rate limit requests per second must be greater than 0 when rate limiting is enabled")
		}
		if c.RateLimitBurst <= 0 {
			return fmt.Errorf("rate limit burst must be greater than 0 when rate limiting is enabled")
		}
	}
	return nil
}

func (c *Config) validateRetryConfig() error {
	if c.RetryEnabled {
		if c.RetryMaxAttempts < 1 {
			return fmt.Errorf("retry max attempts must be at least 1 when retry is enabled")
		}
		if c.RetryInitialDelay < 0 {
			return fmt.Errorf("retry initial delay must be non-negative when retry is enabled")
		}
		if c.RetryMaxDelay < c.RetryInitialDelay {
			return fmt.Errorf("retry max delay must be greater than or equal to initial delay when retry is enabled")
		}
		if c.RetryBackoffMultiplier <= 1.0 {
			return fmt.Errorf("retry backoff multiplier must be greater than 1.0 when retry is enabled")
		}
		if c.RetryJitterPercent < 0 || c.RetryJitterPercent > 100 {
			return fmt.Errorf("retry jitter percent must be between 0 and 100 when retry is enabled")
		}
	}
	return nil
}

func (c *Config) validateMatchmakingSettings() error {
	switch c.MatchmakingRole {
	case RoleAPI, RoleQueueWorker, RoleAll:
	default:
		return fmt.Errorf("matchmaking role must be one of api|queue-worker|all, got %s", c.MatchmakingRole)
	}
	if c.MatchmakingMinWaitMs < 0 {
		return fmt.Errorf("matchmaking min wait ms must be non-negative")
	}
	if c.MatchmakingRelaxAfterMs < 0 {
		return fmt.Errorf("matchmaking relax after ms must be non-negative")
	}
	if c.ClusterDirectoryTTLSeconds < 1 {
		return fmt.Errorf("cluster directory ttl seconds must be at least 1")
	}
	return nil
}

// OriginAllowed checks if the given origin is allowed for WebSocket
// connections. In development mode, all origins are allowed. In production
// mode, only explicitly allowed origins are permitted. This method is
// thread-safe.
func (c *Config) OriginAllowed(origin string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.EnableDevMode {
		return true
	}
	for _, allowed := range c.AllowedOrigins {
		if origin == allowed {
			return true
		}
	}
	return false
}

// GetRetryConfig creates a retry.RetryConfig from the current configuration.
func (c *Config) GetRetryConfig() retry.RetryConfig {
	return retry.RetryConfig{
		MaxAttempts:       c.RetryMaxAttempts,
		InitialDelay:      c.RetryInitialDelay,
		MaxDelay:          c.RetryMaxDelay,
		BackoffMultiplier: c.RetryBackoffMultiplier,
		JitterMaxPercent:  c.RetryJitterPercent,
		RetryableErrors:   []error{},
	}
}

// RedisAddr returns the "host:port" address for the Redis connection.
func (c *Config) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.RedisHost, c.RedisPort)
}

// Helper functions for environment variable parsing with type safety and defaults

func getEnvAsString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getEnvAsStringSlice(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		parts := strings.Split(value, ",")
		result := make([]string, 0, len(parts))
		for _, part := range parts {
			if trimmed := strings.TrimSpace(part); trimmed != "" {
				result = append(result, trimmed)
			}
		}
		return result
	}
	return defaultValue
}

func getEnvAsFloat64(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}
