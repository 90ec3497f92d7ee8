package server

import (
	"context"
	"net"
	"net/http"
	"sync"
	"time"

	"landkeeper/pkg/config"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

// RateLimiter enforces a per-client-IP token bucket across the REST
// surfaces (matchmaking enqueue, provisioning heartbeat, admin) and
// cleans up idle buckets so long-running processes don't accumulate
// one limiter per IP forever.
type RateLimiter struct {
	mu              sync.RWMutex
	limiters        map[string]*rateLimiterEntry
	requestsPerSec  rate.Limit
	burst           int
	cleanupInterval time.Duration
	maxAge          time.Duration
	cancel          context.CancelFunc
}

type rateLimiterEntry struct {
	limiter    *rate.Limiter
	lastAccess time.Time
}

// NewRateLimiter builds a RateLimiter from config.Config's rate-limit
// fields and starts its background cleanup loop.
func NewRateLimiter(cfg *config.Config) *RateLimiter {
	ctx, cancel := context.WithCancel(context.Background())

	rl := &RateLimiter{
		limiters:        make(map[string]*rateLimiterEntry),
		requestsPerSec:  rate.Limit(cfg.RateLimitRequestsPerSecond),
		burst:           cfg.RateLimitBurst,
		cleanupInterval: cfg.RateLimitCleanupInterval,
		maxAge:          cfg.RateLimitCleanupInterval * 5,
		cancel:          cancel,
	}

	go rl.cleanupLoop(ctx)
	return rl
}

// Allow reports whether a request from ip should proceed.
func (rl *RateLimiter) Allow(ip string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	entry, ok := rl.limiters[ip]
	if !ok {
		entry = &rateLimiterEntry{limiter: rate.NewLimiter(rl.requestsPerSec, rl.burst)}
		rl.limiters[ip] = entry
	}
	entry.lastAccess = time.Now()
	return entry.limiter.Allow()
}

func (rl *RateLimiter) cleanupLoop(ctx context.Context) {
	ticker := time.NewTicker(rl.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			rl.cleanup()
		}
	}
}

func (rl *RateLimiter) cleanup() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	removed := 0
	for ip, entry := range rl.limiters {
		if now.Sub(entry.lastAccess) > rl.maxAge {
			delete(rl.limiters, ip)
			removed++
		}
	}
	if removed > 0 {
		logrus.WithField("removed", removed).Debug("cleaned up expired rate limiters")
	}
}

// Close stops the background cleanup loop.
func (rl *RateLimiter) Close() {
	rl.cancel()
}

// Middleware returns HTTP middleware enforcing rl per client IP,
// responding 429 Too Many Requests when exceeded. A nil RateLimiter
// disables rate limiting.
func Middleware(rl *RateLimiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if rl == nil {
				next.ServeHTTP(w, r)
				return
			}

			ip := clientIP(r)
			if !rl.Allow(ip) {
				logrus.WithFields(logrus.Fields{"client_ip": ip, "path": r.URL.Path}).Warn("request rate limited")
				w.Header().Set("Retry-After", "1")
				http.Error(w, "Too Many Requests", http.StatusTooManyRequests)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func clientIP(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
