package httpserver

import (
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/time/rate"
)

const (
	limiterCacheSize = 10_000
	limiterIdleTTL   = 10 * time.Minute
)

// RateLimiter applies a token bucket per client IP. Buckets expire from the
// cache limiterIdleTTL after creation.
type RateLimiter struct {
	mu      sync.Mutex
	limit   rate.Limit
	burst   int
	clients *expirable.LRU[string, *rate.Limiter]
	logger  *slog.Logger
}

// NewRateLimiter allows perMinute requests per client with the given burst.
// A non-positive perMinute disables limiting and returns nil.
func NewRateLimiter(perMinute int, burst int, logger *slog.Logger) *RateLimiter {
	if perMinute <= 0 {
		return nil
	}
	if burst <= 0 {
		burst = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &RateLimiter{
		limit:   rate.Limit(float64(perMinute) / 60),
		burst:   burst,
		clients: expirable.NewLRU[string, *rate.Limiter](limiterCacheSize, nil, limiterIdleTTL),
		logger:  logger,
	}
}

func (l *RateLimiter) Allow(client string) bool {
	return l.limiterFor(client).Allow()
}

func (l *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		client := resolveClientIP(r)
		limiter := l.limiterFor(client)
		if !limiter.Allow() {
			retryAfter := time.Duration(float64(time.Second) / float64(l.limit))
			w.Header().Set("Retry-After", strconv.Itoa(max(int(retryAfter.Seconds()), 1)))
			l.logger.Warn("rate limit exceeded",
				"event", "http_rate_limit_exceeded",
				"module", "internal/platform/httpserver",
				"layer", "platform",
				"client", client,
				"path", r.URL.Path,
			)
			writeGovernanceError(w, http.StatusTooManyRequests, "rate_limited", "too many requests")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (l *RateLimiter) limiterFor(client string) *rate.Limiter {
	if limiter, ok := l.clients.Get(client); ok {
		return limiter
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if limiter, ok := l.clients.Get(client); ok {
		return limiter
	}
	limiter := rate.NewLimiter(l.limit, l.burst)
	l.clients.Add(client, limiter)
	return limiter
}
