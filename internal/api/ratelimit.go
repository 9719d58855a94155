package api

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"
)

// RefillRateLimitScope namespaces refill creation counters in Redis.
const RefillRateLimitScope = "refill_create"

// RateLimiter decides whether one more request from key fits in the budget.
// retryAfter is in seconds and only meaningful when allowed is false.
type RateLimiter interface {
	Allow(ctx context.Context, key string) (allowed bool, retryAfter int, err error)
}

var fixedWindowScript = redis.NewScript(`
local current = redis.call("INCR", KEYS[1])
if current == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
local ttl = redis.call("PTTL", KEYS[1])
if ttl < 0 then
  ttl = tonumber(ARGV[1])
end
return {current, ttl}
`)

// RedisRateLimiter implements a distributed fixed-window limiter on Redis.
type RedisRateLimiter struct {
	client redis.UniversalClient
	prefix string
	scope  string
	limit  int
	window time.Duration
}

func NewRedisRateLimiter(client redis.UniversalClient, prefix, scope string, limit int, window time.Duration) *RedisRateLimiter {
	trimmedPrefix := strings.TrimSpace(prefix)
	if trimmedPrefix == "" {
		trimmedPrefix = "fuel:rate_limit"
	}
	trimmedPrefix = strings.TrimSuffix(trimmedPrefix, ":")

	return &RedisRateLimiter{
		client: client,
		prefix: trimmedPrefix,
		scope:  strings.TrimSpace(scope),
		limit:  limit,
		window: window,
	}
}

// Consume increments the counter for subject and returns the count in the
// current window along with the seconds until it resets.
func (r *RedisRateLimiter) Consume(ctx context.Context, subject string) (count int, retryAfterSeconds int, err error) {
	if r == nil || r.client == nil || r.limit <= 0 || r.window <= 0 {
		return 0, 0, nil
	}

	normalizedSubject := strings.TrimSpace(subject)
	if r.scope == "" || normalizedSubject == "" {
		return 0, 0, nil
	}

	windowMs := r.window.Milliseconds()
	if windowMs < 1000 {
		windowMs = 1000
	}

	key := fmt.Sprintf("%s:%s:%s", r.prefix, r.scope, normalizedSubject)
	rawResult, err := fixedWindowScript.Run(ctx, r.client, []string{key}, windowMs).Result()
	if err != nil {
		return 0, 0, err
	}

	values, ok := rawResult.([]interface{})
	if !ok || len(values) != 2 {
		return 0, 0, fmt.Errorf("unexpected redis limiter response shape: %T", rawResult)
	}

	currentCount, ok := values[0].(int64)
	if !ok {
		return 0, 0, fmt.Errorf("unexpected redis limiter count type: %T", values[0])
	}

	ttlMs, ok := values[1].(int64)
	if !ok {
		return int(currentCount), 0, fmt.Errorf("unexpected redis limiter ttl type: %T", values[1])
	}
	if ttlMs < 0 {
		ttlMs = windowMs
	}

	retryAfter := int(math.Ceil(float64(ttlMs) / 1000.0))
	if retryAfter < 1 {
		retryAfter = 1
	}

	return int(currentCount), retryAfter, nil
}

func (r *RedisRateLimiter) Allow(ctx context.Context, key string) (bool, int, error) {
	count, retryAfter, err := r.Consume(ctx, key)
	if err != nil {
		return true, 0, err
	}
	if count > r.limit {
		return false, retryAfter, nil
	}
	return true, 0, nil
}

// LocalRateLimiter is an in-process token bucket per key, used when Redis is
// not configured. Idle keys are dropped by Cleanup.
type LocalRateLimiter struct {
	mu      sync.Mutex
	entries map[string]*localEntry
	every   rate.Limit
	burst   int
	idleTTL time.Duration
	now     func() time.Time
}

type localEntry struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

// NewLocalRateLimiter allows limit requests per window with a burst of limit.
func NewLocalRateLimiter(limit int, window time.Duration) *LocalRateLimiter {
	if limit <= 0 {
		limit = 1
	}
	if window <= 0 {
		window = time.Minute
	}
	return &LocalRateLimiter{
		entries: make(map[string]*localEntry),
		every:   rate.Every(window / time.Duration(limit)),
		burst:   limit,
		idleTTL: 15 * time.Minute,
		now:     time.Now,
	}
}

func (l *LocalRateLimiter) limiter(key string) *rate.Limiter {
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	if ent, ok := l.entries[key]; ok {
		ent.lastSeen = now
		return ent.lim
	}
	lim := rate.NewLimiter(l.every, l.burst)
	l.entries[key] = &localEntry{lim: lim, lastSeen: now}
	return lim
}

func (l *LocalRateLimiter) Allow(ctx context.Context, key string) (bool, int, error) {
	now := l.now()
	res := l.limiter(key).ReserveN(now, 1)
	if !res.OK() {
		return false, 1, nil
	}
	delay := res.DelayFrom(now)
	if delay == 0 {
		return true, 0, nil
	}
	res.CancelAt(now)
	return false, int(math.Max(1, math.Ceil(delay.Seconds()))), nil
}

// Cleanup removes keys not seen within the idle TTL.
func (l *LocalRateLimiter) Cleanup() {
	cutoff := l.now().Add(-l.idleTTL)

	l.mu.Lock()
	defer l.mu.Unlock()

	for k, ent := range l.entries {
		if ent.lastSeen.Before(cutoff) {
			delete(l.entries, k)
		}
	}
}

// StartJanitor runs Cleanup every interval until ctx is done.
func (l *LocalRateLimiter) StartJanitor(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	t := time.NewTicker(interval)
	go func() {
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				l.Cleanup()
			}
		}
	}()
}

// rateLimitKey identifies the caller by API key, falling back to the remote IP.
func rateLimitKey(r *http.Request) string {
	if key := strings.TrimSpace(r.Header.Get(apiKeyHeader)); key != "" {
		return "key:" + key
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	return "ip:" + host
}

// RateLimitMiddleware rejects requests over budget with 429. Limiter errors
// are logged and the request is let through.
func RateLimitMiddleware(limiter RateLimiter, logger *slog.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if limiter == nil {
				next.ServeHTTP(w, r)
				return
			}
			allowed, retryAfter, err := limiter.Allow(r.Context(), rateLimitKey(r))
			if err != nil {
				logger.Warn("rate limiter unavailable; allowing request", "component", "api", "error", err)
				next.ServeHTTP(w, r)
				return
			}
			if !allowed {
				w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
				respondWithError(w, http.StatusTooManyRequests, "Too many requests. Please try again later.")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
