// Package ratelimit implements keyed token-bucket limiters. The provider
// client waits on one bucket per upstream host; the HTTP API rejects callers
// that exceed their per-client bucket.
package ratelimit

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/JakeFAU/jobsignal/internal/metrics"
)

// Bucket table bounds used when Config leaves them zero.
const (
	DefaultIdleTTL = 10 * time.Minute
	DefaultMaxKeys = 10000
)

type entry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// Limiter manages one token bucket per key. Buckets idle longer than the
// idle TTL are swept, and the table never holds more than MaxKeys buckets.
type Limiter struct {
	mu           sync.Mutex
	limiters     map[string]*entry
	defaultRate  rate.Limit
	defaultBurst int
	idleTTL      time.Duration
	maxKeys      int
	lastSweep    time.Time
	now          func() time.Time
}

// Config holds rate limiter configuration. A non-positive rate disables limiting.
type Config struct {
	DefaultRPS   float64
	DefaultBurst int
	IdleTTL      time.Duration
	MaxKeys      int
}

// New creates a new Limiter.
func New(cfg Config) *Limiter {
	r := rate.Limit(cfg.DefaultRPS)
	if cfg.DefaultRPS <= 0 {
		r = rate.Inf
	}
	burst := cfg.DefaultBurst
	if burst <= 0 {
		burst = 1
	}
	if cfg.IdleTTL <= 0 {
		cfg.IdleTTL = DefaultIdleTTL
	}
	if cfg.MaxKeys <= 0 {
		cfg.MaxKeys = DefaultMaxKeys
	}
	return &Limiter{
		limiters:     make(map[string]*entry),
		defaultRate:  r,
		defaultBurst: burst,
		idleTTL:      cfg.IdleTTL,
		maxKeys:      cfg.MaxKeys,
		now:          time.Now,
	}
}

// PerMinute builds a Config allowing n requests per minute with a burst of n.
func PerMinute(n int) Config {
	if n <= 0 {
		return Config{}
	}
	return Config{DefaultRPS: float64(n) / 60, DefaultBurst: n}
}

func (l *Limiter) bucket(key string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()
	if e, ok := l.limiters[key]; ok {
		e.lastSeen = now
		return e.limiter
	}
	if now.Sub(l.lastSweep) >= l.idleTTL || len(l.limiters) >= l.maxKeys {
		l.sweep(now)
	}
	if len(l.limiters) >= l.maxKeys {
		l.evictOldest()
	}
	e := &entry{limiter: rate.NewLimiter(l.defaultRate, l.defaultBurst), lastSeen: now}
	l.limiters[key] = e
	return e.limiter
}

// sweep drops buckets idle for at least idleTTL. Callers hold mu.
func (l *Limiter) sweep(now time.Time) {
	for key, e := range l.limiters {
		if now.Sub(e.lastSeen) >= l.idleTTL {
			delete(l.limiters, key)
		}
	}
	l.lastSweep = now
}

// evictOldest drops the least recently used bucket. Callers hold mu.
func (l *Limiter) evictOldest() {
	var (
		oldestKey string
		oldest    time.Time
	)
	for key, e := range l.limiters {
		if oldestKey == "" || e.lastSeen.Before(oldest) {
			oldestKey, oldest = key, e.lastSeen
		}
	}
	delete(l.limiters, oldestKey)
}

// Len reports how many buckets are currently tracked.
func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.limiters)
}

// Wait blocks until a token is available for the host of rawURL.
func (l *Limiter) Wait(ctx context.Context, rawURL string) error {
	host := "unknown"
	if u, err := url.Parse(rawURL); err == nil && u.Hostname() != "" {
		host = u.Hostname()
	}
	start := time.Now()
	if err := l.bucket(host).Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}
	if d := time.Since(start); d > time.Millisecond {
		metrics.ObserveRateLimitDelay(host, d)
	}
	return nil
}

// Allow reports whether key may proceed now without waiting.
func (l *Limiter) Allow(key string) bool {
	return l.bucket(key).Allow()
}

// Middleware rejects requests with 429 once the client's bucket is empty.
// Clients are keyed by remote IP.
func (l *Limiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !l.Allow(clientKey(r)) {
			metrics.IncRateLimitRejections()
			w.Header().Set("Content-Type", "application/json")
			w.Header().Set("Retry-After", "60")
			w.WriteHeader(http.StatusTooManyRequests)
			_, _ = w.Write([]byte(`{"error":"rate limit exceeded"}` + "\n"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

func clientKey(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
