// Package ratelimit admits chat completion requests per client address with
// token buckets. Rejected requests receive a too_many_requests error before
// any agent run starts.
package ratelimit

import (
	"net"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/rhuss/agentbridge/pkg/api"
	"github.com/rhuss/agentbridge/pkg/observability"
	"github.com/rhuss/agentbridge/pkg/transport"
)

// Limit is the request budget of one client.
type Limit struct {
	RequestsPerMinute int
	Burst             int // defaults to RequestsPerMinute
}

// Limiter keeps one token bucket per client key. Buckets idle for longer
// than the idle timeout are dropped on the next sweep.
type Limiter struct {
	limit rate.Limit
	burst int
	idle  time.Duration
	now   func() time.Time

	mu        sync.Mutex
	buckets   map[string]*bucket
	lastSweep time.Time
}

type bucket struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

// New creates a Limiter. It returns nil when l.RequestsPerMinute is not
// positive, and a nil *Limiter admits everything.
func New(l Limit) *Limiter {
	if l.RequestsPerMinute <= 0 {
		return nil
	}
	burst := l.Burst
	if burst <= 0 {
		burst = l.RequestsPerMinute
	}
	return &Limiter{
		limit:   rate.Limit(float64(l.RequestsPerMinute) / 60),
		burst:   burst,
		idle:    10 * time.Minute,
		now:     time.Now,
		buckets: make(map[string]*bucket),
	}
}

// Allow consumes one token of key's bucket.
func (l *Limiter) Allow(key string) bool {
	if l == nil {
		return true
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	l.sweep(now)

	b, ok := l.buckets[key]
	if !ok {
		b = &bucket{lim: rate.NewLimiter(l.limit, l.burst)}
		l.buckets[key] = b
	}
	b.lastSeen = now
	return b.lim.AllowN(now, 1)
}

// Len returns the number of tracked clients.
func (l *Limiter) Len() int {
	if l == nil {
		return 0
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buckets)
}

func (l *Limiter) sweep(now time.Time) {
	if now.Sub(l.lastSweep) < l.idle {
		return
	}
	l.lastSweep = now
	for k, b := range l.buckets {
		if now.Sub(b.lastSeen) >= l.idle {
			delete(l.buckets, k)
		}
	}
}

// ClientKey identifies the client of r by remote host. Run it behind
// chi's RealIP middleware to honor proxy headers.
func ClientKey(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// Middleware rejects requests for paths in limited once their client ran
// out of tokens. Other paths pass through.
func Middleware(l *Limiter, logger *zap.Logger, limited ...string) func(http.Handler) http.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	paths := make(map[string]struct{}, len(limited))
	for _, p := range limited {
		paths[p] = struct{}{}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, ok := paths[r.URL.Path]; !ok || r.Method != http.MethodPost {
				next.ServeHTTP(w, r)
				return
			}

			key := ClientKey(r)
			if !l.Allow(key) {
				logger.Warn("rate limit exceeded", zap.String("client", key), zap.String("path", r.URL.Path))
				observability.RateLimitedTotal.WithLabelValues(r.URL.Path).Inc()
				w.Header().Set("Retry-After", "60")
				transport.WriteAPIError(w, api.NewTooManyRequestsError("rate limit exceeded"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
