// Package ratelimit throttles writes per caller. Each key gets its own
// token bucket; a request that finds its bucket empty gets a 429 with a
// Retry-After hint.
package ratelimit

import (
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/example/animestream/internal/platform/api"
	"github.com/example/animestream/internal/platform/httpserver"
)

// maxKeys bounds the bucket table; reaching it sweeps refilled buckets.
const maxKeys = 10000

// maxRetryAfter caps the hint sent to clients of a bucket that never refills.
const maxRetryAfter = time.Minute

// KeyFunc picks the bucket for a request.
type KeyFunc func(r *http.Request) string

type Limiter struct {
	mu      sync.Mutex
	buckets map[string]*rate.Limiter
	every   rate.Limit
	burst   int
	key     KeyFunc
	now     func() time.Time
}

// New returns a limiter refilling perSecond tokens up to burst. A nil key
// buckets by client IP.
func New(perSecond float64, burst int, key KeyFunc) *Limiter {
	if burst < 1 {
		burst = 1
	}
	if key == nil {
		key = ClientIP
	}
	return &Limiter{
		buckets: make(map[string]*rate.Limiter),
		every:   rate.Limit(perSecond),
		burst:   burst,
		key:     key,
		now:     time.Now,
	}
}

// Allow takes one token from key's bucket.
func (l *Limiter) Allow(key string) bool {
	ok, _ := l.take(key)
	return ok
}

// take reports whether a token was available and, when not, how long until
// one will be.
func (l *Limiter) take(key string) (bool, time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	b, ok := l.buckets[key]
	if !ok {
		if len(l.buckets) >= maxKeys {
			l.sweep(now)
		}
		b = rate.NewLimiter(l.every, l.burst)
		l.buckets[key] = b
	}

	res := b.ReserveN(now, 1)
	if !res.OK() {
		return false, maxRetryAfter
	}
	if wait := res.DelayFrom(now); wait > 0 {
		res.CancelAt(now)
		return false, min(wait, maxRetryAfter)
	}
	return true, 0
}

// sweep drops buckets that have refilled completely.
func (l *Limiter) sweep(now time.Time) {
	for k, b := range l.buckets {
		if b.TokensAt(now) >= float64(l.burst) {
			delete(l.buckets, k)
		}
	}
}

// Middleware answers 429 RATE_LIMITED once the request's bucket is empty.
func (l *Limiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ok, wait := l.take(l.key(r))
		if !ok {
			w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(wait.Seconds()))))
			api.RateLimited(w, "RATE_LIMITED", "Too many requests", httpserver.RequestIDFromContext(r.Context()), nil)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// ClientIP is the first X-Forwarded-For hop, or the remote address host.
func ClientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
