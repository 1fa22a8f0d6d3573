package middleware

import (
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"vcf-drop/pkg/errors"
	"vcf-drop/pkg/logger"

	"golang.org/x/time/rate"
)

const (
	visitorTTL      = 10 * time.Minute
	cleanupInterval = 5000
)

// KeyFunc selects the bucket a request is counted against
type KeyFunc func(*http.Request) string

// KeyByIP keys buckets by client address. Run chi's RealIP first so proxied
// requests are keyed by the forwarded address.
func KeyByIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return "ip:" + r.RemoteAddr
	}
	return "ip:" + host
}

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter is a per-key token bucket limiter. Buckets idle for longer
// than visitorTTL are evicted opportunistically during lookups. It is
// process-local; each replica enforces its own budget.
type RateLimiter struct {
	limit    rate.Limit
	burst    int
	keyFn    KeyFunc
	logger   *logger.Logger
	now      func() time.Time
	mu       sync.Mutex
	visitors map[string]*visitor
	lookups  uint64
}

// NewRateLimiter allows perMinute requests per key with the given burst
func NewRateLimiter(perMinute, burst int, keyFn KeyFunc, logger *logger.Logger) *RateLimiter {
	if burst <= 0 {
		burst = 1
	}
	if keyFn == nil {
		keyFn = KeyByIP
	}
	return &RateLimiter{
		limit:    rate.Limit(float64(perMinute) / 60),
		burst:    burst,
		keyFn:    keyFn,
		logger:   logger,
		now:      time.Now,
		visitors: make(map[string]*visitor),
	}
}

func (rl *RateLimiter) getVisitor(key string) *rate.Limiter {
	now := rl.now()

	rl.mu.Lock()
	defer rl.mu.Unlock()

	// Evict before touching key so an idle bucket is not refreshed
	rl.lookups++
	if rl.lookups >= cleanupInterval {
		for k, v := range rl.visitors {
			if now.Sub(v.lastSeen) >= visitorTTL {
				delete(rl.visitors, k)
			}
		}
		rl.lookups = 0
	}

	if v, ok := rl.visitors[key]; ok {
		v.lastSeen = now
		return v.limiter
	}

	lim := rate.NewLimiter(rl.limit, rl.burst)
	rl.visitors[key] = &visitor{limiter: lim, lastSeen: now}
	return lim
}

// Visitors returns the number of tracked buckets
func (rl *RateLimiter) Visitors() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.visitors)
}

// Handler rejects requests over the limit with 429 and Retry-After
func (rl *RateLimiter) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		lim := rl.getVisitor(rl.keyFn(r))

		reservation := lim.ReserveN(rl.now(), 1)
		if reservation.OK() && reservation.DelayFrom(rl.now()) == 0 {
			next.ServeHTTP(w, r)
			return
		}

		retryAfter := 1
		if reservation.OK() {
			if secs := int(reservation.DelayFrom(rl.now()).Seconds() + 0.999); secs > retryAfter {
				retryAfter = secs
			}
			reservation.CancelAt(rl.now())
		}

		rateLimitedTotal.Inc()
		w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
		writeErrorResponse(w, r, errors.NewRateLimitError(), rl.logger)
	})
}
