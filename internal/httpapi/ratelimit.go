package httpapi

import (
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/erauner12/shiftsync/internal/auth"
)

const (
	bucketIdleTTL = time.Hour
	sweepEvery    = 10 * time.Minute
)

// decision is the outcome of one rate limit check.
type decision struct {
	allowed   bool
	remaining int
	retryAt   time.Time // when the next token is available
	resetAt   time.Time // when the bucket is full again
}

// bucket is a token bucket. Burst bounds back-to-back pushes, such as a
// device saving a rapid sequence of edits; rate is the sustained refill.
type bucket struct {
	mu       sync.Mutex
	tokens   float64
	burst    float64
	rate     float64 // tokens per second
	lastSeen time.Time
}

func newBucket(burst int, rate float64, now time.Time) *bucket {
	return &bucket{tokens: float64(burst), burst: float64(burst), rate: rate, lastSeen: now}
}

func (b *bucket) take(now time.Time) decision {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.tokens = min(b.burst, b.tokens+now.Sub(b.lastSeen).Seconds()*b.rate)
	b.lastSeen = now

	d := decision{resetAt: now.Add(b.secondsFor(b.burst - b.tokens))}
	if b.tokens >= 1 {
		b.tokens--
		d.allowed = true
		d.remaining = int(b.tokens)
		d.retryAt = now
		return d
	}
	d.retryAt = now.Add(b.secondsFor(1 - b.tokens))
	return d
}

func (b *bucket) secondsFor(tokens float64) time.Duration {
	return time.Duration(tokens / b.rate * float64(time.Second))
}

func (b *bucket) idleSince(now time.Time) time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()
	return now.Sub(b.lastSeen)
}

// limiter keeps one bucket per client identity. Idle buckets are swept
// lazily when new identities arrive.
type limiter struct {
	cfg  RateLimitInfo
	now  func() time.Time
	rate float64

	mu        sync.Mutex
	buckets   map[string]*bucket
	lastSweep time.Time
}

func newLimiter(cfg RateLimitInfo) *limiter {
	if cfg.WindowSeconds <= 0 {
		cfg.WindowSeconds = 60
	}
	if cfg.MaxRequests <= 0 {
		cfg.MaxRequests = cfg.WindowSeconds
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 1
	}
	return &limiter{
		cfg:       cfg,
		now:       time.Now,
		rate:      float64(cfg.MaxRequests) / float64(cfg.WindowSeconds),
		buckets:   make(map[string]*bucket),
		lastSweep: time.Now(),
	}
}

func (l *limiter) allow(id string) decision {
	now := l.now()

	l.mu.Lock()
	b, ok := l.buckets[id]
	if !ok {
		if now.Sub(l.lastSweep) > sweepEvery {
			l.sweep(now)
		}
		b = newBucket(l.cfg.Burst, l.rate, now)
		l.buckets[id] = b
	}
	l.mu.Unlock()

	return b.take(now)
}

// sweep drops buckets unused for bucketIdleTTL. Caller holds l.mu.
func (l *limiter) sweep(now time.Time) {
	for id, b := range l.buckets {
		if b.idleSince(now) > bucketIdleTTL {
			delete(l.buckets, id)
		}
	}
	l.lastSweep = now
}

// clientIdentity picks the rate limit key: device, then subject, then address.
func clientIdentity(r *http.Request) string {
	if id := GetDeviceID(r.Context()); id != "" {
		return "device:" + id
	}
	if sub := auth.Subject(r.Context()); sub != "" {
		return "sub:" + sub
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	return "addr:" + host
}

// RateLimitMiddleware enforces a token bucket per client identity and
// answers 429 with Retry-After once it is empty.
func RateLimitMiddleware(cfg RateLimitInfo) func(http.Handler) http.Handler {
	l := newLimiter(cfg)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := clientIdentity(r)
			d := l.allow(id)

			h := w.Header()
			h.Set("X-RateLimit-Limit", strconv.Itoa(cfg.MaxRequests))
			h.Set("X-RateLimit-Remaining", strconv.Itoa(d.remaining))
			h.Set("X-RateLimit-Reset", strconv.FormatInt(d.resetAt.Unix(), 10))
			h.Set("X-RateLimit-Burst", strconv.Itoa(l.cfg.Burst))

			if d.allowed {
				next.ServeHTTP(w, r)
				return
			}

			retryAfter := max(1, int(time.Until(d.retryAt).Seconds()))
			h.Set("Retry-After", strconv.Itoa(retryAfter))

			log.Ctx(r.Context()).Warn().
				Str("client", id).
				Str("path", r.URL.Path).
				Int("retryAfter", retryAfter).
				Msg("Rate limit exceeded")

			writeError(w, r, http.StatusTooManyRequests,
				"Rate limit exceeded. Please retry after "+strconv.Itoa(retryAfter)+" seconds.")
		})
	}
}
