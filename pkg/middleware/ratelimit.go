package middleware

import (
	"context"
	"fmt"
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/platinummonkey/alertdesk/pkg/auth"
	"github.com/platinummonkey/alertdesk/pkg/httputil"
	"github.com/platinummonkey/alertdesk/pkg/observability"
)

// DefaultMaxBuckets bounds the number of keys tracked by the in-memory limiter
const DefaultMaxBuckets = 10000

// RateLimitConfig defines rate limiting configuration
type RateLimitConfig struct {
	// RequestsPerWindow is the max requests allowed in the time window
	RequestsPerWindow int `yaml:"requests_per_window"`
	// WindowDuration is the time window for rate limiting
	WindowDuration time.Duration `yaml:"window"`
	// BurstSize allows temporary bursts above the rate
	BurstSize int `yaml:"burst"`
}

// Capacity is the largest number of requests admitted back to back
func (c RateLimitConfig) Capacity() int {
	return c.RequestsPerWindow + c.BurstSize
}

// Validate checks that the config can admit requests
func (c RateLimitConfig) Validate() error {
	if c.RequestsPerWindow <= 0 {
		return fmt.Errorf("requests_per_window must be positive")
	}
	if c.WindowDuration <= 0 {
		return fmt.Errorf("window must be positive")
	}
	if c.BurstSize < 0 {
		return fmt.Errorf("burst must not be negative")
	}
	return nil
}

// TierPolicy maps callers to a budget. API keys use the budget of their
// rate_limit_tier, session and demo principals share the Session budget, and
// unauthenticated requests are limited per client IP. The unlimited tier is
// never limited.
type TierPolicy struct {
	Standard  RateLimitConfig `yaml:"standard"`
	Elevated  RateLimitConfig `yaml:"elevated"`
	Session   RateLimitConfig `yaml:"session"`
	Anonymous RateLimitConfig `yaml:"anonymous"`
}

// DefaultTierPolicy returns default per-tier rate limits
func DefaultTierPolicy() TierPolicy {
	return TierPolicy{
		Standard:  RateLimitConfig{RequestsPerWindow: 100, WindowDuration: time.Minute, BurstSize: 10},
		Elevated:  RateLimitConfig{RequestsPerWindow: 1000, WindowDuration: time.Minute, BurstSize: 100},
		Session:   RateLimitConfig{RequestsPerWindow: 1000, WindowDuration: time.Minute, BurstSize: 50},
		Anonymous: RateLimitConfig{RequestsPerWindow: 60, WindowDuration: time.Minute, BurstSize: 10},
	}
}

// Validate checks every budget in the policy
func (p TierPolicy) Validate() error {
	for name, cfg := range map[string]RateLimitConfig{
		"standard":  p.Standard,
		"elevated":  p.Elevated,
		"session":   p.Session,
		"anonymous": p.Anonymous,
	} {
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("rate limit tier %s: %w", name, err)
		}
	}
	return nil
}

// Select returns the limiter key, the metrics label and the budget for r.
// A nil budget means the request is not limited.
func (p TierPolicy) Select(r *http.Request) (key string, label string, cfg *RateLimitConfig) {
	principal := GetPrincipal(r)
	if principal == nil {
		return "ip:" + getClientIP(r), "anonymous", &p.Anonymous
	}

	if principal.Kind != auth.KindAPIKey {
		return fmt.Sprintf("user:%d", principal.UserID), "session", &p.Session
	}

	key = fmt.Sprintf("key:%d", principal.APIKeyID)
	switch principal.RateLimitTier {
	case auth.TierUnlimited:
		return key, string(auth.TierUnlimited), nil
	case auth.TierElevated:
		return key, string(auth.TierElevated), &p.Elevated
	default:
		return key, string(auth.TierStandard), &p.Standard
	}
}

// Decision is the outcome of one limiter check
type Decision struct {
	Allowed    bool
	Limit      int
	Remaining  int
	RetryAfter time.Duration
	Reset      time.Time
}

// Limiter admits or rejects one request for key under cfg
type Limiter interface {
	Allow(ctx context.Context, key string, cfg RateLimitConfig) (Decision, error)
}

// RateLimiter implements rate limiting using token bucket algorithm.
// Buckets live in an LRU cache so idle keys are evicted instead of swept.
type RateLimiter struct {
	buckets *lru.Cache[string, *bucket]
	mu      sync.Mutex
	now     func() time.Time
}

type bucket struct {
	tokens     float64
	lastUpdate time.Time
	mu         sync.Mutex
}

// NewRateLimiter creates a new in-memory rate limiter tracking at most maxBuckets keys
func NewRateLimiter(maxBuckets int) (*RateLimiter, error) {
	if maxBuckets <= 0 {
		maxBuckets = DefaultMaxBuckets
	}
	cache, err := lru.New[string, *bucket](maxBuckets)
	if err != nil {
		return nil, fmt.Errorf("failed to create bucket cache: %w", err)
	}
	return &RateLimiter{buckets: cache, now: time.Now}, nil
}

func (rl *RateLimiter) bucketFor(key string, capacity int, now time.Time) *bucket {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	b, ok := rl.buckets.Get(key)
	if !ok {
		b = &bucket{tokens: float64(capacity), lastUpdate: now}
		rl.buckets.Add(key, b)
	}
	return b
}

// Allow checks if a request is allowed for the given key
func (rl *RateLimiter) Allow(_ context.Context, key string, cfg RateLimitConfig) (Decision, error) {
	capacity := cfg.Capacity()
	now := rl.now()
	b := rl.bucketFor(key, capacity, now)

	b.mu.Lock()
	defer b.mu.Unlock()

	// Refill tokens based on elapsed time
	perToken := cfg.WindowDuration.Seconds() / float64(cfg.RequestsPerWindow)
	if elapsed := now.Sub(b.lastUpdate).Seconds(); elapsed > 0 {
		b.tokens = math.Min(float64(capacity), b.tokens+elapsed/perToken)
		b.lastUpdate = now
	}

	d := Decision{Limit: capacity}
	if b.tokens >= 1 {
		b.tokens--
		d.Allowed = true
	} else {
		d.RetryAfter = secondsToDuration((1 - b.tokens) * perToken)
	}
	d.Remaining = int(b.tokens)
	d.Reset = now.Add(secondsToDuration((float64(capacity) - b.tokens) * perToken))
	return d, nil
}

func secondsToDuration(secs float64) time.Duration {
	return time.Duration(math.Round(secs * float64(time.Second)))
}

// Len returns the number of tracked keys
func (rl *RateLimiter) Len() int {
	return rl.buckets.Len()
}

// RateLimitMiddleware provides HTTP rate limiting
type RateLimitMiddleware struct {
	limiter Limiter
	policy  TierPolicy
	metrics *observability.Metrics
}

// NewRateLimitMiddleware creates a new rate limit middleware. metrics may be nil.
func NewRateLimitMiddleware(limiter Limiter, policy TierPolicy, metrics *observability.Metrics) *RateLimitMiddleware {
	return &RateLimitMiddleware{
		limiter: limiter,
		policy:  policy,
		metrics: metrics,
	}
}

// Handler wraps an HTTP handler with rate limiting. Limiter failures let
// the request through.
func (m *RateLimitMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key, label, cfg := m.policy.Select(r)
		if cfg == nil {
			next.ServeHTTP(w, r)
			return
		}

		decision, err := m.limiter.Allow(r.Context(), key, *cfg)
		if err != nil {
			observability.FromContext(r.Context()).
				WithError(err).
				WithField("rate_limit_key", key).
				Warn("rate limiter unavailable, allowing request")
			next.ServeHTTP(w, r)
			return
		}

		setRateLimitHeaders(w, decision)
		if !decision.Allowed {
			m.metrics.RecordRateLimited(label)
			httputil.WriteTooManyRequests(w, decision.RetryAfter)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func setRateLimitHeaders(w http.ResponseWriter, d Decision) {
	w.Header().Set("X-RateLimit-Limit", strconv.Itoa(d.Limit))
	w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(d.Remaining))
	if !d.Reset.IsZero() {
		w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(d.Reset.Unix(), 10))
	}
}

func getClientIP(r *http.Request) string {
	// Check X-Forwarded-For header (if behind proxy); the first hop is the client
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		first, _, _ := strings.Cut(forwarded, ",")
		return strings.TrimSpace(first)
	}

	if realIP := r.Header.Get("X-Real-IP"); realIP != "" {
		return realIP
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
