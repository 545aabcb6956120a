package http

import (
	"time"

	gocache "github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"
)

// RateLimitConfig sets the per-client token bucket. A non-positive RPS
// disables limiting.
type RateLimitConfig struct {
	RPS   float64
	Burst int
	// Idle is how long an unseen client keeps its bucket.
	Idle time.Duration
}

// ipRateLimiter keeps one token bucket per client IP. Buckets of idle
// clients expire out of the cache.
type ipRateLimiter struct {
	clients *gocache.Cache
	limit   rate.Limit
	burst   int
	enabled bool
}

func newIPRateLimiter(cfg RateLimitConfig) *ipRateLimiter {
	idle := cfg.Idle
	if idle <= 0 {
		idle = 10 * time.Minute
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}
	return &ipRateLimiter{
		clients: gocache.New(idle, idle/2),
		limit:   rate.Limit(cfg.RPS),
		burst:   burst,
		enabled: cfg.RPS > 0,
	}
}

func (l *ipRateLimiter) allow(clientIP string) bool {
	if !l.enabled {
		return true
	}
	return l.limiterFor(clientIP).Allow()
}

func (l *ipRateLimiter) limiterFor(clientIP string) *rate.Limiter {
	if v, ok := l.clients.Get(clientIP); ok {
		lim := v.(*rate.Limiter)
		// refresh the idle deadline
		l.clients.SetDefault(clientIP, lim)
		return lim
	}
	lim := rate.NewLimiter(l.limit, l.burst)
	if err := l.clients.Add(clientIP, lim, gocache.DefaultExpiration); err != nil {
		// another request created it first
		if v, ok := l.clients.Get(clientIP); ok {
			return v.(*rate.Limiter)
		}
	}
	return lim
}

// activeClients is the number of clients holding a bucket.
func (l *ipRateLimiter) activeClients() int {
	return l.clients.ItemCount()
}
