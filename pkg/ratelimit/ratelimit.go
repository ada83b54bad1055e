// Package ratelimit meters the HTTP surface with per-client token buckets.
package ratelimit

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// Tier names a class of routes sharing one budget. Buckets are keyed by
// (tier, client IP), so a client exhausting the privileged budget keeps its
// read access.
type Tier string

const (
	// TierRead covers unauthenticated read endpoints such as /status.
	TierRead Tier = "read"
	// TierPrivileged covers deploy and token endpoints. These are rare,
	// operator-driven actions; tight limits blunt brute-force attempts
	// against the auth token.
	TierPrivileged Tier = "privileged"
	// TierFederation covers the /federation/* endpoints of an embedded
	// resolver. Every node in the fleet hits these on short timers, so the
	// limits are generous.
	TierFederation Tier = "federation"
)

// Budget is the per-client allowance for one tier.
type Budget struct {
	// Rate is the sustained number of requests allowed per second.
	Rate rate.Limit
	// Burst is the bucket size.
	Burst int
	// MaxAge is how long an idle client's bucket is kept before eviction.
	MaxAge time.Duration
}

// Defaults returns the standard budgets for the node surface.
func Defaults() map[Tier]Budget {
	return map[Tier]Budget{
		TierRead:       {Rate: 20, Burst: 50, MaxAge: 5 * time.Minute},
		TierPrivileged: {Rate: 2, Burst: 5, MaxAge: 10 * time.Minute},
		TierFederation: {Rate: 200, Burst: 500, MaxAge: 5 * time.Minute},
	}
}

type client struct {
	bucket  *rate.Limiter
	expires time.Time
}

// Limiter holds one token bucket per (tier, client IP) pair. A single sweep
// goroutine evicts clients whose bucket has not been touched within the
// tier's MaxAge.
type Limiter struct {
	mu      sync.Mutex
	budgets map[Tier]Budget
	clients map[string]*client
	sweep   time.Duration
	done    chan struct{}
}

// New starts a limiter with the given budgets. Call Stop to release the
// sweep goroutine.
func New(budgets map[Tier]Budget) *Limiter {
	l := &Limiter{
		budgets: budgets,
		clients: make(map[string]*client),
		sweep:   time.Minute,
		done:    make(chan struct{}),
	}
	go l.run()
	return l
}

// Allow reports whether a request from ip fits the tier's budget. Tiers
// without a configured budget are not metered.
func (l *Limiter) Allow(tier Tier, ip string) bool {
	budget, ok := l.budgets[tier]
	if !ok {
		return true
	}
	key := string(tier) + "|" + ip

	l.mu.Lock()
	defer l.mu.Unlock()

	cl := l.clients[key]
	if cl == nil {
		cl = &client{bucket: rate.NewLimiter(budget.Rate, budget.Burst)}
		l.clients[key] = cl
	}
	cl.expires = time.Now().Add(budget.MaxAge)
	return cl.bucket.Allow()
}

// Middleware returns a gin handler that rejects over-budget requests with
// 429 before they reach the route.
func (l *Limiter) Middleware(tier Tier) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !l.Allow(tier, c.ClientIP()) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error": "Rate limit exceeded, please try again later",
			})
			return
		}
		c.Next()
	}
}

// Stop ends the sweep goroutine.
func (l *Limiter) Stop() {
	close(l.done)
}

func (l *Limiter) run() {
	ticker := time.NewTicker(l.sweep)
	defer ticker.Stop()

	for {
		select {
		case <-l.done:
			return
		case now := <-ticker.C:
			l.evict(now)
		}
	}
}

func (l *Limiter) evict(now time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for key, cl := range l.clients {
		if now.After(cl.expires) {
			delete(l.clients, key)
		}
	}
}

// Tracked returns the number of live client buckets.
func (l *Limiter) Tracked() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.clients)
}
