// Package ratelimit gates outbound requests per source.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"
)

// Limit configures one source's request budget: at most MaxRequests
// requests per Window.
type Limit struct {
	MaxRequests int
	Window      time.Duration
}

// Gate holds one token-bucket limiter per source. Acquire blocks until a
// slot is available, so exhaustion only ever delays a caller; it never
// denies one. Safe for concurrent use.
type Gate struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	fallback Limit
}

// NewGate creates a Gate with per-source limits. The fallback limit applies
// to sources not present in limits.
func NewGate(limits map[string]Limit, fallback Limit) *Gate {
	g := &Gate{
		limiters: make(map[string]*rate.Limiter, len(limits)),
		fallback: fallback,
	}
	for source, l := range limits {
		g.limiters[source] = newLimiter(l)
	}
	return g
}

func newLimiter(l Limit) *rate.Limiter {
	if l.MaxRequests <= 0 || l.Window <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	interval := l.Window / time.Duration(l.MaxRequests)
	return rate.NewLimiter(rate.Every(interval), l.MaxRequests)
}

func (g *Gate) limiter(source string) *rate.Limiter {
	g.mu.Lock()
	defer g.mu.Unlock()
	l, ok := g.limiters[source]
	if !ok {
		l = newLimiter(g.fallback)
		g.limiters[source] = l
	}
	return l
}

// Acquire blocks until the source may issue one request, or until ctx is
// done. The returned bool reports whether the caller had to wait, which
// callers use to count rate-limited delays separately from failures.
func (g *Gate) Acquire(ctx context.Context, source string) (waited bool, err error) {
	l := g.limiter(source)

	if l.Allow() {
		return false, nil
	}
	if err := l.Wait(ctx); err != nil {
		return true, eris.Wrapf(err, "ratelimit: acquire %s", source)
	}
	return true, nil
}
