package server

import (
	"sync"
	"time"
)

// floodGuard caps how many frames a single socket may push at the relay. It
// is a token bucket: Burst frames up front, then one more every
// RefillInterval/Burst. It sits below the relay's chat and join windows and
// only protects the read loop.
type floodGuard struct {
	mu       sync.Mutex
	burst    int
	tokens   int
	perToken time.Duration
	credit   time.Duration
	last     time.Time
	now      func() time.Time
}

func newFloodGuard(cfg RateLimitConfig, now func() time.Time) *floodGuard {
	if cfg.Burst <= 0 {
		cfg.Burst = 1
	}
	if cfg.RefillInterval <= 0 {
		cfg.RefillInterval = time.Second
	}
	if now == nil {
		now = time.Now
	}

	perToken := cfg.RefillInterval / time.Duration(cfg.Burst)
	if perToken <= 0 {
		perToken = time.Nanosecond
	}

	return &floodGuard{
		burst:    cfg.Burst,
		tokens:   cfg.Burst,
		perToken: perToken,
		last:     now(),
		now:      now,
	}
}

// allow takes one token and reports whether the frame may be processed.
func (g *floodGuard) allow() bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.refill(g.now())
	if g.tokens == 0 {
		return false
	}
	g.tokens--
	return true
}

func (g *floodGuard) refill(now time.Time) {
	if elapsed := now.Sub(g.last); elapsed > 0 {
		g.credit += elapsed
	}
	g.last = now

	earned := int(g.credit / g.perToken)
	g.credit -= time.Duration(earned) * g.perToken
	g.tokens += earned
	if g.tokens >= g.burst {
		g.tokens = g.burst
		g.credit = 0
	}
}
