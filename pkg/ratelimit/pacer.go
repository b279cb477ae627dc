// Package ratelimit spaces outbound provider calls to fit a requests-per-minute
// budget shared by every session running in the process.
package ratelimit

import (
	"context"
	"math/rand/v2"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// DefaultBackoff applies when a rate limit response carries no Retry-After.
const DefaultBackoff = 60 * time.Second

// Pacer is a token bucket sized to one call per interval, plus a backoff
// window set when the provider reports a rate limit.
type Pacer struct {
	mu      sync.Mutex
	limiter *rate.Limiter
	retryAt time.Time
	rpm     int
	jitter  float64
}

// NewPacer creates a pacer for rpm requests per minute. Each Wait adds a
// random delay of up to jitter × interval. rpm <= 0 disables pacing.
func NewPacer(rpm int, jitter float64) *Pacer {
	limit := rate.Inf
	if rpm > 0 {
		limit = rate.Every(time.Minute / time.Duration(rpm))
	}
	return &Pacer{
		limiter: rate.NewLimiter(limit, 1),
		rpm:     rpm,
		jitter:  max(jitter, 0),
	}
}

// Interval returns the spacing between calls implied by the budget.
func (p *Pacer) Interval() time.Duration {
	if p.rpm <= 0 {
		return 0
	}
	return time.Minute / time.Duration(p.rpm)
}

// RPM returns the configured budget; zero or negative means unlimited.
func (p *Pacer) RPM() int {
	return p.rpm
}

// Wait blocks until a call may be made: past any backoff window, then a
// token from the bucket, then the jitter delay.
func (p *Pacer) Wait(ctx context.Context) error {
	p.mu.Lock()
	retryAt := p.retryAt
	p.mu.Unlock()

	if d := time.Until(retryAt); d > 0 {
		if err := sleep(ctx, d); err != nil {
			return err
		}
	}

	if err := p.limiter.Wait(ctx); err != nil {
		return err
	}

	if p.jitter > 0 && p.rpm > 0 {
		extra := time.Duration(rand.Float64() * p.jitter * float64(p.Interval()))
		return sleep(ctx, extra)
	}
	return nil
}

// Backoff defers every subsequent Wait by at least d. A non-positive d uses
// DefaultBackoff. An existing later window is kept.
func (p *Pacer) Backoff(d time.Duration) {
	if d <= 0 {
		d = DefaultBackoff
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if until := time.Now().Add(d); until.After(p.retryAt) {
		p.retryAt = until
	}
}

// Allow reports whether a call could be made immediately, consuming a token if so.
func (p *Pacer) Allow() bool {
	p.mu.Lock()
	retryAt := p.retryAt
	p.mu.Unlock()

	if time.Now().Before(retryAt) {
		return false
	}
	return p.limiter.Allow()
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
