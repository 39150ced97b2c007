package ratelimit

import (
	"context"

	"golang.org/x/time/rate"
)

// Pacer is a local token bucket that delays callers to a steady rate.
type Pacer struct {
	lim *rate.Limiter
}

// NewPacer allows perSecond calls per second with a burst of the same size.
// A non-positive rate disables pacing.
func NewPacer(perSecond int) *Pacer {
	if perSecond <= 0 {
		return &Pacer{lim: rate.NewLimiter(rate.Inf, 0)}
	}
	return &Pacer{lim: rate.NewLimiter(rate.Limit(perSecond), perSecond)}
}

// Wait blocks until a token is available or ctx is done.
func (p *Pacer) Wait(ctx context.Context) error {
	if p == nil {
		return nil
	}
	return p.lim.Wait(ctx)
}
