package ratelimit

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// Limiter paces outgoing requests on the client side
type Limiter interface {
	// Allow reports whether a request may go out now, consuming a slot
	Allow() bool
	// Wait blocks until a request may go out or ctx is done
	Wait(ctx context.Context) error
}

// Pacer is a Limiter over a token bucket shared by every worker
type Pacer struct {
	limiter *rate.Limiter
}

// NewPacer allows perMinute requests per minute with a burst of one;
// perMinute <= 0 disables pacing.
func NewPacer(perMinute int) *Pacer {
	if perMinute <= 0 {
		return &Pacer{limiter: rate.NewLimiter(rate.Inf, 1)}
	}
	return &Pacer{limiter: rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMinute)), 1)}
}

// Allow consumes a token if one is available
func (p *Pacer) Allow() bool {
	return p.limiter.Allow()
}

// Wait blocks until a token is available
func (p *Pacer) Wait(ctx context.Context) error {
	return p.limiter.Wait(ctx)
}

// Unlimited reports whether pacing is disabled
func (p *Pacer) Unlimited() bool {
	return p.limiter.Limit() == rate.Inf
}
