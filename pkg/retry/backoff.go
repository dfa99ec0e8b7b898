package retry

import (
	"context"
	"math"
	"math/rand"
	"time"

	errs "twaler/pkg/errors"
)

// BackoffStrategy defines the interface for different backoff strategies
type BackoffStrategy interface {
	// NextDelay returns the next delay duration
	NextDelay(attempt int) time.Duration
}

// ExponentialBackoff implements exponential backoff with jitter
type ExponentialBackoff struct {
	// BaseDelay is the initial delay duration
	BaseDelay time.Duration
	// MaxDelay is the maximum delay duration
	MaxDelay time.Duration
	// Multiplier is the factor by which delay increases
	Multiplier float64
	// JitterFactor adds randomness to avoid thundering herd (0.0 to 1.0)
	JitterFactor float64
}

// DefaultExponentialBackoff returns a backoff with sensible defaults
func DefaultExponentialBackoff() *ExponentialBackoff {
	return &ExponentialBackoff{
		BaseDelay:    1 * time.Second,
		MaxDelay:     60 * time.Second,
		Multiplier:   2.0,
		JitterFactor: 0.1,
	}
}

// NextDelay calculates the next delay with exponential backoff and jitter
func (eb *ExponentialBackoff) NextDelay(attempt int) time.Duration {
	if attempt <= 0 {
		return 0
	}

	delay := float64(eb.BaseDelay) * math.Pow(eb.Multiplier, float64(attempt-1))
	if delay > float64(eb.MaxDelay) {
		delay = float64(eb.MaxDelay)
	}

	if eb.JitterFactor > 0 {
		jitter := delay * eb.JitterFactor
		delay += (rand.Float64() * 2 * jitter) - jitter
	}

	if delay < 0 {
		delay = 0
	}

	return time.Duration(delay)
}

// ConstantBackoff implements constant delay backoff
type ConstantBackoff struct {
	Delay time.Duration
}

// NextDelay returns a constant delay
func (cb *ConstantBackoff) NextDelay(attempt int) time.Duration {
	if attempt <= 0 {
		return 0
	}
	return cb.Delay
}

// Wait waits for the specified duration or until context is cancelled
func Wait(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ErrorTypeBackoff provides different backoff strategies based on error types
type ErrorTypeBackoff struct {
	// NetworkErrorBackoff for timeouts and other transport errors
	NetworkErrorBackoff BackoffStrategy
	// ConnectionErrorBackoff for resets, refusals and truncated reads
	ConnectionErrorBackoff BackoffStrategy
	// RateLimitBackoff for quota exhaustion
	RateLimitBackoff BackoffStrategy
	// ServerErrorBackoff for 5xx, redirects and unrecognized statuses
	ServerErrorBackoff BackoffStrategy
	// DefaultBackoff for other retryable errors
	DefaultBackoff BackoffStrategy
}

// NewErrorTypeBackoff creates constant per-type gaps
func NewErrorTypeBackoff(network, connection, server time.Duration) *ErrorTypeBackoff {
	return &ErrorTypeBackoff{
		NetworkErrorBackoff:    &ConstantBackoff{Delay: network},
		ConnectionErrorBackoff: &ConstantBackoff{Delay: connection},
		// quota exhaustion is handled by polling, not by sleeping here
		RateLimitBackoff:   &ConstantBackoff{Delay: 0},
		ServerErrorBackoff: &ConstantBackoff{Delay: server},
		DefaultBackoff:     &ConstantBackoff{Delay: server},
	}
}

// GetBackoffForError returns the appropriate backoff strategy for the error type
func (etb *ErrorTypeBackoff) GetBackoffForError(errorType errs.ErrorType) BackoffStrategy {
	switch errorType {
	case errs.ErrorTypeNetwork:
		return etb.NetworkErrorBackoff
	case errs.ErrorTypeConnection:
		return etb.ConnectionErrorBackoff
	case errs.ErrorTypeRateLimit, errs.ErrorTypeAuth:
		return etb.RateLimitBackoff
	case errs.ErrorTypeServerError, errs.ErrorTypeRedirect:
		return etb.ServerErrorBackoff
	default:
		return etb.DefaultBackoff
	}
}

// DelayFor is usable as Config.DelayFor
func (etb *ErrorTypeBackoff) DelayFor(attempt int, err error) time.Duration {
	b := etb.GetBackoffForError(errs.TypeOf(err))
	if b == nil {
		return 0
	}
	return b.NextDelay(attempt)
}
