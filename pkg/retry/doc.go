// Package retry provides bounded retry loops for operations against the
// remote API.
//
// Features:
//   - Exponential and constant backoff strategies
//   - Per-error-type delays through ErrorTypeBackoff
//   - Context support for cancellation
//   - Permanent errors via Stop
//
// Basic usage:
//
//	etb := retry.NewErrorTypeBackoff(5*time.Second, 10*time.Second, 2*time.Second)
//	resp, err := retry.DoWithResult(func() (*twitter.Response, error) {
//		return client.attempt(ctx, req)
//	}, &retry.Config{
//		MaxAttempts: 9,
//		DelayFor:    etb.DelayFor,
//		Context:     ctx,
//		Logger:      logger.GetLogger(),
//	})
//
// Do makes at most MaxAttempts calls and never sleeps after the final one.
// When the budget is used up the returned error wraps both ErrExhausted and
// the last attempt's error.
package retry
