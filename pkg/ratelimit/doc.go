// Package ratelimit decides when the crawler may spend API calls.
//
// QuotaGate asks the remote rate-limit-status endpoint how many calls are
// left. It retries a bounded number of times and reports 0 when it cannot
// tell, so a failed query is as conservative as an exhausted quota. Quota
// state is never shared: each worker polls through its own connection.
//
// Pacer is an optional client-side requests-per-minute limit backed by
// golang.org/x/time/rate. One Pacer is shared by the whole pool.
//
// Usage:
//
//	gate := ratelimit.NewQuotaGate(conn, ratelimit.QuotaConfig{
//	    URL:      endpoints.Quota(),
//	    Attempts: 10,
//	    RetryGap: 10 * time.Second,
//	}, creds, log)
//
//	if err := gate.WaitForQuota(ctx, 15*time.Minute); err != nil {
//	    return err // cancelled
//	}
//
//	pacer := ratelimit.NewPacer(150)
//	_ = pacer.Wait(ctx)
package ratelimit
