// Package twitter fetches raw resources from the social graph API.
//
// A Client sends every request over one worker-owned Conn and classifies
// each outcome before deciding what to do next:
//
//   - 200 returns the body untouched, gzip-encoded if the server chose to
//   - 3xx and 5xx sleep briefly and reconnect
//   - 400 means the quota is spent: the client waits on its QuotaWaiter
//   - 401 re-acquires credentials a bounded number of times
//   - 404 gives up at once
//
// Example usage:
//
//	ep, _ := twitter.NewEndpoints(cfg.API.BaseURL, cfg.API.Format)
//	conn := twitter.NewConn(cfg.API.Timeout)
//	gate := ratelimit.NewQuotaGate(conn, quotaCfg, creds, log)
//	client := twitter.NewClient(conn, gate, creds, nil, twitter.PolicyFromConfig(cfg), log)
//
//	u, _ := ep.URL(seed.Friends, "12", "", cursor.Start)
//	resp, err := client.Fetch(ctx, twitter.Request{URL: u})
package twitter
