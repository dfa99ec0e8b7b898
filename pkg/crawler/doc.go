// Package crawler drives a crawl run over a seed file.
//
// Architecture:
//
// The Crawler owns a fixed pool of Workers that share one queue of seed
// lines. Every worker owns its own connection, quota gate, fetch client and
// pagination Driver, so the only state shared between workers is the queue,
// the cache directory tree, the optional ledger and the run Summary.
//
// A run proceeds as:
//   - start N workers
//   - feed every non-comment seed line into the queue
//   - wait until every queued line has been acknowledged
//   - send N stop sentinels and wait for the workers to exit
//
// A failure while driving one (target, kind) is logged and recorded; it never
// stops the worker. A panic while handling a seed is recovered and the worker
// moves on to the next line.
//
// Usage:
//
//	c, err := crawler.New(cfg, cache, creds, log, crawler.WithLedger(l))
//	if err != nil {
//	    return err
//	}
//	summary, err := c.Crawl(ctx, "seeds.txt")
package crawler
