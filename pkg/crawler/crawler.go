package crawler

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"twaler/internal/queue"
	"twaler/pkg/auth"
	"twaler/pkg/checkpoint"
	"twaler/pkg/config"
	"twaler/pkg/ledger"
	"twaler/pkg/logger"
	"twaler/pkg/ratelimit"
	"twaler/pkg/seed"
	"twaler/pkg/storage"
	"twaler/pkg/twitter"
)

// maxSeedLine bounds one seed line; real lines are a few dozen bytes
const maxSeedLine = 64 * 1024

// Crawler supervises a pool of workers over one cache instance
type Crawler struct {
	cfg         *config.Config
	cache       *storage.Cache
	endpoints   *twitter.Endpoints
	creds       auth.Source
	pacer       ratelimit.Limiter
	ledger      *ledger.Ledger
	checkpoints *checkpoint.Manager
	logger      logger.Logger

	progress      func(checkpoint.Counters)
	progressEvery time.Duration
}

// Option configures a Crawler
type Option func(*Crawler)

// WithLedger records every fetch outcome in l
func WithLedger(l *ledger.Ledger) Option {
	return func(c *Crawler) { c.ledger = l }
}

// WithCheckpoint writes the run checkpoint through m
func WithCheckpoint(m *checkpoint.Manager) Option {
	return func(c *Crawler) { c.checkpoints = m }
}

// WithPacer shares one client-side pacer between all workers
func WithPacer(p ratelimit.Limiter) Option {
	return func(c *Crawler) { c.pacer = p }
}

// WithProgress calls report with a counter snapshot every interval while
// a crawl runs
func WithProgress(interval time.Duration, report func(checkpoint.Counters)) Option {
	return func(c *Crawler) {
		c.progress = report
		c.progressEvery = interval
	}
}

// New creates a crawler writing into cache. creds may be nil when the API
// is used without authentication.
func New(cfg *config.Config, cache *storage.Cache, creds auth.Source, log logger.Logger, opts ...Option) (*Crawler, error) {
	if cfg.Crawl.Workers < 1 {
		return nil, fmt.Errorf("at least one worker is required, got %d", cfg.Crawl.Workers)
	}
	if cfg.API.UseAuth && creds == nil {
		return nil, fmt.Errorf("authentication is enabled but no credentials were given")
	}
	endpoints, err := twitter.NewEndpoints(cfg.API.BaseURL, cfg.API.Format)
	if err != nil {
		return nil, err
	}
	if log == nil {
		log = logger.GetLogger()
	}

	c := &Crawler{
		cfg:       cfg,
		cache:     cache,
		endpoints: endpoints,
		creds:     creds,
		logger:    log.WithField("component", "crawler"),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.pacer == nil {
		c.pacer = ratelimit.NewPacer(cfg.Crawl.RequestsPerMinute)
	}
	return c, nil
}

// Crawl runs every seed in seedFile to completion. It returns once every
// queued line has been acknowledged and every worker has exited. An
// unreadable seed file stops the feed and is returned after the workers
// drain what was already queued.
func (c *Crawler) Crawl(ctx context.Context, seedFile string) (*Summary, error) {
	workers := c.cfg.Crawl.Workers
	summary := &Summary{InstanceDir: c.cache.Root(), Started: time.Now()}

	var cp *checkpoint.Checkpoint
	if c.checkpoints != nil {
		var err error
		if cp, err = c.checkpoints.Create(seedFile, workers); err != nil {
			return nil, err
		}
		summary.RunID = cp.RunID
	}
	if summary.RunID == "" {
		summary.RunID = uuid.NewString()
	}
	if c.ledger != nil {
		if err := c.ledger.Begin(ctx, ledger.Run{ID: summary.RunID, SeedFile: seedFile, Workers: workers, StartedAt: summary.Started}); err != nil {
			return nil, err
		}
	}

	logger.LogComponentStart(c.logger, "crawler", map[string]interface{}{
		"run_id":    summary.RunID,
		"seed_file": seedFile,
		"workers":   workers,
		"instance":  c.cache.Root(),
	})

	stopProgress := c.reportProgress(summary)
	runErr := c.run(ctx, seedFile, workers, summary)
	stopProgress()
	summary.Finished = time.Now()

	c.finish(summary, cp, runErr)
	return summary, runErr
}

func (c *Crawler) run(ctx context.Context, seedFile string, workers int, summary *Summary) error {
	q := queue.New[string](workers * 2)

	var g errgroup.Group
	for i := 0; i < workers; i++ {
		w, conn := c.newWorker(i+1, q, summary)
		g.Go(func() error {
			defer conn.Close()
			return w.Run(ctx)
		})
	}

	feedErr := c.feed(ctx, q, seedFile, summary)
	if feedErr == nil {
		// drain barrier: no sentinel may overtake live work
		feedErr = q.Join(ctx)
	}

	stopErr := q.Stop(ctx, workers)
	waitErr := g.Wait()

	switch {
	case feedErr != nil:
		return feedErr
	case stopErr != nil:
		return stopErr
	default:
		return waitErr
	}
}

// reportProgress starts the progress callback; the returned func stops it
// and waits for the last report to return
func (c *Crawler) reportProgress(summary *Summary) func() {
	if c.progress == nil || c.progressEvery <= 0 {
		return func() {}
	}

	done := make(chan struct{})
	exited := make(chan struct{})
	go func() {
		defer close(exited)
		ticker := time.NewTicker(c.progressEvery)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				c.progress(summary.Counters())
			}
		}
	}()

	return func() {
		close(done)
		<-exited
	}
}

// feed queues every non-comment line of seedFile
func (c *Crawler) feed(ctx context.Context, q *queue.Queue[string], seedFile string, summary *Summary) error {
	f, err := os.Open(seedFile)
	if err != nil {
		c.logger.WithError(err).ErrorWithFields("Seed file unreadable", map[string]interface{}{
			"seed_file": seedFile,
		})
		return fmt.Errorf("open seed file: %w", err)
	}
	defer f.Close()

	return c.feedFrom(ctx, q, f, summary)
}

func (c *Crawler) feedFrom(ctx context.Context, q *queue.Queue[string], r io.Reader, summary *Summary) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 4096), maxSeedLine)

	for scanner.Scan() {
		line := scanner.Text()
		summary.linesRead.Add(1)
		if seed.IsComment(line) {
			summary.commentsSkipped.Add(1)
			continue
		}
		if err := q.Put(ctx, line); err != nil {
			return err
		}
	}
	if err := scanner.Err(); err != nil {
		c.logger.WithError(err).Error("Seed file read failed")
		return fmt.Errorf("read seed file: %w", err)
	}
	return nil
}

func (c *Crawler) newWorker(id int, q *queue.Queue[string], summary *Summary) (*Worker, *twitter.Conn) {
	log := c.logger.WithField("worker", id)

	conn := twitter.NewConn(c.cfg.API.Timeout)
	var creds auth.Source
	if c.cfg.API.UseAuth {
		creds = c.creds
	}
	gate := ratelimit.NewQuotaGate(conn, ratelimit.QuotaConfig{
		URL:       c.endpoints.Quota(),
		UseAuth:   c.cfg.API.UseAuth,
		UserAgent: c.cfg.API.UserAgent,
		Attempts:  c.cfg.Crawl.QuotaAttempts,
		RetryGap:  c.cfg.Crawl.QuotaRetryGap,
	}, creds, log)
	client := twitter.NewClient(conn, gate, creds, c.pacer, twitter.PolicyFromConfig(c.cfg), log)
	driver := NewDriver(client, c.endpoints, c.cache, DriverOptions{
		UseAuth:  c.cfg.API.UseAuth,
		GzipAll:  c.cfg.API.GzipAll,
		MaxPages: c.cfg.Crawl.MaxPages,
	}, log)

	var rec Recorder
	if c.ledger != nil {
		rec = c.ledger
	}
	w := NewWorker(id, q, driver, gate, rec, summary, WorkerOptions{
		CheckQuotaPerSeed: c.cfg.Crawl.CheckQuotaPerSeed,
		SeedQuotaCooldown: c.cfg.Crawl.SeedQuotaCooldown,
		RunID:             summary.RunID,
		ProgressEvery:     100,
	}, c.logger)
	return w, conn
}

// finish closes the run in the checkpoint and ledger; both outlive ctx
func (c *Crawler) finish(summary *Summary, cp *checkpoint.Checkpoint, runErr error) {
	status := checkpoint.StatusFinished
	switch {
	case errors.Is(runErr, context.Canceled), errors.Is(runErr, context.DeadlineExceeded):
		status = checkpoint.StatusCancelled
	case runErr != nil:
		status = checkpoint.StatusFailed
	}

	if cp != nil {
		if err := c.checkpoints.Finish(cp, summary.Counters(), status, runErr); err != nil {
			c.logger.WithError(err).Warn("Failed to write final checkpoint")
		}
	}
	if c.ledger != nil {
		if err := c.ledger.Finish(context.Background(), summary.RunID, summary.Finished); err != nil {
			c.logger.WithError(err).Warn("Failed to finish ledger run")
		}
	}

	counters := summary.Counters()
	logger.LogMetrics(c.logger, "crawl", map[string]interface{}{
		"status":           string(status),
		"seeds":            counters.SeedsProcessed,
		"seeds_rejected":   counters.SeedsRejected,
		"comments_skipped": counters.CommentsSkipped,
		"kinds_ok":         counters.KindsOK,
		"kinds_failed":     counters.KindsFailed,
		"pages":            counters.Pages,
		"bytes":            counters.Bytes,
		"duration_ms":      summary.Duration().Milliseconds(),
	})
	logger.LogComponentStop(c.logger, "crawler", string(status))
}
