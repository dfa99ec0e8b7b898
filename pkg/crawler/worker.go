package crawler

import (
	"context"
	"fmt"
	"runtime/debug"
	"strconv"
	"time"

	"twaler/internal/queue"
	"twaler/pkg/cursor"
	"twaler/pkg/ledger"
	"twaler/pkg/logger"
	"twaler/pkg/seed"
)

// WorkerOptions configures seed dispatch
type WorkerOptions struct {
	// CheckQuotaPerSeed waits for a positive quota before every seed
	CheckQuotaPerSeed bool
	SeedQuotaCooldown time.Duration
	// RunID tags ledger outcomes
	RunID string
	// ProgressEvery logs progress after this many seeds; 0 disables it
	ProgressEvery int64
}

// Worker consumes seed lines until it receives a stop sentinel
type Worker struct {
	id      int
	queue   *queue.Queue[string]
	driver  *Driver
	quota   QuotaGate
	ledger  Recorder
	summary *Summary
	opts    WorkerOptions
	logger  logger.Logger
}

// NewWorker creates a worker. quota and rec may be nil.
func NewWorker(id int, q *queue.Queue[string], driver *Driver, quota QuotaGate, rec Recorder, summary *Summary, opts WorkerOptions, log logger.Logger) *Worker {
	if log == nil {
		log = logger.GetLogger()
	}
	return &Worker{
		id:      id,
		queue:   q,
		driver:  driver,
		quota:   quota,
		ledger:  rec,
		summary: summary,
		opts:    opts,
		logger:  log.WithField("worker", id),
	}
}

// Run processes lines until a sentinel arrives or ctx is done. Every line
// taken from the queue is acknowledged, whatever happened to it.
func (w *Worker) Run(ctx context.Context) error {
	logger.LogComponentStart(w.logger, "worker", nil)

	for {
		it, err := w.queue.Get(ctx)
		if err != nil {
			logger.LogComponentStop(w.logger, "worker", "cancelled")
			return err
		}
		if it.Stop {
			w.queue.Done(it)
			logger.LogComponentStop(w.logger, "worker", "sentinel")
			return nil
		}

		w.handle(ctx, it.Value)
		w.queue.Done(it)

		if n := w.summary.seedsProcessed.Add(1); w.opts.ProgressEvery > 0 && n%w.opts.ProgressEvery == 0 {
			logger.LogCrawlProgress(w.logger, w.queue.Acknowledged(), w.queue.Enqueued())
		}
	}
}

// handle isolates one seed: a panic is logged and the seed abandoned
func (w *Worker) handle(ctx context.Context, line string) {
	defer func() {
		if r := recover(); r != nil {
			w.summary.seedsPanicked.Add(1)
			w.logger.ErrorWithFields("seed handler panicked", map[string]interface{}{
				"line":  line,
				"panic": fmt.Sprint(r),
				"stack": string(debug.Stack()),
			})
		}
	}()

	s, err := seed.Parse(line)
	if err != nil {
		w.summary.seedsRejected.Add(1)
		w.logger.WarnWithFields("rejected seed line", map[string]interface{}{
			"line":  line,
			"error": err.Error(),
		})
		return
	}

	w.dispatch(ctx, s)
}

// dispatch drives every requested kind of s in table order
func (w *Worker) dispatch(ctx context.Context, s seed.Seed) {
	if w.opts.CheckQuotaPerSeed && w.quota != nil {
		if err := w.quota.WaitForQuota(ctx, w.opts.SeedQuotaCooldown); err != nil {
			return
		}
	}

	for _, kind := range s.Kinds {
		if ctx.Err() != nil {
			return
		}

		t := Target{Kind: kind, TargetID: s.TargetID}
		switch kind {
		case seed.Members:
			if s.Secondary == "" {
				w.summary.kindsSkipped.Add(1)
				w.logger.WarnWithFields("list-members requested without a list name", map[string]interface{}{
					"target_id": s.TargetID,
				})
				w.record(ctx, s, t, Result{}, ledger.StatusSkipped, nil)
				continue
			}
			t.List = s.Secondary
		case seed.Memberships:
			if c, ok := startCursor(s.Secondary); ok {
				t.Start = c
			}
		}

		res, err := w.driver.Run(ctx, t)
		logger.LogFetch(w.logger, s.TargetID, string(kind), res.Pages, err)
		w.summary.recordKind(res, err)

		status := ledger.StatusOK
		if err != nil {
			status = ledger.StatusFailed
		}
		w.record(ctx, s, t, res, status, err)
	}
}

func (w *Worker) record(ctx context.Context, s seed.Seed, t Target, res Result, status ledger.Status, fetchErr error) {
	if w.ledger == nil {
		return
	}
	o := ledger.Outcome{
		RunID:    w.opts.RunID,
		TargetID: s.TargetID,
		Kind:     t.Kind.CacheName(),
		ListName: t.List,
		Pages:    res.Pages,
		Bytes:    res.Bytes,
		Status:   status,
	}
	if fetchErr != nil {
		o.Error = fetchErr.Error()
	}
	// a cancelled run still records what it finished
	if err := w.ledger.Record(context.WithoutCancel(ctx), o); err != nil {
		w.logger.WithError(err).Warn("Failed to record outcome")
	}
}

// startCursor accepts a seed's secondary token as a start cursor only when
// it is numeric; anything else is a list slug meant for list-members
func startCursor(secondary string) (cursor.Cursor, bool) {
	if _, err := strconv.ParseInt(secondary, 10, 64); err != nil {
		return "", false
	}
	c, err := cursor.Parse(secondary)
	if err != nil || c.IsTerminal() {
		return "", false
	}
	return c, true
}
