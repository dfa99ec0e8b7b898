package crawler

import (
	"context"
	"fmt"

	"twaler/pkg/cursor"
	errs "twaler/pkg/errors"
	"twaler/pkg/logger"
	"twaler/pkg/seed"
	"twaler/pkg/storage"
	"twaler/pkg/twitter"
)

// Target is one (target, kind) to drive to completion
type Target struct {
	Kind     seed.Kind
	TargetID string
	// List is the slug for list-members
	List string
	// Start overrides cursor.Start for paginated kinds
	Start cursor.Cursor
}

// Result counts what one Run persisted
type Result struct {
	Pages int
	Bytes int64
}

// DriverOptions configures a Driver
type DriverOptions struct {
	UseAuth bool
	// GzipAll asks for gzip on every kind instead of timelines only
	GzipAll bool
	// MaxPages stops pagination after this many pages; 0 means no cap
	MaxPages int
}

// Driver walks the cursor chain of one (target, kind), persisting every page
// before asking for the next
type Driver struct {
	fetcher   Fetcher
	endpoints *twitter.Endpoints
	store     RecordStore
	opts      DriverOptions
	logger    logger.Logger
}

// NewDriver creates a pagination driver
func NewDriver(fetcher Fetcher, endpoints *twitter.Endpoints, store RecordStore, opts DriverOptions, log logger.Logger) *Driver {
	if log == nil {
		log = logger.GetLogger()
	}
	return &Driver{
		fetcher:   fetcher,
		endpoints: endpoints,
		store:     store,
		opts:      opts,
		logger:    log,
	}
}

// Run fetches and persists pages until the terminal cursor. On error the
// pages already written stay valid and Result counts them.
func (d *Driver) Run(ctx context.Context, t Target) (Result, error) {
	var res Result

	cur := t.Start
	if cur == "" || !t.Kind.Paginated() {
		cur = cursor.Start
	}
	seen := map[cursor.Cursor]bool{cur: true}

	for {
		if err := ctx.Err(); err != nil {
			return res, errs.Wrap(errs.ErrorTypeCanceled, 0, err, "crawl cancelled")
		}

		url, err := d.endpoints.URL(t.Kind, t.TargetID, t.List, cur)
		if err != nil {
			return res, err
		}

		resp, err := d.fetcher.Fetch(ctx, twitter.Request{
			URL:        url,
			UseAuth:    d.opts.UseAuth,
			AcceptGzip: d.acceptGzip(t.Kind),
		})
		if err != nil {
			return res, fmt.Errorf("%s page %d of %s: %w", t.Kind, res.Pages+1, t.TargetID, err)
		}

		rec := storage.Record{
			Kind:           t.Kind.CacheName(),
			Format:         d.endpoints.Format(),
			TargetID:       t.TargetID,
			Header:         resp.HeaderBlob(),
			Body:           resp.Body,
			AlreadyGzipped: resp.Gzipped,
		}
		if t.Kind.ListScoped() {
			rec.ListName = t.List
		}
		w, err := d.store.Store(rec)
		if err != nil {
			return res, fmt.Errorf("persist %s page %d of %s: %w", t.Kind, res.Pages+1, t.TargetID, err)
		}
		res.Pages++
		res.Bytes += w.Bytes

		if !t.Kind.Paginated() {
			return res, nil
		}
		if d.opts.MaxPages > 0 && res.Pages >= d.opts.MaxPages {
			d.logger.InfoWithFields("page cap reached", map[string]interface{}{
				"target_id": t.TargetID,
				"kind":      string(t.Kind),
				"pages":     res.Pages,
			})
			return res, nil
		}

		body, err := resp.Decoded()
		if err != nil {
			return res, errs.Wrap(errs.ErrorTypeParsing, resp.Status, err, "undecodable page")
		}
		next, err := cursor.Extract(body)
		if err != nil {
			return res, fmt.Errorf("%s page %d of %s: %w", t.Kind, res.Pages, t.TargetID, err)
		}
		if next.IsTerminal() {
			return res, nil
		}
		if seen[next] {
			return res, errs.New(errs.ErrorTypeParsing, 0, "%s of %s: cursor %s revisits an earlier page", t.Kind, t.TargetID, next)
		}
		seen[next] = true

		d.logger.DebugWithFields("next page", map[string]interface{}{
			"target_id": t.TargetID,
			"kind":      string(t.Kind),
			"cursor":    next.String(),
		})
		cur = next
	}
}

func (d *Driver) acceptGzip(kind seed.Kind) bool {
	return d.opts.GzipAll || kind == seed.Timeline
}
