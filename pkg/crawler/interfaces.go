package crawler

import (
	"context"
	"time"

	"twaler/pkg/ledger"
	"twaler/pkg/storage"
	"twaler/pkg/twitter"
)

// Fetcher performs one classified, retried API request
type Fetcher interface {
	Fetch(ctx context.Context, req twitter.Request) (*twitter.Response, error)
}

// RecordStore persists one raw response
type RecordStore interface {
	Store(rec storage.Record) (storage.Written, error)
}

// QuotaGate blocks until the remote quota is positive
type QuotaGate interface {
	WaitForQuota(ctx context.Context, cooldown time.Duration) error
}

// Recorder appends fetch outcomes to the run ledger
type Recorder interface {
	Record(ctx context.Context, o ledger.Outcome) error
}
