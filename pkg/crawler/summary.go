package crawler

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/dustin/go-humanize"
	"twaler/pkg/checkpoint"
)

// Summary counts a run's progress; every counter is safe for concurrent use
type Summary struct {
	RunID       string
	InstanceDir string
	Started     time.Time
	Finished    time.Time

	linesRead       atomic.Int64
	commentsSkipped atomic.Int64
	seedsProcessed  atomic.Int64
	seedsRejected   atomic.Int64
	seedsPanicked   atomic.Int64
	kindsOK         atomic.Int64
	kindsFailed     atomic.Int64
	kindsSkipped    atomic.Int64
	pages           atomic.Int64
	bytes           atomic.Int64
}

// Counters takes a consistent-enough snapshot for reporting
func (s *Summary) Counters() checkpoint.Counters {
	return checkpoint.Counters{
		LinesRead:       s.linesRead.Load(),
		CommentsSkipped: s.commentsSkipped.Load(),
		SeedsProcessed:  s.seedsProcessed.Load(),
		SeedsRejected:   s.seedsRejected.Load(),
		SeedsPanicked:   s.seedsPanicked.Load(),
		KindsOK:         s.kindsOK.Load(),
		KindsFailed:     s.kindsFailed.Load(),
		KindsSkipped:    s.kindsSkipped.Load(),
		Pages:           s.pages.Load(),
		Bytes:           s.bytes.Load(),
	}
}

// Duration of the run so far
func (s *Summary) Duration() time.Duration {
	if s.Finished.IsZero() {
		return time.Since(s.Started)
	}
	return s.Finished.Sub(s.Started)
}

func (s *Summary) String() string {
	c := s.Counters()
	return fmt.Sprintf("%d seeds (%d rejected), %d kinds ok, %d failed, %d skipped, %d pages, %s in %s",
		c.SeedsProcessed, c.SeedsRejected, c.KindsOK, c.KindsFailed, c.KindsSkipped,
		c.Pages, humanize.Bytes(uint64(c.Bytes)), s.Duration().Round(time.Second))
}

func (s *Summary) recordKind(res Result, err error) {
	s.pages.Add(int64(res.Pages))
	s.bytes.Add(res.Bytes)
	if err != nil {
		s.kindsFailed.Add(1)
		return
	}
	s.kindsOK.Add(1)
}
