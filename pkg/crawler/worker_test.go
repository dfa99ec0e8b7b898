package crawler

import (
	"context"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"twaler/internal/queue"
	"twaler/pkg/ledger"
	"twaler/pkg/logger"
	"twaler/pkg/seed"
	"twaler/pkg/twitter"
)

type fakeRecorder struct {
	mu       sync.Mutex
	outcomes []ledger.Outcome
}

func (r *fakeRecorder) Record(ctx context.Context, o ledger.Outcome) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.outcomes = append(r.outcomes, o)
	return nil
}

type fakeQuota struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (q *fakeQuota) WaitForQuota(ctx context.Context, cooldown time.Duration) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.calls++
	return q.err
}

// runWorker feeds lines to a single worker and runs it to its sentinel
func runWorker(t *testing.T, f Fetcher, quota QuotaGate, rec Recorder, opts WorkerOptions, lines ...string) (*Summary, *logger.TestLogger) {
	t.Helper()
	ctx := context.Background()

	q := queue.New[string](len(lines) + 1)
	for _, l := range lines {
		require.NoError(t, q.Put(ctx, l))
	}
	require.NoError(t, q.Stop(ctx, 1))

	d, _ := newDriver(t, f, "json", DriverOptions{})
	summary := &Summary{Started: time.Now()}
	log := logger.NewTestLogger()
	w := NewWorker(1, q, d, quota, rec, summary, opts, log)

	require.NoError(t, w.Run(ctx))
	require.NoError(t, q.Join(ctx), "every line and the sentinel are acknowledged")
	return summary, log
}

func kindOf(t *testing.T, req twitter.Request) string {
	t.Helper()
	u, err := url.Parse(req.URL)
	require.NoError(t, err)
	return u.Path
}

func TestWorkerDispatchesRequestedKinds(t *testing.T) {
	f := &fakeFetcher{answer: pages(map[string]string{
		"":     `{"id":42}`,
		"-1":   `{"ids":[1],"next_cursor_str":"5000"}`,
		"5000": `{"ids":[2],"next_cursor_str":"0"}`,
	})}
	rec := &fakeRecorder{}

	summary, _ := runWorker(t, f, nil, rec, WorkerOptions{RunID: "run-1"}, "uf\t42")

	require.Len(t, f.requests, 3)
	assert.Equal(t, "/1/users/show.json", kindOf(t, f.requests[0]))
	assert.Equal(t, "/1/friends/ids.json", kindOf(t, f.requests[1]))

	c := summary.Counters()
	assert.Equal(t, int64(1), c.SeedsProcessed)
	assert.Equal(t, int64(2), c.KindsOK)
	assert.Equal(t, int64(3), c.Pages)

	require.Len(t, rec.outcomes, 2)
	assert.Equal(t, "userinfo", rec.outcomes[0].Kind)
	assert.Equal(t, "friends", rec.outcomes[1].Kind)
	assert.Equal(t, 2, rec.outcomes[1].Pages)
	assert.Equal(t, ledger.StatusOK, rec.outcomes[1].Status)
	assert.Equal(t, "run-1", rec.outcomes[1].RunID)
}

func TestWorkerSurvivesPanic(t *testing.T) {
	f := &fakeFetcher{answer: func(req twitter.Request) (*twitter.Response, error) {
		u, _ := url.Parse(req.URL)
		if u.Query().Get("user_id") == "13" {
			panic("boom")
		}
		return ok(`{"id":1}`), nil
	}}

	summary, log := runWorker(t, f, nil, nil, WorkerOptions{}, "u\t13", "u\t14")

	c := summary.Counters()
	assert.Equal(t, int64(2), c.SeedsProcessed)
	assert.Equal(t, int64(1), c.SeedsPanicked)
	assert.Equal(t, int64(1), c.KindsOK)
	assert.Len(t, f.requests, 2, "the seed after the panic is still fetched")
	assert.True(t, log.HasMessage("seed handler panicked"))
}

func TestWorkerRejectsMalformedLines(t *testing.T) {
	f := &fakeFetcher{answer: func(req twitter.Request) (*twitter.Response, error) {
		return ok(`{"id":1}`), nil
	}}

	summary, log := runWorker(t, f, nil, nil, WorkerOptions{}, "x\t42", "u\tabc", "u\t42")

	c := summary.Counters()
	assert.Equal(t, int64(3), c.SeedsProcessed)
	assert.Equal(t, int64(2), c.SeedsRejected)
	assert.Len(t, f.requests, 1)
	assert.Len(t, log.GetMessagesByLevel("WARN"), 2)
}

func TestWorkerFailedKindDoesNotStopSeed(t *testing.T) {
	f := &fakeFetcher{answer: func(req twitter.Request) (*twitter.Response, error) {
		u, _ := url.Parse(req.URL)
		if u.Path == "/1/lists/memberships.json" {
			// no next_cursor anywhere in the body
			return ok(`<html>`), nil
		}
		return ok(`{"ids":[],"next_cursor_str":"0"}`), nil
	}}
	rec := &fakeRecorder{}

	summary, _ := runWorker(t, f, nil, rec, WorkerOptions{}, "mf\t42", "f\t43")

	c := summary.Counters()
	assert.Equal(t, int64(2), c.KindsOK)
	assert.Equal(t, int64(1), c.KindsFailed)
	assert.Len(t, f.requests, 3)

	require.Len(t, rec.outcomes, 3)
	assert.Equal(t, "friends", rec.outcomes[0].Kind)
	assert.Equal(t, "memberships", rec.outcomes[1].Kind)
	assert.Equal(t, ledger.StatusFailed, rec.outcomes[1].Status)
	assert.NotEmpty(t, rec.outcomes[1].Error)
	assert.Equal(t, 1, rec.outcomes[1].Pages)
}

func TestWorkerListMembersNeedsListName(t *testing.T) {
	f := &fakeFetcher{answer: func(req twitter.Request) (*twitter.Response, error) {
		return ok(`{"users":[],"next_cursor_str":"0"}`), nil
	}}
	rec := &fakeRecorder{}

	summary, _ := runWorker(t, f, nil, rec, WorkerOptions{}, "l\t42", "l\t43 staff")

	c := summary.Counters()
	assert.Equal(t, int64(1), c.KindsSkipped)
	assert.Equal(t, int64(1), c.KindsOK)
	require.Len(t, f.requests, 1)
	assert.Contains(t, f.requests[0].URL, "slug=staff")

	require.Len(t, rec.outcomes, 2)
	assert.Equal(t, ledger.StatusSkipped, rec.outcomes[0].Status)
	assert.Equal(t, "staff", rec.outcomes[1].ListName)
}

func TestWorkerMembershipsStartCursor(t *testing.T) {
	f := &fakeFetcher{answer: func(req twitter.Request) (*twitter.Response, error) {
		return ok(`{"lists":[],"next_cursor_str":"0"}`), nil
	}}

	runWorker(t, f, nil, nil, WorkerOptions{}, "m\t42 1300", "m\t43 staff")

	assert.Equal(t, []string{"1300", "-1"}, f.cursors(t))
}

func TestWorkerQuotaPerSeed(t *testing.T) {
	f := &fakeFetcher{answer: func(req twitter.Request) (*twitter.Response, error) {
		return ok(`{"id":1}`), nil
	}}

	quota := &fakeQuota{}
	runWorker(t, f, quota, nil, WorkerOptions{CheckQuotaPerSeed: true}, "u\t1", "u\t2", "bad")
	assert.Equal(t, 2, quota.calls, "rejected lines never consult the quota")

	quota = &fakeQuota{}
	runWorker(t, f, quota, nil, WorkerOptions{}, "u\t1")
	assert.Zero(t, quota.calls)
}

func TestWorkerQuotaFailureSkipsSeed(t *testing.T) {
	f := &fakeFetcher{answer: func(req twitter.Request) (*twitter.Response, error) {
		return ok(`{"id":1}`), nil
	}}
	quota := &fakeQuota{err: context.Canceled}

	summary, _ := runWorker(t, f, quota, nil, WorkerOptions{CheckQuotaPerSeed: true}, "u\t1")

	assert.Empty(t, f.requests)
	assert.Equal(t, int64(1), summary.Counters().SeedsProcessed)
}

func TestWorkerStopsOnCancel(t *testing.T) {
	q := queue.New[string](1)
	d, _ := newDriver(t, &fakeFetcher{}, "json", DriverOptions{})
	w := NewWorker(1, q, d, nil, nil, &Summary{}, WorkerOptions{}, logger.NewNopLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("worker did not stop")
	}
}

func TestStartCursor(t *testing.T) {
	tests := []struct {
		in   string
		want string
		ok   bool
	}{
		{"1300", "1300", true},
		{"-5", "-5", true},
		{"0", "", false},
		{"", "", false},
		{"staff", "", false},
		{"12ab", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			c, ok := startCursor(tt.in)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, c.String())
		})
	}
}

func TestSeedKindsInDispatchOrder(t *testing.T) {
	s, err := seed.Parse("fu\t42")
	require.NoError(t, err)
	assert.Equal(t, []seed.Kind{seed.Profile, seed.Friends}, s.Kinds)
}
