package twitter

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"syscall"
	"time"

	"twaler/pkg/auth"
	"twaler/pkg/config"
	errs "twaler/pkg/errors"
	"twaler/pkg/logger"
	"twaler/pkg/ratelimit"
	"twaler/pkg/retry"
)

// QuotaWaiter blocks until the remote quota is positive again
type QuotaWaiter interface {
	WaitForQuota(ctx context.Context, cooldown time.Duration) error
}

// Request is one GET against the API
type Request struct {
	URL        string
	UseAuth    bool
	AcceptGzip bool
}

// Policy bounds and paces the retries of one Fetch
type Policy struct {
	MaxAttempts        int
	ServerErrorGap     time.Duration
	NetworkErrorGap    time.Duration
	ConnectionErrorGap time.Duration
	QuotaCooldown      time.Duration
	// MaxReauth bounds credential re-acquisitions after a 401
	MaxReauth int
	UserAgent string
}

// PolicyFromConfig copies the retry policy out of cfg
func PolicyFromConfig(cfg *config.Config) Policy {
	return Policy{
		MaxAttempts:        cfg.Crawl.MaxAttempts,
		ServerErrorGap:     cfg.Crawl.ServerErrorGap,
		NetworkErrorGap:    cfg.Crawl.NetworkErrorGap,
		ConnectionErrorGap: cfg.Crawl.ConnectionErrorGap,
		QuotaCooldown:      cfg.Crawl.QuotaCooldown,
		MaxReauth:          cfg.Crawl.MaxReauth,
		UserAgent:          cfg.API.UserAgent,
	}
}

// Client fetches API resources over one worker's connection
type Client struct {
	conn    *Conn
	quota   QuotaWaiter
	creds   auth.Source
	pacer   ratelimit.Limiter
	policy  Policy
	backoff *retry.ErrorTypeBackoff
	logger  logger.Logger
}

// NewClient creates a client. quota, creds and pacer may be nil.
func NewClient(conn *Conn, quota QuotaWaiter, creds auth.Source, pacer ratelimit.Limiter, policy Policy, log logger.Logger) *Client {
	if log == nil {
		log = logger.GetLogger()
	}
	if pacer == nil {
		pacer = ratelimit.NewPacer(0)
	}
	if policy.MaxAttempts <= 0 {
		policy.MaxAttempts = 1
	}
	return &Client{
		conn:    conn,
		quota:   quota,
		creds:   creds,
		pacer:   pacer,
		policy:  policy,
		backoff: retry.NewErrorTypeBackoff(policy.NetworkErrorGap, policy.ConnectionErrorGap, policy.ServerErrorGap),
		logger:  log,
	}
}

// Conn returns the connection the client sends on
func (c *Client) Conn() *Conn {
	return c.conn
}

// Fetch performs req until it yields a 200, a permanent failure, or the
// attempt cap is used up. The returned error is an *errors.Error or wraps one.
func (c *Client) Fetch(ctx context.Context, req Request) (*Response, error) {
	reauths := 0

	return retry.DoWithResult(func() (*Response, error) {
		return c.attempt(ctx, req)
	}, &retry.Config{
		MaxAttempts: c.policy.MaxAttempts,
		DelayFor:    c.backoff.DelayFor,
		RetryIf: func(err error) bool {
			switch errs.TypeOf(err) {
			case errs.ErrorTypeCanceled:
				return false
			case errs.ErrorTypeAuth:
				// without auth a 401 means the account is protected
				return req.UseAuth && c.creds != nil && reauths < c.policy.MaxReauth
			default:
				return errs.IsRetryable(errs.TypeOf(err))
			}
		},
		OnRetry: func(attempt int, err error, delay time.Duration) {
			c.beforeRetry(ctx, req, err, &reauths)
		},
		Context: ctx,
		Logger:  c.logger,
	})
}

// beforeRetry runs the per-type action that precedes the next attempt
func (c *Client) beforeRetry(ctx context.Context, req Request, err error, reauths *int) {
	switch errs.TypeOf(err) {
	case errs.ErrorTypeRedirect:
		c.logger.WarnWithFields("API redirected a request, reconnecting", map[string]interface{}{
			"url":   req.URL,
			"error": err.Error(),
		})
		c.conn.Reconnect()

	case errs.ErrorTypeServerError, errs.ErrorTypeConnection:
		c.conn.Reconnect()

	case errs.ErrorTypeRateLimit:
		if c.quota == nil {
			return
		}
		if werr := c.quota.WaitForQuota(ctx, c.policy.QuotaCooldown); werr != nil {
			c.logger.WithError(werr).Debug("quota wait interrupted")
		}

	case errs.ErrorTypeAuth:
		*reauths++
		if rerr := c.creds.Refresh(ctx); rerr != nil {
			c.logger.WithError(rerr).Warn("Credential refresh failed")
		}
	}
}

func (c *Client) attempt(ctx context.Context, req Request) (*Response, error) {
	if err := c.pacer.Wait(ctx); err != nil {
		return nil, errs.Wrap(errs.ErrorTypeCanceled, 0, err, "waiting for local rate limit")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, req.URL, nil)
	if err != nil {
		return nil, retry.Stop(errs.Wrap(errs.ErrorTypeUnknown, 0, err, "failed to create request"))
	}
	httpReq.Header.Set("Connection", "keep-alive")
	if c.policy.UserAgent != "" {
		httpReq.Header.Set("User-Agent", c.policy.UserAgent)
	}
	if req.AcceptGzip {
		httpReq.Header.Set("Accept-Encoding", "gzip")
	}
	if req.UseAuth {
		if err := auth.Apply(ctx, httpReq, c.creds); err != nil {
			return nil, retry.Stop(errs.Wrap(errs.ErrorTypeAuth, 0, err, "no credentials for authenticated request"))
		}
	}

	c.logger.DebugWithFields("sending HTTP request", map[string]interface{}{
		"url":  req.URL,
		"auth": req.UseAuth,
		"gzip": req.AcceptGzip,
	})

	start := time.Now()
	resp, err := c.conn.Do(httpReq)
	if err != nil {
		return nil, classifyTransport(ctx, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		if ctx.Err() != nil {
			return nil, errs.Wrap(errs.ErrorTypeCanceled, resp.StatusCode, ctx.Err(), "request cancelled")
		}
		return nil, errs.Wrap(errs.ErrorTypeConnection, resp.StatusCode, err, "incomplete read")
	}

	c.logger.DebugWithFields("HTTP request completed", map[string]interface{}{
		"url":         req.URL,
		"status":      resp.StatusCode,
		"duration_ms": time.Since(start).Milliseconds(),
		"bytes":       len(body),
	})

	if resp.StatusCode != http.StatusOK {
		return nil, errs.New(errs.ClassifyStatus(resp.StatusCode), resp.StatusCode, "%s returned %s", req.URL, resp.Status)
	}

	return &Response{
		URL:     req.URL,
		Status:  resp.StatusCode,
		Header:  resp.Header.Clone(),
		Body:    body,
		Gzipped: resp.Header.Get("Content-Encoding") == "gzip",
	}, nil
}

// classifyTransport splits transport failures into connection-level ones,
// which warrant a reconnect, and everything else
func classifyTransport(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return errs.Wrap(errs.ErrorTypeCanceled, 0, ctx.Err(), "request cancelled")
	}
	if isConnectionError(err) {
		return errs.Wrap(errs.ErrorTypeConnection, 0, err, "connection failed")
	}
	return errs.Wrap(errs.ErrorTypeNetwork, 0, err, "request failed")
}

func isConnectionError(err error) bool {
	switch {
	case errors.Is(err, io.EOF),
		errors.Is(err, io.ErrUnexpectedEOF),
		errors.Is(err, syscall.ECONNRESET),
		errors.Is(err, syscall.ECONNREFUSED),
		errors.Is(err, syscall.ECONNABORTED),
		errors.Is(err, syscall.EPIPE),
		errors.Is(err, net.ErrClosed):
		return true
	}
	return false
}
