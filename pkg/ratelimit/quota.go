package ratelimit

import (
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/tidwall/gjson"
	"twaler/pkg/auth"
	errs "twaler/pkg/errors"
	"twaler/pkg/logger"
	"twaler/pkg/retry"
)

// Doer sends one HTTP request; a worker's connection satisfies it
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// QuotaConfig configures a QuotaGate
type QuotaConfig struct {
	// URL of the rate-limit-status endpoint
	URL       string
	UseAuth   bool
	UserAgent string
	// Attempts bounds one Remaining call
	Attempts int
	// RetryGap separates attempts within one Remaining call
	RetryGap time.Duration
}

// QuotaGate reports the remaining call budget. It is advisory: every worker
// owns one and polls independently.
type QuotaGate struct {
	doer   Doer
	cfg    QuotaConfig
	creds  auth.Source
	logger logger.Logger
}

// NewQuotaGate creates a gate that queries through doer
func NewQuotaGate(doer Doer, cfg QuotaConfig, creds auth.Source, log logger.Logger) *QuotaGate {
	if cfg.Attempts <= 0 {
		cfg.Attempts = 1
	}
	if log == nil {
		log = logger.GetLogger()
	}
	return &QuotaGate{
		doer:   doer,
		cfg:    cfg,
		creds:  creds,
		logger: log.WithField("component", "quota"),
	}
}

// Remaining returns the remaining call budget, or 0 when every attempt
// failed. Callers treat both meanings of 0 alike.
func (g *QuotaGate) Remaining(ctx context.Context) int {
	n, err := retry.DoWithResult(func() (int, error) {
		return g.query(ctx)
	}, &retry.Config{
		MaxAttempts: g.cfg.Attempts,
		Backoff:     &retry.ConstantBackoff{Delay: g.cfg.RetryGap},
		RetryIf: func(err error) bool {
			return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
		},
		Context: ctx,
		Logger:  g.logger,
	})
	if err != nil {
		g.logger.WithError(err).Warn("Quota query failed")
		return 0
	}
	return n
}

// WaitForQuota blocks until Remaining reports a positive budget, sleeping
// cooldown between polls. It only fails when ctx is done.
func (g *QuotaGate) WaitForQuota(ctx context.Context, cooldown time.Duration) error {
	for {
		remaining := g.Remaining(ctx)
		if remaining > 0 {
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		logger.LogQuota(g.logger, remaining, cooldown)
		if err := retry.Wait(ctx, cooldown); err != nil {
			return err
		}
	}
}

func (g *QuotaGate) query(ctx context.Context) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.cfg.URL, nil)
	if err != nil {
		return 0, retry.Stop(err)
	}
	req.Header.Set("Connection", "keep-alive")
	if g.cfg.UserAgent != "" {
		req.Header.Set("User-Agent", g.cfg.UserAgent)
	}
	if g.cfg.UseAuth {
		if err := auth.Apply(ctx, req, g.creds); err != nil {
			return 0, retry.Stop(err)
		}
	}

	resp, err := g.doer.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return 0, ctx.Err()
		}
		return 0, errs.Wrap(errs.ErrorTypeNetwork, 0, err, "quota request failed")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, errs.Wrap(errs.ErrorTypeConnection, resp.StatusCode, err, "quota body truncated")
	}
	if resp.StatusCode != http.StatusOK {
		return 0, errs.New(errs.ClassifyStatus(resp.StatusCode), resp.StatusCode, "quota endpoint returned %s", resp.Status)
	}

	return ParseRemaining(body)
}

// ParseRemaining reads remaining_hits (JSON) or remaining-hits (XML)
func ParseRemaining(body []byte) (int, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) > 0 && trimmed[0] == '<' {
		return remainingFromXML(trimmed)
	}

	r := gjson.GetBytes(trimmed, "remaining_hits")
	if !r.Exists() || r.Type != gjson.Number {
		return 0, errs.New(errs.ErrorTypeParsing, 0, "remaining_hits missing from quota response")
	}
	return int(r.Int()), nil
}

func remainingFromXML(body []byte) (int, error) {
	dec := xml.NewDecoder(bytes.NewReader(body))
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			return 0, errs.New(errs.ErrorTypeParsing, 0, "remaining-hits missing from quota response")
		}
		if err != nil {
			return 0, errs.Wrap(errs.ErrorTypeParsing, 0, err, "quota response is not valid XML")
		}
		start, ok := tok.(xml.StartElement)
		if !ok || start.Name.Local != "remaining-hits" {
			continue
		}
		var text string
		if err := dec.DecodeElement(&text, &start); err != nil {
			return 0, errs.Wrap(errs.ErrorTypeParsing, 0, err, "malformed remaining-hits")
		}
		n, err := strconv.Atoi(strings.TrimSpace(text))
		if err != nil {
			return 0, errs.Wrap(errs.ErrorTypeParsing, 0, err, "malformed remaining-hits")
		}
		return n, nil
	}
}
