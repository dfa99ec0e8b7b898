package ui

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"twaler/pkg/checkpoint"
)

const lineWidth = 100

// ProgressDisplay redraws a single status line while a crawl runs
type ProgressDisplay struct {
	mu      sync.Mutex
	out     io.Writer
	started time.Time
	drawn   bool
}

// NewProgressDisplay creates a display writing to out
func NewProgressDisplay(out io.Writer) *ProgressDisplay {
	return &ProgressDisplay{out: out, started: time.Now()}
}

// Update redraws the line for c
func (p *ProgressDisplay) Update(c checkpoint.Counters) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.drawn = true
	fmt.Fprintf(p.out, "\r%s\r%s", strings.Repeat(" ", lineWidth), p.line(c))
}

// Run calls snapshot every interval and draws it until ctx is done
func (p *ProgressDisplay) Run(ctx context.Context, interval time.Duration, snapshot func() checkpoint.Counters) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.Update(snapshot())
		}
	}
}

// Finish ends the status line so later output starts on a fresh one
func (p *ProgressDisplay) Finish() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.drawn {
		fmt.Fprintln(p.out)
		p.drawn = false
	}
}

func (p *ProgressDisplay) line(c checkpoint.Counters) string {
	elapsed := time.Since(p.started)
	rate := 0.0
	if m := elapsed.Minutes(); m > 0 {
		rate = float64(c.SeedsProcessed) / m
	}

	parts := []string{
		labelStyle.Render("crawling"),
		fmt.Sprintf("%s seeds", humanize.Comma(c.SeedsProcessed)),
		fmt.Sprintf("%.1f/min", rate),
		fmt.Sprintf("%s pages", humanize.Comma(c.Pages)),
		humanize.Bytes(uint64(c.Bytes)),
	}
	if c.KindsFailed > 0 {
		parts = append(parts, errorStyle.Render(fmt.Sprintf("%d failed", c.KindsFailed)))
	}
	return strings.Join(parts, dimStyle.Render(" • "))
}
