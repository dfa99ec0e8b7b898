package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
	"twaler/pkg/checkpoint"
)

// Row is one label/value line of a report
type Row struct {
	Label string
	Value string
}

// RenderRows lays rows out as an aligned two-column block
func RenderRows(rows []Row) string {
	width := 0
	for _, r := range rows {
		width = max(width, lipgloss.Width(r.Label))
	}
	label := labelStyle.Width(width + 1)

	lines := make([]string, 0, len(rows))
	for _, r := range rows {
		lines = append(lines, label.Render(r.Label)+" "+valueStyle.Render(r.Value))
	}
	return strings.Join(lines, "\n")
}

// CounterRows describes a run's counters
func CounterRows(c checkpoint.Counters) []Row {
	rows := []Row{
		{"Lines read", humanize.Comma(c.LinesRead)},
		{"Comments", humanize.Comma(c.CommentsSkipped)},
		{"Seeds", humanize.Comma(c.SeedsProcessed)},
		{"Rejected", humanize.Comma(c.SeedsRejected)},
		{"Kinds ok", humanize.Comma(c.KindsOK)},
		{"Kinds failed", humanize.Comma(c.KindsFailed)},
		{"Kinds skipped", humanize.Comma(c.KindsSkipped)},
		{"Pages", humanize.Comma(c.Pages)},
		{"Stored", humanize.Bytes(uint64(c.Bytes))},
	}
	if c.SeedsPanicked > 0 {
		rows = append(rows, Row{"Panics", humanize.Comma(c.SeedsPanicked)})
	}
	return rows
}

// RenderCheckpoint formats a run checkpoint for `twaler status`
func RenderCheckpoint(cp *checkpoint.Checkpoint) string {
	rows := []Row{
		{"Run", cp.RunID},
		{"Status", statusText(cp.Status)},
		{"Seed file", cp.SeedFile},
		{"Workers", fmt.Sprint(cp.Workers)},
		{"Started", fmt.Sprintf("%s (%s)", cp.StartedAt.Local().Format(time.DateTime), humanize.Time(cp.StartedAt))},
		{"Elapsed", cp.Elapsed().Round(time.Second).String()},
	}
	if cp.Error != "" {
		rows = append(rows, Row{"Error", cp.Error})
	}
	rows = append(rows, CounterRows(cp.Counters)...)
	return RenderRows(rows)
}

func statusText(s checkpoint.Status) string {
	switch s {
	case checkpoint.StatusFinished:
		return successStyle.Render(string(s))
	case checkpoint.StatusFailed:
		return errorStyle.Render(string(s))
	case checkpoint.StatusCancelled:
		return warningStyle.Render(string(s))
	default:
		return string(s)
	}
}
