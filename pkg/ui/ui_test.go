package ui

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"twaler/pkg/checkpoint"
)

func TestPrinterQuiet(t *testing.T) {
	var out, errOut bytes.Buffer
	p := NewPrinter(&out, &errOut)

	p.Success("stored")
	p.Info("Run", "abc")
	assert.Contains(t, out.String(), "stored")
	assert.Contains(t, out.String(), "abc")

	out.Reset()
	p.SetQuiet(true)
	p.Success("hidden")
	p.Warning("hidden")
	p.Error("boom", errors.New("disk full"))

	assert.Empty(t, out.String())
	assert.Contains(t, errOut.String(), "boom: disk full")
}

func TestRenderRowsAligns(t *testing.T) {
	out := RenderRows([]Row{{"A", "1"}, {"Longer", "2"}})
	lines := bytes.Split([]byte(out), []byte("\n"))
	require.Len(t, lines, 2)
	assert.Contains(t, string(lines[0]), "1")
	assert.Contains(t, string(lines[1]), "2")
}

func TestRenderCheckpoint(t *testing.T) {
	cp := &checkpoint.Checkpoint{
		RunID:     "run-1",
		SeedFile:  "seeds.txt",
		Workers:   4,
		Status:    checkpoint.StatusFailed,
		Error:     "open seed file: no such file",
		StartedAt: time.Now().Add(-time.Minute),
		Counters:  checkpoint.Counters{SeedsProcessed: 1200, Bytes: 2048, SeedsPanicked: 1},
	}

	out := RenderCheckpoint(cp)
	for _, want := range []string{"run-1", "seeds.txt", "failed", "no such file", "1,200", "2.0 kB", "Panics"} {
		assert.Contains(t, out, want)
	}
}

func TestProgressDisplay(t *testing.T) {
	var out bytes.Buffer
	p := NewProgressDisplay(&out)

	p.Finish()
	assert.Empty(t, out.String(), "nothing to terminate before the first draw")

	p.Update(checkpoint.Counters{SeedsProcessed: 3, Pages: 7, KindsFailed: 2})
	assert.Contains(t, out.String(), "3 seeds")
	assert.Contains(t, out.String(), "7 pages")
	assert.Contains(t, out.String(), "2 failed")

	p.Finish()
	assert.True(t, bytes.HasSuffix(out.Bytes(), []byte("\n")))
}
