package logger

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"twaler/pkg/config"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		cfg     *config.LoggingConfig
		wantErr bool
	}{
		{
			name:    "valid config with info level",
			cfg:     &config.LoggingConfig{Level: "info"},
			wantErr: false,
		},
		{
			name:    "valid config with debug level",
			cfg:     &config.LoggingConfig{Level: "debug"},
			wantErr: false,
		},
		{
			name:    "invalid log level",
			cfg:     &config.LoggingConfig{Level: "invalid"},
			wantErr: true,
		},
		{
			name: "config with rotated file output",
			cfg: &config.LoggingConfig{
				Level:      "info",
				File:       filepath.Join(t.TempDir(), "logs", "crawl.log"),
				MaxSize:    1,
				MaxBackups: 50,
			},
			wantErr: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, err := New(tt.cfg)
			if (err != nil) != tt.wantErr {
				t.Errorf("New() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if !tt.wantErr && logger == nil {
				t.Error("New() returned nil logger")
			}
		})
	}
}

func TestFileOutputWritesWholeLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "crawl.log")
	logger, err := New(&config.LoggingConfig{Level: "info", File: path, MaxSize: 10})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				logger.InfoWithFields("page stored", map[string]interface{}{
					"worker": w,
					"page":   i,
				})
			}
		}(w)
	}
	wg.Wait()

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open log: %v", err)
	}
	defer f.Close()

	lines := 0
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "{") || !strings.HasSuffix(line, "}") {
			t.Fatalf("interleaved log line: %q", line)
		}
		lines++
	}
	if lines != 400 {
		t.Errorf("expected 400 log lines, got %d", lines)
	}
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		level    string
		expected zerolog.Level
		wantErr  bool
	}{
		{"debug", zerolog.DebugLevel, false},
		{"DEBUG", zerolog.DebugLevel, false},
		{"info", zerolog.InfoLevel, false},
		{"warn", zerolog.WarnLevel, false},
		{"warning", zerolog.WarnLevel, false},
		{"error", zerolog.ErrorLevel, false},
		{"disabled", zerolog.Disabled, false},
		{"invalid", zerolog.InfoLevel, true},
		{"", zerolog.InfoLevel, true},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			level, err := parseLogLevel(tt.level)
			if (err != nil) != tt.wantErr {
				t.Errorf("parseLogLevel() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if level != tt.expected {
				t.Errorf("parseLogLevel() = %v, want %v", level, tt.expected)
			}
		})
	}
}

func newBufferLogger(buf *bytes.Buffer) *zerologLogger {
	zerolog.SetGlobalLevel(zerolog.DebugLevel)
	zlog := zerolog.New(buf).With().Timestamp().Logger().Level(zerolog.DebugLevel)
	return &zerologLogger{
		logger: &zlog,
		fields: make(map[string]interface{}),
	}
}

func TestLoggerMethods(t *testing.T) {
	var buf bytes.Buffer
	logger := newBufferLogger(&buf)

	cases := map[string]func(string){
		"debug": logger.Debug,
		"info":  logger.Info,
		"warn":  logger.Warn,
		"error": logger.Error,
	}
	for level, fn := range cases {
		t.Run(level, func(t *testing.T) {
			buf.Reset()
			fn(level + " message")
			if !strings.Contains(buf.String(), level+" message") {
				t.Errorf("%s message not found in output", level)
			}
		})
	}
}

func TestFieldChaining(t *testing.T) {
	var buf bytes.Buffer
	logger := newBufferLogger(&buf)

	logger.
		WithField("worker_id", 3).
		WithField("target_id", "1007").
		WithFields(map[string]interface{}{
			"kind":  "friends",
			"pages": 4,
		}).
		Info("chained fields")

	output := buf.String()
	for _, want := range []string{
		"chained fields",
		`"worker_id":3`,
		`"target_id":"1007"`,
		`"kind":"friends"`,
		`"pages":4`,
	} {
		if !strings.Contains(output, want) {
			t.Errorf("%s not found in output %s", want, output)
		}
	}
}

func TestWithError(t *testing.T) {
	var buf bytes.Buffer
	logger := newBufferLogger(&buf)

	if logger.WithError(nil) != Logger(logger) {
		t.Error("WithError(nil) should return the same logger")
	}

	logger.WithError(errors.New("connection reset")).Error("fetch failed")

	output := buf.String()
	if !strings.Contains(output, "fetch failed") || !strings.Contains(output, "connection reset") {
		t.Errorf("unexpected output %s", output)
	}
}

func TestFieldTypes(t *testing.T) {
	var buf bytes.Buffer
	logger := newBufferLogger(&buf)

	logger.WithFields(map[string]interface{}{
		"string":   "test",
		"int":      123,
		"int64":    int64(456),
		"float":    3.14,
		"bool":     true,
		"time":     time.Date(2012, 1, 1, 0, 0, 0, 0, time.UTC),
		"duration": 5 * time.Second,
		"strings":  []string{"a", "b"},
		"ints":     []int{1, 2},
		"custom":   struct{ Name string }{Name: "test"},
	}).Info("test all types")

	if !strings.Contains(buf.String(), `"int64":456`) {
		t.Errorf("unexpected output %s", buf.String())
	}
}

func TestHelpers(t *testing.T) {
	tl := NewTestLogger()

	LogFetch(tl, "42", "friends", 3, nil)
	LogFetch(tl, "42", "tweets", 0, fmt.Errorf("gone"))
	LogQuota(tl, 0, time.Minute)
	LogCrawlProgress(tl, 5, 10)
	LogComponentStart(tl, "supervisor", map[string]interface{}{"workers": 2})
	LogComponentStop(tl, "supervisor", "drained")
	LogMetrics(tl, "crawl", map[string]interface{}{"pages": 12})

	if !tl.HasMessage("Fetch abandoned") || !tl.HasMessage("Fetch completed") {
		t.Error("expected fetch outcome messages")
	}
	if len(tl.GetMessagesByLevel("WARN")) != 2 {
		t.Errorf("expected 2 warnings, got %d", len(tl.GetMessagesByLevel("WARN")))
	}
	progress := tl.GetMessagesByLevel("INFO")
	found := false
	for _, m := range progress {
		if m.Message == "Crawl progress" && m.Fields["percentage"] == "50.0%" {
			found = true
		}
	}
	if !found {
		t.Error("expected crawl progress at 50.0%")
	}
}

func TestGlobalLogger(t *testing.T) {
	t.Cleanup(func() { globalLogger = nil })

	if err := Initialize(&config.LoggingConfig{Level: "debug"}); err != nil {
		t.Fatalf("Failed to initialize logger: %v", err)
	}

	l := GetLogger()
	if l == nil {
		t.Fatal("GetLogger() returned nil")
	}
	if GetLogger() != l {
		t.Error("GetLogger() should return the initialized logger")
	}
	l.WithField("key", "value").Info("with field")
	l.WithError(errors.New("test")).Error("with error")

	if err := Initialize(&config.LoggingConfig{Level: "loud"}); err == nil {
		t.Error("Initialize() accepted an unknown level")
	}
	if GetLogger() != l {
		t.Error("a failed Initialize() must keep the previous logger")
	}
}

func TestDisabledLevelWritesNothing(t *testing.T) {
	var buf bytes.Buffer
	logger := newBufferLogger(&buf)
	zerolog.SetGlobalLevel(zerolog.WarnLevel)
	t.Cleanup(func() { zerolog.SetGlobalLevel(zerolog.DebugLevel) })

	logger.WithField("target_id", "42").DebugWithFields("hidden", map[string]interface{}{"pages": 1})
	logger.Warn("shown")

	if strings.Contains(buf.String(), "hidden") || !strings.Contains(buf.String(), "shown") {
		t.Errorf("unexpected output %s", buf.String())
	}
}
