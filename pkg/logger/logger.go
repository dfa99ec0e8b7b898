package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gopkg.in/natefinch/lumberjack.v2"
	"twaler/pkg/config"
)

// Logger is the logging surface every crawler component depends on
type Logger interface {
	Debug(msg string)
	Info(msg string)
	Warn(msg string)
	Error(msg string)

	// With* return a derived logger; the receiver is left unchanged
	WithField(key string, value interface{}) Logger
	WithFields(fields map[string]interface{}) Logger
	WithError(err error) Logger

	DebugWithFields(msg string, fields map[string]interface{})
	InfoWithFields(msg string, fields map[string]interface{})
	WarnWithFields(msg string, fields map[string]interface{})
	ErrorWithFields(msg string, fields map[string]interface{})
}

type zerologLogger struct {
	logger *zerolog.Logger
	fields map[string]interface{}
}

// New builds a Logger writing to stderr and, when cfg.File is set, to a
// size-rotated file
func New(cfg *config.LoggingConfig) (Logger, error) {
	l, err := newZerolog(cfg)
	if err != nil {
		return nil, err
	}
	return l, nil
}

func newZerolog(cfg *config.LoggingConfig) (*zerologLogger, error) {
	level, err := parseLogLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level: %w", err)
	}
	zerolog.SetGlobalLevel(level)
	zerolog.TimeFieldFormat = time.RFC3339

	// Every sink goes through a SyncWriter so concurrent workers never
	// interleave partial lines.
	output := io.Writer(zerolog.SyncWriter(newConsoleWriter(os.Stderr)))
	if cfg.File != "" {
		fileOutput, err := setupFileOutput(cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to setup file output: %w", err)
		}
		output = zerolog.MultiLevelWriter(output, zerolog.SyncWriter(fileOutput))
	}

	zlog := zerolog.New(output).With().
		Timestamp().
		Str("app", "twaler").
		Logger()
	return &zerologLogger{logger: &zlog}, nil
}

// setupFileOutput creates a size-rotated file writer
func setupFileOutput(cfg *config.LoggingConfig) (io.Writer, error) {
	if err := os.MkdirAll(filepath.Dir(cfg.File), 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	return &lumberjack.Logger{
		Filename:   cfg.File,
		MaxSize:    cfg.MaxSize,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAge,
		Compress:   cfg.Compress,
	}, nil
}

var levelTags = map[string]string{
	"DEBUG": "\033[37mDEBG\033[0m",
	"INFO":  "\033[32mINFO\033[0m",
	"WARN":  "\033[33mWARN\033[0m",
	"ERROR": "\033[31mERRO\033[0m",
}

func newConsoleWriter(out io.Writer) zerolog.ConsoleWriter {
	return zerolog.ConsoleWriter{
		Out:        out,
		TimeFormat: "15:04:05",
		FormatLevel: func(i interface{}) string {
			if i == nil {
				return ""
			}
			level := strings.ToUpper(fmt.Sprint(i))
			if tag, ok := levelTags[level]; ok {
				return tag
			}
			return level
		},
		FormatMessage: func(i interface{}) string {
			if i == nil {
				return ""
			}
			return fmt.Sprintf("| %s", i)
		},
		FormatFieldName: func(i interface{}) string {
			return fmt.Sprintf("\033[36m%s\033[0m:", i)
		},
	}
}

func parseLogLevel(level string) (zerolog.Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return zerolog.DebugLevel, nil
	case "info":
		return zerolog.InfoLevel, nil
	case "warn", "warning":
		return zerolog.WarnLevel, nil
	case "error":
		return zerolog.ErrorLevel, nil
	case "disabled":
		return zerolog.Disabled, nil
	default:
		return zerolog.InfoLevel, fmt.Errorf("unknown log level: %s", level)
	}
}

func (l *zerologLogger) Debug(msg string) { l.write(l.logger.Debug(), msg, nil) }
func (l *zerologLogger) Info(msg string)  { l.write(l.logger.Info(), msg, nil) }
func (l *zerologLogger) Warn(msg string)  { l.write(l.logger.Warn(), msg, nil) }
func (l *zerologLogger) Error(msg string) { l.write(l.logger.Error(), msg, nil) }

func (l *zerologLogger) DebugWithFields(msg string, fields map[string]interface{}) {
	l.write(l.logger.Debug(), msg, fields)
}

func (l *zerologLogger) InfoWithFields(msg string, fields map[string]interface{}) {
	l.write(l.logger.Info(), msg, fields)
}

func (l *zerologLogger) WarnWithFields(msg string, fields map[string]interface{}) {
	l.write(l.logger.Warn(), msg, fields)
}

func (l *zerologLogger) ErrorWithFields(msg string, fields map[string]interface{}) {
	l.write(l.logger.Error(), msg, fields)
}

func (l *zerologLogger) WithField(key string, value interface{}) Logger {
	return l.WithFields(map[string]interface{}{key: value})
}

func (l *zerologLogger) WithFields(fields map[string]interface{}) Logger {
	merged := make(map[string]interface{}, len(l.fields)+len(fields))
	for k, v := range l.fields {
		merged[k] = v
	}
	for k, v := range fields {
		merged[k] = v
	}
	return &zerologLogger{logger: l.logger, fields: merged}
}

// WithError records err under "error"; a nil err returns l itself
func (l *zerologLogger) WithError(err error) Logger {
	if err == nil {
		return l
	}
	return l.WithField("error", err.Error())
}

// write emits the stored fields, then the per-call ones; a disabled
// level yields a nil event, which zerolog treats as a no-op
func (l *zerologLogger) write(event *zerolog.Event, msg string, fields map[string]interface{}) {
	for k, v := range l.fields {
		event = addField(event, k, v)
	}
	for k, v := range fields {
		event = addField(event, k, v)
	}
	event.Msg(msg)
}

func addField(event *zerolog.Event, key string, value interface{}) *zerolog.Event {
	switch v := value.(type) {
	case string:
		return event.Str(key, v)
	case int:
		return event.Int(key, v)
	case int64:
		return event.Int64(key, v)
	case float64:
		return event.Float64(key, v)
	case bool:
		return event.Bool(key, v)
	case time.Time:
		return event.Time(key, v)
	case time.Duration:
		return event.Dur(key, v)
	case error:
		return event.AnErr(key, v)
	case []string:
		return event.Strs(key, v)
	default:
		return event.Interface(key, v)
	}
}

var globalLogger Logger

// Initialize installs the CLI's global logger and points zerolog's
// package logger at the same sinks
func Initialize(cfg *config.LoggingConfig) error {
	l, err := newZerolog(cfg)
	if err != nil {
		return err
	}
	globalLogger = l
	log.Logger = *l.logger
	return nil
}

// GetLogger returns the global logger, creating an info-level one on first use
func GetLogger() Logger {
	if globalLogger == nil {
		globalLogger, _ = New(&config.LoggingConfig{Level: "info"})
	}
	return globalLogger
}
