package logger

import (
	"fmt"
	"time"
)

// orGlobal falls back to the global logger
func orGlobal(l Logger) Logger {
	if l == nil {
		return GetLogger()
	}
	return l
}

// LogFetch logs the outcome of one (target, kind) crawl
func LogFetch(l Logger, targetID, kind string, pages int, err error) {
	logger := orGlobal(l).WithFields(map[string]interface{}{
		"target_id": targetID,
		"kind":      kind,
		"pages":     pages,
	})

	if err != nil {
		logger.WithError(err).Warn("Fetch abandoned")
	} else {
		logger.Debug("Fetch completed")
	}
}

// LogQuota logs a quota observation and the wait it causes
func LogQuota(l Logger, remaining int, wait time.Duration) {
	orGlobal(l).WithFields(map[string]interface{}{
		"remaining": remaining,
		"wait":      wait,
		"action":    "quota_wait",
	}).Warn("Quota exhausted, backing off")
}

// LogCrawlProgress logs seed throughput
func LogCrawlProgress(l Logger, processed, queued int64) {
	percentage := 0.0
	if queued > 0 {
		percentage = float64(processed) / float64(queued) * 100
	}

	orGlobal(l).WithFields(map[string]interface{}{
		"processed":  processed,
		"queued":     queued,
		"percentage": fmt.Sprintf("%.1f%%", percentage),
	}).Info("Crawl progress")
}

// LogComponentStart logs when a component starts
func LogComponentStart(l Logger, component string, config map[string]interface{}) {
	logger := orGlobal(l).WithField("component", component)

	if len(config) > 0 {
		logger = logger.WithFields(config)
	}

	logger.Info("Component started")
}

// LogComponentStop logs when a component stops
func LogComponentStop(l Logger, component string, reason string) {
	orGlobal(l).WithFields(map[string]interface{}{
		"component": component,
		"reason":    reason,
	}).Info("Component stopped")
}

// LogMetrics logs performance metrics
func LogMetrics(l Logger, operation string, metrics map[string]interface{}) {
	fields := map[string]interface{}{
		"operation": operation,
		"type":      "metrics",
	}

	for k, v := range metrics {
		fields[k] = v
	}

	orGlobal(l).InfoWithFields("Performance metrics", fields)
}

// NewNopLogger creates a no-operation logger for testing
func NewNopLogger() Logger {
	return &nopLogger{}
}

// nopLogger is a logger that does nothing (useful for testing)
type nopLogger struct{}

func (n *nopLogger) Debug(msg string)                                          {}
func (n *nopLogger) Info(msg string)                                           {}
func (n *nopLogger) Warn(msg string)                                           {}
func (n *nopLogger) Error(msg string)                                          {}
func (n *nopLogger) WithField(key string, value interface{}) Logger            { return n }
func (n *nopLogger) WithFields(fields map[string]interface{}) Logger           { return n }
func (n *nopLogger) WithError(err error) Logger                                { return n }
func (n *nopLogger) DebugWithFields(msg string, fields map[string]interface{}) {}
func (n *nopLogger) InfoWithFields(msg string, fields map[string]interface{})  {}
func (n *nopLogger) WarnWithFields(msg string, fields map[string]interface{})  {}
func (n *nopLogger) ErrorWithFields(msg string, fields map[string]interface{}) {}
