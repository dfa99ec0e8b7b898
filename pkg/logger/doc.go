// Package logger provides the structured logging interface used across the crawler.
//
// It wraps zerolog and adds:
// - Four log levels (Debug, Info, Warn, Error)
// - Structured logging with fields
// - Colored console output on stderr
// - Size-based file rotation through lumberjack
// - A global logger instance for the CLI
//
// Every sink is wrapped in zerolog.SyncWriter, so lines written by
// concurrent workers never interleave.
//
// Basic Usage:
//
//	err := logger.Initialize(&config.LoggingConfig{
//	    Level:      "info",
//	    File:       "/var/log/twaler/crawl.log",
//	    MaxSize:    1,
//	    MaxBackups: 50,
//	})
//
//	log := logger.GetLogger().WithField("worker_id", 3)
//	log.InfoWithFields("page stored", map[string]interface{}{
//	    "target_id": "1007",
//	    "kind":      "friends",
//	})
//
// Components take a Logger in their constructors; tests pass NewNopLogger
// or NewTestLogger.
package logger
