// logger.go wires datastore logging and bridges slog into GORM's logger interface
package datastore

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/tractorcare/tractorcare-go/internal/logging"
	gormlogger "gorm.io/gorm/logger"
)

// Queries slower than this get logged at warn level.
const defaultSlowQueryThreshold = time.Second

var (
	datastoreLogger *slog.Logger
	loggerOnce      sync.Once
)

// getLogger returns the package logger, initializing it on first use.
func getLogger() *slog.Logger {
	loggerOnce.Do(func() {
		datastoreLogger = logging.ForService("datastore")
	})
	return datastoreLogger
}

// createGormLogger returns a GORM logger backed by the package slog logger.
func createGormLogger() gormlogger.Interface {
	return &gormLogger{
		slowThreshold: defaultSlowQueryThreshold,
		logLevel:      gormlogger.Warn,
	}
}

type gormLogger struct {
	slowThreshold time.Duration
	logLevel      gormlogger.LogLevel
}

// LogMode implements gormlogger.Interface
func (l *gormLogger) LogMode(level gormlogger.LogLevel) gormlogger.Interface {
	clone := *l
	clone.logLevel = level
	return &clone
}

// Info implements gormlogger.Interface
func (l *gormLogger) Info(ctx context.Context, msg string, data ...any) {
	if l.logLevel >= gormlogger.Info {
		getLogger().InfoContext(ctx, msg, "data", data)
	}
}

// Warn implements gormlogger.Interface
func (l *gormLogger) Warn(ctx context.Context, msg string, data ...any) {
	if l.logLevel >= gormlogger.Warn {
		getLogger().WarnContext(ctx, msg, "data", data)
	}
}

// Error implements gormlogger.Interface
func (l *gormLogger) Error(ctx context.Context, msg string, data ...any) {
	if l.logLevel >= gormlogger.Error {
		getLogger().ErrorContext(ctx, msg, "data", data)
	}
}

// Trace implements gormlogger.Interface
func (l *gormLogger) Trace(ctx context.Context, begin time.Time, fc func() (string, int64), err error) {
	if l.logLevel <= gormlogger.Silent {
		return
	}

	elapsed := time.Since(begin)
	sql, rows := fc()

	switch {
	case err != nil && l.logLevel >= gormlogger.Error:
		getLogger().ErrorContext(ctx, "Query failed",
			"error", err,
			"sql", sql,
			"rows", rows,
			"duration_ms", elapsed.Milliseconds())
	case elapsed > l.slowThreshold && l.logLevel >= gormlogger.Warn:
		getLogger().WarnContext(ctx, "Slow query",
			"sql", sql,
			"rows", rows,
			"duration_ms", elapsed.Milliseconds(),
			"threshold_ms", l.slowThreshold.Milliseconds())
	case l.logLevel >= gormlogger.Info:
		getLogger().DebugContext(ctx, "Query",
			"sql", sql,
			"rows", rows,
			"duration_ms", elapsed.Milliseconds())
	}
}
