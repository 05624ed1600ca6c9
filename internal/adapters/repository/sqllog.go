package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	gormlogger "gorm.io/gorm/logger"

	"github.com/okian/podium/pkg/logger"
)

const defaultSlowQuery = 200 * time.Millisecond

// gormLogger routes gorm output through logger.Logger.
type gormLogger struct {
	log           logger.Logger
	level         gormlogger.LogLevel
	slowThreshold time.Duration
}

func newGormLogger(l logger.Logger) *gormLogger {
	return &gormLogger{log: l, level: gormlogger.Warn, slowThreshold: defaultSlowQuery}
}

func (l *gormLogger) LogMode(level gormlogger.LogLevel) gormlogger.Interface {
	c := *l
	c.level = level
	return &c
}

func (l *gormLogger) Info(ctx context.Context, msg string, data ...interface{}) {
	if l.level >= gormlogger.Info {
		l.log.Info(ctx, fmt.Sprintf(msg, data...), logger.String("component", "gorm"))
	}
}

func (l *gormLogger) Warn(ctx context.Context, msg string, data ...interface{}) {
	if l.level >= gormlogger.Warn {
		l.log.Warn(ctx, fmt.Sprintf(msg, data...), logger.String("component", "gorm"))
	}
}

func (l *gormLogger) Error(ctx context.Context, msg string, data ...interface{}) {
	if l.level >= gormlogger.Error {
		l.log.Error(ctx, fmt.Sprintf(msg, data...), logger.String("component", "gorm"))
	}
}

// Trace logs failed and slow statements. Missing rows are not failures.
func (l *gormLogger) Trace(ctx context.Context, begin time.Time, fc func() (string, int64), err error) {
	if l.level <= gormlogger.Silent {
		return
	}
	elapsed := time.Since(begin)
	switch {
	case err != nil && l.level >= gormlogger.Error && !errors.Is(err, gormlogger.ErrRecordNotFound):
		sql, rows := fc()
		l.log.Error(ctx, "gorm.query", l.fields(sql, rows, elapsed, logger.Error(err))...)
	case elapsed > l.slowThreshold && l.level >= gormlogger.Warn:
		sql, rows := fc()
		l.log.Warn(ctx, "gorm.slow_query", l.fields(sql, rows, elapsed)...)
	case l.level >= gormlogger.Info:
		sql, rows := fc()
		l.log.Debug(ctx, "gorm.query", l.fields(sql, rows, elapsed)...)
	}
}

func (l *gormLogger) fields(sql string, rows int64, elapsed time.Duration, extra ...logger.Field) []logger.Field {
	fs := []logger.Field{
		logger.String("component", "gorm"),
		logger.String("sql", strings.TrimSpace(sql)),
		logger.Duration("elapsed", elapsed),
	}
	if rows >= 0 {
		fs = append(fs, logger.Any("rows_affected", rows))
	}
	return append(fs, extra...)
}

var _ gormlogger.Interface = (*gormLogger)(nil)
