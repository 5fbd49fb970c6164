package logger

import (
	"errors"
	"sort"
	"strings"

	"nav-agent/internal/application/port/output"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var _ output.LoggerPort = (*LoggerAdapter)(nil)

type LoggerAdapter struct {
	base    *zap.Logger
	sugar   *zap.SugaredLogger
	closeFn func() error
}

func NewLoggerAdapter(cfg Config) *LoggerAdapter {
	return NewLoggerAdapterWithWriter(cfg, stdout())
}

func NewLoggerAdapterWithWriter(cfg Config, console zapcore.WriteSyncer) *LoggerAdapter {
	core, closeFn := buildCore(cfg, console)
	base := zap.New(core, zap.AddStacktrace(zap.ErrorLevel))
	if cfg.Service != "" {
		base = base.Named(cfg.Service)
	}
	return newAdapter(base, closeFn)
}

func NewFromZap(l *zap.Logger) *LoggerAdapter {
	return newAdapter(l, nil)
}

func NewNop() *LoggerAdapter {
	return newAdapter(zap.NewNop(), nil)
}

func newAdapter(base *zap.Logger, closeFn func() error) *LoggerAdapter {
	return &LoggerAdapter{
		base:    base,
		sugar:   base.Sugar(),
		closeFn: closeFn,
	}
}

func (l *LoggerAdapter) Zap() *zap.Logger {
	return l.base
}

func (l *LoggerAdapter) Debug(msg string, args ...any) {
	l.sugar.Debugw(msg, args...)
}

func (l *LoggerAdapter) Info(msg string, args ...any) {
	l.sugar.Infow(msg, args...)
}

func (l *LoggerAdapter) Warn(msg string, args ...any) {
	l.sugar.Warnw(msg, args...)
}

func (l *LoggerAdapter) Error(msg string, args ...any) {
	l.sugar.Errorw(msg, args...)
}

func (l *LoggerAdapter) WithField(key string, value any) output.LoggerPort {
	return newAdapter(l.base.With(zap.Any(key, value)), l.closeFn)
}

func (l *LoggerAdapter) WithFields(fields map[string]any) output.LoggerPort {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	zf := make([]zap.Field, 0, len(keys))
	for _, k := range keys {
		zf = append(zf, zap.Any(k, fields[k]))
	}
	return newAdapter(l.base.With(zf...), l.closeFn)
}

func (l *LoggerAdapter) Close() error {
	err := l.base.Sync()
	if err != nil && isIgnorableSyncError(err) {
		err = nil
	}
	if l.closeFn != nil {
		err = errors.Join(err, l.closeFn())
	}
	return err
}

// Syncing a terminal or pipe fails on some platforms; that is not a lost log.
func isIgnorableSyncError(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "/dev/stdout") ||
		strings.Contains(msg, "invalid argument") ||
		strings.Contains(msg, "inappropriate ioctl") ||
		strings.Contains(msg, "operation not supported")
}
