// Package log provides the structured logging used across the statistics
// engine. It wraps zap so that callers attach tags to a context and log
// through that context, never through a bare *zap.Logger.
package log

import (
	"context"
	"sync"

	"github.com/cockroachdb/logtags"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	mu     sync.Mutex
	base   *zap.Logger
	logged sync.Map // dedups "log once" warnings, keyed by string
)

func logger() *zap.Logger {
	mu.Lock()
	defer mu.Unlock()
	if base == nil {
		cfg := zap.NewProductionConfig()
		cfg.EncoderConfig.TimeKey = "ts"
		cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
		l, err := cfg.Build()
		if err != nil {
			l = zap.NewNop()
		}
		base = l
	}
	return base
}

// SetLogger overrides the process-wide logger, primarily for tests.
func SetLogger(l *zap.Logger) {
	mu.Lock()
	defer mu.Unlock()
	base = l
}

type tagsKey struct{}

// WithTags returns a context carrying the given logtags buffer, merged with
// any tags already present.
func WithTags(ctx context.Context, tags *logtags.Buffer) context.Context {
	if existing, ok := ctx.Value(tagsKey{}).(*logtags.Buffer); ok {
		tags = existing.Merge(tags)
	}
	return context.WithValue(ctx, tagsKey{}, tags)
}

// WithTag is a convenience wrapper around WithTags for a single key/value.
func WithTag(ctx context.Context, key string, value interface{}) context.Context {
	return WithTags(ctx, logtags.SingleTagBuffer(key, value))
}

func tagArgs(ctx context.Context) []interface{} {
	tags, ok := ctx.Value(tagsKey{}).(*logtags.Buffer)
	if !ok {
		return nil
	}
	args := make([]interface{}, 0, len(tags.Get())*2)
	for _, t := range tags.Get() {
		args = append(args, t.Key(), t.Value())
	}
	return args
}

// Infof logs at info level with the tags attached to ctx.
func Infof(ctx context.Context, format string, args ...interface{}) {
	logger().Sugar().With(tagArgs(ctx)...).Infof(format, args...)
}

// Warningf logs at warn level with the tags attached to ctx.
func Warningf(ctx context.Context, format string, args ...interface{}) {
	logger().Sugar().With(tagArgs(ctx)...).Warnf(format, args...)
}

// Errorf logs at error level with the tags attached to ctx.
func Errorf(ctx context.Context, format string, args ...interface{}) {
	logger().Sugar().With(tagArgs(ctx)...).Errorf(format, args...)
}

// WarningfOnce logs a warning the first time it is seen for a given key,
// and silently drops subsequent calls with the same key. Used for
// ModelLoadError, which the spec requires to be logged once per process.
func WarningfOnce(ctx context.Context, key, format string, args ...interface{}) {
	if _, loaded := logged.LoadOrStore(key, struct{}{}); loaded {
		return
	}
	Warningf(ctx, format, args...)
}
