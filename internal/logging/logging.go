// Package logging builds the process logger.
package logging

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	eventbus "github.com/hanpama/docexec/internal/eventbus"
	events "github.com/hanpama/docexec/internal/events"
	reqid "github.com/hanpama/docexec/internal/reqid"
)

// New returns a zap logger writing to stderr. format is "json" or "console";
// level is any zapcore level name ("debug", "info", ...).
func New(level, format string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("log level: %w", err)
	}

	var cfg zap.Config
	switch strings.ToLower(format) {
	case "", "json":
		cfg = zap.NewProductionConfig()
	case "console", "text":
		cfg = zap.NewDevelopmentConfig()
	default:
		return nil, fmt.Errorf("log format %q is not json or console", format)
	}
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	cfg.DisableStacktrace = true
	return cfg.Build()
}

// WithRequest adds the request ID carried by ctx, if any.
func WithRequest(ctx context.Context, l *zap.Logger) *zap.Logger {
	if rid, ok := reqid.FromContext(ctx); ok {
		return l.With(zap.String("request_id", rid))
	}
	return l
}

// Subscribe logs every finished operation on the global event bus: failed
// ones at warn level, the rest at debug level.
func Subscribe(l *zap.Logger) (unsubscribe func()) {
	return eventbus.Subscribe(func(ctx context.Context, e events.GraphQLFinish) {
		fields := []zap.Field{
			zap.String("operation", e.Name),
			zap.String("type", e.Type),
			zap.String("document", strconv.FormatUint(e.Hash, 16)),
			zap.Duration("duration", e.Duration),
			zap.Int("errors", len(e.Errors)),
		}
		log := WithRequest(ctx, l)
		if len(e.Errors) > 0 {
			log.Warn("operation finished with errors", append(fields, zap.Strings("codes", e.ErrorCodes))...)
			return
		}
		log.Debug("operation finished", fields...)
	})
}
