package observability

import (
	"context"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/trace"
)

// InitLogger initializes the global zerolog logger.
// Development uses a console writer on stderr so report output on stdout stays clean.
func InitLogger(serviceName, env, level string) {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	lvl, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)

	if env == "development" {
		log.Logger = newLogger(zerolog.ConsoleWriter{
			Out:        os.Stderr,
			TimeFormat: time.RFC3339,
		}, serviceName, false)
		return
	}
	log.Logger = newLogger(os.Stderr, serviceName, true)
}

func newLogger(w io.Writer, serviceName string, withCaller bool) zerolog.Logger {
	ctx := zerolog.New(w).With().Timestamp().Str("service", serviceName)
	if withCaller {
		ctx = ctx.Caller()
	}
	return ctx.Logger()
}

// LoggerFromContext returns the request logger stored in ctx, or the global one, with trace context
func LoggerFromContext(ctx context.Context) *zerolog.Logger {
	logger := log.With().Logger()
	if scoped := zerolog.Ctx(ctx); scoped.GetLevel() != zerolog.Disabled {
		logger = scoped.With().Logger()
	}

	span := trace.SpanFromContext(ctx)
	if span.SpanContext().IsValid() {
		logger = logger.With().
			Str("trace_id", span.SpanContext().TraceID().String()).
			Str("span_id", span.SpanContext().SpanID().String()).
			Logger()
	}

	return &logger
}
