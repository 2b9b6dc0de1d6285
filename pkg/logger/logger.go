package logger

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/getsentry/sentry-go"
	sentryslog "github.com/getsentry/sentry-go/slog"
)

// Config selects the log level and the optional Sentry destination.
type Config struct {
	SentryDSN         string     `env:"SENTRY_DSN"`
	SentryEnvironment string     `env:"SENTRY_ENVIRONMENT" envDefault:"production"`
	SentryRelease     string     `env:"SENTRY_RELEASE"`
	Level             slog.Level `env:"LOG_LEVEL" envDefault:"info"`
}

// New builds a JSON logger writing to w. When SentryDSN is set, warnings
// and errors are also shipped to Sentry, with errors raised as events.
// A failing Sentry init is logged and the logger falls back to w only.
func New(cfg Config, w io.Writer, extractors ...ContextExtractor) *slog.Logger {
	var h slog.Handler = slog.NewJSONHandler(w, &slog.HandlerOptions{Level: cfg.Level})

	if cfg.SentryDSN != "" {
		err := sentry.Init(sentry.ClientOptions{
			Dsn:         cfg.SentryDSN,
			Environment: cfg.SentryEnvironment,
			Release:     cfg.SentryRelease,
			EnableLogs:  true,
		})
		if err != nil {
			slog.New(h).Error("sentry init failed, logging to stdout only", slog.Any("error", err))
		} else {
			h = fanout{h, sentryslog.Option{
				EventLevel: []slog.Level{slog.LevelError},
				LogLevel:   []slog.Level{slog.LevelWarn, slog.LevelError},
			}.NewSentryHandler(context.Background())}
		}
	}

	return slog.New(Decorate(h, extractors...))
}

// Flush waits up to timeout for buffered Sentry events to be sent.
// It reports false if the timeout was reached. Without Sentry it is a no-op.
func Flush(timeout time.Duration) bool {
	return sentry.Flush(timeout)
}

// Discard returns a logger that drops every record.
func Discard() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}
