// Package logger builds the service's structured logger on log/slog.
//
// Records are written as JSON. Request-scoped values such as the request
// id or session id are attached by [ContextExtractor] functions, so call
// sites only pass the context:
//
//	log := logger.New(cfg, os.Stdout, session.LogExtractor)
//	log.InfoContext(ctx, "oauth callback completed")
//	// {"level":"INFO","msg":"oauth callback completed","session_id":"..."}
//
// When SENTRY_DSN is configured, warnings and errors are forwarded to Sentry
// as well; errors become Sentry issues. Without a DSN, or if Sentry fails to
// initialize, logging continues to the writer only. Call [Flush] before exit
// to drain buffered Sentry events.
package logger
