// Package redis opens go-redis clients for the shared state store.
//
// [Open] parses a redis:// or rediss:// URL, applies pool and timeout
// settings and pings the server, retrying with a linearly growing delay.
// [Healthcheck] and [Shutdown] plug the client into the readiness probe and
// the server's shutdown hooks:
//
//	client, err := redis.Open(ctx, cfg.RedisURL, redis.WithLogger(log))
//	if err != nil {
//		return err
//	}
//	checks := health.Checks{"redis": redis.Healthcheck(client)}
//
// Errors wrap one of [ErrEmptyConnectionURL], [ErrFailedToParseURL],
// [ErrConnectionFailed] or [ErrHealthcheckFailed].
package redis
