// Command polarauth serves the Polar OAuth2 login flow.
package main

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/dmitrymomot/polarauth/internal/config"
	"github.com/dmitrymomot/polarauth/internal/server"
	"github.com/dmitrymomot/polarauth/pkg/cache"
	"github.com/dmitrymomot/polarauth/pkg/cookie"
	"github.com/dmitrymomot/polarauth/pkg/logger"
	"github.com/dmitrymomot/polarauth/pkg/oauth"
	"github.com/dmitrymomot/polarauth/pkg/redis"
	"github.com/dmitrymomot/polarauth/pkg/session"
)

// maxMemoryStates caps in-flight login attempts when state is kept in memory.
const maxMemoryStates = 100_000

func main() {
	if err := run(context.Background()); err != nil {
		slog.Error("polarauth exited", slog.Any("error", err))
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	log := logger.New(cfg.Log, os.Stdout, server.RequestIDExtractor, session.LogExtractor)

	opts := []server.Option{
		server.WithLogger(log),
		server.WithShutdownTimeout(cfg.ShutdownTimeout),
	}

	var states cache.Cache[string]
	if cfg.RedisURL != "" {
		client, err := redis.Open(ctx, cfg.RedisURL, redis.WithLogger(log))
		if err != nil {
			return err
		}
		states = cache.NewRedis[string](client, nil, cache.WithPrefix("polarauth:state"))
		opts = append(opts,
			server.WithReadinessCheck("redis", redis.Healthcheck(client)),
			server.WithShutdownHook(redis.Shutdown(client)),
		)
	} else {
		log.Warn("REDIS_URL not set, keeping oauth state in memory; logins fail with 503 while the store is full",
			slog.Int("max_entries", maxMemoryStates),
			slog.Duration("state_ttl", cfg.StateTTL),
		)
		mem := cache.NewMemory[string](
			cache.WithDefaultTTL(cfg.StateTTL),
			cache.WithMaxEntries(maxMemoryStates),
			cache.WithRejectWhenFull(),
		)
		states = mem
		opts = append(opts, server.WithShutdownHook(func(context.Context) error { return mem.Close() }))
	}

	flowOpts := []oauth.Option{
		oauth.WithLogger(log),
		oauth.WithTimeout(cfg.OAuthTimeout),
	}
	if cfg.SkipStateCheck {
		log.Warn("oauth state check disabled, callbacks are not protected against CSRF")
		flowOpts = append(flowOpts, oauth.WithSkipStateCheck())
	}
	flow, err := oauth.NewPolar(cfg.OAuth, flowOpts...)
	if err != nil {
		return err
	}

	cookies, err := cookie.New(cfg.CookieSecret, cookie.WithSecure(cfg.CookieSecure))
	if err != nil {
		return err
	}

	opts = append(opts, server.WithShutdownHook(func(context.Context) error {
		logger.Flush(2 * time.Second)
		return nil
	}))

	srv := server.New(cfg.HTTPAddr, flow,
		session.NewManager(cookies),
		session.NewStore(states, cfg.StateTTL),
		opts...,
	)
	return srv.Run(ctx)
}
