package config_test

import (
	"log/slog"
	"maps"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/polarauth/internal/config"
	"github.com/dmitrymomot/polarauth/pkg/oauth"
)

func baseEnv() map[string]string {
	return map[string]string{
		"POLAR_OAUTH_CLIENT_ID":     "client-id",
		"POLAR_OAUTH_CLIENT_SECRET": "client-secret",
		"COOKIE_SECRET":             strings.Repeat("s", 32),
	}
}

func with(vars map[string]string, kv ...string) map[string]string {
	out := maps.Clone(vars)
	for i := 0; i+1 < len(kv); i += 2 {
		out[kv[i]] = kv[i+1]
	}
	return out
}

func TestLoadFrom(t *testing.T) {
	t.Parallel()

	t.Run("defaults", func(t *testing.T) {
		t.Parallel()

		cfg, err := config.LoadFrom(baseEnv())
		require.NoError(t, err)
		require.Equal(t, ":8080", cfg.HTTPAddr)
		require.Equal(t, 30*time.Second, cfg.ShutdownTimeout)
		require.Equal(t, 10*time.Minute, cfg.StateTTL)
		require.Equal(t, 10*time.Second, cfg.OAuthTimeout)
		require.True(t, cfg.CookieSecure)
		require.False(t, cfg.SkipStateCheck)
		require.Empty(t, cfg.RedisURL)
		require.Equal(t, slog.LevelInfo, cfg.Log.Level)
		require.Equal(t, "production", cfg.Log.SentryEnvironment)

		require.Equal(t, "client-id", cfg.OAuth.ClientID)
		require.Equal(t, "client-secret", cfg.OAuth.ClientSecret)
		require.Equal(t, oauth.DefaultAuthURL, cfg.OAuth.AuthURL)
		require.Equal(t, oauth.DefaultTokenURL, cfg.OAuth.TokenURL)
		require.Empty(t, cfg.OAuth.Scopes)
	})

	t.Run("overrides", func(t *testing.T) {
		t.Parallel()

		cfg, err := config.LoadFrom(with(baseEnv(),
			"HTTP_ADDR", ":9000",
			"REDIS_URL", "redis://localhost:6379/1",
			"STATE_TTL", "5m",
			"POLAR_OAUTH_TIMEOUT", "3s",
			"POLAR_OAUTH_SKIP_STATE_CHECK", "true",
			"POLAR_OAUTH_SCOPES", "accesslink.read_all,other",
			"POLAR_OAUTH_TOKEN_URL", "http://localhost/token",
			"COOKIE_SECURE", "false",
			"LOG_LEVEL", "debug",
		))
		require.NoError(t, err)
		require.Equal(t, ":9000", cfg.HTTPAddr)
		require.Equal(t, "redis://localhost:6379/1", cfg.RedisURL)
		require.Equal(t, 5*time.Minute, cfg.StateTTL)
		require.Equal(t, 3*time.Second, cfg.OAuthTimeout)
		require.True(t, cfg.SkipStateCheck)
		require.False(t, cfg.CookieSecure)
		require.Equal(t, []string{"accesslink.read_all", "other"}, cfg.OAuth.Scopes)
		require.Equal(t, "http://localhost/token", cfg.OAuth.TokenURL)
		require.Equal(t, slog.LevelDebug, cfg.Log.Level)
	})

	t.Run("missing client credentials", func(t *testing.T) {
		t.Parallel()

		for _, key := range []string{"POLAR_OAUTH_CLIENT_ID", "POLAR_OAUTH_CLIENT_SECRET"} {
			vars := baseEnv()
			delete(vars, key)

			_, err := config.LoadFrom(vars)
			require.ErrorIs(t, err, oauth.ErrConfiguration, key)
			require.Equal(t, oauth.KindConfiguration, oauth.KindOf(err), key)
			require.NotErrorIs(t, err, config.ErrParse, key)
		}

		vars := baseEnv()
		vars["POLAR_OAUTH_CLIENT_ID"] = ""
		_, err := config.LoadFrom(vars)
		require.ErrorIs(t, err, oauth.ErrMissingClientID)
	})

	t.Run("missing cookie secret", func(t *testing.T) {
		t.Parallel()

		vars := baseEnv()
		delete(vars, "COOKIE_SECRET")

		_, err := config.LoadFrom(vars)
		require.ErrorIs(t, err, config.ErrParse)
	})

	t.Run("short cookie secret", func(t *testing.T) {
		t.Parallel()

		_, err := config.LoadFrom(with(baseEnv(), "COOKIE_SECRET", "short"))
		require.ErrorIs(t, err, config.ErrCookieSecret)
	})

	t.Run("non-positive state ttl", func(t *testing.T) {
		t.Parallel()

		_, err := config.LoadFrom(with(baseEnv(), "STATE_TTL", "0s"))
		require.ErrorIs(t, err, config.ErrStateTTL)
	})

	t.Run("malformed duration", func(t *testing.T) {
		t.Parallel()

		_, err := config.LoadFrom(with(baseEnv(), "SHUTDOWN_TIMEOUT", "soon"))
		require.ErrorIs(t, err, config.ErrParse)
	})
}
