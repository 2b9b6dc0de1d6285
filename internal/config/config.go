// Package config loads service settings from the environment.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/dmitrymomot/polarauth/pkg/cookie"
	"github.com/dmitrymomot/polarauth/pkg/logger"
	"github.com/dmitrymomot/polarauth/pkg/oauth"
)

// Errors.
var (
	ErrParse        = errors.New("config: parse env")
	ErrCookieSecret = errors.New("config: COOKIE_SECRET must be at least 32 bytes")
	ErrStateTTL     = errors.New("config: STATE_TTL must be positive")
)

// Config is the full service configuration.
type Config struct {
	Log             logger.Config
	HTTPAddr        string        `env:"HTTP_ADDR" envDefault:":8080"`
	RedisURL        string        `env:"REDIS_URL"`
	CookieSecret    string        `env:"COOKIE_SECRET,required,notEmpty"`
	OAuth           oauth.Config
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"30s"`
	StateTTL        time.Duration `env:"STATE_TTL" envDefault:"10m"`
	OAuthTimeout    time.Duration `env:"POLAR_OAUTH_TIMEOUT" envDefault:"10s"`
	CookieSecure    bool          `env:"COOKIE_SECURE" envDefault:"true"`
	SkipStateCheck  bool          `env:"POLAR_OAUTH_SKIP_STATE_CHECK"`
}

// Load reads the configuration from the process environment.
func Load() (Config, error) {
	return parse(env.Options{})
}

// LoadFrom reads the configuration from vars instead of the process
// environment.
func LoadFrom(vars map[string]string) (Config, error) {
	return parse(env.Options{Environment: vars})
}

func parse(opts env.Options) (Config, error) {
	cfg, err := env.ParseAsWithOptions[Config](opts)
	if err != nil {
		return Config{}, fmt.Errorf("%w: %w", ErrParse, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks constraints env tags cannot express. Missing Polar client
// credentials come back as oauth KindConfiguration errors.
func (c Config) Validate() error {
	if err := c.OAuth.Validate(); err != nil {
		return err
	}
	if len(c.CookieSecret) < cookie.MinSecretLen {
		return ErrCookieSecret
	}
	if c.StateTTL <= 0 {
		return ErrStateTTL
	}
	return nil
}
