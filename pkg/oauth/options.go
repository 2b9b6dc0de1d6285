package oauth

import (
	"context"
	"log/slog"
	"net/http"
	"time"
)

const defaultTimeout = 10 * time.Second

// Option configures a Flow or an exchanger.
type Option func(*options)

type options struct {
	httpClient          *http.Client
	logger              *slog.Logger
	now                 func() time.Time
	authorizeParams     map[string]string
	authorizeParamsFunc func(ctx context.Context) map[string]string
	stateKey            string
	timeout             time.Duration
	skipStateCheck      bool
}

func newOptions(opts ...Option) *options {
	o := &options{
		logger:   slog.New(slog.DiscardHandler),
		now:      time.Now,
		stateKey: DefaultStateKey,
		timeout:  defaultTimeout,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// WithHTTPClient sets a custom HTTP client for token requests.
// This is useful for testing with httptest servers or injecting
// custom transports (e.g., logging, retries).
func WithHTTPClient(client *http.Client) Option {
	return func(o *options) {
		o.httpClient = client
	}
}

// WithTimeout bounds every token endpoint call.
// Default: 10 seconds. Zero or negative disables the bound.
func WithTimeout(d time.Duration) Option {
	return func(o *options) {
		o.timeout = d
	}
}

// WithLogger sets the logger for flow events. Tokens and secrets are never logged.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithSkipStateCheck disables state validation on callback.
// WARNING: this removes CSRF protection. Use only for clients that are
// known not to echo the state parameter back.
func WithSkipStateCheck() Option {
	return func(o *options) {
		o.skipStateCheck = true
	}
}

// WithAuthorizeParams adds static query parameters to every authorization URL.
// redirect_uri is always dropped.
func WithAuthorizeParams(params map[string]string) Option {
	return func(o *options) {
		if o.authorizeParams == nil {
			o.authorizeParams = make(map[string]string, len(params))
		}
		for k, v := range params {
			o.authorizeParams[k] = v
		}
	}
}

// WithAuthorizeParamsFunc adds query parameters computed from the request
// context. The function is called once per authorization URL, before the
// URL is built; its values override static ones.
func WithAuthorizeParamsFunc(fn func(ctx context.Context) map[string]string) Option {
	return func(o *options) {
		o.authorizeParamsFunc = fn
	}
}

// WithStateKey overrides the session key the state token is stored under.
func WithStateKey(key string) Option {
	return func(o *options) {
		if key != "" {
			o.stateKey = key
		}
	}
}

// WithClock overrides the time source used for token expiry checks.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

// AuthorizeOption customizes a single authorization URL.
type AuthorizeOption func(*authorizeRequest)

type authorizeRequest struct {
	params map[string]string
	scopes []string
}

// WithScope overrides the configured scopes for one authorization URL.
func WithScope(scopes ...string) AuthorizeOption {
	return func(r *authorizeRequest) {
		r.scopes = scopes
	}
}

// WithParam adds one query parameter to one authorization URL.
func WithParam(key, value string) AuthorizeOption {
	return func(r *authorizeRequest) {
		if r.params == nil {
			r.params = make(map[string]string)
		}
		r.params[key] = value
	}
}
