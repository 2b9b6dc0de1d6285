package oauth

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/oauth2"
	"golang.org/x/sync/singleflight"
)

// stateBytes is the amount of randomness in a state token.
const stateBytes = 32

// Flow runs the authorization code flow against one provider: it builds the
// authorization redirect, validates the callback and turns the code into an
// Identity. A Flow holds no per-attempt state; attempts are correlated only
// through the caller's StateStore.
type Flow struct {
	exchanger Exchanger
	config    *oauth2.Config
	opts      *options
	refreshes singleflight.Group
}

// New creates a Flow that delegates token endpoint calls to exchanger.
// Returns a configuration error if ClientID or ClientSecret is empty.
func New(cfg Config, exchanger Exchanger, opts ...Option) (*Flow, error) {
	cfg, err := cfg.validate()
	if err != nil {
		return nil, err
	}
	if exchanger == nil {
		return nil, newError(KindConfiguration, ErrNilExchanger)
	}

	return &Flow{
		exchanger: exchanger,
		config:    oauth2Config(cfg),
		opts:      newOptions(opts...),
	}, nil
}

// NewPolar creates a Flow for Polar, using HTTP Basic client authentication
// on the token endpoint.
//
// Example:
//
//	flow, err := oauth.NewPolar(oauth.Config{
//		ClientID:     os.Getenv("POLAR_OAUTH_CLIENT_ID"),
//		ClientSecret: os.Getenv("POLAR_OAUTH_CLIENT_SECRET"),
//	}, oauth.WithTimeout(5*time.Second))
func NewPolar(cfg Config, opts ...Option) (*Flow, error) {
	exchanger, err := NewBasicAuthExchanger(cfg, opts...)
	if err != nil {
		return nil, err
	}
	return New(cfg, exchanger, opts...)
}

// Name returns the provider identifier.
func (f *Flow) Name() string {
	return ProviderName
}

// AuthCodeURL starts a flow attempt: it issues a fresh state token, stores
// it in store and returns the URL to redirect the user to.
//
// The URL carries response_type=code, client_id, state, scope (when
// configured) and any configured extra parameters. It never carries
// redirect_uri.
func (f *Flow) AuthCodeURL(ctx context.Context, store StateStore, opts ...AuthorizeOption) (string, error) {
	req := &authorizeRequest{}
	for _, opt := range opts {
		opt(req)
	}

	params := f.resolveAuthorizeParams(ctx, req)

	state, err := generateState()
	if err != nil {
		return "", fmt.Errorf("generate state: %w", err)
	}

	if err := store.Put(ctx, f.opts.stateKey, state); err != nil {
		return "", errors.Join(ErrStateStore, err)
	}

	cfg := f.config
	if req.scopes != nil {
		c := *f.config
		c.Scopes = req.scopes
		cfg = &c
	}

	authOpts := make([]oauth2.AuthCodeOption, 0, len(params))
	for k, v := range params {
		authOpts = append(authOpts, oauth2.SetAuthURLParam(k, v))
	}

	f.opts.logger.DebugContext(ctx, "oauth state issued", slog.String("provider", ProviderName))

	return cfg.AuthCodeURL(state, authOpts...), nil
}

// resolveAuthorizeParams merges static, context-derived and per-call
// parameters, in that order of precedence (later wins).
func (f *Flow) resolveAuthorizeParams(ctx context.Context, req *authorizeRequest) map[string]string {
	params := make(map[string]string, len(f.opts.authorizeParams)+len(req.params))
	for k, v := range f.opts.authorizeParams {
		params[k] = v
	}
	if f.opts.authorizeParamsFunc != nil {
		for k, v := range f.opts.authorizeParamsFunc(ctx) {
			params[k] = v
		}
	}
	for k, v := range req.params {
		params[k] = v
	}

	// Owned by the flow itself.
	delete(params, "redirect_uri")
	delete(params, "state")
	delete(params, "response_type")
	delete(params, "client_id")
	return params
}

// Callback completes a flow attempt. It checks, in order: provider-reported
// errors, the state token (unless disabled with WithSkipStateCheck), and
// then exchanges the code. A token that is already expired on receipt is
// refreshed once before the identity is derived.
//
// All failures are *Error values; see ErrorKind.
func (f *Flow) Callback(ctx context.Context, store StateStore, params CallbackParams) (*Identity, error) {
	log := f.opts.logger.With(slog.String("provider", ProviderName))

	if params.hasError() {
		log.WarnContext(ctx, "provider returned error on callback",
			slog.String("error", params.Error),
			slog.String("error_description", params.ErrorDescription),
		)
		return nil, &Error{
			Kind:        KindProviderError,
			Code:        params.Error,
			Description: params.ErrorDescription,
			URI:         params.ErrorURI,
		}
	}

	if !f.opts.skipStateCheck {
		if err := f.verifyState(ctx, store, params.State); err != nil {
			log.WarnContext(ctx, "oauth state check failed", slog.Any("error", err))
			return nil, err
		}
	}

	if params.Code == "" {
		return nil, newError(KindInvalidCredentials, ErrMissingCode)
	}

	token, err := f.exchanger.Exchange(ctx, params.Code)
	if err != nil {
		e := classify(ctx, err)
		log.ErrorContext(ctx, "token exchange failed", slog.String("kind", string(e.Kind)), slog.Any("error", e.Err))
		return nil, e
	}

	if token.ExpiredAt(f.opts.now()) {
		refreshed, err := f.exchanger.Refresh(ctx, token.RefreshToken)
		if err != nil {
			e := classify(ctx, err)
			log.ErrorContext(ctx, "refresh of expired token failed", slog.String("kind", string(e.Kind)), slog.Any("error", e.Err))
			return nil, e
		}
		log.InfoContext(ctx, "token expired on receipt, refreshed")
		token = refreshed
	}

	return Project(token)
}

// verifyState consumes the stored state and compares it to the callback's.
// The stored value is removed whatever the outcome.
func (f *Flow) verifyState(ctx context.Context, store StateStore, state string) error {
	stored, found, err := store.GetAndDelete(ctx, f.opts.stateKey)
	if err != nil {
		return newError(KindCSRFDetected, errors.Join(ErrStateStore, err))
	}
	if state == "" {
		return newError(KindCSRFDetected, ErrMissingState)
	}
	if !found || subtle.ConstantTimeCompare([]byte(stored), []byte(state)) != 1 {
		return newError(KindCSRFDetected, ErrStateMismatch)
	}
	return nil
}

// Refresh trades a persisted refresh token for fresh credentials.
// Concurrent calls with the same refresh token share one provider request.
// The shared request is not cancelled with any single caller's ctx; the
// exchanger timeout bounds it, and each caller stops waiting on its own ctx.
func (f *Flow) Refresh(ctx context.Context, refreshToken string) (*Credentials, error) {
	shared := context.WithoutCancel(ctx)
	ch := f.refreshes.DoChan(refreshToken, func() (any, error) {
		return f.exchanger.Refresh(shared, refreshToken)
	})

	select {
	case <-ctx.Done():
		return nil, classify(ctx, ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			return nil, classify(ctx, res.Err)
		}
		creds := res.Val.(*Token).Credentials()
		return &creds, nil
	}
}

// generateState returns a URL-safe random token.
func generateState() (string, error) {
	b := make([]byte, stateBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
