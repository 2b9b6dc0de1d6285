package oauth

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/oauth2"
)

const acceptJSON = "application/json;charset=UTF-8"

// BasicAuthExchanger implements Exchanger for providers that require HTTP
// Basic client authentication and a minimal form body.
//
// Token requests carry only code and grant_type (or refresh_token and
// grant_type). Client credentials go in the Authorization header, and no
// redirect_uri is ever sent: Polar answers invalid_grant when it is present.
type BasicAuthExchanger struct {
	config     *oauth2.Config
	httpClient *http.Client
	timeout    time.Duration
}

// NewBasicAuthExchanger creates an exchanger for the configured token endpoint.
// Returns a configuration error if ClientID or ClientSecret is empty.
func NewBasicAuthExchanger(cfg Config, opts ...Option) (*BasicAuthExchanger, error) {
	cfg, err := cfg.validate()
	if err != nil {
		return nil, err
	}
	o := newOptions(opts...)

	return &BasicAuthExchanger{
		config:     oauth2Config(cfg),
		httpClient: tokenClient(o.httpClient, cfg),
		timeout:    o.timeout,
	}, nil
}

// Exchange trades an authorization code for a token.
func (e *BasicAuthExchanger) Exchange(ctx context.Context, code string) (*Token, error) {
	ctx, cancel := e.bound(ctx)
	defer cancel()

	t, err := e.config.Exchange(ctx, code)
	if err != nil {
		return nil, classify(ctx, err)
	}
	return NewToken(t), nil
}

// Refresh trades a refresh token for a new token.
func (e *BasicAuthExchanger) Refresh(ctx context.Context, refreshToken string) (*Token, error) {
	if refreshToken == "" {
		return nil, newError(KindInvalidCredentials, ErrMissingRefreshToken)
	}

	ctx, cancel := e.bound(ctx)
	defer cancel()

	// An empty access token forces the token source to hit the endpoint.
	t, err := e.config.TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken}).Token()
	if err != nil {
		return nil, classify(ctx, err)
	}
	return NewToken(t), nil
}

func (e *BasicAuthExchanger) bound(ctx context.Context) (context.Context, context.CancelFunc) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, e.httpClient)
	if e.timeout > 0 {
		return context.WithTimeout(ctx, e.timeout)
	}
	return context.WithCancel(ctx)
}

func oauth2Config(cfg Config) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		Scopes:       cfg.Scopes,
		Endpoint: oauth2.Endpoint{
			AuthURL:   cfg.AuthURL,
			TokenURL:  cfg.TokenURL,
			AuthStyle: oauth2.AuthStyleInHeader,
		},
	}
}

// classify maps a token endpoint failure onto an error kind.
// ctx is the bounded request context.
func classify(ctx context.Context, err error) *Error {
	var fe *Error
	if errors.As(err, &fe) {
		return fe
	}

	var re *oauth2.RetrieveError
	if errors.As(err, &re) {
		return &Error{
			Kind:        KindInvalidCredentials,
			Code:        re.ErrorCode,
			Description: re.ErrorDescription,
			URI:         re.ErrorURI,
			Err:         err,
		}
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return newError(KindTimeout, err)
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return newError(KindTimeout, err)
	}

	if errors.Is(err, context.Canceled) {
		return newError(KindFailedToConnect, err)
	}

	if errors.Is(err, ErrUnexpectedResponse) {
		return newError(KindInvalidCredentials, err)
	}

	var urlErr *url.Error
	var opErr *net.OpError
	var dnsErr *net.DNSError
	if errors.As(err, &urlErr) || errors.As(err, &opErr) || errors.As(err, &dnsErr) {
		return newError(KindFailedToConnect, err)
	}

	// Unparseable body, missing access_token and similar.
	return newError(KindInvalidCredentials, err)
}

// tokenClient returns a copy of client that authenticates token requests
// and only accepts JSON token responses.
func tokenClient(client *http.Client, cfg Config) *http.Client {
	if client == nil {
		client = http.DefaultClient
	}
	c := *client
	c.Transport = &tokenTransport{
		base:         client.Transport,
		clientID:     cfg.ClientID,
		clientSecret: cfg.ClientSecret,
	}
	return &c
}

// tokenTransport sets the Accept header and the Basic credentials.
// x/oauth2 query-escapes the id and secret before encoding them; Polar
// expects base64 of the raw "id:secret", so the header is rewritten.
type tokenTransport struct {
	base         http.RoundTripper
	clientID     string
	clientSecret string
}

func (t *tokenTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	req.Header.Set("Accept", acceptJSON)
	req.SetBasicAuth(t.clientID, t.clientSecret)

	base := t.base
	if base == nil {
		base = http.DefaultTransport
	}
	resp, err := base.RoundTrip(req)
	if err != nil {
		return nil, err
	}

	// Error bodies are left to x/oauth2, which keeps them in RetrieveError.
	if resp.StatusCode >= 200 && resp.StatusCode < 300 && !isJSON(resp.Header.Get("Content-Type")) {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<16))
		_ = resp.Body.Close()
		return nil, fmt.Errorf("%w: content type %q", ErrUnexpectedResponse, resp.Header.Get("Content-Type"))
	}
	return resp, nil
}

func isJSON(contentType string) bool {
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	return mt == "application/json" || strings.HasSuffix(mt, "+json")
}
