package oauth

import (
	"context"
	"net/http"
)

// Exchanger performs the provider-specific token endpoint calls.
// Implementations return *Error values classified by kind.
type Exchanger interface {
	// Exchange trades an authorization code for a token.
	Exchange(ctx context.Context, code string) (*Token, error)

	// Refresh trades a refresh token for a new token.
	Refresh(ctx context.Context, refreshToken string) (*Token, error)
}

// StateStore persists the state token between the authorization redirect
// and the callback. A StateStore is scoped to one end-user session; two
// sessions must never observe each other's values.
type StateStore interface {
	// Put stores value under key, replacing any previous value.
	Put(ctx context.Context, key, value string) error

	// GetAndDelete returns the value under key and removes it in one step.
	// found is false when nothing was stored.
	GetAndDelete(ctx context.Context, key string) (value string, found bool, err error)
}

// CallbackParams are the untrusted parameters the provider redirects back with.
type CallbackParams struct {
	Code             string
	State            string
	Error            string
	ErrorDescription string
	ErrorURI         string
}

// CallbackParamsFromRequest reads callback parameters from the query string
// or, for POST callbacks, from the form body.
func CallbackParamsFromRequest(r *http.Request) CallbackParams {
	return CallbackParams{
		Code:             r.FormValue("code"),
		State:            r.FormValue("state"),
		Error:            r.FormValue("error"),
		ErrorDescription: r.FormValue("error_description"),
		ErrorURI:         r.FormValue("error_uri"),
	}
}

func (p CallbackParams) hasError() bool {
	return p.Error != "" || p.ErrorDescription != "" || p.ErrorURI != ""
}
