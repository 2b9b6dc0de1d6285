package oauth

import (
	"encoding/json"
	"strconv"
	"time"

	"golang.org/x/oauth2"
)

// Token is the result of a successful exchange. It is never modified;
// a refresh produces a new Token.
type Token struct {
	Expiry       time.Time // zero when the provider sent no expiry
	raw          *oauth2.Token
	AccessToken  string
	TokenType    string
	RefreshToken string
}

// NewToken wraps an oauth2 token, keeping its raw provider parameters.
func NewToken(t *oauth2.Token) *Token {
	if t == nil {
		return nil
	}
	return &Token{
		AccessToken:  t.AccessToken,
		TokenType:    t.TokenType,
		RefreshToken: t.RefreshToken,
		Expiry:       t.Expiry,
		raw:          t,
	}
}

// Param returns a raw token response parameter, or nil if absent.
func (t *Token) Param(key string) any {
	if t.raw == nil {
		return nil
	}
	return t.raw.Extra(key)
}

// Expires reports whether the token carries expiry semantics.
func (t *Token) Expires() bool {
	return !t.Expiry.IsZero()
}

// ExpiredAt reports whether the token has expired at now.
func (t *Token) ExpiredAt(now time.Time) bool {
	return t.Expires() && !now.Before(t.Expiry)
}

// OAuth2 returns the token in golang.org/x/oauth2 form, for calling the
// provider API with oauth2.Config.Client or a TokenSource.
func (t *Token) OAuth2() *oauth2.Token {
	if t.raw != nil {
		return t.raw
	}
	return &oauth2.Token{
		AccessToken:  t.AccessToken,
		TokenType:    t.TokenType,
		RefreshToken: t.RefreshToken,
		Expiry:       t.Expiry,
	}
}

// Credentials projects the token into the normalized credentials shape.
func (t *Token) Credentials() Credentials {
	c := Credentials{Token: t.AccessToken}
	if t.Expires() {
		c.Expires = true
		c.RefreshToken = t.RefreshToken
		c.ExpiresAt = t.Expiry.Unix()
	}
	return c
}

// Credentials is the normalized view of a token handed to the host.
// RefreshToken and ExpiresAt are set only when Expires is true.
type Credentials struct {
	Token        string `json:"token"`
	RefreshToken string `json:"refresh_token,omitempty"`
	ExpiresAt    int64  `json:"expires_at,omitempty"` // unix seconds
	Expires      bool   `json:"expires"`
}

// Identity is the final result of a successful flow.
type Identity struct {
	Extra       map[string]any `json:"extra,omitempty"`
	Provider    string         `json:"provider"`
	UID         string         `json:"uid"`
	Credentials Credentials    `json:"credentials"`
}

// Project derives the identity and credentials from a token.
// A missing or empty user id is an error, never an empty UID.
func Project(t *Token) (*Identity, error) {
	if t == nil {
		return nil, newError(KindInvalidCredentials, ErrMissingUserID)
	}

	raw := t.Param(UserIDParam)
	uid, ok := stringifyID(raw)
	if !ok {
		return nil, newError(KindInvalidCredentials, ErrMissingUserID)
	}

	return &Identity{
		Provider:    ProviderName,
		UID:         uid,
		Credentials: t.Credentials(),
		Extra:       map[string]any{UserIDParam: raw},
	}, nil
}

// stringifyID renders a JSON-decoded identifier as a string.
// Polar sends x_user_id as a JSON number.
func stringifyID(v any) (string, bool) {
	var s string
	switch id := v.(type) {
	case string:
		s = id
	case float64:
		s = strconv.FormatFloat(id, 'f', -1, 64)
	case json.Number:
		s = id.String()
	case int:
		s = strconv.Itoa(id)
	case int64:
		s = strconv.FormatInt(id, 10)
	}
	return s, s != ""
}
