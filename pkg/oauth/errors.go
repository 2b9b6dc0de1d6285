package oauth

import (
	"errors"
	"strings"
)

// ErrorKind classifies a flow failure. Every error returned by Flow carries
// exactly one kind.
type ErrorKind string

const (
	// KindProviderError: the provider redirected back with an error
	// (user denied consent, misconfigured client). Not retried.
	KindProviderError ErrorKind = "provider_error"

	// KindCSRFDetected: the state parameter is missing or does not match
	// the one issued for this session. The flow must restart.
	KindCSRFDetected ErrorKind = "csrf_detected"

	// KindInvalidCredentials: the token endpoint rejected the exchange or
	// returned data that could not be used.
	KindInvalidCredentials ErrorKind = "invalid_credentials"

	// KindTimeout: the token endpoint did not answer before the deadline.
	KindTimeout ErrorKind = "timeout"

	// KindFailedToConnect: the token endpoint could not be reached.
	KindFailedToConnect ErrorKind = "failed_to_connect"

	// KindConfiguration: the client is missing its identifier or secret.
	KindConfiguration ErrorKind = "configuration"
)

// Kind sentinels. Match with errors.Is against any error returned by Flow.
var (
	ErrProviderError      = errors.New("oauth: provider returned an error")
	ErrCSRFDetected       = errors.New("oauth: csrf detected")
	ErrInvalidCredentials = errors.New("oauth: invalid credentials")
	ErrTimeout            = errors.New("oauth: token request timed out")
	ErrFailedToConnect    = errors.New("oauth: failed to connect to provider")
	ErrConfiguration      = errors.New("oauth: invalid configuration")
)

// Causes. These are attached to an *Error and are reachable with errors.Is.
var (
	// ErrMissingClientID is returned when the OAuth client ID is not provided.
	ErrMissingClientID = errors.New("oauth: missing client ID")

	// ErrMissingClientSecret is returned when the OAuth client secret is not provided.
	ErrMissingClientSecret = errors.New("oauth: missing client secret")

	// ErrMissingCode is returned when the callback carries no authorization code.
	ErrMissingCode = errors.New("oauth: missing authorization code")

	// ErrMissingState is returned when the callback carries no state parameter.
	ErrMissingState = errors.New("oauth: missing state parameter")

	// ErrStateMismatch is returned when the callback state differs from the
	// one stored for the session, or nothing was stored.
	ErrStateMismatch = errors.New("oauth: state mismatch")

	// ErrStateStore is returned when the session state store fails.
	ErrStateStore = errors.New("oauth: state store failure")

	// ErrMissingRefreshToken is returned when a refresh is needed but the
	// token carries no refresh token.
	ErrMissingRefreshToken = errors.New("oauth: missing refresh token")

	// ErrMissingUserID is returned when the token response has no user identifier.
	ErrMissingUserID = errors.New("oauth: token response missing user id")

	// ErrUnexpectedResponse is returned when the token endpoint answers a
	// successful status with a body that is not JSON.
	ErrUnexpectedResponse = errors.New("oauth: unexpected token response")

	// ErrNilExchanger is returned when New is called without an Exchanger.
	ErrNilExchanger = errors.New("oauth: nil exchanger")
)

// Error is the typed failure returned by Flow. Code, Description and URI
// hold the raw provider fields for KindProviderError, and the token
// endpoint's error fields for KindInvalidCredentials when it reported any.
type Error struct {
	Err         error
	Kind        ErrorKind
	Code        string
	Description string
	URI         string
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString("oauth: ")
	b.WriteString(string(e.Kind))
	if e.Code != "" {
		b.WriteString(" (")
		b.WriteString(e.Code)
		b.WriteString(")")
	}
	if e.Description != "" {
		b.WriteString(": ")
		b.WriteString(e.Description)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

// Unwrap exposes both the kind sentinel and the original cause.
func (e *Error) Unwrap() []error {
	errs := make([]error, 0, 2)
	if s := e.Kind.sentinel(); s != nil {
		errs = append(errs, s)
	}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

func (k ErrorKind) sentinel() error {
	switch k {
	case KindProviderError:
		return ErrProviderError
	case KindCSRFDetected:
		return ErrCSRFDetected
	case KindInvalidCredentials:
		return ErrInvalidCredentials
	case KindTimeout:
		return ErrTimeout
	case KindFailedToConnect:
		return ErrFailedToConnect
	case KindConfiguration:
		return ErrConfiguration
	default:
		return nil
	}
}

// KindOf returns the kind of err, or "" if err was not produced by this package.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

func newError(kind ErrorKind, err error) *Error {
	return &Error{Kind: kind, Err: err}
}
