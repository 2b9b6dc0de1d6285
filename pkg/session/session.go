package session

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/dmitrymomot/polarauth/pkg/cookie"
)

// DefaultCookieName is the cookie carrying the session id.
const DefaultCookieName = "polarauth_sid"

// Manager identifies browser sessions with an opaque id kept in a signed cookie.
type Manager struct {
	cookies *cookie.Manager
	name    string
	maxAge  int
}

// Option configures the Manager.
type Option func(*Manager)

// WithCookieName overrides DefaultCookieName.
func WithCookieName(name string) Option {
	return func(m *Manager) {
		if name != "" {
			m.name = name
		}
	}
}

// WithMaxAge sets the session cookie lifetime in seconds.
// Default: 0, a browser-session cookie.
func WithMaxAge(seconds int) Option {
	return func(m *Manager) {
		m.maxAge = seconds
	}
}

// NewManager creates a session Manager.
func NewManager(cookies *cookie.Manager, opts ...Option) *Manager {
	m := &Manager{cookies: cookies, name: DefaultCookieName}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Load returns the session id of the request, issuing a new session when
// the cookie is missing, forged or malformed.
func (m *Manager) Load(w http.ResponseWriter, r *http.Request) (string, error) {
	id, err := m.cookies.GetSigned(r, m.name)
	switch {
	case err == nil:
		if _, perr := uuid.Parse(id); perr == nil {
			return id, nil
		}
	case errors.Is(err, cookie.ErrNotFound), errors.Is(err, cookie.ErrBadSig):
	default:
		return "", err
	}

	id = uuid.NewString()
	m.cookies.SetSigned(w, m.name, id, m.maxAge)
	return id, nil
}

// Middleware loads the session for every request and stores its id in the
// request context.
func (m *Manager) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, err := m.Load(w, r)
		if err != nil {
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			return
		}
		next.ServeHTTP(w, r.WithContext(WithID(r.Context(), id)))
	})
}

type ctxKey struct{}

// WithID returns a copy of ctx carrying the session id.
func WithID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

// IDFromContext returns the session id stored by Middleware.
func IDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(ctxKey{}).(string)
	return id, ok && id != ""
}

// LogExtractor adds the session id to log records; see logger.ContextExtractor.
func LogExtractor(ctx context.Context) (slog.Attr, bool) {
	id, ok := IDFromContext(ctx)
	if !ok {
		return slog.Attr{}, false
	}
	return slog.String("session_id", id), true
}
