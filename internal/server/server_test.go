package server_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/polarauth/internal/server"
	"github.com/dmitrymomot/polarauth/pkg/cache"
	"github.com/dmitrymomot/polarauth/pkg/cookie"
	"github.com/dmitrymomot/polarauth/pkg/oauth"
	"github.com/dmitrymomot/polarauth/pkg/session"
)

type env struct {
	srv       *server.Server
	exchanges *atomic.Int32
}

// newEnv starts a fake Polar token endpoint answering with handler and
// builds a server against it.
func newEnv(t *testing.T, handler http.HandlerFunc, opts ...server.Option) *env {
	t.Helper()

	mem := cache.NewMemory[string]()
	t.Cleanup(func() { _ = mem.Close() })
	return newEnvWithStates(t, handler, mem, opts...)
}

func newEnvWithStates(t *testing.T, handler http.HandlerFunc, states cache.Cache[string], opts ...server.Option) *env {
	t.Helper()

	var exchanges atomic.Int32
	polar := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		exchanges.Add(1)
		handler(w, r)
	}))
	t.Cleanup(polar.Close)

	flow, err := oauth.NewPolar(oauth.Config{
		ClientID:     "client-id",
		ClientSecret: "client-secret",
		TokenURL:     polar.URL,
	}, oauth.WithHTTPClient(polar.Client()))
	require.NoError(t, err)

	cookies, err := cookie.New(strings.Repeat("k", 32))
	require.NoError(t, err)

	srv := server.New(":0", flow, session.NewManager(cookies), session.NewStore(states, time.Minute), opts...)
	return &env{srv: srv, exchanges: &exchanges}
}

func tokenOK(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"access_token": "access-1",
		"token_type":   "bearer",
		"x_user_id":    12345678,
	})
}

func (e *env) do(r *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	e.srv.ServeHTTP(rec, r)
	return rec
}

// login runs the request phase and returns the session cookie and state.
func (e *env) login(t *testing.T) (*http.Cookie, string) {
	t.Helper()

	rec := e.do(httptest.NewRequest(http.MethodGet, server.LoginPath, nil))
	require.Equal(t, http.StatusFound, rec.Code)

	loc, err := url.Parse(rec.Header().Get("Location"))
	require.NoError(t, err)

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	return cookies[0], loc.Query().Get("state")
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) map[string]string {
	t.Helper()
	var body map[string]string
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	return body
}

func TestLogin(t *testing.T) {
	t.Parallel()

	t.Run("redirects to polar", func(t *testing.T) {
		t.Parallel()

		e := newEnv(t, tokenOK)
		rec := e.do(httptest.NewRequest(http.MethodGet, server.LoginPath, nil))
		require.Equal(t, http.StatusFound, rec.Code)

		loc, err := url.Parse(rec.Header().Get("Location"))
		require.NoError(t, err)
		require.Equal(t, "https", loc.Scheme)
		require.Equal(t, "flow.polar.com", loc.Host)
		require.Equal(t, "code", loc.Query().Get("response_type"))
		require.Equal(t, "client-id", loc.Query().Get("client_id"))
		require.NotEmpty(t, loc.Query().Get("state"))
		require.False(t, loc.Query().Has("redirect_uri"))
		require.NotEmpty(t, rec.Header().Get("X-Request-ID"))
	})

	t.Run("full state store rejects new logins only", func(t *testing.T) {
		t.Parallel()

		mem := cache.NewMemory[string](cache.WithMaxEntries(1), cache.WithRejectWhenFull())
		t.Cleanup(func() { _ = mem.Close() })
		e := newEnvWithStates(t, tokenOK, mem)

		sid, state := e.login(t)

		rec := e.do(httptest.NewRequest(http.MethodGet, server.LoginPath, nil))
		require.Equal(t, http.StatusServiceUnavailable, rec.Code)

		r := httptest.NewRequest(http.MethodGet, server.CallbackPath+"?code=abc123&state="+url.QueryEscape(state), nil)
		r.AddCookie(sid)
		require.Equal(t, http.StatusOK, e.do(r).Code)
	})

	t.Run("scope override", func(t *testing.T) {
		t.Parallel()

		e := newEnv(t, tokenOK)
		rec := e.do(httptest.NewRequest(http.MethodGet, server.LoginPath+"?scope=accesslink.read_all", nil))
		require.Equal(t, http.StatusFound, rec.Code)

		loc, err := url.Parse(rec.Header().Get("Location"))
		require.NoError(t, err)
		require.Equal(t, "accesslink.read_all", loc.Query().Get("scope"))
	})
}

func TestCallback(t *testing.T) {
	t.Parallel()

	t.Run("success", func(t *testing.T) {
		t.Parallel()

		e := newEnv(t, tokenOK)
		sid, state := e.login(t)

		r := httptest.NewRequest(http.MethodGet, server.CallbackPath+"?code=abc123&state="+url.QueryEscape(state), nil)
		r.AddCookie(sid)
		rec := e.do(r)
		require.Equal(t, http.StatusOK, rec.Code)

		var identity oauth.Identity
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&identity))
		require.Equal(t, "polar", identity.Provider)
		require.Equal(t, "12345678", identity.UID)
		require.Equal(t, "access-1", identity.Credentials.Token)
		require.False(t, identity.Credentials.Expires)
	})

	t.Run("form post callback", func(t *testing.T) {
		t.Parallel()

		e := newEnv(t, tokenOK)
		sid, state := e.login(t)

		form := url.Values{"code": {"abc123"}, "state": {state}}
		r := httptest.NewRequest(http.MethodPost, server.CallbackPath, strings.NewReader(form.Encode()))
		r.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		r.AddCookie(sid)
		rec := e.do(r)
		require.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("replayed callback is rejected", func(t *testing.T) {
		t.Parallel()

		e := newEnv(t, tokenOK)
		sid, state := e.login(t)
		target := server.CallbackPath + "?code=abc123&state=" + url.QueryEscape(state)

		r := httptest.NewRequest(http.MethodGet, target, nil)
		r.AddCookie(sid)
		require.Equal(t, http.StatusOK, e.do(r).Code)

		r = httptest.NewRequest(http.MethodGet, target, nil)
		r.AddCookie(sid)
		rec := e.do(r)
		require.Equal(t, http.StatusForbidden, rec.Code)
		require.Equal(t, "csrf_detected", decodeError(t, rec)["error"])
		require.Equal(t, int32(1), e.exchanges.Load())
	})

	t.Run("state from another session is rejected", func(t *testing.T) {
		t.Parallel()

		e := newEnv(t, tokenOK)
		_, state := e.login(t)
		other, _ := e.login(t)

		r := httptest.NewRequest(http.MethodGet, server.CallbackPath+"?code=abc123&state="+url.QueryEscape(state), nil)
		r.AddCookie(other)
		rec := e.do(r)
		require.Equal(t, http.StatusForbidden, rec.Code)
		require.Zero(t, e.exchanges.Load())
	})

	t.Run("missing session cookie", func(t *testing.T) {
		t.Parallel()

		e := newEnv(t, tokenOK)
		_, state := e.login(t)

		rec := e.do(httptest.NewRequest(http.MethodGet, server.CallbackPath+"?code=abc123&state="+url.QueryEscape(state), nil))
		require.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("provider error", func(t *testing.T) {
		t.Parallel()

		e := newEnv(t, tokenOK)
		sid, state := e.login(t)

		r := httptest.NewRequest(http.MethodGet, server.CallbackPath+"?error=access_denied&error_description=denied&state="+state, nil)
		r.AddCookie(sid)
		rec := e.do(r)
		require.Equal(t, http.StatusUnauthorized, rec.Code)

		body := decodeError(t, rec)
		require.Equal(t, "provider_error", body["error"])
		require.Equal(t, "access_denied", body["error_code"])
		require.Equal(t, "denied", body["error_description"])
		require.Zero(t, e.exchanges.Load())
	})

	t.Run("rejected code", func(t *testing.T) {
		t.Parallel()

		e := newEnv(t, func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":"invalid_grant"}`))
		})
		sid, state := e.login(t)

		r := httptest.NewRequest(http.MethodGet, server.CallbackPath+"?code=bad&state="+url.QueryEscape(state), nil)
		r.AddCookie(sid)
		rec := e.do(r)
		require.Equal(t, http.StatusUnauthorized, rec.Code)

		body := decodeError(t, rec)
		require.Equal(t, "invalid_credentials", body["error"])
		require.Equal(t, "invalid_grant", body["error_code"])
	})
}

func TestHealth(t *testing.T) {
	t.Parallel()

	e := newEnv(t, tokenOK,
		server.WithReadinessCheck("store", func(context.Context) error { return errors.New("down") }),
	)

	require.Equal(t, http.StatusOK, e.do(httptest.NewRequest(http.MethodGet, server.LivenessPath, nil)).Code)
	require.Equal(t, http.StatusServiceUnavailable, e.do(httptest.NewRequest(http.MethodGet, server.ReadinessPath, nil)).Code)
}

func TestRun(t *testing.T) {
	t.Parallel()

	var hooked atomic.Bool
	e := newEnv(t, tokenOK, server.WithShutdownHook(func(context.Context) error {
		hooked.Store(true)
		return nil
	}))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- e.srv.Run(ctx) }()

	resp, err := http.Get("http://" + e.srv.Addr() + server.LivenessPath)
	require.NoError(t, err)
	_ = resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
	require.True(t, hooked.Load())
}

func TestRun_ListenError(t *testing.T) {
	t.Parallel()

	srv := server.New("127.0.0.1:bad-port", nil, nil, nil)

	done := make(chan error, 1)
	go func() { done <- srv.Run(context.Background()) }()

	addr := make(chan string, 1)
	go func() { addr <- srv.Addr() }()

	select {
	case got := <-addr:
		require.Empty(t, got)
	case <-time.After(5 * time.Second):
		t.Fatal("Addr blocked after listen failure")
	}
	require.Error(t, <-done)
}
