package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/dmitrymomot/polarauth/pkg/oauth"
	"github.com/dmitrymomot/polarauth/pkg/session"
)

type authHandler struct {
	flow   *oauth.Flow
	states *session.Store
	logger *slog.Logger
}

// login starts the flow. An optional scope query parameter replaces the
// configured scopes for this attempt.
func (h *authHandler) login(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sid, _ := session.IDFromContext(ctx)

	var opts []oauth.AuthorizeOption
	if scope := r.URL.Query().Get("scope"); scope != "" {
		opts = append(opts, oauth.WithScope(strings.Fields(scope)...))
	}

	target, err := h.flow.AuthCodeURL(ctx, h.states.Scope(sid), opts...)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to start oauth flow", slog.Any("error", err))
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{
			Error:       "server_error",
			Description: "could not start authorization",
		})
		return
	}

	http.Redirect(w, r, target, http.StatusFound)
}

// callback completes the flow and answers with the identity as JSON.
func (h *authHandler) callback(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sid, _ := session.IDFromContext(ctx)

	identity, err := h.flow.Callback(ctx, h.states.Scope(sid), oauth.CallbackParamsFromRequest(r))
	if err != nil {
		writeOAuthError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "polar login completed", slog.String("uid", identity.UID))
	writeJSON(w, http.StatusOK, identity)
}

type errorResponse struct {
	Error       string `json:"error"`
	Description string `json:"error_description,omitempty"`
	Code        string `json:"error_code,omitempty"`
	URI         string `json:"error_uri,omitempty"`
}

// statusFor maps a failure kind onto an HTTP status.
func statusFor(kind oauth.ErrorKind) int {
	switch kind {
	case oauth.KindProviderError, oauth.KindInvalidCredentials:
		return http.StatusUnauthorized
	case oauth.KindCSRFDetected:
		return http.StatusForbidden
	case oauth.KindTimeout:
		return http.StatusGatewayTimeout
	case oauth.KindFailedToConnect:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writeOAuthError(w http.ResponseWriter, err error) {
	var oerr *oauth.Error
	if !errors.As(err, &oerr) {
		writeJSON(w, http.StatusInternalServerError, errorResponse{
			Error:       "server_error",
			Description: http.StatusText(http.StatusInternalServerError),
		})
		return
	}

	status := statusFor(oerr.Kind)
	desc := oerr.Description
	if desc == "" {
		desc = http.StatusText(status)
	}
	writeJSON(w, status, errorResponse{
		Error:       string(oerr.Kind),
		Description: desc,
		Code:        oerr.Code,
		URI:         oerr.URI,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
