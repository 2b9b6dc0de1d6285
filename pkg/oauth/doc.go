// Package oauth implements the Polar OAuth2 authorization code flow.
//
// A Flow issues the authorization redirect, validates the callback against
// a session-bound state token and exchanges the code for a token. The token
// is then projected into an Identity keyed by Polar's x_user_id.
//
// Polar differs from a stock OAuth2 provider in two ways that this package
// handles:
//
//   - Client credentials go in an HTTP Basic Authorization header and the
//     token request body carries only code and grant_type.
//   - redirect_uri is never sent, neither on the authorize URL nor on the
//     token request. Polar answers invalid_grant when it is present.
//
// # Usage
//
//	flow, err := oauth.NewPolar(oauth.Config{
//		ClientID:     os.Getenv("POLAR_OAUTH_CLIENT_ID"),
//		ClientSecret: os.Getenv("POLAR_OAUTH_CLIENT_SECRET"),
//	})
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	// Request phase: store is scoped to the user's session.
//	url, err := flow.AuthCodeURL(ctx, store)
//	http.Redirect(w, r, url, http.StatusFound)
//
//	// Callback phase.
//	identity, err := flow.Callback(ctx, store, oauth.CallbackParamsFromRequest(r))
//	switch oauth.KindOf(err) {
//	case "":
//		// identity.UID, identity.Credentials
//	case oauth.KindCSRFDetected:
//		// reject
//	}
//
// # State
//
// StateStore is supplied per call and must be scoped to one browser session.
// The stored state is consumed on every callback, successful or not, so a
// callback can never be replayed.
//
// # Errors
//
// Every failure from Callback and Refresh is an *Error with one of the
// ErrorKind values. Use errors.Is with the kind sentinels (ErrCSRFDetected,
// ErrTimeout and so on) or with the cause sentinels (ErrStateMismatch,
// ErrMissingUserID and so on):
//
//	if errors.Is(err, oauth.ErrTimeout) {
//		// retry later
//	}
//
// # Testing
//
// Use WithHTTPClient to point the flow at an httptest server, or pass a
// custom Exchanger to New.
package oauth
