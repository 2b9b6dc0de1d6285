// Package session ties short-lived server-side values to a browser session.
//
// [Manager] issues a random session id (UUID v4) in a signed cookie and
// exposes it through the request context. [Store] keeps values in a
// [cache.Cache] under the session id; [Store.Scope] returns an
// [oauth.StateStore] for one session:
//
//	store := session.NewStore(cache.NewMemory[string](), 10*time.Minute)
//	sid, err := sessions.Load(w, r)
//	url, err := flow.AuthCodeURL(ctx, store.Scope(sid))
package session
