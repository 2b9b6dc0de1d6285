// Package cookie writes HMAC-SHA256 signed cookies.
//
// A signed cookie value has the form base64(value).base64(mac), where the
// MAC covers both the cookie name and the value. Cookies are always
// HttpOnly and default to Path=/ and SameSite=Lax.
//
//	m, err := cookie.New(os.Getenv("COOKIE_SECRET"), cookie.WithSecure(true))
//	if err != nil {
//		return err // ErrBadSecret
//	}
//	m.SetSigned(w, "sid", id, 0)
//	id, err := m.GetSigned(r, "sid") // ErrNotFound, ErrBadSig
package cookie
