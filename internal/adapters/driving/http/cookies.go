package http

import (
	"net/http"
	"time"

	"github.com/custodia-labs/sociallink-core/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.CookieCarrier = (*cookieCarrier)(nil)

// cookieCarrier binds one request/response pair to the cookie port.
// Cookies are httpOnly and SameSite=Lax so the OAuth redirect round
// trip (a top-level cross-site navigation) still sends them back.
type cookieCarrier struct {
	w      http.ResponseWriter
	r      *http.Request
	secure bool
}

func newCookieCarrier(w http.ResponseWriter, r *http.Request, secure bool) *cookieCarrier {
	return &cookieCarrier{w: w, r: r, secure: secure}
}

func (c *cookieCarrier) Get(name string) (string, bool) {
	cookie, err := c.r.Cookie(name)
	if err != nil || cookie.Value == "" {
		return "", false
	}
	return cookie.Value, true
}

func (c *cookieCarrier) Set(name, value string, maxAge time.Duration) {
	http.SetCookie(c.w, &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		MaxAge:   int(maxAge.Seconds()),
		HttpOnly: true,
		Secure:   c.secure,
		SameSite: http.SameSiteLaxMode,
	})
}

func (c *cookieCarrier) Clear(name string) {
	http.SetCookie(c.w, &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   c.secure,
		SameSite: http.SameSiteLaxMode,
	})
}
