package driven

import "time"

// CookieCarrier is the minimal cookie surface the OAuth flow needs.
// It hides the web framework's request/response types from the core:
// the HTTP adapter binds one carrier per request.
type CookieCarrier interface {
	// Get returns the raw value of a named inbound cookie.
	Get(name string) (string, bool)

	// Set writes an httpOnly cookie on the response with the given
	// lifetime.
	Set(name, value string, maxAge time.Duration)

	// Clear expires the named cookie with matching attributes.
	Clear(name string)
}
