package statecookie

import (
	"context"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/custodia-labs/sociallink-core/internal/core/ports/driven"
)

// Ensure Signer implements the factory interface.
var _ driven.CookieStateChannels = (*Signer)(nil)

// CookiePrefix is the cookie name prefix; the state value is appended
// so concurrent flows in one browser never collide.
const CookiePrefix = "oauth_pkce_"

// DefaultMaxAge matches the pending-state lifetime.
const DefaultMaxAge = 20 * time.Minute

// Signer builds signed-cookie state channels. The payload is an HS256
// JWT carrying the pending state, which makes the cookie tamper-evident
// without any server-side storage.
type Signer struct {
	secret []byte
	maxAge time.Duration
}

// NewSigner creates a cookie signer with the given secret.
func NewSigner(secret string) *Signer {
	return &Signer{
		secret: []byte(secret),
		maxAge: DefaultMaxAge,
	}
}

// Channel binds a state channel to one request's cookie carrier.
func (s *Signer) Channel(carrier driven.CookieCarrier) driven.StateChannel {
	return &channel{signer: s, carrier: carrier}
}

// stateClaims is the JWT payload stored in the cookie.
type stateClaims struct {
	State        string `json:"state"`
	Platform     string `json:"platform"`
	UserID       string `json:"user_id,omitempty"`
	CodeVerifier string `json:"code_verifier"`
	RedirectURI  string `json:"redirect_uri"`
	jwt.RegisteredClaims
}

// channel is the per-request signed-cookie state channel.
type channel struct {
	signer  *Signer
	carrier driven.CookieCarrier
}

var _ driven.StateChannel = (*channel)(nil)

// Save signs the payload and sets it as an httpOnly cookie.
func (c *channel) Save(ctx context.Context, state *driven.OAuthState) error {
	claims := stateClaims{
		State:        state.State,
		Platform:     state.Platform,
		UserID:       state.UserID,
		CodeVerifier: state.CodeVerifier,
		RedirectURI:  state.RedirectURI,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(state.CreatedAt),
			ExpiresAt: jwt.NewNumericDate(state.ExpiresAt),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(c.signer.secret)
	if err != nil {
		return fmt.Errorf("sign state cookie: %w", err)
	}

	c.carrier.Set(CookiePrefix+state.State, signed, c.signer.maxAge)
	return nil
}

// GetAndDelete verifies the cookie for the state and clears it.
// A missing, tampered, or expired cookie is simply absent; the caller
// falls through to the next channel.
func (c *channel) GetAndDelete(ctx context.Context, state string) (*driven.OAuthState, error) {
	name := CookiePrefix + state
	raw, ok := c.carrier.Get(name)
	if !ok {
		return nil, nil
	}
	c.carrier.Clear(name)

	var claims stateClaims
	token, err := jwt.ParseWithClaims(raw, &claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return c.signer.secret, nil
	})
	if err != nil || !token.Valid {
		// Signature or expiry failure; treated the same as not found.
		return nil, nil
	}

	created := time.Time{}
	if claims.IssuedAt != nil {
		created = claims.IssuedAt.Time
	}
	expires := time.Time{}
	if claims.ExpiresAt != nil {
		expires = claims.ExpiresAt.Time
	}

	return &driven.OAuthState{
		State:        claims.State,
		Platform:     claims.Platform,
		UserID:       claims.UserID,
		CodeVerifier: claims.CodeVerifier,
		RedirectURI:  claims.RedirectURI,
		CreatedAt:    created,
		ExpiresAt:    expires,
	}, nil
}

// Delete clears the cookie with matching attributes.
func (c *channel) Delete(ctx context.Context, state string) error {
	c.carrier.Clear(CookiePrefix + state)
	return nil
}
