package driven

import (
	"context"
	"time"
)

// OAuthState represents a pending OAuth authorization flow state.
// Used for CSRF protection and PKCE code verifier storage.
type OAuthState struct {
	// State is a cryptographically random string used for CSRF protection.
	// It is the lookup key across every channel the payload is stored in.
	State string `json:"state"`

	// Platform is the social platform being connected.
	Platform string `json:"platform"`

	// UserID is the user starting the flow. May be empty until resolved.
	UserID string `json:"user_id,omitempty"`

	// CodeVerifier is the PKCE code verifier (plain text, not hashed).
	// It never leaves the server; only its S256 challenge is sent out.
	CodeVerifier string `json:"code_verifier"`

	// RedirectURI is the callback URL where the provider will redirect.
	RedirectURI string `json:"redirect_uri"`

	// CreatedAt is when the state was created.
	CreatedAt time.Time `json:"created_at"`

	// ExpiresAt is when the state expires.
	ExpiresAt time.Time `json:"expires_at"`
}

// Expired reports whether the state is past its expiry instant.
func (s *OAuthState) Expired() bool {
	return time.Now().After(s.ExpiresAt)
}

// StateChannel is one backing channel for pending OAuth states.
// The flow stores the same logical payload across several channels
// (signed cookie, in-process cache, persistent row) and consumes from
// the first one that yields a valid payload.
type StateChannel interface {
	// Save stores a new OAuth state.
	Save(ctx context.Context, state *OAuthState) error

	// GetAndDelete atomically retrieves and deletes the state.
	// Returns nil, nil if the state doesn't exist or has expired.
	GetAndDelete(ctx context.Context, state string) (*OAuthState, error)

	// Delete removes the state without reading it. Used to clear the
	// remaining channels once another channel produced the payload,
	// enforcing single use everywhere.
	Delete(ctx context.Context, state string) error
}

// OAuthStateStore is the persistent fallback channel. It additionally
// supports bulk expiry cleanup for the maintenance sweep.
type OAuthStateStore interface {
	StateChannel

	// Cleanup removes expired states and returns how many were removed.
	Cleanup(ctx context.Context) (int, error)
}
