package driving

import (
	"context"

	"github.com/custodia-labs/sociallink-core/internal/core/domain"
	"github.com/custodia-labs/sociallink-core/internal/core/ports/driven"
)

// OAuthService handles the OAuth PKCE flow for connecting social accounts.
// The CookieCarrier is request-scoped: it backs the signed-cookie state
// channel for the current redirect round trip.
type OAuthService interface {
	// Authorize starts an OAuth authorization flow. It generates PKCE
	// credentials, stores the pending state across every channel, and
	// returns the authorization URL to redirect the user to.
	Authorize(ctx context.Context, carrier driven.CookieCarrier, req AuthorizeRequest) (*AuthorizeResponse, error)

	// Callback handles the provider redirect. It validates and consumes
	// the state, exchanges the code for tokens, resolves the external
	// identity, and persists the account.
	Callback(ctx context.Context, carrier driven.CookieCarrier, req CallbackRequest) (*CallbackResponse, error)
}

// AuthorizeRequest starts an OAuth flow for a user.
type AuthorizeRequest struct {
	UserID   string
	Platform domain.Platform
}

// AuthorizeResponse contains the authorization URL and state.
// @Description Response containing the OAuth authorization URL
type AuthorizeResponse struct {
	// AuthorizationURL is the URL to redirect the user to.
	AuthorizationURL string `json:"authorization_url"`

	// State is the CSRF token that will be returned in the callback.
	State string `json:"state"`

	// ExpiresAt is when the authorization state expires.
	ExpiresAt string `json:"expires_at" example:"2026-01-15T10:20:00Z"`
}

// CallbackRequest represents the OAuth callback from the provider.
type CallbackRequest struct {
	Code             string
	State            string
	Error            string
	ErrorDescription string
}

// CallbackResponse contains the result of the OAuth callback.
// @Description Result of a completed OAuth flow
type CallbackResponse struct {
	Account *domain.AccountSummary `json:"account"`
	Message string                 `json:"message" example:"Connected X as @someone"`
}

// OAuthError represents an OAuth-specific error.
type OAuthError struct {
	Code        string `json:"error" example:"invalid_state"`
	Description string `json:"error_description,omitempty"`
}

func (e *OAuthError) Error() string {
	if e.Description != "" {
		return e.Code + ": " + e.Description
	}
	return e.Code
}

// Common OAuth flow errors
var (
	ErrOAuthInvalidState   = &OAuthError{Code: "invalid_state", Description: "The state parameter is invalid or expired"}
	ErrOAuthExchangeFailed = &OAuthError{Code: "exchange_failed", Description: "Failed to exchange authorization code for tokens"}
	ErrOAuthUserInfoFailed = &OAuthError{Code: "user_info_failed", Description: "Failed to fetch user information"}
)
