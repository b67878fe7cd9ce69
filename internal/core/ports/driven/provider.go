package driven

import (
	"context"
	"fmt"

	"github.com/custodia-labs/sociallink-core/internal/core/domain"
)

// OAuthToken is the token set returned by a provider's token endpoint.
type OAuthToken struct {
	AccessToken string

	// RefreshToken may be empty on refresh responses; rotation is
	// optional per provider and the caller keeps the prior token.
	RefreshToken string

	TokenType string
	Scope     string

	// ExpiresIn is the access token lifetime in seconds. Zero means the
	// provider reported no expiry.
	ExpiresIn int
}

// ProviderUser is the external identity behind an access token.
type ProviderUser struct {
	ID       string
	Username string
	Name     string
}

// ProviderConfig holds the OAuth app credentials for one platform.
type ProviderConfig struct {
	ClientID     string
	ClientSecret string
	Scopes       []string
}

// IsConfigured reports whether the credentials are usable.
func (c *ProviderConfig) IsConfigured() bool {
	return c != nil && c.ClientID != "" && c.ClientSecret != ""
}

// ProviderClient is the outbound surface of one social platform.
// BuildAuthURL is pure; everything else is a network round trip and
// must respect the context deadline.
type ProviderClient interface {
	// BuildAuthURL renders the provider's authorize endpoint URL with
	// the S256 challenge method.
	BuildAuthURL(clientID, redirectURI, state, codeChallenge string, scopes []string) string

	// ExchangeCode trades an authorization code (plus PKCE verifier) for
	// a token set. Codes are single-use; callers must not retry.
	ExchangeCode(ctx context.Context, code, codeVerifier, redirectURI string) (*OAuthToken, error)

	// RefreshToken obtains a new token set from a refresh token.
	RefreshToken(ctx context.Context, refreshToken string) (*OAuthToken, error)

	// GetUserInfo resolves the identity behind an access token.
	GetUserInfo(ctx context.Context, accessToken string) (*ProviderUser, error)

	// CreatePost publishes a post.
	CreatePost(ctx context.Context, accessToken, text string) (*domain.PostResult, error)

	// GetPostMetrics fetches public engagement metrics for posts.
	GetPostMetrics(ctx context.Context, accessToken string, ids []string) ([]*domain.PostMetrics, error)
}

// ProviderRegistry resolves clients and credentials per platform.
type ProviderRegistry interface {
	// Client returns the provider client for the platform, or nil if the
	// platform is not implemented.
	Client(platform domain.Platform) ProviderClient

	// Config returns the OAuth app credentials for the platform, or nil
	// if none are configured.
	Config(platform domain.Platform) *ProviderConfig
}

// CookieStateChannels builds signed-cookie state channels bound to a
// request-scoped carrier.
type CookieStateChannels interface {
	// Channel returns the cookie-backed state channel for one request.
	Channel(carrier CookieCarrier) StateChannel
}

// TokenEndpointError is a structured failure from a provider's token
// endpoint. The raw body is preserved for diagnostics; Code is the OAuth
// error code when the provider returned one.
type TokenEndpointError struct {
	StatusCode  int
	Code        string
	Description string
	Body        string
}

func (e *TokenEndpointError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("token endpoint error %d: %s - %s", e.StatusCode, e.Code, e.Description)
	}
	return fmt.Sprintf("token endpoint error %d: %s", e.StatusCode, e.Body)
}
