package domain

import (
	"strings"
	"time"
)

// refreshBuffer is how far before expiry a token is considered stale.
// It absorbs clock skew and in-flight request latency.
const refreshBuffer = 2 * time.Minute

// SocialAccount stores the OAuth credentials for one (user, platform) pair.
// At most one account exists per pair.
type SocialAccount struct {
	ID       string   `json:"id"`
	UserID   string   `json:"user_id"`
	Platform Platform `json:"platform"`

	// External identity resolved from the provider's profile endpoint.
	ProviderAccountID string `json:"provider_account_id"`
	ProviderUsername  string `json:"provider_username"`

	// Token fields. Never serialized.
	AccessToken  string `json:"-"`
	RefreshToken string `json:"-"`

	// TokenExpiresAt is the absolute expiry instant of the access token.
	// Nil means the provider reported no expiry.
	TokenExpiresAt *time.Time `json:"token_expires_at,omitempty"`

	// Scope is the space-delimited set of granted permissions.
	Scope string `json:"scope,omitempty"`

	// IsActive is false once refresh is known to be permanently impossible.
	// Inactive accounts must not serve API calls until re-authenticated.
	IsActive bool `json:"is_active"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// AccountSummary is a safe view of a SocialAccount without credentials.
type AccountSummary struct {
	ID                string     `json:"id"`
	Platform          Platform   `json:"platform"`
	ProviderAccountID string     `json:"provider_account_id"`
	ProviderUsername  string     `json:"provider_username"`
	TokenExpiresAt    *time.Time `json:"token_expires_at,omitempty"`
	Scopes            []string   `json:"scopes,omitempty"`
	IsActive          bool       `json:"is_active"`
	CreatedAt         time.Time  `json:"created_at"`
}

// ToSummary converts a SocialAccount to an AccountSummary.
func (a *SocialAccount) ToSummary() *AccountSummary {
	return &AccountSummary{
		ID:                a.ID,
		Platform:          a.Platform,
		ProviderAccountID: a.ProviderAccountID,
		ProviderUsername:  a.ProviderUsername,
		TokenExpiresAt:    a.TokenExpiresAt,
		Scopes:            a.Scopes(),
		IsActive:          a.IsActive,
		CreatedAt:         a.CreatedAt,
	}
}

// Scopes splits the space-delimited scope string.
func (a *SocialAccount) Scopes() []string {
	return strings.Fields(a.Scope)
}

// IsExpired reports whether the access token is past its expiry instant.
func (a *SocialAccount) IsExpired() bool {
	if a.TokenExpiresAt == nil {
		return false
	}
	return time.Now().After(*a.TokenExpiresAt)
}

// NeedsRefresh reports whether the access token is inside the freshness
// buffer and should be refreshed before use.
func (a *SocialAccount) NeedsRefresh() bool {
	if a.TokenExpiresAt == nil {
		return false
	}
	return time.Now().Add(refreshBuffer).After(*a.TokenExpiresAt)
}
