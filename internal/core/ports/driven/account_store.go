package driven

import (
	"context"
	"time"

	"github.com/custodia-labs/sociallink-core/internal/core/domain"
)

// TokenUpdate is the atomic token replacement written after every
// successful exchange or refresh. All four fields are replaced together.
type TokenUpdate struct {
	AccessToken    string
	RefreshToken   string
	TokenExpiresAt *time.Time
	Scope          string
}

// AccountStore persists social account credentials.
// At most one account exists per (user, platform) pair.
type AccountStore interface {
	// Get returns the account for the (user, platform) pair.
	// Returns domain.ErrNotFound if no account exists.
	Get(ctx context.Context, userID string, platform domain.Platform) (*domain.SocialAccount, error)

	// Upsert creates the account or replaces it for its (user, platform)
	// pair. The stored account is returned with its ID populated.
	Upsert(ctx context.Context, account *domain.SocialAccount) (*domain.SocialAccount, error)

	// UpdateTokens atomically replaces the token fields and reactivates
	// the account.
	UpdateTokens(ctx context.Context, id string, update TokenUpdate) error

	// Deactivate soft-deletes the account. The row is kept so the user
	// can re-authenticate into the same identity.
	Deactivate(ctx context.Context, id string) error

	// ListByUser returns all accounts owned by the user.
	ListByUser(ctx context.Context, userID string) ([]*domain.SocialAccount, error)

	// ListRefreshable returns active accounts that hold a refresh token.
	// Used by the maintenance sweep.
	ListRefreshable(ctx context.Context) ([]*domain.SocialAccount, error)
}
