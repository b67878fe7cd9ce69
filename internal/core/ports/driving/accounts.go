package driving

import (
	"context"

	"github.com/custodia-labs/sociallink-core/internal/core/domain"
)

// AccountService exposes read and disconnect operations over a user's
// connected social accounts.
type AccountService interface {
	// ListAccounts returns credential-free summaries of the user's
	// connected accounts.
	ListAccounts(ctx context.Context, userID string) ([]*domain.AccountSummary, error)

	// GetAccount returns the summary for one platform connection.
	GetAccount(ctx context.Context, userID string, platform domain.Platform) (*domain.AccountSummary, error)

	// Disconnect deactivates the user's connection to a platform. The
	// row is kept so a later reconnect reuses the same account ID.
	Disconnect(ctx context.Context, userID string, platform domain.Platform) error
}
