package driven

import (
	"context"

	"github.com/custodia-labs/sociallink-core/internal/core/domain"
)

// UserStore persists user accounts.
type UserStore interface {
	// Create stores a new user. Returns domain.ErrAlreadyExists if the
	// email is taken.
	Create(ctx context.Context, user *domain.User) error

	// Get returns the user by ID. Returns domain.ErrNotFound if missing.
	Get(ctx context.Context, id string) (*domain.User, error)

	// GetByEmail returns the user by email. Returns domain.ErrNotFound
	// if missing.
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
}
