package driving

import (
	"context"

	"github.com/custodia-labs/sociallink-core/internal/core/domain"
)

// AuthService authenticates users and validates API tokens.
type AuthService interface {
	// Authenticate verifies email/password and issues an API token.
	Authenticate(ctx context.Context, req domain.LoginRequest) (*domain.LoginResponse, error)

	// ValidateToken parses and validates an API token.
	ValidateToken(ctx context.Context, token string) (*domain.AuthContext, error)
}
