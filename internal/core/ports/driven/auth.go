package driven

import "github.com/custodia-labs/sociallink-core/internal/core/domain"

// AuthAdapter handles password hashing and API token operations.
type AuthAdapter interface {
	// HashPassword generates a hash from a plaintext password.
	HashPassword(password string) (string, error)

	// VerifyPassword checks if a password matches a hash.
	VerifyPassword(password, hash string) bool

	// GenerateToken creates a signed API token from claims.
	GenerateToken(claims *domain.TokenClaims) (string, error)

	// ParseToken validates an API token and extracts claims.
	ParseToken(token string) (*domain.TokenClaims, error)
}
