package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/custodia-labs/sociallink-core/internal/core/domain"
	"github.com/custodia-labs/sociallink-core/internal/core/ports/driven"
	"github.com/custodia-labs/sociallink-core/internal/core/ports/driving"
)

// Ensure authService implements AuthService
var _ driving.AuthService = (*authService)(nil)

// tokenLifetime is how long issued API tokens stay valid.
const tokenLifetime = 24 * time.Hour

// authService implements the AuthService interface with stateless JWTs.
type authService struct {
	users driven.UserStore
	auth  driven.AuthAdapter
}

// NewAuthService creates a new auth service.
func NewAuthService(users driven.UserStore, auth driven.AuthAdapter) driving.AuthService {
	return &authService{
		users: users,
		auth:  auth,
	}
}

// Authenticate verifies email/password and issues an API token.
func (s *authService) Authenticate(ctx context.Context, req domain.LoginRequest) (*domain.LoginResponse, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if email == "" || req.Password == "" {
		return nil, domain.ErrInvalidCredentials
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrInvalidCredentials
		}
		return nil, err
	}
	if !user.Active {
		return nil, domain.ErrUnauthorized
	}
	if !s.auth.VerifyPassword(req.Password, user.PasswordHash) {
		return nil, domain.ErrInvalidCredentials
	}

	now := time.Now()
	expiresAt := now.Add(tokenLifetime)
	token, err := s.auth.GenerateToken(&domain.TokenClaims{
		UserID:    user.ID,
		Email:     user.Email,
		Role:      user.Role,
		IssuedAt:  now.Unix(),
		ExpiresAt: expiresAt.Unix(),
	})
	if err != nil {
		return nil, err
	}

	return &domain.LoginResponse{
		Token:     token,
		ExpiresAt: expiresAt,
		User:      user,
	}, nil
}

// ValidateToken parses and validates an API token.
func (s *authService) ValidateToken(ctx context.Context, token string) (*domain.AuthContext, error) {
	claims, err := s.auth.ParseToken(token)
	if err != nil {
		return nil, err
	}
	if time.Now().Unix() > claims.ExpiresAt {
		return nil, domain.ErrTokenExpired
	}
	return &domain.AuthContext{
		UserID: claims.UserID,
		Email:  claims.Email,
		Role:   claims.Role,
	}, nil
}
