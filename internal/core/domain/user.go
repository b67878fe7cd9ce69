package domain

import "time"

// Role defines a user's permission level
type Role string

const (
	RoleAdmin  Role = "admin"
	RoleMember Role = "member"
)

// User represents an account holder who can connect social platforms.
type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	Name         string    `json:"name"`
	PasswordHash string    `json:"-"`
	Role         Role      `json:"role"`
	Active       bool      `json:"active"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// TokenClaims holds the claims embedded in an API token.
type TokenClaims struct {
	UserID    string `json:"user_id"`
	Email     string `json:"email"`
	Role      Role   `json:"role"`
	IssuedAt  int64  `json:"issued_at"`
	ExpiresAt int64  `json:"expires_at"`
}

// AuthContext is the authenticated identity attached to a request.
type AuthContext struct {
	UserID string
	Email  string
	Role   Role
}

// IsAdmin reports whether the authenticated user is an admin.
func (c *AuthContext) IsAdmin() bool {
	return c.Role == RoleAdmin
}

// LoginRequest carries email/password credentials.
// @Description Login credentials
type LoginRequest struct {
	Email    string `json:"email" example:"user@example.com"`
	Password string `json:"password" example:"secret"`
}

// LoginResponse carries the issued API token.
// @Description Successful login result
type LoginResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	User      *User     `json:"user"`
}
