package postgres

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/custodia-labs/sociallink-core/internal/core/domain"
	"github.com/custodia-labs/sociallink-core/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.UserStore = (*UserStore)(nil)

// UserStore implements driven.UserStore using PostgreSQL.
type UserStore struct {
	db *DB
}

// NewUserStore creates a PostgreSQL-backed user store.
func NewUserStore(db *DB) *UserStore {
	return &UserStore{db: db}
}

const userColumns = `id, email, name, password_hash, role, active, created_at, updated_at`

// Create stores a new user.
func (s *UserStore) Create(ctx context.Context, user *domain.User) error {
	if user.ID == "" {
		user.ID = newUserID()
	}
	if user.Role == "" {
		user.Role = domain.RoleMember
	}
	now := time.Now()
	user.CreatedAt = now
	user.UpdatedAt = now

	query := `
		INSERT INTO users (id, email, name, password_hash, role, active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $7)
	`
	_, err := s.db.ExecContext(ctx, query,
		user.ID, user.Email, user.Name, user.PasswordHash, string(user.Role), user.Active, now)
	if err != nil {
		// 23505 = unique_violation (duplicate email)
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
			return domain.ErrAlreadyExists
		}
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

// Get returns the user by ID.
func (s *UserStore) Get(ctx context.Context, id string) (*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	return s.scanUser(s.db.QueryRowContext(ctx, query, id))
}

// GetByEmail returns the user by email.
func (s *UserStore) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email = $1`
	return s.scanUser(s.db.QueryRowContext(ctx, query, email))
}

func (s *UserStore) scanUser(row rowScanner) (*domain.User, error) {
	var user domain.User
	err := row.Scan(
		&user.ID,
		&user.Email,
		&user.Name,
		&user.PasswordHash,
		&user.Role,
		&user.Active,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan user: %w", err)
	}
	return &user, nil
}

// newUserID generates a unique user ID.
func newUserID() string {
	bytes := make([]byte, 16)
	_, _ = rand.Read(bytes)
	return "usr_" + hex.EncodeToString(bytes)
}
