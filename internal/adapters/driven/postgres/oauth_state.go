package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/custodia-labs/sociallink-core/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.OAuthStateStore = (*OAuthStateStore)(nil)

// OAuthStateStore is the durable fallback channel for pending OAuth
// flows. It survives process restarts, unlike the cookie and the
// in-process cache.
type OAuthStateStore struct {
	db *DB
}

// NewOAuthStateStore creates a PostgreSQL-backed OAuth state store.
func NewOAuthStateStore(db *DB) *OAuthStateStore {
	return &OAuthStateStore{db: db}
}

// Save persists a pending flow keyed by its state token.
func (s *OAuthStateStore) Save(ctx context.Context, state *driven.OAuthState) error {
	query := `
		INSERT INTO oauth_states (state, platform, user_id, code_verifier, redirect_uri, created_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (state) DO UPDATE SET
			platform = EXCLUDED.platform,
			user_id = EXCLUDED.user_id,
			code_verifier = EXCLUDED.code_verifier,
			redirect_uri = EXCLUDED.redirect_uri,
			created_at = EXCLUDED.created_at,
			expires_at = EXCLUDED.expires_at
	`
	_, err := s.db.ExecContext(ctx, query,
		state.State,
		string(state.Platform),
		nullString(state.UserID),
		state.CodeVerifier,
		state.RedirectURI,
		state.CreatedAt,
		state.ExpiresAt,
	)
	if err != nil {
		return fmt.Errorf("save oauth state: %w", err)
	}
	return nil
}

// GetAndDelete atomically consumes a pending flow. Returns (nil, nil)
// when the state is unknown or already expired: a single DELETE with
// RETURNING guarantees one-time use even under concurrent callbacks.
func (s *OAuthStateStore) GetAndDelete(ctx context.Context, stateToken string) (*driven.OAuthState, error) {
	query := `
		DELETE FROM oauth_states
		WHERE state = $1 AND expires_at > NOW()
		RETURNING state, platform, user_id, code_verifier, redirect_uri, created_at, expires_at
	`

	var (
		state  driven.OAuthState
		userID sql.NullString
	)
	err := s.db.QueryRowContext(ctx, query, stateToken).Scan(
		&state.State,
		&state.Platform,
		&userID,
		&state.CodeVerifier,
		&state.RedirectURI,
		&state.CreatedAt,
		&state.ExpiresAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("consume oauth state: %w", err)
	}
	state.UserID = userID.String

	return &state, nil
}

// Delete removes a pending flow without returning it.
func (s *OAuthStateStore) Delete(ctx context.Context, stateToken string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM oauth_states WHERE state = $1`, stateToken)
	if err != nil {
		return fmt.Errorf("delete oauth state: %w", err)
	}
	return nil
}

// Cleanup removes expired flows that were started but never completed.
func (s *OAuthStateStore) Cleanup(ctx context.Context) (int, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM oauth_states WHERE expires_at <= NOW()`)
	if err != nil {
		return 0, fmt.Errorf("cleanup oauth states: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return 0, nil
	}
	return int(rows), nil
}

// nullString converts an optional string to sql.NullString.
func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
