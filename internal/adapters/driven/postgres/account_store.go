package postgres

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/custodia-labs/sociallink-core/internal/core/domain"
	"github.com/custodia-labs/sociallink-core/internal/core/ports/driven"
)

// Ensure AccountStore implements the interface.
var _ driven.AccountStore = (*AccountStore)(nil)

// accountSecrets is the encrypted portion of a social account row.
type accountSecrets struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token,omitempty"`
}

// AccountStore implements driven.AccountStore using PostgreSQL.
// Token material is stored AES-GCM encrypted in secret_blob.
type AccountStore struct {
	db        *DB
	encryptor *SecretEncryptor
}

// NewAccountStore creates a new PostgreSQL-backed account store.
func NewAccountStore(db *DB, encryptor *SecretEncryptor) *AccountStore {
	return &AccountStore{
		db:        db,
		encryptor: encryptor,
	}
}

const accountColumns = `id, user_id, platform, provider_account_id, provider_username,
	secret_blob, token_expires_at, scope, is_active, created_at, updated_at`

// Get returns the account for the (user, platform) pair.
func (s *AccountStore) Get(ctx context.Context, userID string, platform domain.Platform) (*domain.SocialAccount, error) {
	query := `SELECT ` + accountColumns + ` FROM social_accounts WHERE user_id = $1 AND platform = $2`
	return s.scanAccount(s.db.QueryRowContext(ctx, query, userID, string(platform)))
}

// Upsert creates the account or replaces it for its (user, platform) pair.
func (s *AccountStore) Upsert(ctx context.Context, account *domain.SocialAccount) (*domain.SocialAccount, error) {
	blob, err := s.encryptor.Encrypt(accountSecrets{
		AccessToken:  account.AccessToken,
		RefreshToken: account.RefreshToken,
	})
	if err != nil {
		return nil, fmt.Errorf("encrypt account secrets: %w", err)
	}

	if account.ID == "" {
		account.ID = newAccountID()
	}
	now := time.Now()

	query := `
		INSERT INTO social_accounts (
			id, user_id, platform, provider_account_id, provider_username,
			secret_blob, token_expires_at, scope, is_active, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $10)
		ON CONFLICT (user_id, platform) DO UPDATE SET
			provider_account_id = EXCLUDED.provider_account_id,
			provider_username = EXCLUDED.provider_username,
			secret_blob = EXCLUDED.secret_blob,
			token_expires_at = EXCLUDED.token_expires_at,
			scope = EXCLUDED.scope,
			is_active = EXCLUDED.is_active,
			updated_at = EXCLUDED.updated_at
		RETURNING id, created_at
	`

	err = s.db.QueryRowContext(ctx, query,
		account.ID,
		account.UserID,
		string(account.Platform),
		account.ProviderAccountID,
		account.ProviderUsername,
		blob,
		nullTime(account.TokenExpiresAt),
		account.Scope,
		account.IsActive,
		now,
	).Scan(&account.ID, &account.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("upsert account: %w", err)
	}
	account.UpdatedAt = now

	return account, nil
}

// UpdateTokens atomically replaces the token fields and reactivates the
// account. A single UPDATE keeps the blob and expiry consistent.
func (s *AccountStore) UpdateTokens(ctx context.Context, id string, update driven.TokenUpdate) error {
	blob, err := s.encryptor.Encrypt(accountSecrets{
		AccessToken:  update.AccessToken,
		RefreshToken: update.RefreshToken,
	})
	if err != nil {
		return fmt.Errorf("encrypt account secrets: %w", err)
	}

	query := `
		UPDATE social_accounts
		SET secret_blob = $2, token_expires_at = $3, scope = $4, is_active = TRUE, updated_at = NOW()
		WHERE id = $1
	`
	result, err := s.db.ExecContext(ctx, query, id, blob, nullTime(update.TokenExpiresAt), update.Scope)
	if err != nil {
		return fmt.Errorf("update tokens: %w", err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// Deactivate soft-deletes the account.
func (s *AccountStore) Deactivate(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE social_accounts SET is_active = FALSE, updated_at = NOW() WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("deactivate account: %w", err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// ListByUser returns all accounts owned by the user.
func (s *AccountStore) ListByUser(ctx context.Context, userID string) ([]*domain.SocialAccount, error) {
	query := `SELECT ` + accountColumns + ` FROM social_accounts WHERE user_id = $1 ORDER BY created_at`
	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	defer rows.Close()
	return s.collectAccounts(rows)
}

// ListRefreshable returns active accounts holding a refresh token.
// The refresh token lives inside the encrypted blob, so the final
// filter happens after decryption.
func (s *AccountStore) ListRefreshable(ctx context.Context) ([]*domain.SocialAccount, error) {
	query := `SELECT ` + accountColumns + ` FROM social_accounts
		WHERE is_active = TRUE AND token_expires_at IS NOT NULL
		ORDER BY token_expires_at`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list refreshable accounts: %w", err)
	}
	defer rows.Close()

	accounts, err := s.collectAccounts(rows)
	if err != nil {
		return nil, err
	}

	refreshable := accounts[:0]
	for _, a := range accounts {
		if a.RefreshToken != "" {
			refreshable = append(refreshable, a)
		}
	}
	return refreshable, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (s *AccountStore) scanAccount(row rowScanner) (*domain.SocialAccount, error) {
	var (
		account domain.SocialAccount
		blob    []byte
		expiry  sql.NullTime
	)
	err := row.Scan(
		&account.ID,
		&account.UserID,
		&account.Platform,
		&account.ProviderAccountID,
		&account.ProviderUsername,
		&blob,
		&expiry,
		&account.Scope,
		&account.IsActive,
		&account.CreatedAt,
		&account.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan account: %w", err)
	}
	account.TokenExpiresAt = timePtr(expiry)

	if len(blob) > 0 {
		var secrets accountSecrets
		if err := s.encryptor.Decrypt(blob, &secrets); err != nil {
			return nil, fmt.Errorf("decrypt account secrets: %w", err)
		}
		account.AccessToken = secrets.AccessToken
		account.RefreshToken = secrets.RefreshToken
	}

	return &account, nil
}

func (s *AccountStore) collectAccounts(rows *sql.Rows) ([]*domain.SocialAccount, error) {
	var accounts []*domain.SocialAccount
	for rows.Next() {
		account, err := s.scanAccount(rows)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, account)
	}
	return accounts, rows.Err()
}

// newAccountID generates a unique account ID.
func newAccountID() string {
	bytes := make([]byte, 16)
	_, _ = rand.Read(bytes)
	return "sa_" + hex.EncodeToString(bytes)
}
