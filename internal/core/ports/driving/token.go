package driving

import (
	"context"
	"time"

	"github.com/custodia-labs/sociallink-core/internal/core/domain"
)

// TokenService hands out valid access tokens for connected accounts,
// refreshing them transparently when they are near expiry.
type TokenService interface {
	// GetValidAccessToken returns a usable access token for the
	// (user, platform) pair. If the stored token is inside the freshness
	// buffer it is refreshed first. opts may be nil for defaults.
	GetValidAccessToken(ctx context.Context, userID string, platform domain.Platform, opts *RefreshOptions) (*AccessTokenResult, error)

	// RefreshAllExpiringTokens walks all active accounts holding a
	// refresh token and refreshes the ones near expiry. Per-account
	// failures are isolated; the sweep always completes.
	RefreshAllExpiringTokens(ctx context.Context) (*SweepReport, error)
}

// RefreshOptions tunes the refresh retry policy.
type RefreshOptions struct {
	// RetryCount is the number of retries after the first attempt.
	RetryCount int

	// Backoff is the base delay; attempt n waits Backoff * 2^n.
	Backoff time.Duration
}

// DefaultRefreshOptions returns the standard retry policy.
func DefaultRefreshOptions() *RefreshOptions {
	return &RefreshOptions{
		RetryCount: 2,
		Backoff:    time.Second,
	}
}

// AccessTokenResult carries a valid token and whether a refresh happened.
type AccessTokenResult struct {
	AccessToken string
	IsRefreshed bool
}

// SweepReport aggregates the outcome of a refresh sweep.
type SweepReport struct {
	Total     int          `json:"total"`
	Refreshed int          `json:"refreshed"`
	Failed    int          `json:"failed"`
	Errors    []SweepError `json:"errors,omitempty"`
}

// SweepError records one account's failure during a sweep.
type SweepError struct {
	AccountID string `json:"account_id"`
	Platform  string `json:"platform"`
	Message   string `json:"message"`
}
