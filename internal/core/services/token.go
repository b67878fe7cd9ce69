package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/custodia-labs/sociallink-core/internal/core/domain"
	"github.com/custodia-labs/sociallink-core/internal/core/ports/driven"
	"github.com/custodia-labs/sociallink-core/internal/core/ports/driving"
)

// Ensure tokenService implements TokenService
var _ driving.TokenService = (*tokenService)(nil)

// refreshLockTTL bounds how long a distributed refresh lock can outlive
// a crashed holder.
const refreshLockTTL = 30 * time.Second

// SleepFunc delays for d or returns early with the context's error.
// Injected so tests run without real timers.
type SleepFunc func(ctx context.Context, d time.Duration) error

// TokenServiceConfig holds configuration for the token service.
type TokenServiceConfig struct {
	AccountStore driven.AccountStore
	Providers    driven.ProviderRegistry

	// Lock is optional. When set, refreshes for the same account are
	// single-flighted across instances instead of relying on
	// last-writer-wins.
	Lock driven.DistributedLock

	Logger *slog.Logger

	// Sleep defaults to a context-aware timer sleep.
	Sleep SleepFunc
}

// tokenService implements the TokenService interface.
type tokenService struct {
	accounts  driven.AccountStore
	providers driven.ProviderRegistry
	lock      driven.DistributedLock
	logger    *slog.Logger
	sleep     SleepFunc

	// mu guards inflight; inflight serializes refreshes per account key
	// within this process.
	mu       sync.Mutex
	inflight map[string]*accountLock
}

// accountLock is a refcounted inflight entry. The last waiter out
// removes it, so the map is bounded by concurrent refreshes rather
// than by every account ever refreshed.
type accountLock struct {
	mu      sync.Mutex
	waiters int
}

// NewTokenService creates a new token service.
func NewTokenService(cfg TokenServiceConfig) driving.TokenService {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	sleep := cfg.Sleep
	if sleep == nil {
		sleep = sleepWithContext
	}
	return &tokenService{
		accounts:  cfg.AccountStore,
		providers: cfg.Providers,
		lock:      cfg.Lock,
		logger:    logger,
		sleep:     sleep,
		inflight:  make(map[string]*accountLock),
	}
}

// GetValidAccessToken returns a usable access token for the
// (user, platform) pair, refreshing it first when it is within the
// freshness buffer of its expiry.
func (s *tokenService) GetValidAccessToken(ctx context.Context, userID string, platform domain.Platform, opts *driving.RefreshOptions) (*driving.AccessTokenResult, error) {
	if opts == nil {
		opts = driving.DefaultRefreshOptions()
	}

	account, err := s.accounts.Get(ctx, userID, platform)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrAccountNotConnected
		}
		return nil, fmt.Errorf("get account: %w", err)
	}
	if !account.IsActive {
		return nil, domain.ErrAccountInactive
	}
	if account.AccessToken == "" {
		return nil, domain.ErrReauthRequired
	}

	if !account.NeedsRefresh() {
		return &driving.AccessTokenResult{AccessToken: account.AccessToken}, nil
	}

	// Serialize concurrent refreshes for this account within the
	// process; concurrent callers ride on the winner's stored result.
	unlock := s.lockAccount(account.UserID, account.Platform)
	defer unlock()

	// Re-read: another request may have refreshed while we waited.
	account, err = s.accounts.Get(ctx, userID, platform)
	if err != nil {
		return nil, fmt.Errorf("get account: %w", err)
	}
	if !account.IsActive {
		return nil, domain.ErrAccountInactive
	}
	if !account.NeedsRefresh() {
		return &driving.AccessTokenResult{AccessToken: account.AccessToken}, nil
	}

	if account.RefreshToken == "" {
		// Nothing left to refresh with. Terminal until the user
		// re-authenticates.
		if err := s.accounts.Deactivate(ctx, account.ID); err != nil {
			s.logger.Error("deactivate account failed", "account_id", account.ID, "error", err)
		}
		return nil, domain.ErrReauthRequired
	}

	token, err := s.refreshWithRetry(ctx, account, opts)
	if err != nil {
		return nil, err
	}
	return &driving.AccessTokenResult{AccessToken: token, IsRefreshed: true}, nil
}

// refreshWithRetry drives the provider refresh call with exponential
// backoff, classifying each failure as permanent or transient.
func (s *tokenService) refreshWithRetry(ctx context.Context, account *domain.SocialAccount, opts *driving.RefreshOptions) (string, error) {
	client := s.providers.Client(account.Platform)
	if client == nil {
		return "", domain.ErrPlatformNotSupported
	}

	lockName := refreshLockName(account.UserID, account.Platform)
	if s.lock != nil {
		acquired, err := s.lock.Acquire(ctx, lockName, refreshLockTTL)
		if err != nil {
			s.logger.Warn("refresh lock unavailable", "account_id", account.ID, "error", err)
		} else if !acquired {
			// Another instance is refreshing. Give it a moment, then
			// serve whatever it stored; fall through to a refresh of
			// our own only if the token is still stale.
			_ = s.sleep(ctx, opts.Backoff)
			fresh, err := s.accounts.Get(ctx, account.UserID, account.Platform)
			if err == nil && fresh.IsActive && !fresh.NeedsRefresh() {
				return fresh.AccessToken, nil
			}
		} else {
			defer func() {
				if err := s.lock.Release(context.WithoutCancel(ctx), lockName); err != nil {
					s.logger.Warn("refresh lock release failed", "account_id", account.ID, "error", err)
				}
			}()
		}
	}

	attempts := opts.RetryCount + 1
	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			// Backoff doubles per attempt: base, 2x, 4x, ...
			delay := opts.Backoff * (1 << (attempt - 1))
			if err := s.sleep(ctx, delay); err != nil {
				return "", err
			}
		}

		token, err := client.RefreshToken(ctx, account.RefreshToken)
		if err == nil {
			return s.persistRefreshedToken(ctx, account, token)
		}
		lastErr = err

		if isPermanentRefreshError(err) {
			// The refresh token itself is dead. Retrying cannot help;
			// deactivate now so later calls fail fast.
			s.logger.Warn("refresh token rejected, deactivating account",
				"account_id", account.ID, "platform", account.Platform, "error", err)
			if derr := s.accounts.Deactivate(ctx, account.ID); derr != nil {
				s.logger.Error("deactivate account failed", "account_id", account.ID, "error", derr)
			}
			return "", fmt.Errorf("%w: %v", domain.ErrReauthRequired, err)
		}

		s.logger.Warn("token refresh attempt failed",
			"account_id", account.ID, "attempt", attempt+1, "error", err)
	}

	return "", fmt.Errorf("token refresh failed after %d attempts: %w", attempts, lastErr)
}

// persistRefreshedToken writes the new token set back. The four token
// fields are replaced together; a missing refresh token in the response
// means the provider did not rotate and the old one is kept.
func (s *tokenService) persistRefreshedToken(ctx context.Context, account *domain.SocialAccount, token *driven.OAuthToken) (string, error) {
	refreshToken := token.RefreshToken
	if refreshToken == "" {
		refreshToken = account.RefreshToken
	}
	scope := token.Scope
	if scope == "" {
		scope = account.Scope
	}

	var expiry *time.Time
	if token.ExpiresIn > 0 {
		t := time.Now().Add(time.Duration(token.ExpiresIn) * time.Second)
		expiry = &t
	}

	update := driven.TokenUpdate{
		AccessToken:    token.AccessToken,
		RefreshToken:   refreshToken,
		TokenExpiresAt: expiry,
		Scope:          scope,
	}
	if err := s.accounts.UpdateTokens(ctx, account.ID, update); err != nil {
		return "", fmt.Errorf("persist refreshed token: %w", err)
	}

	s.logger.Info("access token refreshed",
		"account_id", account.ID, "platform", account.Platform)
	return token.AccessToken, nil
}

// RefreshAllExpiringTokens walks all active accounts holding a refresh
// token and refreshes the ones near expiry. One account's failure never
// aborts the sweep.
func (s *tokenService) RefreshAllExpiringTokens(ctx context.Context) (*driving.SweepReport, error) {
	accounts, err := s.accounts.ListRefreshable(ctx)
	if err != nil {
		return nil, fmt.Errorf("list refreshable accounts: %w", err)
	}

	report := &driving.SweepReport{Total: len(accounts)}
	for _, account := range accounts {
		result, err := s.GetValidAccessToken(ctx, account.UserID, account.Platform, nil)
		if err != nil {
			report.Failed++
			report.Errors = append(report.Errors, driving.SweepError{
				AccountID: account.ID,
				Platform:  string(account.Platform),
				Message:   err.Error(),
			})
			continue
		}
		if result.IsRefreshed {
			report.Refreshed++
		}
	}

	s.logger.Info("token refresh sweep finished",
		"total", report.Total, "refreshed", report.Refreshed, "failed", report.Failed)
	return report, nil
}

// lockAccount returns an unlock func for the per-account local mutex.
func (s *tokenService) lockAccount(userID string, platform domain.Platform) func() {
	key := refreshLockName(userID, platform)

	s.mu.Lock()
	l, ok := s.inflight[key]
	if !ok {
		l = &accountLock{}
		s.inflight[key] = l
	}
	l.waiters++
	s.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		s.mu.Lock()
		l.waiters--
		if l.waiters == 0 {
			delete(s.inflight, key)
		}
		s.mu.Unlock()
	}
}

func refreshLockName(userID string, platform domain.Platform) string {
	return "token-refresh:" + userID + ":" + string(platform)
}

// isPermanentRefreshError reports whether a refresh failure means the
// refresh token itself is invalid, expired, or revoked. Permanent
// failures deactivate the account instead of consuming retries.
func isPermanentRefreshError(err error) bool {
	var te *driven.TokenEndpointError
	if errors.As(err, &te) {
		switch te.Code {
		case "invalid_grant", "invalid_request", "invalid_client", "unauthorized_client":
			return true
		}
		return te.StatusCode == http.StatusUnauthorized || te.StatusCode == http.StatusForbidden
	}

	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "revoked") {
		return true
	}
	if strings.Contains(msg, "token") && (strings.Contains(msg, "invalid") || strings.Contains(msg, "expired")) {
		return true
	}
	return false
}

// sleepWithContext waits for d unless the context ends first.
func sleepWithContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
