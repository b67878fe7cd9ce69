package services

import (
	"context"
	"errors"
	"log/slog"

	"github.com/custodia-labs/sociallink-core/internal/core/domain"
	"github.com/custodia-labs/sociallink-core/internal/core/ports/driven"
	"github.com/custodia-labs/sociallink-core/internal/core/ports/driving"
)

// Ensure accountService implements the interface
var _ driving.AccountService = (*accountService)(nil)

type accountService struct {
	accounts driven.AccountStore
	logger   *slog.Logger
}

// NewAccountService creates the account read/disconnect service.
func NewAccountService(accounts driven.AccountStore, logger *slog.Logger) driving.AccountService {
	if logger == nil {
		logger = slog.Default()
	}
	return &accountService{
		accounts: accounts,
		logger:   logger,
	}
}

func (s *accountService) ListAccounts(ctx context.Context, userID string) ([]*domain.AccountSummary, error) {
	accounts, err := s.accounts.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	summaries := make([]*domain.AccountSummary, 0, len(accounts))
	for _, a := range accounts {
		summaries = append(summaries, a.ToSummary())
	}
	return summaries, nil
}

func (s *accountService) GetAccount(ctx context.Context, userID string, platform domain.Platform) (*domain.AccountSummary, error) {
	if !platform.Valid() {
		return nil, domain.ErrPlatformNotSupported
	}

	account, err := s.accounts.Get(ctx, userID, platform)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, domain.ErrAccountNotConnected
	}
	if err != nil {
		return nil, err
	}
	return account.ToSummary(), nil
}

func (s *accountService) Disconnect(ctx context.Context, userID string, platform domain.Platform) error {
	if !platform.Valid() {
		return domain.ErrPlatformNotSupported
	}

	account, err := s.accounts.Get(ctx, userID, platform)
	if errors.Is(err, domain.ErrNotFound) {
		return domain.ErrAccountNotConnected
	}
	if err != nil {
		return err
	}

	if err := s.accounts.Deactivate(ctx, account.ID); err != nil {
		return err
	}

	s.logger.Info("account disconnected",
		"user_id", userID,
		"platform", platform,
		"account_id", account.ID)
	return nil
}
