package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/custodia-labs/sociallink-core/internal/core/domain"
	"github.com/custodia-labs/sociallink-core/internal/core/ports/driven"
	"github.com/custodia-labs/sociallink-core/internal/core/ports/driving"
)

// Ensure publishService implements PublishService
var _ driving.PublishService = (*publishService)(nil)

// publishService posts content and reads metrics through connected
// accounts. Every call goes through the token service first so expired
// tokens are refreshed before the provider sees them.
type publishService struct {
	tokens    driving.TokenService
	providers driven.ProviderRegistry
	logger    *slog.Logger
}

// NewPublishService creates a new publish service.
func NewPublishService(tokens driving.TokenService, providers driven.ProviderRegistry, logger *slog.Logger) driving.PublishService {
	if logger == nil {
		logger = slog.Default()
	}
	return &publishService{
		tokens:    tokens,
		providers: providers,
		logger:    logger,
	}
}

// CreatePost publishes a post on the user's connected platform.
func (s *publishService) CreatePost(ctx context.Context, userID string, req domain.PostRequest) (*domain.PostResult, error) {
	if req.Text == "" {
		return nil, domain.ErrInvalidInput
	}
	client := s.providers.Client(req.Platform)
	if client == nil {
		return nil, domain.ErrPlatformNotSupported
	}

	token, err := s.tokens.GetValidAccessToken(ctx, userID, req.Platform, nil)
	if err != nil {
		return nil, err
	}

	result, err := client.CreatePost(ctx, token.AccessToken, req.Text)
	if err != nil {
		return nil, fmt.Errorf("create post: %w", err)
	}

	s.logger.Info("post published",
		"platform", req.Platform, "post_id", result.PostID)
	return result, nil
}

// GetPostMetrics fetches public engagement metrics for posts.
func (s *publishService) GetPostMetrics(ctx context.Context, userID string, platform domain.Platform, ids []string) ([]*domain.PostMetrics, error) {
	if len(ids) == 0 {
		return nil, domain.ErrInvalidInput
	}
	client := s.providers.Client(platform)
	if client == nil {
		return nil, domain.ErrPlatformNotSupported
	}

	token, err := s.tokens.GetValidAccessToken(ctx, userID, platform, nil)
	if err != nil {
		return nil, err
	}

	metrics, err := client.GetPostMetrics(ctx, token.AccessToken, ids)
	if err != nil {
		return nil, fmt.Errorf("get post metrics: %w", err)
	}
	return metrics, nil
}
