package driving

import (
	"context"

	"github.com/custodia-labs/sociallink-core/internal/core/domain"
)

// PublishService posts content and reads engagement metrics through a
// user's connected accounts.
type PublishService interface {
	// CreatePost publishes a post on the user's connected platform.
	CreatePost(ctx context.Context, userID string, req domain.PostRequest) (*domain.PostResult, error)

	// GetPostMetrics fetches public engagement metrics for posts.
	GetPostMetrics(ctx context.Context, userID string, platform domain.Platform, ids []string) ([]*domain.PostMetrics, error)
}
