package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/custodia-labs/sociallink-core/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.OAuthStateStore = (*OAuthStateStore)(nil)

const statePrefix = "oauth:state:"

// OAuthStateStore implements driven.OAuthStateStore using Redis.
// Expiry rides on Redis TTL; GETDEL gives atomic single-use reads.
type OAuthStateStore struct {
	client *redis.Client
}

// NewOAuthStateStore creates a new Redis-backed OAuth state store.
func NewOAuthStateStore(client *redis.Client) *OAuthStateStore {
	return &OAuthStateStore{client: client}
}

// Save stores a state with TTL derived from its ExpiresAt.
func (s *OAuthStateStore) Save(ctx context.Context, state *driven.OAuthState) error {
	ttl := time.Until(state.ExpiresAt)
	if ttl <= 0 {
		// Already expired, don't save
		return nil
	}

	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("marshal oauth state: %w", err)
	}

	if err := s.client.Set(ctx, statePrefix+state.State, data, ttl).Err(); err != nil {
		return fmt.Errorf("save oauth state: %w", err)
	}
	return nil
}

// GetAndDelete atomically retrieves and deletes the state.
func (s *OAuthStateStore) GetAndDelete(ctx context.Context, state string) (*driven.OAuthState, error) {
	data, err := s.client.GetDel(ctx, statePrefix+state).Bytes()
	if err == redis.Nil {
		return nil, nil // Not found or expired
	}
	if err != nil {
		return nil, fmt.Errorf("get oauth state: %w", err)
	}

	var oauthState driven.OAuthState
	if err := json.Unmarshal(data, &oauthState); err != nil {
		return nil, fmt.Errorf("unmarshal oauth state: %w", err)
	}
	return &oauthState, nil
}

// Delete removes the state without reading it.
func (s *OAuthStateStore) Delete(ctx context.Context, state string) error {
	if err := s.client.Del(ctx, statePrefix+state).Err(); err != nil {
		return fmt.Errorf("delete oauth state: %w", err)
	}
	return nil
}

// Cleanup is a no-op: Redis TTL already evicts expired states.
func (s *OAuthStateStore) Cleanup(ctx context.Context) (int, error) {
	return 0, nil
}

// Ping checks if the Redis backend is healthy.
func (s *OAuthStateStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}
