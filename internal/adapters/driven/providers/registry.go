package providers

import (
	"sync"

	"github.com/custodia-labs/sociallink-core/internal/core/domain"
	"github.com/custodia-labs/sociallink-core/internal/core/ports/driven"
)

// Ensure Registry implements the interface.
var _ driven.ProviderRegistry = (*Registry)(nil)

// Registry maps platforms to their provider clients and app credentials.
// Platforms without a registered client (Facebook, Instagram) surface as
// not supported.
type Registry struct {
	mu      sync.RWMutex
	clients map[domain.Platform]driven.ProviderClient
	configs map[domain.Platform]driven.ProviderConfig
}

// NewRegistry creates an empty provider registry.
func NewRegistry() *Registry {
	return &Registry{
		clients: make(map[domain.Platform]driven.ProviderClient),
		configs: make(map[domain.Platform]driven.ProviderConfig),
	}
}

// Register registers a provider client and its credentials.
func (r *Registry) Register(platform domain.Platform, client driven.ProviderClient, config driven.ProviderConfig) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.clients[platform] = client
	r.configs[platform] = config
}

// Client returns the provider client for the platform, or nil.
func (r *Registry) Client(platform domain.Platform) driven.ProviderClient {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.clients[platform]
}

// Config returns the app credentials for the platform, or nil.
func (r *Registry) Config(platform domain.Platform) *driven.ProviderConfig {
	r.mu.RLock()
	defer r.mu.RUnlock()
	cfg, ok := r.configs[platform]
	if !ok {
		return nil
	}
	return &cfg
}
