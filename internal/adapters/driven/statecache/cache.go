package statecache

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/custodia-labs/sociallink-core/internal/core/ports/driven"
)

// Ensure Cache implements the interface.
var _ driven.StateChannel = (*Cache)(nil)

const (
	// DefaultTTL is deliberately shorter than the cookie and database
	// channels; the cache is a fast path, not the source of truth.
	DefaultTTL = 10 * time.Minute

	// DefaultSweepInterval is how often stale entries are removed.
	DefaultSweepInterval = 5 * time.Minute
)

// Cache is an in-process OAuth state channel. It is owned by the
// service instance, not a package-level singleton, so tests can build
// and tear one down without cross-test leakage.
type Cache struct {
	ttl      time.Duration
	interval time.Duration
	logger   *slog.Logger

	mu      sync.Mutex
	entries map[string]entry

	runMu  sync.Mutex
	stopCh chan struct{}
	doneCh chan struct{}
}

type entry struct {
	state   driven.OAuthState
	savedAt time.Time
}

// New creates a cache with default TTL and sweep interval.
func New(logger *slog.Logger) *Cache {
	return NewWithTTL(DefaultTTL, DefaultSweepInterval, logger)
}

// NewWithTTL creates a cache with a custom TTL and sweep interval.
func NewWithTTL(ttl, sweepInterval time.Duration, logger *slog.Logger) *Cache {
	if logger == nil {
		logger = slog.Default()
	}
	return &Cache{
		ttl:      ttl,
		interval: sweepInterval,
		logger:   logger,
		entries:  make(map[string]entry),
	}
}

// Save stores the state under its own key.
func (c *Cache) Save(ctx context.Context, state *driven.OAuthState) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[state.State] = entry{state: *state, savedAt: time.Now()}
	return nil
}

// GetAndDelete removes and returns the entry. An entry older than the
// cache TTL is treated as absent even if the sweep has not run yet.
func (c *Cache) GetAndDelete(ctx context.Context, state string) (*driven.OAuthState, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[state]
	if !ok {
		return nil, nil
	}
	delete(c.entries, state)

	if time.Since(e.savedAt) > c.ttl || e.state.Expired() {
		return nil, nil
	}
	s := e.state
	return &s, nil
}

// Delete removes the entry without reading it.
func (c *Cache) Delete(ctx context.Context, state string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, state)
	return nil
}

// Len returns the number of live entries. Intended for tests.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Start launches the periodic sweep. A single timer drives it, so the
// sweep never overlaps itself. Calling Start twice is a no-op.
func (c *Cache) Start() {
	c.runMu.Lock()
	defer c.runMu.Unlock()
	if c.stopCh != nil {
		return
	}
	c.stopCh = make(chan struct{})
	c.doneCh = make(chan struct{})

	go func() {
		defer close(c.doneCh)
		ticker := time.NewTicker(c.interval)
		defer ticker.Stop()
		for {
			select {
			case <-c.stopCh:
				return
			case <-ticker.C:
				removed := c.Sweep()
				if removed > 0 {
					c.logger.Debug("swept expired oauth states", "removed", removed)
				}
			}
		}
	}()
}

// Stop halts the sweep and waits for it to finish.
func (c *Cache) Stop() {
	c.runMu.Lock()
	defer c.runMu.Unlock()
	if c.stopCh == nil {
		return
	}
	close(c.stopCh)
	<-c.doneCh
	c.stopCh = nil
	c.doneCh = nil
}

// Sweep removes stale entries and returns how many were dropped.
func (c *Cache) Sweep() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	removed := 0
	for k, e := range c.entries {
		if now.Sub(e.savedAt) > c.ttl || e.state.Expired() {
			delete(c.entries, k)
			removed++
		}
	}
	return removed
}
