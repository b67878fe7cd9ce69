package worker

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/custodia-labs/sociallink-core/internal/core/ports/driven"
	"github.com/custodia-labs/sociallink-core/internal/core/ports/driving"
)

// Maintenance runs the periodic background jobs: refreshing tokens
// that are about to expire and sweeping abandoned OAuth state.
//
// For multi-worker deployments, configure a DistributedLock to prevent
// duplicate refresh sweeps across instances.
type Maintenance struct {
	tokens driving.TokenService
	states driven.OAuthStateStore
	lock   driven.DistributedLock
	logger *slog.Logger

	// Internal state
	mu       sync.RWMutex
	running  bool
	stopCh   chan struct{}
	doneCh   chan struct{}
	interval time.Duration

	// Lock configuration
	lockTTL      time.Duration
	lockRequired bool
}

// MaintenanceConfig holds configuration for the maintenance loop.
type MaintenanceConfig struct {
	Tokens       driving.TokenService
	States       driven.OAuthStateStore
	Lock         driven.DistributedLock // Optional: multi-instance coordination
	Logger       *slog.Logger
	PollInterval time.Duration // How often to run a sweep (default: 60s)
	LockTTL      time.Duration // TTL for the distributed lock (default: 120s)
	LockRequired bool          // If true, skip the cycle when lock cannot be acquired
}

// NewMaintenance creates the maintenance loop.
func NewMaintenance(cfg MaintenanceConfig) *Maintenance {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	interval := cfg.PollInterval
	if interval == 0 {
		interval = 60 * time.Second
	}

	lockTTL := cfg.LockTTL
	if lockTTL == 0 {
		lockTTL = 2 * interval
	}

	lockRequired := cfg.LockRequired
	if cfg.Lock != nil {
		lockRequired = true
	}

	return &Maintenance{
		tokens:       cfg.Tokens,
		states:       cfg.States,
		lock:         cfg.Lock,
		logger:       logger,
		interval:     interval,
		lockTTL:      lockTTL,
		lockRequired: lockRequired,
	}
}

// Start begins the maintenance loop.
// It runs until Stop is called or the context is cancelled.
func (m *Maintenance) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return nil
	}
	m.running = true
	m.stopCh = make(chan struct{})
	m.doneCh = make(chan struct{})
	m.mu.Unlock()

	m.logger.Info("maintenance loop starting", "poll_interval", m.interval)

	go m.run(ctx)

	return nil
}

// Stop gracefully stops the maintenance loop.
func (m *Maintenance) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	close(m.stopCh)
	m.mu.Unlock()

	<-m.doneCh

	m.mu.Lock()
	m.running = false
	m.mu.Unlock()

	m.logger.Info("maintenance loop stopped")
}

// run is the main maintenance loop.
func (m *Maintenance) run(ctx context.Context) {
	defer close(m.doneCh)

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	// Run immediately on start
	m.sweep(ctx)

	for {
		select {
		case <-ctx.Done():
			m.logger.Info("maintenance context cancelled")
			return
		case <-m.stopCh:
			return
		case <-ticker.C:
			m.sweep(ctx)
		}
	}
}

// sweep runs one maintenance pass. If a distributed lock is configured,
// it acquires the lock first so only one instance sweeps per cycle.
func (m *Maintenance) sweep(ctx context.Context) {
	if m.lock != nil {
		acquired, err := m.lock.Acquire(ctx, "maintenance", m.lockTTL)
		if err != nil {
			m.logger.Warn("failed to acquire maintenance lock", "error", err)
			if m.lockRequired {
				return // Skip this cycle
			}
		} else if !acquired {
			m.logger.Debug("maintenance lock held by another instance, skipping cycle")
			return
		} else {
			defer func() {
				if err := m.lock.Release(ctx, "maintenance"); err != nil {
					m.logger.Warn("failed to release maintenance lock", "error", err)
				}
			}()
		}
	}

	report, err := m.tokens.RefreshAllExpiringTokens(ctx)
	if err != nil {
		m.logger.Error("token refresh sweep failed", "error", err)
	} else if report.Total > 0 {
		m.logger.Info("token refresh sweep complete",
			"total", report.Total,
			"refreshed", report.Refreshed,
			"failed", report.Failed,
		)
	}

	removed, err := m.states.Cleanup(ctx)
	if err != nil {
		m.logger.Error("oauth state cleanup failed", "error", err)
	} else if removed > 0 {
		m.logger.Info("expired oauth states removed", "count", removed)
	}
}
