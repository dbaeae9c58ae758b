package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/lockbridge/tokenvault/internal/token/store"
	"github.com/lockbridge/tokenvault/pkg/jwtx"
)

// HousekeepingService periodically evicts expired revocation entries and
// purges key generations whose grace window has passed, from both the
// keyring and the store.
type HousekeepingService struct {
	Store    store.Store
	Keyring  *jwtx.Keyring
	Logger   *slog.Logger
	Interval time.Duration

	// Now is the clock source, time.Now when nil.
	Now func() time.Time

	stopCh chan struct{}
	doneCh chan struct{}
}

// NewHousekeepingService creates a housekeeping service with the given
// interval; 0 or negative defaults to 1 hour.
func NewHousekeepingService(st store.Store, keyring *jwtx.Keyring, logger *slog.Logger, interval time.Duration) *HousekeepingService {
	if interval <= 0 {
		interval = 1 * time.Hour
	}

	return &HousekeepingService{
		Store:    st,
		Keyring:  keyring,
		Logger:   logger,
		Interval: interval,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// Start begins the background worker. Non-blocking; call Stop to shut down.
func (s *HousekeepingService) Start() {
	go s.run()
	s.Logger.Info("housekeeping service started", "interval", s.Interval)
}

// Stop shuts down the background worker, blocking until any in-progress
// sweep finishes.
func (s *HousekeepingService) Stop() {
	close(s.stopCh)
	<-s.doneCh
	s.Logger.Info("housekeeping service stopped")
}

func (s *HousekeepingService) run() {
	defer close(s.doneCh)

	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()

	// Sweep once at startup.
	s.Sweep(context.Background())

	for {
		select {
		case <-ticker.C:
			s.Sweep(context.Background())
		case <-s.stopCh:
			return
		}
	}
}

// Sweep performs one housekeeping pass. Failures are logged and do not stop
// the remaining steps; eviction here is storage reclamation, never a
// correctness requirement.
func (s *HousekeepingService) Sweep(ctx context.Context) {
	now := s.now()

	if err := s.Store.Revocations().DeleteExpired(ctx, now); err != nil {
		s.Logger.Error("failed to evict expired revocations", "error", err)
	} else {
		s.Logger.Debug("evicted expired revocations")
	}

	purged := s.Keyring.PurgeExpired(now)
	for _, id := range purged {
		if err := s.Store.KeyGenerations().Delete(ctx, id); err != nil {
			s.Logger.Error("failed to delete purged key generation", "generation", id, "error", err)
		}
	}
	if len(purged) > 0 {
		s.Logger.Info("purged expired key generations", "count", len(purged))
	}
}

func (s *HousekeepingService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}
