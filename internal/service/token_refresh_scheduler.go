package service

import (
	"context"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/bookwell/bookwell/internal/config"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"golang.org/x/sync/errgroup"
)

const tokenRefreshSweepTimeout = 10 * time.Minute

// TokenRefreshScheduler proactively refreshes credentials shortly before
// they expire, so interactive requests rarely hit the expired path. Every
// refresh still goes through the coordinator, so sweeps and request-driven
// refreshes contend on the same per-integration lock.
type TokenRefreshScheduler struct {
	coordinator *TokenRefreshCoordinator
	store       CredentialStore
	cfg         *config.Config

	instanceID string

	cron *cron.Cron

	// sweepMu prevents overlapping sweeps when one runs longer than the
	// check interval.
	sweepMu sync.Mutex

	startOnce sync.Once
	stopOnce  sync.Once
}

func NewTokenRefreshScheduler(cfg *config.Config, coordinator *TokenRefreshCoordinator, store CredentialStore) *TokenRefreshScheduler {
	return &TokenRefreshScheduler{
		coordinator: coordinator,
		store:       store,
		cfg:         cfg,
		instanceID:  uuid.NewString(),
	}
}

func (s *TokenRefreshScheduler) Start() {
	if s == nil {
		return
	}
	if s.cfg == nil || !s.cfg.TokenRefresh.Enabled {
		log.Printf("[TokenRefresh] not started (disabled)")
		return
	}
	if s.coordinator == nil || s.store == nil {
		log.Printf("[TokenRefresh] not started (missing deps)")
		return
	}

	s.startOnce.Do(func() {
		loc := time.Local
		if tz := strings.TrimSpace(s.cfg.Timezone); tz != "" {
			if parsed, err := time.LoadLocation(tz); err == nil && parsed != nil {
				loc = parsed
			}
		}

		interval := s.cfg.TokenRefresh.CheckInterval
		c := cron.New(cron.WithLocation(loc))
		_, err := c.AddFunc("@every "+interval.String(), func() { s.runSweep() })
		if err != nil {
			log.Printf("[TokenRefresh] not started (invalid interval=%s): %v", interval, err)
			return
		}
		s.cron = c
		s.cron.Start()
		log.Printf("[TokenRefresh] started (interval=%s instance=%s)", interval, s.instanceID)
	})
}

// Stop stops the cron and waits for an in-flight sweep to finish.
func (s *TokenRefreshScheduler) Stop() {
	if s == nil {
		return
	}
	s.stopOnce.Do(func() {
		if s.cron != nil {
			ctx := s.cron.Stop()
			select {
			case <-ctx.Done():
			case <-time.After(5 * time.Second):
				log.Printf("[TokenRefresh] cron stop timed out")
			}
		}
		// Block until an in-flight sweep drains.
		s.sweepMu.Lock()
		defer s.sweepMu.Unlock()
	})
}

func (s *TokenRefreshScheduler) runSweep() {
	if !s.sweepMu.TryLock() {
		// Previous sweep still running; skip this tick.
		return
	}
	defer s.sweepMu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), tokenRefreshSweepTimeout)
	defer cancel()

	s.SweepOnce(ctx)
}

// SweepOnce runs one refresh pass over credentials that expire within the
// configured window. Outcomes like in_progress and skipped_not_expired are
// normal under concurrency and only logged at debug granularity.
func (s *TokenRefreshScheduler) SweepOnce(ctx context.Context) {
	refs, err := s.store.ListExpiring(ctx, s.cfg.TokenRefresh.RefreshBeforeExpiry, s.cfg.TokenRefresh.BatchLimit)
	if err != nil {
		log.Printf("[TokenRefresh] list expiring failed: %v", err)
		return
	}
	if len(refs) == 0 {
		return
	}

	var refreshed, skipped, failed int64
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.TokenRefresh.Workers)
	for _, ref := range refs {
		ref := ref
		g.Go(func() error {
			cred, err := s.store.GetCredential(gctx, ref)
			if err != nil {
				log.Printf("[TokenRefresh] load credential %s/%d failed: %v", ref.Provider, ref.ID, err)
				return nil
			}

			outcome, err := s.coordinator.RefreshIfNeeded(gctx, cred)
			if err != nil {
				log.Printf("[TokenRefresh] refresh %s/%d failed: %v", ref.Provider, ref.ID, err)
				return nil
			}

			mu.Lock()
			switch outcome.Status {
			case RefreshStatusRefreshed:
				refreshed++
			case RefreshStatusFailed:
				failed++
				log.Printf("[TokenRefresh] provider refresh %s/%d failed: %v", ref.Provider, ref.ID, outcome.Err)
			default:
				skipped++
			}
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	log.Printf("[TokenRefresh] sweep done (candidates=%d refreshed=%d skipped=%d failed=%d)",
		len(refs), refreshed, skipped, failed)
}
