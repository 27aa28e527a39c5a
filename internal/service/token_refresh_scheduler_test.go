package service

import (
	"context"
	"testing"
	"time"

	"github.com/bookwell/bookwell/internal/config"

	"github.com/stretchr/testify/require"
)

func newSweepConfig() *config.Config {
	return &config.Config{
		LockManager: config.LockManagerConfig{TTL: 90 * time.Second},
		TokenRefresh: config.TokenRefreshConfig{
			Enabled:             true,
			CheckInterval:       time.Minute,
			RefreshBeforeExpiry: 5 * time.Minute,
			BatchLimit:          100,
			Workers:             4,
		},
	}
}

func TestSweepOnceRefreshesExpiringCredentials(t *testing.T) {
	store := newInMemoryCredentialStore()
	client := &fakeOAuthClient{}
	coordinator := newTestCoordinator(t, store, client)
	scheduler := NewTokenRefreshScheduler(newSweepConfig(), coordinator, store)

	expiring := expiredCredential(1)
	soon := freshCredential(2)
	soonExpiry := time.Now().Add(2 * time.Minute)
	soon.ExpiresAt = &soonExpiry
	healthy := freshCredential(3)

	ctx := context.Background()
	require.NoError(t, store.PutCredential(ctx, expiring))
	require.NoError(t, store.PutCredential(ctx, soon))
	require.NoError(t, store.PutCredential(ctx, healthy))

	scheduler.SweepOnce(ctx)

	// Only the two credentials inside the refresh window are touched.
	require.EqualValues(t, 2, client.callCount())
	for _, id := range []int64{1, 2} {
		cred, err := store.GetCredential(ctx, IntegrationRef{Provider: ProviderGoogleCalendar, ID: id})
		require.NoError(t, err)
		require.False(t, cred.NeedsRefresh(time.Now(), 5*time.Minute))
	}
	untouched, err := store.GetCredential(ctx, healthy.Ref())
	require.NoError(t, err)
	require.Equal(t, "fresh-access", untouched.AccessToken)
}

func TestSweepOnceHonorsBatchLimit(t *testing.T) {
	store := newInMemoryCredentialStore()
	client := &fakeOAuthClient{}
	coordinator := newTestCoordinator(t, store, client)
	cfg := newSweepConfig()
	cfg.TokenRefresh.BatchLimit = 3
	scheduler := NewTokenRefreshScheduler(cfg, coordinator, store)

	ctx := context.Background()
	for id := int64(1); id <= 10; id++ {
		require.NoError(t, store.PutCredential(ctx, expiredCredential(id)))
	}

	scheduler.SweepOnce(ctx)
	require.EqualValues(t, 3, client.callCount())
}

func TestSchedulerDisabledDoesNotStart(t *testing.T) {
	cfg := newSweepConfig()
	cfg.TokenRefresh.Enabled = false
	scheduler := NewTokenRefreshScheduler(cfg, nil, nil)

	scheduler.Start()
	require.Nil(t, scheduler.cron)

	// Stop without a started cron must not panic.
	scheduler.Stop()
}

func TestSchedulerStopIsIdempotent(t *testing.T) {
	store := newInMemoryCredentialStore()
	client := &fakeOAuthClient{}
	coordinator := newTestCoordinator(t, store, client)
	scheduler := NewTokenRefreshScheduler(newSweepConfig(), coordinator, store)

	scheduler.Start()
	require.NotNil(t, scheduler.cron)
	scheduler.Stop()
	scheduler.Stop()
}
