//go:build integration

package repository

import (
	"context"
	"testing"
	"time"

	"github.com/bookwell/bookwell/internal/service"

	"github.com/stretchr/testify/require"
)

func TestCredentialStore_PutGetRoundTrip(t *testing.T) {
	store := NewCredentialStore(testRedis(t))
	ctx := context.Background()

	expiresAt := time.Now().Add(time.Hour).Truncate(time.Second)
	cred := &service.CalendarCredential{
		Provider:      service.ProviderGoogleCalendar,
		IntegrationID: 42,
		AccessToken:   "access-42",
		RefreshToken:  "refresh-42",
		Scope:         "calendar.events",
		ExpiresAt:     &expiresAt,
		UpdatedAt:     time.Now().Truncate(time.Second),
	}
	require.NoError(t, store.PutCredential(ctx, cred))

	got, err := store.GetCredential(ctx, cred.Ref())
	require.NoError(t, err)
	require.Equal(t, cred.AccessToken, got.AccessToken)
	require.Equal(t, cred.RefreshToken, got.RefreshToken)
	require.Equal(t, cred.Scope, got.Scope)
	require.NotNil(t, got.ExpiresAt)
	require.True(t, expiresAt.Equal(*got.ExpiresAt))
}

func TestCredentialStore_GetMissingReturnsNotFound(t *testing.T) {
	store := NewCredentialStore(testRedis(t))

	_, err := store.GetCredential(context.Background(), service.IntegrationRef{
		Provider: service.ProviderZoom,
		ID:       999,
	})
	require.ErrorIs(t, err, service.ErrCredentialNotFound)
}

func TestCredentialStore_PutRejectsUnidentified(t *testing.T) {
	store := NewCredentialStore(testRedis(t))

	err := store.PutCredential(context.Background(), &service.CalendarCredential{
		Provider:    service.ProviderGoogleCalendar,
		AccessToken: "access",
	})
	require.Error(t, err)
}

func TestCredentialStore_ListExpiringOrdersByExpiry(t *testing.T) {
	store := NewCredentialStore(testRedis(t))
	ctx := context.Background()

	put := func(id int64, expiresIn time.Duration) {
		expiresAt := time.Now().Add(expiresIn)
		require.NoError(t, store.PutCredential(ctx, &service.CalendarCredential{
			Provider:      service.ProviderGoogleCalendar,
			IntegrationID: id,
			AccessToken:   "access",
			RefreshToken:  "refresh",
			ExpiresAt:     &expiresAt,
		}))
	}
	put(1, 10*time.Minute)
	put(2, time.Minute)
	put(3, 2*time.Hour)

	refs, err := store.ListExpiring(ctx, 30*time.Minute, 10)
	require.NoError(t, err)
	require.Len(t, refs, 2)
	require.EqualValues(t, 2, refs[0].ID, "soonest expiry first")
	require.EqualValues(t, 1, refs[1].ID)
}

func TestCredentialStore_ListExpiringHonorsLimit(t *testing.T) {
	store := NewCredentialStore(testRedis(t))
	ctx := context.Background()

	for id := int64(1); id <= 5; id++ {
		expiresAt := time.Now().Add(time.Duration(id) * time.Minute)
		require.NoError(t, store.PutCredential(ctx, &service.CalendarCredential{
			Provider:      service.ProviderOutlookCalendar,
			IntegrationID: id,
			AccessToken:   "access",
			RefreshToken:  "refresh",
			ExpiresAt:     &expiresAt,
		}))
	}

	refs, err := store.ListExpiring(ctx, time.Hour, 2)
	require.NoError(t, err)
	require.Len(t, refs, 2)
}

func TestCredentialStore_NonExpiringTokenLeavesIndex(t *testing.T) {
	store := NewCredentialStore(testRedis(t))
	ctx := context.Background()

	expiresAt := time.Now().Add(time.Minute)
	cred := &service.CalendarCredential{
		Provider:      service.ProviderAppleCalendar,
		IntegrationID: 7,
		AccessToken:   "access",
		RefreshToken:  "refresh",
		ExpiresAt:     &expiresAt,
	}
	require.NoError(t, store.PutCredential(ctx, cred))

	refs, err := store.ListExpiring(ctx, time.Hour, 10)
	require.NoError(t, err)
	require.Len(t, refs, 1)

	// Provider stopped issuing an expiry: the record drops out of the sweep.
	cred.ExpiresAt = nil
	require.NoError(t, store.PutCredential(ctx, cred))

	refs, err = store.ListExpiring(ctx, time.Hour, 10)
	require.NoError(t, err)
	require.Empty(t, refs)
}
