package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/bookwell/bookwell/internal/config"
	"github.com/bookwell/bookwell/internal/pkg/reslock"
	"github.com/bookwell/bookwell/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

type refreshEnvelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Reason  string          `json:"reason"`
	Data    RefreshResponse `json:"data"`
}

type statusEnvelope struct {
	Code int                      `json:"code"`
	Data CredentialStatusResponse `json:"data"`
}

type stubCredentialStore struct {
	mu   sync.Mutex
	data map[service.IntegrationRef]*service.CalendarCredential
}

func newStubCredentialStore() *stubCredentialStore {
	return &stubCredentialStore{data: make(map[service.IntegrationRef]*service.CalendarCredential)}
}

func (s *stubCredentialStore) GetCredential(_ context.Context, ref service.IntegrationRef) (*service.CalendarCredential, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cred, ok := s.data[ref]
	if !ok {
		return nil, service.ErrCredentialNotFound
	}
	clone := *cred
	return &clone, nil
}

func (s *stubCredentialStore) PutCredential(_ context.Context, cred *service.CalendarCredential) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	clone := *cred
	s.data[cred.Ref()] = &clone
	return nil
}

func (s *stubCredentialStore) ListExpiring(_ context.Context, _ time.Duration, _ int) ([]service.IntegrationRef, error) {
	return nil, nil
}

type stubOAuthClient struct {
	delay time.Duration
	err   error
}

func (c *stubOAuthClient) RefreshToken(ctx context.Context, _ service.ProviderKind, _ string) (*service.TokenGrant, error) {
	if c.delay > 0 {
		select {
		case <-time.After(c.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if c.err != nil {
		return nil, c.err
	}
	return &service.TokenGrant{
		AccessToken: "new-access",
		TokenType:   "Bearer",
		ExpiresIn:   3600,
	}, nil
}

func setupIntegrationRouter(t *testing.T, client service.CalendarOAuthClient) (*gin.Engine, *stubCredentialStore) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	locks, err := reslock.NewManager()
	require.NoError(t, err)
	t.Cleanup(locks.Stop)

	cfg := &config.Config{
		LockManager: config.LockManagerConfig{TTL: 90 * time.Second},
		TokenRefresh: config.TokenRefreshConfig{
			Enabled:             true,
			CheckInterval:       time.Minute,
			RefreshBeforeExpiry: 5 * time.Minute,
			BatchLimit:          100,
			Workers:             8,
		},
	}

	store := newStubCredentialStore()
	coordinator := service.NewTokenRefreshCoordinator(cfg, store, client, locks)
	h := NewIntegrationHandler(store, coordinator)

	router := gin.New()
	router.POST("/api/v1/integrations/:provider/:id/refresh", h.RefreshCredential)
	router.GET("/api/v1/integrations/:provider/:id/credential", h.GetCredentialStatus)

	return router, store
}

func seedCredential(t *testing.T, store *stubCredentialStore, id int64, expiresIn time.Duration) *service.CalendarCredential {
	t.Helper()
	expiresAt := time.Now().Add(expiresIn)
	cred := &service.CalendarCredential{
		Provider:      service.ProviderGoogleCalendar,
		IntegrationID: id,
		AccessToken:   "old-access",
		RefreshToken:  "secret-refresh",
		Scope:         "calendar.events",
		ExpiresAt:     &expiresAt,
	}
	require.NoError(t, store.PutCredential(context.Background(), cred))
	return cred
}

func TestRefreshCredentialExpiredReturnsRefreshed(t *testing.T) {
	router, store := setupIntegrationRouter(t, &stubOAuthClient{})
	seedCredential(t, store, 1, -time.Minute)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/integrations/google_calendar/1/refresh", nil)
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp refreshEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, 0, resp.Code)
	require.Equal(t, string(service.RefreshStatusRefreshed), resp.Data.Status)
	require.Equal(t, "google_calendar", resp.Data.Provider)
	require.NotNil(t, resp.Data.ExpiresAt)

	// Tokens must never appear in the HTTP body.
	require.NotContains(t, rec.Body.String(), "new-access")
	require.NotContains(t, rec.Body.String(), "secret-refresh")
}

func TestRefreshCredentialFreshReturnsSkipped(t *testing.T) {
	router, store := setupIntegrationRouter(t, &stubOAuthClient{})
	seedCredential(t, store, 2, time.Hour)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/integrations/google_calendar/2/refresh", nil)
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp refreshEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, string(service.RefreshStatusSkippedNotExpired), resp.Data.Status)
}

func TestRefreshCredentialConcurrentGets202(t *testing.T) {
	router, store := setupIntegrationRouter(t, &stubOAuthClient{delay: 300 * time.Millisecond})
	seedCredential(t, store, 3, -time.Minute)

	done := make(chan int, 1)
	go func() {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/api/v1/integrations/google_calendar/3/refresh", nil)
		router.ServeHTTP(rec, req)
		done <- rec.Code
	}()

	time.Sleep(50 * time.Millisecond)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/integrations/google_calendar/3/refresh", nil)
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusAccepted, rec.Code)

	var resp refreshEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, string(service.RefreshStatusInProgress), resp.Data.Status)

	require.Equal(t, http.StatusOK, <-done)
}

func TestRefreshCredentialProviderFailureReturns502(t *testing.T) {
	router, store := setupIntegrationRouter(t, &stubOAuthClient{err: errors.New("invalid_grant")})
	seedCredential(t, store, 4, -time.Minute)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/integrations/google_calendar/4/refresh", nil)
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestRefreshCredentialUnknownIntegrationReturns404(t *testing.T) {
	router, _ := setupIntegrationRouter(t, &stubOAuthClient{})

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/integrations/google_calendar/99/refresh", nil)
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRefreshCredentialRejectsBadID(t *testing.T) {
	router, _ := setupIntegrationRouter(t, &stubOAuthClient{})

	for _, id := range []string{"abc", "0", "-1"} {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/api/v1/integrations/google_calendar/"+id+"/refresh", nil)
		router.ServeHTTP(rec, req)
		require.Equal(t, http.StatusBadRequest, rec.Code, "id=%s", id)
	}
}

func TestGetCredentialStatusReportsExpiry(t *testing.T) {
	router, store := setupIntegrationRouter(t, &stubOAuthClient{})
	seedCredential(t, store, 5, -time.Minute)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/integrations/google_calendar/5/credential", nil)
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp statusEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.True(t, resp.Data.Expired)
	require.Equal(t, "calendar.events", resp.Data.Scope)
	require.NotContains(t, rec.Body.String(), "old-access")
}
