package repository

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/bookwell/bookwell/internal/config"
	"github.com/bookwell/bookwell/internal/service"

	"github.com/stretchr/testify/require"
)

func newOAuthClientForTest(tokenURL string) service.CalendarOAuthClient {
	cfg := &config.Config{
		Providers: map[string]config.ProviderConfig{
			string(service.ProviderGoogleCalendar): {
				TokenURL:     tokenURL,
				ClientID:     "client-id",
				ClientSecret: "client-secret",
			},
		},
	}
	return NewCalendarOAuthClient(cfg)
}

func TestRefreshTokenSendsRefreshGrant(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		require.Equal(t, "refresh_token", r.PostForm.Get("grant_type"))
		require.Equal(t, "old-refresh", r.PostForm.Get("refresh_token"))
		require.Equal(t, "client-id", r.PostForm.Get("client_id"))
		require.Equal(t, "client-secret", r.PostForm.Get("client_secret"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"new-access","token_type":"Bearer","expires_in":3600,"refresh_token":"new-refresh","scope":"calendar.events"}`))
	}))
	defer srv.Close()

	client := newOAuthClientForTest(srv.URL)

	grant, err := client.RefreshToken(context.Background(), service.ProviderGoogleCalendar, "old-refresh")
	require.NoError(t, err)
	require.Equal(t, "new-access", grant.AccessToken)
	require.Equal(t, "new-refresh", grant.RefreshToken)
	require.EqualValues(t, 3600, grant.ExpiresIn)
}

func TestRefreshTokenRejectsUnconfiguredProvider(t *testing.T) {
	client := newOAuthClientForTest("http://127.0.0.1:0")

	_, err := client.RefreshToken(context.Background(), service.ProviderZoom, "old-refresh")
	require.ErrorContains(t, err, "not configured")
}

func TestRefreshTokenRejectsEmptyRefreshToken(t *testing.T) {
	client := newOAuthClientForTest("http://127.0.0.1:0")

	_, err := client.RefreshToken(context.Background(), service.ProviderGoogleCalendar, "   ")
	require.ErrorContains(t, err, "refresh token is empty")
}

func TestRefreshTokenSurfacesProviderError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"invalid_grant"}`))
	}))
	defer srv.Close()

	client := newOAuthClientForTest(srv.URL)

	_, err := client.RefreshToken(context.Background(), service.ProviderGoogleCalendar, "revoked")
	require.ErrorContains(t, err, "status 400")
	require.ErrorContains(t, err, "invalid_grant")
}

func TestRefreshTokenRejectsGrantWithoutAccessToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"token_type":"Bearer"}`))
	}))
	defer srv.Close()

	client := newOAuthClientForTest(srv.URL)

	_, err := client.RefreshToken(context.Background(), service.ProviderGoogleCalendar, "old-refresh")
	require.ErrorContains(t, err, "no access_token")
}
