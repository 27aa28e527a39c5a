package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/bookwell/bookwell/internal/config"
	"github.com/bookwell/bookwell/internal/service"

	"github.com/imroc/req/v3"
)

// NewCalendarOAuthClient returns an OAuth client that performs
// refresh_token grants against the token endpoints configured per provider.
func NewCalendarOAuthClient(cfg *config.Config) service.CalendarOAuthClient {
	return &calendarOAuthClient{
		providers:     cfg.Providers,
		clientFactory: newOAuthHTTPClient,
	}
}

type calendarOAuthClient struct {
	providers     map[string]config.ProviderConfig
	clientFactory func(proxyURL string) *req.Client
}

func (c *calendarOAuthClient) RefreshToken(ctx context.Context, provider service.ProviderKind, refreshToken string) (*service.TokenGrant, error) {
	pc, ok := c.providers[string(provider)]
	if !ok {
		return nil, fmt.Errorf("provider %q is not configured", provider)
	}
	if strings.TrimSpace(refreshToken) == "" {
		return nil, fmt.Errorf("refresh token is empty")
	}

	client := c.clientFactory(pc.ProxyURL)

	form := map[string]string{
		"grant_type":    "refresh_token",
		"refresh_token": refreshToken,
		"client_id":     pc.ClientID,
	}
	if pc.ClientSecret != "" {
		form["client_secret"] = pc.ClientSecret
	}

	var grant service.TokenGrant

	resp, err := client.R().
		SetContext(ctx).
		SetHeader("Accept", "application/json").
		SetFormData(form).
		SetSuccessResult(&grant).
		Post(pc.TokenURL)

	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	if !resp.IsSuccessState() {
		return nil, fmt.Errorf("token refresh failed: status %d, body: %s", resp.StatusCode, resp.String())
	}
	if grant.AccessToken == "" {
		return nil, fmt.Errorf("no access_token in response")
	}

	return &grant, nil
}

func newOAuthHTTPClient(proxyURL string) *req.Client {
	client := req.C().
		SetTimeout(60 * time.Second).
		SetCookieJar(nil)

	if strings.TrimSpace(proxyURL) != "" {
		client.SetProxyURL(strings.TrimSpace(proxyURL))
	}

	return client
}
