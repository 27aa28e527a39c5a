// Package service provides business logic and domain services for the
// application.
package service

import (
	"strconv"
	"time"

	"github.com/bookwell/bookwell/internal/pkg/reslock"
)

// ProviderKind identifies an external calendar/conferencing provider.
type ProviderKind string

const (
	ProviderGoogleCalendar  ProviderKind = "google_calendar"
	ProviderOutlookCalendar ProviderKind = "outlook_calendar"
	ProviderAppleCalendar   ProviderKind = "apple_calendar"
	ProviderZoom            ProviderKind = "zoom"
)

// IntegrationRef identifies one connected calendar integration. ID is zero
// for ad-hoc credentials that were never persisted.
type IntegrationRef struct {
	Provider ProviderKind
	ID       int64
}

// Identified reports whether the ref is stable enough to coordinate on.
// Unsaved records cannot be locked or re-read, so refresh for them is
// deliberately uncoordinated.
func (r IntegrationRef) Identified() bool {
	return r.Provider != "" && r.ID > 0
}

// LockKey maps the ref onto the resource lock table.
func (r IntegrationRef) LockKey() reslock.Key {
	return reslock.Key{
		Namespace: string(r.Provider),
		Resource:  strconv.FormatInt(r.ID, 10),
	}
}

// CalendarCredential is the OAuth credential for one integration.
type CalendarCredential struct {
	Provider      ProviderKind
	IntegrationID int64
	AccessToken   string
	RefreshToken  string
	Scope         string
	// ExpiresAt nil means the provider issued a non-expiring token.
	ExpiresAt *time.Time
	UpdatedAt time.Time
}

func (c *CalendarCredential) Ref() IntegrationRef {
	return IntegrationRef{Provider: c.Provider, ID: c.IntegrationID}
}

// Expired reports whether the access token is past its expiry.
func (c *CalendarCredential) Expired(now time.Time) bool {
	return c.ExpiresAt != nil && !now.Before(*c.ExpiresAt)
}

// NeedsRefresh reports whether the credential should be refreshed now,
// counting tokens that expire within the early window as due.
func (c *CalendarCredential) NeedsRefresh(now time.Time, early time.Duration) bool {
	if c.ExpiresAt == nil || c.RefreshToken == "" {
		return false
	}
	return !now.Before(c.ExpiresAt.Add(-early))
}

// applyGrant builds the successor credential from a provider token grant.
// Providers may omit the refresh token on rotation-less grants; the previous
// one stays valid then.
func (c *CalendarCredential) applyGrant(grant *TokenGrant, now time.Time) *CalendarCredential {
	out := *c
	out.AccessToken = grant.AccessToken
	if grant.RefreshToken != "" {
		out.RefreshToken = grant.RefreshToken
	}
	if grant.Scope != "" {
		out.Scope = grant.Scope
	}
	if grant.ExpiresIn > 0 {
		expiresAt := now.Add(time.Duration(grant.ExpiresIn) * time.Second)
		out.ExpiresAt = &expiresAt
	} else {
		out.ExpiresAt = nil
	}
	out.UpdatedAt = now
	return &out
}
