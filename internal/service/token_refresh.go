package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/bookwell/bookwell/internal/config"
	infraerrors "github.com/bookwell/bookwell/internal/pkg/errors"
	"github.com/bookwell/bookwell/internal/pkg/reslock"
)

var (
	ErrCredentialRequired     = infraerrors.BadRequest("CREDENTIAL_REQUIRED", "credential is required")
	ErrCredentialNotFound     = infraerrors.NotFound("CREDENTIAL_NOT_FOUND", "credential not found")
	ErrCredentialStoreUnavail = infraerrors.ServiceUnavailable("CREDENTIAL_STORE_UNAVAILABLE", "credential store unavailable")
)

// CredentialStore is the persistence collaborator. It owns the authoritative
// credential record per integration; the coordinator always re-reads it after
// acquiring the lock instead of trusting a caller-supplied snapshot.
type CredentialStore interface {
	GetCredential(ctx context.Context, ref IntegrationRef) (*CalendarCredential, error)
	PutCredential(ctx context.Context, cred *CalendarCredential) error
	// ListExpiring returns refs whose credentials expire within the window,
	// soonest first, capped at limit.
	ListExpiring(ctx context.Context, within time.Duration, limit int) ([]IntegrationRef, error)
}

// CalendarOAuthClient performs the provider token exchange.
type CalendarOAuthClient interface {
	RefreshToken(ctx context.Context, provider ProviderKind, refreshToken string) (*TokenGrant, error)
}

// TokenGrant is the provider's answer to a refresh-token grant.
type TokenGrant struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
	RefreshToken string `json:"refresh_token,omitempty"`
	Scope        string `json:"scope,omitempty"`
}

type RefreshStatus string

const (
	// RefreshStatusRefreshed means this caller performed the provider call
	// and persisted the new credential.
	RefreshStatusRefreshed RefreshStatus = "refreshed"
	// RefreshStatusSkippedNotExpired means another caller refreshed the
	// credential while this one was acquiring the lock.
	RefreshStatusSkippedNotExpired RefreshStatus = "skipped_not_expired"
	// RefreshStatusInProgress means another caller holds the refresh lock;
	// this caller should retry or read current state later.
	RefreshStatusInProgress RefreshStatus = "in_progress"
	// RefreshStatusFailed means the provider rejected the refresh. The
	// cause is in Err; retry policy belongs to the caller.
	RefreshStatusFailed RefreshStatus = "failed"
)

// RefreshOutcome is the result of one coordinated refresh attempt.
type RefreshOutcome struct {
	Status     RefreshStatus
	Credential *CalendarCredential
	Err        error
}

// TokenRefreshCoordinator ensures that when many concurrent callers discover
// an expired access token, exactly one performs the network refresh.
type TokenRefreshCoordinator struct {
	store  CredentialStore
	client CalendarOAuthClient
	locks  *reslock.Manager

	lockTTL       time.Duration
	refreshBefore time.Duration
}

func NewTokenRefreshCoordinator(cfg *config.Config, store CredentialStore, client CalendarOAuthClient, locks *reslock.Manager) *TokenRefreshCoordinator {
	lockTTL := cfg.LockManager.TTL
	if lockTTL <= 0 {
		lockTTL = reslock.DefaultTTL
	}
	return &TokenRefreshCoordinator{
		store:         store,
		client:        client,
		locks:         locks,
		lockTTL:       lockTTL,
		refreshBefore: cfg.TokenRefresh.RefreshBeforeExpiry,
	}
}

// RefreshIfNeeded refreshes cred's integration unless it is already fresh.
//
// Identified integrations go through the lock table: the winner re-reads the
// authoritative record, refreshes only if it is still due, and persists the
// result; losers get in_progress immediately. Unidentified (unsaved)
// credentials cannot be coordinated and are refreshed unconditionally.
//
// Provider failures are reported as a failed outcome, not an error; the
// returned error is reserved for store/contract problems.
func (c *TokenRefreshCoordinator) RefreshIfNeeded(ctx context.Context, cred *CalendarCredential) (*RefreshOutcome, error) {
	if cred == nil {
		return nil, ErrCredentialRequired
	}

	ref := cred.Ref()
	if !ref.Identified() {
		return c.refreshUncoordinated(ctx, cred), nil
	}

	var outcome *RefreshOutcome
	err := c.locks.WithLock(ctx, ref.LockKey(), c.lockTTL, func(ctx context.Context) error {
		now := time.Now()

		// Double-check against the store: the caller's snapshot may be
		// stale by the time the lock is granted.
		current, err := c.store.GetCredential(ctx, ref)
		if err != nil {
			if errors.Is(err, ErrCredentialNotFound) {
				return err
			}
			return ErrCredentialStoreUnavail.WithCause(err)
		}
		if !current.NeedsRefresh(now, c.refreshBefore) {
			outcome = &RefreshOutcome{Status: RefreshStatusSkippedNotExpired, Credential: current}
			return nil
		}

		grant, err := c.client.RefreshToken(ctx, ref.Provider, current.RefreshToken)
		if err != nil {
			slog.Warn("token refresh failed",
				"provider", string(ref.Provider),
				"integration_id", ref.ID,
				"err", err,
			)
			outcome = &RefreshOutcome{Status: RefreshStatusFailed, Err: err}
			return nil
		}

		updated := current.applyGrant(grant, time.Now())
		if err := c.store.PutCredential(ctx, updated); err != nil {
			return ErrCredentialStoreUnavail.WithCause(err)
		}

		slog.Info("token refreshed",
			"provider", string(ref.Provider),
			"integration_id", ref.ID,
			"expires_at", updated.ExpiresAt,
		)
		outcome = &RefreshOutcome{Status: RefreshStatusRefreshed, Credential: updated}
		return nil
	})
	if err != nil {
		if errors.Is(err, reslock.ErrLockHeld) {
			return &RefreshOutcome{Status: RefreshStatusInProgress}, nil
		}
		return nil, err
	}
	return outcome, nil
}

// refreshUncoordinated performs the provider call without locking or
// persistence. The caller owns the resulting credential.
func (c *TokenRefreshCoordinator) refreshUncoordinated(ctx context.Context, cred *CalendarCredential) *RefreshOutcome {
	grant, err := c.client.RefreshToken(ctx, cred.Provider, cred.RefreshToken)
	if err != nil {
		return &RefreshOutcome{Status: RefreshStatusFailed, Err: err}
	}
	return &RefreshOutcome{
		Status:     RefreshStatusRefreshed,
		Credential: cred.applyGrant(grant, time.Now()),
	}
}
