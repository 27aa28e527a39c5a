package handler

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/bookwell/bookwell/internal/pkg/ctxkey"
	"github.com/bookwell/bookwell/internal/pkg/response"
	"github.com/bookwell/bookwell/internal/service"

	"github.com/gin-gonic/gin"
)

// IntegrationHandler handles calendar integration credential requests.
type IntegrationHandler struct {
	store       service.CredentialStore
	coordinator *service.TokenRefreshCoordinator
}

// NewIntegrationHandler creates a new IntegrationHandler
func NewIntegrationHandler(store service.CredentialStore, coordinator *service.TokenRefreshCoordinator) *IntegrationHandler {
	return &IntegrationHandler{
		store:       store,
		coordinator: coordinator,
	}
}

// RefreshResponse describes the outcome of a refresh request. Tokens are
// never returned over HTTP.
type RefreshResponse struct {
	Status        string     `json:"status"`
	Provider      string     `json:"provider"`
	IntegrationID int64      `json:"integration_id"`
	ExpiresAt     *time.Time `json:"expires_at,omitempty"`
	UpdatedAt     *time.Time `json:"updated_at,omitempty"`
}

// resolveRef parses the provider and integration ID route params and tags
// the request context so the access log can attribute the request. Writes the
// error response itself when the params are invalid.
func resolveRef(c *gin.Context) (service.IntegrationRef, bool) {
	provider := service.ProviderKind(c.Param("provider"))
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		response.BadRequest(c, "Invalid integration ID")
		return service.IntegrationRef{}, false
	}

	ref := service.IntegrationRef{Provider: provider, ID: id}
	if !ref.Identified() {
		response.BadRequest(c, "Invalid provider")
		return service.IntegrationRef{}, false
	}

	ctx := context.WithValue(c.Request.Context(), ctxkey.Provider, string(provider))
	ctx = context.WithValue(ctx, ctxkey.IntegrationID, id)
	c.Request = c.Request.WithContext(ctx)
	return ref, true
}

// RefreshCredential forces a refresh check for one integration's OAuth
// credential. Concurrent requests for the same integration coalesce onto a
// single provider call; losers get 202 and should retry shortly.
func (h *IntegrationHandler) RefreshCredential(c *gin.Context) {
	ref, ok := resolveRef(c)
	if !ok {
		return
	}

	cred, err := h.store.GetCredential(c.Request.Context(), ref)
	if err != nil {
		response.ErrorFrom(c, err)
		return
	}

	outcome, err := h.coordinator.RefreshIfNeeded(c.Request.Context(), cred)
	if err != nil {
		response.ErrorFrom(c, err)
		return
	}

	switch outcome.Status {
	case service.RefreshStatusInProgress:
		response.Accepted(c, RefreshResponse{
			Status:        string(outcome.Status),
			Provider:      string(ref.Provider),
			IntegrationID: ref.ID,
		})
	case service.RefreshStatusFailed:
		response.Error(c, http.StatusBadGateway, "Provider refresh failed: "+outcome.Err.Error())
	default:
		body := RefreshResponse{
			Status:        string(outcome.Status),
			Provider:      string(ref.Provider),
			IntegrationID: ref.ID,
			ExpiresAt:     outcome.Credential.ExpiresAt,
		}
		if !outcome.Credential.UpdatedAt.IsZero() {
			updatedAt := outcome.Credential.UpdatedAt
			body.UpdatedAt = &updatedAt
		}
		response.Success(c, body)
	}
}

// CredentialStatusResponse is the read-only view of one credential.
type CredentialStatusResponse struct {
	Provider      string     `json:"provider"`
	IntegrationID int64      `json:"integration_id"`
	Scope         string     `json:"scope,omitempty"`
	ExpiresAt     *time.Time `json:"expires_at,omitempty"`
	UpdatedAt     *time.Time `json:"updated_at,omitempty"`
	Expired       bool       `json:"expired"`
}

// GetCredentialStatus reports credential expiry without touching the
// provider.
func (h *IntegrationHandler) GetCredentialStatus(c *gin.Context) {
	ref, ok := resolveRef(c)
	if !ok {
		return
	}

	cred, err := h.store.GetCredential(c.Request.Context(), ref)
	if err != nil {
		response.ErrorFrom(c, err)
		return
	}

	body := CredentialStatusResponse{
		Provider:      string(cred.Provider),
		IntegrationID: cred.IntegrationID,
		Scope:         cred.Scope,
		ExpiresAt:     cred.ExpiresAt,
		Expired:       cred.Expired(time.Now()),
	}
	if !cred.UpdatedAt.IsZero() {
		updatedAt := cred.UpdatedAt
		body.UpdatedAt = &updatedAt
	}
	response.Success(c, body)
}
