// Package ctxkey defines type-safe keys for context.Value.
package ctxkey

// Key avoids the built-in string type for context keys (staticcheck SA1029).
type Key string

const (
	// RequestID is the server-generated or propagated request ID.
	RequestID Key = "ctx_request_id"

	// Provider is the calendar provider a request resolved to, used for
	// unified request log fields.
	Provider Key = "ctx_provider"

	// IntegrationID is the integration a request resolved to.
	IntegrationID Key = "ctx_integration_id"
)
