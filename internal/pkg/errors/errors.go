// Package errors provides the application error type shared by services and
// handlers. Errors carry an HTTP status code, a stable machine-readable
// reason, and optional metadata for the caller.
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

const (
	// UnknownCode is reported for errors that did not originate from this
	// package.
	UnknownCode = http.StatusInternalServerError
	// UnknownReason is reported for errors that did not originate from this
	// package.
	UnknownReason = "UNKNOWN"
)

// ApplicationError is the error type used across service boundaries.
type ApplicationError struct {
	Code     int               `json:"code"`
	Reason   string            `json:"reason"`
	Message  string            `json:"message"`
	Metadata map[string]string `json:"metadata,omitempty"`

	cause error
}

func (e *ApplicationError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("error: code = %d reason = %s message = %s cause = %v", e.Code, e.Reason, e.Message, e.cause)
	}
	return fmt.Sprintf("error: code = %d reason = %s message = %s", e.Code, e.Reason, e.Message)
}

// Unwrap exposes the underlying cause to errors.Is / errors.As.
func (e *ApplicationError) Unwrap() error { return e.cause }

// Is matches on code and reason so sentinel errors survive WithCause /
// WithMetadata cloning.
func (e *ApplicationError) Is(err error) bool {
	target := new(ApplicationError)
	if !errors.As(err, &target) {
		return false
	}
	return target.Code == e.Code && target.Reason == e.Reason
}

// WithCause returns a copy carrying err as the underlying cause. The
// receiver is not modified, so package-level sentinels stay immutable.
func (e *ApplicationError) WithCause(err error) *ApplicationError {
	out := e.clone()
	out.cause = err
	return out
}

// WithMetadata returns a copy with md merged over existing metadata.
func (e *ApplicationError) WithMetadata(md map[string]string) *ApplicationError {
	out := e.clone()
	if out.Metadata == nil {
		out.Metadata = make(map[string]string, len(md))
	}
	for k, v := range md {
		out.Metadata[k] = v
	}
	return out
}

func (e *ApplicationError) clone() *ApplicationError {
	out := &ApplicationError{
		Code:    e.Code,
		Reason:  e.Reason,
		Message: e.Message,
		cause:   e.cause,
	}
	if len(e.Metadata) > 0 {
		out.Metadata = make(map[string]string, len(e.Metadata))
		for k, v := range e.Metadata {
			out.Metadata[k] = v
		}
	}
	return out
}

// New builds an ApplicationError with an arbitrary status code.
func New(code int, reason, message string) *ApplicationError {
	return &ApplicationError{Code: code, Reason: reason, Message: message}
}

func BadRequest(reason, message string) *ApplicationError {
	return New(http.StatusBadRequest, reason, message)
}

func Unauthorized(reason, message string) *ApplicationError {
	return New(http.StatusUnauthorized, reason, message)
}

func Forbidden(reason, message string) *ApplicationError {
	return New(http.StatusForbidden, reason, message)
}

func NotFound(reason, message string) *ApplicationError {
	return New(http.StatusNotFound, reason, message)
}

func Conflict(reason, message string) *ApplicationError {
	return New(http.StatusConflict, reason, message)
}

func TooManyRequests(reason, message string) *ApplicationError {
	return New(http.StatusTooManyRequests, reason, message)
}

func InternalServer(reason, message string) *ApplicationError {
	return New(http.StatusInternalServerError, reason, message)
}

func ServiceUnavailable(reason, message string) *ApplicationError {
	return New(http.StatusServiceUnavailable, reason, message)
}

// Code extracts the status code from any error. nil maps to 200.
func Code(err error) int {
	if err == nil {
		return http.StatusOK
	}
	return FromError(err).Code
}

// Reason extracts the reason from any error.
func Reason(err error) string {
	if err == nil {
		return ""
	}
	return FromError(err).Reason
}

// FromError converts any error into an *ApplicationError. Errors that do not
// wrap one are reported as UnknownCode/UnknownReason.
func FromError(err error) *ApplicationError {
	if err == nil {
		return nil
	}
	appErr := new(ApplicationError)
	if errors.As(err, &appErr) {
		return appErr
	}
	return New(UnknownCode, UnknownReason, err.Error())
}
