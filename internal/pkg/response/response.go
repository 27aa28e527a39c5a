// Package response provides unified HTTP response helpers for gin handlers.
package response

import (
	"net/http"

	infraerrors "github.com/bookwell/bookwell/internal/pkg/errors"

	"github.com/gin-gonic/gin"
)

// Response is the envelope for all JSON responses. Code is 0 on success
// and the HTTP status code on errors.
type Response struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Reason  string `json:"reason,omitempty"`
	Data    any    `json:"data,omitempty"`
}

func Success(c *gin.Context, data any) {
	c.JSON(http.StatusOK, Response{
		Code:    0,
		Message: "success",
		Data:    data,
	})
}

// Accepted reports that the request was observed but the work is being done
// elsewhere, e.g. another worker already holds the refresh lock.
func Accepted(c *gin.Context, data any) {
	c.JSON(http.StatusAccepted, Response{
		Code:    0,
		Message: "accepted",
		Data:    data,
	})
}

func Error(c *gin.Context, httpStatus int, message string) {
	c.JSON(httpStatus, Response{
		Code:    httpStatus,
		Message: message,
	})
}

func BadRequest(c *gin.Context, message string) {
	Error(c, http.StatusBadRequest, message)
}

func NotFound(c *gin.Context, message string) {
	Error(c, http.StatusNotFound, message)
}

func InternalError(c *gin.Context, message string) {
	Error(c, http.StatusInternalServerError, message)
}

// ErrorFrom renders an error, honoring the status code and reason carried
// by an ApplicationError. Unknown errors become 500s.
func ErrorFrom(c *gin.Context, err error) {
	appErr := infraerrors.FromError(err)
	c.JSON(appErr.Code, Response{
		Code:    appErr.Code,
		Message: appErr.Message,
		Reason:  appErr.Reason,
	})
}
