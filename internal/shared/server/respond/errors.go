package respond

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"photoshoot-backend/internal/shared/telemetry"
)

// ErrorBody is the error object every failing endpoint returns.
type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// ErrorResponse wraps the error body.
type ErrorResponse struct {
	Error ErrorBody `json:"error"`
}

// Error logs and aborts the request with a standardized error envelope.
func Error(c *gin.Context, status int, code, message string, details any) {
	fields := map[string]any{
		"status":     status,
		"code":       code,
		"message":    message,
		"path":       c.Request.URL.Path,
		"method":     c.Request.Method,
		"request_id": c.GetString("requestId"),
	}
	if userID := c.GetString("userId"); userID != "" {
		fields["user_id"] = userID
	}
	if status >= http.StatusInternalServerError {
		telemetry.Error("http.error", fields)
	} else {
		telemetry.Warn("http.error", fields)
	}

	c.AbortWithStatusJSON(status, ErrorResponse{
		Error: ErrorBody{
			Code:    code,
			Message: message,
			Details: details,
		},
	})
}

// BadRequest is shorthand for a 400 validation_error.
func BadRequest(c *gin.Context, message string, details any) {
	Error(c, http.StatusBadRequest, "validation_error", message, details)
}

// NotFound is shorthand for a 404 not_found.
func NotFound(c *gin.Context, message string) {
	Error(c, http.StatusNotFound, "not_found", message, nil)
}

// Internal is shorthand for a 500 internal.
func Internal(c *gin.Context, message string) {
	Error(c, http.StatusInternalServerError, "internal", message, nil)
}
