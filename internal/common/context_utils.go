package common

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
)

// ErrorResponse is the standardized error envelope. Code is stable so calling
// services and tests branch on semantics instead of status text; Timestamp and
// RequestID exist for correlation.
type ErrorResponse struct {
	Error struct {
		Code    string            `json:"code"`
		Message string            `json:"message"`
		Details map[string]string `json:"details,omitempty"`
	} `json:"error"`
	Timestamp string `json:"timestamp"`
	RequestID string `json:"request_id,omitempty"`
}

// CreateErrorResponse creates a standardized error response
func CreateErrorResponse(code string, message string, details map[string]string) *ErrorResponse {
	var resp ErrorResponse
	resp.Error.Code = code
	resp.Error.Message = message
	resp.Error.Details = details
	resp.Timestamp = time.Now().UTC().Format(time.RFC3339)
	return &resp
}

// SendError writes the envelope with the request id echoed back.
func SendError(c echo.Context, status int, code, message string, details map[string]string) error {
	resp := CreateErrorResponse(code, message, details)
	resp.RequestID = c.Response().Header().Get(echo.HeaderXRequestID)
	return c.JSON(status, resp)
}

// RespondError maps a domain error to its HTTP status; anything untyped is a
// server error.
func RespondError(c echo.Context, err error) error {
	if derr, ok := AsDomainError(err); ok {
		return SendError(c, derr.Status(), derr.Code, derr.Message, derr.Details)
	}
	return SendError(c, http.StatusInternalServerError, CodeServerError, "Internal server error", nil)
}

// SendValidationError sends a validation error response for a single field.
func SendValidationError(c echo.Context, field, message string) error {
	return SendError(c, http.StatusBadRequest, CodeValidation, "Validation failed", map[string]string{field: message})
}
