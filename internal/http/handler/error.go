package handler

import (
	"errors"
	"fmt"

	"github.com/docker/go-units"
	"github.com/gofiber/fiber/v2"

	"legalease/internal/http/middleware"
)

// errorPayload defines the standardized error response body.
type errorPayload struct {
	Success   bool          `json:"success"`
	RequestID string        `json:"request_id,omitempty"`
	Error     errorEnvelope `json:"error"`
}

type errorEnvelope struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

// requestIDFromCtx extracts request_id previously stored by middleware.RequestID.
func requestIDFromCtx(c *fiber.Ctx) string {
	if v := c.Locals(middleware.RequestIDLocalKey); v != nil {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// writeError writes a standardized JSON error response without leaking internal errors.
//
// Parameters:
// - status: HTTP status code to return
// - code: machine-readable short error code (e.g., "NO_FILE", "DOCUMENT_NOT_FOUND")
// - message: human-readable safe message
// - details: a hint for the caller on how to recover
func writeError(c *fiber.Ctx, status int, code, message, details string) error {
	res := errorPayload{
		RequestID: requestIDFromCtx(c),
		Error: errorEnvelope{
			Code:    code,
			Message: message,
			Details: details,
		},
	}
	return c.Status(status).JSON(res)
}

// RateLimited writes the rejection for requests over a route's rate limit.
func RateLimited() fiber.Handler {
	return func(c *fiber.Ctx) error {
		return writeError(c, fiber.StatusTooManyRequests, "RATE_LIMITED",
			"Too many requests", "Please wait a few minutes before trying again")
	}
}

// ErrorHandler returns a Fiber global error handler that standardizes error responses.
// maxFileSize is quoted back when a request body exceeds the server's limit.
func ErrorHandler(maxFileSize int64) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		status := fiber.StatusInternalServerError
		var fe *fiber.Error
		if errors.As(err, &fe) {
			status = fe.Code
		}

		switch status {
		case fiber.StatusBadRequest:
			details := "Please check your request"
			if fe != nil && fe.Message != "" {
				details = fe.Message
			}
			return writeError(c, status, "BAD_REQUEST", "Invalid request format", details)
		case fiber.StatusNotFound:
			return writeError(c, status, "NOT_FOUND", "Resource not found", "")
		case fiber.StatusMethodNotAllowed:
			return writeError(c, status, "METHOD_NOT_ALLOWED", "Method not allowed", "")
		case fiber.StatusRequestEntityTooLarge:
			return writeError(c, status, "FILE_TOO_LARGE",
				fmt.Sprintf("File size exceeds maximum limit of %s", units.BytesSize(float64(maxFileSize))),
				"Please upload a smaller file")
		case fiber.StatusTooManyRequests:
			return RateLimited()(c)
		default:
			return writeError(c, status, "INTERNAL_ERROR", "An internal server error occurred", "Please try again later")
		}
	}
}
