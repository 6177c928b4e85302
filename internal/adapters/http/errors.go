package http

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/unnshoyuukou4515/izakaya-checkin/internal/core/engine"
	"github.com/unnshoyuukou4515/izakaya-checkin/internal/core/usecases"
)

// APIError is a structured error response.
type APIError struct {
	Status    int    `json:"status"`
	Code      string `json:"code"`    // Error code: bad_request, not_found, invalid_selection, etc.
	Message   string `json:"message"` // Human-readable message
	RequestID string `json:"request_id,omitempty"`
}

// newError builds a JSON error response with a request ID.
func newError(c *fiber.Ctx, status int, code string, message string) error {
	reqID, _ := c.Locals("requestid").(string)
	return c.Status(status).JSON(APIError{
		Status:    status,
		Code:      code,
		Message:   message,
		RequestID: reqID,
	})
}

// errBadRequest returns a 400 error.
func errBadRequest(c *fiber.Ctx, msg string) error {
	return newError(c, 400, "bad_request", msg)
}

// errNotFound returns a 404 error.
func errNotFound(c *fiber.Ctx, msg string) error {
	return newError(c, 404, "not_found", msg)
}

// errInternal returns a 500 error.
func errInternal(c *fiber.Ctx, msg string) error {
	return newError(c, 500, "internal_error", msg)
}

// intentStatus classifies an error returned by a view intent.
func intentStatus(err error) (int, string) {
	var unknown errUnknownAction
	switch {
	case errors.Is(err, usecases.ErrSessionNotFound),
		errors.Is(err, engine.ErrUnknownStation):
		return fiber.StatusNotFound, "not_found"
	case errors.Is(err, engine.ErrInvalidSelection),
		errors.Is(err, engine.ErrInvalidRating),
		errors.Is(err, engine.ErrNoPendingVisit),
		errors.Is(err, usecases.ErrInvalidVisit):
		return fiber.StatusUnprocessableEntity, "invalid_selection"
	case errors.Is(err, engine.ErrSubmitInFlight):
		return fiber.StatusConflict, "conflict"
	case errors.Is(err, engine.ErrStaleSelection):
		return fiber.StatusConflict, "stale_selection"
	case errors.Is(err, usecases.ErrAnonymousVisit):
		return fiber.StatusForbidden, "forbidden"
	case errors.As(err, &unknown):
		return fiber.StatusBadRequest, "bad_request"
	default:
		return fiber.StatusBadGateway, "upstream_error"
	}
}

// engineError maps a rejected view intent to its HTTP answer.
func engineError(c *fiber.Ctx, err error) error {
	status, code := intentStatus(err)
	if status == fiber.StatusBadGateway {
		LoggerFromCtx(c.UserContext()).Warn("upstream failure", "error", err)
	}
	return newError(c, status, code, err.Error())
}
