package httpapi

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/MagnunAVF/shortlink/internal"
	"github.com/MagnunAVF/shortlink/internal/logger"
)

// errorHandler turns errors returned by handlers into the JSON envelope.
// Only known error kinds reach the client; everything else is logged and
// answered with a generic 500.
func errorHandler(c *fiber.Ctx, err error) error {
	var verr *internal.ValidationError
	if errors.As(err, &verr) {
		return validationFailed(c, verr.Fields)
	}

	var ferr *fiber.Error
	if errors.As(err, &ferr) {
		return fail(c, ferr.Code, ferr.Message)
	}

	status, message := statusFor(err)
	if status >= fiber.StatusInternalServerError {
		logger.FromContext(c.UserContext()).Error("request failed",
			"method", c.Method(), "path", c.Path(), "status", status, "err", err)
	}
	return fail(c, status, message)
}

func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, internal.ErrValidation):
		return fiber.StatusBadRequest, "Validation failed"
	case errors.Is(err, internal.ErrDuplicateCode):
		return fiber.StatusBadRequest, "Custom alias already in use"
	case errors.Is(err, internal.ErrDuplicateEmail):
		return fiber.StatusBadRequest, "Email already registered"
	case errors.Is(err, internal.ErrInvalidCredentials):
		return fiber.StatusUnauthorized, "Invalid email or password"
	case errors.Is(err, internal.ErrUnauthorized):
		return fiber.StatusUnauthorized, "Unauthorized"
	case errors.Is(err, internal.ErrNotFound), errors.Is(err, internal.ErrForbidden):
		return fiber.StatusNotFound, "Link not found"
	case errors.Is(err, internal.ErrExpired):
		return fiber.StatusGone, "Link has expired"
	case errors.Is(err, internal.ErrUnavailable):
		return fiber.StatusServiceUnavailable, "Service temporarily unavailable"
	default:
		return fiber.StatusInternalServerError, "Server error"
	}
}
