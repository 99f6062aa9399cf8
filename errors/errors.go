package errors

import (
	"errors"
	"fmt"

	"github.com/gofiber/fiber/v2"
)

var (
	ErrStoreUnavailable   = fmt.Errorf("history store unavailable")
	ErrDeliveryFailed     = fmt.Errorf("delivery to session failed")
	ErrUserAlreadyExists  = fmt.Errorf("user already exists")
	ErrInvalidCredentials = fmt.Errorf("invalid credentials")
	ErrInvalidPassword    = fmt.Errorf("password does not meet complexity requirements")
	ErrInvalidUsername    = fmt.Errorf("invalid username")
	ErrTokenGeneration    = fmt.Errorf("token generation failed")
	ErrWorkerPanic        = fmt.Errorf("worker panic")
	ErrMessageTooLong     = fmt.Errorf("message content too long")
	ErrSessionClosed      = fmt.Errorf("session is closed")
	ErrEmptyWords         = fmt.Errorf("no words have been found")
)

// MapToHTTPStatus converts domain errors into transport status codes.
// Unknown errors default to 500 so internal details never leak to clients.
func MapToHTTPStatus(err error) int {
	switch {
	case errors.Is(err, ErrUserAlreadyExists):
		return fiber.StatusConflict
	case errors.Is(err, ErrInvalidCredentials):
		return fiber.StatusUnauthorized
	case errors.Is(err, ErrInvalidPassword), errors.Is(err, ErrInvalidUsername), errors.Is(err, ErrMessageTooLong):
		return fiber.StatusBadRequest
	case errors.Is(err, ErrStoreUnavailable):
		return fiber.StatusServiceUnavailable
	default:
		return fiber.StatusInternalServerError
	}
}
