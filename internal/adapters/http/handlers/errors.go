package handlers

import (
	"errors"

	"energia-backend/internal/core/domain"
	"energia-backend/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"
)

// invalidCredentials is the only message login-style failures ever show
const (
	invalidCredentials = "Invalid credentials"
	invalidBody        = "Invalid request body"
)

// handleError maps a service error onto the status/code table
func handleError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, domain.ErrValidation):
		return response.BadRequest(c, response.CodeValidation, domain.Message(err, "Invalid request"))
	case errors.Is(err, domain.ErrNotAuthorized):
		return response.Forbidden(c, response.CodeNotAuthorized, domain.Message(err, "Not authorized"))
	case errors.Is(err, domain.ErrConflict):
		return response.Conflict(c, domain.Message(err, "Already exists"))
	case errors.Is(err, domain.ErrAuthentication):
		return response.Unauthorized(c, response.CodeInvalidCredentials, invalidCredentials)
	case errors.Is(err, domain.ErrNotFound):
		return response.NotFound(c, domain.Message(err, "Not found"))
	case errors.Is(err, domain.ErrNoActiveRequest):
		return response.BadRequest(c, response.CodeNoActiveRequest, "No active reset request")
	case errors.Is(err, domain.ErrExpired):
		return response.BadRequest(c, response.CodeOTPExpired, "OTP expired")
	case errors.Is(err, domain.ErrDelivery):
		log.Warn().Err(err).Str("path", c.Path()).Msg("⚠️ Delivery failed")
		return response.BadGateway(c, domain.Message(err, "Failed to send email"))
	case errors.Is(err, domain.ErrUnavailable):
		log.Error().Err(err).Str("path", c.Path()).Msg("❌ Store unavailable")
		return response.ServiceUnavailable(c, "Service temporarily unavailable")
	default:
		log.Error().Err(err).Str("path", c.Path()).Msg("❌ Unexpected error")
		return response.InternalServerError(c, "Internal server error")
	}
}
