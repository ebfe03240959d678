package handler

import (
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/hirewise/api/internal/ai"
	"github.com/hirewise/api/internal/intake"
	"github.com/hirewise/api/internal/logger"
	"github.com/hirewise/api/internal/service"
	"github.com/hirewise/api/pkg/response"
)

func formatValidationErrors(err error) interface{} {
	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) {
		fields := make(map[string]string)
		for _, e := range validationErrors {
			fields[e.Field()] = e.Tag()
		}
		return fields
	}
	return nil
}

// writeError maps service and AI errors onto the response envelope. Provider
// details are logged, never returned.
func writeError(c *fiber.Ctx, err error) error {
	if verr, ok := intake.AsValidationError(err); ok {
		return response.Error(c, fiber.StatusBadRequest, strings.ToUpper(verr.Code), verr.Message, verr.Details)
	}

	switch {
	case errors.Is(err, service.ErrJobNotFound):
		return response.NotFound(c, "Job not found")
	case errors.Is(err, service.ErrForbidden):
		return response.Forbidden(c)
	case errors.Is(err, service.ErrAlreadyTerminal):
		return response.Error(c, fiber.StatusBadRequest, response.CodeAlreadyTerminal, "Job already finished", nil)
	case errors.Is(err, ai.ErrInvalidInput):
		return response.ValidationError(c, "Invalid input", nil)
	case errors.Is(err, ai.ErrRateLimited):
		logger.Warn().Err(err).Str("path", c.Path()).Msg("ai provider rate limited")
		return response.RateLimited(c)
	case errors.Is(err, ai.ErrProviderUnavailable), errors.Is(err, ai.ErrInvalidResponseShape):
		logger.Error().Err(err).Str("path", c.Path()).Msg("ai processing failed")
		return response.AIError(c, "processing failed")
	case errors.Is(err, service.ErrStorageUnavailable):
		return response.Unavailable(c, "File storage is not available")
	}

	logger.Error().Err(err).Str("path", c.Path()).Msg("request failed")
	return response.ServiceError(c, "Internal server error")
}

// respond writes the outcome of an intake call.
func respond(c *fiber.Ctx, out *service.Outcome) error {
	switch {
	case out.Sync != nil:
		return response.OK(c, out.Sync)
	case out.Stored != nil:
		return response.Created(c, out.Stored)
	default:
		return response.Accepted(c, queued(out.Job), "Processing started")
	}
}
