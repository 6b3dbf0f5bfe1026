package handler

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/exam-marker-api/internal/middleware"
	"github.com/noah-isme/exam-marker-api/internal/service"
	"github.com/noah-isme/exam-marker-api/internal/utils"
	"github.com/noah-isme/exam-marker-api/pkg/ai"
)

func parseQueryInt(c *fiber.Ctx, key string) (int, error) {
	value := strings.TrimSpace(c.Query(key))
	if value == "" {
		return 0, nil
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return 0, err
	}
	return parsed, nil
}

func parseFormBool(c *fiber.Ctx, key string) (bool, error) {
	value := strings.TrimSpace(c.FormValue(key))
	if value == "" {
		return false, nil
	}
	return strconv.ParseBool(value)
}

func userIDStringFromContext(c *fiber.Ctx) string {
	if v := c.Locals(middleware.LocalUserID); v != nil {
		switch id := v.(type) {
		case string:
			return strings.TrimSpace(id)
		case uint:
			return strconv.FormatUint(uint64(id), 10)
		case int:
			if id < 0 {
				return ""
			}
			return strconv.Itoa(id)
		case fmt.Stringer:
			return strings.TrimSpace(id.String())
		}
	}
	return ""
}

func requestLogger(base zerolog.Logger, c *fiber.Ctx) *zerolog.Logger {
	logger := base
	if c != nil {
		if correlation := middleware.GetCorrelationID(c); correlation != "" {
			logger = base.With().Str("correlation_id", correlation).Logger()
		}
	}
	return &logger
}

func isValidationError(err error) bool {
	var validationErrors validator.ValidationErrors
	return errors.As(err, &validationErrors)
}

func validationDetails(err error) []string {
	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return nil
	}
	details := make([]string, 0, len(validationErrors))
	for _, fe := range validationErrors {
		details = append(details, fmt.Sprintf("%s failed on %s", strings.ToLower(fe.Field()), fe.Tag()))
	}
	return details
}

// sendServiceError maps service sentinels onto HTTP statuses shared by every handler.
func sendServiceError(c *fiber.Ctx, logger zerolog.Logger, err error, fallback string) error {
	switch {
	case isValidationError(err):
		return utils.Fail(c, fiber.StatusBadRequest, "validation failed", validationDetails(err))
	case errors.Is(err, service.ErrAnswerRequired),
		errors.Is(err, service.ErrUploadRequired),
		errors.Is(err, service.ErrUploadTypeNotAllowed),
		errors.Is(err, ai.ErrSyllabusTooShort):
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrUploadTooLarge):
		return utils.SendError(c, fiber.StatusRequestEntityTooLarge, err.Error())
	case errors.Is(err, service.ErrQuestionNotFound), errors.Is(err, service.ErrSyllabusSessionNotFound):
		return utils.SendError(c, fiber.StatusNotFound, err.Error())
	case errors.Is(err, service.ErrFeedbackUserRequired):
		return utils.SendError(c, fiber.StatusUnauthorized, "authentication required")
	case errors.Is(err, service.ErrSessionStoreUnavailable):
		return utils.SendError(c, fiber.StatusServiceUnavailable, err.Error())
	case errors.Is(err, ai.ErrUnexpectedGeneration),
		errors.Is(err, ai.ErrNoQuestions),
		errors.Is(err, ai.ErrGenerationInvalid),
		errors.Is(err, ai.ErrGradingParse),
		errors.Is(err, ai.ErrCompletion):
		requestLogger(logger, c).Warn().Err(err).Msg("upstream model failed")
		return utils.SendError(c, fiber.StatusBadGateway, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return utils.SendError(c, fiber.StatusGatewayTimeout, "request timed out")
	default:
		requestLogger(logger, c).Error().Err(err).Msg(fallback)
		return utils.SendError(c, fiber.StatusInternalServerError, fallback)
	}
}
