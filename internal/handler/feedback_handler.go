package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/exam-marker-api/internal/dto"
	"github.com/noah-isme/exam-marker-api/internal/service"
	"github.com/noah-isme/exam-marker-api/internal/utils"
)

// FeedbackHandler lists the caller's stored mark reports.
type FeedbackHandler struct {
	service service.FeedbackService
	logger  zerolog.Logger
}

// NewFeedbackHandler constructs a feedback handler.
func NewFeedbackHandler(service service.FeedbackService, logger zerolog.Logger) *FeedbackHandler {
	return &FeedbackHandler{
		service: service,
		logger:  logger.With().Str("component", "feedback_handler").Logger(),
	}
}

// Register wires feedback routes.
func (h *FeedbackHandler) Register(router fiber.Router) {
	router.Get("", h.list)
}

func (h *FeedbackHandler) list(c *fiber.Ctx) error {
	page, err := parseQueryInt(c, "page")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "page must be a number")
	}
	pageSize, err := parseQueryInt(c, "page_size")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "page_size must be a number")
	}

	result, err := h.service.List(c.UserContext(), userIDStringFromContext(c), dto.FeedbackQuery{
		QuestionID: c.Query("question_id"),
		Page:       page,
		PageSize:   pageSize,
	})
	if err != nil {
		return sendServiceError(c, h.logger, err, "failed to load feedback")
	}

	return utils.OK(c, result.Items, "feedback retrieved", result.Pagination)
}
