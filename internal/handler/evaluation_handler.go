package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/exam-marker-api/internal/dto"
	"github.com/noah-isme/exam-marker-api/internal/service"
	"github.com/noah-isme/exam-marker-api/internal/utils"
)

// EvaluationHandler accepts answers for grading.
type EvaluationHandler struct {
	service service.EvaluationService
	logger  zerolog.Logger
}

// NewEvaluationHandler constructs an evaluation handler.
func NewEvaluationHandler(service service.EvaluationService, logger zerolog.Logger) *EvaluationHandler {
	return &EvaluationHandler{
		service: service,
		logger:  logger.With().Str("component", "evaluation_handler").Logger(),
	}
}

// Register wires evaluation routes.
func (h *EvaluationHandler) Register(router fiber.Router) {
	router.Post("/answer", h.submitAnswer)
	router.Post("/image", h.submitImage)
}

func (h *EvaluationHandler) submitAnswer(c *fiber.Ctx) error {
	var payload dto.SubmitAnswerRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	result, err := h.service.SubmitAnswer(c.UserContext(), userIDStringFromContext(c), payload)
	if err != nil {
		return sendServiceError(c, h.logger, err, "failed to evaluate answer")
	}

	message := "answer evaluated"
	if result.Degraded {
		message = "answer could not be fully evaluated"
	}
	return utils.SendSuccess(c, message, result)
}

func (h *EvaluationHandler) submitImage(c *fiber.Ctx) error {
	grade, err := parseFormBool(c, "grade")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "grade must be a boolean")
	}
	payload := dto.SubmitImageRequest{
		QuestionID: c.FormValue("question_id"),
		Grade:      grade,
	}

	file, err := c.FormFile("image")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "image is required")
	}

	result, err := h.service.SubmitImage(c.UserContext(), userIDStringFromContext(c), payload, file)
	if err != nil {
		return sendServiceError(c, h.logger, err, "failed to evaluate image")
	}

	message := "image processed"
	if result.Degraded {
		message = "image could not be fully processed"
	}
	return utils.SendSuccess(c, message, result)
}
