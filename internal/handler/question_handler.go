package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/exam-marker-api/internal/service"
	"github.com/noah-isme/exam-marker-api/internal/utils"
)

// QuestionHandler serves the question bank.
type QuestionHandler struct {
	service service.QuestionService
	logger  zerolog.Logger
}

// NewQuestionHandler constructs a question handler.
func NewQuestionHandler(service service.QuestionService, logger zerolog.Logger) *QuestionHandler {
	return &QuestionHandler{
		service: service,
		logger:  logger.With().Str("component", "question_handler").Logger(),
	}
}

// Register wires question routes.
func (h *QuestionHandler) Register(router fiber.Router) {
	router.Get("", h.list)
	router.Get("/:id", h.get)
}

func (h *QuestionHandler) list(c *fiber.Ctx) error {
	questions, err := h.service.List(c.UserContext(), c.Query("subject"))
	if err != nil {
		return sendServiceError(c, h.logger, err, "failed to load questions")
	}
	return utils.SendSuccess(c, "questions retrieved", questions)
}

func (h *QuestionHandler) get(c *fiber.Ctx) error {
	question, err := h.service.Get(c.UserContext(), c.Params("id"))
	if err != nil {
		return sendServiceError(c, h.logger, err, "failed to load question")
	}
	return utils.SendSuccess(c, "question retrieved", question)
}
