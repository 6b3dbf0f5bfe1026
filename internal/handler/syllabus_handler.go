package handler

import (
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/exam-marker-api/internal/dto"
	"github.com/noah-isme/exam-marker-api/internal/service"
	"github.com/noah-isme/exam-marker-api/internal/utils"
)

// SyllabusHandler drives question generation from syllabus text.
type SyllabusHandler struct {
	service service.SyllabusService
	logger  zerolog.Logger
}

// NewSyllabusHandler constructs a syllabus handler.
func NewSyllabusHandler(service service.SyllabusService, logger zerolog.Logger) *SyllabusHandler {
	return &SyllabusHandler{
		service: service,
		logger:  logger.With().Str("component", "syllabus_handler").Logger(),
	}
}

// Register wires syllabus routes.
func (h *SyllabusHandler) Register(router fiber.Router) {
	router.Post("/questions", h.generate)
	router.Get("/sessions/:id", h.getSession)
	router.Post("/sessions/:id/save", h.saveSession)
}

func (h *SyllabusHandler) generate(c *fiber.Ctx) error {
	userID := userIDStringFromContext(c)

	if strings.HasPrefix(strings.ToLower(c.Get(fiber.HeaderContentType)), fiber.MIMEMultipartForm) {
		payload := dto.GenerateQuestionsRequest{
			Subject:      c.FormValue("subject"),
			SyllabusText: c.FormValue("syllabus_text"),
		}
		if raw := strings.TrimSpace(c.FormValue("question_count")); raw != "" {
			count, err := strconv.Atoi(raw)
			if err != nil {
				return utils.SendError(c, fiber.StatusBadRequest, "question_count must be a number")
			}
			payload.QuestionCount = count
		}

		file, err := c.FormFile("syllabus")
		if err != nil {
			if payload.SyllabusText == "" {
				return utils.SendError(c, fiber.StatusBadRequest, "syllabus file or syllabus_text is required")
			}
			return h.respondGenerated(c, func() (dto.SyllabusSessionResponse, error) {
				return h.service.Generate(c.UserContext(), userID, payload)
			})
		}
		return h.respondGenerated(c, func() (dto.SyllabusSessionResponse, error) {
			return h.service.GenerateFromFile(c.UserContext(), userID, payload, file)
		})
	}

	var payload dto.GenerateQuestionsRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}
	return h.respondGenerated(c, func() (dto.SyllabusSessionResponse, error) {
		return h.service.Generate(c.UserContext(), userID, payload)
	})
}

func (h *SyllabusHandler) respondGenerated(c *fiber.Ctx, generate func() (dto.SyllabusSessionResponse, error)) error {
	session, err := generate()
	if err != nil {
		return sendServiceError(c, h.logger, err, "failed to generate questions")
	}
	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "questions generated", session)
}

func (h *SyllabusHandler) getSession(c *fiber.Ctx) error {
	session, err := h.service.GetSession(c.UserContext(), c.Params("id"))
	if err != nil {
		return sendServiceError(c, h.logger, err, "failed to load syllabus session")
	}
	return utils.SendSuccess(c, "syllabus session retrieved", session)
}

func (h *SyllabusHandler) saveSession(c *fiber.Ctx) error {
	saved, err := h.service.SaveSession(c.UserContext(), c.Params("id"))
	if err != nil {
		return sendServiceError(c, h.logger, err, "failed to save syllabus session")
	}
	return utils.SendSuccess(c, "questions saved", saved)
}
