package integration_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/noah-isme/exam-marker-api/internal/config"
	"github.com/noah-isme/exam-marker-api/internal/handler"
	"github.com/noah-isme/exam-marker-api/internal/middleware"
	"github.com/noah-isme/exam-marker-api/internal/models"
	"github.com/noah-isme/exam-marker-api/internal/repository"
	"github.com/noah-isme/exam-marker-api/internal/router"
	"github.com/noah-isme/exam-marker-api/internal/service"
	"github.com/noah-isme/exam-marker-api/pkg/ai"
	"github.com/noah-isme/exam-marker-api/pkg/marking"
	"github.com/noah-isme/exam-marker-api/pkg/textnorm"
)

const jwtSecret = "integration-secret"

// scriptedModel answers generation prompts with a question list and grading prompts with a mark report.
type scriptedModel struct {
	calls atomic.Int32
}

func (m *scriptedModel) Name() string { return "scripted" }

func (m *scriptedModel) Complete(_ context.Context, prompt ai.Prompt) (string, error) {
	m.calls.Add(1)
	if strings.Contains(prompt.User, "SYLLABUS CONTENT") {
		return `{"questions":[{"question_id":"SQ1","topic":"Momentum","question":"Define momentum.","max_marks":3,"marking_scheme":{"definition":2,"units":1.0},"model_answer":"Momentum is mass times velocity, measured in kg m/s."}]}`, nil
	}
	return `{"total_marks_awarded":2,"overall_feedback":"Units missing","detailed_marking":[{"criterion":"definition","max_mark":2,"awarded_mark":2,"feedback":"correct","explanation":"p = mv"},{"criterion":"units","max_mark":1,"awarded_mark":0,"feedback":"missing","explanation":"kg m/s expected"}]}`, nil
}

func token(t *testing.T, subject, role string) string {
	t.Helper()
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":  subject,
		"role": role,
		"exp":  time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte(jwtSecret))
	require.NoError(t, err)
	return "Bearer " + signed
}

func setupMarkerApp(t *testing.T, model ai.ChatModel) *fiber.App {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file:e2e?mode=memory&cache=shared"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	require.NoError(t, db.Migrator().DropTable(&models.Question{}, &models.FeedbackRecord{}))
	require.NoError(t, db.AutoMigrate(&models.Question{}, &models.FeedbackRecord{}))

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	validate := validator.New(validator.WithRequiredStructEnabled())
	log := zerolog.New(io.Discard)

	questionRepo := repository.NewQuestionRepository(db)
	feedbackRepo := repository.NewFeedbackRepository(db)

	generator, err := ai.NewQuestionGenerator(model, ai.GenerationOptions{}, log)
	require.NoError(t, err)
	pipeline := marking.New(ai.NewLLMGrader(model, ai.DefaultPromptOptions(), log), nil, textnorm.New(nil), log)

	questionService := service.NewQuestionService(questionRepo, log)
	evaluationService := service.NewEvaluationService(questionService, pipeline, feedbackRepo, validate, service.EvaluationOptions{}, log)
	feedbackService := service.NewFeedbackService(feedbackRepo, validate)
	syllabusService := service.NewSyllabusService(generator, repository.NewSyllabusSessionRepository(client), questionRepo, validate, time.Minute, 0, log)

	cfg := config.Config{AppName: "Marker", JWTSecret: jwtSecret, EvaluationRateLimit: 100}
	app := fiber.New()
	middleware.Register(app, middleware.Config{Logger: &log})
	router.Register(app, cfg, router.Dependencies{
		EvaluationHandler: handler.NewEvaluationHandler(evaluationService, log),
		QuestionHandler:   handler.NewQuestionHandler(questionService, log),
		FeedbackHandler:   handler.NewFeedbackHandler(feedbackService, log),
		SyllabusHandler:   handler.NewSyllabusHandler(syllabusService, log),
		JWTMiddleware:     middleware.JWTProtected(cfg.JWTSecret),
	})
	return app
}

func call(t *testing.T, app *fiber.App, method, path, auth, body string) (int, map[string]interface{}) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	}
	if auth != "" {
		req.Header.Set(fiber.HeaderAuthorization, auth)
	}
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	var payload map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&payload))
	return resp.StatusCode, payload
}

func TestSyllabusToGradedAnswerFlow(t *testing.T) {
	model := &scriptedModel{}
	app := setupMarkerApp(t, model)
	teacher := token(t, "teacher-7", "teacher")
	student := token(t, "student-3", "student")

	status, _ := call(t, app, http.MethodPost, "/api/v1/evaluations/answer", "", `{"question_id":"x","answer":"y"}`)
	require.Equal(t, http.StatusUnauthorized, status)

	syllabus := `{"subject":"Physics","syllabus_text":"Momentum, impulse and conservation of momentum in collisions.","question_count":1}`
	status, _ = call(t, app, http.MethodPost, "/api/v1/syllabus/questions", student, syllabus)
	require.Equal(t, http.StatusForbidden, status)

	status, body := call(t, app, http.MethodPost, "/api/v1/syllabus/questions", teacher, syllabus)
	require.Equal(t, http.StatusCreated, status)
	sessionID := body["data"].(map[string]interface{})["session_id"].(string)

	status, body = call(t, app, http.MethodPost, "/api/v1/syllabus/sessions/"+sessionID+"/save", teacher, "")
	require.Equal(t, http.StatusOK, status)
	questionID := body["data"].(map[string]interface{})["question_ids"].([]interface{})[0].(string)

	status, body = call(t, app, http.MethodGet, "/api/v1/questions/"+questionID, "", "")
	require.Equal(t, http.StatusOK, status)
	question := body["data"].(map[string]interface{})
	require.Equal(t, float64(3), question["max_marks"])
	require.NotContains(t, question, "model_answer")

	status, body = call(t, app, http.MethodPost, "/api/v1/evaluations/answer", student,
		`{"question_id":"`+questionID+`","answer":"Momentum is mass times velocity."}`)
	require.Equal(t, http.StatusOK, status)
	report := body["data"].(map[string]interface{})
	require.Equal(t, float64(2), report["total_marks_awarded"])
	require.Equal(t, float64(3), report["total_marks_available"])
	require.Equal(t, "student-3", report["user_id"])
	require.Equal(t, false, report["degraded"])

	status, body = call(t, app, http.MethodGet, "/api/v1/feedback", student, "")
	require.Equal(t, http.StatusOK, status)
	require.Len(t, body["data"].([]interface{}), 1)

	status, body = call(t, app, http.MethodGet, "/api/v1/feedback", teacher, "")
	require.Equal(t, http.StatusOK, status)
	require.Empty(t, body["data"])

	require.Equal(t, int32(2), model.calls.Load())
}
