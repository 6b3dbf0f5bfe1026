package performance_test

import (
	"context"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/noah-isme/exam-marker-api/internal/config"
	"github.com/noah-isme/exam-marker-api/internal/handler"
	"github.com/noah-isme/exam-marker-api/internal/models"
	"github.com/noah-isme/exam-marker-api/internal/repository"
	"github.com/noah-isme/exam-marker-api/internal/router"
	"github.com/noah-isme/exam-marker-api/internal/service"
	"github.com/noah-isme/exam-marker-api/pkg/ai"
	"github.com/noah-isme/exam-marker-api/pkg/marking"
	"github.com/noah-isme/exam-marker-api/pkg/textnorm"
)

type echoModel struct{}

func (echoModel) Name() string { return "echo" }

// Complete awards marks proportional to the answer length so concurrent replies differ per request.
func (echoModel) Complete(_ context.Context, prompt ai.Prompt) (string, error) {
	idx := strings.Index(prompt.User, "STUDENT ANSWER:\n")
	awarded := 0
	if idx >= 0 {
		answer := prompt.User[idx+len("STUDENT ANSWER:\n"):]
		if end := strings.Index(answer, "\n"); end >= 0 {
			answer = answer[:end]
		}
		awarded = len(strings.Fields(answer)) % 5
	}
	return fmt.Sprintf(`{"total_marks_awarded":%d,"overall_feedback":"ok","detailed_marking":[{"criterion":"accuracy","max_mark":4,"awarded_mark":%d,"feedback":"f","explanation":"e"}]}`, awarded, awarded), nil
}

func newMaterials() marking.Materials {
	return marking.Materials{
		QuestionID:  "Q1",
		Question:    "Explain inertia.",
		ModelAnswer: "Inertia is the resistance of an object to changes in motion.",
		Scheme:      ai.MarkingScheme{"accuracy": 4},
		MaxMarks:    4,
		Topic:       "Forces",
	}
}

func TestPipelineConcurrentEvaluationsAreIndependent(t *testing.T) {
	log := zerolog.Nop()
	pipeline := marking.New(ai.NewLLMGrader(echoModel{}, ai.DefaultPromptOptions(), log), nil, textnorm.New(nil), log)

	const workers = 32
	var wg sync.WaitGroup
	results := make([]int, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			answer := strings.TrimSpace(strings.Repeat("word ", i%5+1))
			outcome := pipeline.Evaluate(context.Background(), newMaterials(), marking.Submission{Text: answer})
			if outcome.Degraded() {
				results[i] = -1
				return
			}
			results[i] = outcome.Report.TotalMarksAwarded
		}(i)
	}
	wg.Wait()

	for i, got := range results {
		require.Equal(t, (i%5+1)%5, got, "worker %d", i)
	}
}

func setupEvaluationApp(t *testing.T) *fiber.App {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file:perf?mode=memory&cache=shared"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.Question{}, &models.FeedbackRecord{}))

	log := zerolog.Nop()
	questionService := service.NewQuestionService(repository.NewQuestionRepository(db), log)
	_, err = questionService.Seed(context.Background(), strings.NewReader(
		`{"subject":"Physics","questions":[{"question_id":"Q1","topic":"Forces","question":"Explain inertia.","max_marks":4,"marking_scheme":{"accuracy":4},"model_answer":"Resistance to changes in motion."}]}`))
	require.NoError(t, err)

	pipeline := marking.New(ai.NewLLMGrader(echoModel{}, ai.DefaultPromptOptions(), log), nil, textnorm.New(nil), log)
	evaluationService := service.NewEvaluationService(questionService, pipeline, repository.NewFeedbackRepository(db), validator.New(), service.EvaluationOptions{}, log)

	app := fiber.New()
	router.Register(app, config.Config{AppName: "Perf", EvaluationRateLimit: 1000}, router.Dependencies{
		EvaluationHandler: handler.NewEvaluationHandler(evaluationService, log),
		JWTMiddleware: func(c *fiber.Ctx) error {
			c.Locals("user_id", "perf-user")
			return c.Next()
		},
	})
	return app
}

func TestSubmitAnswerP95LatencyBelow250ms(t *testing.T) {
	app := setupEvaluationApp(t)

	runs := 40
	durations := make([]time.Duration, 0, runs)

	for i := 0; i < runs; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/evaluations/answer", strings.NewReader(`{"question_id":"Q1","answer":"an object keeps moving"}`))
		req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
		start := time.Now()
		resp, err := app.Test(req)
		require.NoError(t, err)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		_, _ = io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
		durations = append(durations, time.Since(start))
	}

	sort.Slice(durations, func(i, j int) bool { return durations[i] < durations[j] })
	index := int(math.Ceil(0.95*float64(len(durations)))) - 1
	if index < 0 {
		index = 0
	}
	p95 := durations[index]

	require.LessOrEqual(t, p95, 250*time.Millisecond)
}
