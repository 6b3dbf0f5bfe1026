package router

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/noah-isme/exam-marker-api/internal/config"
	"github.com/noah-isme/exam-marker-api/internal/handler"
	"github.com/noah-isme/exam-marker-api/internal/middleware"
	"github.com/noah-isme/exam-marker-api/internal/observability"
)

// Dependencies groups router dependencies for registration.
type Dependencies struct {
	EvaluationHandler *handler.EvaluationHandler
	QuestionHandler   *handler.QuestionHandler
	FeedbackHandler   *handler.FeedbackHandler
	SyllabusHandler   *handler.SyllabusHandler
	HealthProbes      map[string]handler.HealthProbe
	JWTMiddleware     fiber.Handler
}

// Register wires the HTTP routes into the fiber application.
func Register(app *fiber.App, cfg config.Config, deps Dependencies) {
	app.Get("/metrics", observability.MetricsHandler())

	api := app.Group("/api/v1", func(c *fiber.Ctx) error {
		c.Set("X-Application", cfg.AppName)
		return c.Next()
	})
	api.Get("/health", handler.HealthCheck(cfg, deps.HealthProbes))

	// Use provided JWT middleware, or a no-op if nil
	jwtMiddleware := deps.JWTMiddleware
	if jwtMiddleware == nil {
		jwtMiddleware = func(c *fiber.Ctx) error { return c.Next() }
	}

	if deps.QuestionHandler != nil {
		deps.QuestionHandler.Register(api.Group("/questions"))
	}

	if deps.EvaluationHandler != nil {
		window := cfg.EvaluationWindow
		if window <= 0 {
			window = time.Minute
		}
		evaluations := api.Group("/evaluations",
			jwtMiddleware,
			student,
			middleware.RateLimit("evaluations", cfg.EvaluationRateLimit, window),
		)
		deps.EvaluationHandler.Register(evaluations)
	}

	if deps.FeedbackHandler != nil {
		deps.FeedbackHandler.Register(api.Group("/feedback", jwtMiddleware, student))
	}

	if deps.SyllabusHandler != nil {
		deps.SyllabusHandler.Register(api.Group("/syllabus", jwtMiddleware, teacher))
	}
}

var (
	student = middleware.WithAuth(next, middleware.AuthOptions{Role: middleware.AuthRoleStudent})
	teacher = middleware.WithAuth(next, middleware.AuthOptions{Role: middleware.AuthRoleTeacher})
)

func next(c *fiber.Ctx) error { return c.Next() }
