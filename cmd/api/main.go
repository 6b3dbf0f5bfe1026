package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/noah-isme/exam-marker-api/internal/config"
	"github.com/noah-isme/exam-marker-api/internal/database"
	"github.com/noah-isme/exam-marker-api/internal/events"
	"github.com/noah-isme/exam-marker-api/internal/handler"
	"github.com/noah-isme/exam-marker-api/internal/middleware"
	"github.com/noah-isme/exam-marker-api/internal/models"
	"github.com/noah-isme/exam-marker-api/internal/repository"
	"github.com/noah-isme/exam-marker-api/internal/router"
	"github.com/noah-isme/exam-marker-api/internal/service"
	"github.com/noah-isme/exam-marker-api/pkg/ai"
	cloud "github.com/noah-isme/exam-marker-api/pkg/cloudinary"
	"github.com/noah-isme/exam-marker-api/pkg/marking"
	"github.com/noah-isme/exam-marker-api/pkg/ocr"
	"github.com/noah-isme/exam-marker-api/pkg/ocr/tesseract"
	"github.com/noah-isme/exam-marker-api/pkg/ocr/vision"
	"github.com/noah-isme/exam-marker-api/pkg/textnorm"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logger := zerolog.New(os.Stdout).With().Timestamp().Str("service", cfg.AppName).Logger()
	ctx := context.Background()

	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}

	if err := db.AutoMigrate(&models.Question{}, &models.FeedbackRecord{}); err != nil {
		log.Fatalf("failed to migrate database: %v", err)
	}

	var (
		redisClient  *redis.Client
		sessionRepo  repository.SyllabusSessionRepository
		healthProbes = map[string]handler.HealthProbe{}
	)
	if cfg.RedisURL != "" {
		redisClient, err = database.ConnectRedis(ctx, cfg.RedisURL, cfg.AppName)
		if err != nil {
			log.Fatalf("failed to connect to redis: %v", err)
		}
		defer redisClient.Close()
		sessionRepo = repository.NewSyllabusSessionRepository(redisClient)
		healthProbes["redis"] = database.RedisProbe(redisClient)
	} else {
		logger.Warn().Msg("redis not configured; syllabus sessions disabled")
	}

	var publisher events.Publisher = events.Noop{}
	if cfg.NATSURL != "" {
		conn, err := events.Connect(cfg.NATSURL, cfg.AppName, logger)
		if err != nil {
			log.Fatalf("failed to connect to nats: %v", err)
		}
		defer conn.Drain()
		publisher = events.NewNATSPublisher(conn, cfg.NATSSubject, logger)
	}

	var archive service.ImageArchive
	cloudCfg := cloud.Config{
		CloudName: cfg.CloudinaryCloudName,
		APIKey:    cfg.CloudinaryAPIKey,
		APISecret: cfg.CloudinaryAPISecret,
		Folder:    cfg.CloudinaryUploadFolder,
	}
	if cloudCfg.Enabled() {
		store, err := cloud.New(cloudCfg, logger)
		if err != nil {
			log.Fatalf("failed to create cloudinary client: %v", err)
		}
		archive = store
	}

	extractor, err := buildExtractor(ctx, cfg, logger)
	if err != nil {
		log.Fatalf("failed to create text extractor: %v", err)
	}

	model, closeModel, err := buildChatModel(ctx, cfg, logger)
	if err != nil {
		log.Fatalf("failed to create chat model: %v", err)
	}
	defer closeModel.Close()

	dictionary, err := textnorm.LoadDictionary(cfg.SpellDictionaryPath)
	if err != nil {
		log.Fatalf("failed to load spelling dictionary: %v", err)
	}
	normalizer := textnorm.New(textnorm.NewFuzzySpeller(dictionary))

	grader := ai.NewLLMGrader(model, ai.PromptOptions{
		Temperature: cfg.GradingTemperature,
		MaxTokens:   cfg.GradingMaxTokens,
	}, logger)
	generator, err := ai.NewQuestionGenerator(model, ai.GenerationOptions{
		Temperature: cfg.GenerationTemperature,
		MaxTokens:   cfg.GenerationMaxTokens,
	}, logger)
	if err != nil {
		log.Fatalf("failed to create question generator: %v", err)
	}
	pipeline := marking.New(grader, extractor, normalizer, logger)

	validate := validator.New(validator.WithRequiredStructEnabled())

	questionRepo := repository.NewQuestionRepository(db)
	feedbackRepo := repository.NewFeedbackRepository(db)

	questionService := service.NewQuestionService(questionRepo, logger)
	if _, err := questionService.SeedFile(ctx, cfg.QuestionsPath); err != nil {
		log.Fatalf("failed to seed question bank: %v", err)
	}

	evaluationService := service.NewEvaluationService(questionService, pipeline, feedbackRepo, validate, service.EvaluationOptions{
		Archive:        archive,
		Publisher:      publisher,
		MaxUploadBytes: cfg.UploadMaxBytes,
	}, logger)
	feedbackService := service.NewFeedbackService(feedbackRepo, validate)
	syllabusService := service.NewSyllabusService(generator, sessionRepo, questionRepo, validate, cfg.SyllabusSessionTTL, cfg.UploadMaxBytes, logger)

	healthProbes["database"] = func(ctx context.Context) error {
		sqlDB, err := db.DB()
		if err != nil {
			return err
		}
		return sqlDB.PingContext(ctx)
	}

	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ServerHeader: cfg.AppName,
		BodyLimit:    int(cfg.UploadMaxBytes) + 1024*1024,
	})

	middleware.Register(app, middleware.Config{
		Logger:    &logger,
		AccessLog: cfg.AppEnv == "development",
	})
	router.Register(app, cfg, router.Dependencies{
		EvaluationHandler: handler.NewEvaluationHandler(evaluationService, logger),
		QuestionHandler:   handler.NewQuestionHandler(questionService, logger),
		FeedbackHandler:   handler.NewFeedbackHandler(feedbackService, logger),
		SyllabusHandler:   handler.NewSyllabusHandler(syllabusService, logger),
		HealthProbes:      healthProbes,
		JWTMiddleware:     middleware.JWTProtected(cfg.JWTSecret),
	})

	logger.Info().
		Str("addr", cfg.HTTPAddress()).
		Str("ai_provider", model.Name()).
		Str("ocr_provider", extractor.Name()).
		Msg("starting exam marker api")

	go func() {
		if err := app.Listen(cfg.HTTPAddress()); err != nil {
			log.Fatalf("failed to start server: %v", err)
		}
	}()

	waitForShutdown(app)
}

func buildExtractor(ctx context.Context, cfg config.Config, logger zerolog.Logger) (ocr.Extractor, error) {
	switch cfg.OCRProvider {
	case "vision":
		return vision.New(ctx, vision.Config{
			APIKey:          cfg.VisionAPIKey,
			CredentialsFile: cfg.VisionCredentialsFile,
			LanguageHints:   cfg.OCRLanguages,
			Logger:          logger,
		})
	case "tesseract":
		return tesseract.New(tesseract.Config{
			Languages:      cfg.OCRLanguages,
			TessdataPrefix: cfg.TessdataPrefix,
			Logger:         logger,
		}), nil
	default:
		return nil, fmt.Errorf("unsupported ocr provider %q", cfg.OCRProvider)
	}
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

func buildChatModel(ctx context.Context, cfg config.Config, logger zerolog.Logger) (ai.ChatModel, io.Closer, error) {
	switch cfg.AIProvider {
	case "gemini":
		model, err := ai.NewGeminiModel(ctx, ai.GeminiConfig{
			APIKey: cfg.GeminiAPIKey,
			Model:  cfg.GeminiModel,
			Logger: logger,
		})
		if err != nil {
			return nil, nil, err
		}
		return model, model, nil
	case "openai":
		model, err := ai.NewOpenAIModel(ai.OpenAIConfig{
			APIKey:  cfg.OpenAIAPIKey,
			Model:   cfg.OpenAIModel,
			BaseURL: cfg.OpenAIBaseURL,
			Logger:  logger,
		})
		if err != nil {
			return nil, nil, err
		}
		return model, nopCloser{}, nil
	default:
		return nil, nil, fmt.Errorf("unsupported ai provider %q", cfg.AIProvider)
	}
}

func waitForShutdown(app *fiber.App) {
	shutdownCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-shutdownCtx.Done()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(ctx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
	}

	log.Println("server stopped")
}
