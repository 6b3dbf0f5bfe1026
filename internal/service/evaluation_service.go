package service

import (
	"bytes"
	"context"
	"errors"
	"io"
	"mime/multipart"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/noah-isme/exam-marker-api/internal/dto"
	"github.com/noah-isme/exam-marker-api/internal/events"
	"github.com/noah-isme/exam-marker-api/internal/middleware"
	"github.com/noah-isme/exam-marker-api/internal/models"
	"github.com/noah-isme/exam-marker-api/internal/observability"
	"github.com/noah-isme/exam-marker-api/internal/repository"
	"github.com/noah-isme/exam-marker-api/pkg/ai"
	"github.com/noah-isme/exam-marker-api/pkg/marking"
)

// ErrAnswerRequired indicates a blank typed answer.
var ErrAnswerRequired = errors.New("answer must not be empty")

// Evaluator runs the marking pipeline.
type Evaluator interface {
	Evaluate(ctx context.Context, materials marking.Materials, submission marking.Submission) marking.Outcome
	Extract(ctx context.Context, image []byte) (marking.ExtractedText, error)
}

// ImageArchive keeps a copy of submitted answer images.
type ImageArchive interface {
	Store(ctx context.Context, questionID, userID string, image io.Reader) (string, error)
}

// EvaluationService grades typed and handwritten answers.
type EvaluationService interface {
	SubmitAnswer(ctx context.Context, userID string, req dto.SubmitAnswerRequest) (dto.MarkReportResponse, error)
	SubmitImage(ctx context.Context, userID string, req dto.SubmitImageRequest, file *multipart.FileHeader) (dto.OCRResponse, error)
}

// EvaluationOptions configures optional collaborators of the evaluation service.
type EvaluationOptions struct {
	Archive        ImageArchive
	Publisher      events.Publisher
	MaxUploadBytes int64
}

type evaluationService struct {
	questions QuestionService
	evaluator Evaluator
	feedback  repository.FeedbackRepository
	archive   ImageArchive
	publisher events.Publisher
	validator *validator.Validate
	maxUpload int64
	logger    zerolog.Logger
	tracer    trace.Tracer
	now       func() time.Time
}

// NewEvaluationService constructs the evaluation service.
func NewEvaluationService(questions QuestionService, evaluator Evaluator, feedback repository.FeedbackRepository, validate *validator.Validate, opts EvaluationOptions, logger zerolog.Logger) EvaluationService {
	publisher := opts.Publisher
	if publisher == nil {
		publisher = events.Noop{}
	}
	maxUpload := opts.MaxUploadBytes
	if maxUpload <= 0 {
		maxUpload = 10 * 1024 * 1024
	}

	return &evaluationService{
		questions: questions,
		evaluator: evaluator,
		feedback:  feedback,
		archive:   opts.Archive,
		publisher: publisher,
		validator: validate,
		maxUpload: maxUpload,
		logger:    logger.With().Str("component", "evaluation_service").Logger(),
		tracer:    otel.Tracer("github.com/noah-isme/exam-marker-api/internal/service/evaluation"),
		now:       time.Now,
	}
}

func (s *evaluationService) SubmitAnswer(ctx context.Context, userID string, req dto.SubmitAnswerRequest) (dto.MarkReportResponse, error) {
	ctx, span := s.tracer.Start(ctx, "evaluation.submit_answer")
	defer span.End()

	if err := s.validator.Struct(req); err != nil {
		span.SetStatus(codes.Error, "validation failed")
		return dto.MarkReportResponse{}, err
	}
	answer := strings.TrimSpace(req.Answer)
	if answer == "" {
		span.SetStatus(codes.Error, "validation failed")
		return dto.MarkReportResponse{}, ErrAnswerRequired
	}
	span.SetAttributes(attribute.String("question_id", req.QuestionID))

	materials, err := s.questions.Materials(ctx, req.QuestionID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "question lookup failed")
		return dto.MarkReportResponse{}, err
	}

	outcome := s.evaluator.Evaluate(ctx, materials, marking.Submission{Text: answer})
	report := s.finalize(outcome.Report, userID)

	s.record(ctx, models.FeedbackSourceText, answer, "", report, outcome)
	s.count(models.FeedbackSourceText, outcome.Degraded(), true)
	if outcome.Degraded() {
		span.SetAttributes(attribute.String("failure_kind", string(outcome.Kind)))
	}

	return dto.MarkReportResponse{
		MarkReport:  report,
		Degraded:    outcome.Degraded(),
		FailureKind: string(outcome.Kind),
	}, nil
}

func (s *evaluationService) SubmitImage(ctx context.Context, userID string, req dto.SubmitImageRequest, file *multipart.FileHeader) (dto.OCRResponse, error) {
	ctx, span := s.tracer.Start(ctx, "evaluation.submit_image")
	defer span.End()

	if err := s.validator.Struct(req); err != nil {
		span.SetStatus(codes.Error, "validation failed")
		return dto.OCRResponse{}, err
	}
	span.SetAttributes(
		attribute.String("question_id", req.QuestionID),
		attribute.Bool("grade", req.Grade),
	)

	image, err := readUpload(file, s.maxUpload, isImageMime)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "upload rejected")
		return dto.OCRResponse{}, err
	}
	span.SetAttributes(
		attribute.String("upload.mime", image.Mime),
		attribute.Int("upload.size_bytes", len(image.Data)),
	)

	materials, err := s.questions.Materials(ctx, req.QuestionID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "question lookup failed")
		return dto.OCRResponse{}, err
	}

	imageURL := s.archiveImage(ctx, materials.QuestionID, userID, image.Data)

	if !req.Grade {
		resp := dto.OCRResponse{
			OCRResult: marking.OCRResult{QuestionID: materials.QuestionID},
			ImageURL:  imageURL,
		}
		text, err := s.evaluator.Extract(ctx, image.Data)
		if err != nil {
			resp.ExtractedText = marking.ExtractionMessage(err)
			resp.Degraded = true
			resp.FailureKind = string(marking.Classify(err))
			span.RecordError(err)
		} else {
			resp.ExtractedText = text.Cleaned
		}
		s.count(models.FeedbackSourceImage, resp.Degraded, false)
		return resp, nil
	}

	outcome := s.evaluator.Evaluate(ctx, materials, marking.Submission{Image: image.Data})
	result := marking.NewOCRResult(materials.QuestionID, outcome)
	report := s.finalize(outcome.Report, userID)
	result.Feedback = &report

	answer := ""
	if outcome.Text != nil {
		answer = outcome.Text.Cleaned
	}
	s.record(ctx, models.FeedbackSourceImage, answer, imageURL, report, outcome)
	s.count(models.FeedbackSourceImage, outcome.Degraded(), true)
	if outcome.Degraded() {
		span.SetAttributes(attribute.String("failure_kind", string(outcome.Kind)))
	}

	return dto.OCRResponse{
		OCRResult:   result,
		ImageURL:    imageURL,
		Degraded:    outcome.Degraded(),
		FailureKind: string(outcome.Kind),
	}, nil
}

// finalize stamps the submitter. Model-authored text is kept verbatim; it only
// ever leaves the service JSON-encoded.
func (s *evaluationService) finalize(report ai.MarkReport, userID string) ai.MarkReport {
	report.OverallFeedback = strings.TrimSpace(report.OverallFeedback)
	points := make([]ai.MarkingPoint, len(report.DetailedMarking))
	for i, p := range report.DetailedMarking {
		p.Feedback = strings.TrimSpace(p.Feedback)
		p.Explanation = strings.TrimSpace(p.Explanation)
		points[i] = p
	}
	report.DetailedMarking = points

	created := s.now().UTC()
	report.UserID = userID
	report.CreatedAt = &created
	return report
}

func (s *evaluationService) archiveImage(ctx context.Context, questionID, userID string, data []byte) string {
	if s.archive == nil {
		return ""
	}
	url, err := s.archive.Store(ctx, questionID, userID, bytes.NewReader(data))
	if err != nil {
		logger := middleware.LoggerWithCorrelation(ctx, s.logger)
		logger.Warn().Err(err).Str("question_id", questionID).Msg("failed to archive answer image")
		return ""
	}
	return url
}

// record persists and announces a report. Failures are logged and never surface to the caller.
func (s *evaluationService) record(ctx context.Context, source, answer, imageURL string, report ai.MarkReport, outcome marking.Outcome) {
	record := models.FeedbackRecord{
		QuestionID:          report.QuestionID,
		UserID:              report.UserID,
		Source:              source,
		Answer:              answer,
		ImageURL:            imageURL,
		TotalMarksAvailable: report.TotalMarksAvailable,
		TotalMarksAwarded:   report.TotalMarksAwarded,
		OverallFeedback:     report.OverallFeedback,
		DetailedMarking:     report.DetailedMarking,
		Degraded:            outcome.Degraded(),
		FailureKind:         string(outcome.Kind),
		CreatedAt:           *report.CreatedAt,
	}

	logger := middleware.LoggerWithCorrelation(ctx, s.logger)
	if s.feedback != nil {
		if err := s.feedback.Create(ctx, &record); err != nil {
			logger.Error().Err(err).Str("question_id", record.QuestionID).Msg("failed to store feedback")
		}
	}

	event := events.EvaluationCompleted{
		QuestionID:          record.QuestionID,
		UserID:              record.UserID,
		Source:              source,
		TotalMarksAwarded:   record.TotalMarksAwarded,
		TotalMarksAvailable: record.TotalMarksAvailable,
		Degraded:            record.Degraded,
		FailureKind:         record.FailureKind,
		CorrelationID:       middleware.CorrelationIDFromContext(ctx),
		CreatedAt:           record.CreatedAt,
	}
	if err := s.publisher.PublishEvaluation(ctx, event); err != nil {
		logger.Warn().Err(err).Str("question_id", record.QuestionID).Msg("failed to publish evaluation event")
	}
}

func (s *evaluationService) count(source string, degraded, graded bool) {
	outcome := "extracted"
	switch {
	case degraded:
		outcome = "degraded"
	case graded:
		outcome = "graded"
	}
	observability.Evaluations().WithLabelValues(source, outcome).Inc()
}
