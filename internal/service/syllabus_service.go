package service

import (
	"context"
	"errors"
	"fmt"
	"html"
	"mime/multipart"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/microcosm-cc/bluemonday"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/noah-isme/exam-marker-api/internal/dto"
	"github.com/noah-isme/exam-marker-api/internal/models"
	"github.com/noah-isme/exam-marker-api/internal/repository"
	"github.com/noah-isme/exam-marker-api/pkg/ai"
)

var (
	// ErrSessionStoreUnavailable indicates no Redis connection was configured.
	ErrSessionStoreUnavailable = errors.New("syllabus session store is not configured")
	// ErrSyllabusSessionNotFound indicates the session expired or never existed.
	ErrSyllabusSessionNotFound = errors.New("syllabus session not found")
)

const defaultSyllabusSubject = "General"

// QuestionGenerator drafts questions from syllabus text.
type QuestionGenerator interface {
	Generate(ctx context.Context, req ai.GenerationRequest) ([]ai.GeneratedQuestion, error)
}

// SyllabusService turns syllabus text into reviewable question drafts.
type SyllabusService interface {
	Generate(ctx context.Context, userID string, req dto.GenerateQuestionsRequest) (dto.SyllabusSessionResponse, error)
	GenerateFromFile(ctx context.Context, userID string, req dto.GenerateQuestionsRequest, file *multipart.FileHeader) (dto.SyllabusSessionResponse, error)
	GetSession(ctx context.Context, id string) (dto.SyllabusSessionResponse, error)
	SaveSession(ctx context.Context, id string) (dto.SaveSessionResponse, error)
}

type syllabusService struct {
	generator QuestionGenerator
	sessions  repository.SyllabusSessionRepository
	questions repository.QuestionRepository
	validator *validator.Validate
	ttl       time.Duration
	maxUpload int64
	stripper  *bluemonday.Policy
	logger    zerolog.Logger
	tracer    trace.Tracer
	now       func() time.Time
}

// NewSyllabusService constructs the syllabus service. sessions may be nil when
// Redis is not configured, in which case every operation reports ErrSessionStoreUnavailable.
func NewSyllabusService(generator QuestionGenerator, sessions repository.SyllabusSessionRepository, questions repository.QuestionRepository, validate *validator.Validate, ttl time.Duration, maxUpload int64, logger zerolog.Logger) SyllabusService {
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	if maxUpload <= 0 {
		maxUpload = 10 * 1024 * 1024
	}
	return &syllabusService{
		generator: generator,
		sessions:  sessions,
		questions: questions,
		validator: validate,
		ttl:       ttl,
		maxUpload: maxUpload,
		stripper:  bluemonday.StrictPolicy().AddSpaceWhenStrippingTag(true),
		logger:    logger.With().Str("component", "syllabus_service").Logger(),
		tracer:    otel.Tracer("github.com/noah-isme/exam-marker-api/internal/service/syllabus"),
		now:       time.Now,
	}
}

func (s *syllabusService) Generate(ctx context.Context, userID string, req dto.GenerateQuestionsRequest) (dto.SyllabusSessionResponse, error) {
	ctx, span := s.tracer.Start(ctx, "syllabus.generate")
	defer span.End()

	if s.sessions == nil {
		span.SetStatus(codes.Error, "session store unavailable")
		return dto.SyllabusSessionResponse{}, ErrSessionStoreUnavailable
	}
	if err := s.validator.Struct(req); err != nil {
		span.SetStatus(codes.Error, "validation failed")
		return dto.SyllabusSessionResponse{}, err
	}

	subject := strings.TrimSpace(req.Subject)
	if subject == "" {
		subject = defaultSyllabusSubject
	}
	count := ai.ClampQuestionCount(req.QuestionCount)
	span.SetAttributes(attribute.String("subject", subject), attribute.Int("question_count", count))

	drafts, err := s.generator.Generate(ctx, ai.GenerationRequest{
		Subject:       subject,
		Syllabus:      req.SyllabusText,
		QuestionCount: count,
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "generation failed")
		return dto.SyllabusSessionResponse{}, err
	}

	created := s.now().UTC()
	session := models.SyllabusSession{
		ID:        uuid.NewString(),
		Subject:   subject,
		CreatedBy: userID,
		Questions: drafts,
		CreatedAt: created,
		ExpiresAt: created.Add(s.ttl),
	}
	if err := s.sessions.Save(ctx, session, s.ttl); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "session store failed")
		return dto.SyllabusSessionResponse{}, err
	}

	s.logger.Info().
		Str("session_id", session.ID).
		Str("subject", subject).
		Int("questions", len(drafts)).
		Msg("syllabus session created")

	return toSessionResponse(session), nil
}

func (s *syllabusService) GenerateFromFile(ctx context.Context, userID string, req dto.GenerateQuestionsRequest, file *multipart.FileHeader) (dto.SyllabusSessionResponse, error) {
	syllabus, err := readUpload(file, s.maxUpload, isSyllabusMime)
	if err != nil {
		return dto.SyllabusSessionResponse{}, err
	}
	req.SyllabusText = s.syllabusText(syllabus)
	return s.Generate(ctx, userID, req)
}

// syllabusText returns the upload as plain text. HTML exports lose their markup,
// script and style content; entities decode to the characters they stand for.
func (s *syllabusService) syllabusText(u upload) string {
	if u.Mime != "text/html" {
		return string(u.Data)
	}
	text := html.UnescapeString(string(s.stripper.SanitizeBytes(u.Data)))
	return strings.Join(strings.Fields(text), " ")
}

func (s *syllabusService) GetSession(ctx context.Context, id string) (dto.SyllabusSessionResponse, error) {
	session, err := s.load(ctx, id)
	if err != nil {
		return dto.SyllabusSessionResponse{}, err
	}
	return toSessionResponse(session), nil
}

func (s *syllabusService) SaveSession(ctx context.Context, id string) (dto.SaveSessionResponse, error) {
	ctx, span := s.tracer.Start(ctx, "syllabus.save_session")
	defer span.End()

	session, err := s.load(ctx, id)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "session lookup failed")
		return dto.SaveSessionResponse{}, err
	}

	items := make([]models.Question, 0, len(session.Questions))
	ids := make([]string, 0, len(session.Questions))
	seen := make(map[string]struct{}, len(session.Questions))
	for i, draft := range session.Questions {
		base := SessionQuestionID(session.ID, draft.QuestionID, i)
		questionID := base
		for n := i + 1; ; n++ {
			if _, dup := seen[questionID]; !dup {
				break
			}
			questionID = fmt.Sprintf("%s-%d", base, n)
		}
		seen[questionID] = struct{}{}
		items = append(items, questionFromGenerated(session.Subject, questionID, draft, models.QuestionSourceSyllabus))
		ids = append(ids, questionID)
	}

	saved, err := s.questions.UpsertBatch(ctx, items)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "persistence failed")
		return dto.SaveSessionResponse{}, err
	}

	if err := s.sessions.Delete(ctx, session.ID); err != nil {
		s.logger.Warn().Err(err).Str("session_id", session.ID).Msg("failed to delete saved syllabus session")
	}

	s.logger.Info().Str("session_id", session.ID).Int64("saved", saved).Msg("syllabus session saved to question bank")

	return dto.SaveSessionResponse{SessionID: session.ID, Saved: saved, QuestionIDs: ids}, nil
}

func (s *syllabusService) load(ctx context.Context, id string) (models.SyllabusSession, error) {
	if s.sessions == nil {
		return models.SyllabusSession{}, ErrSessionStoreUnavailable
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return models.SyllabusSession{}, ErrSyllabusSessionNotFound
	}
	session, err := s.sessions.Get(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrSessionNotFound) {
			return models.SyllabusSession{}, ErrSyllabusSessionNotFound
		}
		return models.SyllabusSession{}, err
	}
	return session, nil
}

// SessionQuestionID scopes a generated id like "SQ1" to its session so saved drafts
// from different sessions never overwrite each other.
func SessionQuestionID(sessionID, questionID string, index int) string {
	prefix := strings.ReplaceAll(sessionID, "-", "")
	if len(prefix) > 8 {
		prefix = prefix[:8]
	}
	questionID = strings.TrimSpace(questionID)
	if questionID == "" {
		questionID = fmt.Sprintf("SQ%d", index+1)
	}
	return prefix + "-" + questionID
}

func toSessionResponse(session models.SyllabusSession) dto.SyllabusSessionResponse {
	questions := session.Questions
	if questions == nil {
		questions = []ai.GeneratedQuestion{}
	}
	return dto.SyllabusSessionResponse{
		SessionID: session.ID,
		Subject:   session.Subject,
		Questions: questions,
		CreatedAt: session.CreatedAt,
		ExpiresAt: session.ExpiresAt,
	}
}
