package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/noah-isme/exam-marker-api/internal/dto"
	"github.com/noah-isme/exam-marker-api/internal/models"
	"github.com/noah-isme/exam-marker-api/internal/repository"
	"github.com/noah-isme/exam-marker-api/pkg/ai"
	"github.com/noah-isme/exam-marker-api/pkg/marking"
)

var (
	// ErrQuestionNotFound indicates the requested question id is not in the bank.
	ErrQuestionNotFound = errors.New("question not found")
	// ErrInvalidQuestionSeed indicates a seed entry that cannot be marked against.
	ErrInvalidQuestionSeed = errors.New("invalid question seed entry")
)

// QuestionService exposes the question bank.
type QuestionService interface {
	List(ctx context.Context, subject string) (dto.QuestionListResponse, error)
	Get(ctx context.Context, id string) (dto.QuestionResponse, error)
	Materials(ctx context.Context, id string) (marking.Materials, error)
	Seed(ctx context.Context, r io.Reader) (int64, error)
	SeedFile(ctx context.Context, path string) (int64, error)
}

type questionService struct {
	repo   repository.QuestionRepository
	logger zerolog.Logger
}

// NewQuestionService constructs the question bank service.
func NewQuestionService(repo repository.QuestionRepository, logger zerolog.Logger) QuestionService {
	return &questionService{
		repo:   repo,
		logger: logger.With().Str("component", "question_service").Logger(),
	}
}

func (s *questionService) List(ctx context.Context, subject string) (dto.QuestionListResponse, error) {
	items, err := s.repo.List(ctx, repository.QuestionFilter{Subject: strings.TrimSpace(subject)})
	if err != nil {
		return dto.QuestionListResponse{}, err
	}

	resp := dto.QuestionListResponse{
		Subject:   strings.TrimSpace(subject),
		Questions: make([]dto.QuestionResponse, 0, len(items)),
	}
	for _, item := range items {
		if resp.Subject == "" {
			resp.Subject = item.Subject
		}
		resp.Questions = append(resp.Questions, toQuestionResponse(item))
	}
	return resp, nil
}

func (s *questionService) Get(ctx context.Context, id string) (dto.QuestionResponse, error) {
	question, err := s.find(ctx, id)
	if err != nil {
		return dto.QuestionResponse{}, err
	}
	return toQuestionResponse(question), nil
}

func (s *questionService) Materials(ctx context.Context, id string) (marking.Materials, error) {
	question, err := s.find(ctx, id)
	if err != nil {
		return marking.Materials{}, err
	}
	return marking.Materials{
		QuestionID:  question.ID,
		Question:    question.Text,
		ModelAnswer: question.ModelAnswer,
		Scheme:      question.Scheme(),
		MaxMarks:    question.MaxMarks,
		Topic:       question.Topic,
	}, nil
}

func (s *questionService) find(ctx context.Context, id string) (models.Question, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return models.Question{}, ErrQuestionNotFound
	}
	question, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Question{}, ErrQuestionNotFound
		}
		return models.Question{}, err
	}
	return question, nil
}

// Seed upserts the questions of a seed document into the bank.
func (s *questionService) Seed(ctx context.Context, r io.Reader) (int64, error) {
	var seed dto.QuestionSeedFile
	if err := json.NewDecoder(r).Decode(&seed); err != nil {
		return 0, fmt.Errorf("decode question seed: %w", err)
	}

	items := make([]models.Question, 0, len(seed.Questions))
	for i, q := range seed.Questions {
		id := strings.TrimSpace(q.QuestionID)
		if err := validateSeedEntry(id, q); err != nil {
			return 0, fmt.Errorf("%w %d: %s", ErrInvalidQuestionSeed, i, err.Error())
		}
		items = append(items, questionFromGenerated(seed.Subject, id, q, models.QuestionSourceSeed))
	}

	s.warnMismatchedSchemes(items)

	affected, err := s.repo.UpsertBatch(ctx, items)
	if err != nil {
		return 0, err
	}
	s.logger.Info().Int64("affected", affected).Str("subject", seed.Subject).Msg("question bank seeded")
	return affected, nil
}

// SeedFile seeds from path. A missing file is logged and skipped.
func (s *questionService) SeedFile(ctx context.Context, path string) (int64, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			s.logger.Warn().Str("path", path).Msg("question seed file not found; skipping")
			return 0, nil
		}
		return 0, err
	}
	defer f.Close()

	return s.Seed(ctx, f)
}

func validateSeedEntry(id string, q ai.GeneratedQuestion) error {
	if id == "" || strings.TrimSpace(q.Question) == "" {
		return errors.New("question_id and question are required")
	}
	if q.MaxMarks < 0 {
		return fmt.Errorf("max_marks %d is negative", q.MaxMarks)
	}
	for criterion, mark := range q.MarkingScheme {
		if strings.TrimSpace(criterion) == "" {
			return errors.New("marking scheme criterion must not be empty")
		}
		if mark < 0 {
			return fmt.Errorf("marking scheme %q has negative value %d", criterion, mark)
		}
	}
	return nil
}

func (s *questionService) warnMismatchedSchemes(items []models.Question) {
	for _, item := range items {
		if !item.SchemeMatchesMaxMarks() {
			s.logger.Warn().
				Str("question_id", item.ID).
				Int("max_marks", item.MaxMarks).
				Int("scheme_total", item.Scheme().Total()).
				Msg("marking scheme total differs from max marks")
		}
	}
}

func questionFromGenerated(subject, id string, q ai.GeneratedQuestion, source string) models.Question {
	scheme := q.MarkingScheme
	if scheme == nil {
		scheme = ai.MarkingScheme{}
	}
	return models.Question{
		ID:            id,
		Subject:       strings.TrimSpace(subject),
		Topic:         strings.TrimSpace(q.Topic),
		Text:          q.Question,
		ModelAnswer:   q.ModelAnswer,
		MaxMarks:      q.MaxMarks,
		MarkingScheme: datatypes.NewJSONType(scheme),
		Source:        source,
	}
}

func toQuestionResponse(q models.Question) dto.QuestionResponse {
	scheme := q.Scheme()
	if scheme == nil {
		scheme = ai.MarkingScheme{}
	}
	return dto.QuestionResponse{
		QuestionID:    q.ID,
		Subject:       q.Subject,
		Topic:         q.Topic,
		Question:      q.Text,
		MaxMarks:      q.MaxMarks,
		MarkingScheme: scheme,
		Source:        q.Source,
	}
}
