package service

import (
	"context"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/noah-isme/exam-marker-api/internal/dto"
	"github.com/noah-isme/exam-marker-api/internal/repository"
)

// ErrFeedbackUserRequired indicates the history was requested without a caller identity.
var ErrFeedbackUserRequired = errors.New("user id is required")

const (
	defaultFeedbackPageSize = 20
	maxFeedbackPageSize     = 100
)

// FeedbackService lists stored mark reports.
type FeedbackService interface {
	List(ctx context.Context, userID string, query dto.FeedbackQuery) (dto.FeedbackListResponse, error)
}

type feedbackService struct {
	repo      repository.FeedbackRepository
	validator *validator.Validate
}

// NewFeedbackService constructs the feedback history service.
func NewFeedbackService(repo repository.FeedbackRepository, validate *validator.Validate) FeedbackService {
	return &feedbackService{repo: repo, validator: validate}
}

func (s *feedbackService) List(ctx context.Context, userID string, query dto.FeedbackQuery) (dto.FeedbackListResponse, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return dto.FeedbackListResponse{}, ErrFeedbackUserRequired
	}
	if err := s.validator.Struct(query); err != nil {
		return dto.FeedbackListResponse{}, err
	}

	page := query.Page
	if page <= 0 {
		page = 1
	}
	size := query.PageSize
	if size <= 0 {
		size = defaultFeedbackPageSize
	}
	if size > maxFeedbackPageSize {
		size = maxFeedbackPageSize
	}

	records, total, err := s.repo.List(ctx, repository.FeedbackFilter{
		UserID:     userID,
		QuestionID: strings.TrimSpace(query.QuestionID),
		Page:       page,
		PageSize:   size,
	})
	if err != nil {
		return dto.FeedbackListResponse{}, err
	}

	items := make([]dto.FeedbackItem, 0, len(records))
	for _, record := range records {
		items = append(items, dto.FeedbackItem{
			ID:          record.ID,
			MarkReport:  record.Report(),
			Source:      record.Source,
			ImageURL:    record.ImageURL,
			Degraded:    record.Degraded,
			FailureKind: record.FailureKind,
		})
	}

	totalPages := 0
	if total > 0 {
		totalPages = int((total + int64(size) - 1) / int64(size))
	}

	return dto.FeedbackListResponse{
		Items: items,
		Pagination: dto.PaginationMeta{
			Page:       page,
			PageSize:   size,
			TotalItems: total,
			TotalPages: totalPages,
		},
	}, nil
}
