package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/noah-isme/exam-marker-api/internal/models"
)

// FeedbackFilter allows narrowing feedback history queries.
type FeedbackFilter struct {
	UserID     string
	QuestionID string
	Page       int
	PageSize   int
}

// FeedbackRepository stores mark reports.
type FeedbackRepository interface {
	Create(ctx context.Context, record *models.FeedbackRecord) error
	List(ctx context.Context, filter FeedbackFilter) ([]models.FeedbackRecord, int64, error)
}

type feedbackRepository struct {
	db *gorm.DB
}

// NewFeedbackRepository instantiates the repository.
func NewFeedbackRepository(db *gorm.DB) FeedbackRepository {
	return &feedbackRepository{db: db}
}

func (r *feedbackRepository) Create(ctx context.Context, record *models.FeedbackRecord) error {
	return r.db.WithContext(ctx).Create(record).Error
}

func (r *feedbackRepository) List(ctx context.Context, filter FeedbackFilter) ([]models.FeedbackRecord, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.FeedbackRecord{})

	if filter.UserID != "" {
		query = query.Where("user_id = ?", filter.UserID)
	}

	if filter.QuestionID != "" {
		query = query.Where("question_id = ?", filter.QuestionID)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	page := filter.Page
	if page <= 0 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}

	var records []models.FeedbackRecord
	if err := query.Order("created_at DESC, id DESC").
		Offset((page - 1) * size).
		Limit(size).
		Find(&records).Error; err != nil {
		return nil, 0, err
	}

	return records, total, nil
}
