package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/noah-isme/exam-marker-api/internal/models"
)

// QuestionFilter narrows question bank queries.
type QuestionFilter struct {
	Subject string
	Topic   string
}

// QuestionRepository defines data operations for the question bank.
type QuestionRepository interface {
	List(ctx context.Context, filter QuestionFilter) ([]models.Question, error)
	GetByID(ctx context.Context, id string) (models.Question, error)
	UpsertBatch(ctx context.Context, items []models.Question) (int64, error)
}

type questionRepository struct {
	db *gorm.DB
}

// NewQuestionRepository instantiates the repository.
func NewQuestionRepository(db *gorm.DB) QuestionRepository {
	return &questionRepository{db: db}
}

func (r *questionRepository) List(ctx context.Context, filter QuestionFilter) ([]models.Question, error) {
	query := r.db.WithContext(ctx).Model(&models.Question{})

	if filter.Subject != "" {
		query = query.Where("subject = ?", filter.Subject)
	}

	if filter.Topic != "" {
		query = query.Where("topic = ?", filter.Topic)
	}

	var questions []models.Question
	if err := query.Order("created_at ASC, id ASC").Find(&questions).Error; err != nil {
		return nil, err
	}

	return questions, nil
}

func (r *questionRepository) GetByID(ctx context.Context, id string) (models.Question, error) {
	var question models.Question
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&question).Error; err != nil {
		return models.Question{}, err
	}

	return question, nil
}

func (r *questionRepository) UpsertBatch(ctx context.Context, items []models.Question) (int64, error) {
	if len(items) == 0 {
		return 0, nil
	}

	tx := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"subject", "topic", "question", "model_answer", "max_marks", "marking_scheme", "source", "updated_at"}),
	})

	result := tx.Create(&items)
	return result.RowsAffected, result.Error
}
