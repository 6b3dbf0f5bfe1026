package models

import (
	"time"

	"gorm.io/datatypes"

	"github.com/noah-isme/exam-marker-api/pkg/ai"
)

const (
	FeedbackSourceText  = "text"
	FeedbackSourceImage = "image"
)

// FeedbackRecord stores one mark report, including degraded ones.
type FeedbackRecord struct {
	ID                  uint                                 `gorm:"primaryKey" json:"id"`
	QuestionID          string                               `gorm:"size:128;index;not null" json:"question_id"`
	UserID              string                               `gorm:"size:128;index" json:"user_id"`
	Source              string                               `gorm:"size:16;not null" json:"source"`
	Answer              string                               `gorm:"type:text" json:"answer"`
	ImageURL            string                               `gorm:"size:512" json:"image_url,omitempty"`
	TotalMarksAvailable int                                  `json:"total_marks_available"`
	TotalMarksAwarded   int                                  `json:"total_marks_awarded"`
	OverallFeedback     string                               `gorm:"type:text" json:"overall_feedback"`
	DetailedMarking     datatypes.JSONSlice[ai.MarkingPoint] `json:"detailed_marking"`
	Degraded            bool                                 `json:"degraded"`
	FailureKind         string                               `gorm:"size:32" json:"failure_kind,omitempty"`
	CreatedAt           time.Time                            `gorm:"index" json:"created_at"`
}

// Report converts the record back into the report shape returned to clients.
func (r FeedbackRecord) Report() ai.MarkReport {
	created := r.CreatedAt
	points := []ai.MarkingPoint(r.DetailedMarking)
	if points == nil {
		points = []ai.MarkingPoint{}
	}
	return ai.MarkReport{
		QuestionID:          r.QuestionID,
		TotalMarksAvailable: r.TotalMarksAvailable,
		TotalMarksAwarded:   r.TotalMarksAwarded,
		OverallFeedback:     r.OverallFeedback,
		DetailedMarking:     points,
		UserID:              r.UserID,
		CreatedAt:           &created,
	}
}
