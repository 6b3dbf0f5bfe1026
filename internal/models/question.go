package models

import (
	"time"

	"gorm.io/datatypes"

	"github.com/noah-isme/exam-marker-api/pkg/ai"
)

const (
	// QuestionSourceSeed marks questions imported from the seed file.
	QuestionSourceSeed = "seed"
	// QuestionSourceSyllabus marks questions saved from a syllabus generation session.
	QuestionSourceSyllabus = "syllabus"
)

// Question is a bank entry holding everything needed to grade an answer.
type Question struct {
	ID            string                               `gorm:"primaryKey;size:128" json:"question_id"`
	Subject       string                               `gorm:"size:255;index" json:"subject"`
	Topic         string                               `gorm:"size:255" json:"topic"`
	Text          string                               `gorm:"column:question;type:text;not null" json:"question"`
	ModelAnswer   string                               `gorm:"type:text" json:"model_answer"`
	MaxMarks      int                                  `gorm:"not null" json:"max_marks"`
	MarkingScheme datatypes.JSONType[ai.MarkingScheme] `json:"marking_scheme"`
	Source        string                               `gorm:"size:32" json:"source"`
	CreatedAt     time.Time                            `json:"created_at"`
	UpdatedAt     time.Time                            `json:"updated_at"`
}

// Scheme returns the decoded marking scheme.
func (q Question) Scheme() ai.MarkingScheme {
	return q.MarkingScheme.Data()
}

// SchemeMatchesMaxMarks reports whether the criterion maxima add up to MaxMarks.
func (q Question) SchemeMatchesMaxMarks() bool {
	return q.Scheme().Total() == q.MaxMarks
}
