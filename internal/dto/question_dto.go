package dto

import (
	"time"

	"github.com/noah-isme/exam-marker-api/pkg/ai"
)

// QuestionResponse exposes a bank question. The model answer is never included.
type QuestionResponse struct {
	QuestionID    string           `json:"question_id"`
	Subject       string           `json:"subject"`
	Topic         string           `json:"topic"`
	Question      string           `json:"question"`
	MaxMarks      int              `json:"max_marks"`
	MarkingScheme ai.MarkingScheme `json:"marking_scheme"`
	Source        string           `json:"source"`
}

// QuestionListResponse groups bank questions under their subject.
type QuestionListResponse struct {
	Subject   string             `json:"subject"`
	Questions []QuestionResponse `json:"questions"`
}

// QuestionSeedFile is the on-disk layout of the question bank seed.
type QuestionSeedFile struct {
	Subject   string                 `json:"subject"`
	Questions []ai.GeneratedQuestion `json:"questions"`
}

// GenerateQuestionsRequest asks for questions generated from syllabus text.
type GenerateQuestionsRequest struct {
	Subject       string `json:"subject" form:"subject" validate:"omitempty,max=255"`
	SyllabusText  string `json:"syllabus_text" form:"syllabus_text" validate:"required"`
	QuestionCount int    `json:"question_count" form:"question_count"`
}

// SyllabusSessionResponse returns a generated draft.
type SyllabusSessionResponse struct {
	SessionID string                 `json:"session_id"`
	Subject   string                 `json:"subject"`
	Questions []ai.GeneratedQuestion `json:"questions"`
	CreatedAt time.Time              `json:"created_at"`
	ExpiresAt time.Time              `json:"expires_at"`
}

// SaveSessionResponse reports the questions written to the bank.
type SaveSessionResponse struct {
	SessionID   string   `json:"session_id"`
	Saved       int64    `json:"saved"`
	QuestionIDs []string `json:"question_ids"`
}
