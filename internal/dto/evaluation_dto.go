package dto

import (
	"github.com/noah-isme/exam-marker-api/pkg/ai"
	"github.com/noah-isme/exam-marker-api/pkg/marking"
)

// SubmitAnswerRequest carries a typed answer for grading.
type SubmitAnswerRequest struct {
	QuestionID string `json:"question_id" validate:"required,max=128"`
	Answer     string `json:"answer" validate:"required"`
}

// SubmitImageRequest describes the multipart fields accompanying an answer image.
type SubmitImageRequest struct {
	QuestionID string `form:"question_id" validate:"required,max=128"`
	Grade      bool   `form:"grade"`
}

// MarkReportResponse is returned for graded submissions.
type MarkReportResponse struct {
	ai.MarkReport
	Degraded    bool   `json:"degraded"`
	FailureKind string `json:"failure_kind,omitempty"`
}

// OCRResponse is returned for image submissions.
type OCRResponse struct {
	marking.OCRResult
	ImageURL    string `json:"image_url,omitempty"`
	Degraded    bool   `json:"degraded"`
	FailureKind string `json:"failure_kind,omitempty"`
}

// FeedbackQuery filters the caller's feedback history.
type FeedbackQuery struct {
	QuestionID string `query:"question_id" validate:"omitempty,max=128"`
	Page       int    `query:"page" validate:"omitempty,gte=1"`
	PageSize   int    `query:"page_size" validate:"omitempty,gte=1,lte=100"`
}

// FeedbackItem is one stored report in the history listing.
type FeedbackItem struct {
	ID uint `json:"id"`
	ai.MarkReport
	Source      string `json:"source"`
	ImageURL    string `json:"image_url,omitempty"`
	Degraded    bool   `json:"degraded"`
	FailureKind string `json:"failure_kind,omitempty"`
}

// PaginationMeta describes a paginated listing.
type PaginationMeta struct {
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	TotalItems int64 `json:"total_items"`
	TotalPages int   `json:"total_pages"`
}

// FeedbackListResponse wraps a page of feedback history.
type FeedbackListResponse struct {
	Items      []FeedbackItem `json:"items"`
	Pagination PaginationMeta `json:"pagination"`
}
