package ai

import (
	"context"
	"sort"
	"time"
)

// MarkingScheme maps a criterion name to the maximum points it carries.
type MarkingScheme map[string]int

// Total sums the per-criterion maxima.
func (s MarkingScheme) Total() int {
	total := 0
	for _, v := range s {
		total += v
	}
	return total
}

// Criteria returns the criterion names in lexical order.
func (s MarkingScheme) Criteria() []string {
	names := make([]string, 0, len(s))
	for name := range s {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// GradingRequest carries everything the grader needs to mark one answer.
type GradingRequest struct {
	QuestionID  string
	Question    string
	Answer      string
	ModelAnswer string
	Scheme      MarkingScheme
	MaxMarks    int
	Topic       string
}

// MarkingPoint is the grade for a single criterion.
type MarkingPoint struct {
	Criterion   string `json:"criterion"`
	MaxMark     int    `json:"max_mark"`
	AwardedMark int    `json:"awarded_mark"`
	Feedback    string `json:"feedback"`
	Explanation string `json:"explanation"`
}

// MarkReport is the validated outcome of grading one answer.
type MarkReport struct {
	QuestionID          string         `json:"question_id"`
	TotalMarksAvailable int            `json:"total_marks_available"`
	TotalMarksAwarded   int            `json:"total_marks_awarded"`
	OverallFeedback     string         `json:"overall_feedback"`
	DetailedMarking     []MarkingPoint `json:"detailed_marking"`
	UserID              string         `json:"user_id,omitempty"`
	CreatedAt           *time.Time     `json:"created_at,omitempty"`
}

// AwardedSum adds up the awarded marks of every point.
func (r MarkReport) AwardedSum() int {
	sum := 0
	for _, p := range r.DetailedMarking {
		sum += p.AwardedMark
	}
	return sum
}

// ChatModel is a chat-completion backend that returns the text of a single reply.
type ChatModel interface {
	Name() string
	Complete(ctx context.Context, prompt Prompt) (string, error)
}
