package models

import (
	"time"

	"github.com/noah-isme/exam-marker-api/pkg/ai"
)

// SyllabusSession holds generated questions awaiting review. It lives in Redis
// with an expiry and is never written to the relational store.
type SyllabusSession struct {
	ID        string                 `json:"session_id"`
	Subject   string                 `json:"subject"`
	CreatedBy string                 `json:"created_by"`
	Questions []ai.GeneratedQuestion `json:"questions"`
	CreatedAt time.Time              `json:"created_at"`
	ExpiresAt time.Time              `json:"expires_at"`
}
