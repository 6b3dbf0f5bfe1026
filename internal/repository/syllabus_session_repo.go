package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/noah-isme/exam-marker-api/internal/models"
)

const syllabusSessionPrefix = "syllabus:session:"

// ErrSessionNotFound reports an unknown or expired syllabus session.
var ErrSessionNotFound = errors.New("syllabus session not found")

// SyllabusSessionRepository keeps unsaved generated questions with an expiry.
type SyllabusSessionRepository interface {
	Save(ctx context.Context, session models.SyllabusSession, ttl time.Duration) error
	Get(ctx context.Context, id string) (models.SyllabusSession, error)
	Delete(ctx context.Context, id string) error
}

type syllabusSessionRepository struct {
	client *redis.Client
}

// NewSyllabusSessionRepository instantiates a Redis-backed session store.
func NewSyllabusSessionRepository(client *redis.Client) SyllabusSessionRepository {
	return &syllabusSessionRepository{client: client}
}

func sessionKey(id string) string {
	return syllabusSessionPrefix + id
}

func (r *syllabusSessionRepository) Save(ctx context.Context, session models.SyllabusSession, ttl time.Duration) error {
	payload, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("encode syllabus session: %w", err)
	}
	return r.client.Set(ctx, sessionKey(session.ID), payload, ttl).Err()
}

func (r *syllabusSessionRepository) Get(ctx context.Context, id string) (models.SyllabusSession, error) {
	payload, err := r.client.Get(ctx, sessionKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return models.SyllabusSession{}, ErrSessionNotFound
	}
	if err != nil {
		return models.SyllabusSession{}, err
	}

	var session models.SyllabusSession
	if err := json.Unmarshal(payload, &session); err != nil {
		return models.SyllabusSession{}, fmt.Errorf("decode syllabus session: %w", err)
	}
	return session, nil
}

func (r *syllabusSessionRepository) Delete(ctx context.Context, id string) error {
	return r.client.Del(ctx, sessionKey(id)).Err()
}
