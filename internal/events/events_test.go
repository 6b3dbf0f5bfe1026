package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

type recordingConn struct {
	subject string
	data    []byte
	err     error
}

func (r *recordingConn) Publish(subject string, data []byte) error {
	r.subject = subject
	r.data = data
	return r.err
}

func TestPublishEvaluationEncodesEvent(t *testing.T) {
	conn := &recordingConn{}
	publisher := newPublisher(conn, "marker.evaluations.completed", zerolog.Nop())

	created := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	err := publisher.PublishEvaluation(context.Background(), EvaluationCompleted{
		QuestionID:          "Q1",
		UserID:              "u1",
		Source:              "image",
		TotalMarksAwarded:   7,
		TotalMarksAvailable: 10,
		CreatedAt:           created,
	})
	require.NoError(t, err)
	require.Equal(t, "marker.evaluations.completed", conn.subject)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(conn.data, &decoded))
	require.Equal(t, "Q1", decoded["question_id"])
	require.Equal(t, "image", decoded["source"])
	require.Equal(t, float64(7), decoded["total_marks_awarded"])
	require.Equal(t, false, decoded["degraded"])
	require.NotContains(t, decoded, "failure_kind")
}

func TestPublishEvaluationSurfacesErrors(t *testing.T) {
	publisher := newPublisher(&recordingConn{err: errors.New("no servers")}, "s", zerolog.Nop())
	err := publisher.PublishEvaluation(context.Background(), EvaluationCompleted{})
	require.Error(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err = newPublisher(&recordingConn{}, "s", zerolog.Nop()).PublishEvaluation(ctx, EvaluationCompleted{})
	require.ErrorIs(t, err, context.Canceled)
}

func TestNoopPublisher(t *testing.T) {
	require.NoError(t, Noop{}.PublishEvaluation(context.Background(), EvaluationCompleted{}))
}
