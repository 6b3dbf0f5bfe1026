// Package events publishes evaluation lifecycle messages to NATS.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"
)

// EvaluationCompleted is emitted once per stored mark report.
type EvaluationCompleted struct {
	QuestionID          string    `json:"question_id"`
	UserID              string    `json:"user_id"`
	Source              string    `json:"source"`
	TotalMarksAwarded   int       `json:"total_marks_awarded"`
	TotalMarksAvailable int       `json:"total_marks_available"`
	Degraded            bool      `json:"degraded"`
	FailureKind         string    `json:"failure_kind,omitempty"`
	CorrelationID       string    `json:"correlation_id,omitempty"`
	CreatedAt           time.Time `json:"created_at"`
}

// Publisher delivers evaluation events.
type Publisher interface {
	PublishEvaluation(ctx context.Context, event EvaluationCompleted) error
}

// natsPublisher is the subset of *nats.Conn used for publishing.
type natsPublisher interface {
	Publish(subject string, data []byte) error
}

// NATSPublisher publishes events on a fixed subject.
type NATSPublisher struct {
	conn    natsPublisher
	subject string
	logger  zerolog.Logger
}

// NewNATSPublisher wraps an open connection.
func NewNATSPublisher(conn *nats.Conn, subject string, logger zerolog.Logger) *NATSPublisher {
	return newPublisher(conn, subject, logger)
}

func newPublisher(conn natsPublisher, subject string, logger zerolog.Logger) *NATSPublisher {
	return &NATSPublisher{
		conn:    conn,
		subject: subject,
		logger:  logger.With().Str("component", "events").Logger(),
	}
}

// PublishEvaluation serialises the event and publishes it. Delivery is fire-and-forget.
func (p *NATSPublisher) PublishEvaluation(ctx context.Context, event EvaluationCompleted) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode evaluation event: %w", err)
	}
	if err := p.conn.Publish(p.subject, payload); err != nil {
		return fmt.Errorf("publish evaluation event: %w", err)
	}
	p.logger.Debug().
		Str("subject", p.subject).
		Str("question_id", event.QuestionID).
		Bool("degraded", event.Degraded).
		Msg("evaluation event published")
	return nil
}

// Connect dials NATS with reconnect settings suited to a long-lived API process.
func Connect(url, name string, logger zerolog.Logger) (*nats.Conn, error) {
	conn, err := nats.Connect(url,
		nats.Name(name),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn().Err(err).Msg("nats disconnected")
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			logger.Info().Str("url", c.ConnectedUrl()).Msg("nats reconnected")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	return conn, nil
}

// Noop discards events when no broker is configured.
type Noop struct{}

// PublishEvaluation implements Publisher.
func (Noop) PublishEvaluation(context.Context, EvaluationCompleted) error { return nil }

var (
	_ Publisher = (*NATSPublisher)(nil)
	_ Publisher = Noop{}
)
