package ai

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
)

// ErrCompletion reports that the chat backend could not produce a reply.
var ErrCompletion = errors.New("grading completion failed")

// LLMGrader marks answers with a chat model and validates the reply.
type LLMGrader struct {
	model  ChatModel
	opts   PromptOptions
	logger zerolog.Logger
}

// NewLLMGrader wires a chat model into a grader.
func NewLLMGrader(model ChatModel, opts PromptOptions, logger zerolog.Logger) *LLMGrader {
	return &LLMGrader{
		model:  model,
		opts:   opts,
		logger: logger.With().Str("component", "grader").Logger(),
	}
}

// Grade performs one completion round-trip. Backend errors wrap ErrCompletion,
// rejected replies are *ValidationError values.
func (g *LLMGrader) Grade(ctx context.Context, req GradingRequest) (MarkReport, error) {
	if g == nil || g.model == nil {
		return MarkReport{}, fmt.Errorf("%w: no chat model configured", ErrCompletion)
	}

	prompt := BuildGradingPrompt(req, g.opts)
	raw, err := g.model.Complete(ctx, prompt)
	if err != nil {
		return MarkReport{}, fmt.Errorf("%w: %w", ErrCompletion, err)
	}

	report, err := ParseMarkReport(raw, req)
	if err != nil {
		g.logger.Warn().
			Err(err).
			Str("model", g.model.Name()).
			Str("question_id", req.QuestionID).
			Msg("grading reply rejected")
		return MarkReport{}, err
	}
	return report, nil
}
