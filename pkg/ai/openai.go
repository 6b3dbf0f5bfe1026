package ai

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/rs/zerolog"
	openai "github.com/sashabaranov/go-openai"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const providerOpenAI = "openai"

// OpenAIConfig defines configuration options for the OpenAI chat model.
type OpenAIConfig struct {
	APIKey  string
	Model   string
	BaseURL string
	Logger  zerolog.Logger
}

// OpenAIModel implements ChatModel against the OpenAI chat completion API.
type OpenAIModel struct {
	client *openai.Client
	cfg    OpenAIConfig
	tracer trace.Tracer
	logger zerolog.Logger
}

// NewOpenAIModel builds a new chat model using the provided configuration.
func NewOpenAIModel(cfg OpenAIConfig) (*OpenAIModel, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openai api key is required")
	}

	if cfg.Model == "" {
		cfg.Model = openai.GPT4o
	}

	tracer := otel.Tracer("github.com/noah-isme/exam-marker-api/pkg/ai/openai")
	logger := cfg.Logger.With().Str("component", "openai").Logger()

	config := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		config.BaseURL = cfg.BaseURL
	}
	client := openai.NewClientWithConfig(config)

	return &OpenAIModel{
		client: client,
		cfg:    cfg,
		tracer: tracer,
		logger: logger,
	}, nil
}

// Name identifies the provider and model for logs.
func (m *OpenAIModel) Name() string {
	return providerOpenAI + ":" + m.cfg.Model
}

// Complete sends the prompt to OpenAI and returns the text of the first choice.
func (m *OpenAIModel) Complete(parent context.Context, prompt Prompt) (string, error) {
	ctx, span := m.tracer.Start(parent, "openai.complete", trace.WithAttributes(
		attribute.String("model", m.cfg.Model),
		attribute.Int("max_tokens", prompt.MaxTokens),
	))
	defer span.End()

	request := openai.ChatCompletionRequest{
		Model:       m.cfg.Model,
		MaxTokens:   prompt.MaxTokens,
		Temperature: wireTemperature(prompt.Temperature),
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: prompt.System,
			},
			{
				Role:    openai.ChatMessageRoleUser,
				Content: prompt.User,
			},
		},
	}
	if prompt.JSONMode {
		request.ResponseFormat = &openai.ChatCompletionResponseFormat{Type: openai.ChatCompletionResponseFormatTypeJSONObject}
	}

	start := time.Now()
	resp, err := m.client.CreateChatCompletion(ctx, request)
	observeCompletion(providerOpenAI, m.cfg.Model, start)
	if err != nil {
		recordFailure(span, providerOpenAI, m.cfg.Model, err)
		return "", fmt.Errorf("openai complete: %w", err)
	}

	if len(resp.Choices) == 0 {
		err := errors.New("no choices returned from openai")
		recordFailure(span, providerOpenAI, m.cfg.Model, err)
		return "", err
	}

	m.logger.Debug().
		Int("prompt_tokens", resp.Usage.PromptTokens).
		Int("completion_tokens", resp.Usage.CompletionTokens).
		Str("finish_reason", string(resp.Choices[0].FinishReason)).
		Msg("openai completion finished")

	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

// wireTemperature keeps a zero temperature on the wire. go-openai drops a zero
// value through omitempty, and the API then samples at its default of 1.
func wireTemperature(t float32) float32 {
	if t <= 0 {
		return math.SmallestNonzeroFloat32
	}
	return t
}

var _ ChatModel = (*OpenAIModel)(nil)
