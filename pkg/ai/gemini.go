package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/api/option"
)

const providerGemini = "gemini"

// GeminiConfig defines configuration options for the Gemini chat model.
type GeminiConfig struct {
	APIKey string
	Model  string
	Logger zerolog.Logger
}

// GeminiModel implements ChatModel against the Google Generative AI API.
type GeminiModel struct {
	client *genai.Client
	cfg    GeminiConfig
	tracer trace.Tracer
	logger zerolog.Logger
}

// NewGeminiModel dials the Gemini API. Extra client options are mainly for tests.
func NewGeminiModel(ctx context.Context, cfg GeminiConfig, opts ...option.ClientOption) (*GeminiModel, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini api key is required")
	}
	if cfg.Model == "" {
		cfg.Model = "gemini-1.5-pro"
	}

	clientOpts := append([]option.ClientOption{option.WithAPIKey(cfg.APIKey)}, opts...)
	client, err := genai.NewClient(ctx, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("gemini client: %w", err)
	}

	return &GeminiModel{
		client: client,
		cfg:    cfg,
		tracer: otel.Tracer("github.com/noah-isme/exam-marker-api/pkg/ai/gemini"),
		logger: cfg.Logger.With().Str("component", "gemini").Logger(),
	}, nil
}

// Name identifies the provider and model for logs.
func (m *GeminiModel) Name() string {
	return providerGemini + ":" + m.cfg.Model
}

// Close releases the underlying client.
func (m *GeminiModel) Close() error {
	return m.client.Close()
}

// Complete sends the prompt to Gemini and returns the concatenated text of the first candidate.
func (m *GeminiModel) Complete(parent context.Context, prompt Prompt) (string, error) {
	ctx, span := m.tracer.Start(parent, "gemini.complete", trace.WithAttributes(
		attribute.String("model", m.cfg.Model),
		attribute.Int("max_tokens", prompt.MaxTokens),
	))
	defer span.End()

	model := m.client.GenerativeModel(m.cfg.Model)
	model.SetTemperature(prompt.Temperature)
	if prompt.MaxTokens > 0 {
		model.SetMaxOutputTokens(int32(prompt.MaxTokens))
	}
	if prompt.JSONMode {
		model.ResponseMIMEType = "application/json"
	}
	if prompt.System != "" {
		model.SystemInstruction = &genai.Content{
			Parts: []genai.Part{genai.Text(prompt.System)},
		}
	}

	start := time.Now()
	resp, err := model.GenerateContent(ctx, genai.Text(prompt.User))
	observeCompletion(providerGemini, m.cfg.Model, start)
	if err != nil {
		recordFailure(span, providerGemini, m.cfg.Model, err)
		return "", fmt.Errorf("gemini complete: %w", err)
	}

	text := firstText(resp)
	if text == "" {
		err := errors.New("gemini returned no text")
		recordFailure(span, providerGemini, m.cfg.Model, err)
		return "", err
	}
	return StripCodeFences(text), nil
}

func firstText(resp *genai.GenerateContentResponse) string {
	if resp == nil {
		return ""
	}
	for _, c := range resp.Candidates {
		if c == nil || c.Content == nil {
			continue
		}
		var b strings.Builder
		for _, p := range c.Content.Parts {
			if t, ok := p.(genai.Text); ok {
				b.WriteString(string(t))
			}
		}
		if s := strings.TrimSpace(b.String()); s != "" {
			return s
		}
	}
	return ""
}

var _ ChatModel = (*GeminiModel)(nil)
