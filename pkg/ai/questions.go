package ai

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"unicode/utf8"

	"github.com/rs/zerolog"
	"github.com/santhosh-tekuri/jsonschema/v5"
)

const (
	// MinSyllabusLength is the shortest trimmed syllabus accepted for generation.
	MinSyllabusLength = 50
	// MaxQuestionCount bounds a single generation request.
	MaxQuestionCount = 20

	DefaultGenerationTemperature float32 = 0.7
	DefaultGenerationMaxTokens           = 8000
)

const generationSystemPrompt = "You are an expert educator and question creator. Always provide responses in valid JSON format."

//go:embed schema/generated_question.schema.json
var generatedQuestionSchema string

var (
	ErrSyllabusTooShort     = errors.New("syllabus text is too short")
	ErrUnexpectedGeneration = errors.New("unexpected question generation format")
	ErrNoQuestions          = errors.New("no questions were generated")
	ErrGenerationInvalid    = errors.New("generated question is invalid")
)

// GeneratedQuestion is a draft question produced from a syllabus.
type GeneratedQuestion struct {
	QuestionID    string        `json:"question_id"`
	Topic         string        `json:"topic"`
	Question      string        `json:"question"`
	MaxMarks      int           `json:"max_marks"`
	MarkingScheme MarkingScheme `json:"marking_scheme"`
	ModelAnswer   string        `json:"model_answer"`
}

// GenerationRequest describes a syllabus to turn into questions.
type GenerationRequest struct {
	Subject       string
	Syllabus      string
	QuestionCount int
}

// GenerationOptions tunes decoding for question generation.
type GenerationOptions struct {
	Temperature float32
	MaxTokens   int
}

// QuestionGenerator drafts exam questions from syllabus text.
type QuestionGenerator struct {
	model  ChatModel
	opts   GenerationOptions
	schema *jsonschema.Schema
	logger zerolog.Logger
}

// NewQuestionGenerator compiles the question schema and wires the chat model.
func NewQuestionGenerator(model ChatModel, opts GenerationOptions, logger zerolog.Logger) (*QuestionGenerator, error) {
	if opts.Temperature <= 0 {
		opts.Temperature = DefaultGenerationTemperature
	}
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = DefaultGenerationMaxTokens
	}

	schema, err := jsonschema.CompileString("generated_question.schema.json", generatedQuestionSchema)
	if err != nil {
		return nil, fmt.Errorf("compile question schema: %w", err)
	}

	return &QuestionGenerator{
		model:  model,
		opts:   opts,
		schema: schema,
		logger: logger.With().Str("component", "question_generator").Logger(),
	}, nil
}

// ClampQuestionCount forces n into [1, MaxQuestionCount].
func ClampQuestionCount(n int) int {
	if n < 1 {
		return 1
	}
	if n > MaxQuestionCount {
		return MaxQuestionCount
	}
	return n
}

// Generate validates the request, runs one completion and parses the drafts.
func (g *QuestionGenerator) Generate(ctx context.Context, req GenerationRequest) ([]GeneratedQuestion, error) {
	if utf8.RuneCountInString(strings.TrimSpace(req.Syllabus)) < MinSyllabusLength {
		return nil, ErrSyllabusTooShort
	}
	req.QuestionCount = ClampQuestionCount(req.QuestionCount)

	raw, err := g.model.Complete(ctx, BuildGenerationPrompt(req, g.opts))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCompletion, err)
	}

	questions, err := g.Parse(raw)
	if err != nil {
		g.logger.Warn().Err(err).Str("model", g.model.Name()).Msg("question generation rejected")
		return nil, err
	}

	g.logger.Info().
		Str("subject", req.Subject).
		Int("requested", req.QuestionCount).
		Int("generated", len(questions)).
		Msg("syllabus questions generated")
	return questions, nil
}

// BuildGenerationPrompt assembles the question-writer instructions.
func BuildGenerationPrompt(req GenerationRequest, opts GenerationOptions) Prompt {
	var b strings.Builder
	fmt.Fprintf(&b, "You are an expert educator for %s.\n\n", req.Subject)
	b.WriteString("SYLLABUS CONTENT:\n")
	b.WriteString(req.Syllabus)
	fmt.Fprintf(&b, "\n\nYour task is to create %d high-quality exam questions based on this syllabus.\n", req.QuestionCount)
	b.WriteString(`For each question:
1. Identify an important topic from the syllabus
2. Create a challenging but fair question
3. Provide a comprehensive model answer of the question
4. Create a detailed marking scheme with specific criteria
5. Assign appropriate maximum marks (between 3-5)

Respond with a JSON object containing an array of questions with this structure:
{
  "questions": [
    {
      "question_id": "<unique_id>",
      "topic": "<topic_name>",
      "question": "<question_text>",
      "max_marks": <int: maximum marks>,
      "marking_scheme": {
        "<criterion>": <int: marks>
      },
      "model_answer": "<comprehensive answer of question>"
    }
  ]
}

Make sure:
- Each question has a unique ID (format: "SQ1", "SQ2", etc. where SQ stands for Syllabus Question)
- The marking scheme criteria are specific and clear
- All values in the marking scheme MUST be integers
- The total marks in the marking scheme add up to the max_marks value
- The model answer is comprehensive and would score full marks
- Questions cover different topics from the syllabus
`)

	return Prompt{
		System:      generationSystemPrompt,
		User:        b.String(),
		Temperature: opts.Temperature,
		MaxTokens:   opts.MaxTokens,
		JSONMode:    true,
	}
}

// Parse accepts a list of questions, an object with a questions array, or a single
// question object. Each draft is checked against the embedded schema.
func (g *QuestionGenerator) Parse(raw string) ([]GeneratedQuestion, error) {
	dec := json.NewDecoder(bytes.NewReader([]byte(StripCodeFences(strings.TrimSpace(raw)))))
	dec.UseNumber()
	var doc any
	if err := dec.Decode(&doc); err != nil {
		return nil, parseError(err)
	}

	var items []any
	switch v := doc.(type) {
	case []any:
		items = v
	case map[string]any:
		if list, ok := v["questions"]; ok {
			arr, ok := list.([]any)
			if !ok {
				return nil, fmt.Errorf("%w: questions is not an array", ErrUnexpectedGeneration)
			}
			items = arr
		} else if _, hasID := v["question_id"]; hasID {
			if _, hasTopic := v["topic"]; !hasTopic {
				return nil, fmt.Errorf("%w: single question without topic", ErrUnexpectedGeneration)
			}
			items = []any{v}
		} else {
			return nil, fmt.Errorf("%w: object without questions", ErrUnexpectedGeneration)
		}
	default:
		return nil, fmt.Errorf("%w: %T", ErrUnexpectedGeneration, doc)
	}

	if len(items) == 0 {
		return nil, ErrNoQuestions
	}

	questions := make([]GeneratedQuestion, 0, len(items))
	for i, item := range items {
		if err := g.schema.Validate(item); err != nil {
			return nil, fmt.Errorf("%w: questions[%d]: %v", ErrGenerationInvalid, i, err)
		}
		questions = append(questions, toGeneratedQuestion(item.(map[string]any)))
	}
	return questions, nil
}

func toGeneratedQuestion(obj map[string]any) GeneratedQuestion {
	q := GeneratedQuestion{
		QuestionID:    obj["question_id"].(string),
		Topic:         obj["topic"].(string),
		Question:      obj["question"].(string),
		MaxMarks:      truncate(obj["max_marks"].(json.Number)),
		ModelAnswer:   obj["model_answer"].(string),
		MarkingScheme: MarkingScheme{},
	}
	for criterion, mark := range obj["marking_scheme"].(map[string]any) {
		q.MarkingScheme[criterion] = truncate(mark.(json.Number))
	}
	return q
}

// truncate drops any fraction and saturates at the int32 range.
func truncate(num json.Number) int {
	if n, err := num.Int64(); err == nil {
		return int(max(min(n, math.MaxInt32), math.MinInt32))
	}
	f, _ := num.Float64()
	f = math.Trunc(f)
	switch {
	case math.IsNaN(f):
		return 0
	case f > math.MaxInt32:
		return math.MaxInt32
	case f < math.MinInt32:
		return math.MinInt32
	}
	return int(f)
}
