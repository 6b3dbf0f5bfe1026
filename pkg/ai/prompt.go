package ai

import (
	"encoding/json"
	"fmt"
	"strings"
)

const (
	// MaxGradingTemperature caps sampling randomness for grading calls.
	MaxGradingTemperature float32 = 0.3
	// DefaultGradingMaxTokens leaves room for a detailed per-criterion breakdown.
	DefaultGradingMaxTokens = 1500
)

const gradingSystemPrompt = "You are an expert exam marker. Always provide responses in valid JSON format."

const gradingOutputSchema = `Respond with a JSON object with this structure:
{
  "total_marks_awarded": <int: total marks awarded>,
  "overall_feedback": <string: overall assessment>,
  "detailed_marking": [
    {
      "criterion": <string: marking criterion>,
      "max_mark": <int: maximum mark>,
      "awarded_mark": <int: awarded mark>,
      "feedback": <string: specific feedback>,
      "explanation": <string: explanation for any deductions>
    }
  ]
}`

// Prompt is a provider-neutral chat request.
type Prompt struct {
	System      string
	User        string
	Temperature float32
	MaxTokens   int
	JSONMode    bool
}

// PromptOptions tunes the decoding parameters of a grading prompt.
type PromptOptions struct {
	Temperature float32
	MaxTokens   int
}

// DefaultPromptOptions returns the grading defaults.
func DefaultPromptOptions() PromptOptions {
	return PromptOptions{Temperature: MaxGradingTemperature, MaxTokens: DefaultGradingMaxTokens}
}

// BuildGradingPrompt assembles the marker instructions for one request. It never fails.
func BuildGradingPrompt(req GradingRequest, opts PromptOptions) Prompt {
	temperature := opts.Temperature
	if temperature < 0 || temperature > MaxGradingTemperature {
		temperature = MaxGradingTemperature
	}
	maxTokens := opts.MaxTokens
	if maxTokens <= 0 {
		maxTokens = DefaultGradingMaxTokens
	}

	scheme := req.Scheme
	if scheme == nil {
		scheme = MarkingScheme{}
	}
	// map keys marshal in sorted order, so the prompt is stable across calls
	schemeJSON, err := json.MarshalIndent(scheme, "", "  ")
	if err != nil {
		schemeJSON = []byte("{}")
	}

	var b strings.Builder
	fmt.Fprintf(&b, "You are an expert exam marker for %s.\n\n", req.Topic)
	b.WriteString("QUESTION:\n")
	b.WriteString(req.Question)
	b.WriteString("\n\nSTUDENT ANSWER:\n")
	b.WriteString(req.Answer)
	b.WriteString("\n\nMODEL ANSWER:\n")
	b.WriteString(req.ModelAnswer)
	fmt.Fprintf(&b, "\n\nMARKING SCHEME (Total: %d marks):\n", req.MaxMarks)
	b.Write(schemeJSON)
	b.WriteString("\n\nYour task is to mark the student answer according to the marking scheme.\n")
	b.WriteString("For each marking criterion:\n")
	b.WriteString("1. Determine how many marks to award\n")
	b.WriteString("2. Provide specific feedback\n")
	b.WriteString("3. If marks were deducted, explain exactly why\n\n")
	b.WriteString(gradingOutputSchema)
	b.WriteString("\n")

	return Prompt{
		System:      gradingSystemPrompt,
		User:        b.String(),
		Temperature: temperature,
		MaxTokens:   maxTokens,
		JSONMode:    true,
	}
}
