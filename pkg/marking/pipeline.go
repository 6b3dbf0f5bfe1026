// Package marking orchestrates extraction, normalisation and grading of one answer.
package marking

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/noah-isme/exam-marker-api/pkg/ai"
	"github.com/noah-isme/exam-marker-api/pkg/ocr"
)

var (
	stageDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "marker",
		Subsystem: "pipeline",
		Name:      "stage_duration_seconds",
		Help:      "Duration of marking pipeline stages",
	}, []string{"stage"})

	pipelineFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "marker",
		Subsystem: "pipeline",
		Name:      "failures_total",
		Help:      "Number of degraded evaluations by failure kind",
	}, []string{"kind"})
)

var (
	// ErrEmptyAnswer reports a submission with neither text nor image.
	ErrEmptyAnswer = errors.New("answer is empty")
	// ErrNoText reports an image in which the recogniser found nothing to grade.
	ErrNoText = errors.New("no text recognised in image")
	// ErrNoExtractor reports an image submission with no recogniser configured.
	ErrNoExtractor = errors.New("no text extractor configured")
)

// Grader marks a single request.
type Grader interface {
	Grade(ctx context.Context, req ai.GradingRequest) (ai.MarkReport, error)
}

// Normalizer cleans recogniser output.
type Normalizer interface {
	Normalize(raw string) string
}

// Materials are the question-side inputs of an evaluation.
type Materials struct {
	QuestionID  string
	Question    string
	ModelAnswer string
	Scheme      ai.MarkingScheme
	MaxMarks    int
	Topic       string
}

// Submission carries either typed text or answer image bytes. Image wins when both are set.
type Submission struct {
	Text  string
	Image []byte
}

// ExtractedText is the recogniser output before and after normalisation.
type ExtractedText struct {
	Raw     string
	Cleaned string
}

// Outcome is the result of one evaluation. Err is set when the report is degraded.
type Outcome struct {
	Report ai.MarkReport
	Text   *ExtractedText
	Kind   FailureKind
	Err    error
}

// Degraded reports whether a stage failed and Report is the zero-mark fallback.
func (o Outcome) Degraded() bool { return o.Err != nil }

// OCRResult is returned for image submissions.
type OCRResult struct {
	QuestionID    string         `json:"question_id"`
	ExtractedText string         `json:"extracted_text"`
	Feedback      *ai.MarkReport `json:"feedback,omitempty"`
}

// Pipeline wires the grading stages together. It holds no per-evaluation state.
type Pipeline struct {
	grader     Grader
	extractor  ocr.Extractor
	normalizer Normalizer
	tracer     trace.Tracer
	logger     zerolog.Logger
}

// New constructs a pipeline. extractor may be nil when only text answers are served.
func New(grader Grader, extractor ocr.Extractor, normalizer Normalizer, logger zerolog.Logger) *Pipeline {
	return &Pipeline{
		grader:     grader,
		extractor:  extractor,
		normalizer: normalizer,
		tracer:     otel.Tracer("github.com/noah-isme/exam-marker-api/pkg/marking"),
		logger:     logger.With().Str("component", "marking_pipeline").Logger(),
	}
}

// Evaluate marks a submission. It never returns an error: stage failures become a
// degraded Outcome with zero awarded marks and an explanatory overall_feedback.
func (p *Pipeline) Evaluate(parent context.Context, materials Materials, submission Submission) Outcome {
	source := "text"
	if len(submission.Image) > 0 {
		source = "image"
	}
	ctx, span := p.tracer.Start(parent, "marking.evaluate", trace.WithAttributes(
		attribute.String("question_id", materials.QuestionID),
		attribute.String("source", source),
	))
	defer span.End()

	var extracted *ExtractedText
	answer := submission.Text
	if source == "image" {
		text, err := p.Extract(ctx, submission.Image)
		if err != nil {
			return p.degrade(span, materials, nil, err)
		}
		extracted = &text
		answer = text.Cleaned
	} else if strings.TrimSpace(answer) == "" {
		return p.degrade(span, materials, nil, ErrEmptyAnswer)
	}

	req := ai.GradingRequest{
		QuestionID:  materials.QuestionID,
		Question:    materials.Question,
		Answer:      answer,
		ModelAnswer: materials.ModelAnswer,
		Scheme:      materials.Scheme,
		MaxMarks:    materials.MaxMarks,
		Topic:       materials.Topic,
	}

	start := time.Now()
	report, err := p.grader.Grade(ctx, req)
	stageDuration.WithLabelValues("grade").Observe(time.Since(start).Seconds())
	if err != nil {
		return p.degrade(span, materials, extracted, err)
	}

	span.SetAttributes(attribute.Int("total_marks_awarded", report.TotalMarksAwarded))
	return Outcome{Report: report, Text: extracted}
}

// Extract recognises and normalises the text of an answer image.
func (p *Pipeline) Extract(parent context.Context, image []byte) (ExtractedText, error) {
	ctx, span := p.tracer.Start(parent, "marking.extract")
	defer span.End()

	if p.extractor == nil {
		span.SetStatus(codes.Error, ErrNoExtractor.Error())
		return ExtractedText{}, ErrNoExtractor
	}
	span.SetAttributes(attribute.String("engine", p.extractor.Name()))

	start := time.Now()
	raw, err := p.extractor.Extract(ctx, image)
	stageDuration.WithLabelValues("extract").Observe(time.Since(start).Seconds())
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return ExtractedText{}, err
	}

	start = time.Now()
	cleaned := raw
	if p.normalizer != nil {
		cleaned = p.normalizer.Normalize(raw)
	}
	stageDuration.WithLabelValues("normalize").Observe(time.Since(start).Seconds())

	if strings.TrimSpace(cleaned) == "" {
		err := ocr.NewExtractionError(p.extractor.Name(), ErrNoText)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return ExtractedText{Raw: raw}, err
	}

	return ExtractedText{Raw: raw, Cleaned: cleaned}, nil
}

func (p *Pipeline) degrade(span trace.Span, materials Materials, text *ExtractedText, err error) Outcome {
	kind := Classify(err)
	pipelineFailures.WithLabelValues(string(kind)).Inc()
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())

	p.logger.Warn().
		Err(err).
		Str("question_id", materials.QuestionID).
		Str("kind", string(kind)).
		Msg("evaluation degraded")

	return Outcome{
		Report: DegradedReport(materials, err),
		Text:   text,
		Kind:   kind,
		Err:    err,
	}
}

// DegradedReport builds the zero-mark report shown when a stage fails.
func DegradedReport(materials Materials, err error) ai.MarkReport {
	return ai.MarkReport{
		QuestionID:          materials.QuestionID,
		TotalMarksAvailable: materials.MaxMarks,
		TotalMarksAwarded:   0,
		OverallFeedback:     Describe(err),
		DetailedMarking:     []ai.MarkingPoint{},
	}
}

// NewOCRResult shapes an image outcome for the caller.
func NewOCRResult(questionID string, outcome Outcome) OCRResult {
	result := OCRResult{QuestionID: questionID}
	switch {
	case outcome.Text != nil:
		result.ExtractedText = outcome.Text.Cleaned
	case outcome.Err != nil:
		result.ExtractedText = ExtractionMessage(outcome.Err)
	}
	report := outcome.Report
	result.Feedback = &report
	return result
}

// ExtractionMessage is the extracted_text shown when recognition fails.
func ExtractionMessage(err error) string {
	return "Error extracting text: " + err.Error()
}
