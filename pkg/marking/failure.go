package marking

import (
	"context"
	"errors"

	"github.com/noah-isme/exam-marker-api/pkg/ai"
	"github.com/noah-isme/exam-marker-api/pkg/imaging"
	"github.com/noah-isme/exam-marker-api/pkg/ocr"
)

// FailureKind names the stage that degraded an evaluation.
type FailureKind string

const (
	FailureNone        FailureKind = ""
	FailureInput       FailureKind = "input"
	FailureDecode      FailureKind = "decode"
	FailureExtraction  FailureKind = "extraction"
	FailureCompletion  FailureKind = "completion"
	FailureParse       FailureKind = "parse"
	FailureSchema      FailureKind = "schema"
	FailureConsistency FailureKind = "consistency"
	FailureTimeout     FailureKind = "timeout"
	FailureUnknown     FailureKind = "unknown"
)

// Classify maps an error from any stage to its FailureKind.
func Classify(err error) FailureKind {
	switch {
	case err == nil:
		return FailureNone
	case errors.Is(err, ErrEmptyAnswer):
		return FailureInput
	case errors.Is(err, imaging.ErrDecode):
		return FailureDecode
	case errors.Is(err, ocr.ErrExtraction), errors.Is(err, ErrNoExtractor):
		return FailureExtraction
	case errors.Is(err, ai.ErrGradingParse):
		return FailureParse
	case errors.Is(err, ai.ErrGradingSchema):
		return FailureSchema
	case errors.Is(err, ai.ErrGradingConsistency):
		return FailureConsistency
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return FailureTimeout
	case errors.Is(err, ai.ErrCompletion):
		return FailureCompletion
	default:
		return FailureUnknown
	}
}

// Describe renders a failure as the overall_feedback of a degraded report.
func Describe(err error) string {
	if err == nil {
		return ""
	}
	switch Classify(err) {
	case FailureInput:
		return "No answer was submitted, so nothing could be marked."
	case FailureDecode:
		return "The uploaded image could not be read: " + err.Error()
	case FailureExtraction:
		return ExtractionMessage(err)
	case FailureParse:
		return "Error generating feedback: the marker's reply was not valid JSON (" + err.Error() + ")"
	case FailureSchema:
		return "Error generating feedback: the marker's reply was incomplete (" + err.Error() + ")"
	case FailureConsistency:
		return "Error generating feedback: the marker's scores were inconsistent (" + err.Error() + ")"
	case FailureTimeout:
		return "Error generating feedback: the request timed out"
	default:
		return "Error generating feedback: " + err.Error()
	}
}
