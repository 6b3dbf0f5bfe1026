package ai

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"strings"
)

var (
	// ErrGradingParse reports a reply that is not valid JSON.
	ErrGradingParse = errors.New("grading reply is not valid json")
	// ErrGradingSchema reports a missing or mistyped field.
	ErrGradingSchema = errors.New("grading reply does not match the mark report schema")
	// ErrGradingConsistency reports marks that do not add up or fall out of range.
	ErrGradingConsistency = errors.New("grading reply is numerically inconsistent")
)

// ValidationError describes why a grading reply was rejected. Kind is one of
// ErrGradingParse, ErrGradingSchema or ErrGradingConsistency.
type ValidationError struct {
	Kind   error
	Field  string
	Reason string
	Err    error
}

func (e *ValidationError) Error() string {
	var b strings.Builder
	b.WriteString(e.Kind.Error())
	if e.Field != "" {
		b.WriteString(": ")
		b.WriteString(e.Field)
	}
	if e.Reason != "" {
		b.WriteString(": ")
		b.WriteString(e.Reason)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *ValidationError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

func parseError(err error) error {
	return &ValidationError{Kind: ErrGradingParse, Err: err}
}

func schemaError(field, reason string) error {
	return &ValidationError{Kind: ErrGradingSchema, Field: field, Reason: reason}
}

func consistencyError(field, reason string) error {
	return &ValidationError{Kind: ErrGradingConsistency, Field: field, Reason: reason}
}

// ParseMarkReport validates a raw model reply against the request it answers and
// builds the MarkReport. total_marks_available always comes from the request.
func ParseMarkReport(raw string, req GradingRequest) (MarkReport, error) {
	doc, err := decodeReply(raw)
	if err != nil {
		return MarkReport{}, err
	}

	top, ok := doc.(map[string]any)
	if !ok {
		return MarkReport{}, schemaError("$", "expected a JSON object")
	}

	total, err := requireInt(top, "total_marks_awarded", "total_marks_awarded")
	if err != nil {
		return MarkReport{}, err
	}

	overall := ""
	if v, present := top["overall_feedback"]; present && v != nil {
		s, ok := v.(string)
		if !ok {
			return MarkReport{}, schemaError("overall_feedback", "expected a string")
		}
		overall = s
	}

	rawPoints, present := top["detailed_marking"]
	if !present || rawPoints == nil {
		return MarkReport{}, schemaError("detailed_marking", "field is required")
	}
	items, ok := rawPoints.([]any)
	if !ok {
		return MarkReport{}, schemaError("detailed_marking", "expected an array")
	}
	if len(items) == 0 {
		return MarkReport{}, schemaError("detailed_marking", "must contain at least one criterion")
	}

	points := make([]MarkingPoint, 0, len(items))
	for i, item := range items {
		point, err := parsePoint(item, fmt.Sprintf("detailed_marking[%d]", i))
		if err != nil {
			return MarkReport{}, err
		}
		points = append(points, point)
	}

	sum := 0
	for i, p := range points {
		field := fmt.Sprintf("detailed_marking[%d]", i)
		if p.MaxMark < 0 {
			return MarkReport{}, consistencyError(field+".max_mark", fmt.Sprintf("max mark %d is negative", p.MaxMark))
		}
		if p.AwardedMark < 0 || p.AwardedMark > p.MaxMark {
			return MarkReport{}, consistencyError(field+".awarded_mark",
				fmt.Sprintf("awarded %d outside 0..%d", p.AwardedMark, p.MaxMark))
		}
		sum += p.AwardedMark
	}

	if total < 0 {
		return MarkReport{}, consistencyError("total_marks_awarded", fmt.Sprintf("total %d is negative", total))
	}
	if total > req.MaxMarks {
		return MarkReport{}, consistencyError("total_marks_awarded",
			fmt.Sprintf("total %d exceeds available %d", total, req.MaxMarks))
	}
	if total != sum {
		return MarkReport{}, consistencyError("total_marks_awarded",
			fmt.Sprintf("total %d does not match criterion sum %d", total, sum))
	}

	return MarkReport{
		QuestionID:          req.QuestionID,
		TotalMarksAvailable: req.MaxMarks,
		TotalMarksAwarded:   total,
		OverallFeedback:     overall,
		DetailedMarking:     points,
	}, nil
}

func decodeReply(raw string) (any, error) {
	text := StripCodeFences(strings.TrimSpace(raw))
	if text == "" {
		return nil, parseError(errors.New("empty reply"))
	}

	dec := json.NewDecoder(bytes.NewReader([]byte(text)))
	dec.UseNumber()
	var doc any
	if err := dec.Decode(&doc); err != nil {
		return nil, parseError(err)
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, parseError(errors.New("unexpected data after JSON value"))
	}
	return doc, nil
}

func parsePoint(item any, path string) (MarkingPoint, error) {
	obj, ok := item.(map[string]any)
	if !ok {
		return MarkingPoint{}, schemaError(path, "expected an object")
	}

	criterion, err := requireString(obj, "criterion", path+".criterion")
	if err != nil {
		return MarkingPoint{}, err
	}
	if strings.TrimSpace(criterion) == "" {
		return MarkingPoint{}, schemaError(path+".criterion", "must not be empty")
	}
	maxMark, err := requireInt(obj, "max_mark", path+".max_mark")
	if err != nil {
		return MarkingPoint{}, err
	}
	awarded, err := requireInt(obj, "awarded_mark", path+".awarded_mark")
	if err != nil {
		return MarkingPoint{}, err
	}
	feedback, err := requireString(obj, "feedback", path+".feedback")
	if err != nil {
		return MarkingPoint{}, err
	}
	explanation, err := requireString(obj, "explanation", path+".explanation")
	if err != nil {
		return MarkingPoint{}, err
	}

	return MarkingPoint{
		Criterion:   criterion,
		MaxMark:     maxMark,
		AwardedMark: awarded,
		Feedback:    feedback,
		Explanation: explanation,
	}, nil
}

func requireString(obj map[string]any, key, path string) (string, error) {
	v, present := obj[key]
	if !present || v == nil {
		return "", schemaError(path, "field is required")
	}
	s, ok := v.(string)
	if !ok {
		return "", schemaError(path, "expected a string")
	}
	return s, nil
}

func requireInt(obj map[string]any, key, path string) (int, error) {
	v, present := obj[key]
	if !present || v == nil {
		return 0, schemaError(path, "field is required")
	}
	num, ok := v.(json.Number)
	if !ok {
		return 0, schemaError(path, "expected an integer")
	}
	n, ok := integral(num)
	if !ok {
		return 0, schemaError(path, fmt.Sprintf("expected an integer, got %s", num.String()))
	}
	return n, nil
}

func integral(num json.Number) (int, bool) {
	if n, err := num.Int64(); err == nil {
		if n > math.MaxInt32 || n < math.MinInt32 {
			return 0, false
		}
		return int(n), true
	}
	f, err := num.Float64()
	if err != nil || math.Trunc(f) != f || math.Abs(f) > math.MaxInt32 {
		return 0, false
	}
	return int(f), true
}

// StripCodeFences removes a surrounding ``` or ```json fence some models add in JSON mode.
func StripCodeFences(s string) string {
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		s = s[nl+1:]
	} else {
		s = strings.TrimPrefix(s, "json")
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
