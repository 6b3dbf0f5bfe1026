// Package ocr defines the text-recognition capability used by the marking pipeline.
package ocr

import (
	"context"
	"errors"
	"fmt"
)

// ErrExtraction is matched by every ExtractionError.
var ErrExtraction = errors.New("text extraction failed")

// Extractor recognises text in an answer image. Implementations receive the
// bytes exactly as uploaded and own any preprocessing they need.
type Extractor interface {
	Name() string
	Extract(ctx context.Context, image []byte) (string, error)
}

// ExtractionError reports a recognition backend failure or an explicit
// service-side error signal.
type ExtractionError struct {
	Engine string
	Err    error
}

// NewExtractionError wraps err as a failure of the named engine.
func NewExtractionError(engine string, err error) error {
	return &ExtractionError{Engine: engine, Err: err}
}

func (e *ExtractionError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Engine, ErrExtraction.Error())
	}
	return fmt.Sprintf("%s: %s: %v", e.Engine, ErrExtraction.Error(), e.Err)
}

func (e *ExtractionError) Unwrap() error { return e.Err }

// Is lets errors.Is(err, ErrExtraction) match.
func (e *ExtractionError) Is(target error) bool { return target == ErrExtraction }
