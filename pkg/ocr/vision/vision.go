// Package vision provides the cloud-engine text extractor backed by Google Cloud Vision.
package vision

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"google.golang.org/api/option"
	visionapi "google.golang.org/api/vision/v1"

	"github.com/noah-isme/exam-marker-api/pkg/ocr"
)

const (
	engineName = "vision"
	// featureDocumentText is the dense-text mode tuned for handwriting and full pages.
	featureDocumentText = "DOCUMENT_TEXT_DETECTION"
)

// Config carries credentials and recognition hints.
type Config struct {
	APIKey          string
	CredentialsFile string
	LanguageHints   []string
	Logger          zerolog.Logger
}

// Engine sends the original image bytes to Cloud Vision; the service does its own preprocessing.
type Engine struct {
	service *visionapi.Service
	hints   []string
	logger  zerolog.Logger
}

// New builds the extractor. Extra client options are appended after the credential options.
func New(ctx context.Context, cfg Config, opts ...option.ClientOption) (*Engine, error) {
	clientOpts := make([]option.ClientOption, 0, len(opts)+1)
	switch {
	case strings.TrimSpace(cfg.APIKey) != "":
		clientOpts = append(clientOpts, option.WithAPIKey(strings.TrimSpace(cfg.APIKey)))
	case strings.TrimSpace(cfg.CredentialsFile) != "":
		clientOpts = append(clientOpts, option.WithCredentialsFile(strings.TrimSpace(cfg.CredentialsFile)))
	}
	clientOpts = append(clientOpts, opts...)

	service, err := visionapi.NewService(ctx, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("create vision client: %w", err)
	}

	return &Engine{
		service: service,
		hints:   cfg.LanguageHints,
		logger:  cfg.Logger.With().Str("component", "vision_extractor").Logger(),
	}, nil
}

func (e *Engine) Name() string { return engineName }

// Extract returns the full-page text annotation. The per-image error status is
// checked before the text is trusted.
func (e *Engine) Extract(ctx context.Context, image []byte) (string, error) {
	if len(image) == 0 {
		return "", ocr.NewExtractionError(engineName, errors.New("empty image"))
	}

	request := &visionapi.BatchAnnotateImagesRequest{
		Requests: []*visionapi.AnnotateImageRequest{
			{
				Image:    &visionapi.Image{Content: base64.StdEncoding.EncodeToString(image)},
				Features: []*visionapi.Feature{{Type: featureDocumentText}},
			},
		},
	}
	if len(e.hints) > 0 {
		request.Requests[0].ImageContext = &visionapi.ImageContext{LanguageHints: e.hints}
	}

	start := time.Now()
	resp, err := e.service.Images.Annotate(request).Context(ctx).Do()
	if err != nil {
		return "", ocr.NewExtractionError(engineName, fmt.Errorf("annotate: %w", err))
	}
	if len(resp.Responses) == 0 {
		return "", ocr.NewExtractionError(engineName, errors.New("empty annotate response"))
	}

	result := resp.Responses[0]
	if result.Error != nil && (result.Error.Code != 0 || result.Error.Message != "") {
		return "", ocr.NewExtractionError(engineName, fmt.Errorf("service error %d: %s", result.Error.Code, result.Error.Message))
	}

	text := ""
	if result.FullTextAnnotation != nil {
		text = result.FullTextAnnotation.Text
	}

	e.logger.Debug().Dur("latency", time.Since(start)).Int("chars", len(text)).Msg("image annotated")
	return text, nil
}

var _ ocr.Extractor = (*Engine)(nil)
