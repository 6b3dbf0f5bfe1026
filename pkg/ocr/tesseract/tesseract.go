// Package tesseract provides the local-engine text extractor built on gosseract.
package tesseract

import (
	"context"
	"fmt"
	"strings"

	"github.com/otiai10/gosseract/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/exam-marker-api/pkg/imaging"
	"github.com/noah-isme/exam-marker-api/pkg/ocr"
)

const engineName = "tesseract"

// Config tunes the local recogniser.
type Config struct {
	Languages      []string
	TessdataPrefix string
	// PageSegMode defaults to a single uniform block of text.
	PageSegMode gosseract.PageSegMode
	Params      imaging.Params
	Logger      zerolog.Logger
}

// Engine preprocesses answer photos into a binary mask and recognises it with Tesseract.
type Engine struct {
	cfg           Config
	clientFactory func() *gosseract.Client
	logger        zerolog.Logger
}

// New constructs a Tesseract-backed extractor.
func New(cfg Config) *Engine {
	if len(cfg.Languages) == 0 {
		cfg.Languages = []string{"eng"}
	}
	if cfg.PageSegMode == 0 {
		cfg.PageSegMode = gosseract.PSM_SINGLE_BLOCK
	}
	if cfg.Params == (imaging.Params{}) {
		cfg.Params = imaging.DefaultParams()
	}

	return &Engine{
		cfg:           cfg,
		clientFactory: gosseract.NewClient,
		logger:        cfg.Logger.With().Str("component", "tesseract_extractor").Logger(),
	}
}

func (e *Engine) Name() string { return engineName }

// Extract decodes and binarises the image, then returns the recogniser output verbatim.
// Undecodable input surfaces as *imaging.DecodeError.
func (e *Engine) Extract(ctx context.Context, image []byte) (string, error) {
	mask, err := imaging.PreprocessWith(image, e.cfg.Params)
	if err != nil {
		return "", err
	}
	if err := ctx.Err(); err != nil {
		return "", ocr.NewExtractionError(engineName, err)
	}

	payload, err := mask.PNG()
	if err != nil {
		return "", ocr.NewExtractionError(engineName, err)
	}

	client := e.clientFactory()
	defer client.Close()

	if err := e.configure(client); err != nil {
		return "", ocr.NewExtractionError(engineName, err)
	}
	if err := client.SetImageFromBytes(payload); err != nil {
		return "", ocr.NewExtractionError(engineName, fmt.Errorf("set image: %w", err))
	}

	text, err := client.Text()
	if err != nil {
		return "", ocr.NewExtractionError(engineName, fmt.Errorf("recognize text: %w", err))
	}

	e.logger.Debug().Int("width", mask.Width).Int("height", mask.Height).Int("chars", len(text)).Msg("mask recognised")
	return text, nil
}

// configure applies prefix, languages and page segmentation. gosseract always
// initialises Tesseract with its default engine mode, which runs the LSTM
// recogniser when the installed traineddata carries LSTM models.
func (e *Engine) configure(client *gosseract.Client) error {
	if prefix := strings.TrimSpace(e.cfg.TessdataPrefix); prefix != "" {
		if err := client.SetTessdataPrefix(prefix); err != nil {
			return fmt.Errorf("set tessdata prefix: %w", err)
		}
	}
	if err := client.SetLanguage(e.cfg.Languages...); err != nil {
		return fmt.Errorf("set languages: %w", err)
	}
	if err := client.SetPageSegMode(e.cfg.PageSegMode); err != nil {
		return fmt.Errorf("set page segmentation mode: %w", err)
	}
	return nil
}

var _ ocr.Extractor = (*Engine)(nil)
