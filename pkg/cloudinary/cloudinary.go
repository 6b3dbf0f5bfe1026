package cloudinary

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Config contains credentials required to talk to Cloudinary.
type Config struct {
	CloudName string
	APIKey    string
	APISecret string
	Folder    string
}

// Enabled reports whether all credentials are present.
func (c Config) Enabled() bool {
	return c.CloudName != "" && c.APIKey != "" && c.APISecret != ""
}

// Archive stores answer images in Cloudinary, one sub-folder per question.
type Archive struct {
	client *cloudinary.Cloudinary
	folder string
	logger zerolog.Logger
}

// New constructs a Cloudinary archive.
func New(cfg Config, logger zerolog.Logger) (*Archive, error) {
	if !cfg.Enabled() {
		return nil, fmt.Errorf("cloudinary credentials must be provided")
	}

	cld, err := cloudinary.NewFromParams(cfg.CloudName, cfg.APIKey, cfg.APISecret)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize cloudinary: %w", err)
	}

	return &Archive{
		client: cld,
		folder: strings.Trim(cfg.Folder, "/"),
		logger: logger.With().Str("component", "cloudinary").Logger(),
	}, nil
}

// Store uploads an answer image and returns its secure URL.
func (a *Archive) Store(ctx context.Context, questionID, userID string, image io.Reader) (string, error) {
	params := uploader.UploadParams{
		Folder:       AnswerFolder(a.folder, questionID),
		PublicID:     uuid.NewString(),
		ResourceType: "image",
		Tags:         api.CldAPIArray{"answer", "question-" + Slug(questionID)},
		Context:      api.CldAPIMap{"question_id": questionID, "user_id": userID},
	}

	result, err := a.client.Upload.Upload(ctx, image, params)
	if err != nil {
		return "", fmt.Errorf("failed to upload answer image: %w", err)
	}
	if result.Error.Message != "" {
		return "", fmt.Errorf("cloudinary rejected answer image: %s", result.Error.Message)
	}

	a.logger.Info().
		Str("public_id", result.PublicID).
		Str("question_id", questionID).
		Msg("answer image archived")

	return result.SecureURL, nil
}

// AnswerFolder returns the folder that holds answers for one question.
func AnswerFolder(base, questionID string) string {
	slug := Slug(questionID)
	if base == "" {
		return slug
	}
	return base + "/" + slug
}

// Slug reduces s to characters Cloudinary accepts in folder and tag names.
func Slug(s string) string {
	out := strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '_' {
			return r
		}
		return '-'
	}, strings.TrimSpace(s))

	out = strings.Trim(out, "-")
	if out == "" {
		return "unknown"
	}
	return out
}
