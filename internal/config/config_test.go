package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/require"
)

func TestFromViperDefaults(t *testing.T) {
	v := viper.New()
	v.Set("jwt.secret", "secret")

	cfg, err := fromViper(v)
	require.NoError(t, err)
	require.Equal(t, ":8080", cfg.HTTPAddress())
	require.Equal(t, "openai", cfg.AIProvider)
	require.Equal(t, "gpt-4o", cfg.OpenAIModel)
	require.InDelta(t, 0.3, cfg.GradingTemperature, 1e-6)
	require.Equal(t, 1500, cfg.GradingMaxTokens)
	require.InDelta(t, 0.7, cfg.GenerationTemperature, 1e-6)
	require.Equal(t, 8000, cfg.GenerationMaxTokens)
	require.Equal(t, "tesseract", cfg.OCRProvider)
	require.Equal(t, []string{"eng"}, cfg.OCRLanguages)
	require.Equal(t, 30*time.Minute, cfg.SyllabusSessionTTL)
	require.Equal(t, time.Minute, cfg.EvaluationWindow)
	require.Equal(t, int64(10*1024*1024), cfg.UploadMaxBytes)
	require.Equal(t, "marker.evaluations.completed", cfg.NATSSubject)
}

func TestFromViperClampsGradingTemperature(t *testing.T) {
	v := viper.New()
	v.Set("jwt.secret", "secret")
	v.Set("grading.temperature", 0.9)

	cfg, err := fromViper(v)
	require.NoError(t, err)
	require.InDelta(t, 0.3, cfg.GradingTemperature, 1e-6)
}

func TestFromViperRequiresSecret(t *testing.T) {
	_, err := fromViper(viper.New())
	require.Error(t, err)
}

func TestFromViperRejectsUnknownProviders(t *testing.T) {
	v := viper.New()
	v.Set("jwt.secret", "secret")
	v.Set("ai.provider", "anthropic")
	_, err := fromViper(v)
	require.Error(t, err)

	v = viper.New()
	v.Set("jwt.secret", "secret")
	v.Set("ocr.provider", "paddle")
	_, err = fromViper(v)
	require.Error(t, err)
}

func TestFromViperParsesLanguages(t *testing.T) {
	v := viper.New()
	v.Set("jwt.secret", "secret")
	v.Set("ocr.languages", "eng, fra ,")
	v.Set("ocr.provider", "Vision")

	cfg, err := fromViper(v)
	require.NoError(t, err)
	require.Equal(t, []string{"eng", "fra"}, cfg.OCRLanguages)
	require.Equal(t, "vision", cfg.OCRProvider)
}
