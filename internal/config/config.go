package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds runtime configuration values for the API service.
type Config struct {
	AppName     string
	AppEnv      string
	AppPort     string
	DatabaseURL string
	RedisURL    string
	NATSURL     string
	NATSSubject string
	JWTSecret   string

	CloudinaryCloudName    string
	CloudinaryAPIKey       string
	CloudinaryAPISecret    string
	CloudinaryUploadFolder string

	AIProvider            string
	OpenAIAPIKey          string
	OpenAIModel           string
	OpenAIBaseURL         string
	GeminiAPIKey          string
	GeminiModel           string
	GradingTemperature    float32
	GradingMaxTokens      int
	GenerationTemperature float32
	GenerationMaxTokens   int

	OCRProvider           string
	OCRLanguages          []string
	TessdataPrefix        string
	VisionAPIKey          string
	VisionCredentialsFile string

	SpellDictionaryPath string
	QuestionsPath       string
	SyllabusSessionTTL  time.Duration
	EvaluationRateLimit int
	EvaluationWindow    time.Duration
	UploadMaxBytes      int64
}

// HTTPAddress returns the address the HTTP server should listen on.
func (c Config) HTTPAddress() string {
	if strings.HasPrefix(c.AppPort, ":") {
		return c.AppPort
	}

	return fmt.Sprintf(":%s", c.AppPort)
}

// Load reads configuration values from environment variables and optional .env file.
func Load() (Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("MARKER")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	return fromViper(v)
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "Exam Marker API")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.port", "8080")
	v.SetDefault("database.url", "file:marker.db?cache=shared")
	v.SetDefault("nats.subject", "marker.evaluations.completed")
	v.SetDefault("cloudinary.folder", "marker/answers")
	v.SetDefault("ai.provider", "openai")
	v.SetDefault("openai.model", "gpt-4o")
	v.SetDefault("gemini.model", "gemini-1.5-pro")
	v.SetDefault("grading.temperature", 0.3)
	v.SetDefault("grading.max_tokens", 1500)
	v.SetDefault("generation.temperature", 0.7)
	v.SetDefault("generation.max_tokens", 8000)
	v.SetDefault("ocr.provider", "tesseract")
	v.SetDefault("ocr.languages", "eng")
	v.SetDefault("questions.path", "questions.json")
	v.SetDefault("syllabus.session_ttl", "30m")
	v.SetDefault("evaluation.rate_limit", 20)
	v.SetDefault("evaluation.rate_window", "1m")
	v.SetDefault("upload.max_size_mb", 10)
}

func fromViper(v *viper.Viper) (Config, error) {
	setDefaults(v)

	sessionTTL, err := parseDuration(v.GetString("syllabus.session_ttl"), 30*time.Minute)
	if err != nil {
		return Config{}, fmt.Errorf("invalid syllabus session ttl: %w", err)
	}

	window, err := parseDuration(v.GetString("evaluation.rate_window"), time.Minute)
	if err != nil {
		return Config{}, fmt.Errorf("invalid evaluation rate window: %w", err)
	}

	cfg := Config{
		AppName:     v.GetString("app.name"),
		AppEnv:      v.GetString("app.env"),
		AppPort:     v.GetString("app.port"),
		DatabaseURL: v.GetString("database.url"),
		RedisURL:    v.GetString("redis.url"),
		NATSURL:     v.GetString("nats.url"),
		NATSSubject: v.GetString("nats.subject"),
		JWTSecret:   v.GetString("jwt.secret"),

		CloudinaryCloudName:    v.GetString("cloudinary.cloud_name"),
		CloudinaryAPIKey:       v.GetString("cloudinary.api_key"),
		CloudinaryAPISecret:    v.GetString("cloudinary.api_secret"),
		CloudinaryUploadFolder: v.GetString("cloudinary.folder"),

		AIProvider:            strings.ToLower(v.GetString("ai.provider")),
		OpenAIAPIKey:          v.GetString("openai_api_key"),
		OpenAIModel:           v.GetString("openai.model"),
		OpenAIBaseURL:         v.GetString("openai.base_url"),
		GeminiAPIKey:          v.GetString("gemini_api_key"),
		GeminiModel:           v.GetString("gemini.model"),
		GradingTemperature:    float32(v.GetFloat64("grading.temperature")),
		GradingMaxTokens:      v.GetInt("grading.max_tokens"),
		GenerationTemperature: float32(v.GetFloat64("generation.temperature")),
		GenerationMaxTokens:   v.GetInt("generation.max_tokens"),

		OCRProvider:           strings.ToLower(v.GetString("ocr.provider")),
		OCRLanguages:          splitList(v.GetString("ocr.languages")),
		TessdataPrefix:        v.GetString("ocr.tessdata_prefix"),
		VisionAPIKey:          v.GetString("vision.api_key"),
		VisionCredentialsFile: v.GetString("vision.credentials_file"),

		SpellDictionaryPath: v.GetString("spell.dictionary_path"),
		QuestionsPath:       v.GetString("questions.path"),
		SyllabusSessionTTL:  sessionTTL,
		EvaluationRateLimit: v.GetInt("evaluation.rate_limit"),
		EvaluationWindow:    window,
		UploadMaxBytes:      int64(v.GetInt("upload.max_size_mb")) * 1024 * 1024,
	}

	if cfg.JWTSecret == "" {
		return Config{}, fmt.Errorf("jwt secret must be provided")
	}

	switch cfg.AIProvider {
	case "openai", "gemini":
	default:
		return Config{}, fmt.Errorf("unsupported ai provider %q", cfg.AIProvider)
	}

	switch cfg.OCRProvider {
	case "tesseract", "vision":
	default:
		return Config{}, fmt.Errorf("unsupported ocr provider %q", cfg.OCRProvider)
	}

	if cfg.GradingTemperature < 0 || cfg.GradingTemperature > 0.3 {
		cfg.GradingTemperature = 0.3
	}
	if cfg.GradingMaxTokens <= 0 {
		cfg.GradingMaxTokens = 1500
	}
	if cfg.GenerationMaxTokens <= 0 {
		cfg.GenerationMaxTokens = 8000
	}
	if cfg.EvaluationRateLimit <= 0 {
		cfg.EvaluationRateLimit = 20
	}
	if cfg.UploadMaxBytes <= 0 {
		cfg.UploadMaxBytes = 10 * 1024 * 1024
	}

	return cfg, nil
}

func parseDuration(value string, fallback time.Duration) (time.Duration, error) {
	if strings.TrimSpace(value) == "" {
		return fallback, nil
	}
	return time.ParseDuration(value)
}

func splitList(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
