package config

import (
	"flag"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/futig/interview-orchestrator/internal/entity"
	pkgRetry "github.com/futig/interview-orchestrator/internal/pkg/retry"
	"github.com/joho/godotenv"
)

// Config holds the application configuration
type Config struct {
	// Server configuration
	ServerAddr           string        `env:"SERVER_ADDR,notEmpty"`
	ServerRequestTimeout time.Duration `env:"SERVER_REQUEST_TIMEOUT" envDefault:"3m"`
	DocsSpecPath         string        `env:"DOCS_SPEC_PATH" envDefault:"docs/swagger.yaml"`
	ShutdownTimeout      time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"15s"`

	CORS CORSConfig `envPrefix:"CORS_"`

	// Reject sessions started without a callback URL
	RequireCallback bool `env:"REQUIRE_CALLBACK" envDefault:"false"`

	// External service configurations
	InterviewConnectorCfg InterviewConnectorConfig `envPrefix:"INTERVIEW_"`
	CallbackConnectorCfg  CallbackConnectorConfig  `envPrefix:"CALLBACK_"`

	// Session orchestration
	SessionCfg   SessionConfig   `envPrefix:"SESSION_"`
	MediaCfg     MediaConfig     `envPrefix:"MEDIA_"`
	RecordingCfg RecordingConfig `envPrefix:"RECORDING_"`

	// Logging configuration
	LogLevel string `env:"LOG_LEVEL,notEmpty"`

	// Mock configuration
	EnableMocks bool `env:"ENABLE_MOCKS" envDefault:"false"`

	// Telegram notifications (optional, disabled when BOT_TOKEN is empty)
	TelegramCfg TelegramConfig `envPrefix:"TELEGRAM_"`

	// Environment (set from flag, not from env var)
	Environment string
}

// SessionConfig controls the question cycle
type SessionConfig struct {
	QuestionTimeLimit int           `env:"QUESTION_TIME_LIMIT" envDefault:"180"` // seconds
	TotalQuestions    int           `env:"TOTAL_QUESTIONS" envDefault:"13"`
	AutoBegin         bool          `env:"AUTO_BEGIN" envDefault:"true"`
	IdleTTL           time.Duration `env:"IDLE_TTL" envDefault:"2h"`
	SubmitTimeout     time.Duration `env:"SUBMIT_TIMEOUT" envDefault:"2m"`
}

// MediaConfig holds the capture constraints
type MediaConfig struct {
	Device           string `env:"DEVICE" envDefault:"synthetic"` // ffmpeg or synthetic
	FFmpegPath       string `env:"FFMPEG_PATH" envDefault:"ffmpeg"`
	VideoDevice      string `env:"VIDEO_DEVICE" envDefault:"/dev/video0"`
	AudioDevice      string `env:"AUDIO_DEVICE" envDefault:"default"`
	VideoEnabled     bool   `env:"VIDEO_ENABLED" envDefault:"true"`
	Width            int    `env:"WIDTH" envDefault:"1280"`
	Height           int    `env:"HEIGHT" envDefault:"720"`
	FrameRate        int    `env:"FRAME_RATE" envDefault:"30"`
	SampleRate       int    `env:"SAMPLE_RATE" envDefault:"48000"`
	Channels         int    `env:"CHANNELS" envDefault:"1"`
	EchoCancellation bool   `env:"ECHO_CANCELLATION" envDefault:"true"`
	NoiseSuppression bool   `env:"NOISE_SUPPRESSION" envDefault:"true"`
	AutoGainControl  bool   `env:"AUTO_GAIN_CONTROL" envDefault:"true"`
}

// RecordingConfig holds the segment encoding targets
type RecordingConfig struct {
	MimeType           string `env:"MIME_TYPE" envDefault:"audio/wav"`
	AudioBitsPerSecond int    `env:"AUDIO_BITS_PER_SECOND" envDefault:"128000"`
	VideoBitsPerSecond int    `env:"VIDEO_BITS_PER_SECOND" envDefault:"2500000"`
	TimeSliceMs        int    `env:"TIME_SLICE_MS" envDefault:"1000"`
	MaxPayloadSize     int64  `env:"MAX_PAYLOAD_SIZE" envDefault:"52428800"` // 50 MiB
}

// TelegramConfig holds Telegram notifier configuration
type TelegramConfig struct {
	BotToken   string `env:"BOT_TOKEN"`
	ChatID     int64  `env:"CHAT_ID"`
	OnlyErrors bool   `env:"ONLY_ERRORS" envDefault:"true"`
}

type InterviewConnectorConfig struct {
	HTTPClientConfig
	GetInterviewEndpoint   string               `env:"GET_ENDPOINT" envDefault:"/interview"`
	StartInterviewEndpoint string               `env:"START_ENDPOINT" envDefault:"/interview/start"`
	SubmitAnswerEndpoint   string               `env:"SUBMIT_ENDPOINT" envDefault:"/interview/submit-answer"`
	Retry                  pkgRetry.RetryConfig `envPrefix:"RETRY_"`
}

type CallbackConnectorConfig struct {
	HTTPClientConfig
	// per session
	QueueSize       int                  `env:"QUEUE_SIZE" envDefault:"256"`
	LaneIdleTimeout time.Duration        `env:"LANE_IDLE_TIMEOUT" envDefault:"30s"`
	Retry           pkgRetry.RetryConfig `envPrefix:"RETRY_"`
}

// CORSConfig lists what the candidate page may send from the browser
type CORSConfig struct {
	AllowedOrigins   []string `env:"ALLOWED_ORIGINS" envSeparator:"," envDefault:"*"`
	AllowedMethods   []string `env:"ALLOWED_METHODS" envSeparator:"," envDefault:"GET,POST,PUT,DELETE,OPTIONS"`
	AllowedHeaders   []string `env:"ALLOWED_HEADERS" envSeparator:"," envDefault:"Content-Type,Authorization,X-Request-ID"`
	AllowCredentials bool     `env:"ALLOW_CREDENTIALS" envDefault:"false"`
	MaxAge           int      `env:"MAX_AGE" envDefault:"300"` // seconds
}

type HTTPClientConfig struct {
	RequestTimeout        time.Duration `env:"TIMEOUT" envDefault:"30s"`
	ConnTimeout           time.Duration `env:"CONN_TIMEOUT" envDefault:"10s"`
	KeepAlive             time.Duration `env:"KEEP_ALIVE" envDefault:"90s"`
	IdleConnTimeout       time.Duration `env:"IDLE_CONN_TIMEOUT" envDefault:"90s"`
	ResponseHeaderTimeout time.Duration `env:"RESPONSE_HEADER_TIMEOUT" envDefault:"30s"`
	Token                 string        `env:"TOKEN"`
	Url                   string        `env:"SERVICE_URL"`
}

func LoadConfig() (*Config, error) {
	envFlag := flag.String("env", "local", "Environment to run (local, prod, or custom)")
	flag.Parse()

	envFile := getEnvFile(*envFlag)
	// Try to load env file, but don't fail if it's missing.
	// In containerized/prod environments variables are usually set externally.
	if err := godotenv.Load(envFile); err != nil {
		fmt.Printf("Warning: could not load %s file (this is ok if env vars are set externally): %v\n", envFile, err)
	}

	cfg, err := Parse()
	if err != nil {
		return nil, err
	}
	cfg.Environment = *envFlag

	return cfg, nil
}

// Parse reads the configuration from the process environment and validates it.
func Parse() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}

	if err := validateConfig(cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

func validateConfig(cfg *Config) error {
	var errors []string

	if cfg.SessionCfg.QuestionTimeLimit < 1 || cfg.SessionCfg.QuestionTimeLimit > 3600 {
		errors = append(errors, fmt.Sprintf("SESSION_QUESTION_TIME_LIMIT must be between 1 and 3600 seconds, got %d", cfg.SessionCfg.QuestionTimeLimit))
	}

	if cfg.SessionCfg.TotalQuestions < 1 || cfg.SessionCfg.TotalQuestions > 100 {
		errors = append(errors, fmt.Sprintf("SESSION_TOTAL_QUESTIONS must be between 1 and 100, got %d", cfg.SessionCfg.TotalQuestions))
	}

	switch cfg.MediaCfg.Device {
	case "ffmpeg", "synthetic":
	default:
		errors = append(errors, fmt.Sprintf("MEDIA_DEVICE must be ffmpeg or synthetic, got %q", cfg.MediaCfg.Device))
	}

	if cfg.MediaCfg.SampleRate < 8000 || cfg.MediaCfg.SampleRate > 96000 {
		errors = append(errors, fmt.Sprintf("MEDIA_SAMPLE_RATE must be between 8000 and 96000, got %d", cfg.MediaCfg.SampleRate))
	}

	if cfg.MediaCfg.Channels < 1 || cfg.MediaCfg.Channels > 2 {
		errors = append(errors, fmt.Sprintf("MEDIA_CHANNELS must be 1 or 2, got %d", cfg.MediaCfg.Channels))
	}

	if cfg.MediaCfg.FrameRate < 1 || cfg.MediaCfg.FrameRate > 60 {
		errors = append(errors, fmt.Sprintf("MEDIA_FRAME_RATE must be between 1 and 60, got %d", cfg.MediaCfg.FrameRate))
	}

	if cfg.RecordingCfg.TimeSliceMs < 10 || cfg.RecordingCfg.TimeSliceMs > 10000 {
		errors = append(errors, fmt.Sprintf("RECORDING_TIME_SLICE_MS must be between 10 and 10000, got %d", cfg.RecordingCfg.TimeSliceMs))
	}

	if cfg.RecordingCfg.MaxPayloadSize < 1 {
		errors = append(errors, fmt.Sprintf("RECORDING_MAX_PAYLOAD_SIZE must be positive, got %d", cfg.RecordingCfg.MaxPayloadSize))
	}

	if cfg.ServerRequestTimeout <= cfg.SessionCfg.SubmitTimeout {
		errors = append(errors, fmt.Sprintf("SERVER_REQUEST_TIMEOUT (%s) must exceed SESSION_SUBMIT_TIMEOUT (%s)", cfg.ServerRequestTimeout, cfg.SessionCfg.SubmitTimeout))
	}

	if cfg.CORS.AllowCredentials && slices.Contains(cfg.CORS.AllowedOrigins, "*") {
		errors = append(errors, "CORS_ALLOW_CREDENTIALS requires explicit CORS_ALLOWED_ORIGINS, not *")
	}

	if !cfg.EnableMocks && cfg.InterviewConnectorCfg.Url == "" {
		errors = append(errors, "INTERVIEW_SERVICE_URL is required unless ENABLE_MOCKS is set")
	}

	if cfg.TelegramCfg.BotToken != "" && cfg.TelegramCfg.ChatID == 0 {
		errors = append(errors, "TELEGRAM_CHAT_ID is required when TELEGRAM_BOT_TOKEN is set")
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation errors:\n  - %s", strings.Join(errors, "\n  - "))
	}

	return nil
}

// Constraints converts the media section to capture constraints.
func (m MediaConfig) Constraints() entity.MediaConstraints {
	return entity.MediaConstraints{
		VideoEnabled:     m.VideoEnabled,
		Width:            m.Width,
		Height:           m.Height,
		FrameRate:        m.FrameRate,
		AudioSampleRate:  m.SampleRate,
		AudioChannels:    m.Channels,
		EchoCancellation: m.EchoCancellation,
		NoiseSuppression: m.NoiseSuppression,
		AutoGainControl:  m.AutoGainControl,
		VideoDevice:      m.VideoDevice,
		AudioDevice:      m.AudioDevice,
	}
}

// Options converts the recording section to segment encoding options.
func (r RecordingConfig) Options() entity.RecordingOptions {
	return entity.RecordingOptions{
		MimeType:           r.MimeType,
		AudioBitsPerSecond: r.AudioBitsPerSecond,
		VideoBitsPerSecond: r.VideoBitsPerSecond,
		TimeSliceMs:        r.TimeSliceMs,
		MaxPayloadBytes:    r.MaxPayloadSize,
	}
}

func getEnvFile(environment string) string {
	switch environment {
	case "prod", "production":
		return ".env.prod"
	case "local", "dev", "development":
		return ".env.local"
	default:
		return fmt.Sprintf(".env.%s", environment)
	}
}
