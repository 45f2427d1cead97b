package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config contains all runtime settings for the mock interview service.
type Config struct {
	BindAddr                 string
	ShutdownTimeout          time.Duration
	SessionInactivityTimeout time.Duration
	FirstAudioSLO            time.Duration
	MetricsNamespace         string

	AllowAnyOrigin bool

	SpeechProvider string

	DeepgramAPIKey    string
	DeepgramWSBaseURL string
	DeepgramKeepAlive time.Duration

	OpenAIAPIKey     string
	OpenAIBaseURL    string
	OpenAIChatModel  string
	OpenAITTSModel   string
	OpenAITimeout    time.Duration
	EdgeTTSWSBaseURL string

	DefaultQuestionCount int
	MaxQuestionCount     int
	SpeakingTailPadding  time.Duration

	HintDebounce      time.Duration
	HintMinTranscript int
	HintBufferCap     int
	HintDefaultLength string
	HintDefaultTone   string

	DatabaseURL string
}

// Load reads environment variables and applies safe defaults.
func Load() (Config, error) {
	cfg := Config{
		BindAddr:          envOrDefault("APP_BIND_ADDR", ":8080"),
		MetricsNamespace:  envOrDefault("APP_METRICS_NAMESPACE", "voxprep"),
		AllowAnyOrigin:    false,
		SpeechProvider:    envOrDefault("SPEECH_PROVIDER", "auto"),
		DeepgramWSBaseURL: envOrDefault("DEEPGRAM_WS_BASE_URL", "wss://api.deepgram.com"),
		OpenAIBaseURL:     envOrDefault("OPENAI_BASE_URL", "https://api.openai.com/v1"),
		OpenAIChatModel:   envOrDefault("OPENAI_CHAT_MODEL", "gpt-4o-mini"),
		OpenAITTSModel:    envOrDefault("OPENAI_TTS_MODEL", "gpt-4o-mini-tts"),
		// Edge neural TTS is keyless; it only needs the public speech gateway.
		EdgeTTSWSBaseURL:         envOrDefault("EDGE_TTS_WS_BASE_URL", "wss://speech.platform.bing.com"),
		DeepgramAPIKey:           stringsTrimSpace("DEEPGRAM_API_KEY"),
		OpenAIAPIKey:             stringsTrimSpace("OPENAI_API_KEY"),
		DatabaseURL:              stringsTrimSpace("DATABASE_URL"),
		DefaultQuestionCount:     5,
		MaxQuestionCount:         20,
		SpeakingTailPadding:      1500 * time.Millisecond,
		HintDebounce:             8 * time.Second,
		HintMinTranscript:        30,
		HintBufferCap:            2000,
		HintDefaultLength:        envOrDefault("HINT_DEFAULT_LENGTH", "medium"),
		HintDefaultTone:          envOrDefault("HINT_DEFAULT_TONE", "professional"),
		OpenAITimeout:            30 * time.Second,
		DeepgramKeepAlive:        8 * time.Second,
		ShutdownTimeout:          15 * time.Second,
		SessionInactivityTimeout: 10 * time.Minute,
		FirstAudioSLO:            700 * time.Millisecond,
	}
	var err error
	cfg.ShutdownTimeout, err = durationFromEnv("APP_SHUTDOWN_TIMEOUT", cfg.ShutdownTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.SessionInactivityTimeout, err = durationFromEnv("APP_SESSION_INACTIVITY_TIMEOUT", cfg.SessionInactivityTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.FirstAudioSLO, err = durationFromEnv("APP_FIRST_AUDIO_SLO", cfg.FirstAudioSLO)
	if err != nil {
		return Config{}, err
	}
	cfg.AllowAnyOrigin, err = boolFromEnv("APP_ALLOW_ANY_ORIGIN", cfg.AllowAnyOrigin)
	if err != nil {
		return Config{}, err
	}
	cfg.OpenAITimeout, err = durationFromEnv("OPENAI_TIMEOUT", cfg.OpenAITimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.DeepgramKeepAlive, err = durationFromEnv("DEEPGRAM_KEEPALIVE_INTERVAL", cfg.DeepgramKeepAlive)
	if err != nil {
		return Config{}, err
	}
	cfg.SpeakingTailPadding, err = durationFromEnv("APP_SPEAKING_TAIL_PADDING", cfg.SpeakingTailPadding)
	if err != nil {
		return Config{}, err
	}
	cfg.DefaultQuestionCount, err = intFromEnv("APP_DEFAULT_QUESTION_COUNT", cfg.DefaultQuestionCount)
	if err != nil {
		return Config{}, err
	}
	cfg.MaxQuestionCount, err = intFromEnv("APP_MAX_QUESTION_COUNT", cfg.MaxQuestionCount)
	if err != nil {
		return Config{}, err
	}
	cfg.HintDebounce, err = durationFromEnv("HINT_DEBOUNCE", cfg.HintDebounce)
	if err != nil {
		return Config{}, err
	}
	cfg.HintMinTranscript, err = intFromEnv("HINT_MIN_TRANSCRIPT", cfg.HintMinTranscript)
	if err != nil {
		return Config{}, err
	}
	cfg.HintBufferCap, err = intFromEnv("HINT_BUFFER_CAP", cfg.HintBufferCap)
	if err != nil {
		return Config{}, err
	}

	if cfg.SessionInactivityTimeout < 5*time.Second {
		return Config{}, fmt.Errorf("APP_SESSION_INACTIVITY_TIMEOUT must be at least 5s")
	}
	if cfg.DefaultQuestionCount <= 0 {
		return Config{}, fmt.Errorf("APP_DEFAULT_QUESTION_COUNT must be positive")
	}
	if cfg.MaxQuestionCount < cfg.DefaultQuestionCount {
		return Config{}, fmt.Errorf("APP_MAX_QUESTION_COUNT must be >= APP_DEFAULT_QUESTION_COUNT")
	}
	if cfg.HintMinTranscript < 0 {
		return Config{}, fmt.Errorf("HINT_MIN_TRANSCRIPT must be >= 0")
	}
	if cfg.HintBufferCap <= 0 {
		return Config{}, fmt.Errorf("HINT_BUFFER_CAP must be positive")
	}
	switch cfg.HintDefaultLength {
	case "short", "medium", "long":
	default:
		return Config{}, fmt.Errorf("HINT_DEFAULT_LENGTH must be one of short, medium, long")
	}
	switch cfg.HintDefaultTone {
	case "casual", "technical", "professional":
	default:
		return Config{}, fmt.Errorf("HINT_DEFAULT_TONE must be one of casual, technical, professional")
	}

	return cfg, nil
}

func envOrDefault(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func stringsTrimSpace(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

func durationFromEnv(key string, fallback time.Duration) (time.Duration, error) {
	v := stringsTrimSpace(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return d, nil
}

func intFromEnv(key string, fallback int) (int, error) {
	v := stringsTrimSpace(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return n, nil
}

func boolFromEnv(key string, fallback bool) (bool, error) {
	v := strings.ToLower(stringsTrimSpace(key))
	if v == "" {
		return fallback, nil
	}
	switch v {
	case "1", "true", "t", "yes", "y", "on":
		return true, nil
	case "0", "false", "f", "no", "n", "off":
		return false, nil
	default:
		return false, fmt.Errorf("%s parse error: expected bool", key)
	}
}
