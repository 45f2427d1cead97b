package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	setCoreEnvEmpty(t)
	t.Setenv("APP_BIND_ADDR", ":9090")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.SpeechProvider != "auto" {
		t.Fatalf("SpeechProvider = %q, want %q", cfg.SpeechProvider, "auto")
	}
	if cfg.DefaultQuestionCount != 5 {
		t.Fatalf("DefaultQuestionCount = %d, want 5", cfg.DefaultQuestionCount)
	}
	if cfg.HintDebounce != 8*time.Second {
		t.Fatalf("HintDebounce = %v, want 8s", cfg.HintDebounce)
	}
	if cfg.HintBufferCap != 2000 {
		t.Fatalf("HintBufferCap = %d, want 2000", cfg.HintBufferCap)
	}
	if cfg.OpenAIAPIKey != "" {
		t.Fatalf("OpenAIAPIKey = %q, want empty default", cfg.OpenAIAPIKey)
	}
}

func TestLoadUsesExplicitOverrides(t *testing.T) {
	setCoreEnvEmpty(t)
	t.Setenv("APP_BIND_ADDR", ":9191")
	t.Setenv("OPENAI_BASE_URL", "http://localhost:7777/v1")
	t.Setenv("APP_DEFAULT_QUESTION_COUNT", "8")
	t.Setenv("HINT_DEBOUNCE", "4s")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.OpenAIBaseURL != "http://localhost:7777/v1" {
		t.Fatalf("OpenAIBaseURL = %q, want explicit value", cfg.OpenAIBaseURL)
	}
	if cfg.DefaultQuestionCount != 8 {
		t.Fatalf("DefaultQuestionCount = %d, want 8", cfg.DefaultQuestionCount)
	}
	if cfg.HintDebounce != 4*time.Second {
		t.Fatalf("HintDebounce = %v, want 4s", cfg.HintDebounce)
	}
}

func TestLoadRejectsBadHintTone(t *testing.T) {
	setCoreEnvEmpty(t)
	t.Setenv("HINT_DEFAULT_TONE", "sarcastic")

	if _, err := Load(); err == nil {
		t.Fatalf("Load() error = nil, want tone validation error")
	}
}

func TestLoadRejectsQuestionCountInversion(t *testing.T) {
	setCoreEnvEmpty(t)
	t.Setenv("APP_DEFAULT_QUESTION_COUNT", "10")
	t.Setenv("APP_MAX_QUESTION_COUNT", "3")

	if _, err := Load(); err == nil {
		t.Fatalf("Load() error = nil, want max/default validation error")
	}
}

func setCoreEnvEmpty(t *testing.T) {
	t.Helper()
	keys := []string{
		"APP_BIND_ADDR",
		"APP_SHUTDOWN_TIMEOUT",
		"APP_SESSION_INACTIVITY_TIMEOUT",
		"APP_FIRST_AUDIO_SLO",
		"APP_METRICS_NAMESPACE",
		"APP_ALLOW_ANY_ORIGIN",
		"APP_SPEAKING_TAIL_PADDING",
		"APP_DEFAULT_QUESTION_COUNT",
		"APP_MAX_QUESTION_COUNT",
		"SPEECH_PROVIDER",
		"DEEPGRAM_API_KEY",
		"DEEPGRAM_WS_BASE_URL",
		"DEEPGRAM_KEEPALIVE_INTERVAL",
		"OPENAI_API_KEY",
		"OPENAI_BASE_URL",
		"OPENAI_CHAT_MODEL",
		"OPENAI_TTS_MODEL",
		"OPENAI_TIMEOUT",
		"EDGE_TTS_WS_BASE_URL",
		"HINT_DEBOUNCE",
		"HINT_MIN_TRANSCRIPT",
		"HINT_BUFFER_CAP",
		"HINT_DEFAULT_LENGTH",
		"HINT_DEFAULT_TONE",
		"DATABASE_URL",
	}
	for _, key := range keys {
		t.Setenv(key, "")
	}
}
