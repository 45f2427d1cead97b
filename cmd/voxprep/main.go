package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/voxprep/voxprep/internal/config"
	"github.com/voxprep/voxprep/internal/httpapi"
	"github.com/voxprep/voxprep/internal/llm"
	"github.com/voxprep/voxprep/internal/observability"
	"github.com/voxprep/voxprep/internal/session"
	"github.com/voxprep/voxprep/internal/store"
	"github.com/voxprep/voxprep/internal/stt"
	"github.com/voxprep/voxprep/internal/tts"
	"github.com/voxprep/voxprep/internal/voice"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	metrics := observability.NewMetrics(cfg.MetricsNamespace)

	ctx := context.Background()
	interviewStore, err := store.NewStore(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("store init failed: %v", err)
	}
	defer interviewStore.Close()

	llmClient, err := llm.NewClient(llm.Config{
		Mode:    "auto",
		BaseURL: cfg.OpenAIBaseURL,
		APIKey:  cfg.OpenAIAPIKey,
		Model:   cfg.OpenAIChatModel,
		Timeout: cfg.OpenAITimeout,
	})
	if err != nil {
		log.Fatalf("language model client init failed: %v", err)
	}

	sttProvider := selectSpeechProvider(cfg)

	var primaryTTS tts.Provider
	if strings.TrimSpace(cfg.OpenAIAPIKey) != "" {
		primaryTTS = tts.NewOpenAIProvider(cfg.OpenAIBaseURL, cfg.OpenAIAPIKey, cfg.OpenAITTSModel, cfg.OpenAITimeout)
		log.Printf("speech synthesis: openai primary with edge fallback")
	} else {
		log.Printf("speech synthesis: edge only (no OPENAI_API_KEY)")
	}
	bridge := tts.NewBridge(primaryTTS, tts.NewEdgeProvider(cfg.EdgeTTSWSBaseURL))

	sessions := session.NewManager(cfg.SessionInactivityTimeout)
	sessions.SetExpireHook(func(_ *session.Session) {
		metrics.SessionEvents.WithLabelValues("expired").Inc()
		metrics.ActiveInterviews.Set(float64(sessions.ActiveCount()))
	})

	orchestrator := voice.NewOrchestrator(voice.Deps{
		Sessions:      sessions,
		Store:         interviewStore,
		STT:           sttProvider,
		Bridge:        bridge,
		LLM:           llmClient,
		Metrics:       metrics,
		TailPadding:   cfg.SpeakingTailPadding,
		FirstAudioSLO: cfg.FirstAudioSLO,
	})

	api := httpapi.New(cfg, httpapi.Deps{
		Sessions:     sessions,
		Store:        interviewStore,
		Orchestrator: orchestrator,
		STT:          sttProvider,
		LLM:          llmClient,
		Bridge:       bridge,
		Metrics:      metrics,
	})
	httpServer := &http.Server{
		Addr:    cfg.BindAddr,
		Handler: api.Router(),
	}

	runCtx, runCancel := context.WithCancel(context.Background())
	defer runCancel()
	sessions.StartJanitor(runCtx, 5*time.Second)

	go func() {
		log.Printf("server listening on %s", cfg.BindAddr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("listen error: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	log.Printf("shutdown signal received")

	runCancel()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
		_ = httpServer.Close()
	}

	log.Printf("shutdown complete")
}

func selectSpeechProvider(cfg config.Config) stt.Provider {
	mode := strings.ToLower(strings.TrimSpace(cfg.SpeechProvider))
	if mode == "" {
		mode = "auto"
	}

	tryDeepgram := func() stt.Provider {
		if strings.TrimSpace(cfg.DeepgramAPIKey) == "" {
			return nil
		}
		log.Printf("speech recognition: deepgram realtime")
		return stt.NewDeepgramProvider(stt.DeepgramConfig{
			APIKey:            cfg.DeepgramAPIKey,
			WSBaseURL:         cfg.DeepgramWSBaseURL,
			KeepAliveInterval: cfg.DeepgramKeepAlive,
		})
	}

	switch mode {
	case "deepgram":
		if p := tryDeepgram(); p != nil {
			return p
		}
		log.Fatalf("SPEECH_PROVIDER=deepgram but DEEPGRAM_API_KEY is not set")
		return nil
	case "mock":
		log.Printf("speech recognition: mock")
		return stt.NewMockProvider()
	case "auto":
		if p := tryDeepgram(); p != nil {
			return p
		}
		log.Printf("speech recognition: mock (no DEEPGRAM_API_KEY)")
		return stt.NewMockProvider()
	default:
		log.Fatalf("invalid SPEECH_PROVIDER: %q (expected auto|deepgram|mock)", cfg.SpeechProvider)
		return nil
	}
}
