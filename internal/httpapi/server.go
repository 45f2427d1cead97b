// Package httpapi exposes the REST surface and the two websockets: the
// interview socket driven by the turn orchestrator, and the copilot
// socket that streams live coaching hints.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"math/rand"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/voxprep/voxprep/internal/config"
	"github.com/voxprep/voxprep/internal/llm"
	"github.com/voxprep/voxprep/internal/observability"
	"github.com/voxprep/voxprep/internal/protocol"
	"github.com/voxprep/voxprep/internal/session"
	"github.com/voxprep/voxprep/internal/store"
	"github.com/voxprep/voxprep/internal/stt"
	"github.com/voxprep/voxprep/internal/tts"
)

type Orchestrator interface {
	RunConnection(ctx context.Context, s *session.Session, inbound <-chan any, outbound chan<- any) error
}

type Server struct {
	cfg          config.Config
	sessions     *session.Manager
	store        store.Store
	orchestrator Orchestrator
	sttProvider  stt.Provider
	llmClient    llm.Client
	bridge       *tts.Bridge
	metrics      *observability.Metrics
	upgrader     websocket.Upgrader

	// newRand is swapped in tests for deterministic avatar selection.
	newRand func() *rand.Rand
}

type Deps struct {
	Sessions     *session.Manager
	Store        store.Store
	Orchestrator Orchestrator
	STT          stt.Provider
	LLM          llm.Client
	Bridge       *tts.Bridge
	Metrics      *observability.Metrics
}

func New(cfg config.Config, deps Deps) *Server {
	return &Server{
		cfg:          cfg,
		sessions:     deps.Sessions,
		store:        deps.Store,
		orchestrator: deps.Orchestrator,
		sttProvider:  deps.STT,
		llmClient:    deps.LLM,
		bridge:       deps.Bridge,
		metrics:      deps.Metrics,
		newRand: func() *rand.Rand {
			return rand.New(rand.NewSource(time.Now().UnixNano()))
		},
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				// Default: only allow browser websocket connections from
				// the same origin, so other sites cannot drive a
				// candidate's mic session if the service leaves localhost.
				if cfg.AllowAnyOrigin {
					return true
				}
				origin := strings.TrimSpace(r.Header.Get("Origin"))
				if origin == "" {
					// Non-browser clients often omit Origin. Allow them.
					return true
				}
				u, err := url.Parse(origin)
				if err != nil {
					return false
				}
				if u.Scheme != "http" && u.Scheme != "https" {
					return false
				}
				return strings.EqualFold(u.Host, r.Host)
			},
		},
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", s.handleHealth)
	r.Get("/readyz", s.handleReady)
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		observability.MetricsHandler().ServeHTTP(w, r)
	})

	r.Post("/v1/interviews", s.handleCreateInterview)
	r.Get("/v1/interviews/{id}", s.handleGetInterview)
	r.Get("/v1/interviews/{id}/messages", s.handleInterviewMessages)
	r.Post("/v1/interviews/{id}/end", s.handleEndInterview)
	r.Get("/v1/interviews/ws", s.handleInterviewWS)
	r.Get("/v1/copilot/ws", s.handleCopilotWS)
	r.Post("/v1/tts/preview", s.handlePreviewTTS)
	r.Get("/v1/perf/latency", s.handlePerfLatency)

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"status":          "ok",
		"speech_provider": s.speechProviderName(),
	})
}

func (s *Server) handleReady(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"status":            "ready",
		"active_interviews": s.sessions.ActiveCount(),
	})
}

func (s *Server) speechProviderName() string {
	if s.sttProvider == nil {
		return "none"
	}
	return s.sttProvider.Name()
}

func (s *Server) handleCreateInterview(w http.ResponseWriter, r *http.Request) {
	var req session.CreateRequest
	if err := decodeJSON(r, &req); err != nil && !errors.Is(err, errEmptyBody) {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if strings.TrimSpace(req.Role) == "" {
		req.Role = "Software Engineer"
	}
	if strings.TrimSpace(req.Language) == "" {
		req.Language = "en-US"
	}
	if req.TotalQuestions <= 0 {
		req.TotalQuestions = s.cfg.DefaultQuestionCount
	}
	if s.cfg.MaxQuestionCount > 0 && req.TotalQuestions > s.cfg.MaxQuestionCount {
		req.TotalQuestions = s.cfg.MaxQuestionCount
	}

	profile := tts.SelectProfile(s.newRand(), req.Language)
	sess := s.sessions.Create(req, profile)

	if s.store != nil {
		_, err := s.store.CreateInterview(r.Context(), store.InterviewRecord{
			ID:             sess.ID,
			CandidateName:  sess.CandidateName,
			Role:           sess.Role,
			Language:       sess.Language,
			ResumeText:     req.ResumeText,
			JobDescription: req.JobDescription,
			TotalQuestions: sess.TotalQuestions,
			Status:         store.StatusWaiting,
		})
		if err != nil {
			_, _ = s.sessions.End(sess.ID)
			respondError(w, http.StatusInternalServerError, "store_unavailable", err.Error())
			return
		}
	}

	if s.metrics != nil {
		s.metrics.ActiveInterviews.Set(float64(s.sessions.ActiveCount()))
		s.metrics.SessionEvents.WithLabelValues("created").Inc()
	}
	respondJSON(w, http.StatusCreated, session.ResponseFrom(sess, s.sessions.InactivityTimeout()))
}

func (s *Server) handleGetInterview(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if s.store == nil {
		respondError(w, http.StatusNotImplemented, "unavailable", "store not configured")
		return
	}
	rec, err := s.store.GetInterview(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			respondError(w, http.StatusNotFound, "interview_not_found", "no interview with that id")
			return
		}
		respondError(w, http.StatusInternalServerError, "store_unavailable", err.Error())
		return
	}
	respondJSON(w, http.StatusOK, rec)
}

func (s *Server) handleInterviewMessages(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if s.store == nil {
		respondError(w, http.StatusNotImplemented, "unavailable", "store not configured")
		return
	}
	limit := 50
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			respondError(w, http.StatusBadRequest, "invalid_limit", "limit must be a positive integer")
			return
		}
		limit = parsed
	}
	msgs, err := s.store.Messages(r.Context(), id, limit)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "store_unavailable", err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"messages": msgs})
}

func (s *Server) handleEndInterview(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if strings.TrimSpace(id) == "" {
		respondError(w, http.StatusBadRequest, "invalid_interview_id", "missing interview id")
		return
	}

	sess, err := s.sessions.End(id)
	if err != nil {
		respondError(w, http.StatusNotFound, "interview_not_found", err.Error())
		return
	}
	if s.store != nil {
		if rec, err := s.store.GetInterview(r.Context(), id); err == nil {
			_ = s.store.UpdateProgress(r.Context(), id, rec.CurrentQuestion, store.StatusCompleted)
		}
	}
	if s.metrics != nil {
		s.metrics.ActiveInterviews.Set(float64(s.sessions.ActiveCount()))
		s.metrics.SessionEvents.WithLabelValues("ended").Inc()
	}
	respondJSON(w, http.StatusOK, sess)
}

func (s *Server) handleInterviewWS(w http.ResponseWriter, r *http.Request) {
	sessionID := strings.TrimSpace(r.URL.Query().Get("session_id"))
	if sessionID == "" {
		respondError(w, http.StatusBadRequest, "missing_session_id", "query parameter session_id is required")
		return
	}
	if s.orchestrator == nil {
		respondError(w, http.StatusNotImplemented, "unavailable", "orchestrator not configured")
		return
	}

	sess, err := s.sessions.Get(sessionID)
	if err != nil {
		respondError(w, http.StatusNotFound, "interview_not_found", err.Error())
		return
	}
	if sess.Status != session.StatusActive {
		respondError(w, http.StatusConflict, "interview_ended", "interview is no longer active")
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	if s.metrics != nil {
		s.metrics.SessionEvents.WithLabelValues("ws_connected").Inc()
	}
	if s.store != nil {
		bg, cancelBG := context.WithTimeout(context.Background(), 3*time.Second)
		_ = s.store.UpdateProgress(bg, sessionID, 0, store.StatusInProgress)
		cancelBG()
	}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	inbound := make(chan any, 256)
	outbound := make(chan any, 256)
	runDone := make(chan struct{})

	go func() {
		defer close(runDone)
		_ = s.orchestrator.RunConnection(ctx, sess, inbound, outbound)
		cancel()
	}()

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-outbound:
				if !ok {
					return
				}
				_ = conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
				if err := conn.WriteJSON(msg); err != nil {
					if s.metrics != nil {
						s.metrics.WSWriteErrors.WithLabelValues("write_json").Inc()
					}
					cancel()
					return
				}
				if t, ok := messageTypeOf(msg); ok && s.metrics != nil {
					s.metrics.WSMessages.WithLabelValues("outbound", string(t)).Inc()
				}
			}
		}
	}()

	s.readClientLoop(ctx, conn, sessionID, inbound, outbound)

	cancel()
	close(inbound)
	<-runDone
	<-writerDone
	if s.metrics != nil {
		s.metrics.SessionEvents.WithLabelValues("ws_disconnected").Inc()
	}
}

// readClientLoop pumps parsed client messages into inbound until the
// socket or the context closes.
func (s *Server) readClientLoop(ctx context.Context, conn *websocket.Conn, sessionID string, inbound chan<- any, outbound chan<- any) {
	conn.SetReadLimit(2 << 20)
	_ = conn.SetReadDeadline(time.Now().Add(120 * time.Second))
	conn.SetPongHandler(func(string) error {
		_ = conn.SetReadDeadline(time.Now().Add(120 * time.Second))
		return nil
	})

	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(120 * time.Second))
		if msgType != websocket.TextMessage {
			continue
		}
		parsed, err := protocol.ParseClientMessage(data)
		if err != nil {
			errEvent := protocol.ErrorEvent{
				Type:      protocol.TypeErrorEvent,
				SessionID: sessionID,
				Code:      "invalid_client_message",
				Source:    "gateway",
				Retryable: false,
				Detail:    err.Error(),
			}
			select {
			case outbound <- errEvent:
				s.metrics.ObserveOutboundMessage(string(protocol.TypeErrorEvent), "queued")
			default:
				// Keep websocket writes single-threaded; drop if the
				// outbound queue is saturated.
				s.metrics.ObserveOutboundMessage(string(protocol.TypeErrorEvent), "drop_full")
			}
			continue
		}

		if t, ok := messageTypeOf(parsed); ok && s.metrics != nil {
			s.metrics.WSMessages.WithLabelValues("inbound", string(t)).Inc()
		}
		select {
		case <-ctx.Done():
			return
		case inbound <- parsed:
		}
	}
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

var errEmptyBody = errors.New("empty body")

func decodeJSON(r *http.Request, out any) error {
	if r.Body == nil {
		return errEmptyBody
	}
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(out); err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "eof") {
			return errEmptyBody
		}
		return err
	}
	return nil
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, errorResponse{Error: message, Code: code})
}

func messageTypeOf(v any) (protocol.MessageType, bool) {
	switch m := v.(type) {
	case protocol.ClientAudioChunk:
		return m.Type, true
	case protocol.ClientControl:
		return m.Type, true
	case protocol.HintSettings:
		return m.Type, true
	case protocol.AvatarConfig:
		return m.Type, true
	case protocol.Transcript:
		return m.Type, true
	case protocol.InterviewQuestion:
		return m.Type, true
	case protocol.Evaluation:
		return m.Type, true
	case protocol.SpeechAudio:
		return m.Type, true
	case protocol.SpeechDone:
		return m.Type, true
	case protocol.SpeechFallback:
		return m.Type, true
	case protocol.InterviewComplete:
		return m.Type, true
	case protocol.Processing:
		return m.Type, true
	case protocol.Hint:
		return m.Type, true
	case protocol.AudioAck:
		return m.Type, true
	case protocol.SystemEvent:
		return m.Type, true
	case protocol.ErrorEvent:
		return m.Type, true
	default:
		return "", false
	}
}
