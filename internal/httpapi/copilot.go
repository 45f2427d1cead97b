package httpapi

import (
	"context"
	"encoding/base64"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/voxprep/voxprep/internal/hint"
	"github.com/voxprep/voxprep/internal/protocol"
	"github.com/voxprep/voxprep/internal/stt"
)

// ackEveryChunks is how often the copilot socket acknowledges received
// audio so clients can detect a stalled upload.
const ackEveryChunks = 25

// handleCopilotWS runs the live coaching socket. The candidate streams
// interviewer-side audio up; transcripts feed a debounced hint pipeline
// whose suggestions stream back down.
func (s *Server) handleCopilotWS(w http.ResponseWriter, r *http.Request) {
	sessionID := strings.TrimSpace(r.URL.Query().Get("session_id"))
	if sessionID == "" {
		respondError(w, http.StatusBadRequest, "missing_session_id", "query parameter session_id is required")
		return
	}
	if s.sttProvider == nil || s.llmClient == nil {
		respondError(w, http.StatusNotImplemented, "unavailable", "copilot providers not configured")
		return
	}

	sess, err := s.sessions.Get(sessionID)
	if err != nil {
		respondError(w, http.StatusNotFound, "interview_not_found", err.Error())
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	if s.metrics != nil {
		s.metrics.SessionEvents.WithLabelValues("copilot_connected").Inc()
	}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	sttSession, sttEvents, err := s.sttProvider.StartSession(ctx, sessionID+"-copilot", sess.Language)
	if err != nil {
		_ = conn.WriteJSON(protocol.ErrorEvent{
			Type:      protocol.TypeErrorEvent,
			SessionID: sessionID,
			Code:      "stt_unavailable",
			Source:    s.sttProvider.Name(),
			Retryable: true,
			Detail:    err.Error(),
		})
		return
	}
	defer sttSession.Close()

	pipeline := hint.NewPipeline(hint.Config{
		Client:        s.llmClient,
		Metrics:       s.metrics,
		Debounce:      s.cfg.HintDebounce,
		MinTranscript: s.cfg.HintMinTranscript,
		BufferCap:     s.cfg.HintBufferCap,
		DefaultLength: s.cfg.HintDefaultLength,
		DefaultTone:   s.cfg.HintDefaultTone,
		Interview: hint.Context{
			Role:           sess.Role,
			ResumeText:     sess.ResumeText,
			JobDescription: sess.JobDescription,
			Language:       sess.Language,
		},
	})

	outbound := make(chan any, 64)
	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		for {
			select {
			case <-ctx.Done():
				return
			case msg := <-outbound:
				_ = conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
				if err := conn.WriteJSON(msg); err != nil {
					if s.metrics != nil {
						s.metrics.WSWriteErrors.WithLabelValues("copilot_write_json").Inc()
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

	emitHint := func(text string) {
		select {
		case outbound <- protocol.Hint{
			Type:      protocol.TypeHint,
			SessionID: sessionID,
			Text:      text,
			TSMs:      time.Now().UnixMilli(),
		}:
		case <-ctx.Done():
		}
	}

	relayDone := make(chan struct{})
	go func() {
		defer close(relayDone)
		for {
			select {
			case <-ctx.Done():
				return
			case ev, open := <-sttEvents:
				if !open {
					cancel()
					return
				}
				switch ev.Type {
				case stt.EventFinal:
					pipeline.Append(ev.Text)
					pipeline.Trigger(ctx, emitHint)
				case stt.EventUtteranceEnd:
					pipeline.Trigger(ctx, emitHint)
				case stt.EventError:
					select {
					case outbound <- protocol.ErrorEvent{
						Type:      protocol.TypeErrorEvent,
						SessionID: sessionID,
						Code:      ev.Code,
						Source:    s.sttProvider.Name(),
						Retryable: ev.Retryable,
						Detail:    ev.Detail,
					}:
					case <-ctx.Done():
						return
					}
				}
			}
		}
	}()

	s.readCopilotLoop(ctx, conn, sessionID, sttSession, pipeline, outbound)

	cancel()
	<-relayDone
	<-writerDone
	if s.metrics != nil {
		s.metrics.SessionEvents.WithLabelValues("copilot_disconnected").Inc()
	}
}

func (s *Server) readCopilotLoop(ctx context.Context, conn *websocket.Conn, sessionID string, sttSession stt.Session, pipeline *hint.Pipeline, outbound chan<- any) {
	conn.SetReadLimit(2 << 20)
	_ = conn.SetReadDeadline(time.Now().Add(120 * time.Second))
	conn.SetPongHandler(func(string) error {
		_ = conn.SetReadDeadline(time.Now().Add(120 * time.Second))
		return nil
	})

	var chunks int
	var bytes int64

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
			continue
		}
		if t, ok := messageTypeOf(parsed); ok && s.metrics != nil {
			s.metrics.WSMessages.WithLabelValues("inbound", string(t)).Inc()
		}

		switch m := parsed.(type) {
		case protocol.ClientAudioChunk:
			pcm, err := base64.StdEncoding.DecodeString(m.PCM16Base64)
			if err != nil {
				continue
			}
			if err := sttSession.SendAudio(pcm); err != nil {
				log.Printf("[copilot] forward audio failed for %s: %v", sessionID, err)
			}
			_ = s.sessions.Touch(sessionID)
			chunks++
			bytes += int64(len(pcm))
			if chunks%ackEveryChunks == 0 {
				select {
				case outbound <- protocol.AudioAck{
					Type:      protocol.TypeAudioAck,
					SessionID: sessionID,
					Chunks:    chunks,
					Bytes:     bytes,
				}:
				case <-ctx.Done():
					return
				default:
				}
			}

		case protocol.HintSettings:
			pipeline.UpdateSettings(m.Length, m.Tone)

		case protocol.ClientControl:
			if m.Action == protocol.ActionEnd {
				return
			}
		}

		select {
		case <-ctx.Done():
			return
		default:
		}
	}
}
