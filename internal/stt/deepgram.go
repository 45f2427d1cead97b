package stt

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/voxprep/voxprep/internal/reliability"
)

// Candidate audio arrives from browsers at 48 kHz.
const deepgramInputSampleRate = 48000

// DeepgramConfig configures the live transcription client.
type DeepgramConfig struct {
	APIKey            string
	WSBaseURL         string
	KeepAliveInterval time.Duration
	UtteranceEndMs    int
}

// DeepgramProvider streams candidate audio to the Deepgram live API.
type DeepgramProvider struct {
	cfg DeepgramConfig
}

func NewDeepgramProvider(cfg DeepgramConfig) *DeepgramProvider {
	if strings.TrimSpace(cfg.WSBaseURL) == "" {
		cfg.WSBaseURL = "wss://api.deepgram.com"
	}
	if cfg.KeepAliveInterval <= 0 {
		cfg.KeepAliveInterval = 8 * time.Second
	}
	if cfg.UtteranceEndMs <= 0 {
		cfg.UtteranceEndMs = 1500
	}
	return &DeepgramProvider{cfg: cfg}
}

func (p *DeepgramProvider) Name() string { return "deepgram" }

func (p *DeepgramProvider) StartSession(ctx context.Context, sessionID, language string) (Session, <-chan Event, error) {
	u, err := url.Parse(strings.TrimRight(p.cfg.WSBaseURL, "/") + "/v1/listen")
	if err != nil {
		return nil, nil, err
	}
	q := u.Query()
	q.Set("model", modelForLanguage(language))
	q.Set("language", languageCode(language))
	q.Set("encoding", "linear16")
	q.Set("sample_rate", fmt.Sprintf("%d", deepgramInputSampleRate))
	q.Set("channels", "1")
	q.Set("interim_results", "true")
	q.Set("utterance_end_ms", fmt.Sprintf("%d", p.cfg.UtteranceEndMs))
	q.Set("vad_events", "true")
	q.Set("smart_format", "true")
	u.RawQuery = q.Encode()

	headers := http.Header{}
	headers.Set("Authorization", "Token "+p.cfg.APIKey)

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u.String(), headers)
	if err != nil {
		return nil, nil, fmt.Errorf("dial deepgram websocket: %w", err)
	}

	events := make(chan Event, 256)
	s := &deepgramSession{
		conn:      conn,
		events:    events,
		sessionID: sessionID,
		done:      make(chan struct{}),
	}
	go s.readLoop(ctx)
	go s.keepAliveLoop(p.cfg.KeepAliveInterval)
	return s, events, nil
}

// nova-3 has the best English accuracy; other languages stay on nova-2.
func modelForLanguage(language string) string {
	if strings.HasPrefix(strings.ToLower(language), "en") {
		return "nova-3"
	}
	return "nova-2"
}

func languageCode(language string) string {
	if language == "" {
		return "en-US"
	}
	return language
}

type deepgramSession struct {
	conn      *websocket.Conn
	events    chan Event
	sessionID string

	writeMu   sync.Mutex
	closeOnce sync.Once
	done      chan struct{}
}

func (s *deepgramSession) SendAudio(pcm []byte) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.conn.WriteMessage(websocket.BinaryMessage, pcm)
}

func (s *deepgramSession) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.done)
		s.writeMu.Lock()
		werr := s.conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"CloseStream"}`))
		s.writeMu.Unlock()
		if werr != nil {
			log.Printf("[stt] close stream write failed for %s: %v", s.sessionID, werr)
		}
		err = s.conn.Close()
	})
	return err
}

func (s *deepgramSession) keepAliveLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			s.writeMu.Lock()
			err := s.conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"KeepAlive"}`))
			s.writeMu.Unlock()
			if err != nil {
				return
			}
		}
	}
}

type deepgramResult struct {
	Type    string `json:"type"`
	IsFinal bool   `json:"is_final"`
	Channel struct {
		Alternatives []struct {
			Transcript string  `json:"transcript"`
			Confidence float64 `json:"confidence"`
		} `json:"alternatives"`
	} `json:"channel"`
}

func (s *deepgramSession) readLoop(ctx context.Context) {
	defer close(s.events)
	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			select {
			case <-s.done:
			case <-ctx.Done():
			default:
				code := "connection_reset"
				if websocket.IsCloseError(err, websocket.ClosePolicyViolation, websocket.CloseUnsupportedData) {
					code = "rejected_stream"
				}
				s.events <- Event{
					Type:      EventError,
					Code:      code,
					Detail:    err.Error(),
					Retryable: reliability.IsRetryableProviderCode(code),
				}
			}
			return
		}

		var msg deepgramResult
		if err := json.Unmarshal(data, &msg); err != nil {
			log.Printf("[stt] undecodable message for %s: %v", s.sessionID, err)
			continue
		}

		switch msg.Type {
		case "Results":
			if len(msg.Channel.Alternatives) == 0 {
				continue
			}
			alt := msg.Channel.Alternatives[0]
			if strings.TrimSpace(alt.Transcript) == "" {
				continue
			}
			evType := EventPartial
			if msg.IsFinal {
				evType = EventFinal
			}
			s.events <- Event{Type: evType, Text: alt.Transcript, Confidence: alt.Confidence}
		case "UtteranceEnd":
			s.events <- Event{Type: EventUtteranceEnd}
		}
	}
}
