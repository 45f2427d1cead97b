package tts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/voxprep/voxprep/internal/audio"
	"github.com/voxprep/voxprep/internal/reliability"
)

const openAISourceRate = 24000

// OpenAIProvider synthesizes speech through the OpenAI audio endpoint.
// The endpoint returns 24 kHz mono PCM16 which is resampled down to
// the target rate as it streams.
type OpenAIProvider struct {
	baseURL string
	apiKey  string
	model   string
	client  *http.Client
}

func NewOpenAIProvider(baseURL, apiKey, model string, timeout time.Duration) *OpenAIProvider {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &OpenAIProvider{
		baseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		apiKey:  strings.TrimSpace(apiKey),
		model:   model,
		client:  &http.Client{Timeout: timeout},
	}
}

func (p *OpenAIProvider) Name() string { return "openai" }

type speechRequest struct {
	Model          string `json:"model"`
	Voice          string `json:"voice"`
	Input          string `json:"input"`
	ResponseFormat string `json:"response_format"`
}

func (p *OpenAIProvider) Speak(ctx context.Context, req SpeakRequest) (<-chan Event, error) {
	payload, err := json.Marshal(speechRequest{
		Model:          p.model,
		Voice:          req.VoiceID,
		Input:          req.Text,
		ResponseFormat: "pcm",
	})
	if err != nil {
		return nil, fmt.Errorf("marshal speech request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/audio/speech", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create speech request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+p.apiKey)

	res, err := p.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("send speech request: %w", err)
	}
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(res.Body, 4<<10))
		res.Body.Close()
		return nil, fmt.Errorf("speech status %d (retryable=%v): %s",
			res.StatusCode, reliability.IsRetryableHTTPStatus(res.StatusCode), bytes.TrimSpace(body))
	}

	events := make(chan Event, 16)
	go p.stream(ctx, res.Body, events)
	return events, nil
}

func (p *OpenAIProvider) stream(ctx context.Context, body io.ReadCloser, events chan<- Event) {
	defer close(events)
	defer body.Close()

	// One second of source audio per chunk, sample aligned.
	buf := make([]byte, openAISourceRate*2)
	carry := make([]byte, 0, 2)

	for {
		if ctx.Err() != nil {
			emit(ctx, events, Event{Type: EventError, Code: "canceled", Detail: ctx.Err().Error()})
			return
		}
		n, err := body.Read(buf)
		if n > 0 {
			chunk := append(carry, buf[:n]...)
			carry = carry[:0]
			if len(chunk)%2 != 0 {
				carry = append(carry, chunk[len(chunk)-1])
				chunk = chunk[:len(chunk)-1]
			}
			if pcm := audio.ResamplePCM16(chunk, openAISourceRate, TargetSampleRate); len(pcm) > 0 {
				if !emit(ctx, events, Event{Type: EventAudio, PCM: pcm}) {
					return
				}
			}
		}
		if err == io.EOF {
			emit(ctx, events, Event{Type: EventFinal})
			return
		}
		if err != nil {
			emit(ctx, events, Event{Type: EventError, Code: "stream_read", Detail: err.Error(), Retryable: true})
			return
		}
	}
}

func emit(ctx context.Context, events chan<- Event, ev Event) bool {
	select {
	case events <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}
