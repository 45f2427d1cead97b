package tts

import (
	"context"
	"encoding/binary"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/voxprep/voxprep/internal/audio"
)

const (
	edgeSourceRate   = 24000
	edgeOutputFormat = "raw-24khz-16bit-mono-pcm"
	edgePath         = "/consumer/speech/synthesize/readaloud/edge/v1"
	// Public token used by the Edge read-aloud endpoint; the service is keyless.
	edgeTrustedClientToken = "6A5AA1D4EAFF4E9FB37E23D68491D6F4"
)

// EdgeProvider synthesizes speech through the Microsoft Edge read-aloud
// websocket. It needs no API key, which makes it the fallback of last
// resort when the primary synthesizer is down or unconfigured.
type EdgeProvider struct {
	wsBaseURL string
}

func NewEdgeProvider(wsBaseURL string) *EdgeProvider {
	if strings.TrimSpace(wsBaseURL) == "" {
		wsBaseURL = "wss://speech.platform.bing.com"
	}
	return &EdgeProvider{wsBaseURL: strings.TrimRight(wsBaseURL, "/")}
}

func (p *EdgeProvider) Name() string { return "edge" }

func (p *EdgeProvider) Speak(ctx context.Context, req SpeakRequest) (<-chan Event, error) {
	voice := req.VoiceID
	if voice == "" {
		voice = "en-US-JennyNeural"
	}
	lang := req.Language
	if lang == "" {
		lang = "en-US"
	}

	url := fmt.Sprintf("%s%s?TrustedClientToken=%s&ConnectionId=%s",
		p.wsBaseURL, edgePath, edgeTrustedClientToken, strings.ReplaceAll(uuid.NewString(), "-", ""))

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("dial edge websocket: %w", err)
	}

	ts := time.Now().UTC().Format("Mon Jan 02 2006 15:04:05 GMT+0000 (Coordinated Universal Time)")

	configMsg := fmt.Sprintf(
		"X-Timestamp:%s\r\nContent-Type:application/json; charset=utf-8\r\nPath:speech.config\r\n\r\n"+
			`{"context":{"synthesis":{"audio":{"metadataoptions":{"sentenceBoundaryEnabled":"false","wordBoundaryEnabled":"false"},"outputFormat":"%s"}}}}`,
		ts, edgeOutputFormat)
	if err := conn.WriteMessage(websocket.TextMessage, []byte(configMsg)); err != nil {
		conn.Close()
		return nil, fmt.Errorf("send speech config: %w", err)
	}

	ssml := fmt.Sprintf(
		`<speak version='1.0' xmlns='http://www.w3.org/2001/10/synthesis' xml:lang='%s'><voice name='%s'>%s</voice></speak>`,
		lang, voice, escapeXML(req.Text))
	ssmlMsg := fmt.Sprintf(
		"X-RequestId:%s\r\nContent-Type:application/ssml+xml\r\nX-Timestamp:%s\r\nPath:ssml\r\n\r\n%s",
		strings.ReplaceAll(uuid.NewString(), "-", ""), ts, ssml)
	if err := conn.WriteMessage(websocket.TextMessage, []byte(ssmlMsg)); err != nil {
		conn.Close()
		return nil, fmt.Errorf("send ssml: %w", err)
	}

	events := make(chan Event, 16)
	go p.readLoop(ctx, conn, events)
	return events, nil
}

func (p *EdgeProvider) readLoop(ctx context.Context, conn *websocket.Conn, events chan<- Event) {
	defer close(events)
	defer conn.Close()

	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-stop:
		}
	}()

	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				emit(ctx, events, Event{Type: EventError, Code: "canceled", Detail: ctx.Err().Error()})
				return
			}
			emit(ctx, events, Event{Type: EventError, Code: "connection_reset", Detail: err.Error(), Retryable: true})
			return
		}

		switch msgType {
		case websocket.TextMessage:
			if strings.Contains(string(data), "Path:turn.end") {
				emit(ctx, events, Event{Type: EventFinal})
				return
			}
		case websocket.BinaryMessage:
			pcm := extractEdgeAudio(data)
			if len(pcm) == 0 {
				continue
			}
			out := audio.ResamplePCM16(pcm, edgeSourceRate, TargetSampleRate)
			if len(out) > 0 {
				if !emit(ctx, events, Event{Type: EventAudio, PCM: out}) {
					return
				}
			}
		}
	}
}

// extractEdgeAudio strips the binary frame header. The first two bytes
// carry the header length; audio follows when the header names the
// audio path.
func extractEdgeAudio(frame []byte) []byte {
	if len(frame) < 2 {
		return nil
	}
	headerLen := int(binary.BigEndian.Uint16(frame))
	if len(frame) < 2+headerLen {
		return nil
	}
	header := string(frame[2 : 2+headerLen])
	if !strings.Contains(header, "Path:audio") {
		return nil
	}
	return frame[2+headerLen:]
}

func escapeXML(s string) string {
	r := strings.NewReplacer(
		"&", "&amp;",
		"<", "&lt;",
		">", "&gt;",
		"'", "&apos;",
		`"`, "&quot;",
	)
	return r.Replace(s)
}
