// Package tts synthesizes interviewer speech. Two providers sit behind
// a bridge: the primary HTTP synthesizer and a keyless websocket
// fallback. All audio leaving this package is 16 kHz mono PCM16.
package tts

import "context"

// TargetSampleRate is the normalized output rate for all providers.
const TargetSampleRate = 16000

// EventType enumerates synthesis stream events.
type EventType string

const (
	EventAudio EventType = "audio"
	EventFinal EventType = "final"
	EventError EventType = "error"
)

// Event is a single item in a synthesis stream. PCM is 16 kHz mono
// PCM16 for audio events.
type Event struct {
	Type      EventType
	PCM       []byte
	Code      string
	Detail    string
	Retryable bool
}

// SpeakRequest describes one utterance to synthesize.
type SpeakRequest struct {
	Text     string
	VoiceID  string
	Language string
}

// Provider streams synthesized speech. The returned channel closes
// after a final or error event.
type Provider interface {
	Name() string
	Speak(ctx context.Context, req SpeakRequest) (<-chan Event, error)
}
