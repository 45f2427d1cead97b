// Package stt is the live transcription boundary. A provider session
// accepts raw candidate audio and emits transcript events; the service
// never runs recognition models itself.
package stt

import "context"

// EventType enumerates transcription stream events.
type EventType string

const (
	EventPartial      EventType = "partial"
	EventFinal        EventType = "final"
	EventUtteranceEnd EventType = "utterance_end"
	EventError        EventType = "error"
)

// Event is one item in a transcription stream.
type Event struct {
	Type       EventType
	Text       string
	Confidence float64
	Code       string
	Detail     string
	Retryable  bool
}

// Session is a live transcription stream for one interview.
type Session interface {
	SendAudio(pcm []byte) error
	Close() error
}

// Provider opens transcription sessions.
type Provider interface {
	Name() string
	StartSession(ctx context.Context, sessionID, language string) (Session, <-chan Event, error)
}
