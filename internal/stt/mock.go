package stt

import (
	"context"
	"sync"
)

// MockProvider hands out scriptable sessions for tests and keyless
// local runs.
type MockProvider struct {
	mu       sync.Mutex
	sessions map[string]*MockSession
}

func NewMockProvider() *MockProvider {
	return &MockProvider{sessions: make(map[string]*MockSession)}
}

func (p *MockProvider) Name() string { return "mock" }

func (p *MockProvider) StartSession(_ context.Context, sessionID, _ string) (Session, <-chan Event, error) {
	s := &MockSession{events: make(chan Event, 256)}
	p.mu.Lock()
	p.sessions[sessionID] = s
	p.mu.Unlock()
	return s, s.events, nil
}

// Session returns the scriptable session opened under the given ID.
func (p *MockProvider) Session(sessionID string) *MockSession {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.sessions[sessionID]
}

// MockSession records audio writes and lets tests inject events.
type MockSession struct {
	mu         sync.Mutex
	events     chan Event
	closed     bool
	audioBytes int
}

func (s *MockSession) SendAudio(pcm []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.audioBytes += len(pcm)
	return nil
}

func (s *MockSession) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.events)
	}
	return nil
}

// AudioBytes reports the total audio payload received.
func (s *MockSession) AudioBytes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.audioBytes
}

// Emit injects one event into the stream.
func (s *MockSession) Emit(ev Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.events <- ev
}

func (s *MockSession) EmitPartial(text string) { s.Emit(Event{Type: EventPartial, Text: text}) }
func (s *MockSession) EmitFinal(text string) {
	s.Emit(Event{Type: EventFinal, Text: text, Confidence: 0.98})
}
func (s *MockSession) EmitUtteranceEnd() { s.Emit(Event{Type: EventUtteranceEnd}) }
