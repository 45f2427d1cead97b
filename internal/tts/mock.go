package tts

import "context"

// MockProvider yields scripted synthesis streams for tests and local
// runs without provider credentials.
type MockProvider struct {
	name    string
	chunks  [][]byte
	failure *Event
}

// NewMockProvider returns a provider that speaks a short fixed buffer.
func NewMockProvider() *MockProvider {
	return &MockProvider{
		name:   "mock",
		chunks: [][]byte{make([]byte, 3200)},
	}
}

// NewScriptedProvider returns a provider emitting the given chunks and
// then either the failure event or a clean final.
func NewScriptedProvider(name string, chunks [][]byte, failure *Event) *MockProvider {
	return &MockProvider{name: name, chunks: chunks, failure: failure}
}

func (p *MockProvider) Name() string { return p.name }

func (p *MockProvider) Speak(ctx context.Context, _ SpeakRequest) (<-chan Event, error) {
	events := make(chan Event, len(p.chunks)+1)
	go func() {
		defer close(events)
		for _, c := range p.chunks {
			if !emit(ctx, events, Event{Type: EventAudio, PCM: c}) {
				return
			}
		}
		if p.failure != nil {
			emit(ctx, events, *p.failure)
			return
		}
		emit(ctx, events, Event{Type: EventFinal})
	}()
	return events, nil
}
