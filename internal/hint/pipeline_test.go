package hint

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/voxprep/voxprep/internal/llm"
)

type stubClient struct {
	mu         sync.Mutex
	completeFn func(ctx context.Context, req llm.Request) (llm.Response, error)
	requests   []llm.Request
}

func (c *stubClient) Complete(ctx context.Context, req llm.Request) (llm.Response, error) {
	c.mu.Lock()
	c.requests = append(c.requests, req)
	c.mu.Unlock()
	if c.completeFn != nil {
		return c.completeFn(ctx, req)
	}
	return llm.Response{Text: "Mention the latency numbers from your pipeline rewrite."}, nil
}

func (c *stubClient) lastRequest(t *testing.T) llm.Request {
	t.Helper()
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.requests) == 0 {
		t.Fatalf("no completion requests recorded")
	}
	return c.requests[len(c.requests)-1]
}

func newTestPipeline(client llm.Client) *Pipeline {
	return NewPipeline(Config{
		Client:        client,
		Debounce:      50 * time.Millisecond,
		MinTranscript: 30,
		BufferCap:     200,
		DefaultLength: "medium",
		DefaultTone:   "professional",
		Interview: Context{
			Role:       "Platform Engineer",
			ResumeText: "Ten years of Go and Kafka.",
			Language:   "en-US",
		},
	})
}

func collectHint(t *testing.T, p *Pipeline) string {
	t.Helper()
	got := make(chan string, 1)
	if !p.Trigger(context.Background(), func(text string) { got <- text }) {
		t.Fatalf("Trigger() = false, want true")
	}
	select {
	case text := <-got:
		return text
	case <-time.After(2 * time.Second):
		t.Fatalf("hint never emitted")
		return ""
	}
}

func TestTriggerEmitsHint(t *testing.T) {
	client := &stubClient{}
	p := newTestPipeline(client)
	p.Append("Tell me about a time you had to scale a message queue under load.")

	text := collectHint(t, p)
	if text == "" {
		t.Fatalf("hint text empty")
	}
	req := client.lastRequest(t)
	if req.MaxTokens != 150 {
		t.Fatalf("MaxTokens = %d, want 150 for medium", req.MaxTokens)
	}
	if !strings.Contains(req.User, "scale a message queue") {
		t.Fatalf("prompt missing transcript: %q", req.User)
	}
	if !strings.Contains(req.User, "Platform Engineer") {
		t.Fatalf("prompt missing role context: %q", req.User)
	}
}

func TestTriggerRequiresMinimumTranscript(t *testing.T) {
	p := newTestPipeline(&stubClient{})
	p.Append("short answer")

	if p.Trigger(context.Background(), func(string) {}) {
		t.Fatalf("Trigger() = true for transcript below minimum")
	}
}

func TestTriggerDebounces(t *testing.T) {
	p := newTestPipeline(&stubClient{})
	p.Append("Tell me about a time you had to scale a message queue under load.")

	collectHint(t, p)
	if p.Trigger(context.Background(), func(string) {}) {
		t.Fatalf("Trigger() = true inside debounce window")
	}

	time.Sleep(80 * time.Millisecond)
	collectHint(t, p)
}

func TestTriggerSingleInFlight(t *testing.T) {
	gate := make(chan struct{})
	client := &stubClient{completeFn: func(ctx context.Context, _ llm.Request) (llm.Response, error) {
		select {
		case <-gate:
		case <-ctx.Done():
			return llm.Response{}, ctx.Err()
		}
		return llm.Response{Text: "Lead with the migration outcome."}, nil
	}}
	p := newTestPipeline(client)
	p.Append("Walk me through the hardest production incident you have handled.")

	got := make(chan string, 1)
	if !p.Trigger(context.Background(), func(text string) { got <- text }) {
		t.Fatalf("first Trigger() = false, want true")
	}
	if p.Trigger(context.Background(), func(string) {}) {
		t.Fatalf("second Trigger() = true while generation in flight")
	}

	close(gate)
	select {
	case <-got:
	case <-time.After(2 * time.Second):
		t.Fatalf("hint never emitted after gate release")
	}
}

func TestFailedGenerationDoesNotConsumeDebounce(t *testing.T) {
	fail := true
	client := &stubClient{completeFn: func(_ context.Context, _ llm.Request) (llm.Response, error) {
		if fail {
			return llm.Response{}, context.DeadlineExceeded
		}
		return llm.Response{Text: "Quantify the cost savings."}, nil
	}}
	p := newTestPipeline(client)
	p.Append("What would you change about your current team's deployment process?")

	if !p.Trigger(context.Background(), func(string) {}) {
		t.Fatalf("Trigger() = false, want true")
	}
	deadline := time.Now().Add(time.Second)
	for {
		p.mu.Lock()
		busy := p.inFlight
		p.mu.Unlock()
		if !busy {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("generation never settled")
		}
		time.Sleep(5 * time.Millisecond)
	}

	fail = false
	collectHint(t, p)
}

func TestAppendTrimsToBufferCap(t *testing.T) {
	p := newTestPipeline(&stubClient{})
	p.Append(strings.Repeat("a", 150))
	p.Append(strings.Repeat("b", 150))

	if got := p.BufferLen(); got != 200 {
		t.Fatalf("BufferLen() = %d, want 200", got)
	}
}

func TestAppendTrimsAtRuneBoundary(t *testing.T) {
	p := newTestPipeline(&stubClient{})
	p.Append(strings.Repeat("世", 100)) // 300 bytes of 3-byte runes

	if got := p.BufferLen(); got > 200 {
		t.Fatalf("BufferLen() = %d, want at most the cap", got)
	}
	p.mu.Lock()
	tail := p.buffer.String()
	p.mu.Unlock()
	if !utf8.ValidString(tail) {
		t.Fatalf("buffer tail is not valid UTF-8: %q", tail)
	}
	if strings.Count(tail, "世")*3 != len(tail) {
		t.Fatalf("buffer tail contains split runes: %q", tail)
	}
}

func TestUpdateSettingsValidatesValues(t *testing.T) {
	client := &stubClient{}
	p := newTestPipeline(client)
	p.UpdateSettings("long", "technical")
	p.UpdateSettings("gigantic", "sarcastic") // both ignored
	p.Append("Describe how you would design a rate limiter for a public API.")

	collectHint(t, p)
	req := client.lastRequest(t)
	if req.MaxTokens != 300 {
		t.Fatalf("MaxTokens = %d, want 300 for long", req.MaxTokens)
	}
	if !strings.Contains(req.System, "technical tone") {
		t.Fatalf("system prompt missing tone: %q", req.System)
	}
}
