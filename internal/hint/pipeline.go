// Package hint generates live coaching suggestions from the rolling
// interview transcript on the copilot socket.
package hint

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/voxprep/voxprep/internal/llm"
	"github.com/voxprep/voxprep/internal/observability"
)

const (
	defaultDebounce      = 8 * time.Second
	defaultMinTranscript = 30
	defaultBufferCap     = 2000

	hintTimeout = 15 * time.Second
)

// tokenLimits maps the requested hint length to the completion budget.
var tokenLimits = map[string]int{
	"short":  80,
	"medium": 150,
	"long":   300,
}

var allowedTones = map[string]bool{
	"casual":       true,
	"technical":    true,
	"professional": true,
}

// Context carries the interview background woven into every prompt.
type Context struct {
	Role           string
	ResumeText     string
	JobDescription string
	Language       string
}

type Config struct {
	Client        llm.Client
	Metrics       *observability.Metrics
	Debounce      time.Duration
	MinTranscript int
	BufferCap     int
	DefaultLength string
	DefaultTone   string
	Interview     Context
}

// Pipeline accumulates transcript text and emits at most one hint per
// debounce window, with at most one generation in flight.
type Pipeline struct {
	client   llm.Client
	metrics  *observability.Metrics
	debounce time.Duration
	minLen   int
	cap      int
	ivCtx    Context

	mu         sync.Mutex
	buffer     strings.Builder
	length     string
	tone       string
	lastHintAt time.Time
	inFlight   bool
}

func NewPipeline(cfg Config) *Pipeline {
	if cfg.Debounce <= 0 {
		cfg.Debounce = defaultDebounce
	}
	if cfg.MinTranscript <= 0 {
		cfg.MinTranscript = defaultMinTranscript
	}
	if cfg.BufferCap <= 0 {
		cfg.BufferCap = defaultBufferCap
	}
	length := cfg.DefaultLength
	if _, ok := tokenLimits[length]; !ok {
		length = "medium"
	}
	tone := cfg.DefaultTone
	if !allowedTones[tone] {
		tone = "professional"
	}
	return &Pipeline{
		client:   cfg.Client,
		metrics:  cfg.Metrics,
		debounce: cfg.Debounce,
		minLen:   cfg.MinTranscript,
		cap:      cfg.BufferCap,
		ivCtx:    cfg.Interview,
		length:   length,
		tone:     tone,
	}
}

// UpdateSettings applies client-requested length and tone. Unknown
// values leave the current setting untouched.
func (p *Pipeline) UpdateSettings(length, tone string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := tokenLimits[length]; ok {
		p.length = length
	}
	if allowedTones[tone] {
		p.tone = tone
	}
}

// Append adds one transcript fragment to the rolling buffer, keeping
// only the most recent window when the cap is exceeded.
func (p *Pipeline) Append(text string) {
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.buffer.Len() > 0 {
		p.buffer.WriteString(" ")
	}
	p.buffer.WriteString(text)
	if p.buffer.Len() > p.cap {
		tail := p.buffer.String()
		cut := len(tail) - p.cap
		// Transcripts arrive in any language; never split a rune.
		for cut < len(tail) && !utf8.RuneStart(tail[cut]) {
			cut++
		}
		tail = tail[cut:]
		p.buffer.Reset()
		p.buffer.WriteString(tail)
	}
}

// BufferLen reports the current rolling buffer size.
func (p *Pipeline) BufferLen() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.buffer.Len()
}

// Trigger attempts one hint generation. It returns false without doing
// anything when the transcript is too short, the debounce window has
// not elapsed, or a generation is already running. When it returns
// true, emit is called from a separate goroutine with the hint text.
func (p *Pipeline) Trigger(ctx context.Context, emit func(text string)) bool {
	p.mu.Lock()
	if p.inFlight {
		p.mu.Unlock()
		return false
	}
	if p.buffer.Len() < p.minLen {
		p.mu.Unlock()
		return false
	}
	if !p.lastHintAt.IsZero() && time.Since(p.lastHintAt) < p.debounce {
		p.mu.Unlock()
		return false
	}
	transcript := p.buffer.String()
	length := p.length
	tone := p.tone
	p.inFlight = true
	p.mu.Unlock()

	go func() {
		started := time.Now()
		text, err := p.generate(ctx, transcript, length, tone)

		p.mu.Lock()
		p.inFlight = false
		if err == nil && text != "" {
			p.lastHintAt = time.Now()
		}
		p.mu.Unlock()

		if err != nil {
			log.Printf("[hint] generation failed: %v", err)
			return
		}
		if text == "" {
			return
		}
		if p.metrics != nil {
			p.metrics.HintsGenerated.Inc()
		}
		p.metrics.ObserveTurnStage("hint_generation", time.Since(started))
		emit(text)
	}()
	return true
}

func (p *Pipeline) generate(ctx context.Context, transcript, length, tone string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, hintTimeout)
	defer cancel()

	resp, err := p.client.Complete(ctx, llm.Request{
		System:      p.systemPrompt(tone),
		User:        p.userPrompt(transcript, length),
		MaxTokens:   tokenLimits[length],
		Temperature: 0.6,
	})
	if err != nil {
		return "", fmt.Errorf("hint completion: %w", err)
	}
	return strings.TrimSpace(resp.Text), nil
}

func (p *Pipeline) systemPrompt(tone string) string {
	var b strings.Builder
	b.WriteString("You are a live interview copilot. The candidate is mid-interview and sees your hints on a side panel. ")
	b.WriteString("Suggest what to say or emphasize next based on the latest interviewer question and the candidate's background. ")
	fmt.Fprintf(&b, "Keep a %s tone. Never mention that you are an assistant.", tone)
	if p.ivCtx.Language != "" && !strings.HasPrefix(p.ivCtx.Language, "en") {
		fmt.Fprintf(&b, " Respond in the language with tag %s.", p.ivCtx.Language)
	}
	return b.String()
}

func (p *Pipeline) userPrompt(transcript, length string) string {
	var b strings.Builder
	if p.ivCtx.Role != "" {
		fmt.Fprintf(&b, "Target role: %s\n", p.ivCtx.Role)
	}
	if jd := excerpt(p.ivCtx.JobDescription, 400); jd != "" {
		fmt.Fprintf(&b, "Job description excerpt: %s\n", jd)
	}
	if res := excerpt(p.ivCtx.ResumeText, 600); res != "" {
		fmt.Fprintf(&b, "Candidate background: %s\n", res)
	}
	fmt.Fprintf(&b, "Recent transcript: %s\n", transcript)
	fmt.Fprintf(&b, "Give one %s, actionable hint for the candidate's next response.", length)
	return b.String()
}

func excerpt(s string, max int) string {
	s = strings.TrimSpace(s)
	if len(s) <= max {
		return s
	}
	for max > 0 && !utf8.RuneStart(s[max]) {
		max--
	}
	return s[:max]
}
