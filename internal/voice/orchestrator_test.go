package voice

import (
	"context"
	"encoding/base64"
	"fmt"
	"math/rand"
	"strings"
	"testing"
	"time"

	"github.com/voxprep/voxprep/internal/llm"
	"github.com/voxprep/voxprep/internal/protocol"
	"github.com/voxprep/voxprep/internal/session"
	"github.com/voxprep/voxprep/internal/store"
	"github.com/voxprep/voxprep/internal/stt"
	"github.com/voxprep/voxprep/internal/tts"
)

type scriptedClient struct {
	evalJSON string
	gate     chan struct{}
	calls    int
}

func (c *scriptedClient) Complete(ctx context.Context, req llm.Request) (llm.Response, error) {
	c.calls++
	if c.gate != nil {
		select {
		case <-c.gate:
		case <-ctx.Done():
			return llm.Response{}, ctx.Err()
		}
	}
	if strings.Contains(req.User, "Respond ONLY with JSON") {
		return llm.Response{Text: c.evalJSON}, nil
	}
	return llm.Response{Text: fmt.Sprintf("Scripted question %d.", c.calls)}, nil
}

type orchHarness struct {
	orch     *Orchestrator
	sessions *session.Manager
	store    *store.InMemoryStore
	sttProv  *stt.MockProvider
	sess     *session.Session
	inbound  chan any
	outbound chan any
	done     chan error
	cancel   context.CancelFunc
}

func newHarness(t *testing.T, totalQuestions int, client llm.Client, bridge *tts.Bridge, tail time.Duration) *orchHarness {
	t.Helper()

	sessions := session.NewManager(time.Minute)
	sess := sessions.Create(session.CreateRequest{
		CandidateName:  "Priya Raman",
		Role:           "Backend Engineer",
		Language:       "en-US",
		ResumeText:     "Built a payments service in Go.",
		TotalQuestions: totalQuestions,
	}, tts.Profile{
		Gender:       "female",
		PrimaryVoice: "nova",
		EdgeVoice:    "en-US-AriaNeural",
		FaceID:       "face-test",
	})

	mem := store.NewInMemoryStore()
	if _, err := mem.CreateInterview(context.Background(), store.InterviewRecord{
		ID:             sess.ID,
		CandidateName:  sess.CandidateName,
		Role:           sess.Role,
		Language:       sess.Language,
		TotalQuestions: sess.TotalQuestions,
		Status:         store.StatusInProgress,
	}); err != nil {
		t.Fatalf("CreateInterview() error = %v", err)
	}

	sttProv := stt.NewMockProvider()
	orch := NewOrchestrator(Deps{
		Sessions:    sessions,
		Store:       mem,
		STT:         sttProv,
		Bridge:      bridge,
		LLM:         client,
		TailPadding: tail,
	})
	orch.newRand = func() *rand.Rand { return rand.New(rand.NewSource(7)) }

	h := &orchHarness{
		orch:     orch,
		sessions: sessions,
		store:    mem,
		sttProv:  sttProv,
		sess:     sess,
		inbound:  make(chan any, 16),
		outbound: make(chan any, 256),
		done:     make(chan error, 1),
	}

	ctx, cancel := context.WithCancel(context.Background())
	h.cancel = cancel
	t.Cleanup(cancel)
	go func() {
		h.done <- orch.RunConnection(ctx, sess, h.inbound, h.outbound)
	}()
	return h
}

func defaultBridge() *tts.Bridge {
	primary := tts.NewScriptedProvider("primary", [][]byte{make([]byte, 320)}, nil)
	return tts.NewBridge(primary, nil)
}

// waitFor drains outbound until a message of type T arrives.
func waitFor[T any](t *testing.T, h *orchHarness) T {
	t.Helper()
	deadline := time.After(3 * time.Second)
	for {
		select {
		case msg := <-h.outbound:
			if m, ok := msg.(T); ok {
				return m
			}
		case <-deadline:
			var zero T
			t.Fatalf("timed out waiting for %T", zero)
			return zero
		}
	}
}

// drainQuiet collects everything outbound until the stream goes quiet.
func drainQuiet(h *orchHarness, quiet time.Duration) []any {
	var got []any
	for {
		select {
		case msg := <-h.outbound:
			got = append(got, msg)
		case <-time.After(quiet):
			return got
		}
	}
}

func endTurn(h *orchHarness) {
	h.inbound <- protocol.ClientControl{Type: protocol.TypeClientControl, Action: protocol.ActionEndTurn}
}

// reply waits out the speaking window, feeds one finalized utterance,
// signals end_turn, and returns the next question plus the evaluation
// that preceded it, if any.
func reply(t *testing.T, h *orchHarness, text string) (protocol.InterviewQuestion, *protocol.Evaluation) {
	t.Helper()
	waitFor[protocol.SpeechDone](t, h)
	time.Sleep(100 * time.Millisecond)

	h.sttProv.Session(h.sess.ID).EmitFinal(text)
	waitFor[protocol.Transcript](t, h)
	endTurn(h)

	deadline := time.After(3 * time.Second)
	var ev *protocol.Evaluation
	for {
		select {
		case msg := <-h.outbound:
			switch m := msg.(type) {
			case protocol.Evaluation:
				e := m
				ev = &e
			case protocol.InterviewQuestion:
				return m, ev
			}
		case <-deadline:
			t.Fatalf("timed out waiting for the next question after %q", text)
			return protocol.InterviewQuestion{}, nil
		}
	}
}

const goodEvalJSON = `{"score":8,"feedback":"Solid answer.","shouldFollowUp":false}`

func TestConnectionAnnouncesAvatarFirst(t *testing.T) {
	h := newHarness(t, 3, &scriptedClient{evalJSON: goodEvalJSON}, defaultBridge(), 10*time.Millisecond)

	first := <-h.outbound
	cfg, ok := first.(protocol.AvatarConfig)
	if !ok {
		t.Fatalf("first message = %T, want AvatarConfig", first)
	}
	if cfg.FaceID != "face-test" || cfg.Gender != "female" {
		t.Fatalf("AvatarConfig = %+v, want face-test/female", cfg)
	}
}

func TestOpeningTurnSpeaksGreeting(t *testing.T) {
	h := newHarness(t, 3, &scriptedClient{evalJSON: goodEvalJSON}, defaultBridge(), 40*time.Millisecond)

	q := waitFor[protocol.InterviewQuestion](t, h)
	if q.QuestionIndex != 0 || q.TotalQuestions != 3 {
		t.Fatalf("question index = %d/%d, want 0/3", q.QuestionIndex, q.TotalQuestions)
	}
	if q.Phase != "greeting" {
		t.Fatalf("opening phase = %q, want greeting", q.Phase)
	}

	chunk := waitFor[protocol.SpeechAudio](t, h)
	if chunk.Format != "pcm_16000" || chunk.AudioBase64 == "" {
		t.Fatalf("SpeechAudio = %+v, want non-empty pcm_16000 payload", chunk)
	}

	done := waitFor[protocol.SpeechDone](t, h)
	if done.TotalBytes != 320 {
		t.Fatalf("SpeechDone.TotalBytes = %d, want 320", done.TotalBytes)
	}
	// 320 bytes of 16 kHz mono is 10 ms, plus the 40 ms tail.
	if done.PlayMs != 50 {
		t.Fatalf("SpeechDone.PlayMs = %d, want 50", done.PlayMs)
	}
}

func TestEndTurnAdvancesInterview(t *testing.T) {
	h := newHarness(t, 3, &scriptedClient{evalJSON: goodEvalJSON}, defaultBridge(), 20*time.Millisecond)

	intro, ev := reply(t, h, "Hi, thanks for having me today.")
	if ev != nil {
		t.Fatalf("greeting reply was evaluated: %+v", ev)
	}
	if intro.Phase != "intro" || intro.QuestionIndex != 0 {
		t.Fatalf("after greeting reply: phase %q index %d, want intro/0", intro.Phase, intro.QuestionIndex)
	}

	firstQ, ev := reply(t, h, "I have spent six years building data platforms.")
	if ev != nil {
		t.Fatalf("self-introduction was evaluated: %+v", ev)
	}
	if firstQ.Phase != "deep_dive" || firstQ.QuestionIndex != 0 {
		t.Fatalf("after intro reply: phase %q index %d, want deep_dive/0", firstQ.Phase, firstQ.QuestionIndex)
	}

	next, ev := reply(t, h, "I designed the ledger schema and owned the migration.")
	if ev == nil || ev.Score != 8 || ev.Feedback != "Solid answer." {
		t.Fatalf("Evaluation = %+v, want score 8", ev)
	}
	if next.QuestionIndex != 1 {
		t.Fatalf("QuestionIndex = %d, want 1", next.QuestionIndex)
	}
	if next.Phase != "deep_dive" {
		t.Fatalf("Phase = %q, want deep_dive", next.Phase)
	}
}

func TestSpeakingWindowSuppressesEcho(t *testing.T) {
	// Tail long enough that the window is still open when we emit.
	h := newHarness(t, 3, &scriptedClient{evalJSON: goodEvalJSON}, defaultBridge(), 10*time.Second)

	waitFor[protocol.SpeechDone](t, h)

	ms := h.sttProv.Session(h.sess.ID)
	ms.EmitFinal("tell me about a project you are proud of")
	ms.EmitPartial("tell me about")

	endTurn(h)
	sys := waitFor[protocol.SystemEvent](t, h)
	if sys.Code != "answer_too_short" {
		t.Fatalf("SystemEvent.Code = %q, want answer_too_short", sys.Code)
	}
	for _, msg := range drainQuiet(h, 80*time.Millisecond) {
		if _, ok := msg.(protocol.Transcript); ok {
			t.Fatalf("transcript leaked through the speaking window: %+v", msg)
		}
	}
}

// pausableProvider emits one chunk, then holds the stream open until
// released, so a test can inject recognizer events mid-synthesis.
type pausableProvider struct {
	streaming chan struct{}
	release   chan struct{}
}

func newPausableProvider() *pausableProvider {
	return &pausableProvider{streaming: make(chan struct{}, 1), release: make(chan struct{})}
}

func (p *pausableProvider) Name() string { return "pausable" }

func (p *pausableProvider) Speak(ctx context.Context, _ tts.SpeakRequest) (<-chan tts.Event, error) {
	events := make(chan tts.Event, 2)
	go func() {
		defer close(events)
		events <- tts.Event{Type: tts.EventAudio, PCM: make([]byte, 320)}
		select {
		case p.streaming <- struct{}{}:
		default:
		}
		select {
		case <-p.release:
		case <-ctx.Done():
			return
		}
		events <- tts.Event{Type: tts.EventFinal}
	}()
	return events, nil
}

func TestEchoSuppressedWhileSynthesisStreams(t *testing.T) {
	prov := newPausableProvider()
	h := newHarness(t, 3, &scriptedClient{evalJSON: goodEvalJSON}, tts.NewBridge(prov, nil), 10*time.Millisecond)

	waitFor[protocol.SpeechAudio](t, h)
	<-prov.streaming

	// The recognizer hears the interviewer's own voice mid-stream,
	// before the playback window has been computed.
	h.sttProv.Session(h.sess.ID).EmitFinal("tell me about a system you designed recently")
	time.Sleep(100 * time.Millisecond)

	close(prov.release)
	done := waitFor[protocol.SpeechDone](t, h)
	time.Sleep(time.Duration(done.PlayMs)*time.Millisecond + 100*time.Millisecond)

	endTurn(h)
	sys := waitFor[protocol.SystemEvent](t, h)
	if sys.Code != "answer_too_short" {
		t.Fatalf("SystemEvent.Code = %q, want answer_too_short", sys.Code)
	}
}

func TestDuplicateEndTurnDropped(t *testing.T) {
	client := &scriptedClient{evalJSON: goodEvalJSON, gate: make(chan struct{})}
	h := newHarness(t, 3, client, defaultBridge(), 10*time.Millisecond)

	client.gate <- struct{}{} // opening question
	waitFor[protocol.SpeechDone](t, h)
	time.Sleep(60 * time.Millisecond)

	ms := h.sttProv.Session(h.sess.ID)
	ms.EmitFinal("I led the on-call rotation overhaul for two years.")
	waitFor[protocol.Transcript](t, h)

	endTurn(h)
	time.Sleep(30 * time.Millisecond) // first turn now blocked on the gate
	endTurn(h)
	endTurn(h)

	close(client.gate)
	waitFor[protocol.InterviewQuestion](t, h)

	evaluations := 0
	for _, msg := range drainQuiet(h, 100*time.Millisecond) {
		if _, ok := msg.(protocol.Evaluation); ok {
			evaluations++
		}
		if sys, ok := msg.(protocol.SystemEvent); ok && sys.Code == "answer_too_short" {
			t.Fatalf("duplicate end_turn produced %q instead of being dropped", sys.Code)
		}
	}
	if evaluations != 0 {
		t.Fatalf("stray evaluations after duplicate end_turn = %d, want 0", evaluations)
	}
}

func TestCompletionReportsVerdictAndEndsSession(t *testing.T) {
	h := newHarness(t, 1, &scriptedClient{evalJSON: goodEvalJSON}, defaultBridge(), 10*time.Millisecond)

	if _, ev := reply(t, h, "Hello, great to meet you."); ev != nil {
		t.Fatalf("greeting reply was evaluated: %+v", ev)
	}
	if _, ev := reply(t, h, "I rebuilt the ingestion pipeline around batching."); ev != nil {
		t.Fatalf("self-introduction was evaluated: %+v", ev)
	}

	closing, ev := reply(t, h, "Batching cut costs by separating the hot and cold paths.")
	if ev == nil {
		t.Fatalf("final answer produced no evaluation")
	}
	if !closing.IsComplete {
		t.Fatalf("closing turn IsComplete = false, want true")
	}

	done := waitFor[protocol.InterviewComplete](t, h)
	if done.TotalScore != 8 {
		t.Fatalf("TotalScore = %v, want 8", done.TotalScore)
	}
	if done.Verdict != "SELECTED" {
		t.Fatalf("Verdict = %q, want SELECTED", done.Verdict)
	}

	s, err := h.sessions.Get(h.sess.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if s.Status != session.StatusEnded {
		t.Fatalf("session status = %q, want ended", s.Status)
	}

	deadline := time.Now().Add(2 * time.Second)
	for {
		rec, err := h.store.GetInterview(context.Background(), h.sess.ID)
		if err != nil {
			t.Fatalf("GetInterview() error = %v", err)
		}
		if rec.Status == store.StatusCompleted {
			if rec.Verdict != "SELECTED" {
				t.Fatalf("stored verdict = %q, want SELECTED", rec.Verdict)
			}
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("interview record never marked completed: %+v", rec)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestBothSynthesizersFailingFallsBackToText(t *testing.T) {
	failure := &tts.Event{Type: tts.EventError, Code: "upstream_unavailable", Retryable: true}
	bridge := tts.NewBridge(
		tts.NewScriptedProvider("primary", nil, failure),
		tts.NewScriptedProvider("fallback", nil, failure),
	)
	h := newHarness(t, 3, &scriptedClient{evalJSON: goodEvalJSON}, bridge, 10*time.Millisecond)

	fb := waitFor[protocol.SpeechFallback](t, h)
	if fb.Text == "" || fb.Language != "en-US" {
		t.Fatalf("SpeechFallback = %+v, want question text with language", fb)
	}
	for _, msg := range drainQuiet(h, 80*time.Millisecond) {
		if _, ok := msg.(protocol.SpeechDone); ok {
			t.Fatalf("SpeechDone sent after synthesis error")
		}
	}
}

func TestClientAudioForwardedToRecognizer(t *testing.T) {
	h := newHarness(t, 3, &scriptedClient{evalJSON: goodEvalJSON}, defaultBridge(), 10*time.Millisecond)
	waitFor[protocol.SpeechDone](t, h)

	pcm := make([]byte, 960)
	h.inbound <- protocol.ClientAudioChunk{
		Type:        protocol.TypeClientAudioChunk,
		PCM16Base64: base64.StdEncoding.EncodeToString(pcm),
		SampleRate:  48000,
	}

	ms := h.sttProv.Session(h.sess.ID)
	deadline := time.Now().Add(2 * time.Second)
	for ms.AudioBytes() < len(pcm) {
		if time.Now().After(deadline) {
			t.Fatalf("recognizer received %d bytes, want %d", ms.AudioBytes(), len(pcm))
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestEndControlClosesConnection(t *testing.T) {
	h := newHarness(t, 3, &scriptedClient{evalJSON: goodEvalJSON}, defaultBridge(), 10*time.Millisecond)
	waitFor[protocol.SpeechDone](t, h)

	h.inbound <- protocol.ClientControl{Type: protocol.TypeClientControl, Action: protocol.ActionEnd}

	select {
	case err := <-h.done:
		if err != nil {
			t.Fatalf("RunConnection() error = %v, want nil", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("connection did not close on end control")
	}

	s, err := h.sessions.Get(h.sess.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if s.Status != session.StatusEnded {
		t.Fatalf("session status = %q, want ended", s.Status)
	}
}
