// Package voice runs the realtime interview loop over one websocket
// connection: candidate audio in, transcripts through the conversation
// core, synthesized interviewer speech back out.
package voice

import (
	"context"
	"encoding/base64"
	"fmt"
	"log"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/voxprep/voxprep/internal/audio"
	"github.com/voxprep/voxprep/internal/interview"
	"github.com/voxprep/voxprep/internal/llm"
	"github.com/voxprep/voxprep/internal/observability"
	"github.com/voxprep/voxprep/internal/policy"
	"github.com/voxprep/voxprep/internal/protocol"
	"github.com/voxprep/voxprep/internal/session"
	"github.com/voxprep/voxprep/internal/store"
	"github.com/voxprep/voxprep/internal/stt"
	"github.com/voxprep/voxprep/internal/tts"
)

const (
	// Answers at or below this length do not advance the interview.
	minAnswerLength = 6

	criticalSendTimeout = 5 * time.Second
	saveTimeout         = 3 * time.Second

	audioFormat = "pcm_16000"
)

// Deps wires the orchestrator's collaborators.
type Deps struct {
	Sessions      *session.Manager
	Store         store.Store
	STT           stt.Provider
	Bridge        *tts.Bridge
	LLM           llm.Client
	Metrics       *observability.Metrics
	TailPadding   time.Duration
	FirstAudioSLO time.Duration
}

type Orchestrator struct {
	sessions    *session.Manager
	store       store.Store
	sttProvider stt.Provider
	bridge      *tts.Bridge
	llmClient   llm.Client
	metrics     *observability.Metrics
	tailPadding time.Duration
	firstAudio  time.Duration

	// newRand is swapped in tests for deterministic voice selection.
	newRand func() *rand.Rand
}

func NewOrchestrator(deps Deps) *Orchestrator {
	tail := deps.TailPadding
	if tail <= 0 {
		tail = 1500 * time.Millisecond
	}
	return &Orchestrator{
		sessions:    deps.Sessions,
		store:       deps.Store,
		sttProvider: deps.STT,
		bridge:      deps.Bridge,
		llmClient:   deps.LLM,
		metrics:     deps.Metrics,
		tailPadding: tail,
		firstAudio:  deps.FirstAudioSLO,
		newRand: func() *rand.Rand {
			return rand.New(rand.NewSource(time.Now().UnixNano()))
		},
	}
}

// connState is per-connection turn state. The speaking window has an
// explicit timer handle so a new turn can cancel the previous window.
type connState struct {
	mu         sync.Mutex
	aiSpeaking bool
	speakTimer *time.Timer
	answer     strings.Builder
	audioSeq   int
}

// startSpeaking raises the flag with no expiry. Synthesis is already
// streaming to the client, so the recognizer may be hearing us before
// the playback window can be computed.
func (c *connState) startSpeaking() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.speakTimer != nil {
		c.speakTimer.Stop()
		c.speakTimer = nil
	}
	c.aiSpeaking = true
}

func (c *connState) beginSpeaking(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.speakTimer != nil {
		c.speakTimer.Stop()
	}
	c.aiSpeaking = true
	c.speakTimer = time.AfterFunc(d, func() {
		c.mu.Lock()
		c.aiSpeaking = false
		c.mu.Unlock()
	})
}

func (c *connState) cancelSpeaking() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.speakTimer != nil {
		c.speakTimer.Stop()
		c.speakTimer = nil
	}
	c.aiSpeaking = false
}

func (c *connState) speaking() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.aiSpeaking
}

func (c *connState) appendAnswer(text string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.answer.Len() > 0 {
		c.answer.WriteString(" ")
	}
	c.answer.WriteString(text)
}

// takeAnswer drains the buffer. The buffer clears even when the answer
// is too short to advance the interview.
func (c *connState) takeAnswer() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := strings.TrimSpace(c.answer.String())
	c.answer.Reset()
	return out
}

func (c *connState) nextSeq() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.audioSeq++
	return c.audioSeq
}

// RunConnection drives one interview websocket until the client
// disconnects, the session ends, or ctx is canceled.
func (o *Orchestrator) RunConnection(ctx context.Context, sess *session.Session, inbound <-chan any, outbound chan<- any) error {
	var turnWG sync.WaitGroup
	defer turnWG.Wait()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	iv := interview.NewManager(interview.Config{
		Client:         o.llmClient,
		Rand:           o.newRand(),
		CandidateName:  sess.CandidateName,
		Role:           sess.Role,
		ResumeText:     sess.ResumeText,
		JobDescription: sess.JobDescription,
		Language:       sess.Language,
		TotalQuestions: sess.TotalQuestions,
	})

	sttSession, sttEvents, err := o.sttProvider.StartSession(ctx, sess.ID, sess.Language)
	if err != nil {
		o.send(ctx, outbound, protocol.ErrorEvent{
			Type:      protocol.TypeErrorEvent,
			SessionID: sess.ID,
			Code:      "stt_unavailable",
			Source:    o.sttProvider.Name(),
			Retryable: true,
			Detail:    err.Error(),
		}, true)
		return fmt.Errorf("start transcription session: %w", err)
	}
	defer sttSession.Close()

	state := &connState{}
	defer state.cancelSpeaking()

	o.send(ctx, outbound, protocol.AvatarConfig{
		Type:   protocol.TypeAvatarConfig,
		FaceID: sess.Profile.FaceID,
		Gender: sess.Profile.Gender,
	}, true)
	o.countEvent("connected")

	// Opening turn: greeting plus the first question.
	if ok, err := o.sessions.BeginProcessing(sess.ID); err == nil && ok {
		turnWG.Add(1)
		go func() {
			defer turnWG.Done()
			o.runTurn(ctx, sess, iv, state, outbound, "", true)
		}()
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case msg, open := <-inbound:
			if !open {
				return nil
			}
			switch m := msg.(type) {
			case protocol.ClientAudioChunk:
				pcm, err := base64.StdEncoding.DecodeString(m.PCM16Base64)
				if err != nil {
					continue
				}
				if err := sttSession.SendAudio(pcm); err != nil {
					log.Printf("[orchestrator] forward audio failed for %s: %v", sess.ID, err)
				}
				_ = o.sessions.Touch(sess.ID)

			case protocol.ClientControl:
				switch m.Action {
				case protocol.ActionEndTurn:
					o.handleEndTurn(ctx, sess, iv, state, outbound, &turnWG)
				case protocol.ActionEnd:
					_, _ = o.sessions.End(sess.ID)
					o.countEvent("client_ended")
					return nil
				}
			}

		case ev, open := <-sttEvents:
			if !open {
				return fmt.Errorf("transcription stream closed")
			}
			o.handleSTTEvent(ctx, sess, state, outbound, ev)
		}
	}
}

func (o *Orchestrator) handleSTTEvent(ctx context.Context, sess *session.Session, state *connState, outbound chan<- any, ev stt.Event) {
	switch ev.Type {
	case stt.EventPartial, stt.EventFinal:
		// Anti-echo: while the interviewer audio is presumed playing,
		// the recognizer is hearing us, not the candidate.
		if state.speaking() {
			o.indicate("echo_suppressed")
			return
		}
		if ev.Type == stt.EventFinal {
			state.appendAnswer(ev.Text)
		}
		o.send(ctx, outbound, protocol.Transcript{
			Type:      protocol.TypeTranscript,
			SessionID: sess.ID,
			Text:      ev.Text,
			IsFinal:   ev.Type == stt.EventFinal,
			TSMs:      time.Now().UnixMilli(),
		}, false)

	case stt.EventError:
		if o.metrics != nil {
			o.metrics.ProviderErrors.WithLabelValues(o.sttProvider.Name(), ev.Code).Inc()
		}
		o.send(ctx, outbound, protocol.ErrorEvent{
			Type:      protocol.TypeErrorEvent,
			SessionID: sess.ID,
			Code:      ev.Code,
			Source:    o.sttProvider.Name(),
			Retryable: ev.Retryable,
			Detail:    ev.Detail,
		}, true)
	}
}

func (o *Orchestrator) handleEndTurn(ctx context.Context, sess *session.Session, iv *interview.Manager, state *connState, outbound chan<- any, turnWG *sync.WaitGroup) {
	ok, err := o.sessions.BeginProcessing(sess.ID)
	if err != nil {
		return
	}
	if !ok {
		// A turn is already in flight; this end_turn is a duplicate.
		o.indicate("duplicate_end_turn")
		return
	}

	answer := state.takeAnswer()
	if len(answer) <= minAnswerLength {
		_ = o.sessions.EndProcessing(sess.ID)
		o.send(ctx, outbound, protocol.SystemEvent{
			Type:      protocol.TypeSystemEvent,
			SessionID: sess.ID,
			Code:      "answer_too_short",
		}, true)
		return
	}

	turnWG.Add(1)
	go func() {
		defer turnWG.Done()
		o.runTurn(ctx, sess, iv, state, outbound, answer, false)
	}()
}

// runTurn executes one full interview step: evaluate, advance the
// conversation, persist, and speak the next question.
func (o *Orchestrator) runTurn(ctx context.Context, sess *session.Session, iv *interview.Manager, state *connState, outbound chan<- any, answer string, opening bool) {
	defer func() { _ = o.sessions.EndProcessing(sess.ID) }()
	started := time.Now()

	o.send(ctx, outbound, protocol.Processing{Type: protocol.TypeProcessing, SessionID: sess.ID}, false)

	var turn interview.Turn
	if opening {
		turn = iv.Begin(ctx)
	} else {
		var err error
		turn, err = iv.ProcessAnswer(ctx, answer)
		if err != nil {
			log.Printf("[orchestrator] process answer failed for %s: %v", sess.ID, err)
			return
		}
		o.saveMessageBestEffort(sess.ID, "user", answer)
		if o.metrics != nil {
			o.metrics.ObserveTurnStage("answer_to_question", time.Since(started))
		}
	}
	o.saveMessageBestEffort(sess.ID, "assistant", turn.Question)

	if turn.Evaluation != nil {
		if o.metrics != nil {
			o.metrics.AnswerScores.Observe(float64(turn.Evaluation.Score))
			o.metrics.ObserveTurnStage("answer_to_evaluation", time.Since(started))
		}
		o.send(ctx, outbound, protocol.Evaluation{
			Type:          protocol.TypeEvaluation,
			SessionID:     sess.ID,
			Score:         turn.Evaluation.Score,
			Feedback:      turn.Evaluation.Feedback,
			QuestionIndex: turn.QuestionIndex,
		}, true)
	}

	o.send(ctx, outbound, protocol.InterviewQuestion{
		Type:           protocol.TypeInterviewQuestion,
		SessionID:      sess.ID,
		Text:           turn.Question,
		QuestionIndex:  turn.QuestionIndex,
		TotalQuestions: turn.TotalQuestions,
		Phase:          turn.Phase.String(),
		IsFollowUp:     turn.IsFollowUp,
		IsComplete:     turn.IsComplete,
	}, true)
	if o.metrics != nil {
		o.metrics.QuestionsAsked.WithLabelValues(turn.Phase.String()).Inc()
	}

	o.persistProgress(sess.ID, turn)
	o.speak(ctx, sess, state, outbound, turn.Question, started)

	if turn.IsComplete {
		o.send(ctx, outbound, protocol.InterviewComplete{
			Type:           protocol.TypeInterviewComplete,
			SessionID:      sess.ID,
			TotalScore:     turn.AverageScore,
			TotalQuestions: turn.TotalQuestions,
			Verdict:        turn.Verdict,
		}, true)
		o.countEvent("completed")
		_, _ = o.sessions.End(sess.ID)
	}

	if o.metrics != nil {
		o.metrics.ObserveTurnStage("turn_total", time.Since(started))
	}
}

func (o *Orchestrator) speak(ctx context.Context, sess *session.Session, state *connState, outbound chan<- any, text string, started time.Time) {
	if o.bridge == nil {
		return
	}
	synthStart := time.Now()
	if o.metrics != nil {
		o.metrics.ObserveTurnStage("question_to_synthesis_start", synthStart.Sub(started))
	}

	// The anti-echo window opens now and stays open through streaming;
	// OnDone re-arms it for the playback duration, OnError clears it.
	state.startSpeaking()

	firstAudio := true
	o.bridge.Synthesize(ctx, text, sess.Language, sess.Profile, tts.Callbacks{
		OnAudio: func(pcm []byte) {
			if firstAudio {
				firstAudio = false
				latency := time.Since(synthStart)
				if o.metrics != nil {
					o.metrics.ObserveFirstAudioLatency(latency)
					o.metrics.ObserveTurnStage("answer_to_first_audio", time.Since(started))
				}
				if o.firstAudio > 0 && latency > o.firstAudio {
					log.Printf("[orchestrator] first audio for %s took %s, budget %s", sess.ID, latency, o.firstAudio)
				}
			}
			o.send(ctx, outbound, protocol.SpeechAudio{
				Type:        protocol.TypeSpeechAudio,
				SessionID:   sess.ID,
				Seq:         state.nextSeq(),
				Format:      audioFormat,
				AudioBase64: base64.StdEncoding.EncodeToString(pcm),
			}, false)
		},
		OnDone: func(totalBytes int, usedFallback bool) {
			if usedFallback {
				o.countFallback()
			}
			window := audio.PlayDuration(totalBytes, tts.TargetSampleRate) + o.tailPadding
			state.beginSpeaking(window)
			o.send(ctx, outbound, protocol.SpeechDone{
				Type:       protocol.TypeSpeechDone,
				SessionID:  sess.ID,
				PlayMs:     window.Milliseconds(),
				TotalBytes: totalBytes,
			}, true)
		},
		OnError: func(code, detail string) {
			state.cancelSpeaking()
			if o.metrics != nil {
				o.metrics.ProviderErrors.WithLabelValues("tts", code).Inc()
			}
			// Let the client speak the text itself.
			o.send(ctx, outbound, protocol.SpeechFallback{
				Type:      protocol.TypeSpeechFallback,
				SessionID: sess.ID,
				Text:      text,
				Language:  sess.Language,
			}, true)
		},
	})
}

func (o *Orchestrator) persistProgress(sessionID string, turn interview.Turn) {
	if o.store == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), saveTimeout)
	defer cancel()
	if turn.IsComplete {
		if err := o.store.CompleteInterview(ctx, sessionID, turn.AverageScore, turn.Verdict); err != nil {
			log.Printf("[orchestrator] complete interview persist failed for %s: %v", sessionID, err)
		}
		return
	}
	if err := o.store.UpdateProgress(ctx, sessionID, turn.QuestionIndex, store.StatusInProgress); err != nil {
		log.Printf("[orchestrator] progress persist failed for %s: %v", sessionID, err)
	}
}

// saveMessageBestEffort persists one transcript entry off the hot path.
// A storage failure never stalls the interview.
func (o *Orchestrator) saveMessageBestEffort(sessionID, role, content string) {
	if o.store == nil || strings.TrimSpace(content) == "" {
		return
	}
	redacted, changed := policy.RedactPII(content)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), saveTimeout)
		defer cancel()
		err := o.store.SaveMessage(ctx, store.MessageRecord{
			InterviewID: sessionID,
			Role:        role,
			Content:     redacted,
			PIIRedacted: changed,
		})
		if err != nil {
			log.Printf("[orchestrator] save message failed for %s: %v", sessionID, err)
		}
	}()
}

// send delivers one outbound message. Critical messages block up to a
// timeout; droppable ones (audio, partial transcripts) are shed when
// the client cannot keep up.
func (o *Orchestrator) send(ctx context.Context, outbound chan<- any, msg any, critical bool) bool {
	if critical {
		t := time.NewTimer(criticalSendTimeout)
		defer t.Stop()
		select {
		case outbound <- msg:
			return true
		case <-ctx.Done():
			return false
		case <-t.C:
			log.Printf("[orchestrator] critical send timed out: %T", msg)
			return false
		}
	}
	select {
	case outbound <- msg:
		return true
	case <-ctx.Done():
		return false
	default:
		o.indicate("outbound_dropped")
		return false
	}
}

func (o *Orchestrator) countEvent(event string) {
	if o.metrics != nil {
		o.metrics.SessionEvents.WithLabelValues(event).Inc()
	}
}

func (o *Orchestrator) countFallback() {
	if o.metrics != nil {
		o.metrics.SynthesisFallbacks.Inc()
	}
}

func (o *Orchestrator) indicate(name string) {
	if o.metrics != nil {
		o.metrics.ObserveTurnIndicator(name)
	}
}
