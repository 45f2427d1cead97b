// Package interview holds the conversation core of a mock interview:
// the phase machine, question generation, answer evaluation, and the
// running score that becomes the final verdict.
package interview

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math/rand"
	"regexp"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/voxprep/voxprep/internal/llm"
	"github.com/voxprep/voxprep/internal/resume"
)

const (
	maxConsecutiveFollowUps = 2
	maxTrackedTopics        = 20
)

// ErrCompleted is returned when an answer arrives after the interview
// has already finished.
var ErrCompleted = errors.New("interview already completed")

// Verdict thresholds on the average score.
const (
	VerdictSelected    = "SELECTED"
	VerdictOnHold      = "ON HOLD"
	VerdictNotSelected = "NOT SELECTED"
)

var languageLabels = map[string]string{
	"en-US": "English",
	"en-GB": "English",
	"es-ES": "Spanish",
	"fr-FR": "French",
	"de-DE": "German",
	"it-IT": "Italian",
	"pt-BR": "Portuguese",
	"hi-IN": "Hindi",
	"ja-JP": "Japanese",
	"ko-KR": "Korean",
	"zh-CN": "Mandarin Chinese",
	"ar-SA": "Arabic",
	"ru-RU": "Russian",
	"tr-TR": "Turkish",
}

var topicPattern = regexp.MustCompile(`(?i)(?:about|regarding|with|on|in)\s+([A-Za-z][A-Za-z0-9 .+#-]{2,40})`)

// Generated lines are spoken aloud; a leading "Question 3:" or phase
// marker from the model would be read verbatim to the candidate.
var spokenPrefixPattern = regexp.MustCompile(`(?i)^(?:question\s*\d+|q\d+|phase\s+\w+|\d+)\s*[.:)\-]\s*`)

// Exchange is one message in the interview transcript.
type Exchange struct {
	Role    string
	Content string
}

// Turn is the outcome of one conversational step.
type Turn struct {
	Question       string
	Evaluation     *Evaluation
	QuestionIndex  int
	TotalQuestions int
	Phase          Phase
	IsFollowUp     bool
	IsComplete     bool
	AverageScore   float64
	Verdict        string
}

// Config assembles a Manager.
type Config struct {
	Client         llm.Client
	Rand           *rand.Rand
	CandidateName  string
	Role           string
	ResumeText     string
	JobDescription string
	Language       string
	TotalQuestions int
}

// Manager drives a single interview. The orchestrator serializes turns
// per session; the mutex protects against stray concurrent callers.
type Manager struct {
	mu sync.Mutex

	client   llm.Client
	patterns *Rotation
	points   *Rotation

	candidateName  string
	role           string
	resumeText     string
	jobDescription string
	language       string
	talkingPoints  []string
	totalQuestions int

	phase                Phase
	questionIndex        int
	consecutiveFollowUps int
	currentQuestion      string
	difficulty           string

	scores       []int
	keywords     map[string]bool
	keywordOrder []string
	topics       []string
	history      []Exchange
}

func NewManager(cfg Config) *Manager {
	name := strings.TrimSpace(cfg.CandidateName)
	if name == "" {
		name = resume.ExtractCandidateName(cfg.ResumeText)
	}
	if name == "" {
		name = "there"
	}
	total := cfg.TotalQuestions
	if total <= 0 {
		total = 5
	}
	rng := cfg.Rand
	if rng == nil {
		rng = rand.New(rand.NewSource(1))
	}
	points := resume.ExtractTalkingPoints(cfg.ResumeText)
	return &Manager{
		client:         cfg.Client,
		patterns:       NewRotation(rng, len(questionPatterns)),
		points:         NewRotation(rng, len(points)),
		candidateName:  name,
		role:           strings.TrimSpace(cfg.Role),
		resumeText:     strings.TrimSpace(cfg.ResumeText),
		jobDescription: strings.TrimSpace(cfg.JobDescription),
		language:       cfg.Language,
		talkingPoints:  points,
		totalQuestions: total,
		phase:          PhaseGreeting,
		difficulty:     "medium",
		keywords:       make(map[string]bool),
	}
}

// Phase returns the current conversation phase.
func (m *Manager) Phase() Phase {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.phase
}

// CandidateName returns the name used in the greeting.
func (m *Manager) CandidateName() string { return m.candidateName }

// History returns a copy of the transcript so far.
func (m *Manager) History() []Exchange {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Exchange, len(m.history))
	copy(out, m.history)
	return out
}

// Begin opens the interview with the greeting line. The candidate's
// first two replies (to the greeting and to the self-introduction
// request) are conversational and never scored; the question index
// stays at 0 until substantive answers start arriving.
func (m *Manager) Begin(ctx context.Context) Turn {
	m.mu.Lock()
	defer m.mu.Unlock()

	line := m.generateGreeting(ctx)
	m.currentQuestion = line
	m.history = append(m.history, Exchange{Role: "assistant", Content: line})

	return Turn{
		Question:       line,
		QuestionIndex:  m.questionIndex,
		TotalQuestions: m.totalQuestions,
		Phase:          m.phase,
	}
}

// ProcessAnswer advances the conversation one step. In greeting and
// intro the reply is acknowledged without evaluation; from deep_dive
// onward it produces an evaluation and then a follow-up probe, the
// next main question, or the closing statement.
func (m *Manager) ProcessAnswer(ctx context.Context, answer string) (Turn, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.phase.Terminal() {
		return Turn{}, ErrCompleted
	}
	if len(m.history) == 0 {
		return Turn{}, errors.New("interview has not begun")
	}

	m.history = append(m.history, Exchange{Role: "user", Content: answer})

	switch m.phase {
	case PhaseGreeting:
		m.phase = PhaseIntro
		line := m.generateIntroRequest(ctx)
		m.currentQuestion = line
		m.history = append(m.history, Exchange{Role: "assistant", Content: line})
		return Turn{
			Question:       line,
			QuestionIndex:  m.questionIndex,
			TotalQuestions: m.totalQuestions,
			Phase:          m.phase,
		}, nil
	case PhaseIntro:
		if added := extractAnswerKeywords(answer, m.keywords); len(added) > 0 {
			m.keywordOrder = append(m.keywordOrder, added...)
		}
		m.phase = PhaseDeepDive
		m.consecutiveFollowUps = 0
		question := m.generateMainQuestion(ctx)
		m.trackTopic(question)
		m.currentQuestion = question
		m.history = append(m.history, Exchange{Role: "assistant", Content: question})
		return Turn{
			Question:       question,
			QuestionIndex:  m.questionIndex,
			TotalQuestions: m.totalQuestions,
			Phase:          m.phase,
		}, nil
	}

	ev := evaluateAnswer(ctx, m.client, m.currentQuestion, answer, m.evaluationNote())
	m.scores = append(m.scores, ev.Score)
	m.questionIndex++
	m.adaptDifficulty()
	if added := extractAnswerKeywords(answer, m.keywords); len(added) > 0 {
		m.keywordOrder = append(m.keywordOrder, added...)
	}

	if m.questionIndex >= m.totalQuestions {
		return m.close(ctx, ev), nil
	}

	// The follow-up cap lives here, not in the model's judgment.
	if ev.ShouldFollowUp && m.consecutiveFollowUps < maxConsecutiveFollowUps {
		m.consecutiveFollowUps++
		m.phase = PhaseCrossExam
		question := m.generateFollowUp(ctx, answer, ev.FollowUpReason)
		m.currentQuestion = question
		m.history = append(m.history, Exchange{Role: "assistant", Content: question})
		return Turn{
			Question:       question,
			Evaluation:     &ev,
			QuestionIndex:  m.questionIndex,
			TotalQuestions: m.totalQuestions,
			Phase:          m.phase,
			IsFollowUp:     true,
		}, nil
	}
	m.consecutiveFollowUps = 0

	m.phase = PhaseDeepDive
	question := m.generateMainQuestion(ctx)
	m.trackTopic(question)
	m.currentQuestion = question
	m.history = append(m.history, Exchange{Role: "assistant", Content: question})

	return Turn{
		Question:       question,
		Evaluation:     &ev,
		QuestionIndex:  m.questionIndex,
		TotalQuestions: m.totalQuestions,
		Phase:          m.phase,
	}, nil
}

func (m *Manager) close(ctx context.Context, ev Evaluation) Turn {
	m.phase = PhaseClosing
	avg := m.averageScoreLocked()
	verdict := verdictFor(avg)
	statement := m.generateClosing(ctx, avg, verdict)
	m.phase = PhaseCompleted
	m.history = append(m.history, Exchange{Role: "assistant", Content: statement})
	return Turn{
		Question:       statement,
		Evaluation:     &ev,
		QuestionIndex:  m.questionIndex,
		TotalQuestions: m.totalQuestions,
		Phase:          m.phase,
		IsComplete:     true,
		AverageScore:   avg,
		Verdict:        verdict,
	}
}

// AverageScore returns the running mean of all evaluation scores.
func (m *Manager) AverageScore() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.averageScoreLocked()
}

func (m *Manager) averageScoreLocked() float64 {
	if len(m.scores) == 0 {
		return 0
	}
	sum := 0
	for _, s := range m.scores {
		sum += s
	}
	return float64(sum) / float64(len(m.scores))
}

func verdictFor(avg float64) string {
	switch {
	case avg >= 7:
		return VerdictSelected
	case avg >= 5:
		return VerdictOnHold
	default:
		return VerdictNotSelected
	}
}

func (m *Manager) adaptDifficulty() {
	avg := m.averageScoreLocked()
	switch {
	case avg >= 8:
		if m.difficulty == "easy" {
			m.difficulty = "medium"
		} else {
			m.difficulty = "hard"
		}
	case avg <= 4:
		if m.difficulty == "hard" {
			m.difficulty = "medium"
		} else {
			m.difficulty = "easy"
		}
	}
}

func (m *Manager) trackTopic(question string) {
	for _, match := range topicPattern.FindAllStringSubmatch(question, -1) {
		topic := strings.ToLower(strings.TrimRight(strings.TrimSpace(match[1]), ".?!,"))
		if m.topicSeen(topic) || len(m.topics) >= maxTrackedTopics {
			continue
		}
		m.topics = append(m.topics, topic)
	}
}

func (m *Manager) topicSeen(topic string) bool {
	for _, t := range m.topics {
		if t == topic {
			return true
		}
	}
	return false
}

func (m *Manager) languageNote() string {
	label, ok := languageLabels[m.language]
	if !ok || label == "English" {
		return ""
	}
	return fmt.Sprintf("Conduct the interview entirely in %s. ", label)
}

// evaluationNote gives the grader the candidate's background alongside
// the language directive.
func (m *Manager) evaluationNote() string {
	var b strings.Builder
	if r := truncate(m.resumeText, 400); r != "" {
		fmt.Fprintf(&b, "Candidate resume excerpt: %s\n", r)
	}
	if jd := truncate(m.jobDescription, 400); jd != "" {
		fmt.Fprintf(&b, "Job description excerpt: %s\n", jd)
	}
	b.WriteString(m.languageNote())
	return b.String()
}

func (m *Manager) generateGreeting(ctx context.Context) string {
	prompt := fmt.Sprintf(
		"%sYou are a professional interviewer starting a mock interview for the role of %s. Greet the candidate named %s warmly and personably in one or two sentences. Do not ask any interview question yet. Under 30 words.",
		m.languageNote(), m.roleOrDefault(), m.candidateName,
	)
	return m.generate(ctx, prompt, m.fallbackLine(PhaseGreeting))
}

func (m *Manager) generateIntroRequest(ctx context.Context) string {
	prompt := fmt.Sprintf(
		"%sYou are a professional interviewer in a mock interview for the role of %s. Acknowledge the candidate's reply in one short sentence, then ask them to introduce themselves and walk through their background. Under 40 words, ending with the request.",
		m.languageNote(), m.roleOrDefault(),
	)
	return m.generate(ctx, prompt, m.fallbackLine(PhaseIntro))
}

func (m *Manager) generateMainQuestion(ctx context.Context) string {
	pattern := questionPatterns[m.patterns.Next()]

	var b strings.Builder
	fmt.Fprintf(&b, "%sYou are conducting a mock interview for the role of %s.\n", m.languageNote(), m.roleOrDefault())
	fmt.Fprintf(&b, "Question style: %s. %s\n", pattern.Name, pattern.Instruction)
	fmt.Fprintf(&b, "Difficulty: %s.\n", m.difficulty)
	if idx := m.points.Next(); idx >= 0 {
		fmt.Fprintf(&b, "Ask specifically about this item from the candidate's resume: %s\n", m.talkingPoints[idx])
	}
	if len(m.keywordOrder) > 0 {
		fmt.Fprintf(&b, "Themes from earlier answers: %s.\n", strings.Join(m.keywordOrder, ", "))
	}
	if len(m.topics) > 0 {
		fmt.Fprintf(&b, "Already covered, do not repeat: %s.\n", strings.Join(m.topics, ", "))
	}
	if m.jobDescription != "" {
		fmt.Fprintf(&b, "Job description excerpt: %s\n", truncate(m.jobDescription, 600))
	}
	b.WriteString("Reply with only the spoken question, under 50 words. Do not number it or label it.")

	return m.generate(ctx, b.String(), m.fallbackLine(m.phase))
}

func (m *Manager) generateFollowUp(ctx context.Context, answer, reason string) string {
	prompt := fmt.Sprintf(
		"%sYou are mid-interview for the role of %s. The candidate just answered: %q. Ask one short follow-up probe digging into that answer. %s Reply with only the question, under 30 words.",
		m.languageNote(), m.roleOrDefault(), truncate(answer, 400), reasonClause(reason),
	)
	return m.generate(ctx, prompt, "Could you go deeper on that? Walk me through the details.")
}

func (m *Manager) generateClosing(ctx context.Context, avg float64, verdict string) string {
	prompt := fmt.Sprintf(
		"%sYou are wrapping up a mock interview for the role of %s with %s. Their average answer score was %.1f out of 10 and the outcome is %s. Thank them, give two sentences of honest overall feedback, and state the outcome plainly. Under 80 words.",
		m.languageNote(), m.roleOrDefault(), m.candidateName, avg, verdict,
	)
	return m.generate(ctx, prompt, m.fallbackLine(PhaseClosing))
}

func (m *Manager) generate(ctx context.Context, prompt, fallback string) string {
	resp, err := m.client.Complete(ctx, llm.Request{
		User:        prompt,
		MaxTokens:   180,
		Temperature: 0.8,
	})
	if err != nil || strings.TrimSpace(resp.Text) == "" {
		if err != nil {
			log.Printf("[interview] question generation failed, using canned line: %v", err)
		}
		return fallback
	}
	line := sanitizeSpokenLine(resp.Text)
	if line == "" {
		return fallback
	}
	return line
}

// sanitizeSpokenLine strips numbering and phase labels the model may
// prepend despite instructions.
func sanitizeSpokenLine(s string) string {
	s = strings.Trim(strings.TrimSpace(s), `"`)
	for {
		next := strings.TrimSpace(spokenPrefixPattern.ReplaceAllString(s, ""))
		if next == s {
			return s
		}
		s = next
	}
}

func (m *Manager) fallbackLine(phase Phase) string {
	switch phase {
	case PhaseGreeting:
		return fmt.Sprintf("Hello %s, thanks for joining today. I hope you are doing well.", m.candidateName)
	case PhaseIntro:
		return "Glad to have you here. To get us started, tell me about yourself and what led you to apply for this role."
	case PhaseDeepDive:
		return "Tell me about the most challenging project on your resume and the part you personally owned."
	case PhaseCrossExam:
		return "Going back to your earlier answer, what was the hardest decision involved, and would you make the same call again?"
	case PhaseClosing:
		return "That brings us to the end of the interview. Thank you for your time today; we will be in touch with next steps."
	default:
		return "Let's continue. Tell me more about your recent work."
	}
}

func (m *Manager) roleOrDefault() string {
	if m.role == "" {
		return "the position"
	}
	return m.role
}

func reasonClause(reason string) string {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return ""
	}
	return "Focus on: " + reason + "."
}

// truncate cuts at a rune boundary so excerpts of non-ASCII resumes
// stay valid UTF-8.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n] + "..."
}
