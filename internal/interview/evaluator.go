package interview

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"

	"github.com/voxprep/voxprep/internal/llm"
)

// Evaluation is the structured judgment of one answer.
type Evaluation struct {
	Score          int    `json:"score"`
	Feedback       string `json:"feedback"`
	ShouldFollowUp bool   `json:"shouldFollowUp"`
	FollowUpReason string `json:"followUpReason"`
}

// neutralEvaluation is returned whenever evaluation fails for any
// reason. The interview keeps moving instead of stalling on a bad
// model reply.
func neutralEvaluation() Evaluation {
	return Evaluation{Score: 7, Feedback: "Good response.", ShouldFollowUp: false}
}

const evaluationPromptTemplate = `You are grading one answer in a mock job interview.

Question: %s

Answer: %s

%sRespond ONLY with JSON in exactly this shape:
{"score": <integer 1-10>, "feedback": "<one or two sentences of direct feedback>", "shouldFollowUp": <true|false>, "followUpReason": "<why a follow-up would help, or empty>"}`

// evaluateAnswer asks the model to grade the answer and parses the
// strict-JSON reply. Malformed output or transport failure yields the
// neutral evaluation.
func evaluateAnswer(ctx context.Context, client llm.Client, question, answer, note string) Evaluation {
	prompt := fmt.Sprintf(evaluationPromptTemplate, question, answer, note)
	resp, err := client.Complete(ctx, llm.Request{
		User:        prompt,
		MaxTokens:   200,
		Temperature: 0.3,
	})
	if err != nil {
		log.Printf("[interview] evaluation request failed: %v", err)
		return neutralEvaluation()
	}
	ev, err := parseEvaluation(resp.Text)
	if err != nil {
		log.Printf("[interview] evaluation parse failed: %v", err)
		return neutralEvaluation()
	}
	return ev
}

func parseEvaluation(raw string) (Evaluation, error) {
	cleaned := stripCodeFences(raw)
	var ev Evaluation
	if err := json.Unmarshal([]byte(cleaned), &ev); err != nil {
		return Evaluation{}, fmt.Errorf("decode evaluation: %w", err)
	}
	if ev.Score < 1 {
		ev.Score = 1
	}
	if ev.Score > 10 {
		ev.Score = 10
	}
	if strings.TrimSpace(ev.Feedback) == "" {
		ev.Feedback = "Good response."
	}
	return ev, nil
}

// stripCodeFences removes a surrounding markdown fence, with or without
// a language label, from a model reply.
func stripCodeFences(raw string) string {
	s := strings.TrimSpace(raw)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if idx := strings.Index(s, "\n"); idx >= 0 {
		first := strings.TrimSpace(s[:idx])
		// A short first token is a language label, not payload.
		if len(first) <= 10 && !strings.Contains(first, "{") {
			s = s[idx+1:]
		}
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
