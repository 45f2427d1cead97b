package llm

import (
	"context"
	"strings"
)

// MockClient provides deterministic local replies when no model is configured.
type MockClient struct{}

func NewMockClient() *MockClient { return &MockClient{} }

func (c *MockClient) Complete(ctx context.Context, req Request) (Response, error) {
	select {
	case <-ctx.Done():
		return Response{}, ctx.Err()
	default:
	}

	user := strings.ToLower(req.User)
	switch {
	case strings.Contains(user, "respond only with json"):
		return Response{Text: `{"score": 7, "feedback": "Good response.", "shouldFollowUp": false, "followUpReason": ""}`}, nil
	case strings.Contains(user, "hint"):
		return Response{Text: "Structure your answer around one concrete example and the result it produced."}, nil
	default:
		return Response{Text: "Tell me about a project you are most proud of and the part you personally owned."}, nil
	}
}
