package store

import (
	"context"
	"errors"
	"testing"
)

func TestInMemoryStoreLifecycle(t *testing.T) {
	s := NewInMemoryStore()
	ctx := context.Background()

	rec, err := s.CreateInterview(ctx, InterviewRecord{
		CandidateName:  "Alex Chen",
		Role:           "Backend Engineer",
		Language:       "en-US",
		TotalQuestions: 5,
	})
	if err != nil {
		t.Fatalf("CreateInterview() error = %v", err)
	}
	if rec.ID == "" {
		t.Fatalf("CreateInterview() did not assign an ID")
	}
	if rec.Status != StatusWaiting {
		t.Fatalf("Status = %q, want %q", rec.Status, StatusWaiting)
	}

	if err := s.UpdateProgress(ctx, rec.ID, 2, StatusInProgress); err != nil {
		t.Fatalf("UpdateProgress() error = %v", err)
	}
	got, err := s.GetInterview(ctx, rec.ID)
	if err != nil {
		t.Fatalf("GetInterview() error = %v", err)
	}
	if got.CurrentQuestion != 2 || got.Status != StatusInProgress {
		t.Fatalf("interview = %+v, want progress 2/in_progress", got)
	}

	if err := s.CompleteInterview(ctx, rec.ID, 7.5, "SELECTED"); err != nil {
		t.Fatalf("CompleteInterview() error = %v", err)
	}
	got, _ = s.GetInterview(ctx, rec.ID)
	if got.Status != StatusCompleted {
		t.Fatalf("Status = %q, want completed", got.Status)
	}
	if got.TotalScore == nil || *got.TotalScore != 7.5 {
		t.Fatalf("TotalScore = %v, want 7.5", got.TotalScore)
	}
	if got.Verdict != "SELECTED" {
		t.Fatalf("Verdict = %q, want SELECTED", got.Verdict)
	}
}

func TestInMemoryStoreNotFound(t *testing.T) {
	s := NewInMemoryStore()
	ctx := context.Background()

	if _, err := s.GetInterview(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("GetInterview(missing) error = %v, want ErrNotFound", err)
	}
	if err := s.UpdateProgress(ctx, "missing", 1, ""); !errors.Is(err, ErrNotFound) {
		t.Fatalf("UpdateProgress(missing) error = %v, want ErrNotFound", err)
	}
	if err := s.CompleteInterview(ctx, "missing", 5, "ON HOLD"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("CompleteInterview(missing) error = %v, want ErrNotFound", err)
	}
}

func TestInMemoryStoreMessageLog(t *testing.T) {
	s := NewInMemoryStore()
	ctx := context.Background()

	rec, _ := s.CreateInterview(ctx, InterviewRecord{TotalQuestions: 2})
	for _, content := range []string{"q1", "a1", "q2"} {
		if err := s.SaveMessage(ctx, MessageRecord{InterviewID: rec.ID, Role: "assistant", Content: content}); err != nil {
			t.Fatalf("SaveMessage(%q) error = %v", content, err)
		}
	}

	msgs, err := s.Messages(ctx, rec.ID, 2)
	if err != nil {
		t.Fatalf("Messages() error = %v", err)
	}
	if len(msgs) != 2 {
		t.Fatalf("len(msgs) = %d, want 2", len(msgs))
	}
	if msgs[0].Content != "a1" || msgs[1].Content != "q2" {
		t.Fatalf("msgs = %v, want the two most recent in order", msgs)
	}
}
