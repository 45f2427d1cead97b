package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when no interview exists for the given ID.
var ErrNotFound = errors.New("interview not found")

// Interview status lifecycle.
const (
	StatusWaiting    = "waiting"
	StatusInProgress = "in_progress"
	StatusCompleted  = "completed"
)

// InterviewRecord is the persistent state of one mock interview.
type InterviewRecord struct {
	ID              string    `json:"id"`
	CandidateName   string    `json:"candidate_name"`
	Role            string    `json:"role"`
	Language        string    `json:"language"`
	ResumeText      string    `json:"resume_text,omitempty"`
	JobDescription  string    `json:"job_description,omitempty"`
	TotalQuestions  int       `json:"total_questions"`
	CurrentQuestion int       `json:"current_question"`
	Status          string    `json:"status"`
	TotalScore      *float64  `json:"total_score,omitempty"`
	Verdict         string    `json:"verdict,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// MessageRecord is one transcript entry in the append-only message log.
type MessageRecord struct {
	ID          string    `json:"id"`
	InterviewID string    `json:"interview_id"`
	Role        string    `json:"role"`
	Content     string    `json:"content"`
	PIIRedacted bool      `json:"pii_redacted"`
	CreatedAt   time.Time `json:"created_at"`
}

// Store persists interviews and their message logs.
type Store interface {
	CreateInterview(ctx context.Context, rec InterviewRecord) (InterviewRecord, error)
	GetInterview(ctx context.Context, id string) (InterviewRecord, error)
	UpdateProgress(ctx context.Context, id string, currentQuestion int, status string) error
	CompleteInterview(ctx context.Context, id string, totalScore float64, verdict string) error
	SaveMessage(ctx context.Context, rec MessageRecord) error
	Messages(ctx context.Context, interviewID string, limit int) ([]MessageRecord, error)
	Close() error
}
