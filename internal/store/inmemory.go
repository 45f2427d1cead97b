package store

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// InMemoryStore is a simple in-process store for local/dev use.
type InMemoryStore struct {
	mu         sync.RWMutex
	interviews map[string]InterviewRecord
	messages   map[string][]MessageRecord
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		interviews: make(map[string]InterviewRecord),
		messages:   make(map[string][]MessageRecord),
	}
}

func (s *InMemoryStore) CreateInterview(_ context.Context, rec InterviewRecord) (InterviewRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now
	}
	rec.UpdatedAt = now
	if rec.Status == "" {
		rec.Status = StatusWaiting
	}
	s.interviews[rec.ID] = rec
	return rec, nil
}

func (s *InMemoryStore) GetInterview(_ context.Context, id string) (InterviewRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.interviews[id]
	if !ok {
		return InterviewRecord{}, ErrNotFound
	}
	return rec, nil
}

func (s *InMemoryStore) UpdateProgress(_ context.Context, id string, currentQuestion int, status string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.interviews[id]
	if !ok {
		return ErrNotFound
	}
	rec.CurrentQuestion = currentQuestion
	if status != "" {
		rec.Status = status
	}
	rec.UpdatedAt = time.Now().UTC()
	s.interviews[id] = rec
	return nil
}

func (s *InMemoryStore) CompleteInterview(_ context.Context, id string, totalScore float64, verdict string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.interviews[id]
	if !ok {
		return ErrNotFound
	}
	rec.Status = StatusCompleted
	rec.TotalScore = &totalScore
	rec.Verdict = verdict
	rec.UpdatedAt = time.Now().UTC()
	s.interviews[id] = rec
	return nil
}

func (s *InMemoryStore) SaveMessage(_ context.Context, rec MessageRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	s.messages[rec.InterviewID] = append(s.messages[rec.InterviewID], rec)
	return nil
}

func (s *InMemoryStore) Messages(_ context.Context, interviewID string, limit int) ([]MessageRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	arr := s.messages[interviewID]
	if len(arr) == 0 {
		return nil, nil
	}
	if limit <= 0 || limit > len(arr) {
		limit = len(arr)
	}
	out := make([]MessageRecord, 0, limit)
	for i := len(arr) - limit; i < len(arr); i++ {
		out = append(out, arr[i])
	}
	return out, nil
}

func (s *InMemoryStore) Close() error { return nil }
