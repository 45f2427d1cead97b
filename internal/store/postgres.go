package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore persists interviews and message logs in PostgreSQL.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}

	if err := initSchema(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}

	return &PostgresStore{pool: pool}, nil
}

func initSchema(ctx context.Context, pool *pgxpool.Pool) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS interviews (
			id TEXT PRIMARY KEY,
			candidate_name TEXT NOT NULL DEFAULT '',
			role TEXT NOT NULL DEFAULT '',
			language TEXT NOT NULL DEFAULT 'en-US',
			resume_text TEXT NOT NULL DEFAULT '',
			job_description TEXT NOT NULL DEFAULT '',
			total_questions INTEGER NOT NULL,
			current_question INTEGER NOT NULL DEFAULT 0,
			status TEXT NOT NULL DEFAULT 'waiting',
			total_score DOUBLE PRECISION,
			verdict TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);`,
		`CREATE TABLE IF NOT EXISTS interview_messages (
			id TEXT PRIMARY KEY,
			interview_id TEXT NOT NULL REFERENCES interviews (id),
			role TEXT NOT NULL,
			content TEXT NOT NULL,
			pii_redacted BOOLEAN NOT NULL DEFAULT FALSE,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);`,
		`CREATE INDEX IF NOT EXISTS idx_interview_messages_interview_created ON interview_messages (interview_id, created_at);`,
	}

	for _, stmt := range stmts {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("init schema failed on %q: %w", stmt, err)
		}
	}
	return nil
}

func (s *PostgresStore) CreateInterview(ctx context.Context, rec InterviewRecord) (InterviewRecord, error) {
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

	_, err := s.pool.Exec(ctx,
		`INSERT INTO interviews (id, candidate_name, role, language, resume_text, job_description,
			total_questions, current_question, status, verdict, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		rec.ID, rec.CandidateName, rec.Role, rec.Language, rec.ResumeText, rec.JobDescription,
		rec.TotalQuestions, rec.CurrentQuestion, rec.Status, rec.Verdict, rec.CreatedAt, rec.UpdatedAt,
	)
	if err != nil {
		return InterviewRecord{}, fmt.Errorf("create interview: %w", err)
	}
	return rec, nil
}

func (s *PostgresStore) GetInterview(ctx context.Context, id string) (InterviewRecord, error) {
	var rec InterviewRecord
	err := s.pool.QueryRow(ctx,
		`SELECT id, candidate_name, role, language, resume_text, job_description,
			total_questions, current_question, status, total_score, verdict, created_at, updated_at
		 FROM interviews WHERE id=$1`, id,
	).Scan(&rec.ID, &rec.CandidateName, &rec.Role, &rec.Language, &rec.ResumeText, &rec.JobDescription,
		&rec.TotalQuestions, &rec.CurrentQuestion, &rec.Status, &rec.TotalScore, &rec.Verdict,
		&rec.CreatedAt, &rec.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return InterviewRecord{}, ErrNotFound
		}
		return InterviewRecord{}, fmt.Errorf("get interview: %w", err)
	}
	return rec, nil
}

func (s *PostgresStore) UpdateProgress(ctx context.Context, id string, currentQuestion int, status string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE interviews SET current_question=$2,
			status=CASE WHEN $3 = '' THEN status ELSE $3 END,
			updated_at=now()
		 WHERE id=$1`,
		id, currentQuestion, status,
	)
	if err != nil {
		return fmt.Errorf("update progress: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) CompleteInterview(ctx context.Context, id string, totalScore float64, verdict string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE interviews SET status=$2, total_score=$3, verdict=$4, updated_at=now() WHERE id=$1`,
		id, StatusCompleted, totalScore, verdict,
	)
	if err != nil {
		return fmt.Errorf("complete interview: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) SaveMessage(ctx context.Context, rec MessageRecord) error {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}

	_, err := s.pool.Exec(ctx,
		`INSERT INTO interview_messages (id, interview_id, role, content, pii_redacted, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		rec.ID, rec.InterviewID, rec.Role, rec.Content, rec.PIIRedacted, rec.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("save message: %w", err)
	}
	return nil
}

func (s *PostgresStore) Messages(ctx context.Context, interviewID string, limit int) ([]MessageRecord, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := s.pool.Query(ctx,
		`SELECT id, interview_id, role, content, pii_redacted, created_at
		 FROM interview_messages WHERE interview_id=$1 ORDER BY created_at DESC LIMIT $2`,
		interviewID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}
	defer rows.Close()

	items := make([]MessageRecord, 0, limit)
	for rows.Next() {
		var r MessageRecord
		if err := rows.Scan(&r.ID, &r.InterviewID, &r.Role, &r.Content, &r.PIIRedacted, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan message row: %w", err)
		}
		items = append(items, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate message rows: %w", err)
	}

	// Reverse into chronological order for transcript coherence.
	for i, j := 0, len(items)-1; i < j; i, j = i+1, j-1 {
		items[i], items[j] = items[j], items[i]
	}

	return items, nil
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}
