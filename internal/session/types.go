package session

import "time"

// CreateRequest defines payload for starting a new interview session.
type CreateRequest struct {
	CandidateName  string `json:"candidate_name"`
	Role           string `json:"role"`
	Language       string `json:"language"`
	ResumeText     string `json:"resume_text"`
	JobDescription string `json:"job_description"`
	TotalQuestions int    `json:"total_questions"`
}

// CreateResponse returns created session metadata.
type CreateResponse struct {
	SessionID       string    `json:"session_id"`
	CandidateName   string    `json:"candidate_name"`
	Role            string    `json:"role"`
	Language        string    `json:"language"`
	TotalQuestions  int       `json:"total_questions"`
	Status          Status    `json:"status"`
	FaceID          string    `json:"face_id"`
	Gender          string    `json:"gender"`
	StartedAt       time.Time `json:"started_at"`
	LastActivityAt  time.Time `json:"last_activity_at"`
	InactivityTTLMS int64     `json:"inactivity_ttl_ms"`
}

// ResponseFrom builds the API view of one session.
func ResponseFrom(s *Session, ttl time.Duration) CreateResponse {
	return CreateResponse{
		SessionID:       s.ID,
		CandidateName:   s.CandidateName,
		Role:            s.Role,
		Language:        s.Language,
		TotalQuestions:  s.TotalQuestions,
		Status:          s.Status,
		FaceID:          s.Profile.FaceID,
		Gender:          s.Profile.Gender,
		StartedAt:       s.StartedAt,
		LastActivityAt:  s.LastActivityAt,
		InactivityTTLMS: ttl.Milliseconds(),
	}
}
