package model

import (
	"time"

	"github.com/google/uuid"
)

// SessionStatus enumerates test session states. At most one ACTIVE session
// may exist per (learner, test) pair; the database enforces this.
type SessionStatus string

const (
	SessionStatusActive    SessionStatus = "ACTIVE"
	SessionStatusCompleted SessionStatus = "COMPLETED"
	SessionStatusAbandoned SessionStatus = "ABANDONED"
)

// SubmitReason records which path finalized a session.
type SubmitReason string

const (
	SubmitReasonManual  SubmitReason = "manual"
	SubmitReasonTimeout SubmitReason = "timeout"
	SubmitReasonAbandon SubmitReason = "abandon"
)

// TestSession is a learner's time-boxed attempt at one test. ExpiresAt is
// fixed at start (started_at + duration) and never recomputed; remaining time
// is always derived from it.
type TestSession struct {
	ID            uuid.UUID     `json:"id"`
	TestID        uuid.UUID     `json:"test_id"`
	LearnerID     int           `json:"learner_id"`
	AttemptID     uuid.UUID     `json:"attempt_id"`
	AttemptNumber int           `json:"attempt_number"`
	StartedAt     time.Time     `json:"started_at"`
	ExpiresAt     time.Time     `json:"expires_at"`
	FinishedAt    *time.Time    `json:"finished_at,omitempty"`
	Status        SessionStatus `json:"status"`
	Result        *AttemptResult `json:"result,omitempty"`
}

// ActiveSessionInfo answers the "is there already a live session?" question
// that a client asks before starting a test.
type ActiveSessionInfo struct {
	HasActiveSession bool       `json:"has_active_session"`
	SessionID        *uuid.UUID `json:"session_id,omitempty"`
	AttemptID        *uuid.UUID `json:"attempt_id,omitempty"`
	StartedAt        *time.Time `json:"started_at,omitempty"`
	ExpiresAt        *time.Time `json:"expires_at,omitempty"`
}

// SessionAnswer is the authoritative per-question answer copy. Seq is the
// client-assigned monotonic write sequence; a lower seq never overwrites a
// higher one.
type SessionAnswer struct {
	SessionID        uuid.UUID  `json:"session_id"`
	QuestionID       uuid.UUID  `json:"question_id"`
	SelectedOptionID *uuid.UUID `json:"selected_option_id"`
	Seq              int64      `json:"seq"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

// SubmitAnswerRequest carries the full desired state for one question, so a
// replayed or reordered delivery resolves to last-write-wins.
type SubmitAnswerRequest struct {
	SessionID        uuid.UUID  `json:"session_id" binding:"required"`
	QuestionID       uuid.UUID  `json:"question_id" binding:"required"`
	SelectedOptionID *uuid.UUID `json:"selected_option_id"`
	Seq              int64      `json:"seq" binding:"required,min=1"`
}

// SubmitTestRequest finalizes a session. Answers are never sent here; the
// server scores from its own copy.
type SubmitTestRequest struct {
	SessionID uuid.UUID `json:"session_id" binding:"required"`
}
