package model

import (
	"time"

	"github.com/google/uuid"
)

// AttemptResult is the scored outcome of a completed or forcibly-terminated
// session. Created exactly once by the server; immutable thereafter.
type AttemptResult struct {
	SessionID        uuid.UUID    `json:"session_id"`
	TestID           uuid.UUID    `json:"test_id"`
	AttemptID        uuid.UUID    `json:"attempt_id"`
	AttemptNumber    int          `json:"attempt_number"`
	TotalMarks       float64      `json:"total_marks"`
	MarksObtained    float64      `json:"marks_obtained"`
	Percentage       float64      `json:"percentage"`
	Passed           bool         `json:"passed"`
	CorrectCount     int          `json:"correct_count"`
	WrongCount       int          `json:"wrong_count"`
	UnansweredCount  int          `json:"unanswered_count"`
	TimeTakenSeconds int          `json:"time_taken_seconds"`
	SubmitReason     SubmitReason `json:"submit_reason"`
	SubmittedAt      time.Time    `json:"submitted_at"`
}

// AttemptSummary is one row in a learner's attempt history.
type AttemptSummary struct {
	AttemptID     uuid.UUID    `json:"attempt_id"`
	TestID        uuid.UUID    `json:"test_id"`
	TestTitle     string       `json:"test_title"`
	AttemptNumber int          `json:"attempt_number"`
	MarksObtained float64      `json:"marks_obtained"`
	TotalMarks    float64      `json:"total_marks"`
	Percentage    float64      `json:"percentage"`
	Passed        bool         `json:"passed"`
	SubmitReason  SubmitReason `json:"submit_reason"`
	SubmittedAt   time.Time    `json:"submitted_at"`
}
