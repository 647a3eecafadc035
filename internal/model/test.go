package model

import (
	"time"

	"github.com/google/uuid"
)

// TestStatus enumerates the possible states of a test definition.
type TestStatus string

const (
	TestStatusDraft     TestStatus = "DRAFT"
	TestStatusPublished TestStatus = "PUBLISHED"
	TestStatusArchived  TestStatus = "ARCHIVED"
)

// Test is a test definition. It is immutable for the lifetime of an attempt;
// learners only ever see it read-only.
type Test struct {
	ID              uuid.UUID  `json:"id"`
	Title           string     `json:"title"`
	DurationMinutes int        `json:"duration_minutes"`
	TotalMarks      float64    `json:"total_marks"`
	PassingMarks    float64    `json:"passing_marks"`
	MaxAttempts     int        `json:"max_attempts"`
	NegativeMarking bool       `json:"negative_marking"`
	NegativePercent float64    `json:"negative_percent"`
	QuestionCount   int        `json:"question_count"`
	Status          TestStatus `json:"status"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// TestPayload is the Redis-cached paper sent to learners (no correct answers).
// Question order here is the authoring order; the per-session shuffle is
// applied on top of it at fetch time.
type TestPayload struct {
	TestID          uuid.UUID            `json:"test_id"`
	Title           string               `json:"title"`
	DurationMinutes int                  `json:"duration_minutes"`
	Questions       []QuestionForLearner `json:"questions"`
}
