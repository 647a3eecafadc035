package attempt

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/prepstack/testcenter-backend/internal/model"
)

// Summary is the pre-submit overview shown for confirmation on a manual
// submit. Marked counts overlap answered counts; the three do not partition.
type Summary struct {
	Answered   int
	Unanswered int
	Marked     int
	Elapsed    time.Duration
}

// SubmissionCoordinator builds the pre-submit summary and performs the single
// finalizing call. The backend scores from its own answer copy, so only the
// session id travels; a failed submit leaves the session and local answers
// untouched for retry.
type SubmissionCoordinator struct {
	backend   Backend
	record    *AnswerRecord
	marks     *ReviewMarkSet
	testID    uuid.UUID
	sessionID uuid.UUID
	startedAt time.Time
	total     int
	clock     Clock
	log       zerolog.Logger
}

// NewSubmissionCoordinator creates a coordinator bound to one session.
func NewSubmissionCoordinator(
	backend Backend,
	record *AnswerRecord,
	marks *ReviewMarkSet,
	session *model.TestSession,
	totalQuestions int,
	clock Clock,
	log zerolog.Logger,
) *SubmissionCoordinator {
	return &SubmissionCoordinator{
		backend:   backend,
		record:    record,
		marks:     marks,
		testID:    session.TestID,
		sessionID: session.ID,
		startedAt: session.StartedAt,
		total:     totalQuestions,
		clock:     clock,
		log:       log.With().Str("component", "submission").Logger(),
	}
}

// BuildSummary derives the current answered/unanswered/marked counts and
// elapsed time.
func (s *SubmissionCoordinator) BuildSummary() Summary {
	answered := s.record.AnsweredCount()
	elapsed := s.clock().Sub(s.startedAt)
	if elapsed < 0 {
		elapsed = 0
	}
	return Summary{
		Answered:   answered,
		Unanswered: s.total - answered,
		Marked:     s.marks.Count(),
		Elapsed:    elapsed,
	}
}

// Submit finalizes the session. Idempotent server-side: retrying after a
// network fault returns the stored result rather than double-scoring.
func (s *SubmissionCoordinator) Submit(ctx context.Context) (*model.AttemptResult, error) {
	result, err := s.backend.SubmitTest(ctx, s.testID, s.sessionID)
	if err != nil {
		return nil, fmt.Errorf("submit test: %w", err)
	}
	s.log.Info().
		Str("session_id", s.sessionID.String()).
		Float64("marks", result.MarksObtained).
		Bool("passed", result.Passed).
		Msg("Attempt submitted")
	return result, nil
}
