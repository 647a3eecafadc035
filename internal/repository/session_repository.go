package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/prepstack/testcenter-backend/internal/model"
)

// ErrActiveSessionExists is returned when inserting a session would violate
// the one-active-session-per-(learner, test) invariant.
var ErrActiveSessionExists = errors.New("an active session already exists for this test")

const sessionColumns = `id, test_id, learner_id, attempt_id, attempt_number,
	started_at, expires_at, finished_at, status`

// SessionRepository handles test session data access.
type SessionRepository struct {
	pool *pgxpool.Pool
}

// NewSessionRepository creates a new SessionRepository.
func NewSessionRepository(pool *pgxpool.Pool) *SessionRepository {
	return &SessionRepository{pool: pool}
}

func scanSession(row interface{ Scan(dest ...any) error }) (*model.TestSession, error) {
	s := &model.TestSession{}
	err := row.Scan(
		&s.ID, &s.TestID, &s.LearnerID, &s.AttemptID, &s.AttemptNumber,
		&s.StartedAt, &s.ExpiresAt, &s.FinishedAt, &s.Status,
	)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// GetByID retrieves a session by id.
func (r *SessionRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.TestSession, error) {
	return scanSession(r.pool.QueryRow(ctx,
		`SELECT `+sessionColumns+` FROM test_sessions WHERE id = $1`, id))
}

// GetActive retrieves the single ACTIVE session for a (test, learner) pair,
// or pgx.ErrNoRows if none exists.
func (r *SessionRepository) GetActive(ctx context.Context, testID uuid.UUID, learnerID int) (*model.TestSession, error) {
	return scanSession(r.pool.QueryRow(ctx,
		`SELECT `+sessionColumns+` FROM test_sessions
		 WHERE test_id = $1 AND learner_id = $2 AND status = $3`,
		testID, learnerID, model.SessionStatusActive))
}

// CountAttempts counts all sessions a learner has opened for a test,
// regardless of how they ended.
func (r *SessionRepository) CountAttempts(ctx context.Context, testID uuid.UUID, learnerID int) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM test_sessions
		 WHERE test_id = $1 AND learner_id = $2`, testID, learnerID).Scan(&n)
	return n, err
}

// CreateActive inserts a new ACTIVE session. The partial unique index on
// (test_id, learner_id) WHERE status = 'ACTIVE' backs the invariant; a
// violation surfaces as ErrActiveSessionExists.
func (r *SessionRepository) CreateActive(ctx context.Context, s *model.TestSession) error {
	err := r.pool.QueryRow(ctx,
		`INSERT INTO test_sessions
			(test_id, learner_id, attempt_id, attempt_number, started_at, expires_at, status)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 RETURNING id`,
		s.TestID, s.LearnerID, s.AttemptID, s.AttemptNumber,
		s.StartedAt, s.ExpiresAt, model.SessionStatusActive,
	).Scan(&s.ID)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrActiveSessionExists
		}
		return err
	}
	s.Status = model.SessionStatusActive
	return nil
}

// Finalize transitions an ACTIVE session to its terminal state and stores the
// result. The WHERE status = 'ACTIVE' clause is the claim: exactly one caller
// wins when a manual submit races the deadline sweeper. Returns false when
// the session was already finalized.
func (r *SessionRepository) Finalize(ctx context.Context, sessionID uuid.UUID, status model.SessionStatus, res *model.AttemptResult) (bool, error) {
	tag, err := r.pool.Exec(ctx,
		`UPDATE test_sessions
		 SET status = $1, submit_reason = $2, finished_at = $3,
		     marks_obtained = $4, percentage = $5, passed = $6,
		     correct_count = $7, wrong_count = $8, unanswered_count = $9,
		     time_taken_seconds = $10
		 WHERE id = $11 AND status = $12`,
		status, res.SubmitReason, res.SubmittedAt,
		res.MarksObtained, res.Percentage, res.Passed,
		res.CorrectCount, res.WrongCount, res.UnansweredCount,
		res.TimeTakenSeconds,
		sessionID, model.SessionStatusActive)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// GetResult retrieves the stored result of a finalized session.
func (r *SessionRepository) GetResult(ctx context.Context, sessionID uuid.UUID) (*model.AttemptResult, error) {
	res := &model.AttemptResult{SessionID: sessionID}
	var totalMarks float64
	err := r.pool.QueryRow(ctx,
		`SELECT s.test_id, s.attempt_id, s.attempt_number, t.total_marks,
		        s.marks_obtained, s.percentage, s.passed,
		        s.correct_count, s.wrong_count, s.unanswered_count,
		        s.time_taken_seconds, s.submit_reason, s.finished_at
		 FROM test_sessions s
		 JOIN tests t ON t.id = s.test_id
		 WHERE s.id = $1 AND s.status <> $2`,
		sessionID, model.SessionStatusActive,
	).Scan(
		&res.TestID, &res.AttemptID, &res.AttemptNumber, &totalMarks,
		&res.MarksObtained, &res.Percentage, &res.Passed,
		&res.CorrectCount, &res.WrongCount, &res.UnansweredCount,
		&res.TimeTakenSeconds, &res.SubmitReason, &res.SubmittedAt,
	)
	if err != nil {
		return nil, err
	}
	res.TotalMarks = totalMarks
	return res, nil
}

// ListAttemptsByLearner retrieves a learner's finished attempts, newest first.
func (r *SessionRepository) ListAttemptsByLearner(ctx context.Context, learnerID int) ([]model.AttemptSummary, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT s.attempt_id, s.test_id, t.title, s.attempt_number,
		        s.marks_obtained, t.total_marks, s.percentage, s.passed,
		        s.submit_reason, s.finished_at
		 FROM test_sessions s
		 JOIN tests t ON t.id = s.test_id
		 WHERE s.learner_id = $1 AND s.status <> $2
		 ORDER BY s.finished_at DESC`,
		learnerID, model.SessionStatusActive)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var attempts []model.AttemptSummary
	for rows.Next() {
		var a model.AttemptSummary
		if err := rows.Scan(
			&a.AttemptID, &a.TestID, &a.TestTitle, &a.AttemptNumber,
			&a.MarksObtained, &a.TotalMarks, &a.Percentage, &a.Passed,
			&a.SubmitReason, &a.SubmittedAt,
		); err != nil {
			return nil, err
		}
		attempts = append(attempts, a)
	}
	return attempts, rows.Err()
}

// GetQuestionOrder returns the persisted question order JSON for a session,
// or nil when none has been persisted yet.
func (r *SessionRepository) GetQuestionOrder(ctx context.Context, sessionID uuid.UUID) ([]byte, error) {
	var raw []byte
	err := r.pool.QueryRow(ctx,
		`SELECT question_order FROM test_sessions WHERE id = $1`,
		sessionID).Scan(&raw)
	if err != nil {
		return nil, err
	}
	return raw, nil
}

// SetQuestionOrder persists a session's question order onto its row.
func (r *SessionRepository) SetQuestionOrder(ctx context.Context, sessionID uuid.UUID, order []byte) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE test_sessions SET question_order = $1 WHERE id = $2`,
		order, sessionID)
	return err
}

// ListExpiredActive finds ACTIVE sessions whose deadline passed before the
// given cutoff. Safety net behind the Redis deadline set: if Redis loses the
// deadline entry, the sweep still finds the session here.
func (r *SessionRepository) ListExpiredActive(ctx context.Context, cutoff time.Time, limit int) ([]model.TestSession, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+sessionColumns+` FROM test_sessions
		 WHERE status = $1 AND expires_at < $2
		 ORDER BY expires_at ASC
		 LIMIT $3`,
		model.SessionStatusActive, cutoff, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []model.TestSession
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, *s)
	}
	return sessions, rows.Err()
}
