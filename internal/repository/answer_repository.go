package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/prepstack/testcenter-backend/internal/model"
)

// AnswerRepository handles the durable copy of session answers.
type AnswerRepository struct {
	pool *pgxpool.Pool
}

// NewAnswerRepository creates a new AnswerRepository.
func NewAnswerRepository(pool *pgxpool.Pool) *AnswerRepository {
	return &AnswerRepository{pool: pool}
}

// Upsert writes one answer, last-write-wins by seq. An older in-flight write
// landing after a newer one is a no-op because of the seq guard.
func (r *AnswerRepository) Upsert(ctx context.Context, a *model.SessionAnswer) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO session_answers (session_id, question_id, selected_option_id, seq)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (session_id, question_id) DO UPDATE
		 SET selected_option_id = EXCLUDED.selected_option_id,
		     seq = EXCLUDED.seq,
		     updated_at = NOW()
		 WHERE session_answers.seq < EXCLUDED.seq`,
		a.SessionID, a.QuestionID, a.SelectedOptionID, a.Seq)
	return err
}

// BulkUpsert writes a batch of answers in a single statement via UNNEST,
// with the same per-row seq guard as Upsert.
func (r *AnswerRepository) BulkUpsert(ctx context.Context, answers []model.SessionAnswer) error {
	if len(answers) == 0 {
		return nil
	}

	sessionIDs := make([]uuid.UUID, len(answers))
	questionIDs := make([]uuid.UUID, len(answers))
	optionIDs := make([]*uuid.UUID, len(answers))
	seqs := make([]int64, len(answers))
	for i, a := range answers {
		sessionIDs[i] = a.SessionID
		questionIDs[i] = a.QuestionID
		optionIDs[i] = a.SelectedOptionID
		seqs[i] = a.Seq
	}

	_, err := r.pool.Exec(ctx,
		`INSERT INTO session_answers (session_id, question_id, selected_option_id, seq)
		 SELECT * FROM UNNEST($1::uuid[], $2::uuid[], $3::uuid[], $4::bigint[])
		 ON CONFLICT (session_id, question_id) DO UPDATE
		 SET selected_option_id = EXCLUDED.selected_option_id,
		     seq = EXCLUDED.seq,
		     updated_at = NOW()
		 WHERE session_answers.seq < EXCLUDED.seq`,
		sessionIDs, questionIDs, optionIDs, seqs)
	return err
}

// ListBySession retrieves the answers of one session keyed by question id.
func (r *AnswerRepository) ListBySession(ctx context.Context, sessionID uuid.UUID) (map[uuid.UUID]*uuid.UUID, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT question_id, selected_option_id
		 FROM session_answers
		 WHERE session_id = $1`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	answers := make(map[uuid.UUID]*uuid.UUID)
	for rows.Next() {
		var qID uuid.UUID
		var optID *uuid.UUID
		if err := rows.Scan(&qID, &optID); err != nil {
			return nil, err
		}
		answers[qID] = optID
	}
	return answers, rows.Err()
}
