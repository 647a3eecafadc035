package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/prepstack/testcenter-backend/internal/model"
)

const testColumns = `id, title, duration_minutes, total_marks, passing_marks,
	max_attempts, negative_marking, negative_percent, question_count, status,
	created_at, updated_at`

// TestRepository handles test definition data access.
type TestRepository struct {
	pool *pgxpool.Pool
}

// NewTestRepository creates a new TestRepository.
func NewTestRepository(pool *pgxpool.Pool) *TestRepository {
	return &TestRepository{pool: pool}
}

func scanTest(row interface{ Scan(dest ...any) error }) (*model.Test, error) {
	t := &model.Test{}
	err := row.Scan(
		&t.ID, &t.Title, &t.DurationMinutes, &t.TotalMarks, &t.PassingMarks,
		&t.MaxAttempts, &t.NegativeMarking, &t.NegativePercent, &t.QuestionCount,
		&t.Status, &t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return t, nil
}

// GetByID retrieves a test by its UUID.
func (r *TestRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Test, error) {
	return scanTest(r.pool.QueryRow(ctx,
		`SELECT `+testColumns+` FROM tests WHERE id = $1`, id))
}

// ListPublished retrieves all published tests.
func (r *TestRepository) ListPublished(ctx context.Context) ([]model.Test, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+testColumns+` FROM tests
		 WHERE status = $1
		 ORDER BY created_at DESC`, model.TestStatusPublished)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tests []model.Test
	for rows.Next() {
		t, err := scanTest(rows)
		if err != nil {
			return nil, err
		}
		tests = append(tests, *t)
	}
	return tests, rows.Err()
}
