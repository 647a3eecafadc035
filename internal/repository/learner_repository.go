package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/prepstack/testcenter-backend/internal/model"
)

// LearnerRepository handles learner data access.
type LearnerRepository struct {
	pool *pgxpool.Pool
}

// NewLearnerRepository creates a new LearnerRepository.
func NewLearnerRepository(pool *pgxpool.Pool) *LearnerRepository {
	return &LearnerRepository{pool: pool}
}

// GetByEmail retrieves a learner by email.
func (r *LearnerRepository) GetByEmail(ctx context.Context, email string) (*model.Learner, error) {
	l := &model.Learner{}
	err := r.pool.QueryRow(ctx,
		`SELECT id, name, email, password_hash, created_at
		 FROM learners
		 WHERE email = $1`, email,
	).Scan(&l.ID, &l.Name, &l.Email, &l.PasswordHash, &l.CreatedAt)
	if err != nil {
		return nil, err
	}
	return l, nil
}

// GetByID retrieves a learner by id.
func (r *LearnerRepository) GetByID(ctx context.Context, id int) (*model.Learner, error) {
	l := &model.Learner{}
	err := r.pool.QueryRow(ctx,
		`SELECT id, name, email, password_hash, created_at
		 FROM learners
		 WHERE id = $1`, id,
	).Scan(&l.ID, &l.Name, &l.Email, &l.PasswordHash, &l.CreatedAt)
	if err != nil {
		return nil, err
	}
	return l, nil
}

// Create inserts a new learner.
func (r *LearnerRepository) Create(ctx context.Context, l *model.Learner) error {
	return r.pool.QueryRow(ctx,
		`INSERT INTO learners (name, email, password_hash)
		 VALUES ($1, $2, $3)
		 RETURNING id, created_at`,
		l.Name, l.Email, l.PasswordHash,
	).Scan(&l.ID, &l.CreatedAt)
}
