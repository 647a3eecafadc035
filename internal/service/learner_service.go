package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"

	"github.com/prepstack/testcenter-backend/internal/model"
	"github.com/prepstack/testcenter-backend/internal/repository"
)

// LearnerService handles learner accounts and login.
type LearnerService struct {
	learnerRepo *repository.LearnerRepository
	auth        *AuthService
	log         zerolog.Logger
}

// NewLearnerService creates a new LearnerService.
func NewLearnerService(learnerRepo *repository.LearnerRepository, auth *AuthService, log zerolog.Logger) *LearnerService {
	return &LearnerService{
		learnerRepo: learnerRepo,
		auth:        auth,
		log:         log.With().Str("component", "learner_service").Logger(),
	}
}

// Login checks credentials and issues a token. An unknown email and a wrong
// password are indistinguishable to the caller.
func (s *LearnerService) Login(ctx context.Context, email, password string) (*model.Learner, string, error) {
	learner, err := s.learnerRepo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, "", ErrInvalidCredentials
		}
		return nil, "", fmt.Errorf("get learner: %w", err)
	}

	if err := s.auth.CheckPassword(learner.PasswordHash, password); err != nil {
		return nil, "", ErrInvalidCredentials
	}

	token, err := s.auth.GenerateLearnerToken(ctx, learner.ID)
	if err != nil {
		return nil, "", fmt.Errorf("generate token: %w", err)
	}

	s.log.Info().Int("learner_id", learner.ID).Msg("Learner logged in")
	return learner, token, nil
}

// GetByID retrieves a learner profile.
func (s *LearnerService) GetByID(ctx context.Context, id int) (*model.Learner, error) {
	return s.learnerRepo.GetByID(ctx, id)
}
