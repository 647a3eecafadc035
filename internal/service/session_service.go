package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/prepstack/testcenter-backend/internal/config"
	"github.com/prepstack/testcenter-backend/internal/model"
	"github.com/prepstack/testcenter-backend/internal/repository"
)

// Domain errors.
var (
	ErrSessionConflict = errors.New("an active session already exists for this test")
	ErrNoActiveSession = errors.New("no active session exists for this test")
	ErrSessionMismatch = errors.New("session does not belong to this test or learner")
	ErrMaxAttempts     = errors.New("maximum attempts reached for this test")
)

// SessionService owns the session lifecycle up to (but not including)
// finalization: discovery, start, and per-request verification.
type SessionService struct {
	sessionRepo *repository.SessionRepository
	testRepo    *repository.TestRepository
	rdb         *redis.Client
	log         zerolog.Logger
}

// NewSessionService creates a new SessionService.
func NewSessionService(
	sessionRepo *repository.SessionRepository,
	testRepo *repository.TestRepository,
	rdb *redis.Client,
	log zerolog.Logger,
) *SessionService {
	return &SessionService{
		sessionRepo: sessionRepo,
		testRepo:    testRepo,
		rdb:         rdb,
		log:         log.With().Str("component", "session_service").Logger(),
	}
}

// ActiveSession reports whether a live session exists for this (learner,
// test) pair. This is the discovery half of session negotiation: the client
// must ask before starting, and the answer drives its resume/abandon choice.
// An expired-but-not-yet-swept session is still reported with its original
// expiry; the client is expected to auto-submit it immediately.
func (s *SessionService) ActiveSession(ctx context.Context, testID uuid.UUID, learnerID int) (*model.ActiveSessionInfo, error) {
	sess, err := s.sessionRepo.GetActive(ctx, testID, learnerID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return &model.ActiveSessionInfo{HasActiveSession: false}, nil
		}
		return nil, fmt.Errorf("get active session: %w", err)
	}

	return &model.ActiveSessionInfo{
		HasActiveSession: true,
		SessionID:        &sess.ID,
		AttemptID:        &sess.AttemptID,
		StartedAt:        &sess.StartedAt,
		ExpiresAt:        &sess.ExpiresAt,
	}, nil
}

// Start creates a fresh ACTIVE session. The deadline is fixed here as
// started_at + duration and never recomputed afterwards. The per-session
// question order is shuffled, cached, and queued for durable persistence.
func (s *SessionService) Start(ctx context.Context, testID uuid.UUID, learnerID int) (*model.TestSession, error) {
	test, err := s.testRepo.GetByID(ctx, testID)
	if err != nil {
		return nil, fmt.Errorf("get test: %w", err)
	}
	if test.Status != model.TestStatusPublished {
		return nil, ErrTestNotAvailable
	}

	attempts, err := s.sessionRepo.CountAttempts(ctx, testID, learnerID)
	if err != nil {
		return nil, fmt.Errorf("count attempts: %w", err)
	}
	if test.MaxAttempts > 0 && attempts >= test.MaxAttempts {
		return nil, ErrMaxAttempts
	}

	now := time.Now()
	session := &model.TestSession{
		TestID:        testID,
		LearnerID:     learnerID,
		AttemptID:     uuid.New(),
		AttemptNumber: attempts + 1,
		StartedAt:     now,
		ExpiresAt:     now.Add(time.Duration(test.DurationMinutes) * time.Minute),
	}

	if err := s.sessionRepo.CreateActive(ctx, session); err != nil {
		if errors.Is(err, repository.ErrActiveSessionExists) {
			return nil, ErrSessionConflict
		}
		return nil, fmt.Errorf("create session: %w", err)
	}

	// Register the deadline for the sweeper. The score is the absolute
	// expiry instant; the sweeper never counts down.
	deadlineErr := s.rdb.ZAdd(ctx, config.CacheKey.SessionDeadlinesKey(), redis.Z{
		Score:  float64(session.ExpiresAt.Unix()),
		Member: session.ID.String(),
	}).Err()
	if deadlineErr != nil {
		// The PostgreSQL fallback sweep still catches this session.
		s.log.Warn().Err(deadlineErr).
			Str("session_id", session.ID.String()).
			Msg("Failed to register session deadline")
	}

	if err := s.shuffleQuestionOrder(ctx, session); err != nil {
		s.log.Warn().Err(err).
			Str("session_id", session.ID.String()).
			Msg("Failed to shuffle question order, authoring order will be used")
	}

	s.log.Info().
		Str("session_id", session.ID.String()).
		Str("test_id", testID.String()).
		Int("learner_id", learnerID).
		Int("attempt", session.AttemptNumber).
		Time("expires_at", session.ExpiresAt).
		Msg("Session started")

	return session, nil
}

// VerifyOwnedActive loads a session and checks that it belongs to the given
// test and learner and is still ACTIVE. Every session-scoped call goes
// through this.
func (s *SessionService) VerifyOwnedActive(ctx context.Context, sessionID, testID uuid.UUID, learnerID int) (*model.TestSession, error) {
	sess, err := s.sessionRepo.GetByID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNoActiveSession
		}
		return nil, fmt.Errorf("get session: %w", err)
	}
	if sess.TestID != testID || sess.LearnerID != learnerID {
		return nil, ErrSessionMismatch
	}
	if sess.Status != model.SessionStatusActive {
		return nil, ErrNoActiveSession
	}
	return sess, nil
}

// VerifyOwned is VerifyOwnedActive without the status check; submission needs
// to see finalized sessions for its idempotent repeat-call path.
func (s *SessionService) VerifyOwned(ctx context.Context, sessionID, testID uuid.UUID, learnerID int) (*model.TestSession, error) {
	sess, err := s.sessionRepo.GetByID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNoActiveSession
		}
		return nil, fmt.Errorf("get session: %w", err)
	}
	if sess.TestID != testID || sess.LearnerID != learnerID {
		return nil, ErrSessionMismatch
	}
	return sess, nil
}

// ListAttempts retrieves a learner's finished attempts.
func (s *SessionService) ListAttempts(ctx context.Context, learnerID int) ([]model.AttemptSummary, error) {
	return s.sessionRepo.ListAttemptsByLearner(ctx, learnerID)
}

// shuffleQuestionOrder draws a random question order for the session, caches
// it in Redis, and queues it for durable persistence on the session row.
func (s *SessionService) shuffleQuestionOrder(ctx context.Context, session *model.TestSession) error {
	payload, err := s.rdb.Get(ctx, config.CacheKey.TestPayloadKey(session.TestID)).Bytes()
	if err != nil {
		return fmt.Errorf("get payload: %w", err)
	}

	var tp model.TestPayload
	if err := json.Unmarshal(payload, &tp); err != nil {
		return fmt.Errorf("unmarshal payload: %w", err)
	}

	order := make([]string, len(tp.Questions))
	for i, q := range tp.Questions {
		order[i] = q.ID.String()
	}
	rand.Shuffle(len(order), func(i, j int) {
		order[i], order[j] = order[j], order[i]
	})

	orderJSON, err := json.Marshal(order)
	if err != nil {
		return fmt.Errorf("marshal order: %w", err)
	}

	if err := s.rdb.Set(ctx, config.CacheKey.SessionQuestionOrderKey(session.ID), orderJSON, 0).Err(); err != nil {
		return fmt.Errorf("cache order: %w", err)
	}

	queued, _ := json.Marshal(map[string]interface{}{
		"session_id": session.ID.String(),
		"order":      order,
	})
	return s.rdb.RPush(ctx, config.WorkerKey.PersistQuestionOrderQueue, queued).Err()
}
