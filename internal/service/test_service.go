package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/prepstack/testcenter-backend/internal/config"
	"github.com/prepstack/testcenter-backend/internal/model"
	"github.com/prepstack/testcenter-backend/internal/repository"
)

// Domain errors.
var (
	ErrTestNotAvailable = errors.New("test is not available")
	ErrNoQuestions      = errors.New("test has no questions")
)

// TestService handles test definitions and the Redis payload fast lane.
type TestService struct {
	testRepo     *repository.TestRepository
	questionRepo *repository.QuestionRepository
	rdb          *redis.Client
	log          zerolog.Logger
}

// NewTestService creates a new TestService.
func NewTestService(
	testRepo *repository.TestRepository,
	questionRepo *repository.QuestionRepository,
	rdb *redis.Client,
	log zerolog.Logger,
) *TestService {
	return &TestService{
		testRepo:     testRepo,
		questionRepo: questionRepo,
		rdb:          rdb,
		log:          log.With().Str("component", "test_service").Logger(),
	}
}

// GetByID retrieves a test definition.
func (s *TestService) GetByID(ctx context.Context, id uuid.UUID) (*model.Test, error) {
	return s.testRepo.GetByID(ctx, id)
}

// ListPublished retrieves all tests open to learners.
func (s *TestService) ListPublished(ctx context.Context) ([]model.Test, error) {
	return s.testRepo.ListPublished(ctx)
}

// WarmTestCache loads a test's learner-facing payload from PostgreSQL into
// Redis and returns it. Correct answers never enter the payload.
func (s *TestService) WarmTestCache(ctx context.Context, test *model.Test) (*model.TestPayload, error) {
	questions, err := s.questionRepo.ListByTest(ctx, test.ID)
	if err != nil {
		return nil, fmt.Errorf("list questions: %w", err)
	}
	if len(questions) == 0 {
		return nil, ErrNoQuestions
	}

	learnerQuestions := make([]model.QuestionForLearner, len(questions))
	for i, q := range questions {
		learnerQuestions[i] = model.QuestionForLearner{
			ID:            q.ID,
			Text:          q.Text,
			Options:       q.Options,
			Marks:         q.Marks,
			NegativeMarks: q.NegativeMarks,
			OrderNum:      q.OrderNum,
		}
	}

	payload := &model.TestPayload{
		TestID:          test.ID,
		Title:           test.Title,
		DurationMinutes: test.DurationMinutes,
		Questions:       learnerQuestions,
	}

	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}

	if err := s.rdb.Set(ctx, config.CacheKey.TestPayloadKey(test.ID), payloadJSON, 0).Err(); err != nil {
		return nil, fmt.Errorf("cache to redis: %w", err)
	}

	s.log.Debug().
		Str("test_id", test.ID.String()).
		Int("questions", len(questions)).
		Msg("Cache warmed")
	return payload, nil
}

// PrewarmAllCaches loads all published tests into Redis on startup so the
// first learner hitting a test never races a lazy load.
func (s *TestService) PrewarmAllCaches(ctx context.Context) error {
	tests, err := s.testRepo.ListPublished(ctx)
	if err != nil {
		return fmt.Errorf("list published tests: %w", err)
	}

	if len(tests) == 0 {
		s.log.Info().Msg("No published tests to prewarm")
		return nil
	}

	warmed := 0
	for i := range tests {
		if _, err := s.WarmTestCache(ctx, &tests[i]); err != nil {
			s.log.Warn().
				Err(err).
				Str("test_id", tests[i].ID.String()).
				Msg("Failed to warm test, skipping")
			continue
		}
		warmed++
	}

	s.log.Info().
		Int("warmed", warmed).
		Int("total", len(tests)).
		Msg("Prewarming complete")
	return nil
}

// GetTestPayload retrieves the cached payload, falling back to PostgreSQL on
// a cache miss and self-healing the cache.
func (s *TestService) GetTestPayload(ctx context.Context, testID uuid.UUID) (*model.TestPayload, error) {
	data, err := s.rdb.Get(ctx, config.CacheKey.TestPayloadKey(testID)).Bytes()
	if err == nil {
		var payload model.TestPayload
		if err := json.Unmarshal(data, &payload); err != nil {
			return nil, fmt.Errorf("unmarshal payload: %w", err)
		}
		return &payload, nil
	}
	if !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("get payload: %w", err)
	}

	// Cache miss (evicted or flushed). Rebuild from the source of truth.
	test, err := s.testRepo.GetByID(ctx, testID)
	if err != nil {
		return nil, fmt.Errorf("test not found in cache or db: %w", err)
	}
	if test.Status != model.TestStatusPublished {
		return nil, ErrTestNotAvailable
	}
	return s.WarmTestCache(ctx, test)
}
