package service

import (
	"context"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"math/rand"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/prepstack/testcenter-backend/internal/config"
	"github.com/prepstack/testcenter-backend/internal/model"
	"github.com/prepstack/testcenter-backend/internal/repository"
)

// QuestionService assembles the paper a session sees: the sanitized test
// payload reordered by the session's shuffle, with options shuffled
// deterministically per (session, question) so repeated fetches agree.
type QuestionService struct {
	testService *TestService
	sessionRepo *repository.SessionRepository
	rdb         *redis.Client
	log         zerolog.Logger
}

// NewQuestionService creates a new QuestionService.
func NewQuestionService(
	testService *TestService,
	sessionRepo *repository.SessionRepository,
	rdb *redis.Client,
	log zerolog.Logger,
) *QuestionService {
	return &QuestionService{
		testService: testService,
		sessionRepo: sessionRepo,
		rdb:         rdb,
		log:         log.With().Str("component", "question_service").Logger(),
	}
}

// GetSessionPaper returns the questions for a session in the session's own
// order. Correct answers never leave the server.
func (s *QuestionService) GetSessionPaper(ctx context.Context, session *model.TestSession) ([]model.QuestionForLearner, error) {
	payload, err := s.testService.GetTestPayload(ctx, session.TestID)
	if err != nil {
		return nil, err
	}

	order, err := s.questionOrder(ctx, session)
	if err != nil {
		s.log.Warn().Err(err).
			Str("session_id", session.ID.String()).
			Msg("No session question order, falling back to authoring order")
		order = nil
	}

	questions := applyOrder(payload.Questions, order)

	out := make([]model.QuestionForLearner, len(questions))
	for i, q := range questions {
		shuffled := make([]model.Option, len(q.Options))
		copy(shuffled, q.Options)
		shuffleOptions(session.ID, q.ID, shuffled)
		q.Options = shuffled
		q.OrderNum = i + 1
		out[i] = q
	}
	return out, nil
}

// questionOrder resolves the session's question order: Redis first, then the
// persisted copy on the session row. A Redis miss with a persisted order
// self-heals the cache.
func (s *QuestionService) questionOrder(ctx context.Context, session *model.TestSession) ([]uuid.UUID, error) {
	raw, err := s.rdb.Get(ctx, config.CacheKey.SessionQuestionOrderKey(session.ID)).Bytes()
	if err == nil {
		return parseOrder(raw)
	}
	if err != redis.Nil {
		return nil, fmt.Errorf("get cached order: %w", err)
	}

	raw, err = s.sessionRepo.GetQuestionOrder(ctx, session.ID)
	if err != nil {
		return nil, fmt.Errorf("get persisted order: %w", err)
	}
	if len(raw) == 0 {
		return nil, fmt.Errorf("no order persisted for session %s", session.ID)
	}

	if cacheErr := s.rdb.Set(ctx, config.CacheKey.SessionQuestionOrderKey(session.ID), raw, 0).Err(); cacheErr != nil {
		s.log.Warn().Err(cacheErr).
			Str("session_id", session.ID.String()).
			Msg("Failed to re-cache question order")
	}
	return parseOrder(raw)
}

func parseOrder(raw []byte) ([]uuid.UUID, error) {
	var ids []string
	if err := json.Unmarshal(raw, &ids); err != nil {
		return nil, fmt.Errorf("unmarshal order: %w", err)
	}
	order := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		parsed, err := uuid.Parse(id)
		if err != nil {
			return nil, fmt.Errorf("parse order entry: %w", err)
		}
		order = append(order, parsed)
	}
	return order, nil
}

// applyOrder reorders questions by the given id sequence. Ids missing from
// the payload are skipped; payload questions missing from the order are
// appended in authoring order so nothing is ever lost.
func applyOrder(questions []model.QuestionForLearner, order []uuid.UUID) []model.QuestionForLearner {
	if len(order) == 0 {
		return questions
	}

	byID := make(map[uuid.UUID]model.QuestionForLearner, len(questions))
	for _, q := range questions {
		byID[q.ID] = q
	}

	out := make([]model.QuestionForLearner, 0, len(questions))
	seen := make(map[uuid.UUID]bool, len(order))
	for _, id := range order {
		if q, ok := byID[id]; ok {
			out = append(out, q)
			seen[id] = true
		}
	}
	for _, q := range questions {
		if !seen[q.ID] {
			out = append(out, q)
		}
	}
	return out
}

// shuffleOptions permutes options in place with a seed derived from the
// session and question ids, so the same session always sees the same layout
// without storing per-question permutations anywhere.
func shuffleOptions(sessionID, questionID uuid.UUID, options []model.Option) {
	h := fnv.New64a()
	h.Write(sessionID[:])
	h.Write(questionID[:])
	rng := rand.New(rand.NewSource(int64(h.Sum64())))
	rng.Shuffle(len(options), func(i, j int) {
		options[i], options[j] = options[j], options[i]
	})
}
