package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/prepstack/testcenter-backend/internal/config"
	"github.com/prepstack/testcenter-backend/internal/model"
)

// ErrSessionExpired is returned for answer writes arriving after the session
// deadline plus the configured grace window.
var ErrSessionExpired = errors.New("session deadline has passed")

// saveAnswerScript applies an answer only if its sequence number is higher
// than the last applied one for that question. KEYS[1] is the answers hash,
// KEYS[2] the per-question sequence hash; ARGV are question id, seq, and the
// selected option id ("" for a cleared answer). Returns 1 when applied,
// 0 when the write is stale.
var saveAnswerScript = redis.NewScript(`
local cur = redis.call('HGET', KEYS[2], ARGV[1])
if cur and tonumber(cur) >= tonumber(ARGV[2]) then
	return 0
end
redis.call('HSET', KEYS[1], ARGV[1], ARGV[3])
redis.call('HSET', KEYS[2], ARGV[1], ARGV[2])
return 1
`)

// AnswerService is the hot path: one Redis round trip per answer write, with
// durable persistence deferred to a queue consumer.
type AnswerService struct {
	rdb     *redis.Client
	monitor *MonitorService
	grace   time.Duration
	log     zerolog.Logger
}

// NewAnswerService creates a new AnswerService.
func NewAnswerService(rdb *redis.Client, monitor *MonitorService, grace time.Duration, log zerolog.Logger) *AnswerService {
	return &AnswerService{
		rdb:     rdb,
		monitor: monitor,
		grace:   grace,
		log:     log.With().Str("component", "answer_service").Logger(),
	}
}

// queuedAnswer is the shape pushed onto the persistence queue.
type queuedAnswer struct {
	SessionID        string `json:"session_id"`
	QuestionID       string `json:"question_id"`
	SelectedOptionID string `json:"selected_option_id"`
	Seq              int64  `json:"seq"`
	SavedAt          int64  `json:"saved_at"`
}

// Save records an answer for an ACTIVE session. Writes with a sequence number
// at or below the last applied one are acknowledged but not applied, so
// out-of-order delivery can never overwrite a newer answer. Returns whether
// the write was applied.
func (s *AnswerService) Save(ctx context.Context, session *model.TestSession, req *model.SubmitAnswerRequest) (bool, error) {
	now := time.Now()
	if now.After(session.ExpiresAt.Add(s.grace)) {
		return false, ErrSessionExpired
	}

	value := ""
	if req.SelectedOptionID != nil {
		value = req.SelectedOptionID.String()
	}

	applied, err := saveAnswerScript.Run(ctx, s.rdb,
		[]string{
			config.CacheKey.SessionAnswersKey(session.ID),
			config.CacheKey.SessionAnswerSeqKey(session.ID),
		},
		req.QuestionID.String(), req.Seq, value,
	).Int()
	if err != nil {
		return false, fmt.Errorf("save answer: %w", err)
	}

	if applied == 0 {
		s.log.Debug().
			Str("session_id", session.ID.String()).
			Str("question_id", req.QuestionID.String()).
			Int64("seq", req.Seq).
			Msg("Stale answer write ignored")
		return false, nil
	}

	queued, _ := json.Marshal(queuedAnswer{
		SessionID:        session.ID.String(),
		QuestionID:       req.QuestionID.String(),
		SelectedOptionID: value,
		Seq:              req.Seq,
		SavedAt:          now.Unix(),
	})
	if err := s.rdb.RPush(ctx, config.WorkerKey.PersistAnswersQueue, queued).Err(); err != nil {
		// The answer is already in the session hash; submission grades from
		// there, so losing the queue entry costs durability, not correctness.
		s.log.Error().Err(err).
			Str("session_id", session.ID.String()).
			Msg("Failed to enqueue answer for persistence")
	}

	s.monitor.Publish(ctx, session.TestID, MonitorEvent{
		Type:       "answer",
		SessionID:  session.ID.String(),
		AttemptID:  session.AttemptID.String(),
		LearnerID:  session.LearnerID,
		QuestionID: req.QuestionID.String(),
		At:         now,
	})

	return true, nil
}
