package worker

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/prepstack/testcenter-backend/internal/config"
	"github.com/prepstack/testcenter-backend/internal/model"
	"github.com/prepstack/testcenter-backend/internal/repository"
)

const (
	AnswerBatchSize    = 50
	AnswerBatchTimeout = 2 * time.Second
	AnswerPollTimeout  = 1 * time.Second
)

// AnswerWorker consumes persist_answers_queue and writes answers to
// PostgreSQL in batches. Redis holds the authoritative copy during the
// session; this is the durability tail.
type AnswerWorker struct {
	answerRepo *repository.AnswerRepository
	rdb        *redis.Client
	log        zerolog.Logger
}

// NewAnswerWorker creates a new AnswerWorker.
func NewAnswerWorker(answerRepo *repository.AnswerRepository, rdb *redis.Client, log zerolog.Logger) *AnswerWorker {
	return &AnswerWorker{
		answerRepo: answerRepo,
		rdb:        rdb,
		log:        log.With().Str("component", "answer_worker").Logger(),
	}
}

type answerPayload struct {
	SessionID        string `json:"session_id"`
	QuestionID       string `json:"question_id"`
	SelectedOptionID string `json:"selected_option_id"`
	Seq              int64  `json:"seq"`
	SavedAt          int64  `json:"saved_at"`
}

// Start begins the worker loop. Call in a goroutine.
func (w *AnswerWorker) Start(ctx context.Context) {
	w.log.Info().Msg("Worker started")

	batch := make([]*answerPayload, 0, AnswerBatchSize)
	lastFlush := time.Now()

	for {
		if len(batch) > 0 &&
			(len(batch) >= AnswerBatchSize || time.Since(lastFlush) >= AnswerBatchTimeout) {

			w.flushSafe(ctx, batch)
			batch = batch[:0]
			lastFlush = time.Now()
		}

		select {
		case <-ctx.Done():
			w.log.Info().Msg("Shutdown requested. Flushing remaining batch...")
			w.flushSafe(context.Background(), batch)
			w.drain(context.Background())
			w.log.Info().Msg("Worker stopped")
			return

		default:
			item, err := w.rdb.BLPop(ctx, AnswerPollTimeout, config.WorkerKey.PersistAnswersQueue).Result()
			if err != nil {
				if err != redis.Nil && ctx.Err() == nil {
					w.log.Error().Err(err).Msg("BLPop error")
				}
				continue
			}

			if len(item) < 2 {
				continue
			}

			var p answerPayload
			if err := json.Unmarshal([]byte(item[1]), &p); err != nil {
				w.log.Error().Err(err).Msg("Invalid JSON payload")
				continue
			}

			batch = append(batch, &p)
		}
	}
}

// flushSafe bulk-writes a batch, falling back to single writes and finally a
// requeue so nothing is silently dropped.
func (w *AnswerWorker) flushSafe(ctx context.Context, batch []*answerPayload) {
	if len(batch) == 0 {
		return
	}

	answers, bad := w.toAnswers(batch)
	if bad > 0 {
		w.log.Warn().Int("count", bad).Msg("Dropped malformed queue entries")
	}

	if err := w.answerRepo.BulkUpsert(ctx, answers); err != nil {
		w.log.Warn().Err(err).Msg("Bulk answer upsert failed, using fallback")

		for i := range answers {
			if err := w.answerRepo.Upsert(ctx, &answers[i]); err != nil {
				w.log.Error().Err(err).
					Str("session_id", answers[i].SessionID.String()).
					Msg("Single upsert failed, requeueing")
				raw, _ := json.Marshal(answerPayload{
					SessionID:        answers[i].SessionID.String(),
					QuestionID:       answers[i].QuestionID.String(),
					SelectedOptionID: optionString(answers[i].SelectedOptionID),
					Seq:              answers[i].Seq,
				})
				w.rdb.RPush(ctx, config.WorkerKey.PersistAnswersQueue, raw)
			}
		}
	}
}

// toAnswers parses a batch and collapses duplicate (session, question) keys
// to the highest seq; the bulk UNNEST statement cannot update the same row
// twice.
func (w *AnswerWorker) toAnswers(batch []*answerPayload) ([]model.SessionAnswer, int) {
	type key struct {
		session  uuid.UUID
		question uuid.UUID
	}
	latest := make(map[key]model.SessionAnswer, len(batch))
	order := make([]key, 0, len(batch))
	bad := 0

	for _, p := range batch {
		sessionID, err := uuid.Parse(p.SessionID)
		if err != nil {
			bad++
			continue
		}
		questionID, err := uuid.Parse(p.QuestionID)
		if err != nil {
			bad++
			continue
		}
		var optionID *uuid.UUID
		if p.SelectedOptionID != "" {
			parsed, err := uuid.Parse(p.SelectedOptionID)
			if err != nil {
				bad++
				continue
			}
			optionID = &parsed
		}

		k := key{sessionID, questionID}
		if prev, ok := latest[k]; ok {
			if p.Seq > prev.Seq {
				latest[k] = model.SessionAnswer{
					SessionID:        sessionID,
					QuestionID:       questionID,
					SelectedOptionID: optionID,
					Seq:              p.Seq,
				}
			}
			continue
		}
		order = append(order, k)
		latest[k] = model.SessionAnswer{
			SessionID:        sessionID,
			QuestionID:       questionID,
			SelectedOptionID: optionID,
			Seq:              p.Seq,
		}
	}

	answers := make([]model.SessionAnswer, 0, len(order))
	for _, k := range order {
		answers = append(answers, latest[k])
	}
	return answers, bad
}

// drain processes everything left in the queue before shutdown.
func (w *AnswerWorker) drain(ctx context.Context) {
	drained := 0
	for {
		item, err := w.rdb.LPop(ctx, config.WorkerKey.PersistAnswersQueue).Result()
		if err != nil {
			break
		}

		var p answerPayload
		if err := json.Unmarshal([]byte(item), &p); err != nil {
			w.log.Error().Err(err).Msg("Drain unmarshal error")
			continue
		}

		answers, _ := w.toAnswers([]*answerPayload{&p})
		if len(answers) == 0 {
			continue
		}
		if err := w.answerRepo.Upsert(ctx, &answers[0]); err != nil {
			w.log.Error().Err(err).Msg("Drain persist error")
			w.rdb.RPush(ctx, config.WorkerKey.PersistAnswersQueue, item)
			break
		}
		drained++
	}

	if drained > 0 {
		w.log.Info().Int("count", drained).Msg("Drained remaining items")
	}
}

func optionString(id *uuid.UUID) string {
	if id == nil {
		return ""
	}
	return id.String()
}
