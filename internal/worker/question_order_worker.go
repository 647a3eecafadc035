package worker

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/prepstack/testcenter-backend/internal/config"
)

const (
	QuestionOrderBatchSize    = 50
	QuestionOrderBatchTimeout = 2 * time.Second
	QuestionOrderPollTimeout  = 1 * time.Second
)

// QuestionOrderWorker persists per-session question shuffles onto the
// session rows, so a session survives a Redis restart with its order intact.
type QuestionOrderWorker struct {
	pool *pgxpool.Pool
	rdb  *redis.Client
	log  zerolog.Logger
}

// NewQuestionOrderWorker creates a new QuestionOrderWorker.
func NewQuestionOrderWorker(pool *pgxpool.Pool, rdb *redis.Client, log zerolog.Logger) *QuestionOrderWorker {
	return &QuestionOrderWorker{
		pool: pool,
		rdb:  rdb,
		log:  log.With().Str("component", "question_order_worker").Logger(),
	}
}

type questionOrderPayload struct {
	SessionID string   `json:"session_id"`
	Order     []string `json:"order"`
}

func (w *QuestionOrderWorker) Start(ctx context.Context) {
	w.log.Info().Msg("Worker started")

	batch := make([]*questionOrderPayload, 0, QuestionOrderBatchSize)
	lastFlush := time.Now()

	for {
		if len(batch) > 0 &&
			(len(batch) >= QuestionOrderBatchSize || time.Since(lastFlush) >= QuestionOrderBatchTimeout) {

			w.flushSafe(ctx, batch)
			batch = batch[:0]
			lastFlush = time.Now()
		}

		select {
		case <-ctx.Done():
			w.log.Info().Msg("Shutdown requested. Flushing remaining batch...")
			w.flushSafe(context.Background(), batch)
			return

		default:
			item, err := w.rdb.BLPop(ctx, QuestionOrderPollTimeout, config.WorkerKey.PersistQuestionOrderQueue).Result()
			if err != nil {
				if err != redis.Nil && ctx.Err() == nil {
					w.log.Error().Err(err).Msg("BLPop error")
				}
				continue
			}

			if len(item) < 2 {
				continue
			}

			var p questionOrderPayload
			if err := json.Unmarshal([]byte(item[1]), &p); err != nil {
				w.log.Error().Err(err).Msg("Invalid JSON payload")
				continue
			}

			batch = append(batch, &p)
		}
	}
}

func (w *QuestionOrderWorker) flushSafe(ctx context.Context, batch []*questionOrderPayload) {
	if len(batch) == 0 {
		return
	}

	if err := w.bulkUpdate(ctx, batch); err != nil {
		w.log.Warn().Err(err).Msg("Bulk question order update failed, using fallback")

		for _, p := range batch {
			if err := w.persistSingle(ctx, p); err != nil {
				w.log.Error().Err(err).
					Str("session_id", p.SessionID).
					Msg("Single update failed, requeueing")
				raw, _ := json.Marshal(p)
				w.rdb.RPush(ctx, config.WorkerKey.PersistQuestionOrderQueue, raw)
			}
		}
	}
}

func (w *QuestionOrderWorker) bulkUpdate(ctx context.Context, batch []*questionOrderPayload) error {
	n := len(batch)

	sessionIDs := make([]uuid.UUID, 0, n)
	ordersBytes := make([][]byte, 0, n)

	for _, p := range batch {
		sID, err := uuid.Parse(p.SessionID)
		if err != nil {
			return err
		}

		ob, _ := json.Marshal(p.Order)

		sessionIDs = append(sessionIDs, sID)
		ordersBytes = append(ordersBytes, ob)
	}

	query := `
		UPDATE test_sessions AS s
		SET question_order = t.qo
		FROM (
			SELECT u.session_id, u.qo
			FROM UNNEST(
				$1::uuid[],
				$2::jsonb[]
			) AS u (session_id, qo)
		) AS t
		WHERE s.id = t.session_id
	`

	_, err := w.pool.Exec(ctx, query, sessionIDs, ordersBytes)
	return err
}

func (w *QuestionOrderWorker) persistSingle(ctx context.Context, p *questionOrderPayload) error {
	sID, err := uuid.Parse(p.SessionID)
	if err != nil {
		return err
	}

	ob, _ := json.Marshal(p.Order)

	_, err = w.pool.Exec(ctx,
		`UPDATE test_sessions SET question_order = $1 WHERE id = $2`,
		ob, sID,
	)

	return err
}
