package worker

import (
	"context"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/prepstack/testcenter-backend/internal/config"
	"github.com/prepstack/testcenter-backend/internal/model"
	"github.com/prepstack/testcenter-backend/internal/service"
)

const (
	DeadlineSweepInterval   = 1 * time.Second
	DeadlineSweepBatch      = 100
	DeadlineFallbackEvery   = 60 * time.Second
	DeadlineFallbackGrace   = 10 * time.Second
	DeadlineFallbackMaxRows = 500
)

// DeadlineWorker auto-submits sessions whose deadline passed. The primary
// source is the Redis deadline sorted set, scored by absolute expiry; a
// slower PostgreSQL scan backstops it against lost set entries. The ZRem is
// the claim: whichever sweeper instance removes the member finalizes the
// session, and finalization itself is idempotent anyway.
type DeadlineWorker struct {
	submissions *service.SubmissionService
	sessionRepo ExpiredSessionLister
	rdb         *redis.Client
	log         zerolog.Logger
}

// ExpiredSessionLister is the slice of the session repository the fallback
// scan needs.
type ExpiredSessionLister interface {
	ListExpiredActive(ctx context.Context, cutoff time.Time, limit int) ([]model.TestSession, error)
}

// NewDeadlineWorker creates a new DeadlineWorker.
func NewDeadlineWorker(
	submissions *service.SubmissionService,
	sessionRepo ExpiredSessionLister,
	rdb *redis.Client,
	log zerolog.Logger,
) *DeadlineWorker {
	return &DeadlineWorker{
		submissions: submissions,
		sessionRepo: sessionRepo,
		rdb:         rdb,
		log:         log.With().Str("component", "deadline_worker").Logger(),
	}
}

// Start begins the sweep loop. Call in a goroutine.
func (w *DeadlineWorker) Start(ctx context.Context) {
	w.log.Info().Msg("Worker started")

	ticker := time.NewTicker(DeadlineSweepInterval)
	defer ticker.Stop()
	fallback := time.NewTicker(DeadlineFallbackEvery)
	defer fallback.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("Worker stopped")
			return
		case <-ticker.C:
			w.sweep(ctx)
		case <-fallback.C:
			w.sweepFallback(ctx)
		}
	}
}

// sweep pops due members from the deadline set and finalizes each.
func (w *DeadlineWorker) sweep(ctx context.Context) {
	now := strconv.FormatInt(time.Now().Unix(), 10)

	members, err := w.rdb.ZRangeByScore(ctx, config.CacheKey.SessionDeadlinesKey(), &redis.ZRangeBy{
		Min:   "-inf",
		Max:   now,
		Count: DeadlineSweepBatch,
	}).Result()
	if err != nil {
		if ctx.Err() == nil {
			w.log.Error().Err(err).Msg("Deadline set read error")
		}
		return
	}

	for _, member := range members {
		removed, err := w.rdb.ZRem(ctx, config.CacheKey.SessionDeadlinesKey(), member).Result()
		if err != nil || removed == 0 {
			// Another instance claimed it, or Redis failed; either way skip.
			continue
		}

		sessionID, err := uuid.Parse(member)
		if err != nil {
			w.log.Error().Str("member", member).Msg("Malformed deadline member")
			continue
		}

		if err := w.submissions.FinalizeExpired(ctx, sessionID); err != nil {
			w.log.Error().Err(err).
				Str("session_id", member).
				Msg("Auto-submit failed, restoring deadline entry")
			// Put it back so the next sweep retries.
			w.rdb.ZAdd(ctx, config.CacheKey.SessionDeadlinesKey(), redis.Z{
				Score:  float64(time.Now().Unix()),
				Member: member,
			})
			continue
		}

		w.log.Info().Str("session_id", member).Msg("Expired session auto-submitted")
	}
}

// sweepFallback scans PostgreSQL for expired ACTIVE sessions that the Redis
// set missed. The grace offset keeps it from racing the normal sweep.
func (w *DeadlineWorker) sweepFallback(ctx context.Context) {
	cutoff := time.Now().Add(-DeadlineFallbackGrace)

	sessions, err := w.sessionRepo.ListExpiredActive(ctx, cutoff, DeadlineFallbackMaxRows)
	if err != nil {
		if ctx.Err() == nil {
			w.log.Error().Err(err).Msg("Fallback scan error")
		}
		return
	}

	for _, s := range sessions {
		if err := w.submissions.FinalizeExpired(ctx, s.ID); err != nil {
			w.log.Error().Err(err).
				Str("session_id", s.ID.String()).
				Msg("Fallback auto-submit failed")
			continue
		}
		w.log.Warn().
			Str("session_id", s.ID.String()).
			Msg("Expired session caught by fallback scan")
	}
}
