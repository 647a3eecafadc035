package service

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/prepstack/testcenter-backend/internal/config"
)

// MonitorEvent is a live activity event for a test, fanned out to monitor
// websocket subscribers through Redis pub/sub.
type MonitorEvent struct {
	Type       string    `json:"type"`
	SessionID  string    `json:"session_id"`
	AttemptID  string    `json:"attempt_id"`
	LearnerID  int       `json:"learner_id"`
	QuestionID string    `json:"question_id,omitempty"`
	Reason     string    `json:"reason,omitempty"`
	At         time.Time `json:"at"`
}

// MonitorService publishes and subscribes per-test activity channels.
type MonitorService struct {
	rdb *redis.Client
	log zerolog.Logger
}

// NewMonitorService creates a new MonitorService.
func NewMonitorService(rdb *redis.Client, log zerolog.Logger) *MonitorService {
	return &MonitorService{
		rdb: rdb,
		log: log.With().Str("component", "monitor_service").Logger(),
	}
}

// Publish sends an event to the test's monitor channel. Best effort: monitor
// delivery never blocks or fails the operation that produced the event.
func (s *MonitorService) Publish(ctx context.Context, testID uuid.UUID, event MonitorEvent) {
	payload, err := json.Marshal(event)
	if err != nil {
		s.log.Error().Err(err).Msg("Failed to marshal monitor event")
		return
	}
	if err := s.rdb.Publish(ctx, config.CacheKey.TestMonitorChannel(testID), payload).Err(); err != nil {
		s.log.Warn().Err(err).
			Str("test_id", testID.String()).
			Msg("Failed to publish monitor event")
	}
}

// Subscribe opens a subscription to the test's monitor channel. The caller
// owns the returned PubSub and must Close it.
func (s *MonitorService) Subscribe(ctx context.Context, testID uuid.UUID) *redis.PubSub {
	return s.rdb.Subscribe(ctx, config.CacheKey.TestMonitorChannel(testID))
}
