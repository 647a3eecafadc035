package attempt

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/prepstack/testcenter-backend/internal/model"
)

// SyncFailure describes one answer push that did not land. Failures are
// observable through the hook but are never retried automatically and never
// roll back the local record.
type SyncFailure struct {
	QuestionID uuid.UUID
	Seq        int64
	Err        error
}

// AnswerSynchronizer pushes answer state to the backend, fire-and-forget.
// The local record is updated synchronously before any network work, so the
// UI always reflects the latest choice. Every push carries the full desired
// state plus a per-question monotonic sequence number; the backend discards
// lower sequences, so out-of-order delivery resolves to last-write-wins.
type AnswerSynchronizer struct {
	backend   Backend
	record    *AnswerRecord
	testID    uuid.UUID
	sessionID uuid.UUID
	log       zerolog.Logger

	mu       sync.Mutex
	seqs     map[uuid.UUID]int64 // last issued seq per question
	inflight map[uuid.UUID]int64 // highest seq currently on the wire

	onFailure func(SyncFailure)

	wg sync.WaitGroup
}

// NewAnswerSynchronizer creates a synchronizer bound to one session.
// onFailure may be nil.
func NewAnswerSynchronizer(
	backend Backend,
	record *AnswerRecord,
	testID, sessionID uuid.UUID,
	onFailure func(SyncFailure),
	log zerolog.Logger,
) *AnswerSynchronizer {
	return &AnswerSynchronizer{
		backend:   backend,
		record:    record,
		testID:    testID,
		sessionID: sessionID,
		log:       log.With().Str("component", "answer_sync").Logger(),
		seqs:      make(map[uuid.UUID]int64),
		inflight:  make(map[uuid.UUID]int64),
		onFailure: onFailure,
	}
}

// Select records an option choice locally and pushes it in the background.
func (s *AnswerSynchronizer) Select(questionID, optionID uuid.UUID) {
	s.record.Set(questionID, &optionID)
	s.push(questionID, &optionID)
}

// Clear removes the selection locally and pushes the explicit null.
func (s *AnswerSynchronizer) Clear(questionID uuid.UUID) {
	s.record.Set(questionID, nil)
	s.push(questionID, nil)
}

func (s *AnswerSynchronizer) push(questionID uuid.UUID, optionID *uuid.UUID) {
	s.mu.Lock()
	s.seqs[questionID]++
	seq := s.seqs[questionID]
	s.inflight[questionID] = seq
	s.mu.Unlock()

	req := model.SubmitAnswerRequest{
		SessionID:        s.sessionID,
		QuestionID:       questionID,
		SelectedOptionID: optionID,
		Seq:              seq,
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		// Deliberately not tied to any UI lifetime: navigating away must not
		// cancel an outstanding write.
		_, err := s.backend.SaveAnswer(context.Background(), s.testID, req)

		s.mu.Lock()
		stale := s.seqs[questionID] > seq
		if s.inflight[questionID] == seq {
			delete(s.inflight, questionID)
		}
		s.mu.Unlock()

		if err == nil || stale {
			// A failure for a superseded write is moot; the newer push
			// carries the state that matters.
			return
		}

		s.log.Warn().Err(err).
			Str("question_id", questionID.String()).
			Int64("seq", seq).
			Msg("Answer push failed")
		if s.onFailure != nil {
			s.onFailure(SyncFailure{QuestionID: questionID, Seq: seq, Err: err})
		}
	}()
}

// Record returns the local answer record the synchronizer writes through.
func (s *AnswerSynchronizer) Record() *AnswerRecord {
	return s.record
}

// InFlight reports whether a push for the question is still on the wire.
func (s *AnswerSynchronizer) InFlight(questionID uuid.UUID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.inflight[questionID]
	return ok
}

// Wait blocks until all outstanding pushes have completed. Used by tests and
// by shutdown paths that want writes flushed.
func (s *AnswerSynchronizer) Wait() {
	s.wg.Wait()
}
