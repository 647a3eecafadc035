package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/prepstack/testcenter-backend/internal/config"
	"github.com/prepstack/testcenter-backend/internal/model"
	"github.com/prepstack/testcenter-backend/internal/repository"
)

// SubmissionService finalizes sessions. Finalization happens exactly once per
// session regardless of how many submitters race for it: the UPDATE guarded
// on status = 'ACTIVE' is the claim, and losers read back the winner's stored
// result.
type SubmissionService struct {
	sessionRepo  *repository.SessionRepository
	answerRepo   *repository.AnswerRepository
	testRepo     *repository.TestRepository
	questionRepo *repository.QuestionRepository
	rdb          *redis.Client
	monitor      *MonitorService
	log          zerolog.Logger
}

// NewSubmissionService creates a new SubmissionService.
func NewSubmissionService(
	sessionRepo *repository.SessionRepository,
	answerRepo *repository.AnswerRepository,
	testRepo *repository.TestRepository,
	questionRepo *repository.QuestionRepository,
	rdb *redis.Client,
	monitor *MonitorService,
	log zerolog.Logger,
) *SubmissionService {
	return &SubmissionService{
		sessionRepo:  sessionRepo,
		answerRepo:   answerRepo,
		testRepo:     testRepo,
		questionRepo: questionRepo,
		rdb:          rdb,
		monitor:      monitor,
		log:          log.With().Str("component", "submission_service").Logger(),
	}
}

// Submit finalizes a session on the learner's request. Calling it again after
// the session is finalized returns the stored result, so a client that lost
// the response to a network fault can simply retry.
func (s *SubmissionService) Submit(ctx context.Context, session *model.TestSession) (*model.AttemptResult, error) {
	if session.Status != model.SessionStatusActive {
		return s.sessionRepo.GetResult(ctx, session.ID)
	}

	reason := model.SubmitReasonManual
	if time.Now().After(session.ExpiresAt) {
		reason = model.SubmitReasonTimeout
	}
	return s.finalize(ctx, session, model.SessionStatusCompleted, reason)
}

// Abandon discards the active session for a (learner, test) pair so a new
// attempt can start. The abandoned attempt is still graded and counted.
func (s *SubmissionService) Abandon(ctx context.Context, testID uuid.UUID, learnerID int) (*model.AttemptResult, error) {
	session, err := s.sessionRepo.GetActive(ctx, testID, learnerID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNoActiveSession
		}
		return nil, fmt.Errorf("get active session: %w", err)
	}
	return s.finalize(ctx, session, model.SessionStatusAbandoned, model.SubmitReasonAbandon)
}

// FinalizeExpired is the sweeper entry point: auto-submits a session whose
// deadline passed. Losing the claim to a concurrent learner submit is fine.
func (s *SubmissionService) FinalizeExpired(ctx context.Context, sessionID uuid.UUID) error {
	session, err := s.sessionRepo.GetByID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil
		}
		return fmt.Errorf("get session: %w", err)
	}
	if session.Status != model.SessionStatusActive {
		return nil
	}

	_, err = s.finalize(ctx, session, model.SessionStatusCompleted, model.SubmitReasonTimeout)
	return err
}

// finalize grades the session from its saved answers and claims the
// transition out of ACTIVE. Exactly one caller wins; the rest get the stored
// result.
func (s *SubmissionService) finalize(ctx context.Context, session *model.TestSession, status model.SessionStatus, reason model.SubmitReason) (*model.AttemptResult, error) {
	test, err := s.testRepo.GetByID(ctx, session.TestID)
	if err != nil {
		return nil, fmt.Errorf("get test: %w", err)
	}
	questions, err := s.questionRepo.ListByTest(ctx, session.TestID)
	if err != nil {
		return nil, fmt.Errorf("list questions: %w", err)
	}
	answers, err := s.loadAnswers(ctx, session.ID)
	if err != nil {
		return nil, fmt.Errorf("load answers: %w", err)
	}

	now := time.Now()
	result := Grade(test, questions, answers, session, now, reason)

	claimed, err := s.sessionRepo.Finalize(ctx, session.ID, status, result)
	if err != nil {
		return nil, fmt.Errorf("finalize session: %w", err)
	}
	if !claimed {
		// A concurrent submitter won the race; its result is authoritative.
		return s.sessionRepo.GetResult(ctx, session.ID)
	}

	s.cleanup(ctx, session.ID)

	s.monitor.Publish(ctx, session.TestID, MonitorEvent{
		Type:      "finalized",
		SessionID: session.ID.String(),
		AttemptID: session.AttemptID.String(),
		LearnerID: session.LearnerID,
		Reason:    string(reason),
		At:        now,
	})

	s.log.Info().
		Str("session_id", session.ID.String()).
		Str("status", string(status)).
		Str("reason", string(reason)).
		Float64("marks", result.MarksObtained).
		Bool("passed", result.Passed).
		Msg("Session finalized")

	return result, nil
}

// loadAnswers reads the session's answers from the Redis hash, falling back
// to the persisted rows when the hash is gone (Redis restart after the
// persistence queue drained).
func (s *SubmissionService) loadAnswers(ctx context.Context, sessionID uuid.UUID) (map[uuid.UUID]*uuid.UUID, error) {
	raw, err := s.rdb.HGetAll(ctx, config.CacheKey.SessionAnswersKey(sessionID)).Result()
	if err != nil && err != redis.Nil {
		return nil, fmt.Errorf("read answer hash: %w", err)
	}
	if len(raw) > 0 {
		answers := make(map[uuid.UUID]*uuid.UUID, len(raw))
		for qid, oid := range raw {
			questionID, err := uuid.Parse(qid)
			if err != nil {
				return nil, fmt.Errorf("parse question id: %w", err)
			}
			if oid == "" {
				answers[questionID] = nil
				continue
			}
			optionID, err := uuid.Parse(oid)
			if err != nil {
				return nil, fmt.Errorf("parse option id: %w", err)
			}
			answers[questionID] = &optionID
		}
		return answers, nil
	}
	return s.answerRepo.ListBySession(ctx, sessionID)
}

// cleanup drops the session's Redis state after finalization. Best effort;
// stale keys are harmless once the session row is terminal.
func (s *SubmissionService) cleanup(ctx context.Context, sessionID uuid.UUID) {
	pipe := s.rdb.Pipeline()
	pipe.Del(ctx,
		config.CacheKey.SessionAnswersKey(sessionID),
		config.CacheKey.SessionAnswerSeqKey(sessionID),
		config.CacheKey.SessionQuestionOrderKey(sessionID),
	)
	pipe.ZRem(ctx, config.CacheKey.SessionDeadlinesKey(), sessionID.String())
	if _, err := pipe.Exec(ctx); err != nil {
		s.log.Warn().Err(err).
			Str("session_id", sessionID.String()).
			Msg("Failed to clean up session keys")
	}
}

// Grade scores a finished attempt. Correct answers earn the question's marks,
// wrong answers cost its negative marks when the test penalizes them, and
// unanswered questions score zero. Time taken is capped at the session
// duration so late auto-submits do not inflate it.
func Grade(
	test *model.Test,
	questions []model.Question,
	answers map[uuid.UUID]*uuid.UUID,
	session *model.TestSession,
	finishedAt time.Time,
	reason model.SubmitReason,
) *model.AttemptResult {
	var obtained, total float64
	var correct, wrong, unanswered int

	for _, q := range questions {
		total += q.Marks
		selected, ok := answers[q.ID]
		if !ok || selected == nil {
			unanswered++
			continue
		}
		if *selected == q.CorrectOptionID {
			correct++
			obtained += q.Marks
		} else {
			wrong++
			if test.NegativeMarking {
				penalty := q.NegativeMarks
				if penalty == 0 {
					penalty = q.Marks * test.NegativePercent / 100
				}
				obtained -= penalty
			}
		}
	}

	percentage := 0.0
	if total > 0 {
		percentage = math.Round(obtained/total*10000) / 100
	}

	effectiveEnd := finishedAt
	if effectiveEnd.After(session.ExpiresAt) {
		effectiveEnd = session.ExpiresAt
	}
	taken := int(effectiveEnd.Sub(session.StartedAt).Seconds())
	if taken < 0 {
		taken = 0
	}

	return &model.AttemptResult{
		SessionID:        session.ID,
		TestID:           session.TestID,
		AttemptID:        session.AttemptID,
		AttemptNumber:    session.AttemptNumber,
		TotalMarks:       total,
		MarksObtained:    obtained,
		Percentage:       percentage,
		Passed:           obtained >= test.PassingMarks,
		CorrectCount:     correct,
		WrongCount:       wrong,
		UnansweredCount:  unanswered,
		TimeTakenSeconds: taken,
		SubmitReason:     reason,
		SubmittedAt:      finishedAt,
	}
}
