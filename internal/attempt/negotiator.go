package attempt

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/prepstack/testcenter-backend/internal/model"
)

// Decision is the user's answer to "a session already exists".
type Decision int

const (
	// DecisionResume adopts the existing session with its original deadline.
	DecisionResume Decision = iota
	// DecisionAbandon terminates the existing session server-side and
	// starts fresh.
	DecisionAbandon
)

// Decider presents the resume/abandon choice. It blocks until the user
// decides; both outcomes are user-visible and irreversible, so there is no
// silent default.
type Decider func(info *model.ActiveSessionInfo) (Decision, error)

// SessionNegotiator discovers whether a live session already exists for a
// test and resolves it into exactly one session to attach to.
type SessionNegotiator struct {
	backend Backend
	decider Decider
	store   *HandleStore
	log     zerolog.Logger
}

// NewSessionNegotiator creates a negotiator. store may be nil when local
// persistence is not wanted (tests).
func NewSessionNegotiator(backend Backend, decider Decider, store *HandleStore, log zerolog.Logger) *SessionNegotiator {
	return &SessionNegotiator{
		backend: backend,
		decider: decider,
		store:   store,
		log:     log.With().Str("component", "negotiator").Logger(),
	}
}

// Negotiate resolves to a session for the test. resumed reports whether an
// existing session was adopted rather than a new one started.
//
// When an active session exists the decider chooses: resume adopts the
// existing identity and its original deadline; abandon must succeed
// server-side before a new session is requested; proceeding past a failed
// abandon would create two live sessions.
func (n *SessionNegotiator) Negotiate(ctx context.Context, testID uuid.UUID) (session *model.TestSession, resumed bool, err error) {
	info, err := n.backend.ActiveSession(ctx, testID)
	if err != nil {
		return nil, false, fmt.Errorf("check active session: %w", err)
	}

	if !info.HasActiveSession {
		return n.startFresh(ctx, testID)
	}

	decision, err := n.decider(info)
	if err != nil {
		return nil, false, fmt.Errorf("session decision: %w", err)
	}

	switch decision {
	case DecisionResume:
		session = &model.TestSession{
			ID:        *info.SessionID,
			TestID:    testID,
			AttemptID: *info.AttemptID,
			StartedAt: *info.StartedAt,
			ExpiresAt: *info.ExpiresAt,
			Status:    model.SessionStatusActive,
		}
		n.persist(session)
		n.log.Info().
			Str("session_id", session.ID.String()).
			Time("expires_at", session.ExpiresAt).
			Msg("Resumed existing session")
		return session, true, nil

	case DecisionAbandon:
		if _, err := n.backend.AbandonSession(ctx, testID); err != nil {
			// Do not fall through to start: that would race the old
			// session into a conflict.
			return nil, false, fmt.Errorf("abandon session: %w", err)
		}
		n.log.Info().Str("test_id", testID.String()).Msg("Abandoned stale session")
		return n.startFresh(ctx, testID)

	default:
		return nil, false, fmt.Errorf("unknown session decision %d", decision)
	}
}

func (n *SessionNegotiator) startFresh(ctx context.Context, testID uuid.UUID) (*model.TestSession, bool, error) {
	session, err := n.backend.StartSession(ctx, testID)
	if err != nil {
		return nil, false, fmt.Errorf("start session: %w", err)
	}
	n.persist(session)
	n.log.Info().
		Str("session_id", session.ID.String()).
		Time("expires_at", session.ExpiresAt).
		Msg("Started new session")
	return session, false, nil
}

func (n *SessionNegotiator) persist(session *model.TestSession) {
	if n.store == nil {
		return
	}
	err := n.store.Save(&SessionHandle{
		TestID:    session.TestID,
		SessionID: session.ID,
		AttemptID: session.AttemptID,
		StartedAt: session.StartedAt,
		ExpiresAt: session.ExpiresAt,
	})
	if err != nil {
		n.log.Warn().Err(err).Msg("Failed to persist session handle")
	}
}
