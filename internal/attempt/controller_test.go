package attempt

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prepstack/testcenter-backend/internal/model"
)

func newTestController(backend *fakeBackend, clock *fakeClock, opts ControllerOptions) *Controller {
	return NewController(backend, alwaysDecide(DecisionResume), nil, clock.Now, opts, zerolog.Nop())
}

func activeSession(clock *fakeClock, duration time.Duration) *model.TestSession {
	now := clock.Now()
	return &model.TestSession{
		ID:        uuid.New(),
		TestID:    uuid.New(),
		AttemptID: uuid.New(),
		StartedAt: now,
		ExpiresAt: now.Add(duration),
		Status:    model.SessionStatusActive,
	}
}

func TestStartEntersActiveState(t *testing.T) {
	clock := newFakeClock(time.Now())
	session := activeSession(clock, time.Hour)
	backend := &fakeBackend{session: session, questions: paper(5)}

	ctrl := newTestController(backend, clock, ControllerOptions{})
	require.NoError(t, ctrl.Start(context.Background(), session.TestID))
	defer ctrl.Exit()

	assert.Equal(t, StateActive, ctrl.State())
	assert.Equal(t, session.ID, ctrl.Session().ID)
	assert.Equal(t, 5, ctrl.Navigator().Len())
	assert.InDelta(t, time.Hour, ctrl.Remaining(), float64(time.Second))
}

func TestManualSubmitWinsOverTimeout(t *testing.T) {
	clock := newFakeClock(time.Now())
	session := activeSession(clock, time.Hour)
	backend := &fakeBackend{session: session, questions: paper(3)}

	var autoCalls int
	ctrl := newTestController(backend, clock, ControllerOptions{
		OnAutoSubmit: func(*model.AttemptResult, error) { autoCalls++ },
	})
	require.NoError(t, ctrl.Start(context.Background(), session.TestID))

	result, err := ctrl.ConfirmManualSubmit(context.Background())
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Equal(t, StateCompleted, ctrl.State())

	// A late expiry must be a silent no-op, not a second submission.
	require.NoError(t, ctrl.TriggerTimeout(context.Background()))
	assert.Equal(t, 1, backend.submits())
	assert.Zero(t, autoCalls)
	assert.Equal(t, StateCompleted, ctrl.State())
}

func TestTimeoutWinsOverManualSubmit(t *testing.T) {
	clock := newFakeClock(time.Now())
	session := activeSession(clock, time.Hour)
	backend := &fakeBackend{session: session, questions: paper(3)}

	var autoResult *model.AttemptResult
	ctrl := newTestController(backend, clock, ControllerOptions{
		OnAutoSubmit: func(r *model.AttemptResult, err error) {
			require.NoError(t, err)
			autoResult = r
		},
	})
	require.NoError(t, ctrl.Start(context.Background(), session.TestID))

	require.NoError(t, ctrl.TriggerTimeout(context.Background()))
	require.NotNil(t, autoResult)
	assert.Equal(t, StateCompleted, ctrl.State())

	_, err := ctrl.ConfirmManualSubmit(context.Background())
	assert.ErrorIs(t, err, ErrSubmitInProgress)
	assert.Equal(t, 1, backend.submits())
}

func TestExpiredSessionAtStartAutoSubmits(t *testing.T) {
	clock := newFakeClock(time.Now())
	now := clock.Now()
	session := &model.TestSession{
		ID:        uuid.New(),
		TestID:    uuid.New(),
		AttemptID: uuid.New(),
		StartedAt: now.Add(-2 * time.Hour),
		ExpiresAt: now.Add(-time.Hour),
		Status:    model.SessionStatusActive,
	}
	backend := &fakeBackend{session: session, questions: paper(3)}

	var autoResult *model.AttemptResult
	ctrl := newTestController(backend, clock, ControllerOptions{
		OnAutoSubmit: func(r *model.AttemptResult, err error) {
			require.NoError(t, err)
			autoResult = r
		},
	})
	require.NoError(t, ctrl.Start(context.Background(), session.TestID))

	assert.Equal(t, StateCompleted, ctrl.State())
	require.NotNil(t, autoResult)
	assert.NotContains(t, backend.callLog(), "questions",
		"an already-expired session must not fetch the paper")
	assert.Equal(t, 1, backend.submits())
}

func TestSubmitFailureReturnsToActiveAndAllowsRetry(t *testing.T) {
	clock := newFakeClock(time.Now())
	session := activeSession(clock, time.Hour)
	backend := &fakeBackend{session: session, questions: paper(3)}
	backend.submitErr = errors.New("gateway timeout")

	ctrl := newTestController(backend, clock, ControllerOptions{})
	require.NoError(t, ctrl.Start(context.Background(), session.TestID))

	_, err := ctrl.ConfirmManualSubmit(context.Background())
	require.Error(t, err)
	assert.Equal(t, StateActive, ctrl.State())
	assert.Nil(t, ctrl.Result())

	// The gate reopened; a retry goes through once the backend recovers.
	backend.submitErr = nil
	result, err := ctrl.ConfirmManualSubmit(context.Background())
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Equal(t, StateCompleted, ctrl.State())
	assert.Equal(t, 2, backend.submits())
}

func TestStartFetchFailureIsTerminal(t *testing.T) {
	clock := newFakeClock(time.Now())
	session := activeSession(clock, time.Hour)
	backend := &fakeBackend{session: session, questionsErr: errors.New("boom")}

	ctrl := newTestController(backend, clock, ControllerOptions{})
	require.Error(t, ctrl.Start(context.Background(), session.TestID))
	assert.Equal(t, StateError, ctrl.State())

	err := ctrl.Start(context.Background(), session.TestID)
	require.Error(t, err, "a terminal controller must not restart")
}

func TestNegotiationFailureIsTerminal(t *testing.T) {
	clock := newFakeClock(time.Now())
	backend := &fakeBackend{activeErr: errors.New("unreachable")}

	ctrl := newTestController(backend, clock, ControllerOptions{})
	require.Error(t, ctrl.Start(context.Background(), uuid.New()))
	assert.Equal(t, StateError, ctrl.State())
}

func TestExitLeavesSessionOpen(t *testing.T) {
	clock := newFakeClock(time.Now())
	session := activeSession(clock, time.Hour)
	backend := &fakeBackend{session: session, questions: paper(3)}

	ctrl := newTestController(backend, clock, ControllerOptions{})
	require.NoError(t, ctrl.Start(context.Background(), session.TestID))

	before := len(backend.callLog())
	ctrl.Exit()

	assert.Equal(t, StateActive, ctrl.State())
	assert.Len(t, backend.callLog(), before, "exit must not contact the backend")
	assert.Zero(t, backend.submits())
}

func TestSelectionsFlowThroughController(t *testing.T) {
	clock := newFakeClock(time.Now())
	session := activeSession(clock, time.Hour)
	questions := paper(4)
	backend := &fakeBackend{session: session, questions: questions}

	ctrl := newTestController(backend, clock, ControllerOptions{})
	require.NoError(t, ctrl.Start(context.Background(), session.TestID))
	defer ctrl.Exit()

	nav := ctrl.Navigator()
	syncer := ctrl.Answers()

	q := nav.Current()
	require.NotNil(t, q)
	syncer.Select(q.ID, q.Options[1].ID)
	ctrl.Marks().Toggle(q.ID)
	syncer.Wait()

	assert.Equal(t, StateAnsweredAndMarked, nav.DisplayState(q.ID))

	clock.Advance(10 * time.Minute)
	summary, err := ctrl.Summary()
	require.NoError(t, err)
	assert.Equal(t, Summary{Answered: 1, Unanswered: 3, Marked: 1, Elapsed: 10 * time.Minute}, summary)

	reqs := backend.savedRequests()
	require.Len(t, reqs, 1)
	assert.Equal(t, session.ID, reqs[0].SessionID)
}
