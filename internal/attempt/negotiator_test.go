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

func alwaysDecide(d Decision) Decider {
	return func(*model.ActiveSessionInfo) (Decision, error) { return d, nil }
}

func activeInfo(start time.Time, duration time.Duration) *model.ActiveSessionInfo {
	sessionID := uuid.New()
	attemptID := uuid.New()
	expires := start.Add(duration)
	return &model.ActiveSessionInfo{
		HasActiveSession: true,
		SessionID:        &sessionID,
		AttemptID:        &attemptID,
		StartedAt:        &start,
		ExpiresAt:        &expires,
	}
}

func TestNegotiateStartsFreshWhenNoActiveSession(t *testing.T) {
	session := &model.TestSession{ID: uuid.New(), ExpiresAt: time.Now().Add(time.Hour)}
	backend := &fakeBackend{session: session}

	deciderCalled := false
	neg := NewSessionNegotiator(backend, func(*model.ActiveSessionInfo) (Decision, error) {
		deciderCalled = true
		return DecisionResume, nil
	}, nil, zerolog.Nop())

	got, resumed, err := neg.Negotiate(context.Background(), uuid.New())
	require.NoError(t, err)
	assert.False(t, resumed)
	assert.Equal(t, session, got)
	assert.False(t, deciderCalled, "no active session means nothing to decide")
	assert.Equal(t, []string{"active-session", "start-session"}, backend.callLog())
}

func TestNegotiateResumeAdoptsExistingIdentityAndDeadline(t *testing.T) {
	startedAt := time.Now().Add(-20 * time.Minute).Truncate(time.Second)
	info := activeInfo(startedAt, time.Hour)
	backend := &fakeBackend{active: info}

	testID := uuid.New()
	neg := NewSessionNegotiator(backend, alwaysDecide(DecisionResume), nil, zerolog.Nop())

	session, resumed, err := neg.Negotiate(context.Background(), testID)
	require.NoError(t, err)
	assert.True(t, resumed)
	assert.Equal(t, *info.SessionID, session.ID)
	assert.Equal(t, *info.AttemptID, session.AttemptID)
	assert.Equal(t, *info.StartedAt, session.StartedAt)
	assert.Equal(t, *info.ExpiresAt, session.ExpiresAt, "resume must keep the original deadline")
	assert.Equal(t, testID, session.TestID)
	assert.Equal(t, []string{"active-session"}, backend.callLog(), "resume must not start a new session")
}

func TestNegotiateAbandonThenStart(t *testing.T) {
	info := activeInfo(time.Now().Add(-10*time.Minute), time.Hour)
	fresh := &model.TestSession{ID: uuid.New(), ExpiresAt: time.Now().Add(time.Hour)}
	backend := &fakeBackend{active: info, session: fresh}

	neg := NewSessionNegotiator(backend, alwaysDecide(DecisionAbandon), nil, zerolog.Nop())

	session, resumed, err := neg.Negotiate(context.Background(), uuid.New())
	require.NoError(t, err)
	assert.False(t, resumed)
	assert.Equal(t, fresh.ID, session.ID)
	assert.Equal(t, []string{"active-session", "abandon-session", "start-session"}, backend.callLog())
}

func TestNegotiateAbandonFailureNeverStarts(t *testing.T) {
	info := activeInfo(time.Now().Add(-10*time.Minute), time.Hour)
	backend := &fakeBackend{active: info, abandonErr: errors.New("backend down")}

	neg := NewSessionNegotiator(backend, alwaysDecide(DecisionAbandon), nil, zerolog.Nop())

	_, _, err := neg.Negotiate(context.Background(), uuid.New())
	require.Error(t, err)
	assert.Equal(t, []string{"active-session", "abandon-session"}, backend.callLog(),
		"a failed abandon must not be followed by a start")
}

func TestNegotiateDeciderErrorAborts(t *testing.T) {
	info := activeInfo(time.Now(), time.Hour)
	backend := &fakeBackend{active: info}

	neg := NewSessionNegotiator(backend, func(*model.ActiveSessionInfo) (Decision, error) {
		return 0, errors.New("user cancelled")
	}, nil, zerolog.Nop())

	_, _, err := neg.Negotiate(context.Background(), uuid.New())
	require.Error(t, err)
	assert.Equal(t, []string{"active-session"}, backend.callLog())
}

func TestNegotiatePersistsHandle(t *testing.T) {
	store, err := NewHandleStore(t.TempDir())
	require.NoError(t, err)

	testID := uuid.New()
	session := &model.TestSession{
		ID:        uuid.New(),
		TestID:    testID,
		AttemptID: uuid.New(),
		StartedAt: time.Now().Truncate(time.Second),
		ExpiresAt: time.Now().Add(time.Hour).Truncate(time.Second),
	}
	backend := &fakeBackend{session: session}

	neg := NewSessionNegotiator(backend, alwaysDecide(DecisionResume), store, zerolog.Nop())
	_, _, err = neg.Negotiate(context.Background(), testID)
	require.NoError(t, err)

	handle, err := store.Load(testID)
	require.NoError(t, err)
	require.NotNil(t, handle)
	assert.Equal(t, session.ID, handle.SessionID)
	assert.Equal(t, session.AttemptID, handle.AttemptID)
	assert.True(t, handle.ExpiresAt.Equal(session.ExpiresAt))
}
