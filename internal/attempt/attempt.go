// Package attempt is the client-side engine for taking a timed test: session
// negotiation, the countdown, answer synchronization, navigation, and final
// submission. The backend is the authority on scoring and session validity;
// this package keeps the local view responsive and consistent with it.
package attempt

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/prepstack/testcenter-backend/internal/model"
)

// Backend is the slice of the API the engine consumes. *apiclient.Client
// satisfies it; tests substitute a fake.
type Backend interface {
	ActiveSession(ctx context.Context, testID uuid.UUID) (*model.ActiveSessionInfo, error)
	StartSession(ctx context.Context, testID uuid.UUID) (*model.TestSession, error)
	AbandonSession(ctx context.Context, testID uuid.UUID) (*model.AttemptResult, error)
	Questions(ctx context.Context, testID, sessionID uuid.UUID) ([]model.QuestionForLearner, error)
	SaveAnswer(ctx context.Context, testID uuid.UUID, req model.SubmitAnswerRequest) (bool, error)
	SubmitTest(ctx context.Context, testID, sessionID uuid.UUID) (*model.AttemptResult, error)
}

// Clock supplies the current time. Production code passes time.Now; tests
// pass a controllable stand-in.
type Clock func() time.Time
