package attempt

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/prepstack/testcenter-backend/internal/model"
)

// fakeBackend records calls and serves canned responses.
type fakeBackend struct {
	mu    sync.Mutex
	calls []string

	active    *model.ActiveSessionInfo
	activeErr error

	session  *model.TestSession
	startErr error

	abandonErr error

	questions    []model.QuestionForLearner
	questionsErr error

	saveRequests []model.SubmitAnswerRequest
	saveErr      error
	saveHook     func(req model.SubmitAnswerRequest) error

	result      *model.AttemptResult
	submitErr   error
	submitCount int
}

func (f *fakeBackend) record(call string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)
}

func (f *fakeBackend) callLog() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.calls))
	copy(out, f.calls)
	return out
}

func (f *fakeBackend) ActiveSession(ctx context.Context, testID uuid.UUID) (*model.ActiveSessionInfo, error) {
	f.record("active-session")
	if f.activeErr != nil {
		return nil, f.activeErr
	}
	if f.active == nil {
		return &model.ActiveSessionInfo{HasActiveSession: false}, nil
	}
	return f.active, nil
}

func (f *fakeBackend) StartSession(ctx context.Context, testID uuid.UUID) (*model.TestSession, error) {
	f.record("start-session")
	if f.startErr != nil {
		return nil, f.startErr
	}
	return f.session, nil
}

func (f *fakeBackend) AbandonSession(ctx context.Context, testID uuid.UUID) (*model.AttemptResult, error) {
	f.record("abandon-session")
	if f.abandonErr != nil {
		return nil, f.abandonErr
	}
	return &model.AttemptResult{}, nil
}

func (f *fakeBackend) Questions(ctx context.Context, testID, sessionID uuid.UUID) ([]model.QuestionForLearner, error) {
	f.record("questions")
	if f.questionsErr != nil {
		return nil, f.questionsErr
	}
	return f.questions, nil
}

func (f *fakeBackend) SaveAnswer(ctx context.Context, testID uuid.UUID, req model.SubmitAnswerRequest) (bool, error) {
	f.record("save-answer")
	if f.saveHook != nil {
		if err := f.saveHook(req); err != nil {
			return false, err
		}
	}
	f.mu.Lock()
	f.saveRequests = append(f.saveRequests, req)
	f.mu.Unlock()
	if f.saveErr != nil {
		return false, f.saveErr
	}
	return true, nil
}

func (f *fakeBackend) savedRequests() []model.SubmitAnswerRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]model.SubmitAnswerRequest, len(f.saveRequests))
	copy(out, f.saveRequests)
	return out
}

func (f *fakeBackend) SubmitTest(ctx context.Context, testID, sessionID uuid.UUID) (*model.AttemptResult, error) {
	f.record("submit-test")
	f.mu.Lock()
	f.submitCount++
	f.mu.Unlock()
	if f.submitErr != nil {
		return nil, f.submitErr
	}
	if f.result != nil {
		return f.result, nil
	}
	return &model.AttemptResult{SessionID: sessionID}, nil
}

func (f *fakeBackend) submits() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.submitCount
}

// fakeClock is a controllable Clock.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock(start time.Time) *fakeClock {
	return &fakeClock{now: start}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// paper builds n questions with four options each.
func paper(n int) []model.QuestionForLearner {
	questions := make([]model.QuestionForLearner, n)
	for i := range questions {
		options := make([]model.Option, 4)
		for j := range options {
			options[j] = model.Option{ID: uuid.New(), Text: "option"}
		}
		questions[i] = model.QuestionForLearner{
			ID:      uuid.New(),
			Text:    "question",
			Options: options,
			Marks:   1,
		}
	}
	return questions
}
