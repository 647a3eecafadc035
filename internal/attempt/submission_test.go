package attempt

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prepstack/testcenter-backend/internal/model"
)

func TestSummaryCountsAndElapsed(t *testing.T) {
	questions := paper(20)
	record := NewAnswerRecord()
	marks := NewReviewMarkSet()

	// 14 answered, 3 of them marked for review, 6 untouched.
	for i := 0; i < 14; i++ {
		opt := questions[i].Options[0].ID
		record.Set(questions[i].ID, &opt)
	}
	for i := 0; i < 3; i++ {
		marks.Toggle(questions[i].ID)
	}

	clock := newFakeClock(time.Now())
	session := &model.TestSession{
		ID:        uuid.New(),
		TestID:    uuid.New(),
		StartedAt: clock.Now(),
	}
	clock.Advance(42 * time.Minute)

	coord := NewSubmissionCoordinator(&fakeBackend{}, record, marks, session, len(questions), clock.Now, zerolog.Nop())
	summary := coord.BuildSummary()

	assert.Equal(t, 14, summary.Answered)
	assert.Equal(t, 6, summary.Unanswered)
	assert.Equal(t, 3, summary.Marked)
	assert.Equal(t, 42*time.Minute, summary.Elapsed)
}

func TestSummaryTreatsClearedAsUnanswered(t *testing.T) {
	questions := paper(5)
	record := NewAnswerRecord()
	marks := NewReviewMarkSet()

	opt := questions[0].Options[0].ID
	record.Set(questions[0].ID, &opt)
	record.Set(questions[1].ID, &opt)
	record.Set(questions[1].ID, nil)
	marks.Toggle(questions[1].ID)

	clock := newFakeClock(time.Now())
	session := &model.TestSession{ID: uuid.New(), StartedAt: clock.Now()}

	coord := NewSubmissionCoordinator(&fakeBackend{}, record, marks, session, len(questions), clock.Now, zerolog.Nop())
	summary := coord.BuildSummary()

	assert.Equal(t, 1, summary.Answered)
	assert.Equal(t, 4, summary.Unanswered)
	assert.Equal(t, 1, summary.Marked, "a cleared answer can stay marked for review")
}

func TestSubmitPassesSessionIdentity(t *testing.T) {
	clock := newFakeClock(time.Now())
	session := &model.TestSession{
		ID:        uuid.New(),
		TestID:    uuid.New(),
		StartedAt: clock.Now(),
	}
	want := &model.AttemptResult{
		SessionID:     session.ID,
		MarksObtained: 12.5,
		Passed:        true,
	}
	backend := &fakeBackend{result: want}

	coord := NewSubmissionCoordinator(backend, NewAnswerRecord(), NewReviewMarkSet(), session, 5, clock.Now, zerolog.Nop())
	got, err := coord.Submit(context.Background())
	require.NoError(t, err)
	assert.Equal(t, want, got)
	assert.Equal(t, []string{"submit-test"}, backend.callLog())
}
