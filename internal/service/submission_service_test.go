package service

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/prepstack/testcenter-backend/internal/model"
)

func gradingQuestions(n int) []model.Question {
	questions := make([]model.Question, n)
	for i := range questions {
		correct := uuid.New()
		questions[i] = model.Question{
			ID:              uuid.New(),
			CorrectOptionID: correct,
			Marks:           2,
		}
	}
	return questions
}

func correctPick(q model.Question) *uuid.UUID {
	id := q.CorrectOptionID
	return &id
}

func wrongPick() *uuid.UUID {
	id := uuid.New()
	return &id
}

func TestGrade(t *testing.T) {
	startedAt := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	session := &model.TestSession{
		ID:            uuid.New(),
		TestID:        uuid.New(),
		AttemptID:     uuid.New(),
		AttemptNumber: 2,
		StartedAt:     startedAt,
		ExpiresAt:     startedAt.Add(time.Hour),
	}

	tests := []struct {
		name       string
		test       model.Test
		setup      func(qs []model.Question) map[uuid.UUID]*uuid.UUID
		questions  []model.Question
		obtained   float64
		percentage float64
		passed     bool
		correct    int
		wrong      int
		unanswered int
	}{
		{
			name:      "all correct",
			test:      model.Test{PassingMarks: 6},
			questions: gradingQuestions(5),
			setup: func(qs []model.Question) map[uuid.UUID]*uuid.UUID {
				answers := map[uuid.UUID]*uuid.UUID{}
				for _, q := range qs {
					answers[q.ID] = correctPick(q)
				}
				return answers
			},
			obtained:   10,
			percentage: 100,
			passed:     true,
			correct:    5,
		},
		{
			name:      "mixed without negative marking",
			test:      model.Test{PassingMarks: 4},
			questions: gradingQuestions(5),
			setup: func(qs []model.Question) map[uuid.UUID]*uuid.UUID {
				return map[uuid.UUID]*uuid.UUID{
					qs[0].ID: correctPick(qs[0]),
					qs[1].ID: correctPick(qs[1]),
					qs[2].ID: wrongPick(),
				}
			},
			obtained:   4,
			percentage: 40,
			passed:     true,
			correct:    2,
			wrong:      1,
			unanswered: 2,
		},
		{
			name:      "per-question negative marks",
			test:      model.Test{PassingMarks: 3, NegativeMarking: true},
			questions: func() []model.Question {
				qs := gradingQuestions(4)
				for i := range qs {
					qs[i].NegativeMarks = 0.5
				}
				return qs
			}(),
			setup: func(qs []model.Question) map[uuid.UUID]*uuid.UUID {
				return map[uuid.UUID]*uuid.UUID{
					qs[0].ID: correctPick(qs[0]),
					qs[1].ID: correctPick(qs[1]),
					qs[2].ID: wrongPick(),
					qs[3].ID: wrongPick(),
				}
			},
			obtained:   3,
			percentage: 37.5,
			passed:     true,
			correct:    2,
			wrong:      2,
		},
		{
			name:      "test-wide negative percent fallback",
			test:      model.Test{PassingMarks: 4, NegativeMarking: true, NegativePercent: 25},
			questions: gradingQuestions(4),
			setup: func(qs []model.Question) map[uuid.UUID]*uuid.UUID {
				return map[uuid.UUID]*uuid.UUID{
					qs[0].ID: correctPick(qs[0]),
					qs[1].ID: wrongPick(),
				}
			},
			obtained:   1.5,
			percentage: 18.75,
			passed:     false,
			correct:    1,
			wrong:      1,
			unanswered: 2,
		},
		{
			name:      "cleared selection counts as unanswered",
			test:      model.Test{PassingMarks: 2, NegativeMarking: true, NegativePercent: 50},
			questions: gradingQuestions(3),
			setup: func(qs []model.Question) map[uuid.UUID]*uuid.UUID {
				return map[uuid.UUID]*uuid.UUID{
					qs[0].ID: correctPick(qs[0]),
					qs[1].ID: nil,
				}
			},
			obtained:   2,
			percentage: 33.33,
			passed:     true,
			correct:    1,
			unanswered: 2,
		},
		{
			name:      "pass boundary is inclusive",
			test:      model.Test{PassingMarks: 2},
			questions: gradingQuestions(1),
			setup: func(qs []model.Question) map[uuid.UUID]*uuid.UUID {
				return map[uuid.UUID]*uuid.UUID{qs[0].ID: correctPick(qs[0])}
			},
			obtained:   2,
			percentage: 100,
			passed:     true,
			correct:    1,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			answers := tc.setup(tc.questions)
			res := Grade(&tc.test, tc.questions, answers, session, startedAt.Add(40*time.Minute), model.SubmitReasonManual)

			assert.Equal(t, tc.obtained, res.MarksObtained)
			assert.Equal(t, tc.percentage, res.Percentage)
			assert.Equal(t, tc.passed, res.Passed)
			assert.Equal(t, tc.correct, res.CorrectCount)
			assert.Equal(t, tc.wrong, res.WrongCount)
			assert.Equal(t, tc.unanswered, res.UnansweredCount)
			assert.Equal(t, session.AttemptNumber, res.AttemptNumber)
			assert.Equal(t, 40*60, res.TimeTakenSeconds)
		})
	}
}

func TestGradeClampsTimeTakenToDeadline(t *testing.T) {
	startedAt := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	session := &model.TestSession{
		StartedAt: startedAt,
		ExpiresAt: startedAt.Add(30 * time.Minute),
	}
	qs := gradingQuestions(1)

	// The sweeper may finalize well after expiry; time taken caps at the
	// test duration.
	res := Grade(&model.Test{}, qs, nil, session, startedAt.Add(2*time.Hour), model.SubmitReasonTimeout)
	assert.Equal(t, 30*60, res.TimeTakenSeconds)
	assert.Equal(t, model.SubmitReasonTimeout, res.SubmitReason)
	assert.Equal(t, 1, res.UnansweredCount)
}

func TestGradeEmptyPaper(t *testing.T) {
	startedAt := time.Now()
	session := &model.TestSession{StartedAt: startedAt, ExpiresAt: startedAt.Add(time.Hour)}

	res := Grade(&model.Test{PassingMarks: 1}, nil, nil, session, startedAt, model.SubmitReasonAbandon)
	assert.Zero(t, res.TotalMarks)
	assert.Zero(t, res.Percentage)
	assert.False(t, res.Passed)
}
