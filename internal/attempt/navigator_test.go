package attempt

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestNavigationClampsAtBoundaries(t *testing.T) {
	questions := paper(3)
	nav := NewQuestionNavigator(questions, NewAnswerRecord(), NewReviewMarkSet())

	nav.Previous()
	assert.Equal(t, 0, nav.Index(), "previous at the start must not wrap")

	nav.Next()
	nav.Next()
	nav.Next()
	nav.Next()
	assert.Equal(t, 2, nav.Index(), "next at the end must not wrap")

	nav.GoTo(-5)
	assert.Equal(t, 0, nav.Index())
	nav.GoTo(99)
	assert.Equal(t, 2, nav.Index())
	nav.GoTo(1)
	assert.Equal(t, 1, nav.Index())
	assert.Equal(t, questions[1].ID, nav.Current().ID)
}

func TestDisplayStateDerivation(t *testing.T) {
	questions := paper(2)
	record := NewAnswerRecord()
	marks := NewReviewMarkSet()
	nav := NewQuestionNavigator(questions, record, marks)

	q := questions[0].ID
	opt := questions[0].Options[0].ID

	assert.Equal(t, StateUnanswered, nav.DisplayState(q))

	record.Set(q, &opt)
	assert.Equal(t, StateAnswered, nav.DisplayState(q))

	marks.Toggle(q)
	assert.Equal(t, StateAnsweredAndMarked, nav.DisplayState(q))

	record.Set(q, nil)
	assert.Equal(t, StateMarked, nav.DisplayState(q))

	marks.Toggle(q)
	assert.Equal(t, StateUnanswered, nav.DisplayState(q))
}

func TestDisplayStateIndependentOfNavigationOrder(t *testing.T) {
	questions := paper(6)
	record := NewAnswerRecord()
	marks := NewReviewMarkSet()
	nav := NewQuestionNavigator(questions, record, marks)

	q5 := questions[4].ID
	opt := questions[4].Options[2].ID
	record.Set(q5, &opt)

	before := nav.DisplayState(q5)

	// Wander the paper; question 5's state must not move.
	nav.GoTo(4)
	for _, i := range []int{0, 3, 1, 2, 0, 5, 4} {
		nav.GoTo(i)
		assert.Equal(t, before, nav.DisplayState(q5))
	}
	nav.Previous()
	nav.Next()
	assert.Equal(t, StateAnswered, nav.DisplayState(q5))
}

func TestEmptyPaper(t *testing.T) {
	nav := NewQuestionNavigator(nil, NewAnswerRecord(), NewReviewMarkSet())
	assert.Nil(t, nav.Current())
	nav.GoTo(3)
	assert.Equal(t, 0, nav.Index())
	assert.Equal(t, StateUnanswered, nav.DisplayState(uuid.New()))
}
