package attempt

import (
	"github.com/google/uuid"

	"github.com/prepstack/testcenter-backend/internal/model"
)

// DisplayState classifies a question for the palette.
type DisplayState int

const (
	StateUnanswered DisplayState = iota
	StateAnswered
	StateMarked
	StateAnsweredAndMarked
)

func (s DisplayState) String() string {
	switch s {
	case StateAnswered:
		return "answered"
	case StateMarked:
		return "marked"
	case StateAnsweredAndMarked:
		return "answered+marked"
	default:
		return "unanswered"
	}
}

// QuestionNavigator tracks the current position in the paper and derives
// palette state. Display state is a pure function of the answer record and
// mark set; navigation history never influences it.
type QuestionNavigator struct {
	questions []model.QuestionForLearner
	index     int

	record *AnswerRecord
	marks  *ReviewMarkSet
}

// NewQuestionNavigator creates a navigator positioned at the first question.
func NewQuestionNavigator(questions []model.QuestionForLearner, record *AnswerRecord, marks *ReviewMarkSet) *QuestionNavigator {
	return &QuestionNavigator{
		questions: questions,
		record:    record,
		marks:     marks,
	}
}

// Len returns the number of questions.
func (n *QuestionNavigator) Len() int {
	return len(n.questions)
}

// Index returns the current zero-based position.
func (n *QuestionNavigator) Index() int {
	return n.index
}

// Current returns the question at the current position, or nil for an empty
// paper.
func (n *QuestionNavigator) Current() *model.QuestionForLearner {
	if len(n.questions) == 0 {
		return nil
	}
	return &n.questions[n.index]
}

// Next advances one question, clamping at the end.
func (n *QuestionNavigator) Next() {
	if n.index < len(n.questions)-1 {
		n.index++
	}
}

// Previous steps back one question, clamping at the start.
func (n *QuestionNavigator) Previous() {
	if n.index > 0 {
		n.index--
	}
}

// GoTo jumps to position i. Out-of-range values clamp to the boundaries.
func (n *QuestionNavigator) GoTo(i int) {
	if len(n.questions) == 0 {
		return
	}
	if i < 0 {
		i = 0
	}
	if i > len(n.questions)-1 {
		i = len(n.questions) - 1
	}
	n.index = i
}

// DisplayState derives the palette state for one question from the answer
// record and mark set alone.
func (n *QuestionNavigator) DisplayState(questionID uuid.UUID) DisplayState {
	answered := n.record.Answered(questionID)
	marked := n.marks.Marked(questionID)
	switch {
	case answered && marked:
		return StateAnsweredAndMarked
	case answered:
		return StateAnswered
	case marked:
		return StateMarked
	default:
		return StateUnanswered
	}
}
