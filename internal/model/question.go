package model

import (
	"github.com/google/uuid"
)

// Option is a single answer choice.
type Option struct {
	ID   uuid.UUID `json:"id"`
	Text string    `json:"text"`
}

// Question is a test question as stored. CorrectOptionID is never serialized
// to learners; the learner-facing shape is QuestionForLearner.
type Question struct {
	ID              uuid.UUID `json:"id"`
	TestID          uuid.UUID `json:"test_id"`
	Text            string    `json:"text"`
	Options         []Option  `json:"options"`
	CorrectOptionID uuid.UUID `json:"correct_option_id"`
	Marks           float64   `json:"marks"`
	NegativeMarks   float64   `json:"negative_marks"`
	OrderNum        int       `json:"order_num"`
}

// QuestionForLearner is a question with correctness stripped, as served to an
// active session.
type QuestionForLearner struct {
	ID            uuid.UUID `json:"id"`
	Text          string    `json:"text"`
	Options       []Option  `json:"options"`
	Marks         float64   `json:"marks"`
	NegativeMarks float64   `json:"negative_marks"`
	OrderNum      int       `json:"order_num"`
}
