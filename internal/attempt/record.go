package attempt

import (
	"sync"

	"github.com/google/uuid"
)

// AnswerRecord is the local copy of the learner's selections. It is the UI's
// source of truth; the backend copy is authoritative only for scoring. A
// cleared answer stays in the record as an explicit nil so "cleared" and
// "never touched" stay distinguishable.
type AnswerRecord struct {
	mu         sync.RWMutex
	selections map[uuid.UUID]*uuid.UUID
}

// NewAnswerRecord creates an empty AnswerRecord.
func NewAnswerRecord() *AnswerRecord {
	return &AnswerRecord{selections: make(map[uuid.UUID]*uuid.UUID)}
}

// Set overwrites the selection for a question. nil clears it.
func (r *AnswerRecord) Set(questionID uuid.UUID, optionID *uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.selections[questionID] = optionID
}

// Get returns the current selection. ok is false when the question was never
// touched; a cleared question returns (nil, true).
func (r *AnswerRecord) Get(questionID uuid.UUID) (optionID *uuid.UUID, ok bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	optionID, ok = r.selections[questionID]
	return optionID, ok
}

// Answered reports whether the question currently has a selection.
func (r *AnswerRecord) Answered(questionID uuid.UUID) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	sel, ok := r.selections[questionID]
	return ok && sel != nil
}

// AnsweredCount counts questions with a current selection.
func (r *AnswerRecord) AnsweredCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := 0
	for _, sel := range r.selections {
		if sel != nil {
			n++
		}
	}
	return n
}

// ReviewMarkSet is the set of questions flagged for review. Client-local
// only; it never reaches the backend except through the pre-submit summary.
type ReviewMarkSet struct {
	mu  sync.RWMutex
	set map[uuid.UUID]struct{}
}

// NewReviewMarkSet creates an empty ReviewMarkSet.
func NewReviewMarkSet() *ReviewMarkSet {
	return &ReviewMarkSet{set: make(map[uuid.UUID]struct{})}
}

// Toggle flips the mark for a question and returns the new marked state.
func (m *ReviewMarkSet) Toggle(questionID uuid.UUID) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.set[questionID]; ok {
		delete(m.set, questionID)
		return false
	}
	m.set[questionID] = struct{}{}
	return true
}

// Marked reports whether the question is flagged for review.
func (m *ReviewMarkSet) Marked(questionID uuid.UUID) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.set[questionID]
	return ok
}

// Count returns the number of marked questions.
func (m *ReviewMarkSet) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.set)
}
