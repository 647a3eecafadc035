package config

import (
	"fmt"

	"github.com/google/uuid"
)

// CacheKeyStruct builds every Redis key the application touches. All keys are
// constructed here so that session-scoped state is always keyed by typed ids,
// never by ad-hoc string concatenation at call sites.
type CacheKeyStruct struct{}

func NewCacheKeyStruct() *CacheKeyStruct {
	return &CacheKeyStruct{}
}

// LearnerLoginKey returns the key holding a learner's active login JTI.
func (r *CacheKeyStruct) LearnerLoginKey(learnerID int) string {
	return fmt.Sprintf("login:%d", learnerID)
}

// TestPayloadKey returns the key for a test's cached learner-facing payload.
func (r *CacheKeyStruct) TestPayloadKey(testID uuid.UUID) string {
	return fmt.Sprintf("test:%s:payload", testID)
}

// SessionAnswersKey returns the hash key holding a session's answers.
// Field = question id, value = selected option id ("" for an explicit skip).
func (r *CacheKeyStruct) SessionAnswersKey(sessionID uuid.UUID) string {
	return fmt.Sprintf("session:%s:answers", sessionID)
}

// SessionAnswerSeqKey returns the hash key holding the per-question write
// sequence numbers that guard answer writes against out-of-order delivery.
func (r *CacheKeyStruct) SessionAnswerSeqKey(sessionID uuid.UUID) string {
	return fmt.Sprintf("session:%s:answer_seq", sessionID)
}

// SessionQuestionOrderKey returns the key for a session's shuffled question order.
func (r *CacheKeyStruct) SessionQuestionOrderKey(sessionID uuid.UUID) string {
	return fmt.Sprintf("session:%s:question_order", sessionID)
}

// SessionDeadlinesKey returns the sorted-set key of all active session
// deadlines, scored by expiry as a Unix timestamp.
func (r *CacheKeyStruct) SessionDeadlinesKey() string {
	return "session_deadlines"
}

// TestMonitorChannel returns the pub/sub channel for a test's live monitor.
func (r *CacheKeyStruct) TestMonitorChannel(testID uuid.UUID) string {
	return fmt.Sprintf("test:%s:monitor", testID)
}

var CacheKey = NewCacheKeyStruct()
