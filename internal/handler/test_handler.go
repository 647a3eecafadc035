package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/prepstack/testcenter-backend/internal/middleware"
	"github.com/prepstack/testcenter-backend/internal/model"
	"github.com/prepstack/testcenter-backend/internal/response"
	"github.com/prepstack/testcenter-backend/internal/service"
	"github.com/prepstack/testcenter-backend/internal/validator"
)

// TestHandler handles the learner-facing test and session endpoints.
type TestHandler struct {
	testService       *service.TestService
	sessionService    *service.SessionService
	questionService   *service.QuestionService
	answerService     *service.AnswerService
	submissionService *service.SubmissionService
}

// NewTestHandler creates a new TestHandler.
func NewTestHandler(
	testService *service.TestService,
	sessionService *service.SessionService,
	questionService *service.QuestionService,
	answerService *service.AnswerService,
	submissionService *service.SubmissionService,
) *TestHandler {
	return &TestHandler{
		testService:       testService,
		sessionService:    sessionService,
		questionService:   questionService,
		answerService:     answerService,
		submissionService: submissionService,
	}
}

// ListTests godoc
// GET /api/v1/tests
// Lists published tests available to the learner.
func (h *TestHandler) ListTests(c *gin.Context) {
	tests, err := h.testService.ListPublished(c.Request.Context())
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	if tests == nil {
		tests = []model.Test{}
	}

	response.Success(c, http.StatusOK, gin.H{"tests": tests})
}

// ListAttempts godoc
// GET /api/v1/tests/attempts
// Lists the learner's finished attempts, newest first.
func (h *TestHandler) ListAttempts(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	attempts, err := h.sessionService.ListAttempts(c.Request.Context(), claims.LearnerID)
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	if attempts == nil {
		attempts = []model.AttemptSummary{}
	}

	response.Success(c, http.StatusOK, gin.H{"attempts": attempts})
}

// ActiveSession godoc
// GET /api/v1/tests/:test_id/active-session
// Reports whether a live session exists for this learner on this test.
// Clients must call this before starting and decide to resume or abandon.
func (h *TestHandler) ActiveSession(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	testID, err := uuid.Parse(c.Param("test_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	info, err := h.sessionService.ActiveSession(c.Request.Context(), testID, claims.LearnerID)
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusOK, info)
}

// StartSession godoc
// POST /api/v1/tests/:test_id/start
// Starts a fresh attempt. Conflicts with an existing ACTIVE session.
func (h *TestHandler) StartSession(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	testID, err := uuid.Parse(c.Param("test_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	session, err := h.sessionService.Start(c.Request.Context(), testID, claims.LearnerID)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrTestNotAvailable):
			response.Fail(c, http.StatusBadRequest, response.ErrTestNotAvailable)
		case errors.Is(err, service.ErrSessionConflict):
			response.Fail(c, http.StatusConflict, response.ErrSessionConflict)
		case errors.Is(err, service.ErrMaxAttempts):
			response.Fail(c, http.StatusForbidden, response.ErrMaxAttemptsReached)
		default:
			response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		}
		return
	}

	response.Success(c, http.StatusCreated, gin.H{"session": session})
}

// AbandonSession godoc
// POST /api/v1/tests/:test_id/abandon-session
// Discards the active session so a new attempt can start. The abandoned
// attempt is still graded and counted.
func (h *TestHandler) AbandonSession(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	testID, err := uuid.Parse(c.Param("test_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	result, err := h.submissionService.Abandon(c.Request.Context(), testID, claims.LearnerID)
	if err != nil {
		if errors.Is(err, service.ErrNoActiveSession) {
			response.Fail(c, http.StatusNotFound, response.ErrSessionNotActive)
			return
		}
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"result": result})
}

// GetQuestions godoc
// GET /api/v1/tests/:test_id/questions?session_id=...
// Returns the paper in this session's question order with per-session option
// shuffling. Requires an ACTIVE session owned by the caller.
func (h *TestHandler) GetQuestions(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	testID, err := uuid.Parse(c.Param("test_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	sessionID, err := uuid.Parse(c.Query("session_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	session, err := h.sessionService.VerifyOwnedActive(c.Request.Context(), sessionID, testID, claims.LearnerID)
	if err != nil {
		failSessionError(c, err)
		return
	}

	questions, err := h.questionService.GetSessionPaper(c.Request.Context(), session)
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusOK, gin.H{
		"session_id": session.ID,
		"expires_at": session.ExpiresAt,
		"questions":  questions,
	})
}

// SaveAnswer godoc
// POST /api/v1/tests/:test_id/answer
// Records the full desired answer state for one question, last-write-wins by
// sequence number. Stale writes are acknowledged without being applied.
func (h *TestHandler) SaveAnswer(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	testID, err := uuid.Parse(c.Param("test_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	var req model.SubmitAnswerRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	session, err := h.sessionService.VerifyOwnedActive(c.Request.Context(), req.SessionID, testID, claims.LearnerID)
	if err != nil {
		failSessionError(c, err)
		return
	}

	applied, err := h.answerService.Save(c.Request.Context(), session, &req)
	if err != nil {
		if errors.Is(err, service.ErrSessionExpired) {
			response.Fail(c, http.StatusConflict, response.ErrSessionExpired)
			return
		}
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusOK, gin.H{
		"applied": applied,
		"seq":     req.Seq,
	})
}

// SubmitTest godoc
// POST /api/v1/tests/:test_id/submit
// Finalizes the session and returns the graded result. Safe to retry: a
// repeat call on a finalized session returns the stored result.
func (h *TestHandler) SubmitTest(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	testID, err := uuid.Parse(c.Param("test_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	var req model.SubmitTestRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	session, err := h.sessionService.VerifyOwned(c.Request.Context(), req.SessionID, testID, claims.LearnerID)
	if err != nil {
		failSessionError(c, err)
		return
	}

	result, err := h.submissionService.Submit(c.Request.Context(), session)
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"result": result})
}

// failSessionError maps session verification errors onto response codes.
func failSessionError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrNoActiveSession):
		response.Fail(c, http.StatusNotFound, response.ErrSessionNotActive)
	case errors.Is(err, service.ErrSessionMismatch):
		response.Fail(c, http.StatusForbidden, response.ErrSessionMismatch)
	default:
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
	}
}
