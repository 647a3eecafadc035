package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/prepstack/testcenter-backend/internal/middleware"
	"github.com/prepstack/testcenter-backend/internal/model"
	"github.com/prepstack/testcenter-backend/internal/response"
	"github.com/prepstack/testcenter-backend/internal/service"
	"github.com/prepstack/testcenter-backend/internal/validator"
)

// AuthHandler handles authentication endpoints.
type AuthHandler struct {
	authService    *service.AuthService
	learnerService *service.LearnerService
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(authService *service.AuthService, learnerService *service.LearnerService) *AuthHandler {
	return &AuthHandler{
		authService:    authService,
		learnerService: learnerService,
	}
}

// Login godoc
// POST /api/v1/auth/login
// Authenticates a learner and issues a JWT. A new login replaces any token
// issued to another device.
func (h *AuthHandler) Login(c *gin.Context) {
	var req model.LoginRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	learner, token, err := h.learnerService.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) {
			response.Fail(c, http.StatusUnauthorized, response.ErrInvalidCredentials)
			return
		}
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusOK, gin.H{
		"token": token,
		"learner": gin.H{
			"id":    learner.ID,
			"name":  learner.Name,
			"email": learner.Email,
		},
	})
}

// Me godoc
// GET /api/v1/auth/me
// Returns the profile of the currently authenticated learner.
func (h *AuthHandler) Me(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	learner, err := h.learnerService.GetByID(c.Request.Context(), claims.LearnerID)
	if err != nil {
		response.Fail(c, http.StatusNotFound, response.ErrNotFound)
		return
	}

	response.Success(c, http.StatusOK, gin.H{
		"learner": gin.H{
			"id":    learner.ID,
			"name":  learner.Name,
			"email": learner.Email,
		},
	})
}
