package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/prepstack/testcenter-backend/internal/response"
	"github.com/prepstack/testcenter-backend/internal/service"
)

// CheckSingleDeviceLogin validates the JWT's JTI against the learner's
// current login in Redis. A newer login from another device replaces the
// JTI, so requests bearing the older token are rejected here.
func CheckSingleDeviceLogin(authService *service.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims := GetClaims(c)
		if claims == nil {
			response.AbortFail(c, http.StatusUnauthorized, response.ErrTokenRequired)
			return
		}

		if err := authService.ValidateLearnerLogin(c.Request.Context(), claims.LearnerID, claims.ID); err != nil {
			response.AbortFail(c, http.StatusUnauthorized, response.ErrTokenExpired)
			return
		}

		c.Next()
	}
}
