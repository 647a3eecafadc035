package router

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/prepstack/testcenter-backend/internal/config"
	"github.com/prepstack/testcenter-backend/internal/handler"
	"github.com/prepstack/testcenter-backend/internal/middleware"
	"github.com/prepstack/testcenter-backend/internal/response"
	"github.com/prepstack/testcenter-backend/internal/service"
)

// Handlers groups all handler instances for route setup.
type Handlers struct {
	Auth    *handler.AuthHandler
	Test    *handler.TestHandler
	Monitor *handler.MonitorHandler
}

// SetupRouter configures all Gin route groups with appropriate middlewares.
func SetupRouter(
	authService *service.AuthService,
	handlers *Handlers,
	cfg *config.Config,
) *gin.Engine {
	gin.SetMode(cfg.GinMode)
	router := gin.Default()

	// If AllowedOrigins is set in config, restrict to that list; otherwise
	// allow all (*) so dev works without extra config.
	corsConfig := cors.DefaultConfig()
	if len(cfg.AllowedOrigins) > 0 {
		corsConfig.AllowOrigins = cfg.AllowedOrigins
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization", "X-Request-ID"}
	corsConfig.ExposeHeaders = []string{"X-Request-ID"}
	corsConfig.MaxAge = 12 * time.Hour
	router.Use(cors.New(corsConfig))

	// Apply request ID middleware globally so every response includes metadata.
	router.Use(response.RequestIDMiddleware())

	// Health check.
	router.GET("/health", func(c *gin.Context) {
		response.Success(c, http.StatusOK, gin.H{"status": "ok"})
	})

	// Rate limiter for login (30 requests per minute per IP).
	authLimiter := middleware.NewRateLimiter(30, time.Minute)

	// ─── 1. Auth Group (Public, Rate Limited) ──────────────────────────
	auth := router.Group("/api/v1/auth")
	{
		auth.POST("/login", authLimiter.Middleware(), handlers.Auth.Login)
		auth.GET("/me", middleware.RequireLearnerJWT(authService), handlers.Auth.Me)
	}

	// ─── 2. Learner Group (JWT + Single Device) ────────────────────────
	api := router.Group("/api/v1")
	api.Use(
		middleware.RequireLearnerJWT(authService),
		middleware.CheckSingleDeviceLogin(authService),
	)
	{
		api.GET("/tests", handlers.Test.ListTests)
		api.GET("/tests/attempts", handlers.Test.ListAttempts)

		api.GET("/tests/:test_id/active-session", handlers.Test.ActiveSession)
		api.POST("/tests/:test_id/start", handlers.Test.StartSession)
		api.POST("/tests/:test_id/abandon-session", handlers.Test.AbandonSession)

		api.GET("/tests/:test_id/questions", handlers.Test.GetQuestions)
		api.POST("/tests/:test_id/answer", handlers.Test.SaveAnswer)
		api.POST("/tests/:test_id/submit", handlers.Test.SubmitTest)
	}

	// ─── 3. WebSocket Group (WS Auth via ?token=) ──────────────────────
	ws := router.Group("/ws/v1")
	ws.Use(middleware.RequireLearnerWSAuth(authService))
	{
		ws.GET("/tests/:test_id/monitor", handlers.Monitor.MonitorTest)
	}

	return router
}
