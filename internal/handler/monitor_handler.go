package handler

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/prepstack/testcenter-backend/internal/middleware"
	"github.com/prepstack/testcenter-backend/internal/response"
	"github.com/prepstack/testcenter-backend/internal/service"
)

const monitorPingInterval = 30 * time.Second

// buildUpgrader creates a WebSocket upgrader with origin validation.
// An empty allowedOrigins permits all origins (development mode).
func buildUpgrader(allowedOrigins []string) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			if len(allowedOrigins) == 0 {
				return true
			}
			origin := r.Header.Get("Origin")
			for _, allowed := range allowedOrigins {
				if strings.EqualFold(allowed, origin) {
					return true
				}
			}
			return false
		},
	}
}

// MonitorHandler streams live test activity over WebSocket.
type MonitorHandler struct {
	testService    *service.TestService
	monitorService *service.MonitorService
	log            zerolog.Logger
	upgrader       websocket.Upgrader
}

// NewMonitorHandler creates a new MonitorHandler.
func NewMonitorHandler(
	testService *service.TestService,
	monitorService *service.MonitorService,
	log zerolog.Logger,
	allowedOrigins []string,
) *MonitorHandler {
	return &MonitorHandler{
		testService:    testService,
		monitorService: monitorService,
		log:            log.With().Str("component", "monitor_handler").Logger(),
		upgrader:       buildUpgrader(allowedOrigins),
	}
}

// MonitorTest godoc
// WS /ws/v1/tests/:test_id/monitor
// Upgrades to WebSocket and forwards the test's activity events (answer
// saves, session finalizations) as they happen.
func (h *MonitorHandler) MonitorTest(c *gin.Context) {
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

	if _, err := h.testService.GetByID(c.Request.Context(), testID); err != nil {
		response.Fail(c, http.StatusNotFound, response.ErrNotFound)
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	defer conn.Close()

	reqCtx := c.Request.Context()

	pubsub := h.monitorService.Subscribe(reqCtx, testID)
	defer pubsub.Close()
	ch := pubsub.Channel()

	pingTicker := time.NewTicker(monitorPingInterval)
	defer pingTicker.Stop()

	wsLog := h.log.With().
		Int("learner_id", claims.LearnerID).
		Str("test_id", testID.String()).
		Logger()
	wsLog.Info().Msg("Monitor attached")

	// Reader goroutine: we never expect inbound frames, but reading is what
	// surfaces close errors and keeps control frames flowing.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-reqCtx.Done():
			wsLog.Info().Msg("Monitor detached")
			return

		case <-done:
			wsLog.Debug().Msg("Connection closed")
			return

		case msg := <-ch:
			// Forward raw JSON directly.
			if err := conn.WriteMessage(websocket.TextMessage, []byte(msg.Payload)); err != nil {
				wsLog.Warn().Err(err).Msg("Write failed")
				return
			}

		case <-pingTicker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second)); err != nil {
				wsLog.Debug().Msg("Ping failed, closing")
				return
			}
		}
	}
}
