package main

import (
	"database/sql"
	"net/http"
	"time"

	"voicebridge/internal/config"
	"voicebridge/internal/conversation"
	"voicebridge/internal/httpapi"
	"voicebridge/internal/relay"
	"voicebridge/internal/session"
	"voicebridge/internal/telephony"
	"voicebridge/pkg/utils"

	"github.com/gin-gonic/gin"
)

type routeDeps struct {
	cfg      config.Config
	db       *sql.DB
	sessions *session.Registry
	store    *conversation.Store
	bridge   *relay.Bridge
	authMW   gin.HandlerFunc
}

// registerRoutes wires HTTP routes to handlers.
// Keep this file free of business logic. Handlers should delegate to internal modules.
func registerRoutes(r *gin.Engine, deps routeDeps) {
	// public
	r.GET("/healthz", func(c *gin.Context) {
		if err := utils.HealthCheck(c.Request.Context(), deps.db, 2*time.Second); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// Provider webhooks (public).
	// NOTE: These endpoints should be protected by Twilio signature validation in production.
	telephony.NewHandlers(deps.sessions, deps.cfg.MediaStreamURL(), deps.cfg.Twilio.Greeting).Register(r)

	// Telephony media websocket; the provider connects here after the
	// inbound-call webhook answers with connect-stream TwiML.
	relay.NewHandler(deps.bridge).Register(r)

	// protected operator API
	v1 := r.Group("/v1")
	v1.Use(deps.authMW)
	httpapi.NewOperatorHandlers(deps.sessions, deps.store).Register(v1)
}
