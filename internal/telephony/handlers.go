package telephony

import (
	"errors"
	"net/http"

	"voicebridge/internal/session"
	"voicebridge/pkg/logger"

	"github.com/gin-gonic/gin"
)

// Handlers serves the two Twilio webhooks. Inbound calls create a ringing
// session and answer with TwiML that connects the media stream; terminal
// status callbacks tear the session down.
type Handlers struct {
	sessions  *session.Registry
	streamURL string
	greeting  string
}

func NewHandlers(sessions *session.Registry, streamURL, greeting string) *Handlers {
	return &Handlers{sessions: sessions, streamURL: streamURL, greeting: greeting}
}

func (h *Handlers) Register(r gin.IRoutes) {
	r.POST("/webhooks/twilio/voice", h.HandleInboundCall)
	r.POST("/webhooks/twilio/status", h.HandleStatusCallback)
}

// HandleInboundCall validates the webhook, registers a ringing session and
// responds with the connect-stream TwiML. Validation failures are rejected
// with 400 before any session state exists.
func (h *Handlers) HandleInboundCall(c *gin.Context) {
	log := logger.FromGin(c)

	if err := c.Request.ParseForm(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "malformed form body"})
		return
	}
	call, err := ParseInboundCall(c.Request.PostForm)
	if err != nil {
		log.Warn("rejected inbound call webhook", "err", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if _, err := h.sessions.Create(call.CallSID, call.From); err != nil {
		if errors.Is(err, session.ErrDuplicateSession) {
			log.Warn("duplicate inbound call webhook", "call_id", call.CallSID)
			c.JSON(http.StatusConflict, gin.H{"error": "call already in progress"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "session create failed"})
		return
	}

	body, err := ConnectStreamTwiML(h.greeting, h.streamURL, call.CallSID, call.From)
	if err != nil {
		h.sessions.Destroy(call.CallSID)
		log.Error("twiml render failed", "call_id", call.CallSID, "err", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "response render failed"})
		return
	}

	log.Info("inbound call accepted", "call_id", call.CallSID, "identity", call.From)
	c.Data(http.StatusOK, "text/xml; charset=utf-8", body)
}

// HandleStatusCallback destroys the session when the call reaches a terminal
// status. Non-terminal statuses and unknown calls are acknowledged silently.
func (h *Handlers) HandleStatusCallback(c *gin.Context) {
	log := logger.FromGin(c)

	if err := c.Request.ParseForm(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "malformed form body"})
		return
	}
	cb, err := ParseStatusCallback(c.Request.PostForm)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if cb.Terminal() {
		log.Info("terminal status callback", "call_id", cb.CallSID, "status", cb.Status, "duration_s", cb.Duration)
		h.sessions.Destroy(cb.CallSID)
	}
	c.Status(http.StatusNoContent)
}
