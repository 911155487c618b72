package relay

import (
	"net/http"

	"voicebridge/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

// The telephony provider dials this endpoint directly; there is no browser
// origin to check.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(*http.Request) bool { return true },
}

// Handler upgrades media-stream requests and hands each connection to the
// bridge. The handler blocks for the lifetime of the call.
type Handler struct {
	bridge *Bridge
}

func NewHandler(bridge *Bridge) *Handler {
	return &Handler{bridge: bridge}
}

func (h *Handler) Register(r gin.IRoutes) {
	r.GET("/media-stream", h.HandleMediaStream)
}

func (h *Handler) HandleMediaStream(c *gin.Context) {
	log := logger.FromGin(c)

	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Warn("media stream upgrade failed", "err", err)
		return
	}

	if err := h.bridge.Run(c.Request.Context(), NewTelephonyConn(ws, startEventTimeout)); err != nil {
		log.Warn("media relay ended with error", "err", err)
	}
}
