package httpapi

import (
	"net/http"

	"voicebridge/internal/conversation"
	"voicebridge/internal/session"
	"voicebridge/pkg/logger"

	"github.com/gin-gonic/gin"
)

// OperatorHandlers is the JWT-protected surface for operations staff:
// live call inspection and conversation-record management (including the
// delete path used for data-removal requests).
type OperatorHandlers struct {
	sessions *session.Registry
	store    *conversation.Store
}

func NewOperatorHandlers(sessions *session.Registry, store *conversation.Store) *OperatorHandlers {
	return &OperatorHandlers{sessions: sessions, store: store}
}

func (h *OperatorHandlers) Register(r gin.IRoutes) {
	r.GET("/calls", h.ListCalls)
	r.GET("/conversations/:identity", h.GetConversation)
	r.DELETE("/conversations/:identity", h.DeleteConversation)
}

func (h *OperatorHandlers) ListCalls(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"calls": h.sessions.Snapshot()})
}

func (h *OperatorHandlers) GetConversation(c *gin.Context) {
	identity := c.Param("identity")
	rec, ok := h.store.Lookup(c.Request.Context(), identity)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "no conversation for identity"})
		return
	}
	c.JSON(http.StatusOK, rec)
}

func (h *OperatorHandlers) DeleteConversation(c *gin.Context) {
	identity := c.Param("identity")
	if err := h.store.Forget(c.Request.Context(), identity); err != nil {
		logger.FromGin(c).Error("conversation delete failed", "identity", identity, "err", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "delete failed"})
		return
	}
	c.Status(http.StatusNoContent)
}
