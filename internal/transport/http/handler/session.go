package handler

import (
	"context"

	"github.com/gin-gonic/gin"

	"gopherai-study/internal/transport/http/response"
)

type SessionLifecycle interface {
	Heartbeat(ctx context.Context, sessionID string, userID *uint) error
	Teardown(ctx context.Context, sessionID string) error
}

type SessionHandler struct {
	lifecycle SessionLifecycle
}

func NewSessionHandler(lifecycle SessionLifecycle) *SessionHandler {
	return &SessionHandler{lifecycle: lifecycle}
}

func (h *SessionHandler) Heartbeat(c *gin.Context) {
	sessionID := c.Param("session_id")
	if err := h.lifecycle.Heartbeat(c.Request.Context(), sessionID, getUserIDFromContext(c)); err != nil {
		writeServiceError(c, err, "heartbeat failed")
		return
	}
	response.OK(c, gin.H{"session_id": sessionID})
}

// Teardown evicts the session immediately. Unknown sessions succeed.
func (h *SessionHandler) Teardown(c *gin.Context) {
	sessionID := c.Param("session_id")
	if err := h.lifecycle.Teardown(c.Request.Context(), sessionID); err != nil {
		writeServiceError(c, err, "teardown failed")
		return
	}
	response.OK(c, gin.H{"deleted_session_id": sessionID})
}
