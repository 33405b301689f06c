package handler

import (
	"context"

	"github.com/gin-gonic/gin"

	"gopherai-study/internal/app"
	"gopherai-study/internal/transport/http/response"
)

type Asker interface {
	Ask(ctx context.Context, input app.AskInput) (*app.AskResult, error)
}

type AskHandler struct {
	ask Asker
}

type AskRequest struct {
	Question   string   `json:"question" binding:"required"`
	SectionIDs []string `json:"section_ids"`
	TopK       int      `json:"top_k"`
}

func NewAskHandler(ask Asker) *AskHandler {
	return &AskHandler{ask: ask}
}

func (h *AskHandler) Ask(c *gin.Context) {
	var req AskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, 400, response.CodeBadRequest, "invalid request payload")
		return
	}
	result, err := h.ask.Ask(c.Request.Context(), app.AskInput{
		SessionID:  c.Param("session_id"),
		SectionIDs: req.SectionIDs,
		Question:   req.Question,
		TopK:       req.TopK,
	})
	if err != nil {
		writeServiceError(c, err, "ask failed")
		return
	}
	response.OK(c, result)
}
