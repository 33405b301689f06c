package handler

import (
	"context"

	"github.com/gin-gonic/gin"

	"gopherai-study/internal/app"
	"gopherai-study/internal/model"
	"gopherai-study/internal/transport/http/response"
)

type QuizGenerator interface {
	Generate(ctx context.Context, input app.QuizInput) (*app.QuizResult, error)
	ListSectionQuestions(ctx context.Context, sessionID, sectionID string) ([]model.Question, error)
}

type QuizHandler struct {
	quiz QuizGenerator
}

type GenerateQuizRequest struct {
	SectionIDs []string `json:"section_ids"`
	Query      string   `json:"query"`
	Count      int      `json:"count" binding:"required"`
	Difficulty string   `json:"difficulty" binding:"omitempty,oneof=easy medium hard"`
}

func NewQuizHandler(quiz QuizGenerator) *QuizHandler {
	return &QuizHandler{quiz: quiz}
}

func (h *QuizHandler) Generate(c *gin.Context) {
	var req GenerateQuizRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, 400, response.CodeBadRequest, "invalid request payload")
		return
	}
	result, err := h.quiz.Generate(c.Request.Context(), app.QuizInput{
		SessionID:  c.Param("session_id"),
		SectionIDs: req.SectionIDs,
		Query:      req.Query,
		Count:      req.Count,
		Difficulty: req.Difficulty,
	})
	if err != nil {
		writeServiceError(c, err, "generate quiz failed")
		return
	}
	response.OK(c, result)
}

func (h *QuizHandler) ListSectionQuestions(c *gin.Context) {
	questions, err := h.quiz.ListSectionQuestions(c.Request.Context(), c.Param("session_id"), c.Param("section_id"))
	if err != nil {
		writeServiceError(c, err, "list questions failed")
		return
	}
	response.OK(c, questions)
}
