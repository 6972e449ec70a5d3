package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"coursetutor/internal/app"
	"coursetutor/internal/transport/http/response"
)

type Asker interface {
	Ask(ctx context.Context, courseID uint, question string) app.AnswerResult
}

// AnswerHandler serves both the strict tutor and the study companion.
type AnswerHandler struct {
	tutor     Asker
	companion Asker
}

type AskRequest struct {
	Question string `json:"question" binding:"required,max=2000"`
}

func NewAnswerHandler(tutor, companion Asker) *AnswerHandler {
	return &AnswerHandler{tutor: tutor, companion: companion}
}

func (h *AnswerHandler) Tutor(c *gin.Context) {
	h.ask(c, h.tutor)
}

func (h *AnswerHandler) Companion(c *gin.Context) {
	h.ask(c, h.companion)
}

// ask always answers 200 once the request is valid; degraded states are
// carried in the result.
func (h *AnswerHandler) ask(c *gin.Context, asker Asker) {
	courseID, ok := parseID(c, "id")
	if !ok {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid course id")
		return
	}
	var req AskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid request payload")
		return
	}
	response.OK(c, asker.Ask(c.Request.Context(), courseID, req.Question))
}
