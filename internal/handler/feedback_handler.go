package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"medisecure-go/internal/model"
	"medisecure-go/internal/service"
)

// FeedbackHandler 负责接收用户对回答的反馈。
type FeedbackHandler struct {
	feedbackService service.FeedbackService
}

// NewFeedbackHandler 创建一个新的 FeedbackHandler 实例。
func NewFeedbackHandler(feedbackService service.FeedbackService) *FeedbackHandler {
	return &FeedbackHandler{feedbackService: feedbackService}
}

// FeedbackRequest 定义了反馈 API 的请求体结构。
type FeedbackRequest struct {
	SessionID string `json:"sessionId"`
	Rating    int    `json:"rating" binding:"required"`
	Comment   string `json:"comment"`
	Query     string `json:"query"`
	Answer    string `json:"answer"`
}

// Submit 记录一条反馈。
func (h *FeedbackHandler) Submit(c *gin.Context) {
	var req FeedbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "rating 不能为空"})
		return
	}

	user, ok := currentUser(c)
	if !ok {
		return
	}

	feedback, err := h.feedbackService.Submit(&model.Feedback{
		SessionID: req.SessionID,
		UserID:    user.ID,
		Rating:    req.Rating,
		Comment:   req.Comment,
		Query:     req.Query,
		Answer:    req.Answer,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"code":    http.StatusOK,
		"data":    gin.H{"feedbackId": feedback.FeedbackID},
		"message": "success",
	})
}
