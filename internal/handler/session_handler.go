package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"medisecure-go/internal/service"
)

// SessionHandler 负责会话历史的查询与清除。
type SessionHandler struct {
	sessionService service.SessionService
}

// NewSessionHandler 创建一个新的 SessionHandler 实例。
func NewSessionHandler(sessionService service.SessionService) *SessionHandler {
	return &SessionHandler{sessionService: sessionService}
}

// GetMessages 返回会话的消息历史。
func (h *SessionHandler) GetMessages(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}

	messages, err := h.sessionService.History(c.Request.Context(), user, c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "data": messages, "message": "success"})
}

// ClearMessages 删除会话的全部历史。
func (h *SessionHandler) ClearMessages(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}

	if err := h.sessionService.Clear(c.Request.Context(), user, c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "message": "会话已清除"})
}
