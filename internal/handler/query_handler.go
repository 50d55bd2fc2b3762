package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"medisecure-go/internal/service"
	"medisecure-go/pkg/log"
)

// QueryHandler 负责处理问答与检索请求。
type QueryHandler struct {
	chatService  service.ChatService
	queryService service.QueryService
}

// NewQueryHandler 创建一个新的 QueryHandler 实例。
func NewQueryHandler(chatService service.ChatService, queryService service.QueryService) *QueryHandler {
	return &QueryHandler{
		chatService:  chatService,
		queryService: queryService,
	}
}

// QueryRequest 定义了问答 API 的请求体结构。
type QueryRequest struct {
	Query        string `json:"query" binding:"required"`
	TopK         int    `json:"topK"`
	Specialty    string `json:"specialty"`
	Instructions string `json:"instructions"`
	SessionID    string `json:"sessionId"`
}

// Query 处理一轮 RAG 问答：检索、生成、保存会话，返回答案与来源。
func (h *QueryHandler) Query(c *gin.Context) {
	var req QueryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "query 不能为空"})
		return
	}

	user, ok := currentUser(c)
	if !ok {
		return
	}

	log.Infof("[QueryHandler] 收到问答请求, user: %s, sessionId: '%s'", user.Username, req.SessionID)
	answer, err := h.chatService.Answer(c.Request.Context(), user, req.SessionID, req.Query, req.Instructions, req.TopK, req.Specialty)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"code": http.StatusOK,
		"data": gin.H{
			"answer":    answer.Answer,
			"sources":   answer.Sources,
			"sessionId": answer.SessionID,
		},
		"message": "success",
	})
}

// Search 只做检索，返回按相关度排序的片段列表。
func (h *QueryHandler) Search(c *gin.Context) {
	query := c.Query("query")
	topK, err := strconv.Atoi(c.DefaultQuery("topK", "0"))
	if err != nil {
		topK = 0
	}
	specialty := c.Query("specialty")

	results, err := h.queryService.Search(c.Request.Context(), query, topK, specialty)
	if err != nil {
		respondError(c, err)
		return
	}

	log.Infof("[QueryHandler] 检索成功, query: '%.60s', 返回 %d 条结果", query, len(results))
	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "data": results, "message": "success"})
}
