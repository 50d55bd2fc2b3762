package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"medisecure-go/internal/service"
	"medisecure-go/pkg/log"
)

// AdminHandler 负责管理端接口：重建索引与状态统计。
type AdminHandler struct {
	adminService service.AdminService
}

// NewAdminHandler 创建一个新的 AdminHandler 实例。
func NewAdminHandler(adminService service.AdminService) *AdminHandler {
	return &AdminHandler{adminService: adminService}
}

// Reindex 为语料桶内的全部对象投递索引任务。
func (h *AdminHandler) Reindex(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}

	produced, err := h.adminService.Reindex(c.Request.Context(), user.ID)
	if err != nil {
		respondError(c, err)
		return
	}

	log.Infof("[AdminHandler] 管理员 %s 触发重建索引, 任务数: %d", user.Username, produced)
	c.JSON(http.StatusOK, gin.H{
		"code":    http.StatusOK,
		"data":    gin.H{"tasks": produced},
		"message": "重建索引任务已投递",
	})
}

// Stats 返回索引、分块与会话统计。
func (h *AdminHandler) Stats(c *gin.Context) {
	stats, err := h.adminService.Stats(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "data": stats, "message": "success"})
}
