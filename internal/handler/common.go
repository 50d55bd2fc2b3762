// Package handler 包含了处理 HTTP 请求的控制器逻辑。
package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"medisecure-go/internal/errs"
	"medisecure-go/internal/model"
	"medisecure-go/pkg/log"
)

// respondError 将错误分类映射为 HTTP 状态码与用户可读消息。
// 上游错误与配置错误对外展示不同的提示，便于调用方判断是否重试。
func respondError(c *gin.Context, err error) {
	switch errs.KindOf(err) {
	case errs.KindValidation:
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errs.KindAuth:
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
	case errs.KindUpstream:
		log.Error("upstream dependency failed", err)
		c.JSON(http.StatusBadGateway, gin.H{"error": "依赖服务暂时不可用，请稍后重试"})
	case errs.KindConfiguration:
		log.Error("configuration error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "服务配置异常，请联系管理员"})
	default:
		log.Error("internal error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "内部错误"})
	}
}

// currentUser 从 Gin 上下文取出 AuthMiddleware 写入的用户对象。
func currentUser(c *gin.Context) (*model.User, bool) {
	v, exists := c.Get("user")
	if !exists {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "无法获取用户信息"})
		return nil, false
	}
	user, ok := v.(*model.User)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "用户数据类型错误"})
		return nil, false
	}
	return user, true
}
