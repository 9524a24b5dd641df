// Package handler 存放 Gin 的 HTTP 处理器。
package handler

import (
	"net/http"
	"strings"

	"stu-insight-go/internal/service"
	"stu-insight-go/pkg/log"

	"github.com/gin-gonic/gin"
)

// QueryHandler 结构体定义了查询相关的处理器。
type QueryHandler struct {
	queryService service.QueryService
}

// NewQueryHandler 创建一个新的 QueryHandler 实例。
func NewQueryHandler(queryService service.QueryService) *QueryHandler {
	return &QueryHandler{queryService: queryService}
}

type queryRequest struct {
	Query string `json:"query" binding:"required"`
}

// Query 是处理自然语言查询请求的 Gin 处理函数。
// 业务层面的错误（无匹配、索引未建、依赖故障）都以响应契约内的 error 字段表达，
// HTTP 状态码只反映请求本身是否合法。
func (h *QueryHandler) Query(c *gin.Context) {
	var req queryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Warnf("[QueryHandler] 请求体解析失败: %v", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "请求体必须包含非空的 query 字段"})
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "query 不能为空"})
		return
	}
	log.Infof("[QueryHandler] 收到查询请求, query: %s", req.Query)

	resp := h.queryService.Answer(c.Request.Context(), req.Query)
	log.Infof("[QueryHandler] 查询完成, intent: %s, kind: %s, error: %s", resp.Intent, resp.Kind, resp.Error)
	c.JSON(http.StatusOK, resp)
}
