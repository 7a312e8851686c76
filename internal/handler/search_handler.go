package handler

import (
	"net/http"
	"strconv"

	"zhiwen-go/internal/service"
	"zhiwen-go/pkg/log"

	"github.com/gin-gonic/gin"
)

// SearchHandler 负责处理语义检索相关的 API 请求。
type SearchHandler struct {
	searchService service.SearchService
}

// NewSearchHandler 创建一个新的 SearchHandler 实例。
func NewSearchHandler(searchService service.SearchService) *SearchHandler {
	return &SearchHandler{searchService: searchService}
}

// Search 处理语义检索请求。
// query 为必填；topK 缺省时由服务层取配置默认值；documentId 可选，限定单文档检索。
func (h *SearchHandler) Search(c *gin.Context) {
	query := c.Query("query")
	if query == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "缺少 query 参数"})
		return
	}
	documentID := c.Query("documentId")
	topK, _ := strconv.Atoi(c.DefaultQuery("topK", "0"))

	results, err := h.searchService.Retrieve(c.Request.Context(), query, documentID, topK)
	if err != nil {
		log.Error("Search: 检索失败", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "检索失败"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"code":    http.StatusOK,
		"message": "检索成功",
		"data":    results,
	})
}
