package handler

import (
	"errors"
	"net/http"
	"time"

	"zhiwen-go/internal/errs"
	"zhiwen-go/internal/service"
	"zhiwen-go/pkg/log"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

var progressUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// DocumentHandler 负责处理所有与文档管理相关的 API 请求。
type DocumentHandler struct {
	docService service.DocumentService
}

// NewDocumentHandler 创建一个新的 DocumentHandler 实例。
func NewDocumentHandler(docService service.DocumentService) *DocumentHandler {
	return &DocumentHandler{docService: docService}
}

// List 处理获取文档列表的请求。
func (h *DocumentHandler) List(c *gin.Context) {
	docs, err := h.docService.List(c.Request.Context())
	if err != nil {
		log.Error("List: 获取文档列表失败", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "获取文档列表失败"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"code":    http.StatusOK,
		"message": "获取文档列表成功",
		"data":    docs,
	})
}

// Status 处理文档处理状态轮询请求。
func (h *DocumentHandler) Status(c *gin.Context) {
	id := c.Param("id")
	dto, err := h.docService.Status(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "文档不存在"})
			return
		}
		log.Error("Status: 查询文档状态失败", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "查询文档状态失败"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"code":    http.StatusOK,
		"message": "查询成功",
		"data":    dto,
	})
}

// ProgressWS 通过 WebSocket 推送文档处理进度，终态后关闭连接。
func (h *DocumentHandler) ProgressWS(c *gin.Context) {
	id := c.Param("id")
	conn, err := progressUpgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error("ProgressWS: 升级 WebSocket 失败", err)
		return
	}
	defer conn.Close()

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		dto, err := h.docService.Status(c.Request.Context(), id)
		if err != nil {
			_ = conn.WriteJSON(gin.H{"error": "查询文档状态失败"})
			return
		}
		if err := conn.WriteJSON(dto); err != nil {
			return
		}
		if dto.Status.IsTerminal() {
			return
		}
		select {
		case <-c.Request.Context().Done():
			return
		case <-ticker.C:
		}
	}
}

// Delete 处理删除文档的请求。
func (h *DocumentHandler) Delete(c *gin.Context) {
	id := c.Param("id")
	if err := h.docService.Delete(c.Request.Context(), id); err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "文档不存在"})
			return
		}
		log.Error("Delete: 删除文档失败", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "删除文档失败"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"code":    http.StatusOK,
		"message": "删除成功",
	})
}

// Download 返回原始文件的预签名下载地址。
func (h *DocumentHandler) Download(c *gin.Context) {
	id := c.Param("id")
	url, err := h.docService.DownloadURL(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "文档不存在"})
			return
		}
		log.Error("Download: 获取下载地址失败", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "获取下载地址失败"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"code":    http.StatusOK,
		"message": "获取下载地址成功",
		"data":    gin.H{"url": url},
	})
}

// Reingest 为停留在 uploaded 状态的文档重新投递摄取任务。
func (h *DocumentHandler) Reingest(c *gin.Context) {
	id := c.Param("id")
	if err := h.docService.Reingest(c.Request.Context(), id); err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "文档不存在"})
			return
		}
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"code":    http.StatusOK,
		"message": "已重新投递摄取任务",
	})
}
