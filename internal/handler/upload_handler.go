// Package handler 包含了处理 HTTP 请求的控制器逻辑。
package handler

import (
	"errors"
	"net/http"

	"zhiwen-go/internal/errs"
	"zhiwen-go/internal/service"
	"zhiwen-go/pkg/log"

	"github.com/gin-gonic/gin"
)

// UploadHandler 负责处理所有与文件上传相关的 API 请求。
type UploadHandler struct {
	uploadService service.UploadService
}

// NewUploadHandler 创建一个新的 UploadHandler 实例。
func NewUploadHandler(uploadService service.UploadService) *UploadHandler {
	return &UploadHandler{uploadService: uploadService}
}

// Upload 处理文档上传请求。接受 multipart 表单中的 file 字段，
// 成功后立即返回 pending/uploaded 状态的文档，摄取在后台异步进行。
func (h *UploadHandler) Upload(c *gin.Context) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "缺少 file 字段"})
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		log.Error("Upload: 打开上传文件失败", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "读取上传文件失败"})
		return
	}
	defer file.Close()

	doc, err := h.uploadService.Upload(c.Request.Context(), fileHeader.Filename, fileHeader.Size, file)
	if err != nil {
		if errors.Is(err, errs.ErrUnsupportedFileType) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		log.Error("Upload: 上传文档失败", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "上传文档失败"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"code":    http.StatusOK,
		"message": "上传成功，文档已进入处理队列",
		"data":    doc,
	})
}
