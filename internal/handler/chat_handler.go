package handler

import (
	"net/http"

	"zhiwen-go/internal/service"
	"zhiwen-go/pkg/log"

	"github.com/gin-gonic/gin"
)

// ChatHandler 负责处理问答相关的 API 请求。
type ChatHandler struct {
	chatService service.ChatService
}

// NewChatHandler 创建一个新的 ChatHandler 实例。
func NewChatHandler(chatService service.ChatService) *ChatHandler {
	return &ChatHandler{chatService: chatService}
}

// AnswerRequest 定义了问答 API 的请求体结构。
type AnswerRequest struct {
	ConversationID string `json:"conversationId"`
	Query          string `json:"query" binding:"required"`
	DocumentID     string `json:"documentId"`
}

// Answer 处理检索增强问答请求，同步返回完整回答与引用列表。
func (h *ChatHandler) Answer(c *gin.Context) {
	var req AnswerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "无效的请求负载"})
		return
	}

	result, err := h.chatService.Answer(c.Request.Context(), req.ConversationID, req.Query, req.DocumentID)
	if err != nil {
		log.Error("Answer: 生成回答失败", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "生成回答失败"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"code":    http.StatusOK,
		"message": "回答成功",
		"data":    result,
	})
}

// History 返回指定会话的历史消息。
func (h *ChatHandler) History(c *gin.Context) {
	conversationID := c.Param("id")
	messages, err := h.chatService.History(c.Request.Context(), conversationID)
	if err != nil {
		log.Error("History: 获取会话历史失败", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "获取会话历史失败"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"code":    http.StatusOK,
		"message": "获取会话历史成功",
		"data":    messages,
	})
}
