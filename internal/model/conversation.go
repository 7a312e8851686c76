package model

import "time"

// Citation 表示回答中引用的一处原文出处。
// 引用是响应级别的临时对象：不独立持久化，随助手消息一并写入会话历史。
// ID 由会话 ID、响应时间戳与序号拼接，保证重复生成回答时不会冲突。
type Citation struct {
	ID            string `json:"id"`
	Index         int    `json:"index"` // 1 起始的展示编号，对应回答文本中的 [n]
	DocumentID    string `json:"documentId"`
	DocumentTitle string `json:"documentTitle"`
	Text          string `json:"text"`
	StartLine     int    `json:"startLine,omitempty"`
	EndLine       int    `json:"endLine,omitempty"`
}

// ChatMessage 代表存储在 Redis 中的单条对话消息。
// 助手消息可携带引用列表；消息文本中的 [n] 必须能在 Citations 中解析，
// 解析不到的编号按未解析处理，不作为来源返回。
type ChatMessage struct {
	Role      string     `json:"role"` // "user" 或 "assistant"
	Content   string     `json:"content"`
	Citations []Citation `json:"citations,omitempty"`
	Timestamp time.Time  `json:"timestamp"`
}

// AnswerResult 是问答接口返回给调用方的最终结果。
type AnswerResult struct {
	ConversationID string     `json:"conversationId"`
	Answer         string     `json:"answer"`
	Citations      []Citation `json:"citations"`
}
