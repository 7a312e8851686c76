package model

import "time"

// 分块的向量化状态。
const (
	ChunkStatusPending  = "pending"
	ChunkStatusEmbedded = "embedded"
	ChunkStatusDegraded = "degraded"
	ChunkStatusFailed   = "failed"
)

// Chunk 对应于数据库中的 chunks 表。
// OriginalText 保存分块在归一化之前的原文，用于引用展示时不二次改写；
// StartLine/EndLine 为原文中的 1 起始行号，行号恢复失败时为 nil。
// 分块只追加不修改；删除文档时级联删除其全部分块。
type Chunk struct {
	ID           uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	DocumentID   string    `gorm:"type:varchar(36);not null;index" json:"documentId"`
	ChunkIndex   int       `gorm:"not null" json:"chunkIndex"`
	Content      string    `gorm:"type:text" json:"content"`
	OriginalText string    `gorm:"type:text" json:"-"`
	StartLine    *int      `json:"startLine,omitempty"`
	EndLine      *int      `json:"endLine,omitempty"`
	Status       string    `gorm:"type:varchar(20);not null;default:pending" json:"status"`
	ModelVersion string    `gorm:"type:varchar(50)" json:"-"`
	CreatedAt    time.Time `gorm:"autoCreateTime" json:"createdAt"`
}

// TableName 指定了此模型在数据库中对应的表名。
func (Chunk) TableName() string {
	return "chunks"
}

// EsChunk 定义了存储在 Elasticsearch 中的分块向量文档结构。
// 行号为 0 表示该分块没有可用的行号元数据。
type EsChunk struct {
	VectorID     string    `json:"vector_id"`
	DocumentID   string    `json:"document_id"`
	ChunkIndex   int       `json:"chunk_index"`
	Content      string    `json:"content"`
	Vector       []float32 `json:"vector"`
	StartLine    int       `json:"start_line"`
	EndLine      int       `json:"end_line"`
	ModelVersion string    `json:"model_version"`
	Degraded     bool      `json:"degraded"`
}

// RetrievedChunk 是检索引擎返回的单条结果。
type RetrievedChunk struct {
	DocumentID    string  `json:"documentId"`
	DocumentTitle string  `json:"documentTitle"`
	ChunkIndex    int     `json:"chunkIndex"`
	Content       string  `json:"content"`
	OriginalText  string  `json:"-"`
	StartLine     int     `json:"startLine,omitempty"`
	EndLine       int     `json:"endLine,omitempty"`
	Score         float64 `json:"score"`
	Degraded      bool    `json:"degraded,omitempty"`
}
