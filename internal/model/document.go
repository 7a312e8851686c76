// Package model 定义了与数据库表对应的 Go 结构体。
package model

import "time"

// ProcessingStatus 表示文档在摄取流水线中的状态。
type ProcessingStatus string

const (
	StatusPending    ProcessingStatus = "pending"
	StatusUploaded   ProcessingStatus = "uploaded"
	StatusProcessing ProcessingStatus = "processing"
	StatusChunking   ProcessingStatus = "chunking"
	StatusEmbedding  ProcessingStatus = "embedding"
	StatusComplete   ProcessingStatus = "complete"
	StatusError      ProcessingStatus = "error"
)

// statusOrder 定义了状态机的前进顺序。error 是旁路状态，不在序列中。
var statusOrder = map[ProcessingStatus]int{
	StatusPending:    0,
	StatusUploaded:   1,
	StatusProcessing: 2,
	StatusChunking:   3,
	StatusEmbedding:  4,
	StatusComplete:   5,
}

// CanTransitionTo 判断状态是否允许迁移到 next。
// 状态只能沿序列逐级前进，或从任意状态跳转到 error；不允许回退或跳级。
func (s ProcessingStatus) CanTransitionTo(next ProcessingStatus) bool {
	if next == StatusError {
		return s != StatusError
	}
	cur, ok := statusOrder[s]
	if !ok {
		return false
	}
	nxt, ok := statusOrder[next]
	if !ok {
		return false
	}
	return nxt == cur+1
}

// IsTerminal 判断状态是否为终态（complete 或 error）。
func (s ProcessingStatus) IsTerminal() bool {
	return s == StatusComplete || s == StatusError
}

// Document 对应于数据库中的 documents 表。
// Content 在流水线推进过程中由提取阶段写入；Meta 为类型化元数据记录，
// 所有写入方必须通过 DocumentRepository.MergeMeta 以读-合并-写方式更新。
type Document struct {
	ID         string           `gorm:"type:varchar(36);primaryKey" json:"id"`
	Title      string           `gorm:"type:varchar(255);not null" json:"title"`
	Content    string           `gorm:"type:longtext" json:"-"`
	Status     ProcessingStatus `gorm:"type:varchar(20);not null;index" json:"status"`
	ObjectName string           `gorm:"type:varchar(255)" json:"-"`
	Meta       DocumentMeta     `gorm:"type:json;serializer:json" json:"meta"`
	CreatedAt  time.Time        `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt  time.Time        `gorm:"autoUpdateTime" json:"updatedAt"`
}

// TableName 指定了此模型在数据库中对应的表名。
func (Document) TableName() string {
	return "documents"
}

// DocumentMeta 是文档的类型化元数据记录。
// 所有字段均为可选指针：合并时仅覆盖补丁中非 nil 的字段，避免盲写覆盖并发写入的键。
type DocumentMeta struct {
	FileName         *string    `json:"fileName,omitempty"`
	FileType         *string    `json:"fileType,omitempty"`
	Size             *int64     `json:"size,omitempty"`
	DetectedType     *string    `json:"detectedType,omitempty"`
	PageCount        *int       `json:"pageCount,omitempty"`
	Progress         *int       `json:"processingProgress,omitempty"`
	TotalChunks      *int       `json:"totalChunks,omitempty"`
	SuccessfulChunks *int       `json:"successfulChunks,omitempty"`
	DegradedChunks   *int       `json:"degradedChunks,omitempty"`
	ErrorMessage     *string    `json:"errorMessage,omitempty"`
	ErrorAt          *time.Time `json:"errorAt,omitempty"`
	CompletedAt      *time.Time `json:"completedAt,omitempty"`
}

// Merge 将补丁中非 nil 的字段合并进当前记录。这是元数据的唯一合并入口。
func (m *DocumentMeta) Merge(patch DocumentMeta) {
	if patch.FileName != nil {
		m.FileName = patch.FileName
	}
	if patch.FileType != nil {
		m.FileType = patch.FileType
	}
	if patch.Size != nil {
		m.Size = patch.Size
	}
	if patch.DetectedType != nil {
		m.DetectedType = patch.DetectedType
	}
	if patch.PageCount != nil {
		m.PageCount = patch.PageCount
	}
	if patch.Progress != nil {
		m.Progress = patch.Progress
	}
	if patch.TotalChunks != nil {
		m.TotalChunks = patch.TotalChunks
	}
	if patch.SuccessfulChunks != nil {
		m.SuccessfulChunks = patch.SuccessfulChunks
	}
	if patch.DegradedChunks != nil {
		m.DegradedChunks = patch.DegradedChunks
	}
	if patch.ErrorMessage != nil {
		m.ErrorMessage = patch.ErrorMessage
	}
	if patch.ErrorAt != nil {
		m.ErrorAt = patch.ErrorAt
	}
	if patch.CompletedAt != nil {
		m.CompletedAt = patch.CompletedAt
	}
}

// String 返回字符串指针，用于构造元数据补丁。
func String(s string) *string { return &s }

// Int 返回整型指针，用于构造元数据补丁。
func Int(i int) *int { return &i }

// Int64 返回 int64 指针，用于构造元数据补丁。
func Int64(i int64) *int64 { return &i }

// Time 返回时间指针，用于构造元数据补丁。
func Time(t time.Time) *time.Time { return &t }

// DocumentStatusDTO 是轮询接口返回的文档状态视图。
type DocumentStatusDTO struct {
	DocumentID       string           `json:"documentId"`
	Status           ProcessingStatus `json:"status"`
	Progress         int              `json:"progress"`
	TotalChunks      int              `json:"totalChunks"`
	SuccessfulChunks int              `json:"successfulChunks"`
	DegradedChunks   int              `json:"degradedChunks"`
	Error            string           `json:"error,omitempty"`
	ErrorAt          *time.Time       `json:"errorAt,omitempty"`
	CompletedAt      *time.Time       `json:"completedAt,omitempty"`
}

// StatusDTO 将文档及其元数据组装为轮询视图。
func (d *Document) StatusDTO() DocumentStatusDTO {
	dto := DocumentStatusDTO{
		DocumentID: d.ID,
		Status:     d.Status,
	}
	if d.Meta.Progress != nil {
		dto.Progress = *d.Meta.Progress
	}
	if d.Meta.TotalChunks != nil {
		dto.TotalChunks = *d.Meta.TotalChunks
	}
	if d.Meta.SuccessfulChunks != nil {
		dto.SuccessfulChunks = *d.Meta.SuccessfulChunks
	}
	if d.Meta.DegradedChunks != nil {
		dto.DegradedChunks = *d.Meta.DegradedChunks
	}
	if d.Meta.ErrorMessage != nil {
		dto.Error = *d.Meta.ErrorMessage
	}
	dto.ErrorAt = d.Meta.ErrorAt
	dto.CompletedAt = d.Meta.CompletedAt
	return dto
}
