package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestProcessingStatus_Transitions(t *testing.T) {
	// 正常的前进序列
	sequence := []ProcessingStatus{
		StatusPending, StatusUploaded, StatusProcessing,
		StatusChunking, StatusEmbedding, StatusComplete,
	}
	for i := 0; i < len(sequence)-1; i++ {
		assert.True(t, sequence[i].CanTransitionTo(sequence[i+1]),
			"%s -> %s 应当允许", sequence[i], sequence[i+1])
	}

	// 不允许跳级或回退
	assert.False(t, StatusUploaded.CanTransitionTo(StatusComplete))
	assert.False(t, StatusPending.CanTransitionTo(StatusChunking))
	assert.False(t, StatusEmbedding.CanTransitionTo(StatusProcessing))
	assert.False(t, StatusComplete.CanTransitionTo(StatusPending))

	// 任意状态均可进入 error，但 error 不能再迁移
	for _, s := range sequence {
		assert.True(t, s.CanTransitionTo(StatusError), "%s -> error 应当允许", s)
	}
	assert.False(t, StatusError.CanTransitionTo(StatusError))
	assert.False(t, StatusError.CanTransitionTo(StatusProcessing))
}

func TestDocumentMeta_Merge(t *testing.T) {
	meta := DocumentMeta{
		FileName: String("report.pdf"),
		FileType: String(".pdf"),
		Size:     Int64(2048),
	}

	// 合并只覆盖补丁中非 nil 的字段
	meta.Merge(DocumentMeta{
		PageCount: Int(12),
		Progress:  Int(40),
	})

	assert.Equal(t, "report.pdf", *meta.FileName)
	assert.Equal(t, int64(2048), *meta.Size)
	assert.Equal(t, 12, *meta.PageCount)
	assert.Equal(t, 40, *meta.Progress)

	// 二次合并不会清空已有字段
	now := time.Now()
	meta.Merge(DocumentMeta{Progress: Int(100), CompletedAt: Time(now)})
	assert.Equal(t, 100, *meta.Progress)
	assert.Equal(t, 12, *meta.PageCount)
	assert.Equal(t, now, *meta.CompletedAt)
}

func TestDocument_StatusDTO(t *testing.T) {
	doc := Document{
		ID:     "doc-1",
		Status: StatusEmbedding,
		Meta: DocumentMeta{
			Progress:         Int(67),
			TotalChunks:      Int(9),
			SuccessfulChunks: Int(6),
		},
	}
	dto := doc.StatusDTO()
	assert.Equal(t, StatusEmbedding, dto.Status)
	assert.Equal(t, 67, dto.Progress)
	assert.Equal(t, 9, dto.TotalChunks)
	assert.Equal(t, 6, dto.SuccessfulChunks)
	assert.Empty(t, dto.Error)
}
