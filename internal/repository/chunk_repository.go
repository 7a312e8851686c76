package repository

import (
	"zhiwen-go/internal/model"

	"gorm.io/gorm"
)

// ChunkRepository 定义了对 chunks 表的数据操作接口。分块只追加，不做行级修改
// （向量化状态列除外）。
type ChunkRepository interface {
	BatchCreate(chunks []*model.Chunk) error
	FindByDocumentID(documentID string) ([]*model.Chunk, error)
	FindByDocumentAndIndex(documentID string, chunkIndex int) (*model.Chunk, error)
	UpdateStatus(chunkID uint, status string) error
	DeleteByDocumentID(documentID string) error
}

type chunkRepository struct {
	db *gorm.DB
}

// NewChunkRepository 创建一个新的 ChunkRepository 实例。
func NewChunkRepository(db *gorm.DB) ChunkRepository {
	return &chunkRepository{db: db}
}

// BatchCreate 批量创建分块记录。
func (r *chunkRepository) BatchCreate(chunks []*model.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}
	return r.db.CreateInBatches(chunks, 100).Error
}

// FindByDocumentID 按分块序号升序返回某文档的全部分块。
func (r *chunkRepository) FindByDocumentID(documentID string) ([]*model.Chunk, error) {
	var chunks []*model.Chunk
	err := r.db.Where("document_id = ?", documentID).
		Order("chunk_index asc").Find(&chunks).Error
	return chunks, err
}

// FindByDocumentAndIndex 查找某文档的指定分块。
func (r *chunkRepository) FindByDocumentAndIndex(documentID string, chunkIndex int) (*model.Chunk, error) {
	var chunk model.Chunk
	err := r.db.Where("document_id = ? AND chunk_index = ?", documentID, chunkIndex).
		First(&chunk).Error
	if err != nil {
		return nil, err
	}
	return &chunk, nil
}

// UpdateStatus 更新单个分块的向量化状态。
func (r *chunkRepository) UpdateStatus(chunkID uint, status string) error {
	return r.db.Model(&model.Chunk{}).Where("id = ?", chunkID).
		Update("status", status).Error
}

// DeleteByDocumentID 删除某文档的全部分块记录（重新摄取前的幂等清理）。
func (r *chunkRepository) DeleteByDocumentID(documentID string) error {
	return r.db.Where("document_id = ?", documentID).Delete(&model.Chunk{}).Error
}
