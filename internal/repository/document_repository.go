// Package repository 定义了与数据库进行数据交换的接口和实现。
package repository

import (
	"errors"
	"fmt"

	"zhiwen-go/internal/errs"
	"zhiwen-go/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// DocumentRepository 接口定义了文档记录的数据持久化操作。
type DocumentRepository interface {
	Create(doc *model.Document) error
	FindByID(id string) (*model.Document, error)
	FindAll() ([]model.Document, error)
	UpdateContent(id string, content string) error
	// TransitionStatus 校验并推进文档状态。状态只能沿序列前进或跳转到 error。
	TransitionStatus(id string, next model.ProcessingStatus) error
	// MergeMeta 以读-合并-写方式更新类型化元数据记录。
	// 这是元数据的唯一写入口，禁止任何调用方整体覆盖元数据字段。
	MergeMeta(id string, patch model.DocumentMeta) error
	// Delete 删除文档及其全部分块（级联不变量）。
	Delete(id string) error
}

// documentRepository 是 DocumentRepository 接口的 GORM 实现。
type documentRepository struct {
	db *gorm.DB
}

// NewDocumentRepository 创建一个新的 DocumentRepository 实例。
func NewDocumentRepository(db *gorm.DB) DocumentRepository {
	return &documentRepository{db: db}
}

// Create 在数据库中创建一条新的文档记录。
func (r *documentRepository) Create(doc *model.Document) error {
	return r.db.Create(doc).Error
}

// FindByID 根据 ID 检索文档记录。
func (r *documentRepository) FindByID(id string) (*model.Document, error) {
	var doc model.Document
	err := r.db.Where("id = ?", id).First(&doc).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errs.ErrNotFound
		}
		return nil, err
	}
	return &doc, nil
}

// FindAll 返回全部文档记录，最近创建的在前。
func (r *documentRepository) FindAll() ([]model.Document, error) {
	var docs []model.Document
	err := r.db.Order("created_at desc").Find(&docs).Error
	return docs, err
}

// UpdateContent 写入提取阶段产出的文档正文。
func (r *documentRepository) UpdateContent(id string, content string) error {
	return r.db.Model(&model.Document{}).Where("id = ?", id).Update("content", content).Error
}

// TransitionStatus 在行锁保护下校验状态迁移并更新状态列。
func (r *documentRepository) TransitionStatus(id string, next model.ProcessingStatus) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		var doc model.Document
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ?", id).First(&doc).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return errs.ErrNotFound
			}
			return err
		}
		if !doc.Status.CanTransitionTo(next) {
			return fmt.Errorf("文档 %s 不允许从 %s 迁移到 %s", id, doc.Status, next)
		}
		return tx.Model(&model.Document{}).Where("id = ?", id).
			Update("status", next).Error
	})
}

// MergeMeta 在行锁保护下读出元数据、合并补丁后写回，避免并发写互相覆盖。
func (r *documentRepository) MergeMeta(id string, patch model.DocumentMeta) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		var doc model.Document
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ?", id).First(&doc).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return errs.ErrNotFound
			}
			return err
		}
		doc.Meta.Merge(patch)
		return tx.Model(&model.Document{}).Where("id = ?", id).
			Update("meta", doc.Meta).Error
	})
}

// Delete 在一个事务里删除文档及其分块记录。
func (r *documentRepository) Delete(id string) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("document_id = ?", id).Delete(&model.Chunk{}).Error; err != nil {
			return err
		}
		res := tx.Where("id = ?", id).Delete(&model.Document{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return errs.ErrNotFound
		}
		return nil
	})
}
