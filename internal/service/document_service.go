package service

import (
	"context"
	"fmt"
	"time"

	"zhiwen-go/internal/model"
	"zhiwen-go/internal/repository"
	"zhiwen-go/pkg/log"
	"zhiwen-go/pkg/storage"
	"zhiwen-go/pkg/tasks"
)

// VectorDeleter 抽象向量索引的删除端，生产实现为 ES 客户端。
type VectorDeleter interface {
	DeleteByDocumentID(ctx context.Context, documentID string) error
}

// TaskProducer 把摄取任务投递到消息队列。
type TaskProducer func(task tasks.DocumentIngestTask) error

// DocumentService 定义了文档管理的业务接口。
type DocumentService interface {
	List(ctx context.Context) ([]model.Document, error)
	// Status 返回文档的处理状态视图，供前端轮询。
	Status(ctx context.Context, id string) (model.DocumentStatusDTO, error)
	// Delete 级联删除文档：向量索引、分块记录、文档记录、对象存储文件。
	Delete(ctx context.Context, id string) error
	// DownloadURL 返回原始文件的预签名下载地址。
	DownloadURL(ctx context.Context, id string) (string, error)
	// Reingest 重新投递摄取任务。只对停留在 uploaded 状态的文档有效
	// （如消息丢失导致的摄取未启动）；其余状态需要重新上传。
	Reingest(ctx context.Context, id string) error
}

type documentService struct {
	docRepo   repository.DocumentRepository
	chunkRepo repository.ChunkRepository
	store     storage.Store
	deleter   VectorDeleter
	produce   TaskProducer
}

// NewDocumentService 创建一个新的 DocumentService 实例。
func NewDocumentService(
	docRepo repository.DocumentRepository,
	chunkRepo repository.ChunkRepository,
	store storage.Store,
	deleter VectorDeleter,
	produce TaskProducer,
) DocumentService {
	return &documentService{
		docRepo:   docRepo,
		chunkRepo: chunkRepo,
		store:     store,
		deleter:   deleter,
		produce:   produce,
	}
}

// List 返回全部文档，最近创建的在前。
func (s *documentService) List(_ context.Context) ([]model.Document, error) {
	return s.docRepo.FindAll()
}

// Status 返回轮询视图。
func (s *documentService) Status(_ context.Context, id string) (model.DocumentStatusDTO, error) {
	doc, err := s.docRepo.FindByID(id)
	if err != nil {
		return model.DocumentStatusDTO{}, err
	}
	return doc.StatusDTO(), nil
}

// Delete 级联删除文档的全部痕迹。
// 先删向量索引，再删数据库记录，最后删对象存储文件；
// 对象文件删除失败只记日志，不阻塞整体删除。
func (s *documentService) Delete(ctx context.Context, id string) error {
	doc, err := s.docRepo.FindByID(id)
	if err != nil {
		return err
	}

	if err := s.deleter.DeleteByDocumentID(ctx, id); err != nil {
		return fmt.Errorf("删除文档 %s 的向量索引失败: %w", id, err)
	}
	if err := s.docRepo.Delete(id); err != nil {
		return err
	}
	if doc.ObjectName != "" {
		if err := s.store.Remove(ctx, doc.ObjectName); err != nil {
			log.Errorf("删除文档 %s 的对象文件 %s 失败: %v", id, doc.ObjectName, err)
		}
	}
	log.Infof("文档 %s 已删除", id)
	return nil
}

// DownloadURL 返回原始文件的预签名地址，有效期 1 小时。
func (s *documentService) DownloadURL(ctx context.Context, id string) (string, error) {
	doc, err := s.docRepo.FindByID(id)
	if err != nil {
		return "", err
	}
	if doc.ObjectName == "" {
		return "", fmt.Errorf("文档 %s 没有关联的对象文件", id)
	}
	return s.store.PresignedURL(ctx, doc.ObjectName, time.Hour)
}

// Reingest 为 uploaded 状态的文档重新投递摄取任务。
func (s *documentService) Reingest(_ context.Context, id string) error {
	doc, err := s.docRepo.FindByID(id)
	if err != nil {
		return err
	}
	if doc.Status != model.StatusUploaded {
		return fmt.Errorf("文档 %s 当前状态为 %s，只有 uploaded 状态可重新投递，其余状态请重新上传", id, doc.Status)
	}
	fileName := doc.Title
	if doc.Meta.FileName != nil {
		fileName = *doc.Meta.FileName
	}
	return s.produce(tasks.DocumentIngestTask{
		DocumentID: doc.ID,
		ObjectName: doc.ObjectName,
		FileName:   fileName,
	})
}
