package service

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"zhiwen-go/internal/errs"
	"zhiwen-go/internal/model"
	"zhiwen-go/internal/repository"
	"zhiwen-go/pkg/log"
	"zhiwen-go/pkg/storage"
	"zhiwen-go/pkg/tasks"

	"github.com/google/uuid"
)

// 支持的上传文件扩展名。校验只看扩展名；实际内容类型由提取阶段的 Tika 检测兜底。
var supportedFileTypes = map[string]bool{
	".pdf":  true,
	".doc":  true,
	".docx": true,
	".ppt":  true,
	".pptx": true,
	".xls":  true,
	".xlsx": true,
	".csv":  true,
	".txt":  true,
	".md":   true,
	".html": true,
}

// UploadService 定义了文档上传的业务接口。
type UploadService interface {
	// Upload 接收文件并启动异步摄取：校验类型、存入对象存储、
	// 建立 pending 记录、推进到 uploaded、投递摄取任务。
	Upload(ctx context.Context, fileName string, size int64, reader io.Reader) (*model.Document, error)
}

type uploadService struct {
	docRepo repository.DocumentRepository
	store   storage.Store
	produce TaskProducer
}

// NewUploadService 创建一个新的 UploadService 实例。
func NewUploadService(docRepo repository.DocumentRepository, store storage.Store, produce TaskProducer) UploadService {
	return &uploadService{docRepo: docRepo, store: store, produce: produce}
}

func (s *uploadService) Upload(ctx context.Context, fileName string, size int64, reader io.Reader) (*model.Document, error) {
	ext := strings.ToLower(filepath.Ext(fileName))
	if !supportedFileTypes[ext] {
		return nil, fmt.Errorf("%w: %s", errs.ErrUnsupportedFileType, ext)
	}

	docID := uuid.NewString()
	objectName := docID + ext
	title := strings.TrimSuffix(filepath.Base(fileName), ext)

	doc := &model.Document{
		ID:         docID,
		Title:      title,
		Status:     model.StatusPending,
		ObjectName: objectName,
		Meta: model.DocumentMeta{
			FileName: model.String(fileName),
			FileType: model.String(ext),
			Size:     model.Int64(size),
		},
	}
	if err := s.docRepo.Create(doc); err != nil {
		return nil, fmt.Errorf("创建文档记录失败: %w", err)
	}

	if err := s.store.Put(ctx, objectName, reader, size); err != nil {
		s.markUploadFailed(docID, err)
		return nil, fmt.Errorf("上传文件到对象存储失败: %w", err)
	}
	if err := s.docRepo.TransitionStatus(docID, model.StatusUploaded); err != nil {
		return nil, err
	}
	doc.Status = model.StatusUploaded

	task := tasks.DocumentIngestTask{
		DocumentID: docID,
		ObjectName: objectName,
		FileName:   fileName,
	}
	if err := s.produce(task); err != nil {
		// 文件已落盘但任务没发出去，置为 error 让用户感知并重新上传
		s.markUploadFailed(docID, err)
		return nil, fmt.Errorf("投递摄取任务失败: %w", err)
	}

	log.Infof("文档上传成功并已投递摄取任务: id=%s, file=%s", docID, fileName)
	return doc, nil
}

// markUploadFailed 把上传失败的文档置为 error 终态并记录原因。
func (s *uploadService) markUploadFailed(docID string, cause error) {
	now := time.Now()
	if err := s.docRepo.MergeMeta(docID, model.DocumentMeta{
		ErrorMessage: model.String(cause.Error()),
		ErrorAt:      model.Time(now),
	}); err != nil {
		log.Errorf("记录文档 %s 上传失败元数据失败: %v", docID, err)
	}
	if err := s.docRepo.TransitionStatus(docID, model.StatusError); err != nil {
		log.Errorf("迁移文档 %s 到 error 状态失败: %v", docID, err)
	}
}
