package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"zhiwen-go/internal/config"
	"zhiwen-go/internal/errs"
	"zhiwen-go/pkg/log"
)

// localStore 是 Store 的本地磁盘实现，仅用于无 MinIO 的开发环境。
type localStore struct {
	baseDir string
}

// NewLocal 创建本地磁盘存储，对象写入 baseDir 下。
func NewLocal(baseDir string) (Store, error) {
	if baseDir == "" {
		baseDir = "./data/objects"
	}
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("创建本地存储目录失败: %w", err)
	}
	log.Infof("本地对象存储初始化成功, dir: %s", baseDir)
	return &localStore{baseDir: baseDir}, nil
}

// New 根据启动时解析的 StorageConfig 构造对应的存储后端。
func New(cfg config.StorageConfig) (Store, error) {
	if cfg.Mode == "local" {
		return NewLocal("./data/objects")
	}
	return NewMinIO(cfg)
}

func (s *localStore) path(objectName string) string {
	return filepath.Join(s.baseDir, filepath.FromSlash(objectName))
}

func (s *localStore) Put(ctx context.Context, objectName string, reader io.Reader, size int64) error {
	p := s.path(objectName)
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return &errs.FetchError{Object: objectName, Err: err}
	}
	f, err := os.Create(p)
	if err != nil {
		return &errs.FetchError{Object: objectName, Err: err}
	}
	defer f.Close()
	if _, err := io.Copy(f, reader); err != nil {
		return &errs.FetchError{Object: objectName, Err: err}
	}
	return nil
}

func (s *localStore) Get(ctx context.Context, objectName string) ([]byte, error) {
	data, err := os.ReadFile(s.path(objectName))
	if err != nil {
		return nil, &errs.FetchError{Object: objectName, Err: err}
	}
	return data, nil
}

func (s *localStore) Remove(ctx context.Context, objectName string) error {
	return os.Remove(s.path(objectName))
}

// PresignedURL 本地模式不支持外部直链，返回 file 路径仅供调试。
func (s *localStore) PresignedURL(ctx context.Context, objectName string, expiry time.Duration) (string, error) {
	return "file://" + s.path(objectName), nil
}
