// Package storage 提供对象存储访问。
// 后端在启动时由 StorageConfig 解析一次（primary=MinIO，local=本地磁盘），
// 运行期间不存在可变的存储模式开关。
package storage

import (
	"context"
	"io"
	"time"
)

// Store 是对象存储的抽象：写入原始文件字节并按对象名取回。
type Store interface {
	Put(ctx context.Context, objectName string, reader io.Reader, size int64) error
	Get(ctx context.Context, objectName string) ([]byte, error)
	Remove(ctx context.Context, objectName string) error
	PresignedURL(ctx context.Context, objectName string, expiry time.Duration) (string, error)
}
