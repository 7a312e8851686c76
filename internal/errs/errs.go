// Package errs 定义了文档流水线与检索链路的错误分类。
// 各层统一通过 errors.Is / errors.As 判断错误类别，避免字符串匹配。
package errs

import (
	"errors"
	"fmt"
)

// ErrUnsupportedFileType 表示上传的文件扩展名不在支持列表中。
var ErrUnsupportedFileType = errors.New("不支持的文件类型")

// ErrNotFound 表示文档/分块/会话查询未命中。
var ErrNotFound = errors.New("记录不存在")

// FetchError 表示对象存储或网络取数失败。
type FetchError struct {
	Object string
	Err    error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("获取对象 %s 失败: %v", e.Object, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// ExtractionError 表示按格式解析文档文本失败。
type ExtractionError struct {
	FileName string
	Err      error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("提取文件 %s 文本失败: %v", e.FileName, e.Err)
}

func (e *ExtractionError) Unwrap() error { return e.Err }

// EmbeddingError 表示向量化在重试耗尽后仍然失败。
type EmbeddingError struct {
	Attempts int
	Err      error
}

func (e *EmbeddingError) Error() string {
	return fmt.Sprintf("向量化失败(尝试 %d 次): %v", e.Attempts, e.Err)
}

func (e *EmbeddingError) Unwrap() error { return e.Err }

// VectorSearchError 表示向量检索失败。
type VectorSearchError struct {
	Err error
}

func (e *VectorSearchError) Error() string {
	return fmt.Sprintf("向量检索失败: %v", e.Err)
}

func (e *VectorSearchError) Unwrap() error { return e.Err }

// CompletionError 表示调用大模型生成回答失败。
type CompletionError struct {
	Err error
}

func (e *CompletionError) Error() string {
	return fmt.Sprintf("生成回答失败: %v", e.Err)
}

func (e *CompletionError) Unwrap() error { return e.Err }

// IsEmbeddingError 判断错误链上是否存在 EmbeddingError。
func IsEmbeddingError(err error) bool {
	var ee *EmbeddingError
	return errors.As(err, &ee)
}
