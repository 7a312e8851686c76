// Package tasks defines the structure for tasks that are sent to Kafka.
package tasks

// DocumentIngestTask 是投递到 Kafka 的文档摄取任务。
// 上传接口在对象落盘后即返回，摄取由后台消费者异步驱动。
type DocumentIngestTask struct {
	DocumentID string `json:"document_id"`
	ObjectName string `json:"object_name"`
	FileName   string `json:"file_name"`
}
