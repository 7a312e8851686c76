// Package kafka 提供了文档摄取任务的消息队列交互功能。
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"zhiwen-go/internal/config"
	"zhiwen-go/pkg/database"
	"zhiwen-go/pkg/log"
	"zhiwen-go/pkg/tasks"

	"github.com/segmentio/kafka-go"
)

// TaskProcessor defines the interface for any service that can process a task.
// This decouples the Kafka consumer from the concrete pipeline implementation.
type TaskProcessor interface {
	Process(ctx context.Context, task tasks.DocumentIngestTask) error
}

var producer *kafka.Writer

// InitProducer 初始化 Kafka 生产者。
func InitProducer(cfg config.KafkaConfig) {
	producer = &kafka.Writer{
		Addr:     kafka.TCP(cfg.Brokers),
		Topic:    cfg.Topic,
		Balancer: &kafka.LeastBytes{},
	}
	log.Info("Kafka 生产者初始化成功")
}

// ProduceIngestTask 发送一个文档摄取任务到 Kafka。
// 同一文档的任务以 DocumentID 作为 key，保证落在同一分区内按序消费。
func ProduceIngestTask(task tasks.DocumentIngestTask) error {
	taskBytes, err := json.Marshal(task)
	if err != nil {
		return err
	}

	return producer.WriteMessages(context.Background(),
		kafka.Message{
			Key:   []byte(task.DocumentID),
			Value: taskBytes,
		},
	)
}

// StartConsumer 启动一个 Kafka 消费者来驱动文档摄取。
func StartConsumer(cfg config.KafkaConfig, processor TaskProcessor) {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  []string{cfg.Brokers},
		Topic:    cfg.Topic,
		GroupID:  cfg.GroupID,
		MinBytes: 10e3, // 10KB
		MaxBytes: 10e6, // 10MB
	})

	log.Infof("Kafka 消费者已启动，正在监听主题 '%s'", cfg.Topic)

	for {
		m, err := r.FetchMessage(context.Background())
		if err != nil {
			log.Error("从 Kafka 读取消息失败", err)
			break
		}

		var task tasks.DocumentIngestTask
		if err := json.Unmarshal(m.Value, &task); err != nil {
			log.Errorf("无法解析 Kafka 消息: %v, value: %s", err, string(m.Value))
			// 消息格式错误，直接提交，避免阻塞队列
			if err := r.CommitMessages(context.Background(), m); err != nil {
				log.Errorf("提交错误消息失败: %v", err)
			}
			continue
		}

		handleTask(r, m, task, processor)
	}

	if err := r.Close(); err != nil {
		log.Fatalf("关闭 Kafka 消费者失败: %v", err)
	}
}

// handleTask 在单飞锁保护下处理一个摄取任务。
// 同一文档的并发摄取是对其元数据的写竞争，必须由消费侧用每文档锁挡住。
func handleTask(r *kafka.Reader, m kafka.Message, task tasks.DocumentIngestTask, processor TaskProcessor) {
	ctx := context.Background()

	lockKey := fmt.Sprintf("ingest:lock:%s", task.DocumentID)
	acquired, lockErr := database.RDB.SetNX(ctx, lockKey, 1, 30*time.Minute).Result()
	if lockErr != nil {
		// Redis 异常时保守处理：不提交 offset，让 Kafka 重试
		log.Errorf("获取文档摄取锁失败: DocumentID=%s, Error: %v", task.DocumentID, lockErr)
		return
	}
	if !acquired {
		log.Warnf("文档 %s 正在被其他消费者摄取，跳过本条消息", task.DocumentID)
		if err := r.CommitMessages(ctx, m); err != nil {
			log.Errorf("提交 Kafka 消息 offset 失败: %v", err)
		}
		return
	}
	defer func() {
		_ = database.RDB.Del(ctx, lockKey).Err()
	}()

	log.Infof("开始处理文档摄取任务: DocumentID=%s, FileName=%s", task.DocumentID, task.FileName)
	if err := processor.Process(ctx, task); err != nil {
		log.Errorf("处理文档摄取任务失败: DocumentID=%s, Error: %v", task.DocumentID, err)
		// 使用 Redis 计数失败次数，达到阈值后提交 offset 终止重试
		attemptsKey := fmt.Sprintf("ingest:attempts:%s", task.DocumentID)
		attempts, incErr := database.RDB.Incr(ctx, attemptsKey).Result()
		if incErr != nil {
			return
		}
		_ = database.RDB.Expire(ctx, attemptsKey, 24*time.Hour).Err()
		if attempts >= 3 {
			log.Errorf("文档摄取任务多次失败(>=3)，提交 offset 终止重试: DocumentID=%s", task.DocumentID)
			if err := r.CommitMessages(ctx, m); err != nil {
				log.Errorf("提交 Kafka 消息 offset 失败: %v", err)
			}
		}
		return
	}

	log.Infof("文档摄取任务处理成功: DocumentID=%s", task.DocumentID)
	_ = database.RDB.Del(ctx, fmt.Sprintf("ingest:attempts:%s", task.DocumentID)).Err()
	if err := r.CommitMessages(ctx, m); err != nil {
		log.Errorf("提交 Kafka 消息 offset 失败: %v", err)
	}
}
