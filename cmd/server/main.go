// Package main 是应用程序的入口点。
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"zhiwen-go/internal/config"
	"zhiwen-go/internal/handler"
	"zhiwen-go/internal/middleware"
	"zhiwen-go/internal/model"
	"zhiwen-go/internal/pipeline"
	"zhiwen-go/internal/repository"
	"zhiwen-go/internal/service"
	"zhiwen-go/pkg/database"
	"zhiwen-go/pkg/embedding"
	"zhiwen-go/pkg/es"
	"zhiwen-go/pkg/kafka"
	"zhiwen-go/pkg/llm"
	"zhiwen-go/pkg/log"
	"zhiwen-go/pkg/storage"
	"zhiwen-go/pkg/tika"

	"github.com/gin-gonic/gin"
)

func main() {
	// 1. 初始化配置
	config.Init("./configs/config.yaml")
	cfg := config.Conf

	// 2. 初始化日志记录器
	log.Init(cfg.Log.Level, cfg.Log.Format, cfg.Log.OutputPath)
	defer log.Sync()
	log.Info("日志记录器初始化成功")

	// 3. 初始化数据库、Redis、对象存储、向量库
	database.InitMySQL(cfg.Database.MySQL.DSN)
	if err := database.DB.AutoMigrate(&model.Document{}, &model.Chunk{}); err != nil {
		log.Fatal("数据库表结构迁移失败", err)
	}
	database.InitRedis(cfg.Database.Redis.Addr, cfg.Database.Redis.Password, cfg.Database.Redis.DB)

	// 存储后端在启动时按配置解析一次，运行期间不可切换
	store, err := storage.New(cfg.Storage)
	if err != nil {
		log.Fatal("对象存储初始化失败", err)
	}
	esClient, err := es.NewClient(cfg.Elasticsearch, cfg.Embedding.Dimensions)
	if err != nil {
		log.Fatal("Elasticsearch 初始化失败", err)
	}
	kafka.InitProducer(cfg.Kafka)

	// 4. 初始化 Repository
	docRepo := repository.NewDocumentRepository(database.DB)
	chunkRepo := repository.NewChunkRepository(database.DB)
	conversationRepo := repository.NewConversationRepository(database.RDB)

	// 5. 初始化 Service (依赖注入)
	tikaClient := tika.NewClient(cfg.Tika)
	embeddingClient := embedding.NewClient(cfg.Embedding)
	llmClient := llm.NewClient(cfg.LLM)

	uploadService := service.NewUploadService(docRepo, store, kafka.ProduceIngestTask)
	documentService := service.NewDocumentService(docRepo, chunkRepo, store, esClient, kafka.ProduceIngestTask)
	searchService := service.NewSearchService(embeddingClient, esClient, docRepo, chunkRepo, cfg.Retrieval)
	chatService := service.NewChatService(searchService, llmClient, conversationRepo, cfg.LLM)

	// 6. 初始化文档摄取协调器
	chunker, err := pipeline.NewChunker(cfg.Chunking)
	if err != nil {
		log.Fatal("分块器初始化失败", err)
	}
	processor := pipeline.NewProcessor(
		store,
		tikaClient,
		embeddingClient,
		esClient,
		docRepo,
		chunkRepo,
		chunker,
		pipeline.NewTOCFilter(),
		cfg.Embedding,
	)

	// 7. 启动后台 Kafka 消费者
	go kafka.StartConsumer(cfg.Kafka, processor)

	// 8. 设置 Gin 模式并创建路由引擎
	gin.SetMode(cfg.Server.Mode)
	r := gin.New()
	r.Use(middleware.RequestLogger(), gin.Recovery())

	// 9. 注册路由
	apiV1 := r.Group("/api/v1")
	{
		documents := apiV1.Group("/documents")
		{
			docHandler := handler.NewDocumentHandler(documentService)
			documents.POST("/upload", handler.NewUploadHandler(uploadService).Upload)
			documents.GET("", docHandler.List)
			documents.GET("/:id/status", docHandler.Status)
			documents.GET("/:id/progress", docHandler.ProgressWS)
			documents.GET("/:id/download", docHandler.Download)
			documents.POST("/:id/reingest", docHandler.Reingest)
			documents.DELETE("/:id", docHandler.Delete)
		}

		apiV1.GET("/search", handler.NewSearchHandler(searchService).Search)

		chatHandler := handler.NewChatHandler(chatService)
		apiV1.POST("/chat/ask", chatHandler.Answer)
		apiV1.GET("/conversations/:id/messages", chatHandler.History)
	}

	// 10. 启动服务并支持优雅停机
	srv := &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: r,
	}

	go func() {
		log.Infof("服务器启动于端口 %s", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("服务器启动失败", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("收到停机信号，开始优雅关闭")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error("服务器关闭异常", err)
	}
	log.Info("服务器已退出")
}
