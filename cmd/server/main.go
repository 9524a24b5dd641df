// Package main 是应用程序的入口点。
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"stu-insight-go/internal/config"
	"stu-insight-go/internal/handler"
	"stu-insight-go/internal/middleware"
	"stu-insight-go/internal/pipeline"
	"stu-insight-go/internal/repository"
	"stu-insight-go/internal/service"
	"stu-insight-go/pkg/database"
	"stu-insight-go/pkg/embedding"
	"stu-insight-go/pkg/es"
	"stu-insight-go/pkg/kafka"
	"stu-insight-go/pkg/llm"
	"stu-insight-go/pkg/log"
	"stu-insight-go/pkg/storage"

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

	// 3. 初始化数据库、缓存、对象存储与向量索引客户端
	database.InitMySQL(cfg.Database.MySQL.DSN)
	database.InitRedis(cfg.Database.Redis.Addr, cfg.Database.Redis.Password, cfg.Database.Redis.DB)
	storage.InitMinIO(cfg.MinIO)
	indexer, err := es.NewIndexer(cfg.Elasticsearch, cfg.Embedding.Dimensions)
	if err != nil {
		log.Errorf("es 初始化失败 %s", err)
		return
	}
	kafka.InitProducer(cfg.Kafka)

	// 4. 初始化 Repository
	recordRepo := repository.NewRecordRepository(database.DB)
	unitRepo := repository.NewTextUnitRepository(database.DB)

	// 5. 初始化 Service (依赖注入)
	embeddingClient := embedding.NewClient(cfg.Embedding)
	llmClient := llm.NewClient(cfg.LLM)
	routerService := service.NewRouterService(llmClient)
	retrievalService := service.NewRetrievalService(embeddingClient, indexer, cfg.Retrieval)
	answerService := service.NewAnswerService(llmClient, cfg.LLM)
	dataQueryService := service.NewDataQueryService(recordRepo)
	queryService := service.NewQueryService(
		routerService,
		retrievalService,
		answerService,
		dataQueryService,
		cfg.Server,
		cfg.LLM,
		database.RDB,
	)

	// 6. 初始化摄取管道 (Processor)
	processor := pipeline.NewProcessor(
		embeddingClient,
		indexer,
		storage.NewSnapshotStore(cfg.MinIO.BucketName),
		cfg.Embedding,
		cfg.Ingestion,
		recordRepo,
		unitRepo,
		pipeline.NewRedisLocker(database.RDB, time.Duration(cfg.Ingestion.LockTTLSeconds)*time.Second),
	)

	// 7. 启动后台 Kafka 消费者
	go kafka.StartConsumer(cfg.Kafka, processor)

	// 8. 设置 Gin 模式并创建路由引擎
	gin.SetMode(cfg.Server.Mode)
	r := gin.New()
	r.Use(middleware.RequestLogger(), gin.Recovery())

	// 9. 注册路由
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	apiV1 := r.Group("/api/v1")
	{
		apiV1.POST("/query", handler.NewQueryHandler(queryService).Query)

		admin := apiV1.Group("/admin")
		{
			admin.POST("/ingest", handler.NewIngestHandler(cfg.MinIO).Ingest)
		}
	}

	// 启动 HTTP 服务器并实现优雅停机
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Server.Port),
		Handler: r,
	}

	go func() {
		log.Infof("服务启动于 %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("HTTP 服务监听失败: %s\n", err)
		}
	}()

	// 等待中断信号以实现优雅停机
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("接收到停机信号，正在关闭服务...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("HTTP 服务器关闭失败: %v", err)
	}

	log.Info("服务已优雅关闭")
}
