// Package main 是一次性摄取命令的入口点：读取本地快照文件、
// 上传到对象存储并同步执行一次完整的摄取管道。适合初始化导入与定时任务。
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"stu-insight-go/internal/config"
	"stu-insight-go/internal/pipeline"
	"stu-insight-go/internal/repository"
	"stu-insight-go/pkg/database"
	"stu-insight-go/pkg/embedding"
	"stu-insight-go/pkg/es"
	"stu-insight-go/pkg/log"
	"stu-insight-go/pkg/storage"
	"stu-insight-go/pkg/tasks"
)

func main() {
	config.Init("./configs/config.yaml")
	cfg := config.Conf

	log.Init(cfg.Log.Level, cfg.Log.Format, cfg.Log.OutputPath)
	defer log.Sync()

	snapshotPath := cfg.Ingestion.SnapshotPath
	if len(os.Args) > 1 {
		snapshotPath = os.Args[1]
	}
	if snapshotPath == "" {
		log.Fatalf("未指定快照文件: 请配置 ingestion.snapshot_path 或通过命令行参数传入")
	}

	data, err := os.ReadFile(snapshotPath)
	if err != nil {
		log.Fatalf("读取快照文件 '%s' 失败: %v", snapshotPath, err)
	}

	database.InitMySQL(cfg.Database.MySQL.DSN)
	database.InitRedis(cfg.Database.Redis.Addr, cfg.Database.Redis.Password, cfg.Database.Redis.DB)
	storage.InitMinIO(cfg.MinIO)
	indexer, err := es.NewIndexer(cfg.Elasticsearch, cfg.Embedding.Dimensions)
	if err != nil {
		log.Fatalf("es 初始化失败: %v", err)
	}

	ctx := context.Background()
	objectName := fmt.Sprintf("snapshots/students-%d.json", time.Now().UnixNano())
	if err := storage.PutSnapshot(ctx, cfg.MinIO.BucketName, objectName, data); err != nil {
		log.Fatalf("快照上传失败: %v", err)
	}

	processor := pipeline.NewProcessor(
		embedding.NewClient(cfg.Embedding),
		indexer,
		storage.NewSnapshotStore(cfg.MinIO.BucketName),
		cfg.Embedding,
		cfg.Ingestion,
		repository.NewRecordRepository(database.DB),
		repository.NewTextUnitRepository(database.DB),
		pipeline.NewRedisLocker(database.RDB, time.Duration(cfg.Ingestion.LockTTLSeconds)*time.Second),
	)

	task := tasks.IngestionTask{
		SnapshotObject: objectName,
		TriggeredBy:    "cli",
		RequestedAt:    time.Now().Unix(),
	}
	if err := processor.Process(ctx, task); err != nil {
		log.Errorf("摄取失败: %v", err)
		os.Exit(1)
	}
	log.Infof("摄取完成, snapshot: %s", objectName)
}
