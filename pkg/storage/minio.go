// Package storage 提供了与对象存储服务（MinIO）交互的功能。
// 摄取快照统一存放在这里，保证一次摄取的数据库替换与索引构建读的是同一份字节。
package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"stu-insight-go/internal/config"
	"stu-insight-go/pkg/log"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// MinioClient 是一个全局的 MinIO 客户端实例。
var MinioClient *minio.Client

// InitMinIO 初始化 MinIO 客户端并确保指定的存储桶存在。
func InitMinIO(cfg config.MinIOConfig) {
	var err error

	MinioClient, err = minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		log.Fatal("初始化 MinIO 客户端失败", err)
	}

	log.Info("MinIO 客户端初始化成功")

	// 检查存储桶是否存在，不存在则创建
	ctx := context.Background()
	exists, err := MinioClient.BucketExists(ctx, cfg.BucketName)
	if err != nil {
		log.Fatal("检查 MinIO 存储桶失败", err)
	}

	if !exists {
		log.Infof("存储桶 '%s' 不存在，正在创建...", cfg.BucketName)
		if err := MinioClient.MakeBucket(ctx, cfg.BucketName, minio.MakeBucketOptions{}); err != nil {
			log.Fatal("创建 MinIO 存储桶失败", err)
		}
		log.Infof("存储桶 '%s' 创建成功", cfg.BucketName)
	}
}

// PutSnapshot 将一份摄取快照写入对象存储。
func PutSnapshot(ctx context.Context, bucketName, objectName string, data []byte) error {
	_, err := MinioClient.PutObject(ctx, bucketName, objectName,
		bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: "application/json"})
	if err != nil {
		return fmt.Errorf("写入快照对象失败: %w", err)
	}
	log.Infof("快照已写入对象存储, bucket: %s, object: %s, size: %d", bucketName, objectName, len(data))
	return nil
}

// SnapshotStore 抽象了按对象名读取快照的能力，管道在测试中用确定性假实现替换。
type SnapshotStore interface {
	GetSnapshot(ctx context.Context, objectName string) ([]byte, error)
}

type minioSnapshotStore struct {
	bucketName string
}

// NewSnapshotStore 返回基于 MinIO 的 SnapshotStore，固定读取一个存储桶。
func NewSnapshotStore(bucketName string) SnapshotStore {
	return &minioSnapshotStore{bucketName: bucketName}
}

func (s *minioSnapshotStore) GetSnapshot(ctx context.Context, objectName string) ([]byte, error) {
	return GetSnapshot(ctx, s.bucketName, objectName)
}

// GetSnapshot 读取一份摄取快照的完整内容。
func GetSnapshot(ctx context.Context, bucketName, objectName string) ([]byte, error) {
	object, err := MinioClient.GetObject(ctx, bucketName, objectName, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("读取快照对象失败: %w", err)
	}
	defer object.Close()

	data, err := io.ReadAll(object)
	if err != nil {
		return nil, fmt.Errorf("读取快照对象流失败: %w", err)
	}
	return data, nil
}
