package handler

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"stu-insight-go/internal/config"
	"stu-insight-go/internal/model"
	"stu-insight-go/pkg/kafka"
	"stu-insight-go/pkg/log"
	"stu-insight-go/pkg/storage"
	"stu-insight-go/pkg/tasks"

	"github.com/gin-gonic/gin"
)

// IngestHandler 结构体定义了摄取触发相关的处理器。
type IngestHandler struct {
	minioCfg config.MinIOConfig
}

// NewIngestHandler 创建一个新的 IngestHandler 实例。
func NewIngestHandler(minioCfg config.MinIOConfig) *IngestHandler {
	return &IngestHandler{minioCfg: minioCfg}
}

// Ingest 接收一份学生成就快照，存入对象存储并投递异步摄取任务。
// 摄取本身由 Kafka 消费者执行，这里只做快照落盘与入队，返回 202。
func (h *IngestHandler) Ingest(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil || len(body) == 0 {
		log.Warnf("[IngestHandler] 摄取请求没有快照内容")
		c.JSON(http.StatusBadRequest, gin.H{"error": "请求体必须是学生记录的 JSON 数组"})
		return
	}

	// 入队前先确认快照是合法的学生记录数组，坏文件不进管道
	var students []model.StudentRecord
	if err := json.Unmarshal(body, &students); err != nil {
		log.Warnf("[IngestHandler] 快照不是合法 JSON: %v", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "快照必须是学生记录的 JSON 数组"})
		return
	}

	objectName := fmt.Sprintf("snapshots/students-%d.json", time.Now().UnixNano())
	if err := storage.PutSnapshot(c.Request.Context(), h.minioCfg.BucketName, objectName, body); err != nil {
		log.Errorf("[IngestHandler] 快照写入对象存储失败: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "快照存储失败"})
		return
	}

	task := tasks.IngestionTask{
		SnapshotObject: objectName,
		TriggeredBy:    c.ClientIP(),
		RequestedAt:    time.Now().Unix(),
	}
	if err := kafka.ProduceIngestionTask(task); err != nil {
		log.Errorf("[IngestHandler] 投递摄取任务失败: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "摄取任务投递失败"})
		return
	}

	log.Infof("[IngestHandler] 摄取任务已入队, snapshot: %s, 学生数: %d", objectName, len(students))
	c.JSON(http.StatusAccepted, gin.H{
		"code":     202,
		"message":  "摄取任务已入队",
		"snapshot": objectName,
	})
}
