package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"stu-insight-go/internal/apperr"
	"stu-insight-go/internal/config"
	"stu-insight-go/internal/model"
	"stu-insight-go/internal/repository"
	"stu-insight-go/pkg/embedding"
	"stu-insight-go/pkg/es"
	"stu-insight-go/pkg/log"
	"stu-insight-go/pkg/storage"
	"stu-insight-go/pkg/tasks"
)

// Processor 封装了摄取管道的所有依赖和逻辑。
type Processor struct {
	embeddingClient embedding.Client
	indexer         es.Indexer
	snapshots       storage.SnapshotStore
	embeddingCfg    config.EmbeddingConfig
	ingestCfg       config.IngestionConfig
	recordRepo      repository.RecordRepository
	unitRepo        repository.TextUnitRepository
	lock            Locker
}

// NewProcessor 创建一个新的 Processor 实例。
func NewProcessor(
	embeddingClient embedding.Client,
	indexer es.Indexer,
	snapshots storage.SnapshotStore,
	embeddingCfg config.EmbeddingConfig,
	ingestCfg config.IngestionConfig,
	recordRepo repository.RecordRepository,
	unitRepo repository.TextUnitRepository,
	lock Locker,
) *Processor {
	return &Processor{
		embeddingClient: embeddingClient,
		indexer:         indexer,
		snapshots:       snapshots,
		embeddingCfg:    embeddingCfg,
		ingestCfg:       ingestCfg,
		recordRepo:      recordRepo,
		unitRepo:        unitRepo,
		lock:            lock,
	}
}

// Process 是摄取管道的主函数：下载快照、构建新一代向量索引、替换结构化记录、切换别名。
// 数据库替换放在索引构建成功之后、别名切换之前：切换之前的任何失败都会清理掉
// 新建的那一代索引并放弃数据库替换，结构化记录与在线索引始终停留在同一份快照上。
func (p *Processor) Process(ctx context.Context, task tasks.IngestionTask) error {
	log.Infof("[Processor] 开始摄取, snapshot: %s, triggeredBy: %s", task.SnapshotObject, task.TriggeredBy)

	// 0. 抢占单飞锁
	ok, err := p.lock.Acquire(ctx, task.SnapshotObject)
	if err != nil {
		return apperr.NewServiceError("redis", fmt.Errorf("获取摄取锁失败: %w", err))
	}
	if !ok {
		return apperr.ErrIngestionBusy
	}
	defer func() {
		if err := p.lock.Release(context.Background()); err != nil {
			log.Warnf("[Processor] 释放摄取锁失败: %v", err)
		}
	}()

	// 1. 从对象存储下载快照
	log.Infof("[Processor] 步骤1: 下载快照, object: %s", task.SnapshotObject)
	data, err := p.snapshots.GetSnapshot(ctx, task.SnapshotObject)
	if err != nil {
		return apperr.NewServiceError("storage", err)
	}
	if len(data) == 0 {
		return errors.New("快照内容为空")
	}
	log.Infof("[Processor] 步骤1: 快照下载成功, size: %d 字节", len(data))

	// 2. 解析快照
	log.Info("[Processor] 步骤2: 解析快照 JSON")
	var students []model.StudentRecord
	if err := json.Unmarshal(data, &students); err != nil {
		return fmt.Errorf("解析快照失败: %w", err)
	}
	log.Infof("[Processor] 步骤2: 解析完成, 共 %d 名学生", len(students))

	// 3. 归一化为扁平记录与文本单元（坏行跳过，不中断整批）
	log.Infof("[Processor] 步骤3: 归一化记录, chunkSize: %d, chunkOverlap: %d", p.ingestCfg.ChunkSize, p.ingestCfg.ChunkOverlap)
	records, units, skipped := NormalizeStudents(students, p.ingestCfg.ChunkSize, p.ingestCfg.ChunkOverlap)
	log.Infof("[Processor] 步骤3: 归一化完成, 记录: %d, 文本单元: %d, 跳过: %d", len(records), len(units), skipped)
	if len(records) == 0 {
		return errors.New("快照中没有任何有效记录")
	}

	// 4. 创建新一代索引
	log.Info("[Processor] 步骤4: 创建新一代向量索引")
	newIndex, err := p.indexer.CreateGeneration(ctx)
	if err != nil {
		return fmt.Errorf("创建新一代索引失败: %w", err)
	}

	// 5. 逐个向量化并批量写入；任何失败都删除孤儿代，放弃切换
	log.Info("[Processor] 步骤5: 向量化并写入新索引")
	docs := make([]model.VectorDoc, 0, len(units))
	for i, unit := range units {
		vector, err := p.embeddingClient.CreateEmbedding(ctx, unit.TextContent)
		if err != nil {
			p.cleanupOrphan(newIndex)
			return fmt.Errorf("文本单元 %s_%s_%d 向量化失败: %w", unit.StudentID, unit.AchievementID, unit.ChunkID, err)
		}
		docs = append(docs, model.VectorDoc{
			VectorID:      fmt.Sprintf("%s_%s_%d", unit.StudentID, unit.AchievementID, unit.ChunkID),
			OwnerEmail:    unit.OwnerEmail,
			StudentID:     unit.StudentID,
			AchievementID: unit.AchievementID,
			ChunkID:       unit.ChunkID,
			TextContent:   unit.TextContent,
			Vector:        vector,
			ModelVersion:  p.embeddingCfg.Model,
			SourceFields:  unit.SourceFields,
		})
		if (i+1)%50 == 0 {
			log.Infof("[Processor] 已向量化 %d/%d 个文本单元", i+1, len(units))
		}
	}
	if err := p.indexer.BulkIndex(ctx, newIndex, docs); err != nil {
		p.cleanupOrphan(newIndex)
		return fmt.Errorf("写入新一代索引失败: %w", err)
	}

	// 6. 索引构建成功后才替换结构化记录表与文本单元侧表；
	// 替换失败同样放弃切换，两个后端都停留在上一份快照
	log.Info("[Processor] 步骤6: 替换结构化记录与侧表")
	if err := p.recordRepo.ReplaceAll(records); err != nil {
		p.cleanupOrphan(newIndex)
		return fmt.Errorf("替换结构化记录失败: %w", err)
	}
	if err := p.unitRepo.ReplaceAll(units); err != nil {
		p.cleanupOrphan(newIndex)
		return fmt.Errorf("替换文本单元侧表失败: %w", err)
	}

	// 7. 原子切换别名，保留上一代给在途查询，更早的代清理掉
	log.Info("[Processor] 步骤7: 原子切换索引别名")
	oldIndex, err := p.indexer.SwapAlias(ctx, newIndex)
	if err != nil {
		return fmt.Errorf("切换索引别名失败: %w", err)
	}
	if err := p.indexer.PruneGenerations(ctx, newIndex, oldIndex); err != nil {
		log.Warnf("[Processor] 清理历史代索引失败: %v", err)
	}

	log.Infof("[Processor] 摄取成功完成, snapshot: %s, 当前索引: %s", task.SnapshotObject, newIndex)
	return nil
}

// cleanupOrphan 删除构建失败后残留的未挂别名索引。
func (p *Processor) cleanupOrphan(index string) {
	if err := p.indexer.DeleteIndex(context.Background(), index); err != nil {
		log.Warnf("[Processor] 清理孤儿索引 '%s' 失败: %v", index, err)
	}
}
