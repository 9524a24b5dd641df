// Package service 包含了应用的业务逻辑层。
package service

import (
	"context"
	"fmt"
	"strings"

	"stu-insight-go/internal/config"
	"stu-insight-go/internal/model"
	"stu-insight-go/pkg/embedding"
	"stu-insight-go/pkg/es"
	"stu-insight-go/pkg/log"
)

// RetrievalService 接口定义了单个学生范围内的语义检索操作。
type RetrievalService interface {
	// Retrieve 返回目标学生至多 k 个文本单元，按 MMR 挑选。
	// 索引未构建返回 apperr.ErrIndexNotBuilt；学生没有文本单元返回空结果而非错误。
	Retrieve(ctx context.Context, query, ownerRef string, k int) ([]model.RetrievedUnit, error)
}

type retrievalService struct {
	embeddingClient embedding.Client
	indexer         es.Indexer
	cfg             config.RetrievalConfig
}

// NewRetrievalService 创建一个新的 RetrievalService 实例。
func NewRetrievalService(embeddingClient embedding.Client, indexer es.Indexer, cfg config.RetrievalConfig) RetrievalService {
	return &retrievalService{
		embeddingClient: embeddingClient,
		indexer:         indexer,
		cfg:             cfg,
	}
}

// Retrieve 执行三步检索：解析当前索引、向量化查询、owner 过滤的 kNN + MMR 挑选。
func (s *retrievalService) Retrieve(ctx context.Context, query, ownerRef string, k int) ([]model.RetrievedUnit, error) {
	log.Infof("[RetrievalService] 开始检索, owner: %s, k: %d", ownerRef, k)
	if k <= 0 {
		k = s.cfg.TopK
	}

	// 1. 在请求开始时把别名解析为具体索引名，整个请求期间固定使用这一代
	index, err := s.indexer.ResolveAlias(ctx)
	if err != nil {
		return nil, err
	}
	log.Infof("[RetrievalService] 步骤1: 解析当前索引: %s", index)

	// 2. 向量化查询
	queryVector, err := s.embeddingClient.CreateEmbedding(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to create query embedding: %w", err)
	}
	log.Infof("[RetrievalService] 步骤2: 查询向量化成功, 维度: %d", len(queryVector))

	// 3. owner 过滤的候选检索：检索永远限定在一个学生的文本单元内
	ownerField := "owner_email"
	if !strings.Contains(ownerRef, "@") {
		ownerField = "student_id"
	}
	candidates, err := s.indexer.SearchOwnerUnits(ctx, index, ownerField, ownerRef, queryVector, s.cfg.FetchK)
	if err != nil {
		return nil, fmt.Errorf("候选检索失败: %w", err)
	}
	if len(candidates) == 0 {
		// 该学生没有任何文本单元：合法的"无数据"，不是错误
		log.Infof("[RetrievalService] owner '%s' 没有可检索的文本单元", ownerRef)
		return []model.RetrievedUnit{}, nil
	}
	log.Infof("[RetrievalService] 步骤3: 召回 %d 个候选", len(candidates))

	// 4. MMR 挑选：相关性与冗余之间按 λ 权衡
	vectors := make([][]float32, len(candidates))
	for i, c := range candidates {
		vectors[i] = c.Doc.Vector
	}
	picked := mmrSelect(queryVector, vectors, k, s.cfg.MMRLambda)

	results := make([]model.RetrievedUnit, 0, len(picked))
	for _, idx := range picked {
		unit := candidates[idx]
		unit.Score = cosineSimilarity(queryVector, unit.Doc.Vector)
		results = append(results, unit)
	}
	log.Infof("[RetrievalService] 检索完成, 返回 %d 个文本单元 (λ=%.2f)", len(results), s.cfg.MMRLambda)
	return results, nil
}
