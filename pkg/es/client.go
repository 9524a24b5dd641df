// Package es 提供了与 Elasticsearch 交互的向量索引客户端。
//
// 索引按"代"管理：每次摄取新建一个形如 <alias>-<纳秒时间戳> 的索引，
// 写满后通过一次 UpdateAliases 原子切换别名。查询侧先把别名解析成具体
// 索引名再搜索，因此切换对在途查询不可见；上一代索引会保留到下一次
// 切换之后才删除，保证在途读取始终落在一个完整构建的索引上。
package es

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	"stu-insight-go/internal/apperr"
	"stu-insight-go/internal/config"
	"stu-insight-go/internal/model"
	"stu-insight-go/pkg/log"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
)

// Indexer 定义了摄取与检索两侧需要的全部索引操作。
// 抽成接口是为了让管道和检索服务可以用确定性的假实现做测试。
type Indexer interface {
	// CreateGeneration 新建一代索引并返回其名称，此时别名尚未指向它。
	CreateGeneration(ctx context.Context) (string, error)
	// BulkIndex 将一批向量条目批量写入指定索引。
	BulkIndex(ctx context.Context, index string, docs []model.VectorDoc) error
	// SwapAlias 把别名原子地从旧索引切到 newIndex，返回旧索引名（首次构建为空）。
	SwapAlias(ctx context.Context, newIndex string) (string, error)
	// ResolveAlias 返回别名当前指向的索引名；别名不存在时返回 apperr.ErrIndexNotBuilt。
	ResolveAlias(ctx context.Context) (string, error)
	// DeleteIndex 删除一个索引（用于构建失败后清理孤儿代）。
	DeleteIndex(ctx context.Context, name string) error
	// PruneGenerations 删除不在 keep 集合中的历史代索引。
	PruneGenerations(ctx context.Context, keep ...string) error
	// SearchOwnerUnits 在指定索引中做 kNN 检索，严格限定在一个学生的文本单元内。
	SearchOwnerUnits(ctx context.Context, index, ownerField, ownerValue string, vector []float32, fetchK int) ([]model.RetrievedUnit, error)
}

type esIndexer struct {
	client *elasticsearch.Client
	alias  string
	dims   int
}

// NewIndexer 初始化 Elasticsearch 客户端并返回 Indexer。
func NewIndexer(esCfg config.ElasticsearchConfig, dims int) (Indexer, error) {
	cfg := elasticsearch.Config{
		Addresses: []string{esCfg.Addresses},
		Username:  esCfg.Username,
		Password:  esCfg.Password,
		Transport: &http.Transport{
			TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
		},
	}
	client, err := elasticsearch.NewClient(cfg)
	if err != nil {
		return nil, err
	}
	return &esIndexer{client: client, alias: esCfg.IndexAlias, dims: dims}, nil
}

// CreateGeneration 创建一代新索引，向量维度与相似度固定写进映射。
func (x *esIndexer) CreateGeneration(ctx context.Context) (string, error) {
	name := fmt.Sprintf("%s-%d", x.alias, time.Now().UnixNano())

	mapping := fmt.Sprintf(`{
		"mappings": {
			"properties": {
				"vector_id": { "type": "keyword" },
				"owner_email": { "type": "keyword" },
				"student_id": { "type": "keyword" },
				"achievement_id": { "type": "keyword" },
				"chunk_id": { "type": "integer" },
				"text_content": { "type": "text" },
				"vector": {
					"type": "dense_vector",
					"dims": %d,
					"index": true,
					"similarity": "cosine"
				},
				"model_version": { "type": "keyword" },
				"source_fields": { "type": "keyword" }
			}
		}
	}`, x.dims)

	res, err := x.client.Indices.Create(
		name,
		x.client.Indices.Create.WithContext(ctx),
		x.client.Indices.Create.WithBody(strings.NewReader(mapping)),
	)
	if err != nil {
		return "", fmt.Errorf("创建索引 '%s' 失败: %w", name, err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return "", fmt.Errorf("创建索引 '%s' 时 Elasticsearch 返回错误: %s", name, res.String())
	}

	log.Infof("[ES] 新一代索引 '%s' 创建成功 (dims=%d)", name, x.dims)
	return name, nil
}

// BulkIndex 用 bulk API 批量写入向量条目，并在写入后刷新索引。
func (x *esIndexer) BulkIndex(ctx context.Context, index string, docs []model.VectorDoc) error {
	if len(docs) == 0 {
		return nil
	}

	var buf bytes.Buffer
	for _, doc := range docs {
		meta := fmt.Sprintf(`{"index":{"_index":%q,"_id":%q}}`, index, doc.VectorID)
		buf.WriteString(meta)
		buf.WriteByte('\n')
		docBytes, err := json.Marshal(doc)
		if err != nil {
			return fmt.Errorf("序列化向量条目失败: %w", err)
		}
		buf.Write(docBytes)
		buf.WriteByte('\n')
	}

	res, err := x.client.Bulk(
		bytes.NewReader(buf.Bytes()),
		x.client.Bulk.WithContext(ctx),
		x.client.Bulk.WithRefresh("true"),
	)
	if err != nil {
		return fmt.Errorf("批量写入索引 '%s' 失败: %w", index, err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return fmt.Errorf("批量写入索引 '%s' 时 Elasticsearch 返回错误: %s", index, res.String())
	}

	var bulkResp struct {
		Errors bool `json:"errors"`
	}
	if err := json.NewDecoder(res.Body).Decode(&bulkResp); err != nil {
		return fmt.Errorf("解析 bulk 响应失败: %w", err)
	}
	if bulkResp.Errors {
		return errors.New("bulk 响应中包含条目级错误")
	}

	log.Infof("[ES] 批量写入完成, index: %s, docs: %d", index, len(docs))
	return nil
}

// SwapAlias 在一次 UpdateAliases 请求中完成 remove+add，对读者是原子的。
// 别名当前挂着的所有索引都会被摘掉（含崩溃残留的旧成员），切换后别名只指向 newIndex。
func (x *esIndexer) SwapAlias(ctx context.Context, newIndex string) (string, error) {
	members, err := x.aliasMembers(ctx)
	if err != nil && !errors.Is(err, apperr.ErrIndexNotBuilt) {
		return "", err
	}

	actions := []map[string]interface{}{}
	for _, name := range members {
		actions = append(actions, map[string]interface{}{
			"remove": map[string]interface{}{"index": name, "alias": x.alias},
		})
	}
	actions = append(actions, map[string]interface{}{
		"add": map[string]interface{}{"index": newIndex, "alias": x.alias},
	})

	body, err := json.Marshal(map[string]interface{}{"actions": actions})
	if err != nil {
		return "", fmt.Errorf("序列化别名切换请求失败: %w", err)
	}

	req := esapi.IndicesUpdateAliasesRequest{Body: bytes.NewReader(body)}
	res, err := req.Do(ctx, x.client)
	if err != nil {
		return "", fmt.Errorf("切换别名 '%s' 失败: %w", x.alias, err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return "", fmt.Errorf("切换别名 '%s' 时 Elasticsearch 返回错误: %s", x.alias, res.String())
	}

	var oldIndex string
	if len(members) > 0 {
		oldIndex = members[len(members)-1]
	}
	log.Infof("[ES] 别名 '%s' 已切换: %v -> '%s'", x.alias, members, newIndex)
	return oldIndex, nil
}

// ResolveAlias 把别名解析为具体索引名；同一别名下存在多个索引时取最新的一代。
func (x *esIndexer) ResolveAlias(ctx context.Context) (string, error) {
	members, err := x.aliasMembers(ctx)
	if err != nil {
		return "", err
	}
	return members[len(members)-1], nil
}

// aliasMembers 返回别名当前挂着的全部索引名（升序，时间戳结尾的代索引名字典序最大即最新）；
// 别名不存在时返回 apperr.ErrIndexNotBuilt。
func (x *esIndexer) aliasMembers(ctx context.Context) ([]string, error) {
	res, err := x.client.Indices.GetAlias(
		x.client.Indices.GetAlias.WithContext(ctx),
		x.client.Indices.GetAlias.WithName(x.alias),
	)
	if err != nil {
		return nil, fmt.Errorf("解析别名 '%s' 失败: %w", x.alias, err)
	}
	defer res.Body.Close()

	if res.StatusCode == http.StatusNotFound {
		return nil, apperr.ErrIndexNotBuilt
	}
	if res.IsError() {
		return nil, fmt.Errorf("解析别名 '%s' 时 Elasticsearch 返回错误: %s", x.alias, res.String())
	}

	var aliasResp map[string]json.RawMessage
	if err := json.NewDecoder(res.Body).Decode(&aliasResp); err != nil {
		return nil, fmt.Errorf("解析别名响应失败: %w", err)
	}
	if len(aliasResp) == 0 {
		return nil, apperr.ErrIndexNotBuilt
	}

	names := make([]string, 0, len(aliasResp))
	for name := range aliasResp {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// DeleteIndex 删除一个索引，索引不存在时视为成功。
func (x *esIndexer) DeleteIndex(ctx context.Context, name string) error {
	if name == "" {
		return nil
	}
	res, err := x.client.Indices.Delete(
		[]string{name},
		x.client.Indices.Delete.WithContext(ctx),
		x.client.Indices.Delete.WithIgnoreUnavailable(true),
	)
	if err != nil {
		return fmt.Errorf("删除索引 '%s' 失败: %w", name, err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return fmt.Errorf("删除索引 '%s' 时 Elasticsearch 返回错误: %s", name, res.String())
	}
	log.Infof("[ES] 索引 '%s' 已删除", name)
	return nil
}

// PruneGenerations 清理不在 keep 中的历史代索引。
// 调用方会把当前代与上一代都放进 keep，给在途查询留出完整的生命期。
func (x *esIndexer) PruneGenerations(ctx context.Context, keep ...string) error {
	res, err := x.client.Indices.Get(
		[]string{x.alias + "-*"},
		x.client.Indices.Get.WithContext(ctx),
		x.client.Indices.Get.WithIgnoreUnavailable(true),
	)
	if err != nil {
		return fmt.Errorf("列举历史代索引失败: %w", err)
	}
	defer res.Body.Close()
	if res.StatusCode == http.StatusNotFound {
		return nil
	}
	if res.IsError() {
		return fmt.Errorf("列举历史代索引时 Elasticsearch 返回错误: %s", res.String())
	}

	var indices map[string]json.RawMessage
	if err := json.NewDecoder(res.Body).Decode(&indices); err != nil {
		return fmt.Errorf("解析索引列表失败: %w", err)
	}

	keepSet := make(map[string]struct{}, len(keep))
	for _, k := range keep {
		keepSet[k] = struct{}{}
	}

	for name := range indices {
		if _, ok := keepSet[name]; ok {
			continue
		}
		if err := x.DeleteIndex(ctx, name); err != nil {
			// 清理失败不致命，留到下一轮
			log.Warnf("[ES] 清理历史代索引 '%s' 失败: %v", name, err)
		}
	}
	return nil
}

// SearchOwnerUnits 做 owner 过滤的 kNN 候选检索，返回带向量的候选集供 MMR 二次挑选。
func (x *esIndexer) SearchOwnerUnits(ctx context.Context, index, ownerField, ownerValue string, vector []float32, fetchK int) ([]model.RetrievedUnit, error) {
	esQuery := map[string]interface{}{
		"knn": map[string]interface{}{
			"field":          "vector",
			"query_vector":   vector,
			"k":              fetchK,
			"num_candidates": fetchK * 10,
			"filter": map[string]interface{}{
				"term": map[string]interface{}{ownerField: ownerValue},
			},
		},
		"size":    fetchK,
		"_source": true,
	}

	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(esQuery); err != nil {
		return nil, fmt.Errorf("序列化检索请求失败: %w", err)
	}

	res, err := x.client.Search(
		x.client.Search.WithContext(ctx),
		x.client.Search.WithIndex(index),
		x.client.Search.WithBody(&buf),
	)
	if err != nil {
		return nil, fmt.Errorf("elasticsearch 检索失败: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return nil, fmt.Errorf("elasticsearch 检索返回错误: %s", res.String())
	}

	var esResponse struct {
		Hits struct {
			Hits []struct {
				Source model.VectorDoc `json:"_source"`
				Score  float64         `json:"_score"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&esResponse); err != nil {
		return nil, fmt.Errorf("解析检索响应失败: %w", err)
	}

	results := make([]model.RetrievedUnit, 0, len(esResponse.Hits.Hits))
	for _, hit := range esResponse.Hits.Hits {
		results = append(results, model.RetrievedUnit{Doc: hit.Source, Score: hit.Score})
	}
	return results, nil
}
