package service

import (
	"context"
	"crypto/md5"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"stu-insight-go/internal/apperr"
	"stu-insight-go/internal/config"
	"stu-insight-go/internal/model"
	"stu-insight-go/pkg/log"

	"github.com/go-redis/redis/v8"
)

// defaultClarificationText 是 unsupported 意图的固定引导文案（可在配置中覆盖）。
const defaultClarificationText = "I can answer questions about student achievement records: ask about a specific student (by email or student id), request counts by department, type or status, or list records matching a field. Could you rephrase your question?"

// QueryService 是查询侧的编排器：路由意图、派发到对应后端、
// 把内部错误翻译成响应契约里的类型化错误分类。
// 每条查询恰好产生一个 QueryResponse，错误也以响应形式表达。
type QueryService interface {
	Answer(ctx context.Context, query string) *model.QueryResponse
}

type queryService struct {
	router    RouterService
	retrieval RetrievalService
	answer    AnswerService
	dataQuery DataQueryService
	serverCfg config.ServerConfig
	llmCfg    config.LLMConfig
	rdb       *redis.Client
}

// NewQueryService 创建一个新的 QueryService 实例。rdb 传 nil 则关闭响应缓存。
func NewQueryService(
	router RouterService,
	retrieval RetrievalService,
	answer AnswerService,
	dataQuery DataQueryService,
	serverCfg config.ServerConfig,
	llmCfg config.LLMConfig,
	rdb *redis.Client,
) QueryService {
	return &queryService{
		router:    router,
		retrieval: retrieval,
		answer:    answer,
		dataQuery: dataQuery,
		serverCfg: serverCfg,
		llmCfg:    llmCfg,
		rdb:       rdb,
	}
}

// Answer 执行一条查询的完整生命周期：缓存查询、路由、派发、错误翻译、回填缓存。
func (s *queryService) Answer(ctx context.Context, query string) *model.QueryResponse {
	if cached := s.cacheGet(ctx, query); cached != nil {
		log.Infof("[QueryService] 响应缓存命中")
		return cached
	}

	intent := s.router.Route(ctx, query)
	log.Infof("[QueryService] 路由结果: %s", intent.Label)

	var resp *model.QueryResponse
	switch intent.Label {
	case model.IntentProfileSummary:
		resp = s.answerProfile(ctx, query, intent)
	case model.IntentCountByGroup:
		resp = s.answerCount(intent)
	case model.IntentStructuredLookup:
		resp = s.answerLookup(intent)
	default:
		resp = &model.QueryResponse{
			Intent:  model.IntentUnsupported,
			Kind:    model.KindText,
			Payload: s.clarificationText(),
		}
	}

	if resp.Error == "" {
		s.cacheSet(ctx, query, resp)
	}
	return resp
}

// answerProfile 走语义检索 + 模型摘要路径。
func (s *queryService) answerProfile(ctx context.Context, query string, intent model.QueryIntent) *model.QueryResponse {
	units, err := s.retrieval.Retrieve(ctx, query, intent.EntityRef, 0)
	if err != nil {
		return s.errorResponse(intent.Label, err)
	}

	text, err := s.answer.Summarize(ctx, query, intent.EntityRef, units)
	if err != nil {
		if errors.Is(err, apperr.ErrNoAnswer) {
			// 模型拒答不是系统故障，给出礼貌的固定文案
			return &model.QueryResponse{
				Intent:  intent.Label,
				Kind:    model.KindText,
				Payload: "I was unable to produce an answer for that question from the available records.",
			}
		}
		return s.errorResponse(intent.Label, err)
	}

	return &model.QueryResponse{Intent: intent.Label, Kind: model.KindText, Payload: text}
}

// answerCount 走确定性分组计数路径。
func (s *queryService) answerCount(intent model.QueryIntent) *model.QueryResponse {
	counts, err := s.dataQuery.CountByGroup(intent.GroupField, intent.Filters, intent.DistinctStudents)
	if err != nil {
		return s.errorResponse(intent.Label, err)
	}
	return &model.QueryResponse{Intent: intent.Label, Kind: model.KindStructured, Payload: counts}
}

// answerLookup 走确定性过滤/精确匹配路径。
func (s *queryService) answerLookup(intent model.QueryIntent) *model.QueryResponse {
	var (
		records []model.RecordDTO
		err     error
	)
	if len(intent.Filters) == 1 {
		for field, value := range intent.Filters {
			records, err = s.dataQuery.Lookup(field, value)
		}
	} else {
		records, err = s.dataQuery.Filter(intent.Filters)
	}
	if err != nil {
		return s.errorResponse(intent.Label, err)
	}
	return &model.QueryResponse{Intent: intent.Label, Kind: model.KindStructured, Payload: records}
}

// errorResponse 把内部错误翻译为响应契约里的类型化错误分类。
func (s *queryService) errorResponse(intent model.IntentLabel, err error) *model.QueryResponse {
	resp := &model.QueryResponse{Intent: intent, Kind: model.KindText}

	var malformed *apperr.MalformedRecordError
	var svcErr *apperr.ServiceError
	switch {
	case errors.Is(err, apperr.ErrIndexNotBuilt):
		resp.Error = model.ErrKindIndexNotBuilt
		resp.Payload = "The search index has not been built yet. Run an ingestion first."
	case errors.Is(err, apperr.ErrNoMatch):
		resp.Error = model.ErrKindNoMatch
		resp.Payload = "No records matched your query."
	case errors.Is(err, apperr.ErrUnknownField), errors.As(err, &malformed):
		resp.Error = model.ErrKindValidation
		resp.Payload = err.Error()
	case errors.As(err, &svcErr):
		log.Errorf("[QueryService] 依赖服务 '%s' 失败: %v", svcErr.Service, err)
		resp.Error = model.ErrKindService
		resp.Payload = fmt.Sprintf("The %s service is currently unavailable. Please try again later.", svcErr.Service)
	default:
		log.Errorf("[QueryService] 未分类错误: %v", err)
		resp.Error = model.ErrKindService
		resp.Payload = "An internal error occurred while answering your query."
	}
	return resp
}

func (s *queryService) clarificationText() string {
	if strings.TrimSpace(s.llmCfg.Prompt.ClarificationText) != "" {
		return s.llmCfg.Prompt.ClarificationText
	}
	return defaultClarificationText
}

func cacheKey(query string) string {
	return fmt.Sprintf("query:cache:%x", md5.Sum([]byte(strings.ToLower(strings.TrimSpace(query)))))
}

// cacheGet 从 Redis 取缓存的响应；缓存是尽力而为的，任何失败都当作未命中。
func (s *queryService) cacheGet(ctx context.Context, query string) *model.QueryResponse {
	if s.rdb == nil || s.serverCfg.CacheTTLSeconds <= 0 {
		return nil
	}
	raw, err := s.rdb.Get(ctx, cacheKey(query)).Result()
	if err != nil {
		return nil
	}
	var resp model.QueryResponse
	if err := json.Unmarshal([]byte(raw), &resp); err != nil {
		return nil
	}
	return &resp
}

func (s *queryService) cacheSet(ctx context.Context, query string, resp *model.QueryResponse) {
	if s.rdb == nil || s.serverCfg.CacheTTLSeconds <= 0 {
		return
	}
	raw, err := json.Marshal(resp)
	if err != nil {
		return
	}
	ttl := time.Duration(s.serverCfg.CacheTTLSeconds) * time.Second
	if err := s.rdb.Set(ctx, cacheKey(query), raw, ttl).Err(); err != nil {
		log.Warnf("[QueryService] 写入响应缓存失败: %v", err)
	}
}
