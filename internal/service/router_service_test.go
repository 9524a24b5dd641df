package service

import (
	"context"
	"errors"
	"testing"

	"stu-insight-go/internal/model"
	"stu-insight-go/pkg/llm"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeLLM 是确定性的 llm.Client 假实现，记录调用次数并返回预设回答。
type fakeLLM struct {
	answer string
	err    error
	calls  int
}

func (f *fakeLLM) Chat(_ context.Context, _ []llm.Message, _ *llm.GenerationParams) (string, error) {
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	return f.answer, nil
}

// 含学生引用的查询必须由规则直接命中，不消耗模型调用。
func TestRouteProfileSummaryByRule(t *testing.T) {
	fake := &fakeLLM{}
	router := NewRouterService(fake)

	intent := router.Route(context.Background(), "Give me a summary for the student with email rlynn@hotmail.com")
	assert.Equal(t, model.IntentProfileSummary, intent.Label)
	assert.Equal(t, "rlynn@hotmail.com", intent.EntityRef)
	assert.Zero(t, fake.calls)

	intent = router.Route(context.Background(), "summarize stu1001 for me")
	assert.Equal(t, model.IntentProfileSummary, intent.Label)
	assert.Equal(t, "STU1001", intent.EntityRef)
	assert.Zero(t, fake.calls)
}

// 实体引用与计数关键词同时出现时，按固定优先级归为画像意图。
func TestRoutePrecedenceEntityRefWins(t *testing.T) {
	fake := &fakeLLM{}
	router := NewRouterService(fake)

	intent := router.Route(context.Background(), "How many achievements does aisha.khan@example.edu have in her department?")
	assert.Equal(t, model.IntentProfileSummary, intent.Label)
	assert.Equal(t, "aisha.khan@example.edu", intent.EntityRef)
	assert.Zero(t, fake.calls)
}

func TestRouteCountByGroupByRule(t *testing.T) {
	fake := &fakeLLM{}
	router := NewRouterService(fake)

	intent := router.Route(context.Background(), "How many achievements per department?")
	require.Equal(t, model.IntentCountByGroup, intent.Label)
	assert.Equal(t, "department", intent.GroupField)
	assert.False(t, intent.DistinctStudents)
	assert.Zero(t, fake.calls)

	// "how many students" 应按学生去重计数，并抽取院系过滤值
	intent = router.Route(context.Background(), "How many students are in the Civil department?")
	require.Equal(t, model.IntentCountByGroup, intent.Label)
	assert.Equal(t, "department", intent.GroupField)
	assert.True(t, intent.DistinctStudents)
	assert.Equal(t, "Civil", intent.Filters["department"])

	// "each department" 是分组说法，不应误抽成过滤值
	intent = router.Route(context.Background(), "How many students are in each department?")
	require.Equal(t, model.IntentCountByGroup, intent.Label)
	assert.Empty(t, intent.Filters["department"])
}

func TestRouteStructuredLookupByRule(t *testing.T) {
	fake := &fakeLLM{}
	router := NewRouterService(fake)

	intent := router.Route(context.Background(), "List achievements where status is approved.")
	require.Equal(t, model.IntentStructuredLookup, intent.Label)
	assert.Equal(t, "approved", intent.Filters["status"])
	assert.Zero(t, fake.calls)

	intent = router.Route(context.Background(), "Show students from the Civil department")
	require.Equal(t, model.IntentStructuredLookup, intent.Label)
	assert.Equal(t, "Civil", intent.Filters["department"])
}

// 规则不命中时走一次模型兜底，模型输出必须过同一道校验门。
func TestRouteLLMFallback(t *testing.T) {
	fake := &fakeLLM{answer: `{"intent": "count_by_group", "group_field": "type"}`}
	router := NewRouterService(fake)

	intent := router.Route(context.Background(), "break down the achievements by category please")
	assert.Equal(t, model.IntentCountByGroup, intent.Label)
	assert.Equal(t, "type", intent.GroupField)
	assert.Equal(t, 1, fake.calls)
}

func TestRouteLLMFallbackStripsCodeFence(t *testing.T) {
	fake := &fakeLLM{answer: "```json\n{\"intent\": \"unsupported\"}\n```"}
	router := NewRouterService(fake)

	intent := router.Route(context.Background(), "tell me something interesting")
	assert.Equal(t, model.IntentUnsupported, intent.Label)
}

// 模型失败或胡言乱语都不是错误，统一落到 unsupported。
func TestRouteLLMFallbackFailures(t *testing.T) {
	router := NewRouterService(&fakeLLM{err: errors.New("timeout")})
	intent := router.Route(context.Background(), "what is the meaning of life")
	assert.Equal(t, model.IntentUnsupported, intent.Label)

	router = NewRouterService(&fakeLLM{answer: "I think you want to count things."})
	intent = router.Route(context.Background(), "what is the meaning of life")
	assert.Equal(t, model.IntentUnsupported, intent.Label)
}

// 校验门：模型给出的未知字段必须被拦下，不能流向下游。
func TestRouteValidationGate(t *testing.T) {
	fake := &fakeLLM{answer: `{"intent": "count_by_group", "group_field": "dob"}`}
	router := NewRouterService(fake)
	intent := router.Route(context.Background(), "tally by birthday")
	assert.Equal(t, model.IntentUnsupported, intent.Label)

	fake = &fakeLLM{answer: `{"intent": "structured_lookup", "filters": {"password": "x"}}`}
	router = NewRouterService(fake)
	intent = router.Route(context.Background(), "weird request")
	assert.Equal(t, model.IntentUnsupported, intent.Label)

	fake = &fakeLLM{answer: `{"intent": "profile_summary", "entity_reference": "  "}`}
	router = NewRouterService(fake)
	intent = router.Route(context.Background(), "that one guy")
	assert.Equal(t, model.IntentUnsupported, intent.Label)
}

func TestRouteEmptyQuery(t *testing.T) {
	fake := &fakeLLM{}
	router := NewRouterService(fake)
	intent := router.Route(context.Background(), "   ")
	assert.Equal(t, model.IntentUnsupported, intent.Label)
	assert.Zero(t, fake.calls)
}
