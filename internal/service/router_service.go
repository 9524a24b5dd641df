package service

import (
	"context"
	"encoding/json"
	"regexp"
	"strings"

	"stu-insight-go/internal/model"
	"stu-insight-go/pkg/llm"
	"stu-insight-go/pkg/log"
)

// RouterService 把自然语言查询分类为封闭集合中的一个意图并抽取参数。
// 分类分两级：先走确定性规则（按固定优先级，首个命中即生效），
// 规则都不命中时退回一次受约束的 LLM 分类调用。
// 无论哪条路径，抽取出的参数都要过 schema 校验门，不合法一律降级为 unsupported。
type RouterService interface {
	Route(ctx context.Context, query string) model.QueryIntent
}

type routerService struct {
	llmClient llm.Client
	matchers  []func(string) *model.QueryIntent
}

// NewRouterService 创建一个新的 RouterService 实例。
func NewRouterService(llmClient llm.Client) RouterService {
	s := &routerService{llmClient: llmClient}
	// 规则优先级固定：实体引用是最强信号，其次是计数，再次是列举过滤
	s.matchers = []func(string) *model.QueryIntent{
		matchProfileSummary,
		matchCountByGroup,
		matchStructuredLookup,
	}
	return s
}

var (
	emailPattern     = regexp.MustCompile(`[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}`)
	studentIDPattern = regexp.MustCompile(`(?i)\bSTU\d{3,}\b`)
	countPattern     = regexp.MustCompile(`(?i)\b(?:how many|count|number of)\b`)
	listPattern      = regexp.MustCompile(`(?i)\b(?:list|show|which|who|find|give me)\b`)
	studentsPattern  = regexp.MustCompile(`(?i)\bstudents?\b`)
	// "... in/from the Civil department" 式的分组过滤值
	departmentValue = regexp.MustCompile(`(?i)(?:in|from|of)\s+(?:the\s+)?([A-Za-z][A-Za-z -]*?)\s+department\b`)
	// "department is Civil" / "status = approved" 式的显式约束
	fieldEquals = regexp.MustCompile(`(?i)\b(department|type|status|email|student_id|name)\s*(?:is|=|:)\s*"?([A-Za-z0-9._@+-][A-Za-z0-9._@+ -]*?)"?\s*(?:$|[,.?])`)
	// "with workshop type achievements" 式的成就类型约束
	typeValue = regexp.MustCompile(`(?i)\b(?:with|have|having|has)\s+(?:an?\s+)?([A-Za-z]+)\s+(?:type\s+)?achievements?\b`)
)

// Route 依次尝试确定性规则，全部不命中时走一次 LLM 兜底分类。
func (s *routerService) Route(ctx context.Context, query string) model.QueryIntent {
	trimmed := strings.TrimSpace(query)
	if trimmed == "" {
		return model.QueryIntent{Label: model.IntentUnsupported}
	}

	for _, match := range s.matchers {
		if intent := match(trimmed); intent != nil {
			validated := validateIntent(*intent)
			log.Infof("[RouterService] 规则命中: %s (校验后: %s)", intent.Label, validated.Label)
			return validated
		}
	}

	log.Infof("[RouterService] 规则未命中, 使用模型兜底分类")
	intent := s.classifyWithLLM(ctx, trimmed)
	validated := validateIntent(intent)
	log.Infof("[RouterService] 兜底分类结果: %s (校验后: %s)", intent.Label, validated.Label)
	return validated
}

// matchProfileSummary 命中含学生引用（邮箱或学号）的查询。
func matchProfileSummary(query string) *model.QueryIntent {
	if email := emailPattern.FindString(query); email != "" {
		return &model.QueryIntent{Label: model.IntentProfileSummary, EntityRef: email}
	}
	if id := studentIDPattern.FindString(query); id != "" {
		return &model.QueryIntent{Label: model.IntentProfileSummary, EntityRef: strings.ToUpper(id)}
	}
	return nil
}

// matchCountByGroup 命中"计数关键词 + 已知分类字段"的查询，并尽量抽取过滤值。
func matchCountByGroup(query string) *model.QueryIntent {
	if !countPattern.MatchString(query) {
		return nil
	}
	lower := strings.ToLower(query)
	var groupField string
	for field := range model.GroupableFields {
		if strings.Contains(lower, field) {
			groupField = field
			break
		}
	}
	if groupField == "" {
		return nil
	}

	intent := &model.QueryIntent{
		Label:            model.IntentCountByGroup,
		GroupField:       groupField,
		DistinctStudents: studentsPattern.MatchString(query),
		Filters:          map[string]string{},
	}
	if dept := extractDepartment(query); dept != "" {
		intent.Filters["department"] = dept
	}
	if m := typeValue.FindStringSubmatch(query); m != nil {
		intent.Filters["type"] = strings.TrimSpace(m[1])
	}
	return intent
}

// matchStructuredLookup 命中"列举关键词 + 字段约束"的查询。
func matchStructuredLookup(query string) *model.QueryIntent {
	if !listPattern.MatchString(query) {
		return nil
	}
	filters := map[string]string{}
	if m := fieldEquals.FindStringSubmatch(query); m != nil {
		filters[strings.ToLower(m[1])] = strings.TrimSpace(m[2])
	}
	if dept := extractDepartment(query); dept != "" {
		filters["department"] = dept
	}
	if m := typeValue.FindStringSubmatch(query); m != nil {
		filters["type"] = strings.TrimSpace(m[1])
	}
	if len(filters) == 0 {
		return nil
	}
	return &model.QueryIntent{Label: model.IntentStructuredLookup, Filters: filters}
}

// llmRouterInstruction 约束模型只输出已知标签之一与对应参数的 JSON。
const llmRouterInstruction = `You are a query classifier for a student achievement records system.
Classify the user's question into exactly one intent and extract its parameters.

Intents:
- "profile_summary": asks about a SINGLE specific student. Extract "entity_reference" (email or student id).
- "count_by_group": asks for counts/statistics. Extract "group_field" (one of: department, type, status) and optional "filters" (field->value).
- "structured_lookup": asks to list/filter records across students. Extract "filters" (field->value, fields among: email, student_id, name, department, type, status, approved_by).
- "unsupported": anything else (greetings, general knowledge, unrelated questions).

Respond with ONLY a JSON object, no prose:
{"intent": "...", "entity_reference": "...", "group_field": "...", "filters": {...}}`

type llmIntentPayload struct {
	Intent          string            `json:"intent"`
	EntityReference string            `json:"entity_reference"`
	GroupField      string            `json:"group_field"`
	Filters         map[string]string `json:"filters"`
}

// classifyWithLLM 做一次受约束的兜底分类；任何失败都归为 unsupported（正常结局，不是错误）。
func (s *routerService) classifyWithLLM(ctx context.Context, query string) model.QueryIntent {
	messages := []llm.Message{
		{Role: "system", Content: llmRouterInstruction},
		{Role: "user", Content: query},
	}
	answer, err := s.llmClient.Chat(ctx, messages, nil)
	if err != nil {
		log.Warnf("[RouterService] 兜底分类调用失败: %v", err)
		return model.QueryIntent{Label: model.IntentUnsupported}
	}

	var payload llmIntentPayload
	if err := json.Unmarshal([]byte(stripCodeFence(answer)), &payload); err != nil {
		log.Warnf("[RouterService] 兜底分类输出不是合法 JSON: %q", answer)
		return model.QueryIntent{Label: model.IntentUnsupported}
	}

	switch model.IntentLabel(payload.Intent) {
	case model.IntentProfileSummary:
		return model.QueryIntent{Label: model.IntentProfileSummary, EntityRef: strings.TrimSpace(payload.EntityReference)}
	case model.IntentCountByGroup:
		return model.QueryIntent{
			Label:            model.IntentCountByGroup,
			GroupField:       strings.ToLower(strings.TrimSpace(payload.GroupField)),
			DistinctStudents: studentsPattern.MatchString(query),
			Filters:          payload.Filters,
		}
	case model.IntentStructuredLookup:
		return model.QueryIntent{Label: model.IntentStructuredLookup, Filters: payload.Filters}
	default:
		return model.QueryIntent{Label: model.IntentUnsupported}
	}
}

// validateIntent 是派发前的校验门：参数不合 schema 的分类一律降级为 unsupported，
// 确保坏参数永远到不了下游后端。
func validateIntent(intent model.QueryIntent) model.QueryIntent {
	unsupported := model.QueryIntent{Label: model.IntentUnsupported}
	switch intent.Label {
	case model.IntentProfileSummary:
		if strings.TrimSpace(intent.EntityRef) == "" {
			return unsupported
		}
	case model.IntentCountByGroup:
		if _, ok := model.GroupableFields[intent.GroupField]; !ok {
			return unsupported
		}
		for field := range intent.Filters {
			if _, ok := model.LookupFields[field]; !ok {
				return unsupported
			}
		}
	case model.IntentStructuredLookup:
		if len(intent.Filters) == 0 {
			return unsupported
		}
		for field := range intent.Filters {
			if _, ok := model.LookupFields[field]; !ok {
				return unsupported
			}
		}
	case model.IntentUnsupported:
		// 原样保留
	default:
		return unsupported
	}
	return intent
}

// extractDepartment 抽取"in/from the X department"里的院系值。
// "each/every/all department" 是分组说法而不是过滤值，要排除掉。
func extractDepartment(query string) string {
	m := departmentValue.FindStringSubmatch(query)
	if m == nil {
		return ""
	}
	value := strings.TrimSpace(m[1])
	switch strings.ToLower(value) {
	case "each", "every", "all", "any", "a", "per":
		return ""
	}
	return value
}

// stripCodeFence 去掉模型偶尔包在 JSON 外面的 markdown 代码块标记。
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		s = strings.TrimSuffix(s, "```")
	}
	return strings.TrimSpace(s)
}
