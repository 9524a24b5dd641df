package model

// IntentLabel 是路由器输出的意图标签（封闭集合）。
type IntentLabel string

const (
	IntentProfileSummary   IntentLabel = "profile_summary"
	IntentCountByGroup     IntentLabel = "count_by_group"
	IntentStructuredLookup IntentLabel = "structured_lookup"
	IntentUnsupported      IntentLabel = "unsupported"
)

// QueryIntent 是路由器对一条查询的分类结果及下游所需参数。
// 只有与 Label 对应的参数字段有意义，其余保持零值。
type QueryIntent struct {
	Label IntentLabel
	// EntityRef 是 profile_summary 的目标学生引用（邮箱或学号）。
	EntityRef string
	// GroupField 是 count_by_group 的分组字段。
	GroupField string
	// DistinctStudents 表示按学生去重计数（"how many students ..."）。
	DistinctStudents bool
	// Filters 是 count_by_group 的可选过滤，或 structured_lookup 的合取约束。
	Filters map[string]string
}

// GroupableFields 是允许用于分组统计的分类字段。
var GroupableFields = map[string]struct{}{
	"department": {},
	"type":       {},
	"status":     {},
}

// LookupFields 把允许精确匹配的字段名映射到数据库列名。
// 同时充当白名单：不在表中的字段一律拒绝，避免向 SQL 拼接未知列。
var LookupFields = map[string]string{
	"email":       "email",
	"student_id":  "student_id",
	"name":        "name",
	"department":  "department",
	"type":        "type",
	"status":      "status",
	"approved_by": "approved_by",
}
