package model

// ResponseKind 标识响应载荷的形态。
type ResponseKind string

const (
	KindText       ResponseKind = "text"
	KindStructured ResponseKind = "structured"
)

// ErrorKind 是响应中类型化的错误分类。
// no_match 与 unsupported 是合法的否定结果；service_error 才代表系统当前不可用。
type ErrorKind string

const (
	ErrKindValidation    ErrorKind = "validation_error"
	ErrKindService       ErrorKind = "service_error"
	ErrKindIndexNotBuilt ErrorKind = "index_not_built"
	ErrKindNoMatch       ErrorKind = "no_match"
)

// QueryResponse 是每条查询唯一的对外产物：
// 要么是生成的文本回答，要么是结构化结果，外加解析出的意图便于观测。
type QueryResponse struct {
	Intent  IntentLabel  `json:"intent"`
	Kind    ResponseKind `json:"kind"`
	Payload interface{}  `json:"payload"`
	Error   ErrorKind    `json:"error,omitempty"`
}
