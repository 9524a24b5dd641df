// Package apperr 定义了应用的错误分类：哨兵错误与可展开的类型化错误。
// 上层用 errors.Is / errors.As 判别，据此决定响应里的错误分类。
package apperr

import (
	"errors"
	"fmt"
)

var (
	// ErrNoMatch 表示结构化查询没有命中任何记录（合法的否定结果）。
	ErrNoMatch = errors.New("no records matched the query")
	// ErrUnknownField 表示请求引用了白名单之外的字段。
	ErrUnknownField = errors.New("unknown or non-queryable field")
	// ErrIndexNotBuilt 表示向量索引别名还不存在，需要先执行一次摄取。
	ErrIndexNotBuilt = errors.New("vector index has not been built yet")
	// ErrNoAnswer 表示模型拒答或返回了空回答（与调用失败区分开）。
	ErrNoAnswer = errors.New("model returned no usable answer")
	// ErrIngestionBusy 表示已有一次摄取在执行中，本次触发被拒绝。
	ErrIngestionBusy = errors.New("an ingestion run is already in progress")
)

// MalformedRecordError 表示快照中的一条记录缺少必填字段。
// 归一化阶段逐条跳过并记日志，不中断整批。
type MalformedRecordError struct {
	StudentID     string
	AchievementID string
	Reason        string
}

func (e *MalformedRecordError) Error() string {
	return fmt.Sprintf("malformed record (student: %q, achievement: %q): %s", e.StudentID, e.AchievementID, e.Reason)
}

// ServiceError 表示某个外部依赖（embedding、llm、redis、storage 等）调用失败。
type ServiceError struct {
	Service string
	Err     error
}

func (e *ServiceError) Error() string {
	return fmt.Sprintf("%s service error: %v", e.Service, e.Err)
}

func (e *ServiceError) Unwrap() error {
	return e.Err
}

// NewServiceError 包装一次外部依赖调用失败。
func NewServiceError(service string, err error) error {
	return &ServiceError{Service: service, Err: err}
}
