package service

import (
	"fmt"

	"github.com/dushixiang/kestrel/internal/repo"
)

// ErrDuplicateWarning 同一测量同一规则的告警已存在。
// 由数据访问层的唯一约束产生，规则评估器内部吸收，不向调用方传播。
var ErrDuplicateWarning = repo.ErrDuplicateWarning

// ValidationError 输入不合法，写入前即被拒绝，不落任何数据
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("字段 %s 校验失败: %s", e.Field, e.Reason)
}

// IngestionError 摄入失败，事务已整体回滚，由调用方决定重试
type IngestionError struct {
	Err error
}

func (e *IngestionError) Error() string {
	return fmt.Sprintf("测量摄入失败: %v", e.Err)
}

func (e *IngestionError) Unwrap() error {
	return e.Err
}

// AggregationError 聚合查询失败，不返回部分结果，各查询互不影响
type AggregationError struct {
	View string
	Err  error
}

func (e *AggregationError) Error() string {
	return fmt.Sprintf("聚合视图 %s 查询失败: %v", e.View, e.Err)
}

func (e *AggregationError) Unwrap() error {
	return e.Err
}
