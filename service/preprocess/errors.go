/*
 * @module service/preprocess/errors
 * @description 预处理阶段错误类型与错误分类
 * @architecture 错误处理 - 带上下文的类型化错误
 * @documentReference ai_docs/preprocess_pipeline.md
 * @stateFlow 阶段失败 -> StageError -> 作业失败/跳过列
 * @rules 仅配置错误与数据不足错误向终端用户展示具体信息，其余错误统一为通用失败摘要
 * @dependencies errors, fmt
 * @refs service/pipeline/orchestrator.go, api/controllers/processing_controller.go
 */

package preprocess

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrorKind 错误分类
type ErrorKind string

const (
	KindInvalidConfiguration  ErrorKind = "invalid_configuration"
	KindInsufficientData      ErrorKind = "insufficient_data"
	KindUnsupportedColumnType ErrorKind = "unsupported_column_type"
	KindTimeout               ErrorKind = "timeout"
	KindCancelled             ErrorKind = "cancelled"
	KindInternal              ErrorKind = "internal"
)

var (
	ErrInvalidConfiguration  = errors.New("invalid configuration")
	ErrInsufficientData      = errors.New("insufficient data")
	ErrUnsupportedColumnType = errors.New("unsupported column type")
	ErrTimeout               = errors.New("pipeline timeout")
	ErrCancelled             = errors.New("pipeline cancelled")
)

var kindSentinels = map[ErrorKind]error{
	KindInvalidConfiguration:  ErrInvalidConfiguration,
	KindInsufficientData:      ErrInsufficientData,
	KindUnsupportedColumnType: ErrUnsupportedColumnType,
	KindTimeout:               ErrTimeout,
	KindCancelled:             ErrCancelled,
}

// StageError 阶段错误，携带足以复现问题的上下文
type StageError struct {
	Kind   ErrorKind
	Stage  string
	Column string
	Params map[string]any
	Err    error
}

func (e *StageError) Error() string {
	var b strings.Builder
	b.WriteString(string(e.Kind))
	if e.Stage != "" {
		b.WriteString(" [stage=" + e.Stage)
		if e.Column != "" {
			b.WriteString(" column=" + e.Column)
		}
		b.WriteString("]")
	}
	if len(e.Params) > 0 {
		keys := make([]string, 0, len(e.Params))
		for k := range e.Params {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, len(keys))
		for i, k := range keys {
			parts[i] = fmt.Sprintf("%s=%v", k, e.Params[k])
		}
		b.WriteString(" {" + strings.Join(parts, ", ") + "}")
	}
	if e.Err != nil {
		b.WriteString(": " + e.Err.Error())
	}
	return b.String()
}

func (e *StageError) Unwrap() error { return e.Err }

// Is 使 errors.Is(err, ErrInsufficientData) 等判断按分类生效
func (e *StageError) Is(target error) bool {
	return kindSentinels[e.Kind] == target
}

// NewStageError 创建阶段错误
func NewStageError(kind ErrorKind, stage, column string, params map[string]any, err error) *StageError {
	return &StageError{Kind: kind, Stage: stage, Column: column, Params: params, Err: err}
}

func invalidConfig(field, format string, args ...any) *StageError {
	return &StageError{
		Kind:   KindInvalidConfiguration,
		Stage:  "configuration",
		Params: map[string]any{"field": field},
		Err:    fmt.Errorf("%s: %s", field, fmt.Sprintf(format, args...)),
	}
}

// InsufficientData 创建数据不足错误
func InsufficientData(stage string, rows, minRows int) *StageError {
	return &StageError{
		Kind:   KindInsufficientData,
		Stage:  stage,
		Params: map[string]any{"rows": rows, "min_rows": minRows},
		Err:    fmt.Errorf("数据行数 %d 低于最小训练行数 %d", rows, minRows),
	}
}

// KindOf 对任意错误分类
func KindOf(err error) ErrorKind {
	if err == nil {
		return ""
	}
	var se *StageError
	if errors.As(err, &se) {
		return se.Kind
	}
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return KindTimeout
	case errors.Is(err, context.Canceled):
		return KindCancelled
	}
	for kind, sentinel := range kindSentinels {
		if errors.Is(err, sentinel) {
			return kind
		}
	}
	return KindInternal
}

// UserMessage 返回面向终端用户的错误信息
func UserMessage(err error) string {
	switch KindOf(err) {
	case KindInvalidConfiguration, KindInsufficientData:
		var se *StageError
		if errors.As(err, &se) && se.Err != nil {
			return se.Err.Error()
		}
		return err.Error()
	case KindTimeout:
		return "处理超时"
	case KindCancelled:
		return "处理已取消"
	case "":
		return ""
	default:
		return "数据处理失败，请联系管理员查看日志"
	}
}

// ContextError 将上下文错误转换为阶段错误
func ContextError(ctx context.Context, stage string) error {
	err := ctx.Err()
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return NewStageError(KindTimeout, stage, "", nil, err)
	}
	return NewStageError(KindCancelled, stage, "", nil, err)
}
