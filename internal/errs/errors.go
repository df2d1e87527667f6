// Package errs 定义流水线各阶段共享的错误分类
package errs

import (
	"errors"
	"fmt"
	"strings"
)

// Kind 错误类别
type Kind string

const (
	KindConnectionFailure Kind = "connection_failure" // 存储或服务不可达、超时
	KindValidationFailed  Kind = "validation_failed"  // 必填字段缺失、维度错误或记录结构错误
	KindParseFailure      Kind = "parse_failure"      // 模型或服务响应无法解析
	KindUnknownSchema     Kind = "unknown_schema"     // 表名或索引名不在注册表中
	KindPartialWrite      Kind = "partial_write"      // 两个存储中只有一个写入成功
	KindEmptyContent      Kind = "empty_content"      // 待结构化的内容为空
	KindModelCallFailed   Kind = "model_call_failed"  // 模型调用失败
	KindExtraction        Kind = "extraction_failure" // 数据源抓取失败
)

// 错误码常量
const (
	ErrCodeConnection   = 2001
	ErrCodeValidation   = 2002
	ErrCodeParse        = 2003
	ErrCodeUnknown      = 2004
	ErrCodePartialWrite = 2005
	ErrCodeEmptyContent = 2006
	ErrCodeModelCall    = 2007
	ErrCodeExtraction   = 2008
)

var kindCodes = map[Kind]int{
	KindConnectionFailure: ErrCodeConnection,
	KindValidationFailed:  ErrCodeValidation,
	KindParseFailure:      ErrCodeParse,
	KindUnknownSchema:     ErrCodeUnknown,
	KindPartialWrite:      ErrCodePartialWrite,
	KindEmptyContent:      ErrCodeEmptyContent,
	KindModelCallFailed:   ErrCodeModelCall,
	KindExtraction:        ErrCodeExtraction,
}

// PipelineError 流水线错误
type PipelineError struct {
	Kind    Kind                   // 错误类别
	Code    int                    // 错误码
	Message string                 // 错误消息
	Details map[string]interface{} // 附加信息
	Err     error                  // 原始错误
}

// Error 实现error接口
func (e *PipelineError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s (code=%d): %s", e.Kind, e.Code, e.Message)
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

// Unwrap 返回原始错误
func (e *PipelineError) Unwrap() error {
	return e.Err
}

// Is 同类别的错误视为相等
func (e *PipelineError) Is(target error) bool {
	t, ok := target.(*PipelineError)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && (t.Message == "" || t.Message == e.Message)
}

// WithDetail 附加一条信息
func (e *PipelineError) WithDetail(key string, value interface{}) *PipelineError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// New 创建指定类别的错误
func New(kind Kind, format string, args ...interface{}) *PipelineError {
	return &PipelineError{
		Kind:    kind,
		Code:    kindCodes[kind],
		Message: fmt.Sprintf(format, args...),
	}
}

// Wrap 包装底层错误
func Wrap(kind Kind, err error, format string, args ...interface{}) *PipelineError {
	pe := New(kind, format, args...)
	pe.Err = err
	return pe
}

// 供errors.Is比较的哨兵错误
var (
	ErrConnectionFailure = &PipelineError{Kind: KindConnectionFailure}
	ErrValidationFailed  = &PipelineError{Kind: KindValidationFailed}
	ErrParseFailure      = &PipelineError{Kind: KindParseFailure}
	ErrUnknownSchema     = &PipelineError{Kind: KindUnknownSchema}
	ErrPartialWrite      = &PipelineError{Kind: KindPartialWrite}
	ErrEmptyContent      = &PipelineError{Kind: KindEmptyContent}
	ErrModelCallFailed   = &PipelineError{Kind: KindModelCallFailed}
	ErrExtraction        = &PipelineError{Kind: KindExtraction}
)

// KindOf 取出错误类别，非PipelineError返回空串
func KindOf(err error) Kind {
	var pe *PipelineError
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return ""
}
