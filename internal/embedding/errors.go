package embedding

import (
	"errors"
	"fmt"
)

// EmbeddingError 嵌入错误类型
type EmbeddingError struct {
	Code    int    // 错误码
	Message string // 错误消息
}

func (e EmbeddingError) Error() string {
	return fmt.Sprintf("embedding error (code=%d): %s", e.Code, e.Message)
}

// 错误码常量
const (
	ErrCodeInvalidAPIKey     = 1001 // 无效的API密钥
	ErrCodeInvalidRequest    = 1002 // 无效的请求
	ErrCodeNetworkError      = 1003 // 网络连接错误
	ErrCodeRateLimited       = 1004 // 请求频率超限
	ErrCodeServerError       = 1005 // 服务器错误
	ErrCodeTimeout           = 1006 // 请求超时
	ErrCodeEmptyInput        = 1007 // 输入为空
	ErrCodeCountMismatch     = 1008 // 返回向量数与输入不一致
	ErrCodeDimensionMismatch = 1009 // 向量维度不符
)

// 错误消息常量
const (
	ErrMsgInvalidAPIKey = "invalid API key"
	ErrMsgEmptyInput    = "input text cannot be empty"
)

// NewEmbeddingError 创建新的嵌入错误
func NewEmbeddingError(code int, message string) EmbeddingError {
	return EmbeddingError{
		Code:    code,
		Message: message,
	}
}

// CodeOf 返回错误码，非嵌入错误返回0
func CodeOf(err error) int {
	var embErr EmbeddingError
	if errors.As(err, &embErr) {
		return embErr.Code
	}
	return 0
}
