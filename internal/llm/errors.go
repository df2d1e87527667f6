package llm

import (
	"errors"
	"fmt"
)

// LLMError 模型调用错误
type LLMError struct {
	Code    int
	Message string
}

func (e LLMError) Error() string {
	return fmt.Sprintf("llm error (code=%d): %s", e.Code, e.Message)
}

// 错误码
const (
	ErrCodeInvalidAPIKey  = 1001 // API密钥缺失或无效
	ErrCodeInvalidRequest = 1002 // 请求无法构造或被拒绝
	ErrCodeNetworkError   = 1003 // 重试后仍无法连通
	ErrCodeRateLimited    = 1004
	ErrCodeServerError    = 1005 // 服务端错误或响应无法解析
	ErrCodeTimeout        = 1006
	ErrCodeEmptyPrompt    = 1007
)

const (
	ErrMsgInvalidAPIKey = "invalid API key"
	ErrMsgEmptyPrompt   = "prompt cannot be empty"
)

// NewLLMError 创建模型调用错误
func NewLLMError(code int, message string) LLMError {
	return LLMError{Code: code, Message: message}
}

// WrapError 把普通错误包装为指定错误码，已是LLMError的保持原错误码
func WrapError(err error, code int) LLMError {
	if err == nil {
		return LLMError{Code: code, Message: "unknown error"}
	}
	var llmErr LLMError
	if errors.As(err, &llmErr) {
		return llmErr
	}
	return LLMError{Code: code, Message: err.Error()}
}

// CodeOf 返回错误码，非模型调用错误返回0
func CodeOf(err error) int {
	var llmErr LLMError
	if errors.As(err, &llmErr) {
		return llmErr.Code
	}
	return 0
}

// Unreachable 判断错误是否表示服务不可达
func Unreachable(err error) bool {
	switch CodeOf(err) {
	case ErrCodeNetworkError, ErrCodeTimeout:
		return true
	}
	return false
}
