package middleware

import (
	"errors"
	"fmt"
	"net/http"
	"runtime/debug"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/fyerfyer/fin-data-pipeline/api/model"
	"github.com/fyerfyer/fin-data-pipeline/internal/errs"
)

// 定义应用中的错误类型常量
const (
	ErrorTypeValidation  = "VALIDATION_ERROR"  // 输入验证错误
	ErrorTypeNotFound    = "NOT_FOUND_ERROR"   // 资源不存在错误
	ErrorTypeInternal    = "INTERNAL_ERROR"    // 内部服务器错误
	ErrorTypeBusiness    = "BUSINESS_ERROR"    // 业务逻辑错误
	ErrorTypeUnavailable = "UNAVAILABLE_ERROR" // 依赖的服务不可用
)

// AppError 应用错误结构体
type AppError struct {
	Type    string // 错误类型
	Message string // 错误消息
	Details string // 详细错误信息
	Code    int    // HTTP状态码
}

// Error 实现error接口的方法
func (e AppError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Type, e.Message, e.Details)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// NewValidationError 创建输入验证错误
func NewValidationError(message string, details ...string) AppError {
	return AppError{
		Type:    ErrorTypeValidation,
		Message: message,
		Details: strings.Join(details, "; "),
		Code:    http.StatusBadRequest,
	}
}

// NewNotFoundError 创建资源不存在错误
func NewNotFoundError(message string) AppError {
	return AppError{
		Type:    ErrorTypeNotFound,
		Message: message,
		Code:    http.StatusNotFound,
	}
}

// NewInternalError 创建内部服务器错误
func NewInternalError(message string, details ...string) AppError {
	return AppError{
		Type:    ErrorTypeInternal,
		Message: message,
		Details: strings.Join(details, "; "),
		Code:    http.StatusInternalServerError,
	}
}

// NewBusinessError 创建业务逻辑错误
func NewBusinessError(message string, details ...string) AppError {
	return AppError{
		Type:    ErrorTypeBusiness,
		Message: message,
		Details: strings.Join(details, "; "),
		Code:    http.StatusBadRequest,
	}
}

// NewUnavailableError 创建服务不可用错误
func NewUnavailableError(message string, details ...string) AppError {
	return AppError{
		Type:    ErrorTypeUnavailable,
		Message: message,
		Details: strings.Join(details, "; "),
		Code:    http.StatusServiceUnavailable,
	}
}

// FromError 把任意错误转换为AppError，流水线错误按类别映射状态码
func FromError(err error) AppError {
	var appErr AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	var appErrPtr *AppError
	if errors.As(err, &appErrPtr) && appErrPtr != nil {
		return *appErrPtr
	}

	switch errs.KindOf(err) {
	case errs.KindUnknownSchema:
		return NewNotFoundError(err.Error())
	case errs.KindValidationFailed, errs.KindEmptyContent:
		return NewValidationError(err.Error())
	case errs.KindConnectionFailure, errs.KindModelCallFailed:
		return NewUnavailableError(err.Error())
	case "":
		return NewInternalError("Internal server error", err.Error())
	default:
		return NewBusinessError(err.Error())
	}
}

func traceIDOf(c *gin.Context) string {
	if v, ok := c.Get(TraceIDKey); ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// ErrorMiddleware 统一错误处理中间件
func ErrorMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		// 捕获 panic
		defer func() {
			if err := recover(); err != nil {
				log.WithFields(logrus.Fields{
					FieldError: err,
					"stack":    string(debug.Stack()),
					FieldPath:  c.Request.URL.Path,
				}).Error("Panic recovered in API request")

				errorResponse := model.NewErrorResponse(
					http.StatusInternalServerError,
					"An unexpected error occurred",
				)
				// 在开发环境中返回详细错误
				if gin.Mode() == gin.DebugMode {
					errorResponse.Message = fmt.Sprintf("Panic: %v", err)
				}
				errorResponse.TraceID = traceIDOf(c)
				c.AbortWithStatusJSON(http.StatusInternalServerError, errorResponse)
			}
		}()

		c.Next()

		if len(c.Errors) == 0 {
			return
		}

		// 取最后一个错误进行处理
		appErr := FromError(c.Errors.Last().Err)
		traceID := traceIDOf(c)

		entry := log.WithFields(logrus.Fields{
			"error_type": appErr.Type,
			FieldTraceID: traceID,
			FieldPath:    c.Request.URL.Path,
		})
		if appErr.Details != "" {
			entry = entry.WithField("details", appErr.Details)
		}
		if appErr.Code >= http.StatusInternalServerError {
			entry.Error(appErr.Message)
		} else {
			entry.Warn(appErr.Message)
		}

		errResp := model.NewErrorResponse(appErr.Code, appErr.Message)
		errResp.TraceID = traceID
		// 内部错误只在开发环境返回细节
		if appErr.Type == ErrorTypeInternal && gin.Mode() == gin.DebugMode && appErr.Details != "" {
			errResp.Message = appErr.Details
		}
		c.AbortWithStatusJSON(appErr.Code, errResp)
	}
}

// HandleError 在处理器中使用的错误处理辅助函数
func HandleError(c *gin.Context, err error) {
	// 添加错误到上下文中
	_ = c.Error(err)
}
