package model

import (
	"github.com/fyerfyer/fin-data-pipeline/internal/loading"
	"github.com/fyerfyer/fin-data-pipeline/internal/pipeline"
	"github.com/fyerfyer/fin-data-pipeline/internal/schema"
)

// Response 通用响应结构
type Response struct {
	Code    int         `json:"code"`               // 响应状态码，0表示成功
	Message string      `json:"message"`            // 响应消息
	Data    interface{} `json:"data,omitempty"`     // 响应数据，可能为空
	TraceID string      `json:"trace_id,omitempty"` // 调用链追踪ID
}

// NewSuccessResponse 创建成功响应
func NewSuccessResponse(data interface{}) *Response {
	return &Response{
		Code:    0,
		Message: "success",
		Data:    data,
	}
}

// NewErrorResponse 创建错误响应
func NewErrorResponse(code int, message string) *Response {
	return &Response{
		Code:    code,
		Message: message,
	}
}

// HealthResponse 健康检查响应
type HealthResponse struct {
	Status      string                   `json:"status"` // ok 或 degraded
	Connections loading.ConnectionStatus `json:"connections"`
	Queue       string                   `json:"queue,omitempty"` // 队列状态，未启用时为空
	Simulation  bool                     `json:"simulation"`
}

// SchemaSummary 结构定义摘要
type SchemaSummary struct {
	Name           string   `json:"name"`
	Kind           string   `json:"kind"` // table 或 index
	Description    string   `json:"description"`
	RequiredFields []string `json:"required_fields"`
	Dimension      int      `json:"dimension,omitempty"`
}

// SchemaListResponse 所有结构定义和类别路由
type SchemaListResponse struct {
	Tables  []SchemaSummary `json:"tables"`
	Indexes []SchemaSummary `json:"indexes"`
	Routes  []schema.Route  `json:"routes"`
}

// SchemaDetailResponse 单个结构定义
type SchemaDetailResponse struct {
	Kind       string            `json:"kind"`
	Definition schema.Definition `json:"definition"`
}

// RunResponse 流水线运行响应
// 同步运行返回Report，异步运行返回任务ID
type RunResponse struct {
	RunID   string           `json:"run_id"`
	Async   bool             `json:"async"`
	Sources []string         `json:"sources"`
	TaskIDs []string         `json:"task_ids,omitempty"`
	Report  *pipeline.Report `json:"report,omitempty"`
}
