package taskqueue

import (
	"encoding/json"
	"time"

	"github.com/fyerfyer/fin-data-pipeline/config"
)

// TaskType 任务类型
type TaskType string

const (
	// TaskRunSource 对单个数据源执行完整流水线
	TaskRunSource TaskType = "pipeline:run_source"
)

// TaskStatus 任务状态
type TaskStatus string

const (
	// StatusPending 等待处理
	StatusPending TaskStatus = "pending"
	// StatusProcessing 处理中
	StatusProcessing TaskStatus = "processing"
	// StatusCompleted 已完成
	StatusCompleted TaskStatus = "completed"
	// StatusFailed 处理失败
	StatusFailed TaskStatus = "failed"
)

// Done 是否为终止状态
func (s TaskStatus) Done() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Task 任务基础结构
type Task struct {
	ID          string          `json:"id"`           // 任务唯一标识符
	Type        TaskType        `json:"type"`         // 任务类型
	RunID       string          `json:"run_id"`       // 所属的运行批次
	Status      TaskStatus      `json:"status"`       // 任务状态
	Payload     json.RawMessage `json:"payload"`      // 任务载荷
	Result      json.RawMessage `json:"result"`       // 任务结果
	Error       string          `json:"error"`        // 错误信息（如果处理失败）
	CreatedAt   time.Time       `json:"created_at"`   // 创建时间
	UpdatedAt   time.Time       `json:"updated_at"`   // 更新时间
	StartedAt   *time.Time      `json:"started_at"`   // 开始处理时间
	CompletedAt *time.Time      `json:"completed_at"` // 完成时间
	Attempts    int             `json:"attempts"`     // 尝试次数
	MaxRetries  int             `json:"max_retries"`  // 最大重试次数
}

// RunSourcePayload 单数据源任务载荷
type RunSourcePayload struct {
	Source config.Source `json:"source"`
}

// TaskInfo 返回给客户端的简化任务信息
type TaskInfo struct {
	ID          string          `json:"id"`
	Type        TaskType        `json:"type"`
	RunID       string          `json:"run_id"`
	Status      TaskStatus      `json:"status"`
	Error       string          `json:"error,omitempty"`
	Result      json.RawMessage `json:"result,omitempty"`
	Attempts    int             `json:"attempts"`
	CreatedAt   time.Time       `json:"created_at"`
	StartedAt   *time.Time      `json:"started_at"`
	CompletedAt *time.Time      `json:"completed_at"`
	Progress    float64         `json:"progress"` // 0-100
}

// NewTaskInfo 从Task创建TaskInfo
func NewTaskInfo(task *Task) *TaskInfo {
	return &TaskInfo{
		ID:          task.ID,
		Type:        task.Type,
		RunID:       task.RunID,
		Status:      task.Status,
		Error:       task.Error,
		Result:      task.Result,
		Attempts:    task.Attempts,
		CreatedAt:   task.CreatedAt,
		StartedAt:   task.StartedAt,
		CompletedAt: task.CompletedAt,
		Progress:    taskProgress(task),
	}
}

// 单数据源任务没有中间进度，处理中按一半计
func taskProgress(task *Task) float64 {
	switch task.Status {
	case StatusProcessing:
		return 50.0
	case StatusCompleted, StatusFailed:
		return 100.0
	default:
		return 0.0
	}
}

// ErrTaskNotFound 任务未找到错误
var ErrTaskNotFound = TaskError("task not found")

// ErrTaskTimeout 任务超时错误
var ErrTaskTimeout = TaskError("task timed out")

// ErrInvalidPayload 无效的任务载荷错误
var ErrInvalidPayload = TaskError("invalid task payload")

// TaskError 任务错误类型
type TaskError string

// Error 实现error接口
func (e TaskError) Error() string {
	return string(e)
}

// MarshalPayload 将任务载荷序列化为JSON
func MarshalPayload(payload interface{}) (json.RawMessage, error) {
	if payload == nil {
		return json.RawMessage("{}"), nil
	}
	if raw, ok := payload.(json.RawMessage); ok {
		return raw, nil
	}
	return json.Marshal(payload)
}

// UnmarshalPayload 将JSON反序列化为任务载荷
func UnmarshalPayload(data json.RawMessage, v interface{}) error {
	if len(data) == 0 {
		return ErrInvalidPayload
	}
	return json.Unmarshal(data, v)
}
