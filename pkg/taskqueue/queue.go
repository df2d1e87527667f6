package taskqueue

import (
	"context"
	"time"

	"github.com/fyerfyer/fin-data-pipeline/config"
)

// Queue 任务队列接口
type Queue interface {
	// Enqueue 将任务加入队列
	Enqueue(ctx context.Context, taskType TaskType, runID string, payload interface{}) (string, error)

	// EnqueueIn 在指定延迟后将任务加入队列
	EnqueueIn(ctx context.Context, taskType TaskType, runID string, payload interface{}, delay time.Duration) (string, error)

	// GetTask 获取任务信息
	GetTask(ctx context.Context, taskID string) (*Task, error)

	// GetTasksByRun 获取一次运行的所有任务
	GetTasksByRun(ctx context.Context, runID string) ([]*Task, error)

	// WaitForTask 等待任务结束，timeout为0表示只受ctx约束
	WaitForTask(ctx context.Context, taskID string, timeout time.Duration) (*Task, error)

	// DeleteTask 删除任务
	DeleteTask(ctx context.Context, taskID string) error

	// UpdateTaskStatus 更新任务状态和结果
	UpdateTaskStatus(ctx context.Context, taskID string, status TaskStatus, result interface{}, errorMsg string) error

	// Ping 检查队列后端是否可用
	Ping(ctx context.Context) error

	// Close 关闭队列连接
	Close() error
}

// Handler 任务处理器
type Handler interface {
	// ProcessTask 处理任务，返回值写入任务结果
	ProcessTask(ctx context.Context, task *Task) (interface{}, error)
}

// HandlerFunc 函数形式的Handler
type HandlerFunc func(ctx context.Context, task *Task) (interface{}, error)

// ProcessTask 实现Handler
func (f HandlerFunc) ProcessTask(ctx context.Context, task *Task) (interface{}, error) {
	return f(ctx, task)
}

// Worker 运行一组Handler处理队列中的任务
type Worker interface {
	// RegisterHandler 注册任务处理器
	RegisterHandler(taskType TaskType, handler Handler)

	// Start 启动工作者，不阻塞
	Start() error

	// Stop 停止工作者
	Stop()
}

// Config 队列配置
type Config struct {
	RedisAddr     string         // Redis地址
	RedisPassword string         // Redis密码
	RedisDB       int            // Redis数据库
	Concurrency   int            // 并发处理任务数
	RetryLimit    int            // 最大重试次数
	RetryDelay    time.Duration  // 重试延迟
	TaskExpiry    time.Duration  // 任务记录保留时间
	Queues        map[string]int // 队列名称到优先级的映射
}

// DefaultConfig 返回默认配置
func DefaultConfig() *Config {
	return &Config{
		RedisAddr:   "localhost:6379",
		RedisDB:     0,
		Concurrency: 4,
		RetryLimit:  3,
		RetryDelay:  time.Minute,
		TaskExpiry:  7 * 24 * time.Hour,
		Queues: map[string]int{
			defaultQueue: 1,
		},
	}
}

// FromAppConfig 由应用配置生成队列配置，未设置的项取默认值
func FromAppConfig(c config.QueueConfig) *Config {
	cfg := DefaultConfig()
	if c.RedisAddr != "" {
		cfg.RedisAddr = c.RedisAddr
	}
	cfg.RedisPassword = c.RedisPassword
	cfg.RedisDB = c.RedisDB
	if c.Concurrency > 0 {
		cfg.Concurrency = c.Concurrency
	}
	if c.RetryLimit > 0 {
		cfg.RetryLimit = c.RetryLimit
	}
	if c.RetryDelay > 0 {
		cfg.RetryDelay = time.Duration(c.RetryDelay) * time.Second
	}
	return cfg
}

// EnqueueSources 为每个数据源创建一个任务，返回任务ID
// 中途失败时返回已入队的ID和错误
func EnqueueSources(ctx context.Context, q Queue, runID string, sources []config.Source) ([]string, error) {
	ids := make([]string, 0, len(sources))
	for _, src := range sources {
		id, err := q.Enqueue(ctx, TaskRunSource, runID, RunSourcePayload{Source: src})
		if err != nil {
			return ids, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}
