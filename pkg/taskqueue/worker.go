package taskqueue

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"
)

// RedisWorker 基于asynq的工作者
type RedisWorker struct {
	server   *asynq.Server
	queue    *RedisQueue
	mu       sync.Mutex
	handlers map[TaskType]Handler
	logger   logrus.FieldLogger
}

// NewRedisWorker 创建Redis工作者，cfg为nil时使用队列的配置
func NewRedisWorker(queue *RedisQueue, cfg *Config) *RedisWorker {
	if cfg == nil {
		cfg = queue.cfg
	}
	queues := cfg.Queues
	if len(queues) == 0 {
		queues = map[string]int{defaultQueue: 1}
	}

	server := asynq.NewServer(redisOpt(cfg), asynq.Config{
		Concurrency: cfg.Concurrency,
		Queues:      queues,
		RetryDelayFunc: func(n int, err error, task *asynq.Task) time.Duration {
			return cfg.RetryDelay
		},
		Logger:   queue.logger,
		LogLevel: asynq.WarnLevel,
	})

	return &RedisWorker{
		server:   server,
		queue:    queue,
		handlers: make(map[TaskType]Handler),
		logger:   queue.logger,
	}
}

// RegisterHandler 注册任务处理器
func (w *RedisWorker) RegisterHandler(taskType TaskType, handler Handler) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.handlers[taskType] = handler
}

// Start 启动工作者
func (w *RedisWorker) Start() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if len(w.handlers) == 0 {
		return errors.New("no task handlers registered")
	}

	mux := asynq.NewServeMux()
	for taskType, handler := range w.handlers {
		h := handler
		mux.HandleFunc(string(taskType), func(ctx context.Context, t *asynq.Task) error {
			return w.process(ctx, h, string(t.Payload()))
		})
		w.logger.WithField("task_type", taskType).Info("Registered handler for task type")
	}
	return w.server.Start(mux)
}

// process 执行单个任务并维护任务记录的状态
// 还有重试机会的失败任务回到pending，最后一次失败才标记为failed
func (w *RedisWorker) process(ctx context.Context, h Handler, taskID string) error {
	log := w.logger.WithField("task_id", taskID)

	task, err := w.queue.GetTask(ctx, taskID)
	if err != nil {
		if errors.Is(err, ErrTaskNotFound) {
			// 记录已被删除，不再重试
			log.Warn("Task record not found, skipping")
			return fmt.Errorf("%w: %v", asynq.SkipRetry, err)
		}
		return err
	}

	if err := w.queue.UpdateTaskStatus(ctx, taskID, StatusProcessing, nil, ""); err != nil {
		log.WithError(err).Error("Failed to update task status to processing")
	}

	start := time.Now()
	result, err := h.ProcessTask(ctx, task)
	if err != nil {
		status := StatusFailed
		if willRetry(ctx) {
			status = StatusPending
		}
		if updateErr := w.queue.UpdateTaskStatus(ctx, taskID, status, result, err.Error()); updateErr != nil {
			log.WithError(updateErr).Error("Failed to update task status after failure")
		}
		log.WithError(err).WithField("status", status).Warn("Task failed")
		return err
	}

	if err := w.queue.UpdateTaskStatus(ctx, taskID, StatusCompleted, result, ""); err != nil {
		log.WithError(err).Error("Failed to update task status after completion")
	}
	log.WithField("duration", time.Since(start).String()).Info("Task completed")
	return nil
}

func willRetry(ctx context.Context) bool {
	retried, ok := asynq.GetRetryCount(ctx)
	if !ok {
		return false
	}
	max, ok := asynq.GetMaxRetry(ctx)
	return ok && retried < max
}

// Stop 停止工作者，等待处理中的任务结束
func (w *RedisWorker) Stop() {
	w.server.Shutdown()
}

func sortTasks(tasks []*Task) {
	sort.Slice(tasks, func(i, j int) bool {
		return tasks[i].CreatedAt.Before(tasks[j].CreatedAt)
	})
}
