package taskqueue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

const (
	// 任务键前缀
	taskKeyPrefix = "finpipe:task:"
	// 运行批次任务集合键前缀
	runTasksKeyPrefix = "finpipe:run_tasks:"
	// 状态变更通知频道前缀
	statusChannelPrefix = "finpipe:task_status:"
	// asynq队列名
	defaultQueue = "default"
)

// RedisQueue Redis任务队列实现
// asynq负责投递，任务记录单独存放在redis中
type RedisQueue struct {
	client      *asynq.Client    // 用于添加任务
	inspector   *asynq.Inspector // 用于删除未处理的任务
	redisClient *redis.Client    // 存储任务记录
	cfg         *Config
	logger      logrus.FieldLogger
}

// NewRedisQueue 创建Redis任务队列实例
func NewRedisQueue(cfg *Config, logger logrus.FieldLogger) (*RedisQueue, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if cfg.TaskExpiry <= 0 {
		cfg.TaskExpiry = DefaultConfig().TaskExpiry
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	opt := redisOpt(cfg)
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})

	// 测试Redis连接
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		_ = redisClient.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &RedisQueue{
		client:      asynq.NewClient(opt),
		inspector:   asynq.NewInspector(opt),
		redisClient: redisClient,
		cfg:         cfg,
		logger:      logger.WithField("component", "taskqueue"),
	}, nil
}

func redisOpt(cfg *Config) asynq.RedisClientOpt {
	return asynq.RedisClientOpt{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	}
}

// Enqueue 将任务加入队列
func (q *RedisQueue) Enqueue(ctx context.Context, taskType TaskType, runID string, payload interface{}) (string, error) {
	return q.enqueue(ctx, taskType, runID, payload)
}

// EnqueueIn 在指定延迟后将任务加入队列
func (q *RedisQueue) EnqueueIn(ctx context.Context, taskType TaskType, runID string, payload interface{}, delay time.Duration) (string, error) {
	return q.enqueue(ctx, taskType, runID, payload, asynq.ProcessIn(delay))
}

func (q *RedisQueue) enqueue(ctx context.Context, taskType TaskType, runID string, payload interface{}, opts ...asynq.Option) (string, error) {
	payloadBytes, err := MarshalPayload(payload)
	if err != nil {
		return "", fmt.Errorf("failed to marshal payload: %w", err)
	}

	now := time.Now()
	task := &Task{
		ID:         uuid.New().String(),
		Type:       taskType,
		RunID:      runID,
		Status:     StatusPending,
		Payload:    payloadBytes,
		CreatedAt:  now,
		UpdatedAt:  now,
		MaxRetries: q.cfg.RetryLimit,
	}

	if err := q.saveTask(ctx, task); err != nil {
		return "", fmt.Errorf("failed to save task to redis: %w", err)
	}

	// asynq任务ID与任务记录ID一致，便于删除
	opts = append(opts,
		asynq.TaskID(task.ID),
		asynq.Queue(defaultQueue),
		asynq.MaxRetry(q.cfg.RetryLimit),
	)
	if _, err := q.client.EnqueueContext(ctx, asynq.NewTask(string(taskType), []byte(task.ID)), opts...); err != nil {
		q.redisClient.Del(ctx, taskKeyPrefix+task.ID)
		return "", fmt.Errorf("failed to enqueue task: %w", err)
	}

	q.logger.WithFields(logrus.Fields{
		"task_id":   task.ID,
		"task_type": taskType,
		"run_id":    runID,
	}).Info("Task enqueued")
	return task.ID, nil
}

// GetTask 获取任务信息
func (q *RedisQueue) GetTask(ctx context.Context, taskID string) (*Task, error) {
	data, err := q.redisClient.Get(ctx, taskKeyPrefix+taskID).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrTaskNotFound
		}
		return nil, fmt.Errorf("failed to get task from redis: %w", err)
	}

	var task Task
	if err := json.Unmarshal(data, &task); err != nil {
		return nil, fmt.Errorf("failed to unmarshal task data: %w", err)
	}
	return &task, nil
}

// GetTasksByRun 获取一次运行的所有任务，按创建时间排序
func (q *RedisQueue) GetTasksByRun(ctx context.Context, runID string) ([]*Task, error) {
	taskIDs, err := q.redisClient.SMembers(ctx, runTasksKeyPrefix+runID).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get run tasks: %w", err)
	}

	tasks := make([]*Task, 0, len(taskIDs))
	for _, taskID := range taskIDs {
		task, err := q.GetTask(ctx, taskID)
		if err != nil {
			if errors.Is(err, ErrTaskNotFound) {
				// 任务可能已过期被删除，跳过
				continue
			}
			return nil, err
		}
		tasks = append(tasks, task)
	}
	sortTasks(tasks)
	return tasks, nil
}

// WaitForTask 等待任务进入终止状态
// 订阅状态通知，同时每秒轮询一次以防漏掉通知
func (q *RedisQueue) WaitForTask(ctx context.Context, taskID string, timeout time.Duration) (*Task, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	pubsub := q.redisClient.Subscribe(ctx, statusChannelPrefix+taskID)
	defer pubsub.Close()

	task, err := q.GetTask(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if task.Status.Done() {
		return task, nil
	}

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil, ErrTaskTimeout
		case <-pubsub.Channel():
		case <-ticker.C:
		}

		task, err := q.GetTask(ctx, taskID)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ErrTaskTimeout
			}
			return nil, err
		}
		if task.Status.Done() {
			return task, nil
		}
	}
}

// DeleteTask 删除任务记录，尚未处理的任务同时从asynq中移除
func (q *RedisQueue) DeleteTask(ctx context.Context, taskID string) error {
	task, err := q.GetTask(ctx, taskID)
	if err != nil {
		return err
	}

	if task.RunID != "" {
		if err := q.redisClient.SRem(ctx, runTasksKeyPrefix+task.RunID, taskID).Err(); err != nil {
			return fmt.Errorf("failed to remove task from run tasks: %w", err)
		}
	}
	if err := q.redisClient.Del(ctx, taskKeyPrefix+taskID).Err(); err != nil {
		return fmt.Errorf("failed to delete task: %w", err)
	}

	// 处理中的任务无法删除
	if err := q.inspector.DeleteTask(defaultQueue, taskID); err != nil {
		q.logger.WithError(err).WithField("task_id", taskID).Debug("Task not removed from asynq queue")
	}
	return nil
}

// UpdateTaskStatus 更新任务状态并发布通知
func (q *RedisQueue) UpdateTaskStatus(ctx context.Context, taskID string, status TaskStatus, result interface{}, errMsg string) error {
	task, err := q.GetTask(ctx, taskID)
	if err != nil {
		return err
	}

	now := time.Now()
	task.Status = status
	task.UpdatedAt = now

	if status == StatusProcessing {
		task.Attempts++
		if task.StartedAt == nil {
			task.StartedAt = &now
		}
	}
	if status.Done() {
		task.CompletedAt = &now
	}

	if result != nil {
		resultBytes, err := MarshalPayload(result)
		if err != nil {
			return fmt.Errorf("failed to marshal result: %w", err)
		}
		task.Result = resultBytes
	}
	task.Error = errMsg

	if err := q.saveTask(ctx, task); err != nil {
		return err
	}
	if err := q.redisClient.Publish(ctx, statusChannelPrefix+taskID, string(status)).Err(); err != nil {
		q.logger.WithError(err).WithField("task_id", taskID).Warn("Failed to publish task status")
	}
	return nil
}

// Ping 检查Redis连接
func (q *RedisQueue) Ping(ctx context.Context) error {
	return q.redisClient.Ping(ctx).Err()
}

// Close 关闭队列连接
func (q *RedisQueue) Close() error {
	return errors.Join(q.client.Close(), q.inspector.Close(), q.redisClient.Close())
}

// saveTask 保存任务记录并登记到运行批次
func (q *RedisQueue) saveTask(ctx context.Context, task *Task) error {
	taskData, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("failed to marshal task: %w", err)
	}

	if err := q.redisClient.Set(ctx, taskKeyPrefix+task.ID, taskData, q.cfg.TaskExpiry).Err(); err != nil {
		return fmt.Errorf("failed to save task data: %w", err)
	}

	if task.RunID != "" {
		runKey := runTasksKeyPrefix + task.RunID
		if err := q.redisClient.SAdd(ctx, runKey, task.ID).Err(); err != nil {
			return fmt.Errorf("failed to add task to run tasks: %w", err)
		}
		q.redisClient.Expire(ctx, runKey, q.cfg.TaskExpiry)
	}
	return nil
}
