package taskqueue

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyerfyer/fin-data-pipeline/config"
)

func quietLogger() *logrus.Logger {
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	return log
}

// newTestQueue 基于miniredis的队列
func newTestQueue(t *testing.T) (*RedisQueue, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	q, err := NewRedisQueue(&Config{
		RedisAddr:   mr.Addr(),
		Concurrency: 2,
		RetryLimit:  2,
		RetryDelay:  time.Second,
	}, quietLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = q.Close() })
	return q, mr
}

func testSource(name string) config.Source {
	return config.Source{
		Name:         name,
		Category:     "Macroeconómico",
		URL:          "https://www.bcp.gov.py/" + name,
		ContentTypes: []string{"TEXT"},
		Route:        "macroeconomic",
	}
}

func TestNewRedisQueueUnavailable(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	_, err := NewRedisQueue(&Config{RedisAddr: addr}, quietLogger())
	assert.Error(t, err)
}

func TestRedisQueue_Enqueue(t *testing.T) {
	q, mr := newTestQueue(t)
	ctx := context.Background()

	taskID, err := q.Enqueue(ctx, TaskRunSource, "run-1", RunSourcePayload{Source: testSource("bcp")})
	require.NoError(t, err)
	require.NotEmpty(t, taskID)

	task, err := q.GetTask(ctx, taskID)
	require.NoError(t, err)
	assert.Equal(t, TaskRunSource, task.Type)
	assert.Equal(t, "run-1", task.RunID)
	assert.Equal(t, StatusPending, task.Status)
	assert.Equal(t, 2, task.MaxRetries)

	var payload RunSourcePayload
	require.NoError(t, UnmarshalPayload(task.Payload, &payload))
	assert.Equal(t, "bcp", payload.Source.Name)
	assert.Equal(t, "macroeconomic", payload.Source.Route)

	// 记录带有过期时间
	assert.Greater(t, mr.TTL(taskKeyPrefix+taskID), time.Duration(0))
}

func TestRedisQueue_EnqueueIn(t *testing.T) {
	q, _ := newTestQueue(t)
	ctx := context.Background()

	taskID, err := q.EnqueueIn(ctx, TaskRunSource, "", RunSourcePayload{Source: testSource("bcp")}, time.Minute)
	require.NoError(t, err)

	task, err := q.GetTask(ctx, taskID)
	require.NoError(t, err)
	assert.Equal(t, StatusPending, task.Status)
	assert.Empty(t, task.RunID)
}

func TestEnqueueSourcesAndGetTasksByRun(t *testing.T) {
	q, _ := newTestQueue(t)
	ctx := context.Background()

	ids, err := EnqueueSources(ctx, q, "run-2", []config.Source{testSource("a"), testSource("b"), testSource("c")})
	require.NoError(t, err)
	require.Len(t, ids, 3)

	tasks, err := q.GetTasksByRun(ctx, "run-2")
	require.NoError(t, err)
	require.Len(t, tasks, 3)
	got := make([]string, len(tasks))
	for i, task := range tasks {
		got[i] = task.ID
	}
	assert.ElementsMatch(t, ids, got)

	empty, err := q.GetTasksByRun(ctx, "run-inexistente")
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestRedisQueue_UpdateTaskStatus(t *testing.T) {
	q, _ := newTestQueue(t)
	ctx := context.Background()

	taskID, err := q.Enqueue(ctx, TaskRunSource, "run-3", nil)
	require.NoError(t, err)

	require.NoError(t, q.UpdateTaskStatus(ctx, taskID, StatusProcessing, nil, ""))
	task, err := q.GetTask(ctx, taskID)
	require.NoError(t, err)
	assert.Equal(t, StatusProcessing, task.Status)
	assert.Equal(t, 1, task.Attempts)
	require.NotNil(t, task.StartedAt)
	assert.Nil(t, task.CompletedAt)

	result := map[string]int{"extracted": 2}
	require.NoError(t, q.UpdateTaskStatus(ctx, taskID, StatusCompleted, result, ""))
	task, err = q.GetTask(ctx, taskID)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, task.Status)
	require.NotNil(t, task.CompletedAt)
	assert.JSONEq(t, `{"extracted": 2}`, string(task.Result))

	assert.ErrorIs(t, q.UpdateTaskStatus(ctx, "no-existe", StatusFailed, nil, "x"), ErrTaskNotFound)
}

func TestRedisQueue_DeleteTask(t *testing.T) {
	q, _ := newTestQueue(t)
	ctx := context.Background()

	taskID, err := q.Enqueue(ctx, TaskRunSource, "run-4", nil)
	require.NoError(t, err)

	require.NoError(t, q.DeleteTask(ctx, taskID))
	_, err = q.GetTask(ctx, taskID)
	assert.ErrorIs(t, err, ErrTaskNotFound)

	tasks, err := q.GetTasksByRun(ctx, "run-4")
	require.NoError(t, err)
	assert.Empty(t, tasks)

	assert.ErrorIs(t, q.DeleteTask(ctx, taskID), ErrTaskNotFound)
}

func TestRedisQueue_WaitForTask(t *testing.T) {
	q, _ := newTestQueue(t)
	ctx := context.Background()

	taskID, err := q.Enqueue(ctx, TaskRunSource, "run-5", nil)
	require.NoError(t, err)

	go func() {
		time.Sleep(50 * time.Millisecond)
		_ = q.UpdateTaskStatus(context.Background(), taskID, StatusFailed, nil, "status 500")
	}()

	task, err := q.WaitForTask(ctx, taskID, 5*time.Second)
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, task.Status)
	assert.Equal(t, "status 500", task.Error)

	// 已结束的任务立即返回
	task, err = q.WaitForTask(ctx, taskID, time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, task.Status)
}

func TestRedisQueue_WaitForTaskTimeout(t *testing.T) {
	q, _ := newTestQueue(t)
	ctx := context.Background()

	taskID, err := q.Enqueue(ctx, TaskRunSource, "", nil)
	require.NoError(t, err)

	_, err = q.WaitForTask(ctx, taskID, 100*time.Millisecond)
	assert.ErrorIs(t, err, ErrTaskTimeout)
}

// TestWorkerProcess 不启动asynq服务，直接验证任务记录的状态流转
func TestWorkerProcess(t *testing.T) {
	q, _ := newTestQueue(t)
	w := NewRedisWorker(q, nil)
	ctx := context.Background()

	okID, err := q.Enqueue(ctx, TaskRunSource, "run-6", RunSourcePayload{Source: testSource("bcp")})
	require.NoError(t, err)
	failID, err := q.Enqueue(ctx, TaskRunSource, "run-6", RunSourcePayload{Source: testSource("caido")})
	require.NoError(t, err)

	handler := HandlerFunc(func(ctx context.Context, task *Task) (interface{}, error) {
		var p RunSourcePayload
		if err := UnmarshalPayload(task.Payload, &p); err != nil {
			return nil, err
		}
		if p.Source.Name == "caido" {
			return nil, errors.New("status 500")
		}
		return map[string]string{"source": p.Source.Name}, nil
	})

	require.NoError(t, w.process(ctx, handler, okID))
	task, err := q.GetTask(ctx, okID)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, task.Status)
	assert.Equal(t, 1, task.Attempts)
	assert.JSONEq(t, `{"source": "bcp"}`, string(task.Result))

	require.Error(t, w.process(ctx, handler, failID))
	task, err = q.GetTask(ctx, failID)
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, task.Status)
	assert.Equal(t, "status 500", task.Error)

	err = w.process(ctx, handler, "borrado")
	assert.ErrorIs(t, err, asynq.SkipRetry)
}

func TestWorkerStartWithoutHandlers(t *testing.T) {
	q, _ := newTestQueue(t)
	assert.Error(t, NewRedisWorker(q, nil).Start())
}

func TestFromAppConfig(t *testing.T) {
	cfg := FromAppConfig(config.QueueConfig{RedisAddr: "redis:6379", RedisDB: 1, Concurrency: 8, RetryDelay: 30})
	assert.Equal(t, "redis:6379", cfg.RedisAddr)
	assert.Equal(t, 1, cfg.RedisDB)
	assert.Equal(t, 8, cfg.Concurrency)
	assert.Equal(t, 3, cfg.RetryLimit)
	assert.Equal(t, 30*time.Second, cfg.RetryDelay)

	def := FromAppConfig(config.QueueConfig{})
	assert.Equal(t, "localhost:6379", def.RedisAddr)
	assert.Equal(t, 4, def.Concurrency)
}

func TestTaskInfo(t *testing.T) {
	now := time.Now()
	task := &Task{ID: "t1", Type: TaskRunSource, RunID: "r1", Status: StatusProcessing, CreatedAt: now, Result: json.RawMessage(`{}`)}
	info := NewTaskInfo(task)
	assert.Equal(t, "t1", info.ID)
	assert.Equal(t, "r1", info.RunID)
	assert.Equal(t, 50.0, info.Progress)

	task.Status = StatusFailed
	assert.Equal(t, 100.0, NewTaskInfo(task).Progress)
	task.Status = StatusPending
	assert.Equal(t, 0.0, NewTaskInfo(task).Progress)
}

// TestRedisWorker 使用本地Redis服务运行完整的asynq工作者
func TestRedisWorker(t *testing.T) {
	redisAddr := "localhost:6379"
	ctx := context.Background()
	client := redis.NewClient(&redis.Options{Addr: redisAddr})
	if _, err := client.Ping(ctx).Result(); err != nil {
		t.Skip("Skipping Redis worker test: Redis not available at localhost:6379")
	}
	client.Close()

	cfg := &Config{RedisAddr: redisAddr, Concurrency: 2, RetryLimit: 0, RetryDelay: time.Second}
	q, err := NewRedisQueue(cfg, quietLogger())
	require.NoError(t, err)
	defer q.Close()

	w := NewRedisWorker(q, cfg)
	w.RegisterHandler(TaskRunSource, HandlerFunc(func(ctx context.Context, task *Task) (interface{}, error) {
		return map[string]bool{"ok": true}, nil
	}))
	require.NoError(t, w.Start())
	defer w.Stop()

	taskID, err := q.Enqueue(ctx, TaskRunSource, "run-worker", RunSourcePayload{Source: testSource("bcp")})
	require.NoError(t, err)
	defer q.DeleteTask(ctx, taskID)

	task, err := q.WaitForTask(ctx, taskID, 10*time.Second)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, task.Status)
}
