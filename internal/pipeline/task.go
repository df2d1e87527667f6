package pipeline

import (
	"context"
	"fmt"

	"github.com/fyerfyer/fin-data-pipeline/config"
	"github.com/fyerfyer/fin-data-pipeline/pkg/taskqueue"
)

// TaskHandler 在worker中对单个数据源执行流水线
type TaskHandler struct {
	runner *Runner
}

// NewTaskHandler 创建任务处理器
func NewTaskHandler(r *Runner) *TaskHandler {
	return &TaskHandler{runner: r}
}

// ProcessTask 实现taskqueue.Handler，报告作为任务结果保存
// 数据源抓取失败时返回错误，由队列决定是否重试
func (h *TaskHandler) ProcessTask(ctx context.Context, task *taskqueue.Task) (interface{}, error) {
	var p taskqueue.RunSourcePayload
	if err := taskqueue.UnmarshalPayload(task.Payload, &p); err != nil {
		return nil, fmt.Errorf("%w: %v", taskqueue.ErrInvalidPayload, err)
	}
	if p.Source.Name == "" || p.Source.URL == "" {
		return nil, fmt.Errorf("%w: source name and url are required", taskqueue.ErrInvalidPayload)
	}

	report, err := h.runner.Run(ctx, []config.Source{p.Source})
	if err != nil {
		return report, err
	}
	if msg, failed := report.FailedSources[p.Source.Name]; failed {
		return report, fmt.Errorf("source %s: %s", p.Source.Name, msg)
	}
	return report, nil
}
