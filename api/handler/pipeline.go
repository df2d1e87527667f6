package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/fyerfyer/fin-data-pipeline/api/middleware"
	"github.com/fyerfyer/fin-data-pipeline/api/model"
	"github.com/fyerfyer/fin-data-pipeline/config"
	"github.com/fyerfyer/fin-data-pipeline/pkg/taskqueue"
)

// PipelineHandler 触发流水线运行
type PipelineHandler struct {
	runner  Runner
	sources SourceSelector
	queue   taskqueue.Queue // 未启用队列时为nil
	logger  logrus.FieldLogger
}

// NewPipelineHandler 创建流水线处理器
func NewPipelineHandler(runner Runner, sources SourceSelector, queue taskqueue.Queue, logger logrus.FieldLogger) *PipelineHandler {
	if logger == nil {
		logger = middleware.GetLogger()
	}
	return &PipelineHandler{runner: runner, sources: sources, queue: queue, logger: logger}
}

// Run 同步运行时返回报告；异步运行为每个数据源入队一个任务并返回202
// POST /api/pipeline/run
func (h *PipelineHandler) Run(c *gin.Context) {
	var req model.RunRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			middleware.HandleError(c, middleware.NewValidationError("invalid run request", err.Error()))
			return
		}
	}

	sources := h.sources.SelectSources(req.Sources, req.TestMode)
	if len(sources) == 0 {
		middleware.HandleError(c, middleware.NewValidationError("no matching sources"))
		return
	}

	resp := model.RunResponse{Async: req.Async, Sources: sourceNames(sources)}

	if req.Async {
		if h.queue == nil {
			middleware.HandleError(c, middleware.NewBusinessError("task queue is not enabled"))
			return
		}
		resp.RunID = uuid.NewString()
		ids, err := taskqueue.EnqueueSources(c.Request.Context(), h.queue, resp.RunID, sources)
		resp.TaskIDs = ids
		if err != nil {
			h.logger.WithError(err).WithField("run_id", resp.RunID).Error("Failed to enqueue sources")
			middleware.HandleError(c, middleware.NewUnavailableError("failed to enqueue tasks", err.Error()))
			return
		}
		c.JSON(http.StatusAccepted, model.NewSuccessResponse(resp))
		return
	}

	report, err := h.runner.Run(c.Request.Context(), sources)
	if report != nil {
		resp.RunID = report.RunID
		resp.Report = report
	}
	if err != nil && report == nil {
		middleware.HandleError(c, err)
		return
	}
	if err != nil {
		// 运行被中断，返回已完成部分的报告
		h.logger.WithError(err).WithField("run_id", resp.RunID).Warn("Pipeline run interrupted")
		c.JSON(http.StatusOK, &model.Response{Code: http.StatusPartialContent, Message: err.Error(), Data: resp})
		return
	}
	c.JSON(http.StatusOK, model.NewSuccessResponse(resp))
}

func sourceNames(sources []config.Source) []string {
	names := make([]string, len(sources))
	for i, s := range sources {
		names[i] = s.Name
	}
	return names
}

// TaskHandler 查询异步任务
type TaskHandler struct {
	queue taskqueue.Queue
}

// NewTaskHandler 创建任务处理器
func NewTaskHandler(queue taskqueue.Queue) *TaskHandler {
	return &TaskHandler{queue: queue}
}

// GetTask 查询任务状态和结果
// GET /api/tasks/:id
func (h *TaskHandler) GetTask(c *gin.Context) {
	if h.queue == nil {
		middleware.HandleError(c, middleware.NewBusinessError("task queue is not enabled"))
		return
	}

	var req model.TaskRequest
	if err := c.ShouldBindUri(&req); err != nil {
		middleware.HandleError(c, middleware.NewValidationError("invalid task id", err.Error()))
		return
	}

	task, err := h.queue.GetTask(c.Request.Context(), req.ID)
	if err != nil {
		if errors.Is(err, taskqueue.ErrTaskNotFound) {
			middleware.HandleError(c, middleware.NewNotFoundError("task not found"))
			return
		}
		middleware.HandleError(c, middleware.NewUnavailableError("failed to read task", err.Error()))
		return
	}
	c.JSON(http.StatusOK, model.NewSuccessResponse(taskqueue.NewTaskInfo(task)))
}

// ListRunTasks 查询一次异步运行的所有任务
// GET /api/pipeline/runs/:id/tasks
func (h *TaskHandler) ListRunTasks(c *gin.Context) {
	if h.queue == nil {
		middleware.HandleError(c, middleware.NewBusinessError("task queue is not enabled"))
		return
	}

	var req model.TaskRequest
	if err := c.ShouldBindUri(&req); err != nil {
		middleware.HandleError(c, middleware.NewValidationError("invalid run id", err.Error()))
		return
	}

	tasks, err := h.queue.GetTasksByRun(c.Request.Context(), req.ID)
	if err != nil {
		middleware.HandleError(c, middleware.NewUnavailableError("failed to read tasks", err.Error()))
		return
	}
	infos := make([]*taskqueue.TaskInfo, len(tasks))
	for i, t := range tasks {
		infos[i] = taskqueue.NewTaskInfo(t)
	}
	c.JSON(http.StatusOK, model.NewSuccessResponse(infos))
}

// StatsHandler 存储统计
type StatsHandler struct {
	stores StoreInspector
}

// NewStatsHandler 创建统计处理器
func NewStatsHandler(stores StoreInspector) *StatsHandler {
	return &StatsHandler{stores: stores}
}

// Stats 每张表的行数和每个索引的向量数
// GET /api/stats
func (h *StatsHandler) Stats(c *gin.Context) {
	c.JSON(http.StatusOK, model.NewSuccessResponse(h.stores.Statistics(c.Request.Context())))
}
