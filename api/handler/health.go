package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/fyerfyer/fin-data-pipeline/api/model"
	"github.com/fyerfyer/fin-data-pipeline/pkg/taskqueue"
)

// HealthHandler 健康检查
type HealthHandler struct {
	stores     StoreInspector
	queue      taskqueue.Queue // 未启用队列时为nil
	simulation bool
}

// NewHealthHandler 创建健康检查处理器
func NewHealthHandler(stores StoreInspector, queue taskqueue.Queue, simulation bool) *HealthHandler {
	return &HealthHandler{stores: stores, queue: queue, simulation: simulation}
}

// Health 检查两个存储和任务队列
// GET /api/health
func (h *HealthHandler) Health(c *gin.Context) {
	ctx := c.Request.Context()
	resp := model.HealthResponse{
		Status:      "ok",
		Connections: h.stores.TestConnections(ctx),
		Simulation:  h.simulation,
	}
	healthy := resp.Connections.AllConnected

	if h.queue != nil {
		resp.Queue = "ok"
		if err := h.queue.Ping(ctx); err != nil {
			resp.Queue = err.Error()
			healthy = false
		}
	}

	// 模拟模式不写入存储，连接失败不影响可用性
	if !healthy && !h.simulation {
		resp.Status = "degraded"
		c.JSON(http.StatusServiceUnavailable, &model.Response{
			Code:    http.StatusServiceUnavailable,
			Message: "degraded",
			Data:    resp,
		})
		return
	}
	c.JSON(http.StatusOK, model.NewSuccessResponse(resp))
}
