package api

import (
	"github.com/gin-gonic/gin"

	"github.com/fyerfyer/fin-data-pipeline/api/handler"
	"github.com/fyerfyer/fin-data-pipeline/api/middleware"
)

// Handlers 路由使用的处理器集合
type Handlers struct {
	Health   *handler.HealthHandler
	Schema   *handler.SchemaHandler
	Pipeline *handler.PipelineHandler
	Task     *handler.TaskHandler
	Stats    *handler.StatsHandler
}

// SetupRouter 设置API路由
// 配置所有的API端点并应用中间件
func SetupRouter(h Handlers) *gin.Engine {
	router := gin.New()

	// 追踪ID最先设置，其余中间件都会用到
	router.Use(middleware.SetTraceID())
	router.Use(middleware.Logger())
	router.Use(middleware.ErrorMiddleware())

	// 在调试模式下记录请求体
	if gin.Mode() == gin.DebugMode {
		router.Use(middleware.RequestBodyLog())
	}

	api := router.Group("/api")
	{
		// 健康检查 - GET /api/health
		api.GET("/health", h.Health.Health)

		// 统计 - GET /api/stats
		api.GET("/stats", h.Stats.Stats)

		schemaGroup := api.Group("/schemas")
		{
			// 表和向量索引 - GET /api/schemas
			schemaGroup.GET("", h.Schema.ListSchemas)

			// 单个定义 - GET /api/schemas/:name
			schemaGroup.GET("/:name", h.Schema.GetSchema)
		}

		pipelineGroup := api.Group("/pipeline")
		{
			// 触发运行 - POST /api/pipeline/run
			pipelineGroup.POST("/run", h.Pipeline.Run)

			// 异步运行的任务 - GET /api/pipeline/runs/:id/tasks
			pipelineGroup.GET("/runs/:id/tasks", h.Task.ListRunTasks)
		}

		// 任务状态 - GET /api/tasks/:id
		api.GET("/tasks/:id", h.Task.GetTask)
	}

	return router
}
